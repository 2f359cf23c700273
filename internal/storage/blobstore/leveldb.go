package blobstore

import (
	"github.com/pkg/errors"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
)

const levelKeyPrefix = "blob:"

// Backends accepted by Open.
const (
	BackendFile    = "file"
	BackendLevelDB = "leveldb"
)

// LevelStore keeps every blob in one LevelDB database.
type LevelStore struct {
	db *leveldb.DB
}

// NewLevelStore opens (or creates) a LevelDB database in dir.
func NewLevelStore(dir string) (*LevelStore, error) {
	if dir == "" {
		dir = StateDir()
	}
	db, err := leveldb.OpenFile(dir, nil)
	if err != nil {
		return nil, errors.Wrap(err, "open leveldb state")
	}
	return &LevelStore{db: db}, nil
}

// Get returns the stored blob.
func (s *LevelStore) Get(key string) ([]byte, bool, error) {
	k, err := levelKey(key)
	if err != nil {
		return nil, false, err
	}

	payload, err := s.db.Get(k, nil)
	if err != nil {
		if errors.Is(err, leveldb.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, errors.Wrapf(err, "read blob %s", key)
	}
	if len(payload) == 0 {
		return nil, false, nil
	}
	return payload, true, nil
}

// Set writes the blob with a synced write.
func (s *LevelStore) Set(key string, payload []byte) error {
	k, err := levelKey(key)
	if err != nil {
		return err
	}
	if err := s.db.Put(k, payload, &opt.WriteOptions{Sync: true}); err != nil {
		return errors.Wrapf(err, "persist blob %s", key)
	}
	return nil
}

// Remove deletes the blob; removing a missing blob is not an error.
func (s *LevelStore) Remove(key string) error {
	k, err := levelKey(key)
	if err != nil {
		return err
	}
	if err := s.db.Delete(k, nil); err != nil {
		return errors.Wrapf(err, "remove blob %s", key)
	}
	return nil
}

// Close releases the database lock.
func (s *LevelStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func levelKey(key string) ([]byte, error) {
	name := sanitizeKey(key)
	if name == "" {
		return nil, errors.Wrapf(ErrInvalidKey, "%q", key)
	}
	return []byte(levelKeyPrefix + name), nil
}

// Open returns the store for backend rooted at dir.
func Open(backend, dir string) (Store, error) {
	switch backend {
	case "", BackendFile:
		return NewFileStore(dir)
	case BackendLevelDB:
		return NewLevelStore(dir)
	default:
		return nil, errors.Errorf("unknown state backend %q", backend)
	}
}
