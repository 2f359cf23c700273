package blobstore

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// LoadJSON decodes the blob under key into v.
// It reports false when the blob is missing; decode failures are returned as errors.
func LoadJSON(s Store, key string, v any) (bool, error) {
	if s == nil {
		return false, nil
	}

	payload, ok, err := s.Get(key)
	if err != nil || !ok {
		return false, err
	}

	if err := json.Unmarshal(payload, v); err != nil {
		return false, errors.Wrapf(err, "decode blob %s", key)
	}

	return true, nil
}

// SaveJSON encodes v and stores it under key.
func SaveJSON(s Store, key string, v any) error {
	if s == nil {
		return nil
	}

	payload, err := json.Marshal(v)
	if err != nil {
		return errors.Wrapf(err, "encode blob %s", key)
	}

	return s.Set(key, payload)
}
