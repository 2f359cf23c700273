package config

import (
	"flag"
	"io"
	"time"

	"github.com/pkg/errors"
)

// flags holds command-line overrides; zero values mean "not set".
type flags struct {
	ConfigPath string
	Setup      bool
	Addr       string
	StateDir   string
	Backend    string
	Interval   time.Duration
}

func parseFlags(args []string) (flags, error) {
	var f flags
	fs := flag.NewFlagSet("dexsim", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&f.ConfigPath, "config", "", "path to yaml config")
	fs.BoolVar(&f.Setup, "setup", false, "run the interactive configuration wizard")
	fs.StringVar(&f.Addr, "addr", "", "HTTP listen address, example: :8080")
	fs.StringVar(&f.StateDir, "state-dir", "", "directory for persisted session state")
	fs.StringVar(&f.Backend, "state-backend", "", "state store backend: file or leveldb")
	fs.DurationVar(&f.Interval, "interval", 0, "oracle tick interval, example: 3s")

	if err := fs.Parse(args); err != nil {
		return flags{}, errors.Wrap(err, "parse flags")
	}
	return f, nil
}

func (f flags) apply(tmp *ConfigTmp) {
	if f.Addr != "" {
		tmp.ListenAddr = f.Addr
	}
	if f.StateDir != "" {
		tmp.StateDir = f.StateDir
	}
	if f.Backend != "" {
		tmp.StateBackend = f.Backend
	}
	if f.Interval != 0 {
		tmp.Oracle.Interval = f.Interval
	}
}
