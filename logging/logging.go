// Package logging builds the zap logger shared by every component.
package logging

import (
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type Config struct {
	Level       string `mapstructure:"level"`       // debug, info, warn, error
	Development bool   `mapstructure:"development"` // console-friendly output, stack traces on warn
	Encoding    string `mapstructure:"encoding"`    // json or console; empty keeps the preset's
}

// New builds a logger from cfg.
func New(cfg Config) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if cfg.Development {
		zc = zap.NewDevelopmentConfig()
	}
	if cfg.Level != "" {
		level, err := zap.ParseAtomicLevel(cfg.Level)
		if err != nil {
			return nil, errors.Wrapf(err, "log level %q", cfg.Level)
		}
		zc.Level = level
	}
	if cfg.Encoding != "" {
		zc.Encoding = cfg.Encoding
	}
	log, err := zc.Build()
	if err != nil {
		return nil, errors.Wrap(err, "build logger")
	}
	return log, nil
}

// Printf adapts a logger to the Printf-style interface some libraries log
// through, e.g. go-metrics' periodic reporter.
type Printf struct {
	Sugar *zap.SugaredLogger
}

func (p Printf) Printf(format string, args ...any) {
	p.Sugar.Infof(format, args...)
}
