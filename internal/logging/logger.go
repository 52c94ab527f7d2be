package logging

import (
	"github.com/pageza/extended-accounts/backend/config"
	"go.uber.org/zap"
)

// New builds the application logger. Production gets JSON output at info
// level, every other environment the human-readable development encoder.
func New(env config.Environment) (*zap.SugaredLogger, error) {
	var z *zap.Logger
	var err error
	if env == config.Production {
		z, err = zap.NewProduction()
	} else {
		cfg := zap.NewDevelopmentConfig()
		z, err = cfg.Build()
	}
	if err != nil {
		return nil, err
	}
	return z.Sugar(), nil
}

// Nop returns a logger that discards everything.
func Nop() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}
