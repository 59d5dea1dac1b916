// Package observability holds the process-wide loggers and metric
// collectors.
//
// Two loggers mirror the two surfaces of the binary: CLILogger writes
// human-oriented console output for commands, ServerLogger writes
// structured JSON for the long-running service. Both default to no-op
// until Init runs so packages can log unconditionally.
package observability

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// CLILogger is the console logger used by cobra commands.
	CLILogger = zap.NewNop()

	// ServerLogger is the structured logger used by the HTTP service.
	ServerLogger = zap.NewNop()
)

// Init builds the real loggers. verbose lowers the CLI level to debug.
func Init(verbose bool) error {
	cliCfg := zap.NewDevelopmentConfig()
	cliCfg.DisableStacktrace = true
	cliCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	if !verbose {
		cliCfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}
	cli, err := cliCfg.Build()
	if err != nil {
		return err
	}

	srvCfg := zap.NewProductionConfig()
	srv, err := srvCfg.Build()
	if err != nil {
		return err
	}

	CLILogger = cli
	ServerLogger = srv
	return nil
}

// Sync flushes both loggers. Errors are ignored: stdout/stderr syncs
// fail on some platforms and there is nothing useful to do about it.
func Sync() {
	_ = CLILogger.Sync()
	_ = ServerLogger.Sync()
}
