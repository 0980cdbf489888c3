package logger

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger logs JSON to path and a readable copy to stderr. Debug lines only
// go to the file. The returned func closes the log file; call it after Sync.
func NewLogger(path string) (*zap.Logger, func(), error) {
	fileSink, closeFile, err := zap.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	return New(fileSink, zapcore.Lock(os.Stderr)), closeFile, nil
}

func New(fileSink, consoleSink zapcore.WriteSyncer) *zap.Logger {
	fileEncoder := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())

	consoleConfig := zap.NewDevelopmentEncoderConfig()
	consoleConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")
	consoleEncoder := zapcore.NewConsoleEncoder(consoleConfig)

	core := zapcore.NewTee(
		zapcore.NewCore(fileEncoder, fileSink, zapcore.DebugLevel),
		zapcore.NewCore(consoleEncoder, consoleSink, zapcore.InfoLevel),
	)
	return zap.New(core, zap.AddCaller())
}
