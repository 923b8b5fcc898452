package logging

import (
	"os"

	"go.uber.org/zap/zapcore"
)

// NewMultiCore tees a console core and a rotating JSON file core at path.
func NewMultiCore(level zapcore.Level, path string, isDev bool) (zapcore.Core, error) {
	fileWriter, err := NewFileWriter(path)
	if err != nil {
		return nil, err
	}
	return NewMultiCoreWithWriters(level, zapcore.Lock(os.Stdout), fileWriter, isDev), nil
}

// NewMultiCoreWithWriters tees consoleWriter and fileWriter. The file side is
// always JSON; the console side is colored text in development.
//
// Example:
//
//	var buf bytes.Buffer
//	core := NewMultiCoreWithWriters(zapcore.DebugLevel, zapcore.AddSync(os.Stdout), zapcore.AddSync(&buf), true)
func NewMultiCoreWithWriters(level zapcore.Level, consoleWriter, fileWriter zapcore.WriteSyncer, isDev bool) zapcore.Core {
	fileCore := zapcore.NewCore(zapcore.NewJSONEncoder(NewEncoderConfig()), fileWriter, level)
	return zapcore.NewTee(NewConsoleCore(level, consoleWriter, isDev), fileCore)
}

// NewConsoleCore returns the console half of the tee on its own.
func NewConsoleCore(level zapcore.Level, w zapcore.WriteSyncer, isDev bool) zapcore.Core {
	var enc zapcore.Encoder
	if isDev {
		enc = zapcore.NewConsoleEncoder(NewConsoleEncoderConfig())
	} else {
		enc = zapcore.NewJSONEncoder(NewEncoderConfig())
	}
	return zapcore.NewCore(enc, w, level)
}
