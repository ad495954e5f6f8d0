// micro-man decodes microtag and timestamp captures, pairs start/stop tags
// into intervals and reports them as text or OpenTelemetry spans.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ayushev/micro-man-tools/internal/capture"
	"github.com/ayushev/micro-man-tools/internal/delta"
)

// Version information injected at build time.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", describe(err))
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	root, err := newRootCmd(stdout, stderr)
	if err != nil {
		return err
	}
	root.SetArgs(args)
	return root.Execute()
}

// describe turns pipeline errors into user facing diagnostics.
func describe(err error) string {
	switch {
	case errors.Is(err, capture.ErrUnreadable):
		return fmt.Sprintf("failed to read capture: %v", err)
	case errors.Is(err, capture.ErrEmptyInput):
		return fmt.Sprintf("nothing to do: %v", err)
	case errors.Is(err, delta.ErrMismatchedSyncPointCount):
		return fmt.Sprintf("cannot estimate offset: %v", err)
	default:
		return err.Error()
	}
}

// newLogger builds the console logger used by every command.
func newLogger(level zapcore.Level, w io.Writer) *zap.Logger {
	encoderCfg := zap.NewDevelopmentEncoderConfig()
	encoderCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderCfg),
		zapcore.Lock(zapcore.AddSync(w)),
		level,
	)
	return zap.New(core).With(zap.String("version", version))
}
