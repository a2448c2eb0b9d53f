package logging

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
)

type Options struct {
	App     string
	Version string
	Env     string
	Level   slog.Level
	// Output defaults to os.Stdout.
	Output io.Writer
}

// New returns a colourised text logger for dev builds and a JSON logger
// otherwise.
func New(opts Options) *slog.Logger {
	out := opts.Output
	if out == nil {
		out = os.Stdout
	}

	if opts.Version == "dev" {
		h := tint.NewHandler(out, &tint.Options{
			Level:      opts.Level,
			AddSource:  true,
			TimeFormat: time.Kitchen,
		})
		return slog.New(h).With("app", opts.App)
	}

	h := slog.NewJSONHandler(out, &slog.HandlerOptions{
		Level: opts.Level,
	})
	return slog.New(h).With(
		"app", opts.App,
		"version", opts.Version,
		"env", opts.Env,
	)
}
