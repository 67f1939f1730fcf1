package logger

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

type Options struct {
	Level  string `doc:"log from debug, info, warn or error" default:"info"`
	File   string `doc:"append logs to file, - for stdout"`
	Format string `doc:"format logs as text or json"         default:"text"`
}

var levels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

// New builds the logger described by options. Invalid options fall back to
// their default and are reported through the returned logger. The returned
// function closes the log file, if any.
func New(options *Options) (*slog.Logger, func() error) {
	var problems []error
	closer := func() error { return nil }

	level, ok := levels[strings.ToLower(options.Level)]
	if !ok && options.Level != "" {
		problems = append(problems, fmt.Errorf("unknown level %q", options.Level))
	}
	opts := slog.HandlerOptions{Level: level}

	var output io.Writer = os.Stdout
	switch options.File {
	case "", "-":
	case os.DevNull:
		return slog.New(slog.DiscardHandler), closer
	default:
		file, err := os.OpenFile(options.File, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600) //nolint: mnd // owner only
		if err != nil {
			problems = append(problems, err)
		} else {
			output, closer = file, file.Close
		}
	}

	var handler slog.Handler
	switch strings.ToLower(options.Format) {
	case "json":
		handler = slog.NewJSONHandler(output, &opts)
	case "text", "":
		handler = slog.NewTextHandler(output, &opts)
	default:
		problems = append(problems, fmt.Errorf("unknown format %q", options.Format))
		handler = slog.NewTextHandler(output, &opts)
	}

	logger := slog.New(handler)
	if err := errors.Join(problems...); err != nil {
		logger.Warn("could not apply logger options", "err", err)
	}
	return logger, closer
}
