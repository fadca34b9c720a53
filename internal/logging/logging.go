// Package logging builds the process logger: colored console output through
// tint, plus an optional rotated JSON file.
package logging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"gopkg.in/natefinch/lumberjack.v2"
)

// NameKey is the attribute carrying the component name.
const NameKey = "logger"

// Options configures New.
type Options struct {
	Level      slog.Level
	Console    io.Writer
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// New returns the root logger and a closer for the file sink.
func New(opts Options) (*slog.Logger, io.Closer) {
	console := opts.Console
	if console == nil {
		console = os.Stderr
	}
	noColor := true
	if f, ok := console.(*os.File); ok {
		noColor = !isatty.IsTerminal(f.Fd())
	}
	handlers := []slog.Handler{
		tint.NewHandler(console, &tint.Options{
			Level:      opts.Level,
			AddSource:  opts.Level <= slog.LevelDebug,
			TimeFormat: time.DateTime,
			NoColor:    noColor,
		}),
	}

	var closer io.Closer = nopCloser{}
	if opts.File != "" {
		lj := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
			Compress:   true,
		}
		handlers = append(handlers, slog.NewJSONHandler(lj, &slog.HandlerOptions{Level: opts.Level}))
		closer = lj
	}

	if len(handlers) == 1 {
		return slog.New(handlers[0]), closer
	}
	return slog.New(fanout(handlers)), closer
}

// Named returns a child logger tagged with the component name.
func Named(logger *slog.Logger, name string) *slog.Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return logger.With(NameKey, name)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// fanout sends every record to each handler that accepts its level.
type fanout []slog.Handler

func (f fanout) Enabled(ctx context.Context, lvl slog.Level) bool {
	for _, h := range f {
		if h.Enabled(ctx, lvl) {
			return true
		}
	}
	return false
}

func (f fanout) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range f {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (f fanout) WithGroup(name string) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithGroup(name)
	}
	return out
}

var discordgoLevels = map[int]slog.Level{
	discordgo.LogDebug:         slog.LevelDebug,
	discordgo.LogError:         slog.LevelError,
	discordgo.LogWarning:       slog.LevelWarn,
	discordgo.LogInformational: slog.LevelInfo,
}

// DiscordgoLogger adapts logger to the signature of discordgo.Logger.
func DiscordgoLogger(logger *slog.Logger) func(msgL, caller int, format string, a ...any) {
	log := Named(logger, "discordgo")
	return func(msgL, _ int, format string, a ...any) {
		level, ok := discordgoLevels[msgL]
		if !ok {
			level = slog.LevelInfo
		}
		log.LogAttrs(context.Background(), level, strings.ReplaceAll(fmt.Sprintf(format, a...), "\n", ""))
	}
}
