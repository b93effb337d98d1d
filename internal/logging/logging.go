package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

const permission = 0o664

// Builder assembles a zerolog logger writing JSON lines to stdout, a file
// or an explicit writer.
type Builder struct {
	writer io.Writer
	path   string
	level  string
}

// Logger is a built logger plus the file it may own.
type Logger struct {
	zerolog.Logger
	file *os.File
}

func New() *Builder {
	return &Builder{}
}

func (b *Builder) FromPath(path string) *Builder {
	b.path = strings.TrimSpace(path)
	return b
}

func (b *Builder) FromWriter(w io.Writer) *Builder {
	b.writer = w
	return b
}

func (b *Builder) WithLevel(level string) *Builder {
	b.level = level
	return b
}

func (b *Builder) Make() (*Logger, error) {
	level := zerolog.InfoLevel
	if b.level != "" {
		parsed, err := zerolog.ParseLevel(strings.ToLower(b.level))
		if err != nil {
			return nil, fmt.Errorf("parse log level: %w", err)
		}
		level = parsed
	}

	out := &Logger{}
	var writer io.Writer = os.Stdout
	if b.writer != nil {
		writer = b.writer
	}
	if b.path != "" {
		file, err := os.OpenFile(b.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, permission)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		out.file = file
		writer = zerolog.SyncWriter(file)
	}
	out.Logger = zerolog.New(writer).Level(level).With().Timestamp().Logger()
	return out, nil
}

func (l *Logger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}
	return l.file.Close()
}

// Nop returns a logger that discards everything.
func Nop() zerolog.Logger {
	return zerolog.Nop()
}
