package journal

import (
	"context"
	"fmt"
	"io"
	"sync"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/xkilldash9x/pagewright/internal/config"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// File appends entries as JSON lines to a size-rotated file.
type File struct {
	mu     sync.Mutex
	w      io.WriteCloser
	logger *zap.Logger
}

// NewFile opens the journal file lazily on first write.
func NewFile(cfg config.JournalConfig, logger *zap.Logger) *File {
	return newFileWriter(&lumberjack.Logger{
		Filename:   cfg.Path,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
	}, logger)
}

func newFileWriter(w io.WriteCloser, logger *zap.Logger) *File {
	return &File{w: w, logger: logger.Named("journal.file")}
}

// Record writes e as one line.
func (f *File) Record(_ context.Context, e Entry) error {
	line, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to encode journal entry: %w", err)
	}
	line = append(line, '\n')

	f.mu.Lock()
	defer f.mu.Unlock()
	if _, err := f.w.Write(line); err != nil {
		f.logger.Error("Failed to write journal entry.", zap.String("entry_id", e.ID), zap.Error(err))
		return fmt.Errorf("failed to write journal entry: %w", err)
	}
	return nil
}

// Close flushes and closes the file.
func (f *File) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.w.Close()
}

// Decode parses one journal line.
func Decode(line []byte) (Entry, error) {
	var e Entry
	if err := json.Unmarshal(line, &e); err != nil {
		return Entry{}, fmt.Errorf("malformed journal line: %w", err)
	}
	return e, nil
}
