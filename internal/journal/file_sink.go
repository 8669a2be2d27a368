package journal

import (
	"context"
	"fmt"
	"sync"

	json "github.com/json-iterator/go"
	"gopkg.in/natefinch/lumberjack.v2"
)

// FileSink appends entries as JSON lines to a size-rotated file.
type FileSink struct {
	mu  sync.Mutex
	out *lumberjack.Logger
}

// NewFileSink appends to path, creating it and its directory as needed.
// Files rotate at maxSizeMB; zero keeps lumberjack's default of 100MB.
func NewFileSink(path string, maxSizeMB int) (*FileSink, error) {
	if path == "" {
		return nil, fmt.Errorf("journal file path is empty")
	}
	return &FileSink{out: &lumberjack.Logger{
		Filename: path,
		MaxSize:  maxSizeMB,
	}}, nil
}

func (f *FileSink) Write(_ context.Context, e Entry) error {
	line, err := json.Marshal(e.Record())
	if err != nil {
		return fmt.Errorf("failed to encode journal entry %d: %w", e.Seq, err)
	}
	line = append(line, '\n')

	f.mu.Lock()
	defer f.mu.Unlock()
	if _, err := f.out.Write(line); err != nil {
		return fmt.Errorf("failed to write journal entry %d: %w", e.Seq, err)
	}
	return nil
}

func (f *FileSink) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.out.Close()
}
