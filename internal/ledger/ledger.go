// Package ledger keeps the list of audio URLs each user has uploaded.
package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
)

type Ledger interface {
	Append(ctx context.Context, chatID int64, url string) error
	List(ctx context.Context, chatID int64) ([]string, error)
}

// FileLedger stores all uploads in one JSON object keyed by chat id. The whole
// file is rewritten on every append.
type FileLedger struct {
	path string
	mu   sync.Mutex
}

func NewFileLedger(path string) *FileLedger {
	return &FileLedger{path: path}
}

func (l *FileLedger) Append(_ context.Context, chatID int64, url string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	data, err := l.read()
	if err != nil {
		return err
	}
	key := strconv.FormatInt(chatID, 10)
	data[key] = append(data[key], url)
	return l.write(data)
}

func (l *FileLedger) List(_ context.Context, chatID int64) ([]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	data, err := l.read()
	if err != nil {
		return nil, err
	}
	return data[strconv.FormatInt(chatID, 10)], nil
}

func (l *FileLedger) read() (map[string][]string, error) {
	raw, err := os.ReadFile(l.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string][]string{}, nil
		}
		return nil, fmt.Errorf("read ledger: %w", err)
	}

	data := map[string][]string{}
	if len(raw) == 0 {
		return data, nil
	}
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("decode ledger: %w", err)
	}
	return data, nil
}

func (l *FileLedger) write(data map[string][]string) error {
	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("encode ledger: %w", err)
	}

	dir := filepath.Dir(l.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create ledger dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".ledger-*")
	if err != nil {
		return fmt.Errorf("create temp ledger: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp ledger: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp ledger: %w", err)
	}
	if err := os.Rename(tmp.Name(), l.path); err != nil {
		return fmt.Errorf("replace ledger: %w", err)
	}
	return nil
}
