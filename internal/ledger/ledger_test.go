package ledger_test

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/digkill/TGVoiceBot/internal/ledger"
)

func newRedisLedger(t *testing.T) (*ledger.RedisLedger, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client, err := ledger.NewRedisClient(mr.Addr(), "", 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return ledger.NewRedisLedger(client), mr
}

func TestLedgers(t *testing.T) {
	t.Parallel()

	impls := map[string]func(t *testing.T) ledger.Ledger{
		"file": func(t *testing.T) ledger.Ledger {
			return ledger.NewFileLedger(filepath.Join(t.TempDir(), "nested", "files.json"))
		},
		"redis": func(t *testing.T) ledger.Ledger {
			l, _ := newRedisLedger(t)
			return l
		},
	}

	for name, build := range impls {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			l := build(t)
			ctx := context.Background()

			empty, err := l.List(ctx, 1)
			require.NoError(t, err)
			assert.Empty(t, empty)

			require.NoError(t, l.Append(ctx, 1, "https://cdn/a.ogg"))
			require.NoError(t, l.Append(ctx, 2, "https://cdn/x.ogg"))
			require.NoError(t, l.Append(ctx, 1, "https://cdn/b.ogg"))

			got, err := l.List(ctx, 1)
			require.NoError(t, err)
			assert.Equal(t, []string{"https://cdn/a.ogg", "https://cdn/b.ogg"}, got)

			other, err := l.List(ctx, 2)
			require.NoError(t, err)
			assert.Equal(t, []string{"https://cdn/x.ogg"}, other)
		})
	}
}

func TestFileLedgerConcurrentAppends(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "files.json")
	l := ledger.NewFileLedger(path)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, l.Append(ctx, 7, fmt.Sprintf("u%d", i)))
		}(i)
	}
	wg.Wait()

	got, err := l.List(ctx, 7)
	require.NoError(t, err)
	assert.Len(t, got, 20)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var decoded map[string][]string
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Len(t, decoded["7"], 20)
}

func TestFileLedgerRejectsCorruptFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "files.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	l := ledger.NewFileLedger(path)
	_, err := l.List(context.Background(), 1)
	require.Error(t, err)
	require.Error(t, l.Append(context.Background(), 1, "u"))
}

func TestRedisLedgerKeyLayout(t *testing.T) {
	t.Parallel()

	l, mr := newRedisLedger(t)
	require.NoError(t, l.Append(context.Background(), 99, "https://cdn/z.ogg"))

	got, err := mr.List("uploads:99")
	require.NoError(t, err)
	assert.Equal(t, []string{"https://cdn/z.ogg"}, got)
}
