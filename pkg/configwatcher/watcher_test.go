package configwatcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"training_backend/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const configTemplate = `
server:
  mode: debug
storage:
  type: minio
mail:
  host: %s
catalog:
  modules:
    - { id: inicio, title: Inicio, topics: 2 }
exam:
  questions:
    - { id: 1, answer: 0 }
`

func TestWatchReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(fmt.Sprintf(configTemplate, "old.example.com")), 0o644))

	reloaded := make(chan *config.Config, 4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, dir, func(cfg *config.Config) { reloaded <- cfg })
	}()

	write := func() {
		require.NoError(t, os.WriteFile(path, []byte(fmt.Sprintf(configTemplate, "new.example.com")), 0o644))
	}
	time.Sleep(200 * time.Millisecond)
	write()

	// watcher 启动前的写入可能丢失，间隔大于防抖时间重试
	deadline := time.After(10 * time.Second)
	tick := time.NewTicker(3 * debounce)
	defer tick.Stop()
	for {
		select {
		case cfg := <-reloaded:
			assert.Equal(t, "new.example.com", cfg.Mail.Host)
			cancel()
			require.NoError(t, <-done)
			return
		case <-tick.C:
			write()
		case <-deadline:
			t.Fatal("config was not reloaded")
		}
	}
}

func TestWatchMissingDir(t *testing.T) {
	err := Watch(context.Background(), filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}
