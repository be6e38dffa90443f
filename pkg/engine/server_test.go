package engine

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getjsond/jsond/internal/store"
	"github.com/getjsond/jsond/pkg/config"
)

func TestServerStartStop(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.json")
	require.NoError(t, os.WriteFile(path, []byte(seedUsers), 0600))

	opts := config.Default()
	opts.File = path
	opts.Host = "127.0.0.1"
	opts.Port = 0 // auto-assign

	st := store.New(path)
	require.NoError(t, st.Load())

	srv := NewServer(opts, st)
	require.NoError(t, srv.Start())

	resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d/users", srv.Port()))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, srv.Stop(ctx))

	// Starting twice after a stop is allowed; while running it is not.
	require.NoError(t, srv.Start())
	assert.Error(t, srv.Start())
	require.NoError(t, srv.Stop(ctx))
}

func TestServerWatchMode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.json")
	require.NoError(t, os.WriteFile(path, []byte(seedUsers), 0600))

	opts := config.Default()
	opts.File = path
	opts.Host = "127.0.0.1"
	opts.Port = 0
	opts.Watch = true

	st := store.New(path)
	require.NoError(t, st.Load())

	srv := NewServer(opts, st, WithWatchInterval(10*time.Millisecond))
	require.NoError(t, srv.Start())
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Stop(ctx)
	}()

	base := fmt.Sprintf("http://127.0.0.1:%d", srv.Port())

	// Externally add a resource; the watcher reloads and the route table
	// regenerates, so the new resource becomes routable.
	time.Sleep(20 * time.Millisecond)
	next := `{"users": [], "articles": [{"id": 1}]}`
	require.NoError(t, os.WriteFile(path, []byte(next), 0600))

	deadline := time.Now().Add(2 * time.Second)
	for {
		resp, err := http.Get(base + "/articles")
		require.NoError(t, err)
		resp.Body.Close()
		if resp.StatusCode == http.StatusOK {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("new resource never became routable, last status %d", resp.StatusCode)
		}
		time.Sleep(20 * time.Millisecond)
	}
}
