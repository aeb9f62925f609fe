package hub

import (
	"context"
	"encoding/binary"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// minimalGGUF returns the smallest valid GGUF v3 file: the 24-byte header
// with zero metadata entries and zero tensors.
func minimalGGUF() []byte {
	buf := []byte("GGUF")
	buf = binary.LittleEndian.AppendUint32(buf, 3)
	buf = binary.LittleEndian.AppendUint64(buf, 0)
	buf = binary.LittleEndian.AppendUint64(buf, 0)
	return buf
}

func TestDownloadFileCaches(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		requests.Add(1)
		w.Write(minimalGGUF())
	}))
	defer server.Close()

	repo := New(server.URL).WithCacheDir(t.TempDir())
	ctx := context.Background()

	path, err := repo.DownloadFile(ctx, "tiny.gguf")
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, minimalGGUF(), data)

	// Second download must come from the cache.
	again, err := repo.DownloadFile(ctx, "tiny.gguf")
	require.NoError(t, err)
	assert.Equal(t, path, again)
	assert.Equal(t, int32(1), requests.Load())
}

func TestDownloadFileSendsAuth(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		gotAuth = req.Header.Get("Authorization")
		w.Write(minimalGGUF())
	}))
	defer server.Close()

	repo := New(server.URL).WithCacheDir(t.TempDir()).WithAuth("token123")
	_, err := repo.DownloadFile(context.Background(), "tiny.gguf")
	require.NoError(t, err)
	assert.Equal(t, "Bearer token123", gotAuth)
}

func TestDownloadFileHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		http.NotFound(w, req)
	}))
	defer server.Close()

	repo := New(server.URL).WithCacheDir(t.TempDir())
	_, err := repo.DownloadFile(context.Background(), "missing.gguf")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")

	// A failed download must not leave a cached file behind.
	assert.NoFileExists(t, repo.cachePath("missing.gguf"))
}

func TestDownloadFileCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Write(minimalGGUF())
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	repo := New(server.URL).WithCacheDir(t.TempDir())
	_, err := repo.DownloadFile(ctx, "tiny.gguf")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOpenGGUF(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Write(minimalGGUF())
	}))
	defer server.Close()

	repo := New(server.URL).WithCacheDir(t.TempDir())
	f, err := repo.OpenGGUF(context.Background(), "tiny.gguf")
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, uint32(3), f.Version)
	assert.Empty(t, f.TensorInfos)
}

func TestCachePathSeparatesRepos(t *testing.T) {
	cacheDir := t.TempDir()
	a := New("https://example.com/a").WithCacheDir(cacheDir)
	b := New("https://example.com/b").WithCacheDir(cacheDir)
	assert.NotEqual(t, a.cachePath("m.gguf"), b.cachePath("m.gguf"))
}
