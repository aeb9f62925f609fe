// Package hub downloads GGUF model files from a remote repository into a
// local cache directory, so they can be opened with the gguf package.
//
// Downloads are done once: a file already in the cache is reused, and a lock
// file coordinates concurrent processes fetching the same model.
//
// Example:
//
//	repo := hub.New("https://huggingface.co/TheBloke/Llama-2-7B-GGUF/resolve/main")
//	f, err := repo.OpenGGUF(ctx, "llama-2-7b.Q4_0.gguf")
package hub

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/gomlx/go-gguf/gguf"
)

// DefaultDirCreationPerm is used when creating cache directories.
const DefaultDirCreationPerm = os.FileMode(0755)

// Repo references a remote location serving GGUF model files under a base
// URL. Configure it with the chained With* methods, then call DownloadFile
// or OpenGGUF.
type Repo struct {
	baseURL   string
	cacheDir  string
	authToken string
	client    *http.Client
}

// New creates a Repo for the given base URL. File names passed to
// DownloadFile are resolved relative to it. The cache defaults to a
// "go-gguf" directory under the user cache dir.
func New(baseURL string) *Repo {
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		cacheDir = os.TempDir()
	}
	return &Repo{
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		cacheDir: filepath.Join(cacheDir, "go-gguf"),
		client:   http.DefaultClient,
	}
}

// WithAuth sets a bearer token sent with download requests. Returns the Repo
// for chaining.
func (r *Repo) WithAuth(token string) *Repo {
	r.authToken = token
	return r
}

// WithCacheDir overrides the local cache directory. Returns the Repo for
// chaining.
func (r *Repo) WithCacheDir(dir string) *Repo {
	r.cacheDir = dir
	return r
}

// WithClient overrides the HTTP client used for downloads. Returns the Repo
// for chaining.
func (r *Repo) WithClient(client *http.Client) *Repo {
	r.client = client
	return r
}

// fileURL resolves the download URL for a file name.
func (r *Repo) fileURL(name string) string {
	return r.baseURL + "/" + url.PathEscape(name)
}

// cachePath maps a file name to its location in the cache. Different repos
// are kept apart by a digest of the base URL, so the same file name from two
// sources never collides.
func (r *Repo) cachePath(name string) string {
	digest := sha256.Sum256([]byte(r.baseURL))
	return filepath.Join(r.cacheDir, hex.EncodeToString(digest[:8]), path.Base(name))
}

// DownloadFile fetches the named file into the cache, returning its local
// path. If the file was downloaded before, the cached copy is returned
// without touching the network.
func (r *Repo) DownloadFile(ctx context.Context, name string) (string, error) {
	localPath := r.cachePath(name)
	if err := r.lockedDownload(ctx, r.fileURL(name), localPath); err != nil {
		return "", err
	}
	return localPath, nil
}

// OpenGGUF downloads the named file (if not already cached) and parses it as
// a GGUF model file.
func (r *Repo) OpenGGUF(ctx context.Context, name string) (*gguf.File, error) {
	localPath, err := r.DownloadFile(ctx, name)
	if err != nil {
		return nil, errors.WithMessagef(err, "downloading %q", name)
	}
	return gguf.Open(localPath)
}
