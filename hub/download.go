package hub

import (
	"context"
	"io"
	"math/rand"
	"net/http"
	"os"
	"path"
	"time"

	"github.com/gofrs/flock"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/gomlx/go-gguf/internal/files"
)

// lockedDownload fetches url to the given filePath.
//
// If filePath exists, it is assumed to already have been correctly
// downloaded, and it returns immediately.
//
// The file is downloaded to filePath+".downloading" and then atomically
// moved to filePath. A filePath+".lock" file coordinates multiple
// processes/programs trying to download the same file at the same time.
func (r *Repo) lockedDownload(ctx context.Context, url, filePath string) error {
	if files.Exists(filePath) {
		klog.V(2).Infof("Using cached %s (%d bytes)", filePath, files.Size(filePath))
		return nil
	}

	// Checks whether the context has already been cancelled, and exit immediately.
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := os.MkdirAll(path.Dir(filePath), DefaultDirCreationPerm); err != nil {
		return errors.Wrapf(err, "failed to create directory for file %q", filePath)
	}

	lockPath := filePath + ".lock"
	var mainErr error
	errLock := execOnFileLock(ctx, lockPath, func() {
		if files.Exists(filePath) {
			// Some concurrent other process (or goroutine) already downloaded the file.
			return
		}

		tmpPath := filePath + ".downloading"
		mainErr = r.download(ctx, url, tmpPath)
		if mainErr != nil {
			mainErr = errors.WithMessagef(mainErr, "while downloading %q to %q", url, tmpPath)
			if err := os.Remove(tmpPath); err != nil && !os.IsNotExist(err) {
				klog.Warningf("Failed removing temporary file %q: %v", tmpPath, err)
			}
			return
		}
		if err := os.Rename(tmpPath, filePath); err != nil {
			mainErr = errors.Wrapf(err, "failed to move downloaded file %q to %q", tmpPath, filePath)
			return
		}

		// File now exists, so we no longer need the lock file.
		if err := os.Remove(lockPath); err != nil {
			klog.Warningf("Failed removing lock file %q: %v", lockPath, err)
		}
	})
	if mainErr != nil {
		return mainErr
	}
	if errLock != nil {
		return errors.WithMessagef(errLock, "while locking %q to download %q", lockPath, url)
	}
	return nil
}

// download performs one HTTP GET of url into tmpPath.
func (r *Repo) download(ctx context.Context, url, tmpPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return errors.Wrapf(err, "building request for %q", url)
	}
	if r.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+r.authToken)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return errors.Wrapf(err, "requesting %q", url)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("request for %q returned status %s", url, resp.Status)
	}

	tmpFile, err := os.Create(tmpPath)
	if err != nil {
		return errors.Wrapf(err, "creating temporary file for download in %q", tmpPath)
	}

	klog.V(1).Infof("Downloading %s (%d bytes reported)", url, resp.ContentLength)
	start := time.Now()
	written, err := io.Copy(tmpFile, resp.Body)
	if err != nil {
		tmpFile.Close()
		return errors.Wrapf(err, "downloading %q", url)
	}
	if err := tmpFile.Close(); err != nil {
		return errors.Wrapf(err, "failed to close temporary download file %q", tmpPath)
	}
	klog.V(1).Infof("Downloaded %d bytes from %s in %s", written, url, time.Since(start))
	return nil
}

// execOnFileLock opens the lockPath file (or creates it if it doesn't yet
// exist), locks it, and executes the function. If lockPath is already
// locked, it polls with a 1 to 2 second period (randomly), until it acquires
// the lock or the context is cancelled.
//
// The lockPath is not removed. It's safe to remove it from the given fn, if
// one knows that no new calls to execOnFileLock with the same lockPath are
// going to be made.
func execOnFileLock(ctx context.Context, lockPath string, fn func()) (err error) {
	fileLock := flock.New(lockPath)
	for {
		locked, err := fileLock.TryLock()
		if err != nil {
			return errors.Wrapf(err, "while trying to lock %q", lockPath)
		}
		if locked {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Millisecond * time.Duration(1000+rand.Intn(1000))):
		}
	}

	// Unlock in a deferred function, so it happens even if fn panics.
	defer func() {
		unlockErr := fileLock.Unlock()
		if unlockErr != nil {
			if err == nil {
				err = errors.Wrapf(unlockErr, "unlocking file %q", lockPath)
			} else {
				klog.Errorf("Error unlocking file %q: %v", lockPath, unlockErr)
			}
		}
	}()

	fn()
	return
}
