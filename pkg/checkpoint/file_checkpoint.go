package checkpoint

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/oarkflow/json"

	"github.com/oarkflow/coderun"
)

const lockRetry = 10 * time.Millisecond

// FileStore keeps the latest value snapshot of an engine in a JSON
// file. A sibling lock file serialises writers across processes.
type FileStore struct {
	fileName string
	mu       sync.Mutex
	fileLock *flock.Flock
}

func NewFileStore(fileName string) *FileStore {
	return &FileStore{
		fileName: fileName,
		fileLock: flock.New(fileName + ".lock"),
	}
}

// Save replaces the stored snapshot with values.
func (fs *FileStore) Save(ctx context.Context, values map[string]coderun.Object) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	locked, err := fs.fileLock.TryLockContext(ctx, lockRetry)
	if err != nil {
		return err
	}
	if !locked {
		return fmt.Errorf("checkpoint %s is locked", fs.fileName)
	}
	defer func() {
		_ = fs.fileLock.Unlock()
	}()

	data, err := json.Marshal(values)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(fs.fileName), filepath.Base(fs.fileName)+".*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), fs.fileName)
}

// SaveEngine stores every value bound in e.
func (fs *FileStore) SaveEngine(ctx context.Context, e *coderun.Engine) error {
	return fs.Save(ctx, e.Values())
}

// Load returns the stored snapshot as plain Go values. A missing file
// yields an empty snapshot.
func (fs *FileStore) Load(ctx context.Context) (map[string]any, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	locked, err := fs.fileLock.TryRLockContext(ctx, lockRetry)
	if err != nil {
		return nil, err
	}
	if !locked {
		return nil, fmt.Errorf("checkpoint %s is locked", fs.fileName)
	}
	defer func() {
		_ = fs.fileLock.Unlock()
	}()

	values := make(map[string]any)
	data, err := os.ReadFile(fs.fileName)
	if err != nil {
		if os.IsNotExist(err) {
			return values, nil
		}
		return nil, err
	}
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("checkpoint %s: %w", fs.fileName, err)
	}
	return values, nil
}
