package index_repo

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"golang.org/x/sys/unix"
)

const IndexFileName = "index"

// FileIndex keeps one JSON-lines file per run at <root>/<job>/<timestamp>/index.
// Appends write a single line under an exclusive flock on the index file and
// readers hold a shared one, so writers in other instances or processes on
// the same root never lose entries and readers never see a torn line.
type FileIndex struct {
	root   string
	mu     sync.Mutex
	closed bool
}

func NewFileIndex(root string) *FileIndex {
	return &FileIndex{root: root}
}

func (i *FileIndex) path(jobName, jobTimestamp string) string {
	return filepath.Join(i.root, jobName, jobTimestamp, IndexFileName)
}

func (i *FileIndex) Append(jobName, jobTimestamp string, e Entry) error {
	line, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshaling index entry: %w", err)
	}
	line = append(line, '\n')

	if i.isClosed() {
		return ErrClosed
	}

	indexPath := i.path(jobName, jobTimestamp)
	if err := os.MkdirAll(filepath.Dir(indexPath), 0o755); err != nil {
		return fmt.Errorf("creating index directory: %w", err)
	}

	f, err := os.OpenFile(indexPath, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("opening index: %w", err)
	}
	defer f.Close()

	unlock, err := lockFile(f, unix.LOCK_EX)
	if err != nil {
		return err
	}
	defer unlock()

	if _, err := f.Write(line); err != nil {
		return fmt.Errorf("appending to index: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("syncing index: %w", err)
	}
	return nil
}

func lockFile(f *os.File, how int) (func(), error) {
	for {
		err := unix.Flock(int(f.Fd()), how)
		if err == nil {
			break
		}
		if !errors.Is(err, unix.EINTR) {
			return nil, fmt.Errorf("locking index: %w", err)
		}
	}
	return func() { unix.Flock(int(f.Fd()), unix.LOCK_UN) }, nil
}

func readLocked(indexPath string) ([]byte, error) {
	f, err := os.Open(indexPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	unlock, err := lockFile(f, unix.LOCK_SH)
	if err != nil {
		return nil, err
	}
	defer unlock()

	return io.ReadAll(f)
}

func (i *FileIndex) List(jobName, jobTimestamp string) ([]Entry, error) {
	if i.isClosed() {
		return nil, ErrClosed
	}
	data, err := readLocked(i.path(jobName, jobTimestamp))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading index: %w", err)
	}

	var entries []Entry
	for n, line := range bytes.Split(data, []byte{'\n'}) {
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		var e Entry
		if err := json.Unmarshal(line, &e); err != nil {
			return nil, fmt.Errorf("parsing index line %d: %w", n+1, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// Timestamps lists run directories that contain an index file.
func (i *FileIndex) Timestamps(jobName string) ([]string, error) {
	if i.isClosed() {
		return nil, ErrClosed
	}
	dirEntries, err := os.ReadDir(filepath.Join(i.root, jobName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("listing job directory: %w", err)
	}

	var out []string
	for _, de := range dirEntries {
		if !de.IsDir() {
			continue
		}
		if _, err := os.Stat(i.path(jobName, de.Name())); err != nil {
			continue
		}
		out = append(out, de.Name())
	}
	sort.Strings(out)
	return out, nil
}

func (i *FileIndex) isClosed() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.closed
}

func (i *FileIndex) Close() error {
	i.mu.Lock()
	i.closed = true
	i.mu.Unlock()
	return nil
}
