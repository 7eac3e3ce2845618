package index_repo

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testIndexContract(t *testing.T, idx Index, job string) {
	entries, err := idx.List(job, "20220128_191320")
	require.NoError(t, err)
	assert.Empty(t, entries)

	tss, err := idx.Timestamps(job)
	require.NoError(t, err)
	assert.Empty(t, tss)

	first := Entry{ID: "aaa", FileType: "png", Metadata: map[string]string{"URL.path": "/a"}}
	second := Entry{ID: "aaa", FileType: "png", Metadata: map[string]string{"URL.path": "/b"}}
	other := Entry{ID: "bbb", FileType: "txt", Metadata: map[string]string{}}

	require.NoError(t, idx.Append(job, "20220128_191342", other))
	require.NoError(t, idx.Append(job, "20220128_191320", first))
	require.NoError(t, idx.Append(job, "20220128_191320", second))

	entries, err = idx.List(job, "20220128_191320")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, first, entries[0])
	assert.Equal(t, second, entries[1])

	tss, err = idx.Timestamps(job)
	require.NoError(t, err)
	assert.Equal(t, []string{"20220128_191320", "20220128_191342"}, tss)
}

func TestFileIndexContract(t *testing.T) {
	testIndexContract(t, NewFileIndex(t.TempDir()), "job")
}

func TestFileIndexLayout(t *testing.T) {
	root := t.TempDir()
	idx := NewFileIndex(root)
	require.NoError(t, idx.Append("job", "20220128_191320", Entry{ID: "aaa", FileType: "txt"}))

	data, err := os.ReadFile(filepath.Join(root, "job", "20220128_191320", IndexFileName))
	require.NoError(t, err)
	assert.Equal(t, `{"id":"aaa","fileType":"txt","metadata":null}`+"\n", string(data))
}

func TestFileIndexIgnoresDirectoriesWithoutIndex(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "job", "20220101_000000", "objects"), 0o755))
	idx := NewFileIndex(root)

	tss, err := idx.Timestamps("job")
	require.NoError(t, err)
	assert.Empty(t, tss)
}

func TestFileIndexConcurrentAppends(t *testing.T) {
	idx := NewFileIndex(t.TempDir())

	const n = 32
	var wg sync.WaitGroup
	for k := 0; k < n; k++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, idx.Append("job", "20220128_191320", Entry{ID: fmt.Sprint(k), FileType: "txt"}))
		}()
	}

	// readers running alongside the writers never see a torn file
	done := make(chan struct{})
	go func() {
		defer close(done)
		for k := 0; k < n; k++ {
			_, err := idx.List("job", "20220128_191320")
			assert.NoError(t, err)
		}
	}()

	wg.Wait()
	<-done

	entries, err := idx.List("job", "20220128_191320")
	require.NoError(t, err)
	assert.Len(t, entries, n)
}

func TestFileIndexAppendsFromSeparateInstances(t *testing.T) {
	root := t.TempDir()
	a, b := NewFileIndex(root), NewFileIndex(root)

	const n = 50
	var wg sync.WaitGroup
	for k := 0; k < n; k++ {
		for _, idx := range []*FileIndex{a, b} {
			wg.Add(1)
			go func() {
				defer wg.Done()
				assert.NoError(t, idx.Append("job", "20220128_191320", Entry{ID: fmt.Sprint(k), FileType: "txt"}))
			}()
		}
	}
	wg.Wait()

	for _, idx := range []*FileIndex{a, b} {
		entries, err := idx.List("job", "20220128_191320")
		require.NoError(t, err)
		assert.Len(t, entries, 2*n)
	}
}

func TestFileIndexCorruptLine(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "job", "20220128_191320")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, IndexFileName), []byte("{not json\n"), 0o644))

	_, err := NewFileIndex(root).List("job", "20220128_191320")
	assert.ErrorContains(t, err, "line 1")
}

func TestFileIndexClosed(t *testing.T) {
	idx := NewFileIndex(t.TempDir())
	require.NoError(t, idx.Close())

	assert.ErrorIs(t, idx.Append("job", "20220128_191320", Entry{ID: "aaa"}), ErrClosed)
	_, err := idx.List("job", "20220128_191320")
	assert.ErrorIs(t, err, ErrClosed)
	_, err = idx.Timestamps("job")
	assert.ErrorIs(t, err, ErrClosed)
}

func TestPostgresIndexContract(t *testing.T) {
	dsn := os.Getenv("MATERIALSTORE_TEST_POSTGRES_URL")
	if dsn == "" {
		t.Skip("MATERIALSTORE_TEST_POSTGRES_URL is not set")
	}

	idx, err := OpenPostgresIndex(dsn)
	require.NoError(t, err)
	defer idx.Close()

	testIndexContract(t, idx, fmt.Sprintf("job-%d", time.Now().UnixNano()))
}
