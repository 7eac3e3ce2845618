package store

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/alexeynavarkin/materialstore/internal/material"
	"github.com/alexeynavarkin/materialstore/internal/metadata"
	"github.com/alexeynavarkin/materialstore/internal/repository/index_repo"
)

// Store persists materials below root as
//
//	<root>/<job>/<timestamp>/objects/<id>.<ext>
//
// and records every write in an index. Objects are deduplicated by content
// within a run; index entries never are.
type Store struct {
	root    string
	index   index_repo.Index
	lg      *zap.Logger
	metrics *Metrics
}

func NewStore(
	root string,
	idx index_repo.Index,
	lg *zap.Logger,
) (*Store, error) {
	if lg == nil {
		lg = zap.NewNop()
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, ioErr("init", root, err)
	}
	if idx == nil {
		idx = index_repo.NewFileIndex(root)
	}
	return &Store{
		root:  root,
		index: idx,
		lg:    lg.With(zap.String("store", root)),
	}, nil
}

func (s *Store) Root() string {
	return s.root
}

// Path is the absolute file path of m's bytes.
func (s *Store) Path(m material.Material) string {
	return filepath.Join(s.root, filepath.FromSlash(m.RelativePath()))
}

// SetMetrics starts counting traffic into m.
func (s *Store) SetMetrics(m *Metrics) {
	s.metrics = m
}

func (s *Store) Close() error {
	return s.index.Close()
}

// Write stores content for the run and returns a new Material. When
// fileType is material.Unknown the type is sniffed from the content.
func (s *Store) Write(
	jobName material.JobName,
	jobTimestamp material.JobTimestamp,
	fileType material.FileType,
	md metadata.Metadata,
	content io.Reader,
) (material.Material, error) {
	m, err := s.write(jobName, jobTimestamp, fileType, md, content)
	if err != nil {
		s.metrics.failed()
	}
	return m, err
}

func (s *Store) write(
	jobName material.JobName,
	jobTimestamp material.JobTimestamp,
	fileType material.FileType,
	md metadata.Metadata,
	content io.Reader,
) (material.Material, error) {
	if _, err := material.NewJobName(string(jobName)); err != nil {
		return material.NullMaterial, err
	}
	if _, err := material.ParseJobTimestamp(string(jobTimestamp)); err != nil || jobTimestamp.IsLatest() {
		return material.NullMaterial, fmt.Errorf("%w: cannot write to %q", material.ErrInvalidJobTimestamp, jobTimestamp)
	}

	lg := s.lg.With(zap.Stringer("job", jobName), zap.Stringer("timestamp", jobTimestamp))

	objectsDir := filepath.Join(s.root, string(jobName), string(jobTimestamp), material.ObjectsDir)
	if err := os.MkdirAll(objectsDir, 0o755); err != nil {
		return material.NullMaterial, ioErr("write", objectsDir, err)
	}

	tmp, err := os.CreateTemp(objectsDir, "tmp-*")
	if err != nil {
		return material.NullMaterial, ioErr("write", objectsDir, err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			os.Remove(tmpPath)
		}
	}()

	detect := fileType == material.Unknown
	n := 2
	if detect {
		n = 3
	}
	readers := splitReader(content, n)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		errs    error
		id      material.ID
		size    int64
		copyErr error
	)
	addErr := func(err error) {
		mu.Lock()
		errs = multierr.Append(errs, err)
		mu.Unlock()
	}

	// Calculate SHA1 checksum.
	wg.Add(1)
	go func() {
		defer wg.Done()
		sum, err := calculateSHA1(readers[0])
		if err != nil {
			addErr(fmt.Errorf("hashing content: %w", err))
			return
		}
		id = sum
	}()

	// Spool content into the temp file.
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer readers[1].Close()
		n, err := io.Copy(tmp, readers[1])
		size = n
		if err == nil {
			err = tmp.Sync()
		}
		if cerr := tmp.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			copyErr = err
			addErr(fmt.Errorf("spooling content: %w", err))
		}
	}()

	// Detect content type.
	if detect {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ft, err := detectFileType(readers[2])
			if err != nil {
				lg.Warn("failed to detect content type", zap.Error(err))
				return
			}
			fileType = ft
		}()
	}

	wg.Wait()
	if errs != nil {
		if copyErr != nil {
			return material.NullMaterial, ioErr("write", tmpPath, errs)
		}
		return material.NullMaterial, ioErr("write", "", errs)
	}

	relPath := material.ObjectPath(jobName, jobTimestamp, id, fileType)
	objPath := filepath.Join(s.root, filepath.FromSlash(relPath))
	deduplicated := false
	if _, err := os.Stat(objPath); err == nil {
		deduplicated = true
		lg.Debug("object already stored", zap.Stringer("id", id))
	} else {
		if err := os.Rename(tmpPath, objPath); err != nil {
			return material.NullMaterial, ioErr("write", objPath, err)
		}
		committed = true
	}

	entry := index_repo.Entry{
		ID:       string(id),
		FileType: fileType.Extension(),
		Metadata: md.ToMap(),
	}
	if err := s.index.Append(string(jobName), string(jobTimestamp), entry); err != nil {
		return material.NullMaterial, ioErr("index", string(jobName)+"/"+string(jobTimestamp), err)
	}

	s.metrics.written(fileType.Extension(), deduplicated, size)

	m := material.New(jobName, jobTimestamp, id, fileType, md)
	lg.Info("material written", zap.Stringer("id", id), zap.Stringer("fileType", fileType))
	return m, nil
}

func (s *Store) WriteBytes(
	jobName material.JobName,
	jobTimestamp material.JobTimestamp,
	fileType material.FileType,
	md metadata.Metadata,
	content []byte,
) (material.Material, error) {
	return s.Write(jobName, jobTimestamp, fileType, md, bytes.NewReader(content))
}

// JobTimestamps lists the job's runs, oldest first.
func (s *Store) JobTimestamps(jobName material.JobName) ([]material.JobTimestamp, error) {
	if _, err := material.NewJobName(string(jobName)); err != nil {
		return nil, err
	}
	tss, err := s.index.Timestamps(string(jobName))
	if err != nil {
		return nil, ioErr("list", string(jobName), err)
	}
	out := make([]material.JobTimestamp, 0, len(tss))
	for _, ts := range tss {
		out = append(out, material.JobTimestamp(ts))
	}
	return out, nil
}

// ResolveTimestamp fails with JobNotFoundError when the job has no runs
// and turns JobTimestampLatest into the newest run. Malformed job names and
// timestamps are rejected before anything is read.
func (s *Store) ResolveTimestamp(jobName material.JobName, jobTimestamp material.JobTimestamp) (material.JobTimestamp, error) {
	if _, err := material.ParseJobTimestamp(string(jobTimestamp)); err != nil {
		return material.JobTimestampNull, err
	}
	tss, err := s.JobTimestamps(jobName)
	if err != nil {
		return material.JobTimestampNull, err
	}
	if len(tss) == 0 {
		return material.JobTimestampNull, &JobNotFoundError{JobName: jobName}
	}
	if jobTimestamp.IsLatest() {
		return tss[len(tss)-1], nil
	}
	return jobTimestamp, nil
}

// Select returns the run's materials matching query in index order. An
// empty list is returned when nothing matches.
func (s *Store) Select(
	jobName material.JobName,
	jobTimestamp material.JobTimestamp,
	query metadata.Query,
) (material.MaterialList, error) {
	resolved, err := s.ResolveTimestamp(jobName, jobTimestamp)
	if err != nil {
		return material.NullMaterialList, err
	}

	entries, err := s.index.List(string(jobName), string(resolved))
	if err != nil {
		return material.NullMaterialList, ioErr("select", string(jobName)+"/"+string(resolved), err)
	}

	materials := make([]material.Material, 0, len(entries))
	for _, e := range entries {
		md := metadata.New(e.Metadata)
		if !query.Matches(md) {
			continue
		}
		materials = append(materials, material.New(
			jobName,
			resolved,
			material.ID(e.ID),
			material.FileTypeOfExtension(e.FileType),
			md,
		))
	}

	s.metrics.selected(len(materials))
	s.lg.Debug("selected materials",
		zap.Stringer("job", jobName),
		zap.Stringer("timestamp", resolved),
		zap.Stringer("query", query),
		zap.Int("count", len(materials)),
	)
	return material.NewMaterialList(jobName, resolved, query, materials), nil
}

// Read returns the stored bytes of m.
func (s *Store) Read(m material.Material) ([]byte, error) {
	if m.IsNull() {
		return nil, ioErr("read", "", fmt.Errorf("null material"))
	}
	p := s.Path(m)
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, ioErr("read", p, err)
	}
	return data, nil
}

// Verify rehashes the stored bytes of m and compares them to its ID.
func (s *Store) Verify(m material.Material) error {
	data, err := s.Read(m)
	if err != nil {
		return err
	}
	if got := material.ComputeID(data); got != m.ID() {
		return ioErr("verify", s.Path(m), fmt.Errorf("content hash %s does not match id %s", got, m.ID()))
	}
	return nil
}
