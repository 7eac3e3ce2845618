package main

import (
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/alexeynavarkin/materialstore/internal/material"
	"github.com/alexeynavarkin/materialstore/internal/metadata"
	"github.com/alexeynavarkin/materialstore/internal/reduce"
	"github.com/alexeynavarkin/materialstore/internal/store"
)

const (
	testJob = material.JobName("twins")
	tsProd  = material.JobTimestamp("20220128_191320")
	tsDev   = material.JobTimestamp("20220128_191342")
)

func seed(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.NewStore(filepath.Join(t.TempDir(), "store"), nil, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	write := func(ts material.JobTimestamp, env, path, content string) {
		md := metadata.NewBuilder().Put("environment", env).Put(metadata.KeyURLPath, path).Build()
		_, err := st.WriteBytes(testJob, ts, material.TXT, md, []byte(content))
		require.NoError(t, err)
	}
	write(tsProd, "prod", "/a", "one\ntwo\nthree\nfour\n")
	write(tsProd, "prod", "/b", "same\n")
	write(tsProd, "prod", "/only-prod", "x\n")
	write(tsDev, "dev", "/b", "same\n")
	write(tsDev, "dev", "/a", "one\ntwo\nTHREE\nfour\n")
	return st
}

func TestRun(t *testing.T) {
	st := seed(t)

	res, err := run(st, options{
		JobName:    string(testJob),
		Left:       side{Timestamp: string(tsProd), Label: "prod"},
		Right:      side{Timestamp: string(tsDev), Label: "dev"},
		IgnoreKeys: "environment",
		SortKeys:   metadata.KeyURLPath,
		Threshold:  10,
	}, zaptest.NewLogger(t))
	require.NoError(t, err)

	g := res.Group
	assert.Equal(t, 3, g.CountTotal())
	assert.Equal(t, 1, g.NumberOfBachelors())
	assert.Equal(t, 1, g.CountWarning())

	ratio, ok := g.Get(0).DiffRatio()
	require.True(t, ok)
	assert.Equal(t, 25.0, ratio)

	assert.Equal(t, g.ResultTimestamp(), res.Model.JobTimestamp())
	assert.Equal(t, material.JSON, res.Model.FileType())
	assert.Equal(t, material.DOT, res.Diagram.FileType())

	data, err := st.Read(res.Model)
	require.NoError(t, err)
	var model reduce.GroupModel
	require.NoError(t, json.Unmarshal(data, &model))
	assert.Equal(t, "prod", model.LabelLeft)
	assert.Equal(t, 3, model.CountTotal)
	assert.Equal(t, []string{"environment"}, model.IgnoreKeys)

	dot, err := st.Read(res.Diagram)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(dot), "digraph G {"))

	assert.Equal(t, material.JobName("twins_reduce"), res.Model.JobName())
	reports, err := st.Select(reportJobName(testJob), g.ResultTimestamp(), metadata.NewQuery(map[string]string{keyReport: reportModel}))
	require.NoError(t, err)
	require.Equal(t, 1, reports.Len())
	assert.Equal(t, res.Model.ID(), reports.At(0).ID())
	source, _ := reports.At(0).Metadata().Get(keySourceJob)
	assert.Equal(t, string(testJob), source)
}

func TestReportsLeaveLatestOfSourceJobAlone(t *testing.T) {
	st := seed(t)
	lg := zaptest.NewLogger(t)
	opts := options{
		JobName:    string(testJob),
		Left:       side{Timestamp: string(tsProd)},
		IgnoreKeys: "environment",
		SortKeys:   metadata.KeyURLPath,
	}

	first, err := run(st, opts, lg)
	require.NoError(t, err)

	latest, err := st.ResolveTimestamp(testJob, material.JobTimestampLatest)
	require.NoError(t, err)
	assert.Equal(t, tsDev, latest)

	second, err := run(st, opts, lg)
	require.NoError(t, err)
	assert.Equal(t, tsDev, second.Group.Right().JobTimestamp())
	assert.Equal(t, first.Group.CountTotal(), second.Group.CountTotal())
	for _, m := range second.Group.Right().Materials() {
		_, isReport := m.Metadata().Get(keyReport)
		assert.False(t, isReport)
	}
}

func TestRunDefaultsRightToLatest(t *testing.T) {
	st := seed(t)

	res, err := run(st, options{
		JobName:    string(testJob),
		Left:       side{Timestamp: string(tsProd)},
		IgnoreKeys: "environment",
	}, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Equal(t, tsDev, res.Group.Right().JobTimestamp())
	assert.Equal(t, "left", res.Group.LabelLeft())
}

func TestRunErrors(t *testing.T) {
	st := seed(t)
	lg := zaptest.NewLogger(t)

	_, err := run(st, options{JobName: "unknown_job", Left: side{Timestamp: string(tsProd)}}, lg)
	var notFound *store.JobNotFoundError
	assert.ErrorAs(t, err, &notFound)

	_, err = run(st, options{JobName: string(testJob), Left: side{Timestamp: "yesterday"}}, lg)
	assert.ErrorIs(t, err, material.ErrInvalidJobTimestamp)

	_, err = run(st, options{JobName: string(testJob), Threshold: 101}, lg)
	assert.Error(t, err)

	_, err = run(st, options{JobName: string(testJob), Tolerance: 300}, lg)
	assert.Error(t, err)

	_, err = run(st, options{JobName: string(testJob), Query: "k~=("}, lg)
	var qe *metadata.QueryError
	assert.ErrorAs(t, err, &qe)
}
