package material

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexeynavarkin/materialstore/internal/metadata"
)

func TestComputeID(t *testing.T) {
	id := ComputeID([]byte("Hello, world!"))
	assert.Equal(t, ID("943a702d06f34599aee1f8da8ef9f7296031d699"), id)
	assert.Equal(t, "943a702", id.Short())

	parsed, err := ParseID("943A702D06F34599AEE1F8DA8EF9F7296031D699")
	require.NoError(t, err)
	assert.Equal(t, id, parsed)

	_, err = ParseID("xyz")
	assert.Error(t, err)
}

func TestNewJobName(t *testing.T) {
	for _, ok := range []string{"MyAdmin_visual_inspection_twins", "job-1", "日本"} {
		_, err := NewJobName(ok)
		assert.NoError(t, err, ok)
	}
	for _, bad := range []string{"", ".", "..", "a/b", `a\b`, "a:b", " pad", "tab\tname"} {
		_, err := NewJobName(bad)
		assert.True(t, errors.Is(err, ErrInvalidJobName), bad)
	}
}

func TestParseJobTimestamp(t *testing.T) {
	ts, err := ParseJobTimestamp("20220128_191320")
	require.NoError(t, err)
	assert.Equal(t, JobTimestamp("20220128_191320"), ts)

	ts, err = ParseJobTimestamp("latest")
	require.NoError(t, err)
	assert.True(t, ts.IsLatest())

	_, err = ParseJobTimestamp("2022-01-28")
	assert.ErrorIs(t, err, ErrInvalidJobTimestamp)
}

func TestNowAfterSkipsTakenTimestamps(t *testing.T) {
	fixed := time.Date(2022, 1, 28, 19, 13, 20, 500, time.Local)
	clock := func() time.Time { return fixed }

	assert.Equal(t, JobTimestamp("20220128_191320"), NowAfter(clock))
	assert.Equal(t, JobTimestamp("20220128_191322"),
		NowAfter(clock, "20220128_191320", "20220128_191321"))
}

func TestFileTypeLookups(t *testing.T) {
	assert.Equal(t, "png", PNG.Extension())
	assert.Equal(t, AsImage, PNG.Diffability())
	assert.Contains(t, PNG.MimeTypes(), "image/png")

	assert.Equal(t, CSS, FileTypeOfMIME("text/css"))
	assert.Equal(t, JS, FileTypeOfMIME("application/javascript"))
	assert.Equal(t, HTML, FileTypeOfMIME("text/html; charset=utf-8"))
	assert.Equal(t, AsText, HTML.Diffability())
	assert.Equal(t, WOFF2, FileTypeOfMIME("font/woff2"))
	assert.Equal(t, Unable, WOFF2.Diffability())
	assert.Equal(t, Unknown, FileTypeOfMIME("application/x-never-heard-of-it"))
	assert.Equal(t, Unknown, FileTypeOfMIME(""))

	assert.Equal(t, JPEG, FileTypeOfExtension(".JPEG"))
	assert.Equal(t, Unknown, FileTypeOfExtension("exe"))
}

func TestFileTypeTemplateModel(t *testing.T) {
	model := PNG.TemplateModel()
	assert.Equal(t, "png", model["extension"])
	assert.Equal(t, "image/png", model["mimeTypes"].([]string)[0])
	assert.Equal(t, "AS_IMAGE", model["diffability"])
}

func TestDetectFileType(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")
	assert.Equal(t, PNG, DetectFileType(png))
	assert.Equal(t, TXT, DetectFileType([]byte("just some words\n")))
	assert.Equal(t, HTML, DetectFileType([]byte("<!DOCTYPE html><html><body>x</body></html>")))
}

func TestMaterialNullAndEquality(t *testing.T) {
	md := metadata.New(map[string]string{"URL.path": "/a"})
	m := New("job", "20220128_191320", ComputeID([]byte("x")), TXT, md)
	same := New("job", "20220128_191320", ComputeID([]byte("x")), TXT, metadata.New(md.ToMap()))

	assert.False(t, m.IsNull())
	assert.True(t, NullMaterial.IsNull())
	assert.True(t, m.Equal(same))
	assert.False(t, m.Equal(NullMaterial))
	assert.True(t, NullMaterial.Equal(Material{}))
	assert.Equal(t, "", NullMaterial.RelativePath())
	assert.Equal(t, "job/20220128_191320/objects/"+string(m.ID())+".txt", m.RelativePath())
}

func TestMaterialJSON(t *testing.T) {
	md := metadata.New(map[string]string{"k": "v"})
	m := New("job", "20220128_191320", "943a702d06f34599aee1f8da8ef9f7296031d699", PNG, md)

	data, err := json.Marshal(m)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"jobName":"job",
		"jobTimestamp":"20220128_191320",
		"id":"943a702d06f34599aee1f8da8ef9f7296031d699",
		"fileType":"png",
		"metadata":{"k":"v"},
		"path":"job/20220128_191320/objects/943a702d06f34599aee1f8da8ef9f7296031d699.png"
	}`, string(data))

	data, err = json.Marshal(NullMaterial)
	require.NoError(t, err)
	assert.Equal(t, "null", string(data))
}

func TestMaterialListCopies(t *testing.T) {
	m := New("job", "20220128_191320", ComputeID([]byte("x")), TXT, metadata.NullMetadata)
	src := []Material{m}
	l := NewMaterialList("job", "20220128_191320", metadata.NullQuery, src)
	src[0] = NullMaterial

	require.Equal(t, 1, l.Len())
	assert.False(t, l.At(0).IsNull())
	assert.False(t, l.IsNull())
	assert.True(t, NullMaterialList.IsNull())
	assert.Equal(t, 0, NullMaterialList.Len())
}
