package diff

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/alexeynavarkin/materialstore/internal/material"
	"github.com/alexeynavarkin/materialstore/internal/metadata"
	"github.com/alexeynavarkin/materialstore/internal/reduce"
	"github.com/alexeynavarkin/materialstore/internal/store"
)

const (
	testJob = material.JobName("diff_job")
	tsLeft  = material.JobTimestamp("20220128_191320")
	tsRight = material.JobTimestamp("20220128_191342")
)

type pixel struct {
	x, y int
	c    color.NRGBA
}

func encodePNG(t *testing.T, w, h int, pixels ...pixel) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: 200, G: 200, B: 200, A: 255})
		}
	}
	for _, p := range pixels {
		img.SetNRGBA(p.x, p.y, p.c)
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.NewStore(filepath.Join(t.TempDir(), "store"), nil, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func write(t *testing.T, s *store.Store, ts material.JobTimestamp, ft material.FileType, path string, content []byte) material.Material {
	t.Helper()
	m, err := s.WriteBytes(testJob, ts, ft, metadata.NewBuilder().Put(metadata.KeyURLPath, path).Build(), content)
	require.NoError(t, err)
	return m
}

type noReads struct{ t *testing.T }

func (r noReads) Read(m material.Material) ([]byte, error) {
	r.t.Errorf("unexpected read of %s", m)
	return nil, errors.New("unexpected read")
}

func TestImageRatio(t *testing.T) {
	base := encodePNG(t, 2, 2)

	ratio, err := ImageRatio(base, base, 0)
	require.NoError(t, err)
	assert.Equal(t, 0.0, ratio)

	onePixel := encodePNG(t, 2, 2, pixel{1, 1, color.NRGBA{R: 0, G: 0, B: 0, A: 255}})
	ratio, err = ImageRatio(base, onePixel, 0)
	require.NoError(t, err)
	assert.Equal(t, 25.0, ratio)

	var all []pixel
	for y := 0; y < 2; y++ {
		for x := 0; x < 2; x++ {
			all = append(all, pixel{x, y, color.NRGBA{R: 10, G: 10, B: 10, A: 255}})
		}
	}
	ratio, err = ImageRatio(base, encodePNG(t, 2, 2, all...), 0)
	require.NoError(t, err)
	assert.Equal(t, 100.0, ratio)
}

func TestImageRatioRoundsToTwoDecimals(t *testing.T) {
	base := encodePNG(t, 3, 1)
	other := encodePNG(t, 3, 1, pixel{0, 0, color.NRGBA{A: 255}})

	ratio, err := ImageRatio(base, other, 0)
	require.NoError(t, err)
	assert.Equal(t, 33.33, ratio)
}

func TestImageRatioTolerance(t *testing.T) {
	base := encodePNG(t, 2, 2)
	drift := encodePNG(t, 2, 2, pixel{0, 0, color.NRGBA{R: 203, G: 200, B: 200, A: 255}})

	ratio, err := ImageRatio(base, drift, 0)
	require.NoError(t, err)
	assert.Equal(t, 25.0, ratio)

	ratio, err = ImageRatio(base, drift, 3)
	require.NoError(t, err)
	assert.Equal(t, 0.0, ratio)
}

func TestImageRatioDifferentBounds(t *testing.T) {
	ratio, err := ImageRatio(encodePNG(t, 2, 2), encodePNG(t, 3, 2), 0)
	require.NoError(t, err)
	assert.Equal(t, 100.0, ratio)
}

func TestImageRatioCorrupt(t *testing.T) {
	_, err := ImageRatio([]byte("not an image"), encodePNG(t, 1, 1), 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "left")
}

func TestTextRatio(t *testing.T) {
	cases := []struct {
		name        string
		left, right string
		want        float64
	}{
		{"identical", "a\nb\nc\n", "a\nb\nc\n", 0},
		{"both empty", "", "", 0},
		{"one changed line", "a\nb\nc\nd\n", "a\nb\nX\nd\n", 25},
		{"appended line", "a\nb\nc\n", "a\nb\nc\nd\n", 25},
		{"nothing shared", "a\nb\n", "c\nd\n", 100},
		{"one side empty", "", "a\nb\nc\n", 100},
		{"final newline is not a line", "a\nb\nc", "a\nb\nc\n", 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ratio, err := TextRatio([]byte(tc.left), []byte(tc.right))
			require.NoError(t, err)
			assert.Equal(t, tc.want, ratio)
		})
	}
}

func TestTextRatioInvalidUTF8(t *testing.T) {
	_, err := TextRatio([]byte{0xff, 0xfe, 0xfd}, []byte("ok"))
	assert.ErrorIs(t, err, ErrInvalidUTF8)
}

func TestComputeShortcuts(t *testing.T) {
	d := NewDiffer(noReads{t}, zaptest.NewLogger(t))
	id := material.ComputeID([]byte("same"))
	md := metadata.NullMetadata

	png1 := material.New(testJob, tsLeft, id, material.PNG, md)
	png2 := material.New(testJob, tsRight, id, material.PNG, md)
	txt := material.New(testJob, tsRight, material.ComputeID([]byte("other")), material.TXT, md)
	woffL := material.New(testJob, tsLeft, material.ComputeID([]byte("f1")), material.WOFF2, md)
	woffR := material.New(testJob, tsRight, material.ComputeID([]byte("f2")), material.WOFF2, md)

	ratio, ok, err := d.Compute(png1, png2)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 0.0, ratio)

	ratio, ok, err = d.Compute(png1, txt)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 100.0, ratio)

	_, ok, err = d.Compute(woffL, woffR)
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = d.Compute(png1, woffR)
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = d.Compute(png1, material.NullMaterial)
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = d.Compute(material.NullMaterial, txt)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestComputeIdenticalUndiffableIsNotComputed(t *testing.T) {
	d := NewDiffer(noReads{t}, zaptest.NewLogger(t))
	id := material.ComputeID([]byte("font"))

	left := material.New(testJob, tsLeft, id, material.WOFF2, metadata.NullMetadata)
	right := material.New(testJob, tsRight, id, material.WOFF2, metadata.NullMetadata)

	ratio, ok, err := d.Compute(left, right)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 0.0, ratio)
}

func TestComputeReadsFromStore(t *testing.T) {
	s := newTestStore(t)
	d := NewDiffer(s, zaptest.NewLogger(t))

	left := write(t, s, tsLeft, material.TXT, "/a", []byte("a\nb\nc\nd\n"))
	right := write(t, s, tsRight, material.TXT, "/a", []byte("a\nb\nX\nd\n"))

	ratio, ok, err := d.Compute(left, right)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 25.0, ratio)
}

func TestProcess(t *testing.T) {
	s := newTestStore(t)
	d := NewDiffer(s, zaptest.NewLogger(t))

	base := encodePNG(t, 2, 2)
	changed := encodePNG(t, 2, 2, pixel{0, 0, color.NRGBA{A: 255}})

	write(t, s, tsLeft, material.PNG, "/same", base)
	write(t, s, tsRight, material.PNG, "/same", base)
	write(t, s, tsLeft, material.PNG, "/changed", base)
	write(t, s, tsRight, material.PNG, "/changed", changed)
	write(t, s, tsLeft, material.PNG, "/corrupt", base)
	write(t, s, tsRight, material.PNG, "/corrupt", []byte("definitely not a png"))
	write(t, s, tsLeft, material.WOFF2, "/font", []byte("font-left"))
	write(t, s, tsRight, material.WOFF2, "/font", []byte("font-right"))
	write(t, s, tsLeft, material.PNG, "/left-only", base)

	left, err := s.Select(testJob, tsLeft, metadata.NullQuery)
	require.NoError(t, err)
	right, err := s.Select(testJob, tsRight, metadata.NullQuery)
	require.NoError(t, err)

	g, err := reduce.Build(reduce.Config{
		Left:     left,
		Right:    right,
		SortKeys: metadata.SortKeys{metadata.KeyURLPath},
	})
	require.NoError(t, err)

	out, err := d.Process(g)
	require.NoError(t, err)
	require.Equal(t, g.Size(), out.Size())

	byPath := map[string]reduce.MaterialProduct{}
	for _, p := range out.Products() {
		v, _ := p.Primary().Metadata().Get(metadata.KeyURLPath)
		byPath[v] = p
	}

	ratio, ok := byPath["/same"].DiffRatio()
	assert.True(t, ok)
	assert.Equal(t, 0.0, ratio)

	ratio, ok = byPath["/changed"].DiffRatio()
	assert.True(t, ok)
	assert.Equal(t, 25.0, ratio)

	_, ok = byPath["/corrupt"].DiffRatio()
	assert.False(t, ok)
	var dce *DiffComputationError
	require.ErrorAs(t, byPath["/corrupt"].Err(), &dce)
	assert.Equal(t, byPath["/corrupt"].Right.ID(), dce.Right)

	_, ok = byPath["/font"].DiffRatio()
	assert.False(t, ok)
	assert.NoError(t, byPath["/font"].Err())

	_, ok = byPath["/left-only"].DiffRatio()
	assert.False(t, ok)

	assert.Equal(t, 1, out.CountWarning())
	assert.Error(t, out.Errors())

	for _, p := range g.Products() {
		_, ok := p.DiffRatio()
		assert.False(t, ok, "input group must stay untouched")
	}
}

func TestProcessAsPipelineStage(t *testing.T) {
	d := NewDiffer(noReads{t}, nil)
	g, err := reduce.Build(reduce.Config{})
	require.NoError(t, err)

	out, err := reduce.Pipeline(d.Process, reduce.Resort([]string{metadata.KeyURLPath}))(g)
	require.NoError(t, err)
	assert.Equal(t, 0, out.Size())
}

func TestProcessLogsFailedProducts(t *testing.T) {
	s := newTestStore(t)
	core, logs := observer.New(zap.WarnLevel)
	d := NewDiffer(s, zap.New(core))

	left := write(t, s, tsLeft, material.TXT, "/a", []byte("fine\n"))
	right := write(t, s, tsRight, material.TXT, "/a", []byte{0xff, 0xfe})

	g, err := reduce.NewGroup(reduce.Config{})
	require.NoError(t, err)
	g.Add(reduce.NewMaterialProduct(left, right, metadata.NullQuery))

	out, err := d.Process(g)
	require.NoError(t, err)
	require.ErrorIs(t, out.Get(0).Err(), ErrInvalidUTF8)

	entries := logs.FilterMessage("failed to compute diff").All()
	require.Len(t, entries, 1)
	assert.Equal(t, right.ID().String(), entries[0].ContextMap()["right"])
}
