package diff

import (
	"errors"
	"math"
	"unicode/utf8"

	"github.com/pmezard/go-difflib/difflib"
)

var ErrInvalidUTF8 = errors.New("content is not valid UTF-8")

// TextRatio aligns the lines of left and right and returns the share of
// lines, out of the longer side, that found no counterpart.
func TextRatio(left, right []byte) (float64, error) {
	if !utf8.Valid(left) || !utf8.Valid(right) {
		return 0, ErrInvalidUTF8
	}

	a := splitLines(left)
	b := splitLines(right)
	maxLines := max(len(a), len(b))
	if maxLines == 0 {
		return 0, nil
	}

	matched := 0
	m := difflib.NewMatcherWithJunk(a, b, false, nil)
	for _, block := range m.GetMatchingBlocks() {
		matched += block.Size
	}
	return round2(float64(maxLines-matched) * 100 / float64(maxLines)), nil
}

func splitLines(content []byte) []string {
	if len(content) == 0 {
		return nil
	}
	lines := difflib.SplitLines(string(content))
	// SplitLines yields an extra "\n" after a trailing newline
	if content[len(content)-1] == '\n' {
		lines = lines[:len(lines)-1]
	}
	return lines
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
