package material

import (
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ID is the lowercase hex SHA-1 of a material's bytes.
type ID string

const NullID ID = ""

func ComputeID(content []byte) ID {
	sum := sha1.Sum(content)
	return ID(hex.EncodeToString(sum[:]))
}

func ParseID(s string) (ID, error) {
	if len(s) != sha1.Size*2 {
		return NullID, fmt.Errorf("invalid id %q: want %d hex chars", s, sha1.Size*2)
	}
	if _, err := hex.DecodeString(s); err != nil {
		return NullID, fmt.Errorf("invalid id %q: %w", s, err)
	}
	return ID(strings.ToLower(s)), nil
}

func (id ID) String() string {
	return string(id)
}

func (id ID) Short() string {
	if len(id) < 7 {
		return string(id)
	}
	return string(id[:7])
}

type JobName string

const forbiddenJobNameChars = `/\:*?"<>|`

var ErrInvalidJobName = errors.New("invalid job name")

func NewJobName(s string) (JobName, error) {
	switch {
	case s == "":
		return "", fmt.Errorf("%w: empty", ErrInvalidJobName)
	case s == "." || s == "..":
		return "", fmt.Errorf("%w: %q", ErrInvalidJobName, s)
	case strings.TrimSpace(s) != s:
		return "", fmt.Errorf("%w: %q has surrounding spaces", ErrInvalidJobName, s)
	case strings.ContainsAny(s, forbiddenJobNameChars):
		return "", fmt.Errorf("%w: %q contains one of %s", ErrInvalidJobName, s, forbiddenJobNameChars)
	}
	for _, r := range s {
		if r < 0x20 || r == 0x7f {
			return "", fmt.Errorf("%w: %q contains control characters", ErrInvalidJobName, s)
		}
	}
	return JobName(s), nil
}

func (j JobName) String() string {
	return string(j)
}

// JobTimestamp identifies one run of a job. Formatted timestamps sort
// lexically in chronological order.
type JobTimestamp string

const (
	JobTimestampLayout = "20060102_150405"

	JobTimestampNull JobTimestamp = ""
	// JobTimestampLatest is resolved by the store to the most recent run.
	JobTimestampLatest JobTimestamp = "latest"
)

var ErrInvalidJobTimestamp = errors.New("invalid job timestamp")

func ParseJobTimestamp(s string) (JobTimestamp, error) {
	if s == string(JobTimestampLatest) {
		return JobTimestampLatest, nil
	}
	if _, err := time.ParseInLocation(JobTimestampLayout, s, time.Local); err != nil {
		return JobTimestampNull, fmt.Errorf("%w: %q", ErrInvalidJobTimestamp, s)
	}
	return JobTimestamp(s), nil
}

func JobTimestampOf(t time.Time) JobTimestamp {
	return JobTimestamp(t.Format(JobTimestampLayout))
}

func Now() JobTimestamp {
	return JobTimestampOf(time.Now())
}

// NowAfter returns the timestamp of clock() moved forward one second at a
// time until it differs from every timestamp in taken.
func NowAfter(clock func() time.Time, taken ...JobTimestamp) JobTimestamp {
	if clock == nil {
		clock = time.Now
	}
	t := clock().Truncate(time.Second)
	for {
		ts := JobTimestampOf(t)
		clash := false
		for _, other := range taken {
			if other == ts {
				clash = true
				break
			}
		}
		if !clash {
			return ts
		}
		t = t.Add(time.Second)
	}
}

func (ts JobTimestamp) IsNull() bool {
	return ts == JobTimestampNull
}

func (ts JobTimestamp) IsLatest() bool {
	return ts == JobTimestampLatest
}

func (ts JobTimestamp) Time() (time.Time, error) {
	return time.ParseInLocation(JobTimestampLayout, string(ts), time.Local)
}

func (ts JobTimestamp) String() string {
	return string(ts)
}
