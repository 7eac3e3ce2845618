package store

import (
	"crypto/sha1"
	"encoding/hex"
	"io"
	"slices"

	"github.com/gabriel-vasile/mimetype"

	"github.com/alexeynavarkin/materialstore/internal/material"
)

// splitReader fans r out to n pipe readers. A reader that is closed early
// is skipped from then on; a read error on r is passed to every reader.
func splitReader(r io.Reader, n int) []io.ReadCloser {
	prs := make([]*io.PipeReader, n)
	pws := make([]*io.PipeWriter, n)
	readers := make([]io.ReadCloser, n)

	for i := 0; i < n; i++ {
		pr, pw := io.Pipe()
		prs[i] = pr
		pws[i] = pw
		readers[i] = pr
	}

	go func() {
		var readErr error
		defer func() {
			for _, pw := range pws {
				pw.CloseWithError(readErr)
			}
		}()

		closedReaders := make([]int, 0)
		buf := make([]byte, 1024*32)
		for {
			n, err := r.Read(buf)
			if n > 0 {
				for i := 0; i < len(pws); i++ {
					if slices.Contains(closedReaders, i) {
						continue
					}

					_, wrErr := pws[i].Write(buf[:n])
					if wrErr != nil {
						closedReaders = append(closedReaders, i)
					}
				}
			}
			if err != nil {
				if err != io.EOF {
					readErr = err
				}
				break
			}
		}
	}()

	return readers
}

func calculateSHA1(reader io.ReadCloser) (material.ID, error) {
	defer reader.Close()

	hash := sha1.New()
	_, err := io.Copy(hash, reader)
	if err != nil {
		return material.NullID, err
	}

	return material.ID(hex.EncodeToString(hash.Sum(nil))), nil
}

func detectFileType(reader io.ReadCloser) (material.FileType, error) {
	defer reader.Close()

	objMimetype, err := mimetype.DetectReader(reader)
	if err != nil {
		return material.Unknown, err
	}

	return material.DetectedFileType(objMimetype), nil
}
