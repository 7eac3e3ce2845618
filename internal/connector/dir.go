package connector

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path"
	"path/filepath"

	"github.com/alexeynavarkin/materialstore/pkg/utils"
)

// DirConnector serves the regular files below a local directory.
type DirConnector struct {
	root string
}

func NewDirConnector(root string) (*DirConnector, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", root, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", abs)
	}
	return &DirConnector{root: abs}, nil
}

// Traverse walks the directory in lexical order.
func (c *DirConnector) Traverse(ctx context.Context, objCh chan<- Object) error {
	return filepath.WalkDir(c.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(c.root, p)
		if err != nil {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}

		objPath := "/" + filepath.ToSlash(rel)
		return send(ctx, objCh, Object{
			Name:              d.Name(),
			Path:              objPath,
			URL:               &url.URL{Scheme: "file", Path: path.Join(filepath.ToSlash(c.root), objPath)},
			SizeBytes:         uint64(info.Size()),
			ModifiedTimestamp: utils.Ptr(info.ModTime()),
		})
	})
}

func (c *DirConnector) Get(ctx context.Context, obj Object) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return os.Open(filepath.Join(c.root, filepath.FromSlash(obj.Path)))
}
