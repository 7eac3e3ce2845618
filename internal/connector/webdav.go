package connector

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/studio-b12/gowebdav"

	"github.com/alexeynavarkin/materialstore/pkg/utils"
)

type WebdavConnectorConfig struct {
	BaseURL  string
	BasePath string
	Username string
	Password string

	// Retries is how many times a failed listing or download is repeated
	// with exponential backoff starting at RetryInterval.
	Retries       uint64
	RetryInterval time.Duration
}

type WebdavConnector struct {
	baseURL  string
	basePath string

	retries       uint64
	retryInterval time.Duration

	webdavClient *gowebdav.Client
}

func NewWebdavConnector(cfg WebdavConnectorConfig) *WebdavConnector {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/"
	}
	return &WebdavConnector{
		baseURL:       strings.TrimSuffix(cfg.BaseURL, "/"),
		basePath:      basePath,
		retries:       cfg.Retries,
		retryInterval: cfg.RetryInterval,
		webdavClient: gowebdav.NewClient(
			cfg.BaseURL,
			cfg.Username,
			cfg.Password,
		),
	}
}

// Traverse walks the tree breadth first. Directory entries are visited in
// the order the server lists them.
func (wi *WebdavConnector) Traverse(ctx context.Context, objCh chan<- Object) error {
	base, err := url.Parse(wi.baseURL)
	if err != nil {
		return fmt.Errorf("parsing base url: %w", err)
	}

	queue := make([]string, 0)
	queue = append(queue, wi.basePath)

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}

		dir := queue[0]
		queue = queue[1:]

		var objects []os.FileInfo
		err := wi.retry(ctx, func() error {
			var err error
			objects, err = wi.webdavClient.ReadDir(dir)
			return err
		})
		if err != nil {
			return fmt.Errorf("listing %s: %w", dir, err)
		}

		for _, obj := range objects {
			objPath := gowebdav.Join(dir, obj.Name())
			if obj.IsDir() {
				queue = append(queue, objPath)
				continue
			}

			objURL := *base
			objURL.Path = path.Join("/", base.Path, objPath)
			objURL.RawPath = ""

			err = send(ctx, objCh, Object{
				Name:              obj.Name(),
				Path:              objPath,
				URL:               &objURL,
				SizeBytes:         uint64(obj.Size()),
				ModifiedTimestamp: utils.Ptr(obj.ModTime()),
				CreatedTimestamp:  nil,
			})
			if err != nil {
				return err
			}
		}
	}

	return nil
}

func (c *WebdavConnector) Get(ctx context.Context, obj Object) (io.ReadCloser, error) {
	var rc io.ReadCloser
	err := c.retry(ctx, func() error {
		var err error
		rc, err = c.webdavClient.ReadStream(obj.Path)
		return err
	})
	if err != nil {
		return nil, err
	}
	return rc, nil
}

// retry repeats op until it succeeds, the retries are used up or ctx is
// done. Missing resources are not retried.
func (c *WebdavConnector) retry(ctx context.Context, op func() error) error {
	b := backoff.NewExponentialBackOff()
	if c.retryInterval > 0 {
		b.InitialInterval = c.retryInterval
	}
	return backoff.Retry(func() error {
		if err := ctx.Err(); err != nil {
			return backoff.Permanent(err)
		}
		err := op()
		if err != nil && gowebdav.IsErrNotFound(err) {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(backoff.WithMaxRetries(b, c.retries), ctx))
}
