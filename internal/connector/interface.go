package connector

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"time"
)

type ConnectorType string

const defaultRetries = 3

const (
	ConnectorTypeWebdav ConnectorType = "webdav"
	ConnectorTypeDir    ConnectorType = "dir"
)

type Object struct {
	Name string
	Path string

	// URL locates the object at its source; it becomes the material's
	// URL.* metadata.
	URL *url.URL

	SizeBytes uint64

	ModifiedTimestamp *time.Time
	CreatedTimestamp  *time.Time
}

// Connector enumerates and fetches the objects of a source.
//
// Traverse sends every object to objCh and returns once the source is
// exhausted or ctx is done. It does not close objCh.
type Connector interface {
	Traverse(ctx context.Context, objCh chan<- Object) error
	Get(ctx context.Context, obj Object) (io.ReadCloser, error)
}

// FromURL picks a connector by scheme: http and https are served over
// WebDAV with the URL's user info as credentials, file and bare paths are
// read from the local file system.
func FromURL(raw string) (Connector, ConnectorType, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, "", fmt.Errorf("parsing target url: %w", err)
	}

	switch u.Scheme {
	case "http", "https":
		cfg := WebdavConnectorConfig{
			BaseURL:  u.Scheme + "://" + u.Host + u.Path,
			BasePath: "/",
			Username: u.User.Username(),
			Retries:  defaultRetries,
		}
		if password, ok := u.User.Password(); ok {
			cfg.Password = password
		}
		return NewWebdavConnector(cfg), ConnectorTypeWebdav, nil
	case "file", "":
		con, err := NewDirConnector(u.Path)
		if err != nil {
			return nil, "", err
		}
		return con, ConnectorTypeDir, nil
	default:
		return nil, "", fmt.Errorf("unsupported target scheme %q", u.Scheme)
	}
}

func send(ctx context.Context, objCh chan<- Object, obj Object) error {
	select {
	case objCh <- obj:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
