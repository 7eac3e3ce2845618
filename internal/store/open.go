package store

import (
	"strings"

	"go.uber.org/zap"

	"github.com/alexeynavarkin/materialstore/internal/repository/index_repo"
)

// Open creates a Store at root. An indexURL with a postgres scheme keeps
// the index in that database; otherwise index files live inside root.
func Open(root, indexURL string, lg *zap.Logger) (*Store, error) {
	if lg == nil {
		lg = zap.NewNop()
	}

	var idx index_repo.Index
	switch {
	case strings.HasPrefix(indexURL, "postgres://"), strings.HasPrefix(indexURL, "postgresql://"):
		pg, err := index_repo.OpenPostgresIndex(indexURL)
		if err != nil {
			return nil, ioErr("open index", "", err)
		}
		lg.Info("using postgres index")
		idx = pg
	default:
		idx = index_repo.NewFileIndex(root)
	}

	s, err := NewStore(root, idx, lg)
	if err != nil {
		idx.Close()
		return nil, err
	}
	return s, nil
}
