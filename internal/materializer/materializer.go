// Package materializer copies every object of a connector into the store as
// the materials of one job run.
package materializer

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/alexeynavarkin/materialstore/internal/connector"
	"github.com/alexeynavarkin/materialstore/internal/material"
	"github.com/alexeynavarkin/materialstore/internal/metadata"
	"github.com/alexeynavarkin/materialstore/internal/store"
)

const (
	traverseChanSize = 1024
)

type Materializer struct {
	store *store.Store
	con   connector.Connector
	lg    *zap.Logger
}

func NewMaterializer(
	st *store.Store,
	con connector.Connector,
	lg *zap.Logger,
) *Materializer {
	if lg == nil {
		lg = zap.NewNop()
	}
	return &Materializer{
		store: st,
		con:   con,
		lg:    lg,
	}
}

// Materialize writes each object as a material of jobName at jobTimestamp.
// The file type is sniffed from the content and the metadata is derived
// from the object's URL. The first failure cancels the traversal.
func (m *Materializer) Materialize(
	ctx context.Context,
	jobName material.JobName,
	jobTimestamp material.JobTimestamp,
) (material.MaterialList, error) {
	objCh := make(chan connector.Object, traverseChanSize)
	eg, ctx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		defer close(objCh)
		if err := m.con.Traverse(ctx, objCh); err != nil {
			return fmt.Errorf("traverse: %w", err)
		}
		return nil
	})

	var written []material.Material
	eg.Go(func() error {
		for obj := range objCh {
			mat, err := m.materialize(ctx, jobName, jobTimestamp, obj)
			if err != nil {
				return err
			}
			written = append(written, mat)
		}
		return nil
	})

	if err := eg.Wait(); err != nil {
		return material.NullMaterialList, err
	}

	m.lg.Info("materialized",
		zap.Stringer("job", jobName),
		zap.Stringer("timestamp", jobTimestamp),
		zap.Int("count", len(written)),
	)
	return material.NewMaterialList(jobName, jobTimestamp, metadata.NullQuery, written), nil
}

func (m *Materializer) materialize(
	ctx context.Context,
	jobName material.JobName,
	jobTimestamp material.JobTimestamp,
	obj connector.Object,
) (material.Material, error) {
	lg := m.lg.With(zap.String("path", obj.Path))
	lg.Debug("fetching object")

	objReader, err := m.con.Get(ctx, obj)
	if err != nil {
		return material.NullMaterial, fmt.Errorf("get %s: %w", obj.Path, err)
	}
	defer objReader.Close()

	md := metadata.NewBuilder().PutURL(obj.URL).Build()
	mat, err := m.store.Write(jobName, jobTimestamp, material.Unknown, md, objReader)
	if err != nil {
		return material.NullMaterial, fmt.Errorf("write %s: %w", obj.Path, err)
	}

	lg.Info("object materialized", zap.Stringer("id", mat.ID()), zap.Stringer("fileType", mat.FileType()))
	return mat, nil
}
