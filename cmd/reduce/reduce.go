package main

import (
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/alexeynavarkin/materialstore/internal/diff"
	"github.com/alexeynavarkin/materialstore/internal/material"
	"github.com/alexeynavarkin/materialstore/internal/metadata"
	"github.com/alexeynavarkin/materialstore/internal/reduce"
	"github.com/alexeynavarkin/materialstore/internal/store"
)

const (
	keyReport     = "report"
	keySourceJob  = "job"
	reportModel   = "model"
	reportDiagram = "diagram"

	reportJobSuffix = "_reduce"
)

// reportJobName is the job that receives the reports of jobName, kept apart
// so that latest on the source job still resolves to a job execution.
func reportJobName(jobName material.JobName) material.JobName {
	return jobName + reportJobSuffix
}

type side struct {
	Timestamp string
	Label     string
}

type options struct {
	JobName        string
	Left, Right    side
	Query          string
	IgnoreKeys     string
	IdentifyValues string
	SortKeys       string
	Threshold      float64
	Tolerance      int
}

type result struct {
	Group   *reduce.Group
	Model   material.Material
	Diagram material.Material
}

// run selects both runs, pairs and diffs them, and stores the report model
// and diagram under the report job at the result timestamp.
func run(st *store.Store, opts options, lg *zap.Logger) (*result, error) {
	jobName, err := material.NewJobName(opts.JobName)
	if err != nil {
		return nil, err
	}
	query, err := parseQuery(opts.Query)
	if err != nil {
		return nil, err
	}
	identify, err := parseIdentify(opts.IdentifyValues)
	if err != nil {
		return nil, err
	}
	if opts.Tolerance < 0 || opts.Tolerance > 255 {
		return nil, fmt.Errorf("tolerance %d out of range [0, 255]", opts.Tolerance)
	}

	left, err := selectSide(st, jobName, opts.Left, query)
	if err != nil {
		return nil, fmt.Errorf("left: %w", err)
	}
	right, err := selectSide(st, jobName, opts.Right, query)
	if err != nil {
		return nil, fmt.Errorf("right: %w", err)
	}

	g, err := reduce.Build(reduce.Config{
		Left:           left,
		Right:          right,
		LabelLeft:      opts.Left.Label,
		LabelRight:     opts.Right.Label,
		IgnoreKeys:     metadata.NewIgnoreKeys(parseList(opts.IgnoreKeys)...),
		IdentifyValues: identify,
		SortKeys:       metadata.SortKeys(parseList(opts.SortKeys)),
		Threshold:      opts.Threshold,
	})
	if err != nil {
		return nil, err
	}

	differ := diff.NewDiffer(st, lg, diff.WithTolerance(uint8(opts.Tolerance)))
	g, err = reduce.Pipeline(differ.Process)(g)
	if err != nil {
		return nil, err
	}
	if err := g.Errors(); err != nil {
		lg.Warn("some products could not be compared", zap.Error(err))
	}

	res := &result{Group: g}

	model, err := json.MarshalIndent(g.TemplateModel(), "", "  ")
	if err != nil {
		return nil, err
	}
	res.Model, err = writeReport(st, g, reportModel, material.JSON, model)
	if err != nil {
		return nil, err
	}
	res.Diagram, err = writeReport(st, g, reportDiagram, material.DOT, []byte(reduce.ToDot(g)))
	if err != nil {
		return nil, err
	}

	lg.Info("reduced", zap.String("summary", g.Summary()), zap.String("model", st.Path(res.Model)))
	return res, nil
}

func selectSide(st *store.Store, jobName material.JobName, s side, query metadata.Query) (material.MaterialList, error) {
	ts := material.JobTimestampLatest
	if s.Timestamp != "" && s.Timestamp != string(material.JobTimestampLatest) {
		parsed, err := material.ParseJobTimestamp(s.Timestamp)
		if err != nil {
			return material.NullMaterialList, err
		}
		ts = parsed
	}
	return st.Select(jobName, ts, query)
}

func writeReport(st *store.Store, g *reduce.Group, kind string, ft material.FileType, content []byte) (material.Material, error) {
	md := metadata.NewBuilder().
		Put(keyReport, kind).
		Put(keySourceJob, string(g.JobName())).
		Put("timestamp.left", string(g.Left().JobTimestamp())).
		Put("timestamp.right", string(g.Right().JobTimestamp())).
		Build()
	return st.WriteBytes(reportJobName(g.JobName()), g.ResultTimestamp(), ft, md, content)
}
