package main

import (
	"fmt"
	"os"

	config "github.com/ThomasObenaus/go-conf"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/alexeynavarkin/materialstore/internal/store"
)

type Config struct {
	Store struct {
		Root     string `cfg:"{'name': 'root', 'desc': 'Store root directory', 'default': 'store'}"`
		IndexURL string `cfg:"{'name': 'index_url', 'desc': 'Postgres DSN for the index; empty keeps the index next to the objects', 'default': ''}"`
	} `cfg:"{'name': 'store'}"`

	Metrics struct {
		Textfile string `cfg:"{'name': 'textfile', 'desc': 'Write prometheus metrics to this file on exit', 'default': ''}"`
	} `cfg:"{'name': 'metrics'}"`

	Job struct {
		Name string `cfg:"{'name': 'name', 'desc': 'Job name'}"`
	} `cfg:"{'name': 'job'}"`

	Left struct {
		Timestamp string `cfg:"{'name': 'timestamp', 'desc': 'Left run timestamp or latest'}"`
		Label     string `cfg:"{'name': 'label', 'desc': 'Left side label', 'default': 'left'}"`
	} `cfg:"{'name': 'left'}"`

	Right struct {
		Timestamp string `cfg:"{'name': 'timestamp', 'desc': 'Right run timestamp or latest', 'default': 'latest'}"`
		Label     string `cfg:"{'name': 'label', 'desc': 'Right side label', 'default': 'right'}"`
	} `cfg:"{'name': 'right'}"`

	Reduce struct {
		Query          string  `cfg:"{'name': 'query', 'desc': 'Selects materials of both runs: k=v;k2~=regex', 'default': ''}"`
		IgnoreKeys     string  `cfg:"{'name': 'ignore_keys', 'desc': 'Metadata keys left out of pairing: a,b', 'default': ''}"`
		IdentifyValues string  `cfg:"{'name': 'identify_values', 'desc': 'Values reduced to whether they match: k=regex;k2=regex', 'default': ''}"`
		SortKeys       string  `cfg:"{'name': 'sort_keys', 'desc': 'Metadata keys products are sorted by: a,b', 'default': ''}"`
		Threshold      float64 `cfg:"{'name': 'threshold', 'desc': 'Diff ratio above which a product is a warning', 'default': 0.0}"`
		Tolerance      int     `cfg:"{'name': 'tolerance', 'desc': 'Per-channel image tolerance, 0-255', 'default': 0}"`
		FailOnWarning  bool    `cfg:"{'name': 'fail_on_warning', 'desc': 'Exit with status 1 when any product is a warning', 'default': false}"`
	} `cfg:"{'name': 'reduce'}"`
}

func main() {
	lg := zap.Must(zap.NewProduction())
	defer lg.Sync()

	cfg := Config{}

	cfgProvider, err := config.NewConfigProvider(
		&cfg,
		"MATERIALSTORE_REDUCE",
		"MATERIALSTORE_REDUCE",
	)
	if err != nil {
		lg.Fatal("failed to build config provider", zap.Error(err))
	}

	err = cfgProvider.ReadConfig(os.Args)
	if err != nil {
		fmt.Println(cfgProvider.Usage())
		os.Exit(-1)
	}

	st, err := store.Open(cfg.Store.Root, cfg.Store.IndexURL, lg)
	if err != nil {
		lg.Fatal("failed to open store", zap.Error(err))
	}
	defer st.Close()

	reg := prometheus.NewRegistry()
	st.SetMetrics(store.NewMetrics(reg))
	defer writeMetrics(lg, cfg.Metrics.Textfile, reg)

	res, err := run(st, options{
		JobName:        cfg.Job.Name,
		Left:           side{Timestamp: cfg.Left.Timestamp, Label: cfg.Left.Label},
		Right:          side{Timestamp: cfg.Right.Timestamp, Label: cfg.Right.Label},
		Query:          cfg.Reduce.Query,
		IgnoreKeys:     cfg.Reduce.IgnoreKeys,
		IdentifyValues: cfg.Reduce.IdentifyValues,
		SortKeys:       cfg.Reduce.SortKeys,
		Threshold:      cfg.Reduce.Threshold,
		Tolerance:      cfg.Reduce.Tolerance,
	}, lg)
	if err != nil {
		lg.Fatal("failed to reduce", zap.Error(err))
	}

	fmt.Println(res.Group.Summary())
	fmt.Println(st.Path(res.Model))
	fmt.Println(st.Path(res.Diagram))

	if cfg.Reduce.FailOnWarning && res.Group.CountWarning() > 0 {
		writeMetrics(lg, cfg.Metrics.Textfile, reg)
		st.Close()
		lg.Sync()
		os.Exit(1)
	}
}

func writeMetrics(lg *zap.Logger, path string, reg *prometheus.Registry) {
	if path == "" {
		return
	}
	if err := prometheus.WriteToTextfile(path, reg); err != nil {
		lg.Warn("failed to write metrics", zap.String("path", path), zap.Error(err))
	}
}
