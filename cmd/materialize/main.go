package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	config "github.com/ThomasObenaus/go-conf"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/alexeynavarkin/materialstore/internal/connector"
	"github.com/alexeynavarkin/materialstore/internal/material"
	"github.com/alexeynavarkin/materialstore/internal/materializer"
	"github.com/alexeynavarkin/materialstore/internal/store"
)

type Config struct {
	Target struct {
		URL string `cfg:"{'name': 'url', 'desc': 'WebDAV URL (http[s]://user:pass@host/path) or local directory'}"`
	} `cfg:"{'name': 'target'}"`

	Store struct {
		Root     string `cfg:"{'name': 'root', 'desc': 'Store root directory', 'default': 'store'}"`
		IndexURL string `cfg:"{'name': 'index_url', 'desc': 'Postgres DSN for the index; empty keeps the index next to the objects', 'default': ''}"`
	} `cfg:"{'name': 'store'}"`

	Metrics struct {
		Textfile string `cfg:"{'name': 'textfile', 'desc': 'Write prometheus metrics to this file on exit', 'default': ''}"`
	} `cfg:"{'name': 'metrics'}"`

	Job struct {
		Name      string `cfg:"{'name': 'name', 'desc': 'Job name'}"`
		Timestamp string `cfg:"{'name': 'timestamp', 'desc': 'Run timestamp (yyyyMMdd_HHmmss); empty means now', 'default': ''}"`
	} `cfg:"{'name': 'job'}"`
}

func main() {
	lg := zap.Must(zap.NewProduction())
	defer lg.Sync()

	cfg := Config{}

	cfgProvider, err := config.NewConfigProvider(
		&cfg,
		"MATERIALSTORE_MATERIALIZE",
		"MATERIALSTORE_MATERIALIZE",
	)
	if err != nil {
		lg.Fatal("failed to build config provider", zap.Error(err))
	}

	err = cfgProvider.ReadConfig(os.Args)
	if err != nil {
		fmt.Println(cfgProvider.Usage())
		os.Exit(-1)
	}

	jobName, err := material.NewJobName(cfg.Job.Name)
	if err != nil {
		lg.Fatal("invalid job name", zap.Error(err))
	}
	jobTimestamp := material.Now()
	if cfg.Job.Timestamp != "" {
		jobTimestamp, err = material.ParseJobTimestamp(cfg.Job.Timestamp)
		if err != nil {
			lg.Fatal("invalid job timestamp", zap.Error(err))
		}
	}

	con, conType, err := connector.FromURL(cfg.Target.URL)
	if err != nil {
		lg.Fatal("failed to build connector", zap.Error(err))
	}

	st, err := store.Open(cfg.Store.Root, cfg.Store.IndexURL, lg)
	if err != nil {
		lg.Fatal("failed to open store", zap.Error(err))
	}
	defer st.Close()

	reg := prometheus.NewRegistry()
	st.SetMetrics(store.NewMetrics(reg))
	defer writeMetrics(lg, cfg.Metrics.Textfile, reg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	lg.Info("materializing",
		zap.String("connector", string(conType)),
		zap.Stringer("job", jobName),
		zap.Stringer("timestamp", jobTimestamp),
	)
	list, err := materializer.NewMaterializer(st, con, lg).Materialize(ctx, jobName, jobTimestamp)
	if err != nil {
		lg.Fatal("failed to materialize", zap.Error(err))
	}
	fmt.Printf("%s/%s: %d materials\n", jobName, jobTimestamp, list.Len())
}

func writeMetrics(lg *zap.Logger, path string, reg *prometheus.Registry) {
	if path == "" {
		return
	}
	if err := prometheus.WriteToTextfile(path, reg); err != nil {
		lg.Warn("failed to write metrics", zap.String("path", path), zap.Error(err))
	}
}
