package cmd

import (
	"github.com/Rishwanth-M/finboard/internal/cache"
	"github.com/Rishwanth-M/finboard/internal/dashboard"
	"github.com/Rishwanth-M/finboard/internal/fetch"
	"github.com/Rishwanth-M/finboard/internal/fetchlog"
	"github.com/Rishwanth-M/finboard/internal/metrics"
)

// app wires the shared components from the loaded config.
type app struct {
	board   *dashboard.Board
	gateway *fetch.Gateway
	metrics *metrics.Metrics
	history *fetchlog.Log
}

func newApp() (*app, error) {
	a := &app{board: dashboard.NewBoard()}
	if err := a.board.LoadFile(cfg.DashboardFile); err != nil {
		return nil, err
	}

	var cacheOpts []cache.Option
	fetchOpts := []fetch.Option{fetch.WithLogger(logger)}
	if cfg.Metrics.Enabled {
		a.metrics = metrics.New()
		cacheOpts = append(cacheOpts, cache.WithObserver(a.metrics.CacheObserver()))
		fetchOpts = append(fetchOpts, fetch.WithRecorder(a.metrics))
	}
	if cfg.FetchLog.Path != "" {
		l, err := fetchlog.Open(cfg.FetchLog.Path, logger)
		if err != nil {
			return nil, err
		}
		a.history = l
		fetchOpts = append(fetchOpts, fetch.WithRecorder(l))
	}

	a.gateway = fetch.New(cfg.Gateway(), cache.New(cacheOpts...), fetchOpts...)
	return a, nil
}

func (a *app) Close() error {
	if a.history == nil {
		return nil
	}
	return a.history.Close()
}
