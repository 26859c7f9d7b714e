package mode

import (
	"context"
	"log/slog"
	"time"

	"github.com/khaledhikmat/framepred-go/model"
	"github.com/khaledhikmat/framepred-go/pipeline"
	"github.com/khaledhikmat/framepred-go/service/data"
	"github.com/khaledhikmat/framepred-go/service/lgr"
)

type Processor func(canxCtx context.Context, svcs pipeline.ServicesFactory) error

func procStats(datasvc data.IService, stats interface{}) {
	switch stats := stats.(type) {
	case model.LoaderStats:
		procLoaderStats(datasvc, stats)
	case model.StreamStats:
		procStreamStats(datasvc, stats)
	case model.EvaluatorStats:
		procEvaluatorStats(datasvc, stats)
	default:
		lgr.Logger.Error(
			"unknown stats type",
			slog.Any("stats", stats),
		)
	}
}

func procLoaderStats(datasvc data.IService, stats model.LoaderStats) {
	err := datasvc.NewLoaderStats(stats)
	if err != nil {
		lgr.Logger.Error(
			"failed to store loader stats",
			slog.Any("stats", stats),
			slog.Any("error", err),
		)
	}
}

func procStreamStats(datasvc data.IService, stats model.StreamStats) {
	err := datasvc.NewStreamStats(stats)
	if err != nil {
		lgr.Logger.Error(
			"failed to store stream stats",
			slog.Any("stats", stats),
			slog.Any("error", err),
		)
	}
}

func procEvaluatorStats(datasvc data.IService, stats model.EvaluatorStats) {
	err := datasvc.NewEvaluatorStats(stats)
	if err != nil {
		lgr.Logger.Error(
			"failed to store evaluator stats",
			slog.Any("stats", stats),
			slog.Any("error", err),
		)
	}
}

func procError(datasvc data.IService, err interface{}) {
	lgr.Logger.Warn(
		"pipeline error",
		slog.Any("error", err),
	)

	errTemp := datasvc.NewError(err)
	if errTemp != nil {
		lgr.Logger.Error(
			"failed to store error",
			slog.Any("error", errTemp),
		)
	}
}

// drain keeps persisting stats and errors until the shutdown period expires.
// Stages report on their way out, so the streams must stay drained for a
// while after cancellation.
func drain(svcs pipeline.ServicesFactory, name string, statsStream, errorStream chan interface{}) {
	lgr.Logger.Info(
		name + " is waiting for all go routines to exit",
	)

	period := shutdownPeriod(svcs)
	timer := time.NewTimer(period)
	defer timer.Stop()

	for {
		select {
		case <-timer.C:
			lgr.Logger.Info(
				name+" shutdown waiting period expired. Exiting now",
				slog.Duration("period", period),
			)
			return

		case s := <-statsStream:
			procStats(svcs.DataSvc, s)

		case e := <-errorStream:
			procError(svcs.DataSvc, e)
		}
	}
}

func shutdownPeriod(svcs pipeline.ServicesFactory) time.Duration {
	return time.Duration(svcs.CfgSvc.GetModeMaxShutdownTime()) * time.Second
}
