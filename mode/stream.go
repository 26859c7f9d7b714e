package mode

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/khaledhikmat/framepred-go/model"
	"github.com/khaledhikmat/framepred-go/pipeline"
	"github.com/khaledhikmat/framepred-go/service/lgr"
)

// Stream feeds batches of clips out of the video folder and logs their
// shapes. It stops after the configured number of batches, or when
// cancelled if that number is 0.
func Stream(canxCtx context.Context, svcs pipeline.ServicesFactory) error {
	cfgSvc := svcs.CfgSvc
	runID := uuid.NewString()
	ctx := lgr.WithRun(canxCtx, runID)

	loader, err := pipeline.NewDataLoader(svcs, cfgSvc.GetVideoFolder(), cfgSvc.GetResizeHeight(), cfgSvc.GetResizeWidth())
	if err != nil {
		return err
	}

	// Create error and stats streams
	errorStream := make(chan interface{})
	statsStream := make(chan interface{})

	// The pipeline gets its own context so that reaching max batches stops it
	pipeCtx, pipeCanxFn := context.WithCancel(ctx)
	defer pipeCanxFn()

	batches, err := loader.Batches(pipeCtx, errorStream, statsStream, cfgSvc.GetBatchSize(), cfgSvc.GetTimeSteps(), cfgSvc.GetNumPred())
	if err != nil {
		return err
	}

	beginTime := time.Now().Unix()
	maxBatches := cfgSvc.GetMaxBatches()
	streamStats := model.StreamStats{
		RunID: runID,
	}

	for {
		select {
		case <-canxCtx.Done():
			lgr.Logger.InfoContext(ctx,
				"stream context cancelled",
			)
			goto resume

		case b, ok := <-batches:
			if !ok {
				lgr.Logger.InfoContext(ctx,
					"batch stream closed",
				)
				goto resume
			}

			streamStats.Batches++
			streamStats.Clips += len(b.Clips)
			streamStats.Shape = b.Data.Shape

			lgr.Logger.InfoContext(ctx,
				"batch",
				slog.Int("index", b.Index),
				slog.String("shape", fmt.Sprint(b.Data.Shape)),
				slog.Any("clips", b.Clips),
			)

			if maxBatches > 0 && streamStats.Batches >= maxBatches {
				lgr.Logger.InfoContext(ctx,
					"max batches reached",
					slog.Int("batches", streamStats.Batches),
				)
				goto resume
			}

		case s := <-statsStream:
			procStats(svcs.DataSvc, s)

		case e := <-errorStream:
			procError(svcs.DataSvc, e)
		}
	}

resume:
	pipeCanxFn()

	streamStats.Uptime = time.Now().Unix() - beginTime
	streamStats.Timestamp = time.Now().Unix()
	procStats(svcs.DataSvc, streamStats)

	drain(svcs, "stream", statsStream, errorStream)
	return nil
}
