package mode

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/xerrors"
	"gonum.org/v1/gonum/stat"

	"github.com/khaledhikmat/framepred-go/model"
	"github.com/khaledhikmat/framepred-go/pipeline"
	"github.com/khaledhikmat/framepred-go/service/lgr"
)

// Evaluate scores every generated frame against its ground truth and
// persists one summary per video.
func Evaluate(canxCtx context.Context, svcs pipeline.ServicesFactory) error {
	cfgSvc := svcs.CfgSvc
	runID := uuid.NewString()
	ctx := lgr.WithRun(canxCtx, runID)

	if cfgSvc.GetGeneratedFolder() == "" || cfgSvc.GetGroundTruthFolder() == "" {
		return xerrors.New("generated and ground truth folders are both required")
	}

	evaluator := pipeline.NewEvaluator(svcs, cfgSvc.GetResizeHeight(), cfgSvc.GetResizeWidth())
	pairs, err := evaluator.Pairs(cfgSvc.GetGeneratedFolder(), cfgSvc.GetGroundTruthFolder())
	if err != nil {
		return err
	}
	if len(pairs) == 0 {
		return xerrors.Errorf("no generated frame in %s has a ground truth in %s", cfgSvc.GetGeneratedFolder(), cfgSvc.GetGroundTruthFolder())
	}

	lgr.Logger.InfoContext(ctx,
		"evaluation started",
		slog.Int("pairs", len(pairs)),
		slog.String("generated", cfgSvc.GetGeneratedFolder()),
		slog.String("truth", cfgSvc.GetGroundTruthFolder()),
	)

	// Create error and stats streams
	errorStream := make(chan interface{})
	statsStream := make(chan interface{})

	resultStream, summaryStream := pipeline.Reporter(ctx, svcs, runID, errorStream)

	runResult := make(chan error, 1)
	go func() {
		// The reporter only summarizes once its input is closed
		defer close(resultStream)
		runResult <- evaluator.Run(ctx, errorStream, statsStream, pairs, resultStream)
	}()

	var runErr error

	for {
		select {
		case <-canxCtx.Done():
			lgr.Logger.InfoContext(ctx,
				"evaluate context cancelled",
			)
			goto resume

		case summaries, ok := <-summaryStream:
			if ok {
				logOverall(ctx, summaries)
			}
			runErr = <-runResult
			goto resume

		case s := <-statsStream:
			procStats(svcs.DataSvc, s)

		case e := <-errorStream:
			procError(svcs.DataSvc, e)
		}
	}

resume:
	drain(svcs, "evaluate", statsStream, errorStream)

	if runErr != nil && canxCtx.Err() == nil {
		return runErr
	}
	return nil
}

func logOverall(ctx context.Context, summaries []model.VideoSummary) {
	means := []float64{}
	frames := 0
	identical := 0
	for _, s := range summaries {
		frames += s.Frames
		identical += s.IdenticalFrames
		if s.Frames > s.IdenticalFrames {
			means = append(means, s.MeanPSNR)
		}
	}

	var meanPSNR float64
	if len(means) > 0 {
		meanPSNR = stat.Mean(means, nil)
	}

	lgr.Logger.InfoContext(ctx,
		"evaluation completed",
		slog.Int("videos", len(summaries)),
		slog.Int("frames", frames),
		slog.Int("identical", identical),
		slog.Float64("meanPsnr", meanPSNR),
	)
}
