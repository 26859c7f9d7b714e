package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"

	"github.com/natefinch/lumberjack"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/khaledhikmat/framepred-go/model"
	"github.com/khaledhikmat/framepred-go/service/lgr"
	"github.com/khaledhikmat/framepred-go/service/metrics"
)

type videoScores struct {
	psnr      []float64
	sharp     []float64
	frames    int
	identical int
}

// Reporter drains scored frames until its input is closed. It logs every
// result as a JSON line, writes difference masks, and on close persists one
// summary per video and sends the summaries on the returned channel.
func Reporter(ctx context.Context, svcs ServicesFactory, runID string, errorStream chan interface{}) (chan ResultData, chan []model.VideoSummary) {
	in := make(chan ResultData, 100)
	done := make(chan []model.VideoSummary, 1)

	go func() {
		defer close(done)

		var resultsLogger *lumberjack.Logger
		if fn := svcs.CfgSvc.GetResultsLogFile(); fn != "" {
			resultsLogger = &lumberjack.Logger{
				Filename:   fn,
				MaxSize:    100, // MB
				MaxBackups: 5,
				MaxAge:     7,    // days
				Compress:   true, // compress old logs
			}
			defer resultsLogger.Close()
		}

		maskFolder := svcs.CfgSvc.GetDiffMaskFolder()
		scores := map[string]*videoScores{}

		for rd := range in {
			r := rd.Result

			vs, ok := scores[r.Video]
			if !ok {
				vs = &videoScores{}
				scores[r.Video] = vs
			}
			vs.frames++

			// JSON cannot carry infinities; identical frames are flagged instead
			if math.IsInf(r.PSNR, 1) {
				vs.identical++
				r.Identical = true
				r.PSNR = 0
			} else {
				vs.psnr = append(vs.psnr, r.PSNR)
				metrics.FramePSNR.Observe(r.PSNR)
			}
			if math.IsInf(r.SharpDiff, 0) || math.IsNaN(r.SharpDiff) {
				r.SharpDiff = 0
			} else {
				vs.sharp = append(vs.sharp, r.SharpDiff)
			}

			if maskFolder != "" && !rd.Mask.Empty() {
				fn := filepath.Join(maskFolder, r.Video, fmt.Sprintf("%s_mask.png", stem(r.Truth)))
				err := os.MkdirAll(filepath.Dir(fn), 0755)
				if err == nil {
					err = WriteMask(fn, rd.Mask)
				}
				if err != nil {
					report(errorStream, model.GenError("reporter",
						err,
						map[string]interface{}{"video": r.Video, "index": r.Index},
						"error writing difference mask %s",
						fn))
				} else {
					r.MaskPath = fn
				}
			}

			lgr.Logger.DebugContext(ctx,
				"frame scored",
				slog.String("video", r.Video),
				slog.Int("index", r.Index),
				slog.Float64("psnr", r.PSNR),
				slog.Float64("sharpDiff", r.SharpDiff),
			)

			if resultsLogger != nil {
				logResult(resultsLogger, runID, r)
			}
		}

		names := make([]string, 0, len(scores))
		for name := range scores {
			names = append(names, name)
		}
		sort.Strings(names)

		summaries := make([]model.VideoSummary, 0, len(names))
		for _, name := range names {
			summary := summarize(runID, name, scores[name])
			if err := svcs.DataSvc.NewVideoSummary(summary); err != nil {
				report(errorStream, model.GenError("reporter",
					err,
					map[string]interface{}{"video": name},
					"error storing summary of video %s",
					name))
			}

			lgr.Logger.InfoContext(ctx,
				"video evaluated",
				slog.String("video", name),
				slog.Int("frames", summary.Frames),
				slog.Float64("meanPsnr", summary.MeanPSNR),
				slog.Float64("stdDevPsnr", summary.StdDevPSNR),
				slog.Float64("meanSharpDiff", summary.MeanSharpDiff),
				slog.Int("identical", summary.IdenticalFrames),
			)
			summaries = append(summaries, summary)
		}

		done <- summaries
	}()

	return in, done
}

func summarize(runID, name string, vs *videoScores) model.VideoSummary {
	summary := model.VideoSummary{
		RunID:           runID,
		Video:           name,
		Frames:          vs.frames,
		IdenticalFrames: vs.identical,
	}
	if len(vs.psnr) > 0 {
		summary.MeanPSNR, summary.StdDevPSNR = stat.MeanStdDev(vs.psnr, nil)
		if len(vs.psnr) == 1 {
			summary.StdDevPSNR = 0
		}
		summary.MinPSNR = floats.Min(vs.psnr)
		summary.MaxPSNR = floats.Max(vs.psnr)
	}
	if len(vs.sharp) > 0 {
		summary.MeanSharpDiff = stat.Mean(vs.sharp, nil)
	}
	return summary
}

func logResult(w *lumberjack.Logger, runID string, r model.FrameResult) {
	entry := struct {
		RunID string `json:"runId"`
		model.FrameResult
	}{
		RunID:       runID,
		FrameResult: r,
	}

	jsonData, err := json.Marshal(entry)
	if err != nil {
		lgr.Logger.Error("error marshaling result", slog.Any("error", err))
		return
	}

	if _, err := w.Write(append(jsonData, '\n')); err != nil {
		lgr.Logger.Error("error writing to results log file", slog.Any("error", err))
	}
}
