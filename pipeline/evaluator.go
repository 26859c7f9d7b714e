package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/khaledhikmat/framepred-go/model"
	"github.com/khaledhikmat/framepred-go/quality"
	"github.com/khaledhikmat/framepred-go/service/lgr"
	"github.com/khaledhikmat/framepred-go/service/metrics"
	"github.com/khaledhikmat/framepred-go/tensor"
)

// Evaluator scores generated frames against ground truth frames with PSNR
// and sharpness difference.
type Evaluator struct {
	svcs      ServicesFactory
	height    int
	width     int
	reader    FrameReader
	withMasks bool
}

func NewEvaluator(svcs ServicesFactory, height, width int) *Evaluator {
	return &Evaluator{
		svcs:      svcs,
		height:    height,
		width:     width,
		reader:    LoadFrame,
		withMasks: svcs.CfgSvc.GetDiffMaskFolder() != "",
	}
}

func (e *Evaluator) WithReader(reader FrameReader) *Evaluator {
	e.reader = reader
	return e
}

// Pairs matches the frames of every generated video with the ground truth
// frame of the same name, extension aside. Both folders may hold any common
// image format.
func (e *Evaluator) Pairs(generatedFolder, truthFolder string) ([]FramePair, error) {
	generated, err := newDataLoader(e.svcs, generatedFolder, e.height, e.width, imageExtensions)
	if err != nil {
		return nil, fmt.Errorf("indexing generated frames: %w", err)
	}
	truth, err := newDataLoader(e.svcs, truthFolder, e.height, e.width, imageExtensions)
	if err != nil {
		return nil, fmt.Errorf("indexing ground truth frames: %w", err)
	}

	pairs := []FramePair{}
	for _, gen := range generated.Videos() {
		gt, err := truth.Video(gen.Name)
		if err != nil {
			lgr.Logger.Warn(
				"generated video has no ground truth",
				slog.String("video", gen.Name),
			)
			continue
		}

		truthByStem := make(map[string]int, gt.Length)
		for i, f := range gt.Frames {
			truthByStem[stem(f)] = i
		}

		unmatched := 0
		for _, f := range gen.Frames {
			i, ok := truthByStem[stem(f)]
			if !ok {
				unmatched++
				continue
			}
			pairs = append(pairs, FramePair{
				Video:     gen.Name,
				Index:     i,
				Generated: f,
				Truth:     gt.Frames[i],
			})
		}

		if unmatched > 0 {
			lgr.Logger.Warn(
				"generated frames without ground truth",
				slog.String("video", gen.Name),
				slog.Int("unmatched", unmatched),
			)
		}
	}

	return pairs, nil
}

func stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Run feeds pairs to a pool of workers and sends every score to
// resultStream. It returns once all pairs are scored or ctx is cancelled.
func (e *Evaluator) Run(ctx context.Context, errorStream chan interface{}, statsStream chan interface{}, pairs []FramePair, resultStream chan ResultData) error {
	in := make(chan FramePair, 100)

	// Framer: route pairs to the workers
	go func() {
		defer close(in)
		for _, p := range pairs {
			select {
			case <-ctx.Done():
				lgr.Logger.Info("evaluator framer context cancelled")
				return
			case in <- p:
			}
		}
	}()

	proc := func(p FramePair) (ResultData, error) {
		gen, err := e.reader(p.Generated, e.height, e.width)
		if err != nil {
			return ResultData{}, err
		}
		gt, err := e.reader(p.Truth, e.height, e.width)
		if err != nil {
			return ResultData{}, err
		}
		return e.score(p, gen, gt)
	}

	wg := sync.WaitGroup{}
	for i := 0; i < e.svcs.CfgSvc.GetEvaluatorMaxWorkers(); i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			metrics.ActiveWorkers.WithLabelValues("evaluator").Inc()
			defer metrics.ActiveWorkers.WithLabelValues("evaluator").Dec()

			frames := 0
			errors := 0
			beginTime := time.Now().Unix()
			var totalProcTime time.Duration

			defer func() {
				var avgProcTime float64
				if frames > 0 {
					avgProcTime = totalProcTime.Seconds() / float64(frames)
				}
				report(statsStream, model.EvaluatorStats{
					Name:        "evaluator",
					Worker:      worker,
					Frames:      frames,
					Errors:      errors,
					Uptime:      time.Now().Unix() - beginTime,
					AvgProcTime: avgProcTime,
				})
			}()

			for p := range in {
				started := time.Now()
				result, err := proc(p)
				if err != nil {
					errors++
					metrics.LoadErrorsTotal.WithLabelValues("evaluation").Inc()
					report(errorStream, model.GenError("evaluator",
						err,
						map[string]interface{}{"video": p.Video, "index": p.Index},
						"error scoring frame %d of video %s",
						p.Index, p.Video))
					continue
				}
				frames++
				totalProcTime += time.Since(started)
				metrics.FramesEvaluatedTotal.Inc()

				select {
				case <-ctx.Done():
					lgr.Logger.Info(
						"evaluator worker context cancelled",
						slog.Int("worker", worker),
					)
					return
				case resultStream <- result:
				}
			}
		}(i)
	}

	wg.Wait()
	return ctx.Err()
}

func (e *Evaluator) score(p FramePair, gen, gt tensor.Tensor) (ResultData, error) {
	genBatch, err := tensor.Stack(gen)
	if err != nil {
		return ResultData{}, err
	}
	gtBatch, err := tensor.Stack(gt)
	if err != nil {
		return ResultData{}, err
	}

	psnr, err := quality.PerFramePSNR(genBatch, gtBatch)
	if err != nil {
		return ResultData{}, err
	}
	sharp, err := quality.PerFrameSharpDiff(genBatch, gtBatch, gen.Shape[2])
	if err != nil {
		return ResultData{}, err
	}

	rd := ResultData{
		Result: model.FrameResult{
			Video:     p.Video,
			Index:     p.Index,
			Generated: p.Generated,
			Truth:     p.Truth,
			PSNR:      float64(psnr[0]),
			SharpDiff: float64(sharp[0]),
		},
		Timestamp: time.Now(),
	}

	if e.withMasks {
		mask, err := quality.DiffMask(genBatch, gtBatch, -1, 1)
		if err != nil {
			return ResultData{}, err
		}
		rd.Mask, err = mask.Frame(0)
		if err != nil {
			return ResultData{}, err
		}
	}

	return rd, nil
}
