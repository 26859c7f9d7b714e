package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/khaledhikmat/framepred-go/model"
	"github.com/khaledhikmat/framepred-go/service/lgr"
	"github.com/khaledhikmat/framepred-go/service/metrics"
	"github.com/khaledhikmat/framepred-go/tensor"
)

const (
	DefaultResizeHeight = 256
	DefaultResizeWidth  = 256
)

// Extensions accepted when a folder may mix image formats
var imageExtensions = []string{".jpg", ".jpeg", ".png", ".bmp", ".tif", ".tiff", ".webp"}

// DataLoader indexes a folder of videos, where every sub folder holds the
// frames of one video, and streams randomly placed clips out of them.
type DataLoader struct {
	svcs   ServicesFactory
	dir    string
	height int
	width  int
	exts   map[string]bool
	reader FrameReader

	videos map[string]VideoInfo
	names  []string
}

// NewDataLoader indexes the frames of videoFolder that carry the configured
// frame extension.
func NewDataLoader(svcs ServicesFactory, videoFolder string, height, width int) (*DataLoader, error) {
	ext := svcs.CfgSvc.GetFrameExtension()
	if ext == "" {
		ext = ".jpg"
	}
	return newDataLoader(svcs, videoFolder, height, width, []string{ext})
}

func newDataLoader(svcs ServicesFactory, videoFolder string, height, width int, exts []string) (*DataLoader, error) {
	if height <= 0 {
		height = DefaultResizeHeight
	}
	if width <= 0 {
		width = DefaultResizeWidth
	}

	accepted := make(map[string]bool, len(exts))
	for _, ext := range exts {
		accepted[strings.ToLower(ext)] = true
	}

	l := &DataLoader{
		svcs:   svcs,
		dir:    videoFolder,
		height: height,
		width:  width,
		exts:   accepted,
		reader: LoadFrame,
		videos: map[string]VideoInfo{},
	}

	if err := l.setup(); err != nil {
		return nil, err
	}

	lgr.Logger.Info(
		"data loader initialized",
		slog.String("folder", videoFolder),
		slog.Int("videos", len(l.names)),
		slog.Int("height", height),
		slog.Int("width", width),
	)
	return l, nil
}

// WithReader swaps the frame decoder, mostly for tests.
func (l *DataLoader) WithReader(reader FrameReader) *DataLoader {
	l.reader = reader
	return l
}

func (l *DataLoader) setup() error {
	info, err := os.Stat(l.dir)
	if err != nil {
		return fmt.Errorf("video folder %s: %w", l.dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("video folder %s is not a directory", l.dir)
	}

	entries, err := filepath.Glob(filepath.Join(l.dir, "*"))
	if err != nil {
		return err
	}
	sort.Strings(entries)

	for _, entry := range entries {
		st, err := os.Stat(entry)
		if err != nil || !st.IsDir() {
			continue
		}

		files, err := filepath.Glob(filepath.Join(entry, "*"))
		if err != nil {
			return err
		}
		sort.Strings(files)

		frames := make([]string, 0, len(files))
		for _, f := range files {
			if !l.exts[strings.ToLower(filepath.Ext(f))] {
				continue
			}
			if st, err := os.Stat(f); err != nil || st.IsDir() {
				continue
			}
			frames = append(frames, f)
		}

		name := filepath.Base(entry)
		l.videos[name] = VideoInfo{
			Name:   name,
			Path:   entry,
			Frames: frames,
			Length: len(frames),
		}
		l.names = append(l.names, name)
	}
	return nil
}

func (l *DataLoader) Videos() []VideoInfo {
	out := make([]VideoInfo, 0, len(l.names))
	for _, name := range l.names {
		out = append(out, l.videos[name])
	}
	return out
}

func (l *DataLoader) Video(name string) (VideoInfo, error) {
	v, ok := l.videos[name]
	if !ok {
		return VideoInfo{}, fmt.Errorf("video = %s is not in [%s]", name, strings.Join(l.names, ", "))
	}
	return v, nil
}

func (l *DataLoader) Height() int {
	return l.height
}

func (l *DataLoader) Width() int {
	return l.width
}

// VideoClip loads frames [start, end) of a video and concatenates them along
// the channel axis.
func (l *DataLoader) VideoClip(name string, start, end int) (tensor.Tensor, error) {
	v, err := l.Video(name)
	if err != nil {
		return tensor.Tensor{}, err
	}
	if start < 0 || end > v.Length || start >= end {
		return tensor.Tensor{}, fmt.Errorf("clip [%d, %d) out of range for video %s with %d frames", start, end, name, v.Length)
	}
	return l.loadClip(clipRequest{Video: v, Start: start, End: end})
}

func (l *DataLoader) loadClip(req clipRequest) (tensor.Tensor, error) {
	frames := make([]tensor.Tensor, 0, req.End-req.Start)
	for i := req.Start; i < req.End; i++ {
		f, err := l.reader(req.Video.Frames[i], l.height, l.width)
		if err != nil {
			return tensor.Tensor{}, err
		}
		frames = append(frames, f)
	}
	return tensor.ConcatChannels(frames...)
}

// Batches streams batches of clips of timeSteps+numPred frames until ctx is
// cancelled. Videos are visited round robin and each clip start is drawn
// uniformly from [0, length-clipLength).
func (l *DataLoader) Batches(ctx context.Context, errorStream chan interface{}, statsStream chan interface{}, batchSize, timeSteps, numPred int) (chan Batch, error) {
	if batchSize < 1 || timeSteps < 1 || numPred < 1 {
		return nil, fmt.Errorf("invalid batch size %d, time steps %d or predictions %d", batchSize, timeSteps, numPred)
	}
	clipLength := timeSteps + numPred

	eligible := []VideoInfo{}
	for _, v := range l.Videos() {
		if v.Length <= clipLength {
			lgr.Logger.Warn(
				"video is too short to sample clips from",
				slog.String("video", v.Name),
				slog.Int("frames", v.Length),
				slog.Int("clipLength", clipLength),
			)
			continue
		}
		eligible = append(eligible, v)
	}
	if len(eligible) == 0 {
		return nil, fmt.Errorf("no video in %s has more than %d frames", l.dir, clipLength)
	}

	cfgSvc := l.svcs.CfgSvc
	seed := cfgSvc.GetSeed()

	lgr.Logger.Info(
		"generator dataset",
		slog.Int("videos", len(eligible)),
		slog.String("shape", fmt.Sprintf("[%d %d %d %d]", batchSize, l.height, l.width, clipLength*3)),
		slog.Int("prefetch", cfgSvc.GetPrefetchSize()),
		slog.Int("shuffle", cfgSvc.GetShuffleSize()),
	)

	requests := l.sampler(ctx, eligible, clipLength, rand.New(rand.NewPCG(seed, seed)))
	clips := l.clipLoaders(ctx, errorStream, statsStream, requests, cfgSvc.GetLoaderMaxWorkers(), cfgSvc.GetPrefetchSize())
	shuffled := shuffler(ctx, clips, cfgSvc.GetShuffleSize(), rand.New(rand.NewPCG(seed, seed+1)))
	return batcher(ctx, errorStream, shuffled, batchSize), nil
}

func (l *DataLoader) sampler(ctx context.Context, videos []VideoInfo, clipLength int, rng *rand.Rand) chan clipRequest {
	out := make(chan clipRequest)

	go func() {
		defer close(out)

		for v := 0; ; v = (v + 1) % len(videos) {
			video := videos[v]
			start := rng.IntN(video.Length - clipLength)

			select {
			case <-ctx.Done():
				return
			case out <- clipRequest{Video: video, Start: start, End: start + clipLength}:
			}
		}
	}()

	return out
}

// clipLoaders launches workers that compete on decoding clip requests. The
// returned channel is the prefetch buffer.
func (l *DataLoader) clipLoaders(ctx context.Context, errorStream chan interface{}, statsStream chan interface{}, in chan clipRequest, workers, prefetch int) chan Clip {
	out := make(chan Clip, max(prefetch, 0))
	wg := sync.WaitGroup{}

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			metrics.ActiveWorkers.WithLabelValues("loader").Inc()
			defer metrics.ActiveWorkers.WithLabelValues("loader").Dec()

			clips := 0
			frames := 0
			errors := 0
			beginTime := time.Now().Unix()
			var totalLoadTime time.Duration

			defer func() {
				var avgLoadTime float64
				if clips > 0 {
					avgLoadTime = totalLoadTime.Seconds() / float64(clips)
				}
				report(statsStream, model.LoaderStats{
					Name:        "clipLoader",
					Worker:      worker,
					Clips:       clips,
					Frames:      frames,
					Errors:      errors,
					Uptime:      time.Now().Unix() - beginTime,
					AvgLoadTime: avgLoadTime,
				})
			}()

			for req := range in {
				started := time.Now()
				data, err := l.loadClip(req)
				if err != nil {
					errors++
					metrics.LoadErrorsTotal.WithLabelValues("clip").Inc()
					report(errorStream, model.GenError("data_loader",
						err,
						map[string]interface{}{"video": req.Video.Name, "start": req.Start},
						"error loading clip from video %s",
						req.Video.Name))
					continue
				}
				clips++
				frames += req.End - req.Start
				totalLoadTime += time.Since(started)
				metrics.ClipsLoadedTotal.Inc()

				select {
				case <-ctx.Done():
					lgr.Logger.Info(
						"clip loader worker context cancelled",
						slog.Int("worker", worker),
					)
					return
				case out <- Clip{Video: req.Video.Name, Start: req.Start, Data: data}:
				}
			}
		}(i)
	}

	go func() {
		wg.Wait()
		close(out)
	}()

	return out
}
