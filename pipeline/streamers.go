package pipeline

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/khaledhikmat/framepred-go/model"
	"github.com/khaledhikmat/framepred-go/service/lgr"
	"github.com/khaledhikmat/framepred-go/service/metrics"
	"github.com/khaledhikmat/framepred-go/tensor"
)

// Reports are dropped if nobody drains the stream for this long
const reportTimeout = 2 * time.Second

func report(stream chan interface{}, v interface{}) {
	if stream == nil {
		return
	}

	timer := time.NewTimer(reportTimeout)
	defer timer.Stop()

	select {
	case stream <- v:
	case <-timer.C:
		lgr.Logger.Warn("report stream is not drained, dropping report")
	}
}

// shuffler holds up to size clips. Once full, every incoming clip replaces a
// randomly chosen buffered one, which is emitted. Buffered clips are emitted
// in random order when the input closes.
func shuffler(ctx context.Context, in chan Clip, size int, rng *rand.Rand) chan Clip {
	if size <= 1 {
		return in
	}

	out := make(chan Clip)

	go func() {
		defer close(out)

		emit := func(c Clip) bool {
			select {
			case <-ctx.Done():
				return false
			case out <- c:
				return true
			}
		}

		buffer := make([]Clip, 0, size)
		for c := range in {
			if len(buffer) < size {
				buffer = append(buffer, c)
				continue
			}

			i := rng.IntN(size)
			if !emit(buffer[i]) {
				return
			}
			buffer[i] = c
		}

		rng.Shuffle(len(buffer), func(i, j int) {
			buffer[i], buffer[j] = buffer[j], buffer[i]
		})
		for _, c := range buffer {
			if !emit(c) {
				return
			}
		}
	}()

	return out
}

// batcher stacks batchSize clips into one batch. An incomplete batch left
// when the input closes is emitted as is.
func batcher(ctx context.Context, errorStream chan interface{}, in chan Clip, batchSize int) chan Batch {
	out := make(chan Batch)

	go func() {
		defer close(out)

		index := 0
		pending := make([]Clip, 0, batchSize)

		flush := func() bool {
			if len(pending) == 0 {
				return true
			}

			items := make([]tensor.Tensor, len(pending))
			refs := make([]ClipRef, len(pending))
			for i, c := range pending {
				items[i] = c.Data
				refs[i] = ClipRef{Video: c.Video, Start: c.Start}
			}
			pending = pending[:0]

			data, err := tensor.Stack(items...)
			if err != nil {
				metrics.LoadErrorsTotal.WithLabelValues("batch").Inc()
				report(errorStream, model.GenError("batcher",
					err,
					map[string]interface{}{"batch": index},
					"error stacking clips into batch %d",
					index))
				return true
			}

			b := Batch{
				Index:     index,
				Clips:     refs,
				Data:      data,
				Timestamp: time.Now(),
			}
			select {
			case <-ctx.Done():
				return false
			case out <- b:
			}

			index++
			metrics.BatchesTotal.Inc()
			return true
		}

		for {
			select {
			case <-ctx.Done():
				return
			case c, ok := <-in:
				if !ok {
					flush()
					return
				}
				pending = append(pending, c)
				if len(pending) == batchSize && !flush() {
					return
				}
			}
		}
	}()

	return out
}
