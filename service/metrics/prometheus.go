package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	FramesLoadedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "framepred_frames_loaded_total",
		Help: "Total number of frames decoded and normalised",
	})

	FrameLoadDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "framepred_frame_load_duration_seconds",
		Help:    "Duration of decoding and resizing one frame",
		Buckets: []float64{0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
	})

	ClipsLoadedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "framepred_clips_loaded_total",
		Help: "Total number of clips produced by the data loader",
	})

	BatchesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "framepred_batches_total",
		Help: "Total number of batches produced by the data loader",
	})

	LoadErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "framepred_load_errors_total",
		Help: "Total number of frame or clip load failures, by stage",
	}, []string{"stage"})

	FramesEvaluatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "framepred_frames_evaluated_total",
		Help: "Total number of generated frames scored against ground truth",
	})

	FramePSNR = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "framepred_frame_psnr",
		Help:    "PSNR of generated frames against ground truth",
		Buckets: []float64{10, 15, 20, 25, 30, 35, 40, 50},
	})

	ActiveWorkers = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "framepred_active_workers",
		Help: "Number of running workers, by pool",
	}, []string{"pool"})
)
