package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/akamensky/argparse"
	"github.com/joho/godotenv"
	"golang.org/x/xerrors"

	"github.com/khaledhikmat/framepred-go/mode"
	"github.com/khaledhikmat/framepred-go/pipeline"
	"github.com/khaledhikmat/framepred-go/service/config"
	"github.com/khaledhikmat/framepred-go/service/data"
	"github.com/khaledhikmat/framepred-go/service/lgr"
	"github.com/khaledhikmat/framepred-go/service/metrics"
	"github.com/khaledhikmat/framepred-go/service/storage"
)

// Added on top of the mode processor shutdown time
const extraWaitOnShutdown = 3 * time.Second

var modeProcessors = map[string]mode.Processor{
	config.StreamModeName:     mode.Stream,
	config.EvaluateModeName:   mode.Evaluate,
	config.CheckpointModeName: mode.Checkpoint,
}

type overrides struct {
	output   *string
	logLevel *string
	height   *int
	width    *int

	videoFolder *string
	batchSize   *int
	timeSteps   *int
	numPred     *int
	maxBatches  *int

	generated *string
	truth     *string
	masks     *string

	logdir *string
	path   *string
	upload *bool
}

func main() {
	rootCtx := context.Background()
	canxCtx, canxFn := context.WithCancel(rootCtx)

	// Hook up a signal handler to cancel the context
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		lgr.Logger.Info(
			"received kill signal",
			slog.Any("signal", sig),
		)
		canxFn()
	}()

	// Load env vars if we are in DEV mode
	if os.Getenv("RUN_TIME_ENV") == "dev" || os.Getenv("RUN_TIME_ENV") == "" {
		lgr.Logger.Info("loading env vars from .env file")
		err := godotenv.Load()
		if err != nil {
			lgr.Logger.Warn("error loading .env file, using the environment only", slog.Any("error", xerrors.New(err.Error())))
		}
	}

	parser := argparse.NewParser("framepred", "Frame prediction data loading, evaluation and checkpoints")
	opts := overrides{
		output:   parser.String("o", "output", &argparse.Options{Help: "Output folder for stats, errors and results", Default: ""}),
		logLevel: parser.String("", "log-level", &argparse.Options{Help: "debug, info, warn or error", Default: ""}),
		height:   parser.Int("", "height", &argparse.Options{Help: "Resize height of every frame", Default: 0}),
		width:    parser.Int("", "width", &argparse.Options{Help: "Resize width of every frame", Default: 0}),
	}

	streamCmd := parser.NewCommand(config.StreamModeName, "Stream batches of clips out of a folder of videos")
	opts.videoFolder = streamCmd.String("d", "dir", &argparse.Options{Help: "Folder holding one sub folder of frames per video", Default: ""})
	opts.batchSize = streamCmd.Int("b", "batch", &argparse.Options{Help: "Clips per batch", Default: 0})
	opts.timeSteps = streamCmd.Int("t", "steps", &argparse.Options{Help: "Input frames per clip", Default: 0})
	opts.numPred = streamCmd.Int("p", "pred", &argparse.Options{Help: "Predicted frames per clip", Default: 0})
	opts.maxBatches = streamCmd.Int("n", "max-batches", &argparse.Options{Help: "Stop after this many batches, 0 streams until interrupted", Default: -1})

	evaluateCmd := parser.NewCommand(config.EvaluateModeName, "Score generated frames against ground truth")
	opts.generated = evaluateCmd.String("g", "gen", &argparse.Options{Help: "Folder of generated frames, one sub folder per video", Default: ""})
	opts.truth = evaluateCmd.String("t", "gt", &argparse.Options{Help: "Folder of ground truth frames, one sub folder per video", Default: ""})
	opts.masks = evaluateCmd.String("m", "masks", &argparse.Options{Help: "Write difference masks into this folder", Default: ""})

	checkpointCmd := parser.NewCommand(config.CheckpointModeName, "Inspect and upload a checkpoint")
	opts.logdir = checkpointCmd.String("l", "logdir", &argparse.Options{Help: "Checkpoint directory", Default: ""})
	opts.path = checkpointCmd.String("c", "path", &argparse.Options{Help: "Checkpoint file, defaults to the latest in logdir", Default: ""})
	opts.upload = checkpointCmd.Flag("u", "upload", &argparse.Options{Help: "Upload the checkpoint to object storage", Default: false})

	if err := parser.Parse(os.Args); err != nil {
		fmt.Print(parser.Usage(err))
		os.Exit(1)
	}

	modeType := config.StreamModeName
	switch {
	case evaluateCmd.Happened():
		modeType = config.EvaluateModeName
	case checkpointCmd.Happened():
		modeType = config.CheckpointModeName
	}

	modeProc, ok := modeProcessors[modeType]
	if !ok {
		lgr.Logger.Error("invalid mode", slog.String("mode", modeType))
		panic("invalid mode")
	}

	settings, err := config.LoadSettings()
	if err != nil {
		lgr.Logger.Error("error loading settings", slog.Any("error", err))
		os.Exit(1)
	}
	applyOverrides(&settings, opts)

	// Config service
	cfgSvc := config.New(settings)
	lgr.Configure(cfgSvc.GetLogFile(), lgr.ParseLevel(cfgSvc.GetLogLevel()))

	if port := cfgSvc.GetMetricsPort(); port > 0 {
		metrics.StartServer(canxCtx, port)
	}

	// Data service
	dataSvc := data.NewFilesDB(cfgSvc)

	// Storage service, only needed to upload checkpoints
	var storageSvc storage.IService
	if cfgSvc.GetCheckpointUpload() {
		storageSvc, err = storage.NewMinio(cfgSvc.GetStorageParameters(), "checkpoints")
		if err != nil {
			lgr.Logger.Error("error creating storage service", slog.Any("error", err))
			os.Exit(1)
		}
	}

	svcs := pipeline.ServicesFactory{
		CfgSvc:     cfgSvc,
		DataSvc:    dataSvc,
		StorageSvc: storageSvc,
	}

	lgr.Logger.Info(
		"starting mode processor",
		slog.String("mode", modeType),
	)

	// Create mode processor result
	modeProcResult := make(chan error, 1)
	var modeErr error

	// Start the mode processor
	go func() {
		modeProcResult <- modeProc(canxCtx, svcs)
	}()

	waitOnShutdown := time.Duration(cfgSvc.GetModeMaxShutdownTime())*time.Second + extraWaitOnShutdown

	// Wait for cancellation or mode proc
	for {
		select {
		case <-canxCtx.Done():
			lgr.Logger.Info(
				"framepred context cancelled",
			)
			goto resume

		case err := <-modeProcResult:
			if err != nil {
				modeErr = err
				lgr.Logger.Error(
					"framepred mode processor exited",
					slog.Any("error", xerrors.New(err.Error())),
				)
			}
			goto finish
		}
	}

	// Wait in a non-blocking way for `waitOnShutdown` for the mode processor to exit
	// It drains the reports of its go routines before returning
resume:
	lgr.Logger.Info(
		"framepred is waiting for the mode processor to exit",
	)

	select {
	case <-time.After(waitOnShutdown):
		lgr.Logger.Info(
			"framepred shutdown waiting period expired. Exiting now",
			slog.Duration("period", waitOnShutdown),
		)

	case err := <-modeProcResult:
		if err != nil {
			modeErr = err
			lgr.Logger.Error(
				"framepred mode processor exited",
				slog.Any("error", xerrors.New(err.Error())),
			)
		}
	}

finish:
	canxFn()
	if modeErr != nil {
		os.Exit(1)
	}
}

func applyOverrides(s *config.Settings, o overrides) {
	setString := func(dst *string, v *string) {
		if v != nil && *v != "" {
			*dst = *v
		}
	}
	setInt := func(dst *int, v *int) {
		if v != nil && *v > 0 {
			*dst = *v
		}
	}

	setString(&s.OutputFolder, o.output)
	setString(&s.LogLevel, o.logLevel)
	setInt(&s.ResizeHeight, o.height)
	setInt(&s.ResizeWidth, o.width)

	setString(&s.VideoFolder, o.videoFolder)
	setInt(&s.BatchSize, o.batchSize)
	setInt(&s.TimeSteps, o.timeSteps)
	setInt(&s.NumPred, o.numPred)
	if o.maxBatches != nil && *o.maxBatches >= 0 {
		s.MaxBatches = *o.maxBatches
	}

	setString(&s.GeneratedFolder, o.generated)
	setString(&s.GroundTruthFolder, o.truth)
	setString(&s.DiffMaskFolder, o.masks)

	setString(&s.CheckpointDir, o.logdir)
	setString(&s.CheckpointPath, o.path)
	if o.upload != nil && *o.upload {
		s.CheckpointUpload = true
	}
}
