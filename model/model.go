package model

import (
	"fmt"

	"github.com/mdobak/go-xerrors"
)

type CustomError struct {
	Processor  string                 `json:"processor"`
	Inner      error                  `json:"innerError"`
	Message    string                 `json:"message"`
	StackTrace string                 `json:"stackTrace"`
	Misc       map[string]interface{} `json:"misc"`
}

func (e CustomError) Error() string {
	if e.Inner == nil {
		return fmt.Sprintf("%s: %s", e.Processor, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Processor, e.Message, e.Inner)
}

func (e CustomError) Unwrap() error {
	return e.Inner
}

// GenError records where a stage failed. The inner error carries the stack
// trace so that logging the error expands it.
func GenError(proc string, err error, misc map[string]interface{}, messagef string, args ...interface{}) CustomError {
	msg := fmt.Sprintf(messagef, args...)

	traced := xerrors.WithStackTrace(err, 1)
	stack := xerrors.StackTrace(traced)
	if traced == nil {
		stack = xerrors.StackTrace(xerrors.WithStackTrace(xerrors.Message(msg), 1))
	}

	return CustomError{
		Processor:  proc,
		Inner:      traced,
		Message:    msg,
		StackTrace: stack.String(),
		Misc:       misc,
	}
}

type LoaderStats struct {
	Name        string  `json:"name"`
	Worker      int     `json:"worker"`
	Clips       int     `json:"clips"`
	Frames      int     `json:"frames"`
	Errors      int     `json:"errors"`
	Uptime      int64   `json:"uptime"`
	AvgLoadTime float64 `json:"avgLoadTime"`
	Timestamp   int64   `json:"timestamp"`
}

type StreamStats struct {
	RunID     string `json:"runId"`
	Batches   int    `json:"batches"`
	Clips     int    `json:"clips"`
	Shape     []int  `json:"shape"`
	Uptime    int64  `json:"uptime"`
	Timestamp int64  `json:"timestamp"`
}

type EvaluatorStats struct {
	Name        string  `json:"name"`
	Worker      int     `json:"worker"`
	Frames      int     `json:"frames"`
	Errors      int     `json:"errors"`
	Uptime      int64   `json:"uptime"`
	AvgProcTime float64 `json:"avgProcTime"`
	Timestamp   int64   `json:"timestamp"`
}

// FrameResult is the score of one generated frame against its ground truth.
type FrameResult struct {
	Video     string  `json:"video"`
	Index     int     `json:"index"`
	Generated string  `json:"generated"`
	Truth     string  `json:"truth"`
	PSNR      float64 `json:"psnr"`
	SharpDiff float64 `json:"sharpDiff"`
	Identical bool    `json:"identical"`
	MaskPath  string  `json:"maskPath,omitempty"`
}

// VideoSummary aggregates the frame results of one video.
// Identical frames have an infinite PSNR and are left out of the PSNR
// aggregates.
type VideoSummary struct {
	RunID           string  `json:"runId"`
	Video           string  `json:"video"`
	Frames          int     `json:"frames"`
	IdenticalFrames int     `json:"identicalFrames"`
	MeanPSNR        float64 `json:"meanPsnr"`
	StdDevPSNR      float64 `json:"stdDevPsnr"`
	MinPSNR         float64 `json:"minPsnr"`
	MaxPSNR         float64 `json:"maxPsnr"`
	MeanSharpDiff   float64 `json:"meanSharpDiff"`
	Timestamp       int64   `json:"timestamp"`
}
