package data

import "github.com/khaledhikmat/framepred-go/model"

type IService interface {
	NewError(err interface{}) error
	NewLoaderStats(stats model.LoaderStats) error
	NewStreamStats(stats model.StreamStats) error
	NewEvaluatorStats(stats model.EvaluatorStats) error
	NewVideoSummary(summary model.VideoSummary) error

	RetrieveVideoSummaries() ([]model.VideoSummary, error)
	RetrieveErrors() ([]ErrorRecord, error)
}

type ErrorRecord struct {
	Timestamp  int64                  `json:"timestamp"`
	Processor  string                 `json:"processor"`
	Inner      string                 `json:"innerError"`
	Message    string                 `json:"message"`
	StackTrace string                 `json:"stackTrace"`
	Misc       map[string]interface{} `json:"misc"`
}
