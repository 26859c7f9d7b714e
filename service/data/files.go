package data

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/khaledhikmat/framepred-go/model"
	"github.com/khaledhikmat/framepred-go/service/config"
)

type filesDBService struct {
	CfgSvc config.IService
	mu     sync.Mutex
}

// NewFilesDB keeps every entity kind in its own JSON array file under the
// output folder.
func NewFilesDB(cfgsvc config.IService) IService {
	return &filesDBService{
		CfgSvc: cfgsvc,
	}
}

func (svc *filesDBService) NewError(err interface{}) error {
	// Determine if the error is custom
	var customErr model.CustomError
	switch e := err.(type) {
	case model.CustomError:
		customErr = e
	case error:
		customErr.Processor = "N/A"
		customErr.Inner = e
		customErr.Message = e.Error()
		customErr.StackTrace = "N/A"
	default:
		customErr.Processor = "N/A"
		customErr.Message = fmt.Sprintf("%v", err)
		customErr.StackTrace = "N/A"
	}

	inner := ""
	if customErr.Inner != nil {
		inner = customErr.Inner.Error()
	}

	return svc.newEntity(ErrorRecord{
		Timestamp:  time.Now().Unix(),
		Processor:  customErr.Processor,
		Inner:      inner,
		Message:    customErr.Message,
		StackTrace: customErr.StackTrace,
		Misc:       customErr.Misc,
	}, "errors")
}

func (svc *filesDBService) NewLoaderStats(stats model.LoaderStats) error {
	stats.Timestamp = time.Now().Unix()
	return svc.newEntity(stats, "loader-stats")
}

func (svc *filesDBService) NewStreamStats(stats model.StreamStats) error {
	stats.Timestamp = time.Now().Unix()
	return svc.newEntity(stats, "stream-stats")
}

func (svc *filesDBService) NewEvaluatorStats(stats model.EvaluatorStats) error {
	stats.Timestamp = time.Now().Unix()
	return svc.newEntity(stats, "evaluator-stats")
}

func (svc *filesDBService) NewVideoSummary(summary model.VideoSummary) error {
	summary.Timestamp = time.Now().Unix()
	return svc.newEntity(summary, "video-summaries")
}

func (svc *filesDBService) RetrieveVideoSummaries() ([]model.VideoSummary, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	return retrieveEntities[model.VideoSummary](svc.path("video-summaries"))
}

func (svc *filesDBService) RetrieveErrors() ([]ErrorRecord, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	return retrieveEntities[ErrorRecord](svc.path("errors"))
}

func (svc *filesDBService) path(filename string) string {
	return filepath.Join(svc.CfgSvc.GetOutputFolder(), fmt.Sprintf("%s.json", filename))
}

func (svc *filesDBService) newEntity(entity any, filename string) error {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	output := svc.path(filename)
	entities, err := retrieveEntities[json.RawMessage](output)
	if err != nil {
		return err
	}

	raw, err := json.Marshal(entity)
	if err != nil {
		return err
	}
	entities = append(entities, raw)

	data, err := json.MarshalIndent(entities, "", "  ")
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(output), 0755); err != nil {
		return err
	}

	// Write the JSON data to the file (with truncation)
	return os.WriteFile(output, data, 0644)
}

func retrieveEntities[T any](filename string) ([]T, error) {
	entities := []T{}

	data, err := os.ReadFile(filename)
	if errors.Is(err, os.ErrNotExist) {
		// WARNING: File not found, return empty slice
		return entities, nil
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(data, &entities); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", filename, err)
	}
	return entities, nil
}
