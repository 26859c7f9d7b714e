package checkpoint

import (
	"context"
	"encoding/gob"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/khaledhikmat/framepred-go/service/lgr"
	"github.com/khaledhikmat/framepred-go/service/storage"
	"github.com/khaledhikmat/framepred-go/tensor"
)

const (
	modelName = "model.ckpt"
	indexName = "checkpoint"
)

type Meta struct {
	Step      int64     `json:"step"`
	RunID     string    `json:"runId"`
	CreatedAt time.Time `json:"createdAt"`
	Names     []string  `json:"names"`
}

type payload struct {
	Meta    Meta
	Tensors map[string]tensor.Tensor
}

type index struct {
	Latest string   `json:"model_checkpoint_path"`
	All    []string `json:"all_model_checkpoint_paths"`
}

// Saver writes numbered checkpoints into a log directory and keeps the
// newest MaxToKeep of them. Uploads go to StorageSvc when it is set.
type Saver struct {
	StorageSvc storage.IService
	MaxToKeep  int
	RunID      string
}

func NewSaver(storageSvc storage.IService, maxToKeep int, runID string) *Saver {
	return &Saver{
		StorageSvc: storageSvc,
		MaxToKeep:  maxToKeep,
		RunID:      runID,
	}
}

// Save writes params to logdir/model.ckpt-<step> and returns the path.
func (s *Saver) Save(ctx context.Context, params map[string]tensor.Tensor, logdir string, step int64) (string, error) {
	if err := os.MkdirAll(logdir, 0755); err != nil {
		return "", fmt.Errorf("creating checkpoint dir %s: %w", logdir, err)
	}

	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)

	path := filepath.Join(logdir, fmt.Sprintf("%s-%d", modelName, step))
	p := payload{
		Meta: Meta{
			Step:      step,
			RunID:     s.RunID,
			CreatedAt: time.Now().UTC(),
			Names:     names,
		},
		Tensors: params,
	}
	if err := writeAtomic(path, func(f *os.File) error {
		return gob.NewEncoder(f).Encode(&p)
	}); err != nil {
		return "", fmt.Errorf("writing checkpoint %s: %w", path, err)
	}

	idx, err := readIndex(logdir)
	if err != nil {
		return "", err
	}
	idx.Latest = filepath.Base(path)
	idx.All = appendUnique(idx.All, idx.Latest)
	idx.All = s.prune(logdir, idx.All)
	if err := writeIndex(logdir, idx); err != nil {
		return "", err
	}

	lgr.Logger.InfoContext(ctx, "the checkpoint has been created",
		slog.String("path", path),
		slog.Int64("step", step),
		slog.Int("tensors", len(names)),
	)

	if s.StorageSvc != nil {
		url, err := s.StorageSvc.StoreFile(ctx, path)
		if err != nil {
			return path, fmt.Errorf("uploading checkpoint %s: %w", path, err)
		}
		lgr.Logger.InfoContext(ctx, "checkpoint uploaded", slog.String("url", url))
	}

	return path, nil
}

func (s *Saver) prune(logdir string, all []string) []string {
	if s.MaxToKeep <= 0 || len(all) <= s.MaxToKeep {
		return all
	}

	drop := all[:len(all)-s.MaxToKeep]
	for _, name := range drop {
		if err := os.Remove(filepath.Join(logdir, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
			lgr.Logger.Warn("could not remove old checkpoint",
				slog.String("checkpoint", name),
				slog.Any("error", err),
			)
		}
	}
	return append([]string(nil), all[len(all)-s.MaxToKeep:]...)
}

// Load restores the named tensors stored at ckptPath.
func Load(ctx context.Context, ckptPath string) (map[string]tensor.Tensor, Meta, error) {
	f, err := os.Open(ckptPath)
	if err != nil {
		return nil, Meta{}, fmt.Errorf("opening checkpoint: %w", err)
	}
	defer f.Close()

	var p payload
	if err := gob.NewDecoder(f).Decode(&p); err != nil {
		return nil, Meta{}, fmt.Errorf("decoding checkpoint %s: %w", ckptPath, err)
	}
	if p.Tensors == nil {
		p.Tensors = map[string]tensor.Tensor{}
	}

	lgr.Logger.InfoContext(ctx, "restored model parameters",
		slog.String("path", ckptPath),
		slog.Int64("step", p.Meta.Step),
	)
	return p.Tensors, p.Meta, nil
}

// Latest returns the path of the newest checkpoint recorded in logdir.
func Latest(logdir string) (string, error) {
	idx, err := readIndex(logdir)
	if err != nil {
		return "", err
	}
	if idx.Latest == "" {
		return "", fmt.Errorf("no checkpoint found in %s", logdir)
	}
	return filepath.Join(logdir, idx.Latest), nil
}

func readIndex(logdir string) (index, error) {
	idx := index{}
	data, err := os.ReadFile(filepath.Join(logdir, indexName))
	if errors.Is(err, os.ErrNotExist) {
		return idx, nil
	}
	if err != nil {
		return idx, err
	}
	if err := json.Unmarshal(data, &idx); err != nil {
		return idx, fmt.Errorf("decoding checkpoint index: %w", err)
	}
	return idx, nil
}

func writeIndex(logdir string, idx index) error {
	data, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return err
	}
	return writeAtomic(filepath.Join(logdir, indexName), func(f *os.File) error {
		_, err := f.Write(data)
		return err
	})
}

func writeAtomic(path string, write func(f *os.File) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := write(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func appendUnique(all []string, name string) []string {
	out := make([]string, 0, len(all)+1)
	for _, n := range all {
		if n != name {
			out = append(out, n)
		}
	}
	return append(out, name)
}
