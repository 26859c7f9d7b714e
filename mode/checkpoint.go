package mode

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/xerrors"

	"github.com/khaledhikmat/framepred-go/pipeline"
	"github.com/khaledhikmat/framepred-go/service/checkpoint"
	"github.com/khaledhikmat/framepred-go/service/lgr"
)

// Checkpoint restores the configured checkpoint, or the latest one in the
// checkpoint dir, lists its tensors and optionally uploads it.
func Checkpoint(canxCtx context.Context, svcs pipeline.ServicesFactory) error {
	cfgSvc := svcs.CfgSvc

	path := cfgSvc.GetCheckpointPath()
	if path == "" {
		latest, err := checkpoint.Latest(cfgSvc.GetCheckpointDir())
		if err != nil {
			return err
		}
		path = latest
	}

	params, meta, err := checkpoint.Load(canxCtx, path)
	if err != nil {
		return err
	}

	ctx := lgr.WithRun(canxCtx, meta.RunID)
	for _, name := range meta.Names {
		lgr.Logger.InfoContext(ctx,
			"tensor",
			slog.String("name", name),
			slog.String("shape", fmt.Sprint(params[name].Shape)),
		)
	}
	lgr.Logger.InfoContext(ctx,
		"checkpoint",
		slog.String("path", path),
		slog.Int64("step", meta.Step),
		slog.Time("createdAt", meta.CreatedAt),
		slog.Int("tensors", len(params)),
	)

	if !cfgSvc.GetCheckpointUpload() {
		return nil
	}
	if svcs.StorageSvc == nil {
		return xerrors.New("checkpoint upload requested without a storage service")
	}

	url, err := svcs.StorageSvc.StoreFile(ctx, path)
	if err != nil {
		return xerrors.Errorf("uploading checkpoint %s: %w", path, err)
	}
	lgr.Logger.InfoContext(ctx,
		"checkpoint uploaded",
		slog.String("url", url),
	)
	return nil
}
