package pipeline

import (
	"time"

	"github.com/khaledhikmat/framepred-go/model"
	"github.com/khaledhikmat/framepred-go/service/config"
	"github.com/khaledhikmat/framepred-go/service/data"
	"github.com/khaledhikmat/framepred-go/service/storage"
	"github.com/khaledhikmat/framepred-go/tensor"
)

type ServicesFactory struct {
	CfgSvc     config.IService
	DataSvc    data.IService
	StorageSvc storage.IService
}

// FrameReader decodes one frame file into an HWC tensor of the requested
// size with values in [-1, 1].
type FrameReader func(filename string, height, width int) (tensor.Tensor, error)

type VideoInfo struct {
	Name   string   `json:"name"`
	Path   string   `json:"path"`
	Frames []string `json:"frames"`
	Length int      `json:"length"`
}

type clipRequest struct {
	Video VideoInfo
	Start int
	End   int
}

// Clip is clipLength consecutive frames concatenated along the channel axis.
type Clip struct {
	Video string
	Start int
	Data  tensor.Tensor
}

// Batch stacks clips into [batch, height, width, 3*clipLength].
type Batch struct {
	Index     int
	Clips     []ClipRef
	Data      tensor.Tensor
	Timestamp time.Time
}

type ClipRef struct {
	Video string `json:"video"`
	Start int    `json:"start"`
}

// FramePair is a generated frame and the ground truth it is scored against.
type FramePair struct {
	Video     string
	Index     int
	Generated string
	Truth     string
}

// ResultData carries a scored pair to the reporter. Mask is empty unless
// difference masks were requested.
type ResultData struct {
	Result    model.FrameResult
	Mask      tensor.Tensor
	Timestamp time.Time
}
