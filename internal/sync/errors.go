package sync

import "fmt"

// Stage names the pipeline step a sync failure happened in. Callers use it
// to decide whether a failure is a merchant configuration problem or an
// operational one.
type Stage string

const (
	StageConfig    Stage = "config"
	StageStatus    Stage = "status"
	StageFetch     Stage = "fetch"
	StageExtract   Stage = "extract"
	StagePersist   Stage = "persist"
	StageWatermark Stage = "watermark"
)

// Error wraps a pipeline failure with the stage and merchant it belongs to.
type Error struct {
	Stage      Stage
	MerchantID int
	Err        error
}

func (e *Error) Error() string {
	return fmt.Sprintf("sync merchant %d: %s stage: %v", e.MerchantID, e.Stage, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func stageErr(stage Stage, merchantID int, err error) *Error {
	return &Error{Stage: stage, MerchantID: merchantID, Err: err}
}
