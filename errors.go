package floortrack

import (
	"github.com/luno/jettison/errors"
	"github.com/luno/jettison/j"
)

var (
	ErrRecordNotFound      = errors.New("production record not found", j.C("ERR_8c1f4b2e0d97a3c5"))
	ErrStoreNotInitialised = errors.New("record store not initialised", j.C("ERR_2a9e7d315f60c4b8"))
	ErrEmptyDescription    = errors.New("issue description is empty", j.C("ERR_5b3d90fae127c86d"))
	ErrNoReportableStage   = errors.New("no stage available to report an issue against", j.C("ERR_c74a1e98d2b05f36"))
	ErrNoResumableStage    = errors.New("no paused or planned stage to resume", j.C("ERR_90df26c8a45be173"))
	ErrStageNotFound       = errors.New("stage not found", j.C("ERR_eb61c05729fa4d8a"))
	ErrGatewayStatus       = errors.New("backend gateway returned an error status", j.C("ERR_3f8a57b1dc4e0692"))
	ErrVerifyTimeout       = errors.New("backend state did not converge after workflow action", j.C("ERR_a1c3e87f52d9604b"))
)
