package dtm

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/rigado/dtm/evt"
)

var (
	// ErrConnection is returned by New when the transport can't be opened or
	// the fixture doesn't accept the initial reset and packet length setup.
	ErrConnection = errors.New("device communication error")

	// ErrNoResponse is returned when the fixture didn't answer a command
	// before the read timed out. Session state is left as it was.
	ErrNoResponse = evt.ErrNoResponse

	// ErrValidation matches every *ValidationError.
	ErrValidation = errors.New("validation failure")

	// ErrUnexpectedResponse matches every *ResponseError.
	ErrUnexpectedResponse = errors.New("unexpected response")

	// ErrRegionSet is the cause of a rejected region or manual power change
	// once a region is configured.
	ErrRegionSet = errors.New("region already set - reset board to set new region")

	// ErrUnsupportedPower is the cause of a rejected SoC output power.
	ErrUnsupportedPower = errors.New("invalid SoC output power")

	// ErrTestRunning is the cause of a rejected test start.
	ErrTestRunning = errors.New("a test is already running")

	// ErrNoTestRunning is the cause of a rejected test end.
	ErrNoTestRunning = errors.New("no test is running")
)

// ValidationError reports a rejected parameter or state transition. Nothing
// was sent and session state is unchanged.
type ValidationError struct {
	Op  string
	Err error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// ResponseError records a response whose shape didn't match what the command
// expects. Sessions log and keep these rather than returning them.
type ResponseError struct {
	Op       string
	Response evt.Response
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("%s: unexpected %v", e.Op, e.Response)
}

func (e *ResponseError) Is(target error) bool { return target == ErrUnexpectedResponse }
