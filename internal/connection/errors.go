package connection

import (
	"errors"
	"fmt"

	"github.com/lowaak/smart-trainer/telemetry-core/internal/sensor"
)

var (
	ErrAlreadyConnecting = errors.New("already connecting")
	ErrAlreadyConnected  = errors.New("already connected")
	// ErrConnectionFailed matches every *ConnectError.
	ErrConnectionFailed = errors.New("connection failed")
	ErrNotConnected     = errors.New("not connected")
	ErrNotSupported     = errors.New("device does not accept commands")
	ErrUnknownRole      = errors.New("unknown role")
)

// ConnectError is returned when a connection attempt for Role does not reach
// Connected. Err is the underlying cause, for example context.Canceled when
// the attempt was abandoned by Disconnect.
type ConnectError struct {
	Role sensor.Role
	Err  error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("failed to connect %s: %v", e.Role.DisplayName(), e.Err)
}

func (e *ConnectError) Unwrap() error {
	return e.Err
}

func (e *ConnectError) Is(target error) bool {
	return target == ErrConnectionFailed
}
