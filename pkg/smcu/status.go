package smcu

import (
	"errors"
	"fmt"

	"smcu/go-signer/internal/radioparam"
)

// Status is the result code of a call-surface operation. Zero is success,
// every failure is negative. Values are part of the ABI and never change.
type Status int32

const (
	StatusOK               Status = 0
	StatusUnknownDatarate  Status = -1
	StatusUnknownBandwidth Status = -2
	StatusInvalidArgument  Status = -3
	StatusInvalidHandle    Status = -4
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusUnknownDatarate:
		return "unknown datarate"
	case StatusUnknownBandwidth:
		return "unknown bandwidth"
	case StatusInvalidArgument:
		return "invalid argument"
	case StatusInvalidHandle:
		return "invalid handle"
	default:
		return fmt.Sprintf("status(%d)", int32(s))
	}
}

// statusFromError maps a core error onto the status vocabulary.
func statusFromError(err error) Status {
	switch {
	case err == nil:
		return StatusOK
	case errors.Is(err, radioparam.ErrUnknownDatarate):
		return StatusUnknownDatarate
	case errors.Is(err, radioparam.ErrUnknownBandwidth):
		return StatusUnknownBandwidth
	default:
		return StatusInvalidArgument
	}
}
