package signer

import (
	"errors"
	"fmt"
	"strings"
)

var ErrUnknownFormat = errors.New("unknown wire format")

// Format is the canonical message layout. A deployment picks exactly one;
// the layouts produce different bytes for the same packet.
type Format uint8

const (
	// FormatV1 signs payload, length, timestamp, integer RSSI, datarate token and frequency.
	FormatV1 Format = 1
	// FormatV2 additionally signs SNR after RSSI and the hardware id at the end.
	FormatV2 Format = 2
)

func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "v1", "1":
		return FormatV1, nil
	case "v2", "2":
		return FormatV2, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}
}

func (f Format) String() string {
	switch f {
	case FormatV1:
		return "v1"
	case FormatV2:
		return "v2"
	default:
		return fmt.Sprintf("Format(%d)", uint8(f))
	}
}

func (f Format) Valid() bool {
	return f == FormatV1 || f == FormatV2
}

func (f Format) hasSNR() bool        { return f == FormatV2 }
func (f Format) hasHardwareID() bool { return f == FormatV2 }
