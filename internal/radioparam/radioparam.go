// Package radioparam decodes the closed vocabularies of LoRa spreading
// factors and bandwidths carried by received packets and renders them into
// the canonical datarate token that is part of every signed message.
package radioparam

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownDatarate  = errors.New("unknown datarate")
	ErrUnknownBandwidth = errors.New("unknown bandwidth")
)

// Datarate is a LoRa spreading factor. The value equals the wire code.
type Datarate uint8

const (
	SF5  Datarate = 5
	SF6  Datarate = 6
	SF7  Datarate = 7
	SF8  Datarate = 8
	SF9  Datarate = 9
	SF10 Datarate = 10
	SF11 Datarate = 11
	SF12 Datarate = 12
)

// Bandwidth is a LoRa channel bandwidth. The value equals the wire code.
type Bandwidth uint8

const (
	BW125 Bandwidth = 0x04
	BW250 Bandwidth = 0x05
	BW500 Bandwidth = 0x06
)

var bandwidthKHz = map[Bandwidth]uint32{
	BW125: 125,
	BW250: 250,
	BW500: 500,
}

func DecodeDatarate(code byte) (Datarate, error) {
	if code < byte(SF5) || code > byte(SF12) {
		return 0, fmt.Errorf("%w: %d", ErrUnknownDatarate, code)
	}
	return Datarate(code), nil
}

func DecodeBandwidth(code byte) (Bandwidth, error) {
	if _, ok := bandwidthKHz[Bandwidth(code)]; !ok {
		return 0, fmt.Errorf("%w: %#02x", ErrUnknownBandwidth, code)
	}
	return Bandwidth(code), nil
}

func (d Datarate) Valid() bool {
	return d >= SF5 && d <= SF12
}

func (d Datarate) String() string {
	if !d.Valid() {
		return fmt.Sprintf("Datarate(%d)", uint8(d))
	}
	return fmt.Sprintf("SF%d", uint8(d))
}

// KHz returns the bandwidth in kilohertz, or 0 for a value outside the vocabulary.
func (b Bandwidth) KHz() uint32 {
	return bandwidthKHz[b]
}

func (b Bandwidth) Valid() bool {
	_, ok := bandwidthKHz[b]
	return ok
}

func (b Bandwidth) String() string {
	khz, ok := bandwidthKHz[b]
	if !ok {
		return fmt.Sprintf("Bandwidth(%#02x)", uint8(b))
	}
	return fmt.Sprintf("BW%d", khz)
}

// Render returns the datarate token fed into signed messages, e.g. "SF10BW125".
// Both values must come from DecodeDatarate and DecodeBandwidth.
func Render(dr Datarate, bw Bandwidth) string {
	return dr.String() + bw.String()
}

// Decode validates both wire codes and renders their token in one step.
func Decode(datarate, bandwidth byte) (string, error) {
	dr, err := DecodeDatarate(datarate)
	if err != nil {
		return "", err
	}
	bw, err := DecodeBandwidth(bandwidth)
	if err != nil {
		return "", err
	}
	return Render(dr, bw), nil
}
