// Package signer builds the canonical byte sequence for a received radio
// packet and signs it with the device identity. The byte layout is a wire
// contract shared with remote verifiers: every integer is big-endian and
// every float is quantized before encoding, so the result does not depend on
// the host architecture.
package signer

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"smcu/go-signer/internal/radioparam"
)

const (
	MaxPayloadSize = 256

	// RSSIDigits and SNRDigits are the decimal digits kept when quantizing.
	// Verifiers rely on these exact scales.
	RSSIDigits = 0
	SNRDigits  = 1

	fixedFieldsSize = 4 * 5
	maxTokenSize    = len("SF12BW500")
)

var ErrPayloadTooLarge = errors.New("payload exceeds maximum size")

// Packet is the decoded metadata of one received frame. len(Payload) is the
// signed payload length. SNR is ignored by FormatV1.
type Packet struct {
	Payload     []byte
	Timestamp   uint32
	RSSI        float64
	SNR         float64
	FrequencyHz uint32
	Bandwidth   byte
	Datarate    byte
}

// Quantize rounds v*10^digits half-to-even. Results outside the int32 range
// saturate and NaN maps to 0, so no platform-specific conversion is involved.
func Quantize(v float64, digits int) int32 {
	scaled := math.RoundToEven(v * math.Pow10(digits))
	switch {
	case math.IsNaN(scaled):
		return 0
	case scaled >= math.MaxInt32:
		return math.MaxInt32
	case scaled <= math.MinInt32:
		return math.MinInt32
	}
	return int32(scaled)
}

// FrequencyKHz truncates, it does not round: 902_525_999 Hz is 902525 kHz.
func FrequencyKHz(hz uint32) uint32 {
	return hz / 1000
}

// CanonicalMessage returns the exact bytes that Sign signs. hardwareID is
// appended only by formats that carry one, and only when non-empty.
func CanonicalMessage(format Format, pkt Packet, hardwareID string) ([]byte, error) {
	if !format.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownFormat, uint8(format))
	}
	if len(pkt.Payload) > MaxPayloadSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, len(pkt.Payload))
	}

	msg := make([]byte, 0, len(pkt.Payload)+fixedFieldsSize+maxTokenSize+len(hardwareID))
	msg = append(msg, pkt.Payload...)
	msg = binary.BigEndian.AppendUint32(msg, uint32(len(pkt.Payload)))
	msg = binary.BigEndian.AppendUint32(msg, pkt.Timestamp)
	msg = binary.BigEndian.AppendUint32(msg, uint32(Quantize(pkt.RSSI, RSSIDigits)))
	if format.hasSNR() {
		msg = binary.BigEndian.AppendUint32(msg, uint32(Quantize(pkt.SNR, SNRDigits)))
	}

	token, err := radioparam.Decode(pkt.Datarate, pkt.Bandwidth)
	if err != nil {
		return nil, err
	}
	msg = append(msg, token...)
	msg = binary.BigEndian.AppendUint32(msg, FrequencyKHz(pkt.FrequencyHz))
	if format.hasHardwareID() {
		msg = append(msg, hardwareID...)
	}
	return msg, nil
}
