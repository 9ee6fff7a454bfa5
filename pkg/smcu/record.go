package smcu

import (
	"smcu/go-signer/internal/signer"
)

const (
	MaxPayloadSize = signer.MaxPayloadSize
	SignatureSize  = signer.SignatureSize
	PublicKeySize  = 32
)

// PacketRecord is the fixed-layout packet handed over by the host. The host
// owns it; Sign borrows it for the duration of the call and keeps nothing.
// RSSI and SNR are floats for both wire formats: v1 ignores SNR and rounds
// RSSI to an integer, which leaves integral values unchanged.
type PacketRecord struct {
	Data        [MaxPayloadSize]byte
	DataLen     uint16
	Bandwidth   uint8
	Datarate    uint8
	Timestamp   uint32
	FrequencyHz uint32
	RSSI        float32
	SNR         float32
}

// NewPacketRecord copies payload into a record. Payloads longer than
// MaxPayloadSize are truncated in Data but DataLen keeps the real length,
// so Sign rejects the record instead of signing a prefix.
func NewPacketRecord(payload []byte) PacketRecord {
	var rec PacketRecord
	copy(rec.Data[:], payload)
	rec.DataLen = uint16(min(len(payload), 0xffff))
	return rec
}

func (r *PacketRecord) valid() bool {
	return r != nil && int(r.DataLen) <= MaxPayloadSize
}

// Packet views the record as a core packet. Payload aliases r.Data.
func (r *PacketRecord) Packet() signer.Packet {
	return signer.Packet{
		Payload:     r.Data[:r.DataLen],
		Timestamp:   r.Timestamp,
		RSSI:        float64(r.RSSI),
		SNR:         float64(r.SNR),
		FrequencyHz: r.FrequencyHz,
		Bandwidth:   r.Bandwidth,
		Datarate:    r.Datarate,
	}
}
