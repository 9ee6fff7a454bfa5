package signer

import (
	"crypto/ed25519"
)

const SignatureSize = ed25519.SignatureSize

type Signature [SignatureSize]byte

// KeyHolder is the identity side of a sign call. *identity.Identity implements it.
type KeyHolder interface {
	Sign(message []byte) []byte
	HardwareID() string
}

// Sign signs the canonical message of pkt. It has no side effects and keeps
// no state, so concurrent calls sharing one KeyHolder are safe as long as the
// holder itself is. On error no signature is produced.
func Sign(key KeyHolder, format Format, pkt Packet) (Signature, error) {
	var sig Signature
	msg, err := CanonicalMessage(format, pkt, key.HardwareID())
	if err != nil {
		return sig, err
	}
	copy(sig[:], key.Sign(msg))
	return sig, nil
}

// Verify is the verifier side of Sign.
func Verify(pub ed25519.PublicKey, format Format, pkt Packet, hardwareID string, sig Signature) bool {
	if len(pub) != ed25519.PublicKeySize {
		return false
	}
	msg, err := CanonicalMessage(format, pkt, hardwareID)
	if err != nil {
		return false
	}
	return ed25519.Verify(pub, msg, sig[:])
}
