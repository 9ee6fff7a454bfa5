// Package identity loads, generates and persists the device signing identity:
// an Ed25519 key whose 32-byte seed is the only durable secret, plus an
// optional hardware id that tags the device inside every signed message.
// The public key is never stored or trusted from disk; it is always derived
// from the seed.
package identity

import (
	"crypto/ed25519"
	"crypto/subtle"
	"errors"
	"fmt"

	"github.com/mr-tron/base58/base58"
	"golang.org/x/crypto/blake2b"
)

const (
	SecretKeySize     = ed25519.SeedSize
	MaxHardwareIDSize = 64
	fingerprintPrefix = "smcu1"
)

var (
	ErrInvalidSecretKey  = errors.New("invalid secret key")
	ErrInvalidHardwareID = errors.New("invalid hardware id")
)

// Identity is immutable after construction and safe for concurrent Sign calls
// until Wipe is called.
type Identity struct {
	secret     ed25519.PrivateKey
	public     ed25519.PublicKey
	hardwareID string
}

// FromSeed builds an identity from a 32-byte Ed25519 seed. The seed is copied.
func FromSeed(seed []byte, hardwareID string) (*Identity, error) {
	if len(seed) != SecretKeySize {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidSecretKey, len(seed), SecretKeySize)
	}
	if err := validateHardwareID(hardwareID); err != nil {
		return nil, err
	}
	priv := ed25519.NewKeyFromSeed(seed)
	return &Identity{
		secret:     priv,
		public:     priv.Public().(ed25519.PublicKey),
		hardwareID: hardwareID,
	}, nil
}

// PublicKey returns a copy of the derived public key.
func (i *Identity) PublicKey() ed25519.PublicKey {
	return append(ed25519.PublicKey(nil), i.public...)
}

func (i *Identity) HardwareID() string {
	return i.hardwareID
}

// Sign returns the Ed25519 signature of message.
func (i *Identity) Sign(message []byte) []byte {
	return ed25519.Sign(i.secret, message)
}

func (i *Identity) Verify(message, signature []byte) bool {
	return ed25519.Verify(i.public, message, signature)
}

// Fingerprint is a log-safe, stable name for the identity derived from its public key.
func (i *Identity) Fingerprint() string {
	h := blake2b.Sum256(i.public)
	return fingerprintPrefix + base58.Encode(h[:])
}

// Equal reports whether both identities hold the same seed and hardware id.
func (i *Identity) Equal(other *Identity) bool {
	if i == nil || other == nil {
		return i == other
	}
	return subtle.ConstantTimeCompare(i.secret.Seed(), other.secret.Seed()) == 1 &&
		i.hardwareID == other.hardwareID
}

// Wipe zeroes the key material. The identity must not be used afterwards.
func (i *Identity) Wipe() {
	zeroBytes(i.secret)
	zeroBytes(i.public)
}

func (i *Identity) seed() []byte {
	return i.secret.Seed()
}

// validateHardwareID accepts printable ASCII without spaces; empty means absent.
func validateHardwareID(id string) error {
	if len(id) > MaxHardwareIDSize {
		return fmt.Errorf("%w: longer than %d bytes", ErrInvalidHardwareID, MaxHardwareIDSize)
	}
	for idx := 0; idx < len(id); idx++ {
		if c := id[idx]; c < 0x21 || c > 0x7e {
			return fmt.Errorf("%w: byte %#02x at offset %d", ErrInvalidHardwareID, c, idx)
		}
	}
	return nil
}

func zeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
