package identity

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tyler-smith/go-bip39"
)

var ErrInvalidMnemonic = errors.New("invalid mnemonic")

// Mnemonic encodes the 32-byte seed as a 24-word BIP-39 phrase for offline backup.
func (i *Identity) Mnemonic() (string, error) {
	seed := i.seed()
	defer zeroBytes(seed)
	return bip39.NewMnemonic(seed)
}

// FromMnemonic restores an identity from a phrase produced by Mnemonic.
func FromMnemonic(mnemonic, hardwareID string) (*Identity, error) {
	mnemonic = strings.Join(strings.Fields(mnemonic), " ")
	if mnemonic == "" || !bip39.IsMnemonicValid(mnemonic) {
		return nil, ErrInvalidMnemonic
	}
	entropy, err := bip39.EntropyFromMnemonic(mnemonic)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMnemonic, err)
	}
	defer zeroBytes(entropy)
	if len(entropy) != SecretKeySize {
		return nil, fmt.Errorf("%w: encodes %d bytes, want %d", ErrInvalidMnemonic, len(entropy), SecretKeySize)
	}
	return FromSeed(entropy, hardwareID)
}
