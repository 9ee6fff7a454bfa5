// Package securestore seals small documents, such as the device identity
// file, under a passphrase and writes key material to disk with private
// permissions.
package securestore

import (
	"bytes"
	"crypto/rand"
	"errors"
	"fmt"

	"github.com/mr-tron/base58/base58"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
	"gopkg.in/yaml.v3"
)

const (
	envelopeVersion = 1
	saltSize        = 16
	kdfName         = "argon2id"
	kdfTime         = uint32(2)
	kdfMemoryKB     = uint32(64 * 1024)
	kdfThreads      = uint8(1)

	// Upper bounds keep a corrupted envelope from driving argon2 into an
	// allocation the runtime cannot survive.
	maxKDFTime     = 8 * kdfTime
	maxKDFMemoryKB = 4 * kdfMemoryKB
	maxKDFThreads  = uint8(16)
)

// SealedPrefix marks a sealed document. Plain YAML can never start with it.
var SealedPrefix = []byte("SMCUENC1\n")

var (
	ErrAuthFailed         = errors.New("securestore authentication failed")
	ErrInvalid            = errors.New("securestore envelope is invalid")
	ErrNotSealed          = errors.New("securestore document is not sealed")
	ErrPassphraseRequired = errors.New("securestore passphrase is required")
)

// Envelope is the on-disk form of a sealed document. Binary fields are base58.
type Envelope struct {
	Version     uint32 `yaml:"version"`
	KDF         string `yaml:"kdf"`
	KDFTime     uint32 `yaml:"kdf_time"`
	KDFMemoryKB uint32 `yaml:"kdf_memory_kb"`
	KDFThreads  uint8  `yaml:"kdf_threads"`
	Salt        string `yaml:"salt"`
	Nonce       string `yaml:"nonce"`
	Ciphertext  string `yaml:"ciphertext"`
}

// IsSealed reports whether data was produced by Seal.
func IsSealed(data []byte) bool {
	return bytes.HasPrefix(data, SealedPrefix)
}

func Seal(passphrase string, plaintext []byte) ([]byte, error) {
	if passphrase == "" {
		return nil, ErrPassphraseRequired
	}
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}
	key := deriveKey(passphrase, salt, kdfTime, kdfMemoryKB, kdfThreads)
	defer zeroBytes(key)

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	env := Envelope{
		Version:     envelopeVersion,
		KDF:         kdfName,
		KDFTime:     kdfTime,
		KDFMemoryKB: kdfMemoryKB,
		KDFThreads:  kdfThreads,
		Salt:        base58.Encode(salt),
		Nonce:       base58.Encode(nonce),
		Ciphertext:  base58.Encode(aead.Seal(nil, nonce, plaintext, SealedPrefix)),
	}
	raw, err := yaml.Marshal(&env)
	if err != nil {
		return nil, err
	}
	return append(append([]byte(nil), SealedPrefix...), raw...), nil
}

func Open(passphrase string, data []byte) ([]byte, error) {
	if !IsSealed(data) {
		return nil, ErrNotSealed
	}
	if passphrase == "" {
		return nil, ErrPassphraseRequired
	}
	var env Envelope
	if err := yaml.Unmarshal(data[len(SealedPrefix):], &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if env.Version != envelopeVersion || env.KDF != kdfName || !kdfParamsInRange(env) {
		return nil, ErrInvalid
	}
	salt, err := base58.Decode(env.Salt)
	if err != nil || len(salt) != saltSize {
		return nil, ErrInvalid
	}
	nonce, err := base58.Decode(env.Nonce)
	if err != nil || len(nonce) != chacha20poly1305.NonceSizeX {
		return nil, ErrInvalid
	}
	ciphertext, err := base58.Decode(env.Ciphertext)
	if err != nil {
		return nil, ErrInvalid
	}

	key := deriveKey(passphrase, salt, env.KDFTime, env.KDFMemoryKB, env.KDFThreads)
	defer zeroBytes(key)
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	plaintext, err := aead.Open(nil, nonce, ciphertext, SealedPrefix)
	if err != nil {
		return nil, ErrAuthFailed
	}
	return plaintext, nil
}

// kdfParamsInRange rejects weaker parameters than the ones Seal writes, which
// would be a downgrade, and ones too costly to evaluate.
func kdfParamsInRange(env Envelope) bool {
	return env.KDFTime >= kdfTime && env.KDFTime <= maxKDFTime &&
		env.KDFMemoryKB >= kdfMemoryKB && env.KDFMemoryKB <= maxKDFMemoryKB &&
		env.KDFThreads >= 1 && env.KDFThreads <= maxKDFThreads
}

func deriveKey(passphrase string, salt []byte, time, memoryKB uint32, threads uint8) []byte {
	return argon2.IDKey([]byte(passphrase), salt, time, memoryKB, threads, chacha20poly1305.KeySize)
}

func zeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
