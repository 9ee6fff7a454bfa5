package identity

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"smcu/go-signer/internal/securestore"

	"github.com/mr-tron/base58/base58"
	"gopkg.in/yaml.v3"
)

// DefaultConfigPath is the identity file used when the caller names none.
const DefaultConfigPath = "smcu.yaml"

var (
	ErrConfigIO      = errors.New("identity config io error")
	ErrConfigParse   = errors.New("identity config parse error")
	ErrConfigPersist = errors.New("identity config persist error")
)

var writeFile = securestore.WritePrivateFile

// Load reads the identity file at path. A sealed file is opened with passphrase.
// I/O failures wrap ErrConfigIO; everything else wraps ErrConfigParse.
func Load(path, passphrase string) (*Identity, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigIO, err)
	}
	if securestore.IsSealed(raw) {
		raw, err = securestore.Open(passphrase, raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrConfigParse, err)
		}
	}

	var cfg fileConfig
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigParse, err)
	}
	encoded := strings.TrimSpace(cfg.SecretKey)
	if encoded == "" {
		return nil, fmt.Errorf("%w: secret_key is missing", ErrConfigParse)
	}
	seed, err := base58.Decode(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: secret_key: %v", ErrConfigParse, err)
	}
	defer zeroBytes(seed)

	id, err := FromSeed(seed, cfg.HardwareID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigParse, err)
	}
	return id, nil
}

// Generate draws a fresh identity from crypto/rand.
func Generate(variant Variant) *Identity {
	id, err := GenerateFrom(rand.Reader, variant)
	if err != nil {
		// crypto/rand does not fail on supported platforms.
		panic(fmt.Sprintf("identity: reading crypto/rand: %v", err))
	}
	return id
}

// GenerateFrom draws the seed, and for VariantHardware the hardware id, from r.
func GenerateFrom(r io.Reader, variant Variant) (*Identity, error) {
	seed := make([]byte, SecretKeySize)
	defer zeroBytes(seed)
	if _, err := io.ReadFull(r, seed); err != nil {
		return nil, err
	}
	hardwareID := ""
	if variant == VariantHardware {
		var buf [4]byte
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return nil, err
		}
		hardwareID = FormatHardwareID(binary.BigEndian.Uint32(buf[:]))
	}
	return FromSeed(seed, hardwareID)
}

// FormatHardwareID renders n as "A" followed by at least eight zero-padded digits.
func FormatHardwareID(n uint32) string {
	return fmt.Sprintf("A%08d", n)
}

// Persist writes the durable fields of id to path. With a non-empty passphrase
// the document is sealed. Errors wrap ErrConfigPersist.
func Persist(path string, id *Identity, passphrase string) error {
	seed := id.seed()
	defer zeroBytes(seed)
	doc, err := yaml.Marshal(&fileConfig{
		SecretKey:  base58.Encode(seed),
		HardwareID: id.hardwareID,
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConfigPersist, err)
	}
	if passphrase != "" {
		sealed, err := securestore.Seal(passphrase, doc)
		zeroBytes(doc)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrConfigPersist, err)
		}
		doc = sealed
	}
	if err := writeFile(path, doc); err != nil {
		return fmt.Errorf("%w: %v", ErrConfigPersist, err)
	}
	return nil
}

type InitOptions struct {
	Passphrase string
	Variant    Variant
	Logger     *slog.Logger
	Observer   Observer
}

// Initialize loads the identity at path, or generates and persists a new one
// when loading fails for any reason. It always returns a usable identity;
// a failed persist only costs durability across restarts and is logged.
func Initialize(path string, opts InitOptions) *Identity {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if path == "" {
		path = DefaultConfigPath
	}

	id, err := Load(path, opts.Passphrase)
	if err == nil {
		logger.Info("identity loaded", "path", path, "fingerprint", id.Fingerprint(), "hardware_id", id.HardwareID())
		notify(opts.Observer, SourceLoaded, true)
		return id
	}
	logger.Warn("identity config unusable, generating new identity", "path", path, "reason", err.Error())

	id = Generate(opts.Variant)
	persisted := true
	if err := Persist(path, id, opts.Passphrase); err != nil {
		persisted = false
		logger.Error("identity config persist failed", "path", path, "reason", err.Error())
	}
	logger.Info("identity generated", "path", path, "fingerprint", id.Fingerprint(), "hardware_id", id.HardwareID(), "persisted", persisted)
	notify(opts.Observer, SourceGenerated, persisted)
	return id
}

func notify(o Observer, source Source, persisted bool) {
	if o != nil {
		o.IdentityInitialized(source, persisted)
	}
}
