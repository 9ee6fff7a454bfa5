// Package smcu is the host-facing call surface of the packet signer. A host
// acquires a Module with Initialize, signs packet records with it, and hands
// it back with Release. The Module is the only place key material lives; the
// host only ever sees signatures and the public key.
package smcu

import (
	"log/slog"
	"sync"
	"time"

	"smcu/go-signer/internal/config"
	"smcu/go-signer/internal/identity"
	"smcu/go-signer/internal/signer"
	"smcu/go-signer/internal/telemetry"
)

// Options configures Initialize. Zero fields fall back to
// config.DefaultSettings and slog.Default.
type Options struct {
	Settings config.Settings
	Logger   *slog.Logger
	Metrics  *telemetry.Metrics
	// Identity skips the key file. The Module takes ownership and wipes it on
	// Release.
	Identity *identity.Identity
}

func (o Options) withDefaults() Options {
	def := config.DefaultSettings()
	if o.Settings.KeyFile == "" {
		o.Settings.KeyFile = def.KeyFile
	}
	if o.Settings.WireFormat == 0 {
		o.Settings.WireFormat = def.WireFormat
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// Module is an initialized signer handle. Sign may be called from many
// goroutines at once. Release must not race in-flight Sign calls; if it
// does, those calls observe StatusInvalidHandle rather than zeroed keys.
type Module struct {
	mu      sync.RWMutex
	id      *identity.Identity
	format  signer.Format
	logger  *slog.Logger
	metrics *telemetry.Metrics
}

// Initialize loads the identity, or generates and persists a fresh one.
// Config problems never fail it; only an invalid wire format option does.
func Initialize(opts Options) (*Module, Status) {
	o := opts.withDefaults()
	if !o.Settings.WireFormat.Valid() {
		return nil, StatusInvalidArgument
	}
	logger := o.Logger

	id := o.Identity
	if id == nil {
		id = identity.Initialize(o.Settings.KeyFile, identity.InitOptions{
			Passphrase: o.Settings.Passphrase,
			Variant:    o.Settings.Variant(),
			Logger:     logger,
			Observer:   o.Metrics,
		})
	}
	if o.Settings.WireFormat == signer.FormatV2 && id.HardwareID() == "" {
		logger.Warn("wire format v2 with an identity lacking hardware_id; signatures omit it", "fingerprint", id.Fingerprint())
	}
	logger.Info("signer ready", "fingerprint", id.Fingerprint(), "wire_format", o.Settings.WireFormat.String())
	return &Module{
		id:      id,
		format:  o.Settings.WireFormat,
		logger:  logger,
		metrics: o.Metrics,
	}, StatusOK
}

// Release wipes the key material. Calling it more than once is harmless.
func (m *Module) Release() {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.id == nil {
		return
	}
	m.id.Wipe()
	m.id = nil
	m.logger.Info("signer released")
}

// Sign signs rec and writes the signature to out. On any non-OK status out
// is left untouched.
func (m *Module) Sign(rec *PacketRecord, out *[SignatureSize]byte) Status {
	if m == nil {
		return StatusInvalidHandle
	}
	started := time.Now()
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.id == nil {
		return StatusInvalidHandle
	}
	if out == nil || !rec.valid() {
		m.metrics.ObserveSign(m.format.String(), int32(StatusInvalidArgument), started)
		return StatusInvalidArgument
	}

	pkt := rec.Packet()
	sig, err := signer.Sign(m.id, m.format, pkt)
	status := statusFromError(err)
	m.metrics.ObserveSign(m.format.String(), int32(status), started)
	if status != StatusOK {
		m.logger.Debug("sign rejected", "status", int32(status), "reason", err.Error(), "payload", pkt.Payload)
		return status
	}
	*out = sig
	return StatusOK
}

// PublicKey writes the Ed25519 public key a verifier needs.
func (m *Module) PublicKey(out *[PublicKeySize]byte) Status {
	if m == nil {
		return StatusInvalidHandle
	}
	if out == nil {
		return StatusInvalidArgument
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.id == nil {
		return StatusInvalidHandle
	}
	copy(out[:], m.id.PublicKey())
	return StatusOK
}

// HardwareID returns the id appended by wire format v2, or "" if none.
func (m *Module) HardwareID() string {
	if m == nil {
		return ""
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.id == nil {
		return ""
	}
	return m.id.HardwareID()
}

// Format returns the wire format, or 0 for a nil Module.
func (m *Module) Format() signer.Format {
	if m == nil {
		return 0
	}
	return m.format
}
