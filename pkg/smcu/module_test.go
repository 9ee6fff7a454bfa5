package smcu

import (
	"bytes"
	"crypto/ed25519"
	"crypto/sha256"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"

	"smcu/go-signer/internal/config"
	"smcu/go-signer/internal/identity"
	"smcu/go-signer/internal/signer"
	"smcu/go-signer/internal/telemetry"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func fixedIdentity(t *testing.T, hardwareID string) *identity.Identity {
	t.Helper()
	seed := sha256.Sum256([]byte("hello_world"))
	id, err := identity.FromSeed(seed[:], hardwareID)
	if err != nil {
		t.Fatalf("from seed failed: %v", err)
	}
	return id
}

func sampleRecord() PacketRecord {
	rec := NewPacketRecord([]byte("a"))
	rec.FrequencyHz = 902_489_000
	rec.Datarate = 6
	rec.Bandwidth = 0x04
	rec.Timestamp = 123456
	rec.RSSI = -87
	rec.SNR = 7.25
	return rec
}

func TestInitializeCreatesKeyFileAndSigns(t *testing.T) {
	keyFile := filepath.Join(t.TempDir(), "smcu.yaml")
	m, status := Initialize(Options{Settings: config.Settings{KeyFile: keyFile}, Logger: quietLogger()})
	if status != StatusOK || m == nil {
		t.Fatalf("initialize failed: %s", status)
	}
	defer m.Release()
	if m.Format() != signer.FormatV2 {
		t.Fatalf("unexpected default format: %s", m.Format())
	}
	if m.HardwareID() == "" {
		t.Fatal("v2 module must carry a hardware id")
	}

	rec := sampleRecord()
	var sig [SignatureSize]byte
	if st := m.Sign(&rec, &sig); st != StatusOK {
		t.Fatalf("sign failed: %s", st)
	}
	var pub [PublicKeySize]byte
	if st := m.PublicKey(&pub); st != StatusOK {
		t.Fatalf("public key failed: %s", st)
	}
	if !signer.Verify(ed25519.PublicKey(pub[:]), signer.FormatV2, rec.Packet(), m.HardwareID(), sig) {
		t.Fatal("signature must verify against the module public key")
	}

	reloaded, err := identity.Load(keyFile, "")
	if err != nil {
		t.Fatalf("key file must be persisted: %v", err)
	}
	if !bytes.Equal(reloaded.PublicKey(), pub[:]) {
		t.Fatal("persisted identity differs from module identity")
	}
}

func TestSignIsDeterministic(t *testing.T) {
	m, _ := Initialize(Options{Identity: fixedIdentity(t, "A00000042"), Logger: quietLogger()})
	defer m.Release()

	rec := sampleRecord()
	var a, b [SignatureSize]byte
	if m.Sign(&rec, &a) != StatusOK || m.Sign(&rec, &b) != StatusOK {
		t.Fatal("sign failed")
	}
	if a != b {
		t.Fatal("identical inputs must give identical signatures")
	}
}

func TestSignV1IgnoresSNRAndHardwareID(t *testing.T) {
	m, _ := Initialize(Options{Settings: config.Settings{WireFormat: signer.FormatV1}, Identity: fixedIdentity(t, "A00000042"), Logger: quietLogger()})
	defer m.Release()

	rec := sampleRecord()
	var sig [SignatureSize]byte
	if st := m.Sign(&rec, &sig); st != StatusOK {
		t.Fatalf("sign failed: %s", st)
	}
	rec.SNR = -3.5
	var sig2 [SignatureSize]byte
	if st := m.Sign(&rec, &sig2); st != StatusOK {
		t.Fatalf("sign failed: %s", st)
	}
	if sig != sig2 {
		t.Fatal("v1 signatures must not depend on SNR")
	}
	var pub [PublicKeySize]byte
	m.PublicKey(&pub)
	if !signer.Verify(ed25519.PublicKey(pub[:]), signer.FormatV1, rec.Packet(), "", sig) {
		t.Fatal("v1 signature must verify without hardware id")
	}
}

func TestSignStatusCodes(t *testing.T) {
	m, _ := Initialize(Options{Identity: fixedIdentity(t, "A00000042"), Logger: quietLogger()})
	defer m.Release()

	cases := []struct {
		name   string
		mutate func(*PacketRecord)
		want   Status
	}{
		{name: "datarate 4", mutate: func(r *PacketRecord) { r.Datarate = 4 }, want: StatusUnknownDatarate},
		{name: "datarate 13", mutate: func(r *PacketRecord) { r.Datarate = 13 }, want: StatusUnknownDatarate},
		{name: "bandwidth 7", mutate: func(r *PacketRecord) { r.Bandwidth = 0x07 }, want: StatusUnknownBandwidth},
		{name: "oversized", mutate: func(r *PacketRecord) { r.DataLen = MaxPayloadSize + 1 }, want: StatusInvalidArgument},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := sampleRecord()
			tc.mutate(&rec)
			var sig [SignatureSize]byte
			for i := range sig {
				sig[i] = 0xee
			}
			before := sig
			st := m.Sign(&rec, &sig)
			if st != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, st)
			}
			if st >= 0 {
				t.Fatal("failure statuses must be negative")
			}
			if sig != before {
				t.Fatal("no signature may be written on failure")
			}
		})
	}
}

func TestSignRejectsNilArguments(t *testing.T) {
	m, _ := Initialize(Options{Identity: fixedIdentity(t, ""), Logger: quietLogger()})
	defer m.Release()

	rec := sampleRecord()
	var sig [SignatureSize]byte
	if st := m.Sign(nil, &sig); st != StatusInvalidArgument {
		t.Fatalf("expected invalid argument for nil record, got %s", st)
	}
	if st := m.Sign(&rec, nil); st != StatusInvalidArgument {
		t.Fatalf("expected invalid argument for nil output, got %s", st)
	}
	if st := m.PublicKey(nil); st != StatusInvalidArgument {
		t.Fatalf("expected invalid argument for nil key output, got %s", st)
	}
}

func TestReleaseInvalidatesHandle(t *testing.T) {
	m, _ := Initialize(Options{Identity: fixedIdentity(t, ""), Logger: quietLogger()})
	m.Release()
	m.Release()

	rec := sampleRecord()
	var sig [SignatureSize]byte
	if st := m.Sign(&rec, &sig); st != StatusInvalidHandle {
		t.Fatalf("expected invalid handle after release, got %s", st)
	}
	var pub [PublicKeySize]byte
	if st := m.PublicKey(&pub); st != StatusInvalidHandle {
		t.Fatalf("expected invalid handle after release, got %s", st)
	}
	var nilModule *Module
	if st := nilModule.Sign(&rec, &sig); st != StatusInvalidHandle {
		t.Fatalf("expected invalid handle for nil module, got %s", st)
	}
	if st := nilModule.PublicKey(&pub); st != StatusInvalidHandle {
		t.Fatalf("expected invalid handle for nil module, got %s", st)
	}
	if f := nilModule.Format(); f != 0 {
		t.Fatalf("expected zero format for nil module, got %s", f)
	}
	if hw := nilModule.HardwareID(); hw != "" {
		t.Fatalf("expected no hardware id for nil module, got %q", hw)
	}
	nilModule.Release()
}

func TestInitializeRejectsUnknownFormat(t *testing.T) {
	m, st := Initialize(Options{Settings: config.Settings{WireFormat: signer.Format(9)}, Logger: quietLogger()})
	if st != StatusInvalidArgument || m != nil {
		t.Fatalf("expected invalid argument, got %s", st)
	}
}

func TestConcurrentSignMatchesSequential(t *testing.T) {
	m, _ := Initialize(Options{Identity: fixedIdentity(t, "A00000042"), Logger: quietLogger()})
	defer m.Release()

	const n = 32
	records := make([]PacketRecord, n)
	want := make([][SignatureSize]byte, n)
	for i := range records {
		rec := NewPacketRecord([]byte{byte(i), 0x42})
		rec.Timestamp = uint32(i)
		rec.Datarate = byte(5 + i%8)
		rec.Bandwidth = byte(0x04 + i%3)
		rec.FrequencyHz = 868_100_000 + uint32(i)*200_000
		rec.RSSI = float32(-100 + i)
		rec.SNR = float32(i) / 4
		records[i] = rec
		if st := m.Sign(&records[i], &want[i]); st != StatusOK {
			t.Fatalf("sequential sign %d failed: %s", i, st)
		}
	}

	got := make([][SignatureSize]byte, n)
	var wg sync.WaitGroup
	for i := range records {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			m.Sign(&records[i], &got[i])
		}(i)
	}
	wg.Wait()
	for i := range records {
		if got[i] != want[i] {
			t.Fatalf("concurrent signature %d differs from sequential", i)
		}
	}
}

func TestMetricsObserveSignAndInit(t *testing.T) {
	metrics, err := telemetry.New(nil)
	if err != nil {
		t.Fatalf("metrics failed: %v", err)
	}
	keyFile := filepath.Join(t.TempDir(), "smcu.yaml")
	m, _ := Initialize(Options{Settings: config.Settings{KeyFile: keyFile}, Metrics: metrics, Logger: quietLogger()})
	defer m.Release()

	rec := sampleRecord()
	var sig [SignatureSize]byte
	m.Sign(&rec, &sig)
	rec.Datarate = 99
	m.Sign(&rec, &sig)

	if got := testutil.CollectAndCount(metrics, "smcu_sign_total"); got != 2 {
		t.Fatalf("expected ok and unknown-datarate series, got %d", got)
	}
	if got := testutil.CollectAndCount(metrics, "smcu_identity_init_total"); got != 1 {
		t.Fatalf("expected one identity init series, got %d", got)
	}
}

func TestNewPacketRecordKeepsRealLength(t *testing.T) {
	rec := NewPacketRecord(make([]byte, MaxPayloadSize+10))
	if int(rec.DataLen) != MaxPayloadSize+10 {
		t.Fatalf("unexpected length: %d", rec.DataLen)
	}
	if rec.valid() {
		t.Fatal("oversized record must be invalid")
	}
}

func TestStatusString(t *testing.T) {
	if StatusUnknownBandwidth.String() != "unknown bandwidth" {
		t.Fatalf("unexpected status text: %q", StatusUnknownBandwidth.String())
	}
	if Status(-99).String() != "status(-99)" {
		t.Fatalf("unexpected status text: %q", Status(-99).String())
	}
}
