// Command libsmcu builds the signer as a C shared library:
//
//	go build -buildmode=c-shared -o libsmcu.so ./cmd/libsmcu
//
// The generated libsmcu.h declares smcu_packet and the four entry points.
// Handles are opaque integers; a zero handle is never valid.
package main

/*
#include <stddef.h>
#include <stdint.h>

typedef struct {
	uint8_t  data[256];
	uint16_t data_len;
	uint8_t  bandwidth;
	uint8_t  datarate;
	uint32_t tmstmp;
	uint32_t freq_hz;
	float    rssi;
	float    snr;
} smcu_packet;
*/
import "C"

import (
	"os"
	"unsafe"

	"smcu/go-signer/internal/config"
	"smcu/go-signer/internal/platform/privacylog"
	"smcu/go-signer/internal/telemetry"
	"smcu/go-signer/pkg/smcu"

	"github.com/prometheus/client_golang/prometheus"
)

// metricsRegisterer receives the signer collectors. A host that embeds the
// library and serves the default registry scrapes them for free.
var metricsRegisterer prometheus.Registerer = prometheus.DefaultRegisterer

//export smcu_init
func smcu_init(out *C.uintptr_t) C.int32_t {
	if out == nil {
		return C.int32_t(smcu.StatusInvalidArgument)
	}
	m, status := initModule()
	if status != smcu.StatusOK {
		return C.int32_t(status)
	}
	*out = C.uintptr_t(newHandle(m))
	return C.int32_t(smcu.StatusOK)
}

func initModule() (*smcu.Module, smcu.Status) {
	settings, err := config.LoadFromPath(os.Getenv(config.EnvSettingsFile))
	logger := privacylog.NewLogger(os.Stderr, settings.LogLevel)
	if err != nil {
		logger.Error("settings unusable, using defaults", "reason", err.Error())
		settings = config.DefaultSettings()
	}
	metrics, err := telemetry.New(metricsRegisterer)
	if err != nil {
		logger.Error("metrics registration failed", "reason", err.Error())
	}
	return smcu.Initialize(smcu.Options{Settings: settings, Logger: logger, Metrics: metrics})
}

//export smcu_free
func smcu_free(h C.uintptr_t) {
	releaseHandle(uintptr(h))
}

//export smcu_sign
func smcu_sign(h C.uintptr_t, pkt *C.smcu_packet, recordSize C.size_t, sig *C.uint8_t) C.int32_t {
	m, ok := lookupHandle(uintptr(h))
	if !ok {
		return C.int32_t(smcu.StatusInvalidHandle)
	}
	if pkt == nil || sig == nil || uintptr(recordSize) != uintptr(C.sizeof_smcu_packet) {
		return C.int32_t(smcu.StatusInvalidArgument)
	}

	rec := smcu.PacketRecord{
		DataLen:     uint16(pkt.data_len),
		Bandwidth:   uint8(pkt.bandwidth),
		Datarate:    uint8(pkt.datarate),
		Timestamp:   uint32(pkt.tmstmp),
		FrequencyHz: uint32(pkt.freq_hz),
		RSSI:        float32(pkt.rssi),
		SNR:         float32(pkt.snr),
	}
	copy(rec.Data[:], unsafe.Slice((*byte)(unsafe.Pointer(&pkt.data[0])), len(rec.Data)))

	var out [smcu.SignatureSize]byte
	status := m.Sign(&rec, &out)
	if status == smcu.StatusOK {
		copy(unsafe.Slice((*byte)(unsafe.Pointer(sig)), smcu.SignatureSize), out[:])
	}
	return C.int32_t(status)
}

//export smcu_public_key
func smcu_public_key(h C.uintptr_t, pub *C.uint8_t) C.int32_t {
	m, ok := lookupHandle(uintptr(h))
	if !ok {
		return C.int32_t(smcu.StatusInvalidHandle)
	}
	if pub == nil {
		return C.int32_t(smcu.StatusInvalidArgument)
	}
	var out [smcu.PublicKeySize]byte
	status := m.PublicKey(&out)
	if status == smcu.StatusOK {
		copy(unsafe.Slice((*byte)(unsafe.Pointer(pub)), smcu.PublicKeySize), out[:])
	}
	return C.int32_t(status)
}

func main() {}
