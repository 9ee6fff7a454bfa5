// Package doctor reports whether a device is ready to sign: the key file is
// present, private and loadable, and the identity fits the configured wire
// format.
package doctor

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"runtime"
	"time"

	"smcu/go-signer/internal/config"
	"smcu/go-signer/internal/identity"
	"smcu/go-signer/internal/radioparam"
	"smcu/go-signer/internal/securestore"
	"smcu/go-signer/internal/signer"
)

type Check struct {
	Name   string `json:"name"`
	Pass   bool   `json:"pass"`
	Reason string `json:"reason,omitempty"`
}

type Report struct {
	Ready       bool      `json:"ready"`
	Fingerprint string    `json:"fingerprint,omitempty"`
	Checks      []Check   `json:"checks"`
	CheckedAt   time.Time `json:"checked_at"`
}

var now = func() time.Time { return time.Now().UTC() }

// probePacket is signed and verified to prove the stored key is usable.
var probePacket = signer.Packet{
	Payload:     []byte("smcu-doctor"),
	Timestamp:   1,
	RSSI:        -100,
	SNR:         5,
	FrequencyHz: 868100000,
	Bandwidth:   byte(radioparam.BW125),
	Datarate:    byte(radioparam.SF7),
}

// Run never modifies the key file; a missing file is reported, not created.
func Run(settings config.Settings) Report {
	report := Report{
		Ready:     true,
		Checks:    make([]Check, 0, 8),
		CheckedAt: now(),
	}
	appendCheck := func(name string, pass bool, reason string) {
		report.Checks = append(report.Checks, Check{Name: name, Pass: pass, Reason: reason})
		if !pass {
			report.Ready = false
		}
	}

	formatValid := settings.WireFormat.Valid()
	appendCheck("wire_format_valid", formatValid, failReason(!formatValid, fmt.Sprintf("wire format %d is not supported", settings.WireFormat)))

	info, err := os.Stat(settings.KeyFile)
	if err != nil {
		reason := err.Error()
		if errors.Is(err, fs.ErrNotExist) {
			reason = "key file does not exist; run init"
		}
		appendCheck("key_file_present", false, reason)
		return report
	}
	appendCheck("key_file_present", true, "")

	if runtime.GOOS != "windows" {
		perm := info.Mode().Perm()
		private := perm&0o077 == 0
		appendCheck("key_file_private", private, failReason(!private, fmt.Sprintf("key file mode is %o, want owner-only (e.g. 600)", perm)))
	}

	raw, err := os.ReadFile(settings.KeyFile)
	if err != nil {
		appendCheck("key_file_readable", false, err.Error())
		return report
	}
	sealed := securestore.IsSealed(raw)
	if sealed && settings.Passphrase == "" {
		appendCheck("key_file_unsealable", false, "key file is sealed and no passphrase is configured")
		return report
	}

	id, err := identity.Load(settings.KeyFile, settings.Passphrase)
	if err != nil {
		appendCheck("identity_loads", false, err.Error())
		return report
	}
	defer id.Wipe()
	appendCheck("identity_loads", true, "")
	report.Fingerprint = id.Fingerprint()

	if settings.WireFormat == signer.FormatV2 {
		hasHW := id.HardwareID() != ""
		appendCheck("hardware_id_present", hasHW, failReason(!hasHW, "wire format v2 signs the hardware id but the identity has none"))
	}

	if formatValid {
		sig, err := signer.Sign(id, settings.WireFormat, probePacket)
		switch {
		case err != nil:
			appendCheck("sign_self_test", false, err.Error())
		case !signer.Verify(id.PublicKey(), settings.WireFormat, probePacket, id.HardwareID(), sig):
			appendCheck("sign_self_test", false, "signature over probe packet does not verify")
		default:
			appendCheck("sign_self_test", true, "")
		}
	}
	return report
}

func failReason(failed bool, reason string) string {
	if !failed {
		return ""
	}
	return reason
}
