// Package privacylog wraps a slog.Handler so that key material never reaches
// log output and packet contents are only logged as per-boot fingerprints.
package privacylog

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

const redactedValue = "[REDACTED]"

var (
	bootNonce = randomNonce()
	// Keys whose values are replaced by a fingerprint under "<key>_fp".
	fingerprintKeys = map[string]struct{}{
		"payload":           {},
		"canonical_message": {},
		"hardware_id":       {},
	}
	sensitiveKeyParts = []string{"secret", "seed", "mnemonic", "passphrase", "private", "password", "key_material"}
)

type SanitizingHandler struct {
	next slog.Handler
}

func WrapHandler(next slog.Handler) slog.Handler {
	if next == nil {
		return nil
	}
	return &SanitizingHandler{next: next}
}

// NewLogger builds the JSON logger used by the binaries, already sanitized.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(WrapHandler(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})))
}

func (h *SanitizingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *SanitizingHandler) Handle(ctx context.Context, rec slog.Record) error {
	out := slog.NewRecord(rec.Time, rec.Level, rec.Message, rec.PC)
	rec.Attrs(func(attr slog.Attr) bool {
		out.AddAttrs(SanitizeAttr(attr))
		return true
	})
	return h.next.Handle(ctx, out)
}

func (h *SanitizingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make([]slog.Attr, 0, len(attrs))
	for _, attr := range attrs {
		out = append(out, SanitizeAttr(attr))
	}
	return &SanitizingHandler{next: h.next.WithAttrs(out)}
}

func (h *SanitizingHandler) WithGroup(name string) slog.Handler {
	return &SanitizingHandler{next: h.next.WithGroup(name)}
}

func SanitizeAttr(attr slog.Attr) slog.Attr {
	key := strings.TrimSpace(attr.Key)
	lowerKey := strings.ToLower(key)
	switch {
	case isSensitiveKey(lowerKey):
		return slog.String(key, redactedValue)
	case isFingerprintKey(lowerKey):
		return slog.String(key+"_fp", Fingerprint(valueBytes(attr.Value)))
	case attr.Value.Kind() == slog.KindGroup:
		group := attr.Value.Group()
		sanitized := make([]any, 0, len(group))
		for _, a := range group {
			sanitized = append(sanitized, SanitizeAttr(a))
		}
		return slog.Group(key, sanitized...)
	}
	return attr
}

// Fingerprint hashes b with a per-process nonce: stable within one run,
// unlinkable across restarts.
func Fingerprint(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	h := sha256.New()
	h.Write(b)
	h.Write([]byte("|" + bootNonce))
	return "fp_" + hex.EncodeToString(h.Sum(nil)[:8])
}

func isFingerprintKey(key string) bool {
	_, ok := fingerprintKeys[key]
	return ok
}

func isSensitiveKey(key string) bool {
	for _, part := range sensitiveKeyParts {
		if strings.Contains(key, part) {
			return true
		}
	}
	return false
}

func valueBytes(v slog.Value) []byte {
	v = v.Resolve()
	if v.Kind() == slog.KindAny {
		switch x := v.Any().(type) {
		case []byte:
			return x
		case fmt.Stringer:
			return []byte(x.String())
		}
	}
	return []byte(v.String())
}

func randomNonce() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "fallback_nonce"
	}
	return hex.EncodeToString(buf)
}
