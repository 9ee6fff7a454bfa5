package radioparam

import (
	"errors"
	"testing"
)

func TestDecodeDatarateAcceptsClosedSet(t *testing.T) {
	for code := byte(5); code <= 12; code++ {
		dr, err := DecodeDatarate(code)
		if err != nil {
			t.Fatalf("decode datarate %d failed: %v", code, err)
		}
		if byte(dr) != code {
			t.Fatalf("expected datarate %d, got %d", code, dr)
		}
	}
	if dr, _ := DecodeDatarate(6); dr != SF6 {
		t.Fatalf("expected SF6, got %s", dr)
	}
}

func TestDecodeDatarateRejectsUnknownCodes(t *testing.T) {
	for _, code := range []byte{0, 4, 13, 0xff} {
		if _, err := DecodeDatarate(code); !errors.Is(err, ErrUnknownDatarate) {
			t.Fatalf("expected ErrUnknownDatarate for %d, got %v", code, err)
		}
	}
}

func TestDecodeBandwidth(t *testing.T) {
	cases := []struct {
		code byte
		want Bandwidth
		name string
	}{
		{code: 0x04, want: BW125, name: "BW125"},
		{code: 0x05, want: BW250, name: "BW250"},
		{code: 0x06, want: BW500, name: "BW500"},
	}
	for _, tc := range cases {
		got, err := DecodeBandwidth(tc.code)
		if err != nil {
			t.Fatalf("decode bandwidth %#x failed: %v", tc.code, err)
		}
		if got != tc.want || got.String() != tc.name {
			t.Fatalf("unexpected bandwidth for %#x: %s", tc.code, got)
		}
	}
	for _, code := range []byte{0x00, 0x03, 0x07} {
		if _, err := DecodeBandwidth(code); !errors.Is(err, ErrUnknownBandwidth) {
			t.Fatalf("expected ErrUnknownBandwidth for %#x, got %v", code, err)
		}
	}
}

func TestRenderToken(t *testing.T) {
	if got := Render(SF10, BW125); got != "SF10BW125" {
		t.Fatalf("unexpected token: %q", got)
	}
	if got := Render(SF7, BW500); got != "SF7BW500" {
		t.Fatalf("unexpected token: %q", got)
	}
}

func TestDecodeStopsAtFirstError(t *testing.T) {
	if _, err := Decode(13, 0x07); !errors.Is(err, ErrUnknownDatarate) {
		t.Fatalf("expected datarate error first, got %v", err)
	}
	if _, err := Decode(12, 0x07); !errors.Is(err, ErrUnknownBandwidth) {
		t.Fatalf("expected bandwidth error, got %v", err)
	}
	token, err := Decode(12, 0x05)
	if err != nil || token != "SF12BW250" {
		t.Fatalf("unexpected decode result: %q, %v", token, err)
	}
}

func TestBandwidthKHz(t *testing.T) {
	if BW250.KHz() != 250 {
		t.Fatalf("unexpected khz: %d", BW250.KHz())
	}
	if Bandwidth(0x07).KHz() != 0 {
		t.Fatal("unknown bandwidth must report 0 khz")
	}
}
