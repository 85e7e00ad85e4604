package ticket

import (
	"bytes"
	"strings"
	"testing"
)

func TestQRPayload_RoundTrip(t *testing.T) {
	payload := QRPayload("tck_42", "secret")
	id, ok := ParseQRPayload(payload)
	if !ok || id != "tck_42" {
		t.Errorf("ParseQRPayload(%q) = %q, %v", payload, id, ok)
	}
}

func TestParseQRPayload_RejectsGarbage(t *testing.T) {
	for _, bad := range []string{
		"",
		"tck_42",
		"OTHER:tck_42:abcdefabcdef",
		"GATE1::abcdefabcdef",
		"GATE1:tck_42:short",
		"GATE1:tck_42",
	} {
		if _, ok := ParseQRPayload(bad); ok {
			t.Errorf("ParseQRPayload(%q) accepted garbage", bad)
		}
	}
}

func TestQRPNG(t *testing.T) {
	png, err := QRPNG(QRPayload("tck_42", "secret"), 128)
	if err != nil {
		t.Fatalf("QRPNG: %v", err)
	}
	if !bytes.HasPrefix(png, []byte("\x89PNG")) {
		t.Error("output is not a PNG")
	}
}

func TestNewNumber(t *testing.T) {
	n := NewNumber()
	if !strings.HasPrefix(n, "TKT-") || len(n) != 12 {
		t.Errorf("unexpected ticket number %q", n)
	}
	if n == NewNumber() {
		t.Error("ticket numbers must not repeat")
	}
}
