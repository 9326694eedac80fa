package qr

import (
	"bytes"
	"strings"
	"testing"

	"github.com/jeremyhahn/go-twofactor/pkg/otp"
)

const testURI = "otpauth://totp/ACME:alice?secret=JBSWY3DPEHPK3PXP&issuer=ACME"

var (
	_ otp.ImageEncoder = PNG{}
	_ otp.ImageEncoder = SVG{}
)

func TestPNG(t *testing.T) {
	b, err := PNG{Size: 128}.Encode(testURI)
	if err != nil {
		t.Fatal(err)
	}
	if len(b) < 8 || !bytes.HasPrefix(b, []byte{0x89, 'P', 'N', 'G'}) {
		t.Fatalf("not png: %v", b[:8])
	}
	if got := (PNG{}).ContentType(); got != "image/png" {
		t.Errorf("content type = %q", got)
	}
}

func TestPNGDefaultSize(t *testing.T) {
	b, err := PNG{}.Encode(testURI)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(b, []byte{0x89, 'P', 'N', 'G'}) {
		t.Fatal("not png")
	}
}

func TestSVG(t *testing.T) {
	b, err := SVG{ModuleSize: 4}.Encode(testURI)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(b, []byte("<svg")) || !bytes.HasSuffix(b, []byte("</svg>")) {
		t.Fatal("not svg")
	}
	if !bytes.Contains(b, []byte(`fill="black"`)) {
		t.Error("svg has no modules")
	}
	if got := (SVG{}).ContentType(); got != "image/svg+xml" {
		t.Errorf("content type = %q", got)
	}
}

func TestTerminal(t *testing.T) {
	s, err := Terminal(testURI)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Count(s, "\n") < 10 {
		t.Fatalf("unexpectedly short rendering: %q", s)
	}
}

func TestProvisionerImage(t *testing.T) {
	p := otp.NewProvisioner(otp.WithImageEncoder(SVG{}))
	rec, err := p.Register(otp.Spec{Name: "alice", Issuer: "ACME"})
	if err != nil {
		t.Fatal(err)
	}
	if rec.Image == nil || rec.Image.ContentType != "image/svg+xml" {
		t.Fatalf("unexpected image: %+v", rec.Image)
	}
}
