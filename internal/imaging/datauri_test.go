package imaging

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"strings"
	"testing"
)

func pngDataURI(t *testing.T, w, h int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 120, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
}

func TestValidateDataURI(t *testing.T) {
	maxBytes := MaxImageBytes
	tests := []struct {
		name       string
		input      string
		wantReason string
	}{
		{
			name:       "empty input",
			input:      "",
			wantReason: "no image was provided",
		},
		{
			name:       "not a data uri",
			input:      "hello world",
			wantReason: "not a supported format",
		},
		{
			name:       "unsupported subtype",
			input:      "data:image/tiff;base64,AAAA",
			wantReason: "not a supported format",
		},
		{
			name:       "pdf masquerading as image",
			input:      "data:application/pdf;base64,AAAA",
			wantReason: "not a supported format",
		},
		{
			name:       "oversized payload",
			input:      "data:image/png;base64," + strings.Repeat("A", int(float64(maxBytes)*1.33)+16),
			wantReason: "too large",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			verr := ValidateDataURI(tc.input)
			if verr == nil {
				t.Fatal("expected validation error, got nil")
			}
			if !strings.Contains(verr.Reason, tc.wantReason) {
				t.Errorf("reason = %q, want it to contain %q", verr.Reason, tc.wantReason)
			}
			if verr.Suggestion == "" {
				t.Error("expected a non-empty suggestion")
			}
		})
	}
}

func TestValidateDataURIAcceptsSupportedTypes(t *testing.T) {
	for _, subtype := range []string{"png", "jpeg", "jpg", "gif", "webp"} {
		uri := "data:image/" + subtype + ";base64,AAAA"
		if verr := ValidateDataURI(uri); verr != nil {
			t.Errorf("subtype %s rejected: %s", subtype, verr.Reason)
		}
	}
}

func TestParseDataURI(t *testing.T) {
	uri := pngDataURI(t, 4, 4)
	parsed, err := ParseDataURI(uri)
	if err != nil {
		t.Fatalf("ParseDataURI: %v", err)
	}
	if parsed.MIMEType != "image/png" {
		t.Errorf("mime = %s, want image/png", parsed.MIMEType)
	}
	if len(parsed.Payload) == 0 {
		t.Error("expected decoded payload bytes")
	}
	if parsed.Full != uri {
		t.Error("expected Full to keep the original string")
	}
}

func TestParseDataURINormalizesJpgSubtype(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}
	uri := "data:image/jpg;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())

	parsed, err := ParseDataURI(uri)
	if err != nil {
		t.Fatalf("ParseDataURI: %v", err)
	}
	if parsed.MIMEType != "image/jpeg" {
		t.Errorf("mime = %s, want image/jpeg", parsed.MIMEType)
	}
}

func TestParseDataURIRejectsBadBase64(t *testing.T) {
	_, err := ParseDataURI("data:image/png;base64,!!!not-base64!!!")
	if err == nil {
		t.Fatal("expected decode error")
	}
	verr, ok := err.(*ValidationError)
	if !ok {
		t.Fatalf("expected *ValidationError, got %T", err)
	}
	if !strings.Contains(verr.Reason, "could not be decoded") {
		t.Errorf("unexpected reason: %s", verr.Reason)
	}
}
