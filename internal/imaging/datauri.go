package imaging

import (
	"encoding/base64"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// MaxImageBytes is the ceiling on decoded image size (5MB). The data-URI
// length check multiplies by 1.33 to account for base64 overhead.
const MaxImageBytes = 5 * 1024 * 1024

var dataURIPattern = regexp.MustCompile(`^data:image/(png|jpeg|jpg|gif|webp);base64,`)

// ValidationError describes a rejected image payload with a user-facing
// reason and a suggestion on how to fix the input.
type ValidationError struct {
	Reason     string
	Suggestion string
	// Oversize marks size-ceiling failures so the handler can answer 413
	// instead of 400.
	Oversize bool
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// DataURI is a parsed, validated image data URI.
type DataURI struct {
	// Full is the original data URI string.
	Full string
	// MIMEType is the declared image type, e.g. "image/png".
	MIMEType string
	// Payload is the decoded image bytes.
	Payload []byte
}

// ValidateDataURI runs the ordered checks on a raw image field: present,
// textual, well-formed image data URI, and within the size ceiling. It
// returns a *ValidationError describing the first failed check.
func ValidateDataURI(raw string) *ValidationError {
	if raw == "" {
		return &ValidationError{
			Reason:     "no image was provided",
			Suggestion: "attach a chart screenshot and try again",
		}
	}
	if !utf8.ValidString(raw) {
		return &ValidationError{
			Reason:     "the image field is not readable text",
			Suggestion: "send the image as a base64 data URI",
		}
	}
	if !dataURIPattern.MatchString(raw) {
		return &ValidationError{
			Reason:     "the image is not a supported format",
			Suggestion: "use a PNG, JPEG, GIF or WebP screenshot",
		}
	}
	if float64(len(raw)) > float64(MaxImageBytes)*1.33 {
		return &ValidationError{
			Reason:     "the image is too large",
			Suggestion: "use a screenshot under 5MB",
			Oversize:   true,
		}
	}
	return nil
}

// ParseDataURI validates and decodes an image data URI.
func ParseDataURI(raw string) (*DataURI, error) {
	if verr := ValidateDataURI(raw); verr != nil {
		return nil, verr
	}

	match := dataURIPattern.FindStringSubmatch(raw)
	subtype := match[1]
	if subtype == "jpg" {
		subtype = "jpeg"
	}

	comma := strings.Index(raw, ",")
	payload, err := base64.StdEncoding.DecodeString(raw[comma+1:])
	if err != nil {
		return nil, &ValidationError{
			Reason:     "the image data could not be decoded",
			Suggestion: "re-export the screenshot and try again",
		}
	}
	if len(payload) > MaxImageBytes {
		return nil, &ValidationError{
			Reason:     "the image is too large",
			Suggestion: "use a screenshot under 5MB",
			Oversize:   true,
		}
	}

	return &DataURI{
		Full:     raw,
		MIMEType: "image/" + subtype,
		Payload:  payload,
	}, nil
}

// EncodeJPEGDataURI wraps JPEG bytes back into a data URI.
func EncodeJPEGDataURI(payload []byte) string {
	return fmt.Sprintf("data:image/jpeg;base64,%s", base64.StdEncoding.EncodeToString(payload))
}
