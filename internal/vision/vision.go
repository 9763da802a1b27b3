package vision

import (
	"context"
	"encoding/json"
	"errors"
)

var (
	// ErrNotConfigured is returned when no vision API key is set.
	ErrNotConfigured = errors.New("vision client not configured")
	// ErrEmptyResponse is returned when the model produced no content.
	ErrEmptyResponse = errors.New("empty response from vision model")
	// ErrBadResponse is returned when the model content is not valid JSON.
	ErrBadResponse = errors.New("vision model returned malformed JSON")
)

// AnalyzeInput carries the normalized chart image and prompt language.
type AnalyzeInput struct {
	// ImageDataURI is the normalized chart as a base64 data URI.
	ImageDataURI string
	// Language selects the prompt, "fr" or "en". Defaults to "fr".
	Language string
}

// Client calls a vision model to read a trading chart. The returned raw
// message is the model's JSON object, unparsed.
type Client interface {
	Analyze(ctx context.Context, in AnalyzeInput) (json.RawMessage, error)
}
