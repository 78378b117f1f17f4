// Package oracle wraps the external image-judgment service behind a narrow
// client interface. The service receives a photo (plus a server-side clean
// reference image) and answers with a short free-text verdict; this package
// owns the HTTP plumbing, the transient/permanent error split, and the
// reduction of the service's vocabulary into a small Outcome enum so that
// nothing upstream ever depends on the oracle's exact wording.
package oracle

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

// Outcome is the reduced vocabulary of the judgment service. The raw reply is
// free text; Reduce maps it onto these values at the boundary.
type Outcome string

const (
	// OutcomeClean: the inspected tank matches the clean reference image.
	OutcomeClean Outcome = "clean"
	// OutcomeNeedsCleaning: the inspected tank still looks dirty.
	OutcomeNeedsCleaning Outcome = "needs_cleaning"
	// OutcomeSafe: the TDS meter reading is within drinking-water range.
	OutcomeSafe Outcome = "safe"
	// OutcomeUnsafe: the TDS meter reading is out of range.
	OutcomeUnsafe Outcome = "unsafe"
	// OutcomeUnknown: the service replied with something we cannot map.
	// Treated as "no judgment", never as a rejection.
	OutcomeUnknown Outcome = "unknown"
)

// Image is a resolved photo handed to the judgment service.
type Image struct {
	Data []byte
	MIME string
}

// Client is the judgment oracle consumed by the evidence verifier.
//
// CompareCleanliness judges one cooler photo against the clean reference.
// ReadTDS reads a TDS meter photo and judges drinking-water safety.
// Both return the reduced Outcome together with the service's raw reply text
// (kept for the human-readable verdict reason).
type Client interface {
	CompareCleanliness(ctx context.Context, img Image) (Outcome, string, error)
	ReadTDS(ctx context.Context, img Image) (Outcome, string, error)
}

// TransientError marks oracle failures that are worth retrying: network
// errors, timeouts, rate limiting, and 5xx replies. A well-formed judgment
// (including a negative one) is never wrapped in a TransientError.
type TransientError struct {
	Err error
}

// Error implements the error interface.
func (e *TransientError) Error() string { return "transient oracle failure: " + e.Err.Error() }

// Unwrap exposes the underlying cause for errors.Is/As chains.
func (e *TransientError) Unwrap() error { return e.Err }

// IsTransient reports whether err (or anything it wraps) is a TransientError.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// Prompts sent with each judgment call. The comparison prompts assume the
// service holds the clean reference image server-side and receives the photo
// to inspect as the sole attachment.
const (
	cleanlinessPrompt = "Image 1 is a 'clean reference' water cooler. Image 2 is a cooler photo to be checked. " +
		"Compare Image 2 to Image 1. Does Image 2 look as clean as Image 1? " +
		"Respond with only the words 'CLEAN' or 'NEEDS CLEANING'."

	tdsPrompt = "This is an image of a TDS (Total Dissolved Solids) meter. " +
		"Analyze the number. Is this reading safe for drinking water (e.g., generally below 300-500 ppm)? " +
		"Respond with only the single word 'SAFE' or 'UNSAFE'."
)

// HTTPClientOptions configures an HTTPClient.
type HTTPClientOptions struct {
	// Endpoint is the full URL of the judgment API, e.g.
	// "https://vision.example.com/v1/judge".
	Endpoint string
	// APIKey is sent as a bearer token when non-empty.
	APIKey string
	// Model names the vision model the service should use.
	Model string
	// Timeout bounds each HTTP round trip. Defaults to 30s.
	Timeout time.Duration
}

// HTTPClient talks to the judgment service over JSON/HTTP. It is safe for
// concurrent use.
type HTTPClient struct {
	endpoint string
	apiKey   string
	model    string
	hc       *http.Client
}

// NewHTTPClient constructs an HTTPClient from opts.
func NewHTTPClient(opts HTTPClientOptions) *HTTPClient {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPClient{
		endpoint: opts.Endpoint,
		apiKey:   opts.APIKey,
		model:    opts.Model,
		hc:       &http.Client{Timeout: timeout},
	}
}

// judgeRequest is the wire shape of one judgment call.
type judgeRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	// ImageB64 is the photo to inspect, base64-encoded.
	ImageB64 string `json:"image"`
	MIME     string `json:"mime_type"`
}

// judgeResponse is the wire shape of the service's reply.
type judgeResponse struct {
	Text string `json:"text"`
}

// CompareCleanliness implements Client.
func (c *HTTPClient) CompareCleanliness(ctx context.Context, img Image) (Outcome, string, error) {
	raw, err := c.call(ctx, cleanlinessPrompt, img)
	if err != nil {
		return OutcomeUnknown, "", err
	}
	return ReduceCleanliness(raw), raw, nil
}

// ReadTDS implements Client.
func (c *HTTPClient) ReadTDS(ctx context.Context, img Image) (Outcome, string, error) {
	raw, err := c.call(ctx, tdsPrompt, img)
	if err != nil {
		return OutcomeUnknown, "", err
	}
	return ReduceTDS(raw), raw, nil
}

// call performs one judgment round trip and classifies failures as transient
// or permanent.
func (c *HTTPClient) call(ctx context.Context, prompt string, img Image) (string, error) {
	body, err := json.Marshal(judgeRequest{
		Model:    c.model,
		Prompt:   prompt,
		ImageB64: base64.StdEncoding.EncodeToString(img.Data),
		MIME:     img.MIME,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		// Network-level failures (DNS, refused, deadline) are retryable.
		var nerr net.Error
		if errors.As(err, &nerr) || !errors.Is(err, context.Canceled) {
			return "", &TransientError{Err: err}
		}
		return "", err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", &TransientError{Err: err}
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		// fallthrough to decode
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return "", &TransientError{Err: fmt.Errorf("oracle returned %d: %s", resp.StatusCode, truncateBody(data))}
	default:
		return "", fmt.Errorf("oracle returned %d: %s", resp.StatusCode, truncateBody(data))
	}

	var jr judgeResponse
	if err := json.Unmarshal(data, &jr); err != nil {
		return "", fmt.Errorf("decode oracle reply: %w", err)
	}
	return jr.Text, nil
}

// ReduceCleanliness maps the raw cleanliness reply to an Outcome. The
// "NEEDS CLEANING" check runs first since that phrase contains "CLEAN".
func ReduceCleanliness(raw string) Outcome {
	text := strings.ToUpper(strings.TrimSpace(raw))
	switch {
	case strings.Contains(text, "NEEDS CLEANING"):
		return OutcomeNeedsCleaning
	case strings.Contains(text, "CLEAN"):
		return OutcomeClean
	default:
		return OutcomeUnknown
	}
}

// ReduceTDS maps the raw TDS reply to an Outcome. "UNSAFE" is checked first
// since it contains "SAFE".
func ReduceTDS(raw string) Outcome {
	text := strings.ToUpper(strings.TrimSpace(raw))
	switch {
	case strings.Contains(text, "UNSAFE"):
		return OutcomeUnsafe
	case strings.Contains(text, "SAFE"):
		return OutcomeSafe
	default:
		return OutcomeUnknown
	}
}

// truncateBody clips an error body for inclusion in error messages.
func truncateBody(b []byte) string {
	const max = 256
	s := strings.TrimSpace(string(b))
	if len(s) > max {
		return s[:max] + "…"
	}
	return s
}
