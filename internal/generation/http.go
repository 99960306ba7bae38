package generation

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPGenerator calls a diffusion inference endpoint over HTTP. The endpoint
// takes {"prompt": ...} and returns the image as base64 plus the safety
// checker's verdict, the shape exposed by common Stable Diffusion servers.
type HTTPGenerator struct {
	endpoint  string
	authToken string
	client    *http.Client
}

// NewHTTPGenerator returns a generator for the given endpoint. timeout bounds
// the full request; diffusion runs tens of seconds, so pass something generous.
func NewHTTPGenerator(endpoint, authToken string, timeout time.Duration) *HTTPGenerator {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &HTTPGenerator{
		endpoint:  endpoint,
		authToken: authToken,
		client:    &http.Client{Timeout: timeout},
	}
}

type generateRequest struct {
	Prompt string `json:"prompt"`
}

type generateResponse struct {
	Image        string `json:"image"`
	NSFWDetected bool   `json:"nsfw_content_detected"`
}

// Generate runs one inference call and decodes the result.
func (g *HTTPGenerator) Generate(ctx context.Context, prompt string) (*Output, error) {
	body, err := json.Marshal(generateRequest{Prompt: prompt})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if g.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+g.authToken)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("generation request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("generation endpoint returned %d: %s", resp.StatusCode, string(b))
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode generation response: %w", err)
	}
	if out.NSFWDetected {
		return &Output{Unsafe: true}, nil
	}
	image, err := base64.StdEncoding.DecodeString(out.Image)
	if err != nil {
		return nil, fmt.Errorf("decode generated image: %w", err)
	}
	return &Output{Image: image}, nil
}

// Close is a no-op for HTTPGenerator.
func (g *HTTPGenerator) Close() error {
	return nil
}
