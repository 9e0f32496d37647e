package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// bootstrapTimeout bounds the device id lookup.
const bootstrapTimeout = 10 * time.Second

// maxBootstrapBody bounds the lookup response.
const maxBootstrapBody = 16 * 1024

// Bootstrapper resolves the dashboard-assigned device identifier when it
// is not stored locally.
type Bootstrapper interface {
	FetchDeviceID(ctx context.Context, token string) (string, error)
}

// HTTPBootstrapper fetches the device id with an authenticated GET. The
// response is a JSON object carrying "deviceId" (or "id").
type HTTPBootstrapper struct {
	URL    string
	Client *http.Client
}

// NewHTTPBootstrapper creates a bootstrapper for url.
func NewHTTPBootstrapper(url string) *HTTPBootstrapper {
	return &HTTPBootstrapper{
		URL:    url,
		Client: &http.Client{Timeout: bootstrapTimeout},
	}
}

// FetchDeviceID performs the lookup.
func (b *HTTPBootstrapper) FetchDeviceID(ctx context.Context, token string) (string, error) {
	if b.URL == "" {
		return "", fmt.Errorf("%w: no bootstrap url", ErrBootstrapFailed)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.URL, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrBootstrapFailed, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	client := b.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrBootstrapFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: status %d", ErrBootstrapFailed, resp.StatusCode)
	}

	var body struct {
		DeviceID string `json:"deviceId"`
		ID       string `json:"id"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBootstrapBody)).Decode(&body); err != nil {
		return "", fmt.Errorf("%w: decoding response: %w", ErrBootstrapFailed, err)
	}

	id := body.DeviceID
	if id == "" {
		id = body.ID
	}
	if id == "" {
		return "", fmt.Errorf("%w: response has no device id", ErrBootstrapFailed)
	}
	return id, nil
}
