package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

// RemoteBackend sends each image to a model server over HTTP. The server
// receives the PNG as the request body and answers with
// [{"className": "Porn", "probability": 0.93}, ...].
type RemoteBackend struct {
	endpoint string
	client   *http.Client
}

// NewRemoteBackend creates a backend for endpoint. client may be nil.
func NewRemoteBackend(endpoint string, client *http.Client) *RemoteBackend {
	if client == nil {
		client = &http.Client{}
	}
	return &RemoteBackend{endpoint: endpoint, client: client}
}

func (b *RemoteBackend) Name() string { return "remote" }

// Load checks that the endpoint is a usable URL. The server itself is not
// contacted; it may come up after this process does.
func (b *RemoteBackend) Load(ctx context.Context) error {
	u, err := url.Parse(b.endpoint)
	if err != nil {
		return fmt.Errorf("invalid classifier URL: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid classifier URL %q", b.endpoint)
	}
	return nil
}

func (b *RemoteBackend) Classify(ctx context.Context, png []byte) (Prediction, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.endpoint, bytes.NewReader(png))
	if err != nil {
		return Prediction{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "image/png")
	req.Header.Set("Accept", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return Prediction{}, fmt.Errorf("classifier request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Prediction{}, fmt.Errorf("classifier returned status %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}

	var classes []ClassProbability
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&classes); err != nil {
		return Prediction{}, fmt.Errorf("decode classifier response: %w", err)
	}
	return PredictionFromClasses(classes)
}
