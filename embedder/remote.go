package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"time"

	"gocv.io/x/gocv"

	"simbench/types"
)

// featureResponse is the JSON body returned by a feature extraction service
type featureResponse struct {
	Features []float32 `json:"features"`
	Model    string    `json:"model,omitempty"`
}

// RemoteEmbedder sends images to an HTTP feature extraction service
type RemoteEmbedder struct {
	endpoint string
	client   *http.Client
}

// NewRemoteEmbedder creates an embedder posting to endpoint
func NewRemoteEmbedder(endpoint string, timeout time.Duration) (*RemoteEmbedder, error) {
	u, err := url.Parse(endpoint)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid feature service url %q", endpoint)
	}
	return &RemoteEmbedder{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}, nil
}

// Embed uploads img as PNG in the multipart field "image"
func (e *RemoteEmbedder) Embed(ctx context.Context, img gocv.Mat) (types.Embedding, error) {
	if img.Empty() {
		return nil, fmt.Errorf("cannot embed empty image")
	}

	// encoders expect BGR
	bgr := gocv.NewMat()
	defer bgr.Close()
	gocv.CvtColor(img, &bgr, gocv.ColorRGBToBGR)

	encoded, err := gocv.IMEncode(gocv.PNGFileExt, bgr)
	if err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	defer encoded.Close()

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	part, err := form.CreateFormFile("image", "image.png")
	if err != nil {
		return nil, fmt.Errorf("failed to create request body: %w", err)
	}
	if _, err := part.Write(encoded.GetBytes()); err != nil {
		return nil, fmt.Errorf("failed to create request body: %w", err)
	}
	if err := form.Close(); err != nil {
		return nil, fmt.Errorf("failed to create request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, &body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("feature service request failed: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read feature service response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("feature service returned %s: %s", resp.Status, bytes.TrimSpace(payload))
	}

	var parsed featureResponse
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse feature service response: %w", err)
	}
	if len(parsed.Features) == 0 {
		return nil, fmt.Errorf("feature service returned no features")
	}
	return parsed.Features, nil
}

// Name identifies the remote service
func (e *RemoteEmbedder) Name() string {
	return "remote:" + e.endpoint
}

// Close releases idle connections
func (e *RemoteEmbedder) Close() error {
	e.client.CloseIdleConnections()
	return nil
}
