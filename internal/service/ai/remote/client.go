// Package remote calls an HTTP object-detection service.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"detectserver/internal/model"
	"detectserver/internal/service/imaging"
)

// Client delegates inference to an HTTP service that accepts a
// multipart image plus a "model" field and answers with
// {"detections":[{left,top,right,bottom,label,confidence}]}.
type Client struct {
	inferenceURL string
	httpClient   *http.Client
}

// NewClient creates a detector for inferenceURL. A nil client gets
// a default with a one-minute timeout.
func NewClient(inferenceURL string, client *http.Client) *Client {
	if client == nil {
		client = &http.Client{Timeout: time.Minute}
	}
	return &Client{
		inferenceURL: inferenceURL,
		httpClient:   client,
	}
}

// Detect sends buf, JPEG-encoded, to the inference service.
func (c *Client) Detect(ctx context.Context, buf *model.PixelBuffer, selector model.ModelSelector) ([]model.Detection, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	if err := writer.WriteField("model", string(selector)); err != nil {
		return nil, fmt.Errorf("write model field: %w", err)
	}
	part, err := writer.CreateFormFile("file", "image.jpg")
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if err := imaging.EncodeJPEG(part, buf); err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.inferenceURL, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("inference failed with status %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}

	var result struct {
		Detections []model.DetectionResult `json:"detections"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	detections := make([]model.Detection, 0, len(result.Detections))
	for _, r := range result.Detections {
		detections = append(detections, r.Detection())
	}
	return detections, nil
}

// CheckHealth probes <inferenceURL>/health.
func (c *Client) CheckHealth(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.inferenceURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ml service unhealthy: %d", resp.StatusCode)
	}
	return nil
}

// Close is a no-op; it lets Client share the backend lifecycle.
func (c *Client) Close() error {
	return nil
}
