package imagegen

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"bannerforge/internal/generate"
)

const defaultTimeout = 60 * time.Second

// Options configures the OpenAI images client. APIKey is required.
type Options struct {
	APIKey       string
	Model        string
	BaseURL      string
	Organization string
	// Size and Quality default to 1024x1024 / hd.
	Size       string
	Quality    string
	HTTPClient *http.Client
}

// Client calls the OpenAI images API requesting exactly one image with the
// payload embedded as base64 rather than a remote URL, so the bytes are in
// hand without a second fetch.
type Client struct {
	apiKey       string
	model        string
	baseURL      string
	organization string
	size         string
	quality      string
	client       *http.Client
}

type imageRequest struct {
	Model          string `json:"model"`
	Prompt         string `json:"prompt"`
	N              int    `json:"n"`
	Size           string `json:"size"`
	Quality        string `json:"quality"`
	ResponseFormat string `json:"response_format"`
}

type imageResponse struct {
	Data []struct {
		B64JSON string `json:"b64_json"`
	} `json:"data"`
}

// NewClient validates the options and constructs an image producer.
func NewClient(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, errors.New("imagegen: openai api key is required")
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = "dall-e-3"
	}
	size := strings.TrimSpace(opts.Size)
	if size == "" {
		size = "1024x1024"
	}
	quality := strings.TrimSpace(opts.Quality)
	if quality == "" {
		quality = "hd"
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{
		apiKey:       strings.TrimSpace(opts.APIKey),
		model:        model,
		baseURL:      baseURL,
		organization: strings.TrimSpace(opts.Organization),
		size:         size,
		quality:      quality,
		client:       client,
	}, nil
}

// Produce generates one image for the prompt and returns the decoded bytes.
// A success response without a decodable payload is ErrImageDecode, a hard
// error rather than a default.
func (c *Client) Produce(ctx context.Context, prompt string) ([]byte, error) {
	payload := imageRequest{
		Model:          c.model,
		Prompt:         prompt,
		N:              1,
		Size:           c.size,
		Quality:        c.quality,
		ResponseFormat: "b64_json",
	}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(payload); err != nil {
		return nil, fmt.Errorf("imagegen: encode request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/images/generations", c.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &buf)
	if err != nil {
		return nil, fmt.Errorf("imagegen: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	if c.organization != "" {
		httpReq.Header.Set("OpenAI-Organization", c.organization)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: image call: %v", generate.ErrTimeout, err)
		}
		return nil, fmt.Errorf("imagegen: request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("imagegen: openai status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out imageResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("imagegen: decode response: %w", err)
	}
	if len(out.Data) == 0 || strings.TrimSpace(out.Data[0].B64JSON) == "" {
		return nil, fmt.Errorf("%w: response carried no image data", generate.ErrImageDecode)
	}
	data, err := base64.StdEncoding.DecodeString(out.Data[0].B64JSON)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", generate.ErrImageDecode, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: decoded payload is empty", generate.ErrImageDecode)
	}
	return data, nil
}

var _ generate.Producer = (*Client)(nil)
