package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"bannerforge/internal/generate"
)

const defaultTimeout = 30 * time.Second

const systemInstruction = "You are an expert banner designer. Your task is to analyze design guidelines, " +
	"marketing copy, and reference templates to create a detailed prompt for an image-generation model " +
	"to produce a high-quality advertising banner."

// Options configures the OpenAI-backed analyzer. APIKey is required; the rest
// falls back to sensible defaults.
type Options struct {
	APIKey       string
	Model        string
	BaseURL      string
	Organization string
	HTTPClient   *http.Client
}

// Client calls the OpenAI chat completions API with multimodal content to
// synthesize an image-generation prompt from the normalized inputs.
type Client struct {
	apiKey       string
	model        string
	baseURL      string
	organization string
	client       *http.Client
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string        `json:"role"`
	Content []contentPart `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// NewClient validates the options and constructs an analyzer client.
func NewClient(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, errors.New("analysis: openai api key is required")
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = "gpt-4o"
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
		client:       client,
	}, nil
}

// Synthesize sends guideline, copy and the image attachment(s) and returns
// the prompt from the first completion choice. The reference attachment is
// included only when present; nothing else about the call changes.
func (c *Client) Synthesize(ctx context.Context, in generate.NormalizedInput) (string, error) {
	userParts := []contentPart{
		{
			Type: "text",
			Text: fmt.Sprintf(
				"Guideline: %s\n\nMarketing Copy: %s\n\nPlease analyze these and the attached template/reference images to create a prompt for a banner. The banner MUST include the exact marketing copy.",
				in.Guideline, in.Copy,
			),
		},
		{Type: "image_url", ImageURL: &imageURL{URL: in.TemplateDataURI}},
	}
	if in.ReferenceDataURI != "" {
		userParts = append(userParts, contentPart{Type: "image_url", ImageURL: &imageURL{URL: in.ReferenceDataURI}})
	}

	payload := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: []contentPart{{Type: "text", Text: systemInstruction}}},
			{Role: "user", Content: userParts},
		},
	}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(payload); err != nil {
		return "", &generate.AnalysisError{Kind: generate.AnalysisTransport, Err: fmt.Errorf("encode request: %w", err)}
	}

	endpoint := fmt.Sprintf("%s/chat/completions", c.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &buf)
	if err != nil {
		return "", &generate.AnalysisError{Kind: generate.AnalysisTransport, Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	if c.organization != "" {
		httpReq.Header.Set("OpenAI-Organization", c.organization)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", fmt.Errorf("%w: analysis call: %v", generate.ErrTimeout, err)
		}
		return "", &generate.AnalysisError{Kind: generate.AnalysisTransport, Err: err}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= 300 {
		return "", statusError(resp)
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", &generate.AnalysisError{Kind: generate.AnalysisTransport, Err: fmt.Errorf("decode response: %w", err)}
	}
	if len(out.Choices) == 0 {
		return "", &generate.AnalysisError{Kind: generate.AnalysisEmptyResponse, Err: errors.New("no choices")}
	}
	text := strings.TrimSpace(out.Choices[0].Message.Content)
	if text == "" {
		return "", &generate.AnalysisError{Kind: generate.AnalysisEmptyResponse, Err: errors.New("empty content")}
	}
	return text, nil
}

func statusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	cause := fmt.Errorf("openai status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return &generate.AnalysisError{Kind: generate.AnalysisUnauthorized, Err: cause}
	case http.StatusTooManyRequests:
		return &generate.AnalysisError{Kind: generate.AnalysisQuotaExceeded, Err: cause}
	default:
		return &generate.AnalysisError{Kind: generate.AnalysisTransport, Err: cause}
	}
}

var _ generate.Analyzer = (*Client)(nil)
