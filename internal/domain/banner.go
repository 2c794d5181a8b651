package domain

import (
	"fmt"
	"strings"
	"time"
)

// BannerStatus enumerates the review lifecycle of a generated banner.
type BannerStatus string

const (
	StatusGenerated BannerStatus = "generated"
	StatusApproved  BannerStatus = "approved"
	StatusRejected  BannerStatus = "rejected"
)

// ParseReviewStatus sanitizes a user-supplied status transition. Only the two
// review outcomes are reachable this way; "generated" is set by the pipeline
// alone.
func ParseReviewStatus(s string) (BannerStatus, error) {
	switch BannerStatus(strings.ToLower(strings.TrimSpace(s))) {
	case StatusApproved:
		return StatusApproved, nil
	case StatusRejected:
		return StatusRejected, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
	}
}

// BannerMetadata is the metadata blob stored alongside a banner.
type BannerMetadata struct {
	Font   string   `json:"font"`
	Colors []string `json:"colors"`
	Prompt string   `json:"prompt"`
}

// PlaceholderMetadata builds the metadata blob for a freshly generated banner.
// Font and palette are not yet derived from the generated image; they are
// constant until real extraction lands. The prompt is the synthesized one.
func PlaceholderMetadata(prompt string) BannerMetadata {
	return BannerMetadata{
		Font:   "Standard",
		Colors: []string{"#ffffff", "#000000"},
		Prompt: prompt,
	}
}

// Banner is the persisted record of one successful generation run.
type Banner struct {
	ID        string         `json:"id"`
	ProjectID string         `json:"project_id"`
	ImageKey  string         `json:"image_url"`
	Metadata  BannerMetadata `json:"metadata"`
	Status    BannerStatus   `json:"status"`
	CreatedAt time.Time      `json:"created_at"`
}
