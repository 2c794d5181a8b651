package domain

import "time"

// Project groups the uploaded input files for one submission. Banners reference
// a project; the generation pipeline never mutates it.
type Project struct {
	ID           string    `json:"id"`
	OwnerID      string    `json:"owner_id"`
	GuidelineKey string    `json:"guideline_url"`
	CopyKey      string    `json:"copy_text_url"`
	TemplateKey  string    `json:"template_url"`
	ReferenceKey string    `json:"reference_image_url,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}
