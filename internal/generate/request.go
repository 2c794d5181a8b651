package generate

import "bannerforge/internal/domain"

// Request is the immutable input of one pipeline run, constructed once per
// user submission and consumed entirely by the run.
type Request struct {
	ProjectID string
	Guideline []byte
	Copy      []byte
	Template  []byte
	// Reference is optional; nil means no reference image was uploaded.
	Reference []byte
}

// NormalizedInput is the transport-ready form of a Request: decoded text plus
// data-URI encoded image attachments. ReferenceDataURI is empty when the
// submission had no reference image.
type NormalizedInput struct {
	Guideline        string
	Copy             string
	TemplateDataURI  string
	ReferenceDataURI string
}

// Result is the outcome of the producing stage, held by the pipeline until it
// is persisted.
type Result struct {
	Prompt   string
	Image    []byte
	Metadata domain.BannerMetadata
}
