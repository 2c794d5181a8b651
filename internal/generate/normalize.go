package generate

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"
)

// Normalize turns a Request into the in-memory form the analysis call needs:
// UTF-8 text for guideline and copy, base64 data URIs for the images. It has
// no side effects and performs no external calls.
func Normalize(req Request) (*NormalizedInput, error) {
	guideline, err := decodeText("guideline", req.Guideline)
	if err != nil {
		return nil, err
	}
	copyText, err := decodeText("copy", req.Copy)
	if err != nil {
		return nil, err
	}
	template, err := encodeImageDataURI("template", req.Template)
	if err != nil {
		return nil, err
	}

	in := &NormalizedInput{
		Guideline:       guideline,
		Copy:            copyText,
		TemplateDataURI: template,
	}
	if len(req.Reference) > 0 {
		reference, err := encodeImageDataURI("reference", req.Reference)
		if err != nil {
			return nil, err
		}
		in.ReferenceDataURI = reference
	}
	return in, nil
}

func decodeText(field string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("%w: %s file is empty", ErrInputRead, field)
	}
	if !utf8.Valid(data) {
		return "", fmt.Errorf("%w: %s file is not valid UTF-8", ErrInputRead, field)
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return "", fmt.Errorf("%w: %s file contains no text", ErrInputRead, field)
	}
	return text, nil
}

func encodeImageDataURI(field string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("%w: %s image is empty", ErrInputRead, field)
	}
	mime := http.DetectContentType(data)
	if !strings.HasPrefix(mime, "image/") {
		return "", fmt.Errorf("%w: %s is not an image (%s)", ErrInputRead, field, mime)
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}
