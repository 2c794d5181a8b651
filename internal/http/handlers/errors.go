package handlers

import (
	"errors"
	"net/http"

	"bannerforge/internal/generate"
	"bannerforge/internal/middleware"
)

var localizedMessages = map[string]map[string]string{
	"provider_unauthorized": {
		"en": "AI credential invalid or expired.",
		"id": "Kredensial AI tidak valid atau kedaluwarsa.",
	},
	"provider_quota": {
		"en": "AI quota exceeded.",
		"id": "Kuota AI telah habis.",
	},
}

func localizedMessage(code, locale string) string {
	if byLocale, ok := localizedMessages[code]; ok {
		if msg, ok := byLocale[locale]; ok {
			return msg
		}
		return byLocale["en"]
	}
	return ""
}

// runError maps a pipeline failure onto the HTTP surface. Credential and
// quota failures of the analysis capability get distinct, localized messages;
// everything else is generic.
func (a *App) runError(w http.ResponseWriter, r *http.Request, err error) {
	locale := middleware.LocaleFromContext(r.Context())

	switch {
	case errors.Is(err, generate.ErrBusy):
		a.error(w, http.StatusTooManyRequests, "busy", "too many generations in progress, try again shortly")
		return
	case errors.Is(err, generate.ErrTimeout):
		a.error(w, http.StatusGatewayTimeout, "timeout", "generation timed out")
		return
	case errors.Is(err, generate.ErrInputRead):
		a.error(w, http.StatusBadRequest, "bad_input", err.Error())
		return
	}

	var analysisErr *generate.AnalysisError
	if errors.As(err, &analysisErr) {
		switch analysisErr.Kind {
		case generate.AnalysisUnauthorized:
			a.error(w, http.StatusBadGateway, "provider_unauthorized", localizedMessage("provider_unauthorized", locale))
			return
		case generate.AnalysisQuotaExceeded:
			a.error(w, http.StatusBadGateway, "provider_quota", localizedMessage("provider_quota", locale))
			return
		default:
			a.error(w, http.StatusBadGateway, "provider_failure", "generation provider failed")
			return
		}
	}

	a.error(w, http.StatusInternalServerError, "internal", "banner generation failed")
}
