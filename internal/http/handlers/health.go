package handlers

import "net/http"

// Health reports liveness plus how many generation runs are in flight.
func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, map[string]any{
		"status":                "ok",
		"generations_in_flight": a.Runner.InFlight(),
	})
}
