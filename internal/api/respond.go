package api

import (
	"encoding/json"
	"net/http"

	"github.com/glimt-hq/friktion/internal/services"
)

// handleRespond redeems a single-use token with its full answer batch. The
// token value is the only credential; no identity is attached to the stored
// responses.
func (rt *Router) handleRespond(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Token   string            `json:"token"`
		Answers []services.Answer `json:"answers"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		rt.writeError(w, services.NewInvalidError(err.Error()))
		return
	}
	result, err := rt.tokens.Redeem(body.Token, body.Answers)
	if err != nil {
		rt.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
