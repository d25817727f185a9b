package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/glimt-hq/friktion/internal/models"
	"github.com/glimt-hq/friktion/internal/services"
)

func (rt *Router) handleListQuestions(w http.ResponseWriter, r *http.Request) {
	questions, err := rt.questions.ActiveQuestions(customerID(r))
	if err != nil {
		rt.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"questions": questions})
}

func (rt *Router) handleCreateQuestion(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Field         models.Field `json:"field"`
		Text          string       `json:"text"`
		ReverseScored bool         `json:"reverse_scored"`
		Sequence      int          `json:"sequence"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		rt.writeError(w, services.NewInvalidError(err.Error()))
		return
	}
	q, err := rt.questions.CreateQuestion(customerID(r), body.Field, body.Text, body.ReverseScored, body.Sequence)
	if err != nil {
		rt.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, q)
}

func (rt *Router) handleDeactivateQuestion(w http.ResponseWriter, r *http.Request) {
	if err := rt.questions.Deactivate(customerID(r), mux.Vars(r)["id"]); err != nil {
		rt.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deactivated": true})
}
