package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/glimt-hq/friktion/internal/models"
	"github.com/glimt-hq/friktion/internal/services"
)

func (rt *Router) handleCreateAssessment(w http.ResponseWriter, r *http.Request) {
	var p services.CreateParams
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		rt.writeError(w, services.NewInvalidError(err.Error()))
		return
	}
	a, err := rt.assessments.Create(customerID(r), p)
	if err != nil {
		rt.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

func (rt *Router) handleListAssessments(w http.ResponseWriter, r *http.Request) {
	list, err := rt.assessments.List(customerID(r))
	if err != nil {
		rt.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"assessments": list})
}

func (rt *Router) handleListScheduled(w http.ResponseWriter, r *http.Request) {
	list, err := rt.assessments.ListScheduled(customerID(r))
	if err != nil {
		rt.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"assessments": list})
}

// handleListPending reports the caller's assessments that are eligible to
// send right now. The scheduler works from the same due query, unscoped.
func (rt *Router) handleListPending(w http.ResponseWriter, r *http.Request) {
	due, err := rt.assessments.Due(rt.now())
	if err != nil {
		rt.writeError(w, err)
		return
	}
	cid := customerID(r)
	scoped := make([]*models.Assessment, 0, len(due))
	for _, a := range due {
		if a.CustomerID == cid {
			scoped = append(scoped, a)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"assessments": scoped})
}

func (rt *Router) handleGetAssessment(w http.ResponseWriter, r *http.Request) {
	a, err := rt.assessments.Get(customerID(r), mux.Vars(r)["id"])
	if err != nil {
		rt.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (rt *Router) handleSchedule(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ScheduledAt time.Time `json:"scheduled_at"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		rt.writeError(w, services.NewInvalidError(err.Error()))
		return
	}
	a, err := rt.assessments.Schedule(customerID(r), mux.Vars(r)["id"], body.ScheduledAt)
	if err != nil {
		rt.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (rt *Router) handleCancel(w http.ResponseWriter, r *http.Request) {
	cancelled, err := rt.assessments.Cancel(customerID(r), mux.Vars(r)["id"])
	if err != nil {
		rt.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"cancelled": cancelled})
}

func (rt *Router) handleIssueTokens(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Counts map[models.RespondentType]int `json:"counts"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		rt.writeError(w, services.NewInvalidError(err.Error()))
		return
	}
	tokens, err := rt.assessments.IssueTokens(customerID(r), mux.Vars(r)["id"], body.Counts)
	if err != nil {
		rt.writeError(w, err)
		return
	}
	values := make([]string, 0, len(tokens))
	for _, t := range tokens {
		values = append(values, t.Value)
	}
	writeJSON(w, http.StatusOK, map[string]any{"issued": len(values), "tokens": values})
}

func (rt *Router) handleReport(w http.ResponseWriter, r *http.Request) {
	report, err := rt.reports.Report(customerID(r), mux.Vars(r)["id"])
	if err != nil {
		rt.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
