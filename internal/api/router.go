// Package api exposes the command and query surface consumed by the external
// web layer. JSON only; rendering stays outside this module.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/glimt-hq/friktion/internal/middleware"
	"github.com/glimt-hq/friktion/internal/services"
)

type Router struct {
	assessments *services.AssessmentService
	questions   *services.QuestionService
	tokens      *services.TokenService
	reports     *services.ReportService
	auth        *middleware.Authenticator
	log         *zap.Logger
	now         func() time.Time
}

func NewRouter(assessments *services.AssessmentService, questions *services.QuestionService, tokens *services.TokenService, reports *services.ReportService, auth *middleware.Authenticator, log *zap.Logger) *Router {
	if log == nil {
		log = zap.NewNop()
	}
	return &Router{
		assessments: assessments,
		questions:   questions,
		tokens:      tokens,
		reports:     reports,
		auth:        auth,
		log:         log,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Handler builds the route tree. The respondent endpoint is public (the token
// is the credential); everything else requires verified admin claims.
func (rt *Router) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(rt.logging)
	r.Use(rt.recovery)
	r.Use(cors)

	r.HandleFunc("/health", rt.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/v1/respond", rt.handleRespond).Methods(http.MethodPost)

	admin := r.PathPrefix("/v1").Subrouter()
	admin.Use(rt.auth.WithAuth)
	admin.Use(middleware.RequireAuth)
	admin.HandleFunc("/assessments", rt.handleCreateAssessment).Methods(http.MethodPost)
	admin.HandleFunc("/assessments", rt.handleListAssessments).Methods(http.MethodGet)
	admin.HandleFunc("/assessments/scheduled", rt.handleListScheduled).Methods(http.MethodGet)
	admin.HandleFunc("/assessments/pending", rt.handleListPending).Methods(http.MethodGet)
	admin.HandleFunc("/assessments/{id}", rt.handleGetAssessment).Methods(http.MethodGet)
	admin.HandleFunc("/assessments/{id}/schedule", rt.handleSchedule).Methods(http.MethodPost)
	admin.HandleFunc("/assessments/{id}/cancel", rt.handleCancel).Methods(http.MethodPost)
	admin.HandleFunc("/assessments/{id}/tokens", rt.handleIssueTokens).Methods(http.MethodPost)
	admin.HandleFunc("/assessments/{id}/report", rt.handleReport).Methods(http.MethodGet)
	admin.HandleFunc("/questions", rt.handleListQuestions).Methods(http.MethodGet)
	admin.HandleFunc("/questions", rt.handleCreateQuestion).Methods(http.MethodPost)
	admin.HandleFunc("/questions/{id}", rt.handleDeactivateQuestion).Methods(http.MethodDelete)
	return r
}

func (rt *Router) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "name": "Friktion API"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (rt *Router) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	msg := "internal error"
	switch {
	case errors.Is(err, services.ErrTokenNotFound):
		status, msg = http.StatusNotFound, err.Error()
	case errors.Is(err, services.ErrTokenAlreadyUsed), errors.Is(err, services.ErrAssessmentClosed):
		status, msg = http.StatusConflict, err.Error()
	case errors.Is(err, services.ErrIncompleteSubmission):
		status, msg = http.StatusUnprocessableEntity, err.Error()
	default:
		if se, ok := services.AsServiceError(err); ok {
			msg = se.Message
			switch se.Code {
			case services.ErrorInvalid:
				status = http.StatusBadRequest
			case services.ErrorNotFound:
				status = http.StatusNotFound
			case services.ErrorConflict:
				status = http.StatusConflict
			case services.ErrorForbidden:
				status = http.StatusForbidden
			case services.ErrorUnauthorized:
				status = http.StatusUnauthorized
			}
		} else {
			rt.log.Error("request failed", zap.Error(err))
		}
	}
	writeJSON(w, status, map[string]string{"error": msg})
}

func customerID(r *http.Request) string {
	cid, _ := middleware.CustomerIDFromContext(r.Context())
	return cid
}
