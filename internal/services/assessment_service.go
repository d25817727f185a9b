package services

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/glimt-hq/friktion/internal/delivery"
	"github.com/glimt-hq/friktion/internal/models"
)

// AssessmentStore abstracts lifecycle persistence. The conditional updates
// (MarkScheduled, CancelScheduled) implement the transition table at the
// storage boundary so two racing administrators cannot both win.
type AssessmentStore interface {
	InsertAssessment(a *models.Assessment) error
	GetAssessment(customerID, id string) (*models.Assessment, error)
	GetUnit(customerID, id string) (*models.OrganizationalUnit, error)
	MarkScheduled(customerID, id string, at time.Time) (bool, error)
	CancelScheduled(customerID, id string) (bool, error)
	ListAssessments(customerID string) ([]*models.Assessment, error)
	ListScheduled(customerID string) ([]*models.Assessment, error)
	DueAssessments(now time.Time) ([]*models.Assessment, error)
	MarkSent(id string, at time.Time) error
	RecordSendError(id, reason string) error
}

// AssessmentService drives an assessment from draft through scheduled
// delivery to completion.
type AssessmentService struct {
	store      AssessmentStore
	tokens     *TokenService
	dispatcher delivery.Dispatcher
	directory  delivery.ContactDirectory
	senderName string
	log        *zap.Logger
	now        func() time.Time
}

func NewAssessmentService(store AssessmentStore, tokens *TokenService, dispatcher delivery.Dispatcher, directory delivery.ContactDirectory, senderName string, log *zap.Logger) *AssessmentService {
	if log == nil {
		log = zap.NewNop()
	}
	return &AssessmentService{
		store:      store,
		tokens:     tokens,
		dispatcher: dispatcher,
		directory:  directory,
		senderName: senderName,
		log:        log,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// CreateParams carries the administrator input for a new assessment.
type CreateParams struct {
	UnitID                  string `json:"unit_id"`
	Name                    string `json:"name"`
	Period                  string `json:"period"`
	IncludeLeaderAssessment bool   `json:"include_leader_assessment"`
	MinResponses            int    `json:"min_responses"`
}

// Create registers a draft assessment targeting one unit owned by the caller's
// customer.
func (s *AssessmentService) Create(customerID string, p CreateParams) (*models.Assessment, error) {
	if customerID == "" {
		return nil, NewUnauthorizedError("customer scope required")
	}
	if strings.TrimSpace(p.Name) == "" {
		return nil, NewInvalidError("assessment name required")
	}
	if p.MinResponses < 0 {
		return nil, NewInvalidError("min_responses must not be negative")
	}
	unit, err := s.store.GetUnit(customerID, p.UnitID)
	if err != nil {
		return nil, err
	}
	if unit == nil {
		return nil, NewNotFoundError("unit not found")
	}
	a := &models.Assessment{
		ID:                      shortID(8),
		CustomerID:              customerID,
		UnitID:                  unit.ID,
		Name:                    p.Name,
		Period:                  p.Period,
		Status:                  models.StatusDraft,
		IncludeLeaderAssessment: p.IncludeLeaderAssessment,
		MinResponses:            p.MinResponses,
		CreatedAt:               s.now(),
	}
	if err := s.store.InsertAssessment(a); err != nil {
		return nil, err
	}
	return a, nil
}

// Schedule sets a future send time. Legal from draft (first scheduling) and
// from scheduled (reschedule); rejected once the assessment has been sent or
// cancelled.
func (s *AssessmentService) Schedule(customerID, id string, at time.Time) (*models.Assessment, error) {
	a, err := s.store.GetAssessment(customerID, id)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, NewNotFoundError("assessment not found")
	}
	if !at.After(s.now()) {
		return nil, NewInvalidError("scheduled_at must be in the future")
	}
	ok, err := s.store.MarkScheduled(customerID, id, at.UTC())
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, NewConflictError("assessment already " + string(a.Status))
	}
	return s.store.GetAssessment(customerID, id)
}

// Cancel aborts a scheduled assessment. Returns false without error when the
// assessment has already moved on, so callers can distinguish "too late" from
// "not found".
func (s *AssessmentService) Cancel(customerID, id string) (bool, error) {
	a, err := s.store.GetAssessment(customerID, id)
	if err != nil {
		return false, err
	}
	if a == nil {
		return false, NewNotFoundError("assessment not found")
	}
	return s.store.CancelScheduled(customerID, id)
}

// Get returns one assessment within the caller's customer scope.
func (s *AssessmentService) Get(customerID, id string) (*models.Assessment, error) {
	a, err := s.store.GetAssessment(customerID, id)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, NewNotFoundError("assessment not found")
	}
	return a, nil
}

// List returns every assessment of the customer, newest first.
func (s *AssessmentService) List(customerID string) ([]*models.Assessment, error) {
	return s.store.ListAssessments(customerID)
}

// ListScheduled returns the customer's not-yet-sent scheduled assessments.
func (s *AssessmentService) ListScheduled(customerID string) ([]*models.Assessment, error) {
	return s.store.ListScheduled(customerID)
}

// Due returns every scheduled assessment whose send time has elapsed.
func (s *AssessmentService) Due(now time.Time) ([]*models.Assessment, error) {
	return s.store.DueAssessments(now)
}

// IssueTokens exposes manual issuance on the command surface. The ledger
// keeps it idempotent per assessment+unit.
func (s *AssessmentService) IssueTokens(customerID, id string, counts map[models.RespondentType]int) ([]*models.Token, error) {
	a, err := s.store.GetAssessment(customerID, id)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, NewNotFoundError("assessment not found")
	}
	if a.Status == models.StatusCancelled {
		return nil, NewConflictError("assessment cancelled")
	}
	return s.tokens.Issue(a.ID, a.UnitID, counts)
}

// ProcessDue promotes every elapsed scheduled assessment. Failures are
// isolated per assessment: the failing one stays scheduled with its reason
// recorded, and the scan continues. Returns the number promoted to sent.
func (s *AssessmentService) ProcessDue(ctx context.Context, now time.Time) (int, error) {
	due, err := s.store.DueAssessments(now)
	if err != nil {
		return 0, err
	}
	sent := 0
	for _, a := range due {
		if err := s.send(ctx, a, now); err != nil {
			s.log.Error("assessment send failed, will retry on next scan",
				zap.String("assessment_id", a.ID),
				zap.Error(err))
			if recErr := s.store.RecordSendError(a.ID, err.Error()); recErr != nil {
				s.log.Error("record send error", zap.String("assessment_id", a.ID), zap.Error(recErr))
			}
			continue
		}
		sent++
	}
	return sent, nil
}

// send issues tokens, dispatches them, and promotes the assessment. Any error
// before MarkSent leaves the assessment scheduled; issuance idempotency makes
// the retry safe.
func (s *AssessmentService) send(ctx context.Context, a *models.Assessment, now time.Time) error {
	contacts, err := s.directory.UnitContacts(ctx, a.UnitID)
	if err != nil {
		return err
	}

	counts := respondentCounts(contacts, a.IncludeLeaderAssessment)
	tokens, err := s.tokens.Issue(a.ID, a.UnitID, counts)
	if err != nil {
		return err
	}

	if len(contacts) > 0 && len(tokens) > 0 {
		values := make([]string, 0, len(tokens))
		for _, tok := range tokens {
			values = append(values, tok.Value)
		}
		result, err := s.dispatcher.SendBatch(ctx, contacts, values, a.Name, s.senderName)
		if err != nil {
			return err
		}
		if result != nil && len(result.Errors) > 0 {
			s.log.Warn("dispatch reported partial errors",
				zap.String("assessment_id", a.ID),
				zap.Strings("errors", result.Errors))
		}
	}

	return s.store.MarkSent(a.ID, now)
}

// respondentCounts derives token slots from unit headcount. Every non-leader
// contact is one employee slot; when leader assessment is enabled each leader
// gets a team rating and a self rating slot, otherwise leaders answer as
// employees.
func respondentCounts(contacts []delivery.Contact, includeLeader bool) map[models.RespondentType]int {
	counts := map[models.RespondentType]int{}
	for _, c := range contacts {
		if c.IsLeader && includeLeader {
			counts[models.RespondentLeaderAssess]++
			counts[models.RespondentLeaderSelf]++
			continue
		}
		counts[models.RespondentEmployee]++
	}
	return counts
}
