package services

import (
	"strings"

	"github.com/google/uuid"

	"github.com/glimt-hq/friktion/internal/models"
)

// QuestionStore abstracts catalog persistence.
type QuestionStore interface {
	ListActiveQuestions(customerID string) ([]*models.Question, error)
	InsertQuestion(q *models.Question) error
	DeactivateQuestion(customerID, id string) (bool, error)
}

// QuestionService manages the Likert item catalog: the shared default set plus
// customer-scoped additions. Items are deactivated, never deleted, so historic
// responses keep a valid reference.
type QuestionService struct {
	store QuestionStore
}

func NewQuestionService(store QuestionStore) *QuestionService {
	return &QuestionService{store: store}
}

func shortID(n int) string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:n]
}

// ActiveQuestions returns the active catalog visible to a customer, ordered by
// sequence. This is the set a redemption batch must cover.
func (s *QuestionService) ActiveQuestions(customerID string) ([]*models.Question, error) {
	return s.store.ListActiveQuestions(customerID)
}

// CreateQuestion adds a customer-scoped item to the catalog.
func (s *QuestionService) CreateQuestion(customerID string, field models.Field, text string, reverseScored bool, sequence int) (*models.Question, error) {
	if customerID == "" {
		return nil, NewUnauthorizedError("customer scope required")
	}
	if !field.Valid() {
		return nil, NewInvalidError("unknown field code")
	}
	if strings.TrimSpace(text) == "" {
		return nil, NewInvalidError("question text required")
	}
	q := &models.Question{
		ID:            shortID(8),
		CustomerID:    customerID,
		Field:         field,
		Text:          text,
		ReverseScored: reverseScored,
		Sequence:      sequence,
		Active:        true,
	}
	if err := s.store.InsertQuestion(q); err != nil {
		return nil, err
	}
	return q, nil
}

// Deactivate retires a customer-scoped question. Default questions are shared
// across customers and cannot be retired through the customer surface.
func (s *QuestionService) Deactivate(customerID, id string) error {
	ok, err := s.store.DeactivateQuestion(customerID, id)
	if err != nil {
		return err
	}
	if !ok {
		return NewNotFoundError("question not found")
	}
	return nil
}
