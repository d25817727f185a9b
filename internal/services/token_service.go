package services

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/glimt-hq/friktion/internal/models"
)

// TokenStore abstracts ledger persistence. RedeemToken must be atomic: the
// used-flag flip and the response batch commit together or not at all, and a
// concurrent flip must surface as ErrTokenAlreadyUsed.
type TokenStore interface {
	TokensIssued(assessmentID, unitID string) (bool, error)
	InsertTokens(tokens []*models.Token) error
	GetToken(value string) (*models.Token, error)
	GetAssessmentByID(id string) (*models.Assessment, error)
	ListActiveQuestions(customerID string) ([]*models.Question, error)
	RedeemToken(value string, usedAt time.Time, responses []*models.Response) error
}

// Answer is one entry of a redemption batch.
type Answer struct {
	QuestionID string `json:"question_id"`
	Score      int    `json:"score"`
	Comment    string `json:"comment,omitempty"`
}

// RedeemResult confirms a committed batch.
type RedeemResult struct {
	AssessmentID string `json:"assessment_id"`
	UnitID       string `json:"unit_id"`
	Responses    int    `json:"responses"`
}

// TokenService issues and redeems single-use anonymous tokens.
type TokenService struct {
	store  TokenStore
	points int
	now    func() time.Time
	value  func() string
}

func NewTokenService(store TokenStore, scalePoints int) *TokenService {
	if scalePoints <= 0 {
		scalePoints = 5
	}
	return &TokenService{
		store:  store,
		points: scalePoints,
		now:    func() time.Time { return time.Now().UTC() },
		value:  newTokenValue,
	}
}

func newTokenValue() string {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		panic(fmt.Sprintf("token entropy unavailable: %v", err))
	}
	return base64.RawURLEncoding.EncodeToString(b)
}

// Issue creates one unused token per requested respondent slot. The operation
// is idempotent per assessment+unit: if any tokens already exist for the pair,
// nothing is issued, so a retried delivery step never doubles respondent slots.
func (s *TokenService) Issue(assessmentID, unitID string, counts map[models.RespondentType]int) ([]*models.Token, error) {
	if assessmentID == "" || unitID == "" {
		return nil, NewInvalidError("assessment and unit required")
	}
	for rt := range counts {
		if !rt.Valid() {
			return nil, NewInvalidError("unknown respondent category")
		}
	}
	exists, err := s.store.TokensIssued(assessmentID, unitID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, nil
	}

	total := 0
	for _, n := range counts {
		total += n
	}
	tokens := make([]*models.Token, 0, total)
	createdAt := s.now()
	for _, rt := range []models.RespondentType{models.RespondentEmployee, models.RespondentLeaderAssess, models.RespondentLeaderSelf} {
		for i := 0; i < counts[rt]; i++ {
			tokens = append(tokens, &models.Token{
				Value:        s.value(),
				AssessmentID: assessmentID,
				UnitID:       unitID,
				Respondent:   rt,
				CreatedAt:    createdAt,
			})
		}
	}
	if len(tokens) == 0 {
		return nil, nil
	}

	// A value collision trips the primary-key constraint; regenerate the whole
	// batch with fresh values and try again.
	const attempts = 3
	for attempt := 1; ; attempt++ {
		err := s.store.InsertTokens(tokens)
		if err == nil {
			return tokens, nil
		}
		se, ok := AsServiceError(err)
		if !ok || se.Code != ErrorConflict || attempt >= attempts {
			return nil, err
		}
		for _, tok := range tokens {
			tok.Value = s.value()
		}
	}
}

// Redeem validates a token and commits its full response batch atomically.
// The batch must cover every active question exactly once; partial redemption
// is never observable.
func (s *TokenService) Redeem(value string, answers []Answer) (*RedeemResult, error) {
	if value == "" {
		return nil, ErrTokenNotFound
	}
	tok, err := s.store.GetToken(value)
	if err != nil {
		return nil, err
	}
	if tok == nil {
		return nil, ErrTokenNotFound
	}
	if tok.IsUsed {
		return nil, ErrTokenAlreadyUsed
	}
	a, err := s.store.GetAssessmentByID(tok.AssessmentID)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, ErrTokenNotFound
	}
	if a.Status == models.StatusCancelled {
		return nil, ErrAssessmentClosed
	}

	questions, err := s.store.ListActiveQuestions(a.CustomerID)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*models.Question, len(questions))
	for _, q := range questions {
		byID[q.ID] = q
	}
	seen := make(map[string]bool, len(answers))
	for _, ans := range answers {
		q, ok := byID[ans.QuestionID]
		if !ok || seen[q.ID] {
			return nil, ErrIncompleteSubmission
		}
		if ans.Score < 1 || ans.Score > s.points {
			return nil, NewInvalidError(fmt.Sprintf("score %d outside 1-%d", ans.Score, s.points))
		}
		seen[q.ID] = true
	}
	if len(seen) != len(questions) {
		return nil, ErrIncompleteSubmission
	}

	usedAt := s.now()
	responses := make([]*models.Response, 0, len(answers))
	for _, ans := range answers {
		responses = append(responses, &models.Response{
			AssessmentID: tok.AssessmentID,
			UnitID:       tok.UnitID,
			QuestionID:   ans.QuestionID,
			Respondent:   tok.Respondent,
			Score:        ans.Score,
			Comment:      ans.Comment,
			CreatedAt:    usedAt,
		})
	}
	if err := s.store.RedeemToken(value, usedAt, responses); err != nil {
		return nil, err
	}
	return &RedeemResult{AssessmentID: tok.AssessmentID, UnitID: tok.UnitID, Responses: len(responses)}, nil
}
