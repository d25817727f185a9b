package models

import "time"

// Field is one of the four fixed friction dimensions. The Danish codes are
// the internal taxonomy carried over from the original question set; display
// names live in a separate lookup so they can be swapped without touching
// stored data.
type Field string

const (
	FieldMeaning  Field = "MENING"
	FieldSafety   Field = "TRYGHED"
	FieldAbility  Field = "KAN"
	FieldFriction Field = "BESVÆR"
)

// FieldOrder is the fixed report ordering. Reports never sort fields by score.
var FieldOrder = []Field{FieldMeaning, FieldSafety, FieldAbility, FieldFriction}

func (f Field) Valid() bool {
	switch f {
	case FieldMeaning, FieldSafety, FieldAbility, FieldFriction:
		return true
	}
	return false
}

var fieldDisplayNames = map[Field]string{
	FieldMeaning:  "Meaning",
	FieldSafety:   "Safety",
	FieldAbility:  "Ability",
	FieldFriction: "Friction",
}

// DisplayName returns the presentation name for a field code.
func (f Field) DisplayName() string {
	if name, ok := fieldDisplayNames[f]; ok {
		return name
	}
	return string(f)
}

// RespondentType distinguishes the three rater groups.
type RespondentType string

const (
	RespondentEmployee     RespondentType = "employee"
	RespondentLeaderAssess RespondentType = "leader_assess"
	RespondentLeaderSelf   RespondentType = "leader_self"
)

func (r RespondentType) Valid() bool {
	switch r {
	case RespondentEmployee, RespondentLeaderAssess, RespondentLeaderSelf:
		return true
	}
	return false
}

// AssessmentStatus is the lifecycle state of one survey round.
type AssessmentStatus string

const (
	StatusDraft     AssessmentStatus = "draft"
	StatusScheduled AssessmentStatus = "scheduled"
	StatusSent      AssessmentStatus = "sent"
	StatusCancelled AssessmentStatus = "cancelled"
)

// Question is one Likert item. Questions referenced by responses are never
// deleted, only deactivated.
type Question struct {
	ID            string `json:"id"`
	CustomerID    string `json:"customer_id,omitempty"` // empty for the shared default set
	Field         Field  `json:"field"`
	Text          string `json:"text"`
	ReverseScored bool   `json:"reverse_scored"`
	Sequence      int    `json:"sequence"`
	IsDefault     bool   `json:"is_default"`
	Active        bool   `json:"active"`
}

// OrganizationalUnit is one node of a customer's unit tree. CRUD for units is
// owned by an external collaborator; this core only reads them.
type OrganizationalUnit struct {
	ID         string `json:"id"`
	CustomerID string `json:"customer_id"`
	ParentID   string `json:"parent_id,omitempty"`
	Name       string `json:"name"`
	Path       string `json:"path"`
	Depth      int    `json:"depth"`
}

// Assessment is one scheduled survey round targeting one unit.
type Assessment struct {
	ID                      string           `json:"id"`
	CustomerID              string           `json:"customer_id"`
	UnitID                  string           `json:"unit_id"`
	Name                    string           `json:"name"`
	Period                  string           `json:"period"`
	Status                  AssessmentStatus `json:"status"`
	ScheduledAt             *time.Time       `json:"scheduled_at,omitempty"`
	SentAt                  *time.Time       `json:"sent_at,omitempty"`
	IncludeLeaderAssessment bool             `json:"include_leader_assessment"`
	MinResponses            int              `json:"min_responses"`
	LastSendError           string           `json:"last_send_error,omitempty"`
	CreatedAt               time.Time        `json:"created_at"`
}

// Token is a single-use anonymous credential. The opaque value is the primary
// key; redemption is its only mutation.
type Token struct {
	Value        string         `json:"token"`
	AssessmentID string         `json:"assessment_id"`
	UnitID       string         `json:"unit_id"`
	Respondent   RespondentType `json:"respondent_type"`
	IsUsed       bool           `json:"is_used"`
	UsedAt       *time.Time     `json:"used_at,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

// Response is one per-question score. Responses never carry a token or any
// respondent identifier beyond the category.
type Response struct {
	ID           int64          `json:"id"`
	AssessmentID string         `json:"assessment_id"`
	UnitID       string         `json:"unit_id"`
	QuestionID   string         `json:"question_id"`
	Respondent   RespondentType `json:"respondent_type"`
	Score        int            `json:"score"`
	Comment      string         `json:"comment,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}
