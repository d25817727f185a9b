package services

import (
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/glimt-hq/friktion/internal/models"
)

// ReportStore abstracts the read side of the scoring engine. ListQuestions
// returns the full taxonomy, deactivated items included, since historic
// responses may reference retired questions.
type ReportStore interface {
	GetAssessment(customerID, id string) (*models.Assessment, error)
	ListQuestions(customerID string) ([]*models.Question, error)
	ListResponses(assessmentID string) ([]*models.Response, error)
	CountUsedTokens(assessmentID string) (map[models.RespondentType]int, error)
}

// FieldScore is one dimension aggregate. Average is nil when no responses
// cover the dimension; the consumer renders that as "no data".
type FieldScore struct {
	Field       models.Field `json:"field"`
	DisplayName string       `json:"display_name"`
	Average     *float64     `json:"average"`
	Count       int          `json:"count"`
	Severity    Severity     `json:"severity,omitempty"`
	Uniform     bool         `json:"uniform,omitempty"`
}

// RespondentReport is the aggregate view for one rater group.
type RespondentReport struct {
	Respondent   models.RespondentType `json:"respondent_type"`
	Fields       []FieldScore          `json:"fields"`
	Respondents  int                   `json:"respondents"`
	MeetsMinimum bool                  `json:"meets_minimum"`
	Substitution bool                  `json:"substitution_signal,omitempty"`
}

// GapScore compares employee and leader views of one dimension.
type GapScore struct {
	Field           models.Field `json:"field"`
	EmployeeAverage float64      `json:"employee_average"`
	LeaderAverage   float64      `json:"leader_average"`
	Gap             float64      `json:"gap"`
	Critical        bool         `json:"critical"`
}

// CriticalArea is one dimension below the warning band.
type CriticalArea struct {
	Field    models.Field `json:"field"`
	Average  float64      `json:"average"`
	Severity Severity     `json:"severity"`
}

// KeywordCount is one extracted comment keyword.
type KeywordCount struct {
	Word  string `json:"word"`
	Count int    `json:"count"`
}

// AssessmentReport is the full aggregate output for one assessment.
type AssessmentReport struct {
	AssessmentID     string                 `json:"assessment_id"`
	Status           models.AssessmentStatus `json:"status"`
	ScalePoints      int                    `json:"scale_points"`
	Overall          []FieldScore           `json:"overall"`
	ByRespondent     []RespondentReport     `json:"by_respondent"`
	CriticalAreas    []CriticalArea         `json:"critical_areas"`
	Headline         *CriticalArea          `json:"headline,omitempty"`
	Gaps             []GapScore             `json:"gaps,omitempty"`
	Keywords         []KeywordCount         `json:"keywords,omitempty"`
	TotalRespondents int                    `json:"total_respondents"`
	MeetsMinimum     bool                   `json:"meets_minimum"`
	LastSendError    string                 `json:"last_send_error,omitempty"`
}

// ReportService turns raw ordinal responses into directional, comparable
// friction indicators.
type ReportService struct {
	store      ReportStore
	points     int
	thresholds Thresholds
}

func NewReportService(store ReportStore, scalePoints int, thresholds Thresholds) *ReportService {
	if scalePoints <= 0 {
		scalePoints = 5
	}
	return &ReportService{store: store, points: scalePoints, thresholds: thresholds}
}

type accumulator struct {
	sum   float64
	sumSq float64
	count int
}

func (a *accumulator) add(v float64) {
	a.sum += v
	a.sumSq += v * v
	a.count++
}

func (a *accumulator) average() float64 { return a.sum / float64(a.count) }

// variance is the population variance of the accumulated values.
func (a *accumulator) variance() float64 {
	mean := a.average()
	return a.sumSq/float64(a.count) - mean*mean
}

// Report builds the aggregate view for one assessment. Identifiers outside
// the caller's customer scope behave exactly like missing ones.
func (s *ReportService) Report(customerID, assessmentID string) (*AssessmentReport, error) {
	a, err := s.store.GetAssessment(customerID, assessmentID)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, NewNotFoundError("assessment not found")
	}
	questions, err := s.store.ListQuestions(customerID)
	if err != nil {
		return nil, err
	}
	responses, err := s.store.ListResponses(assessmentID)
	if err != nil {
		return nil, err
	}
	usedTokens, err := s.store.CountUsedTokens(assessmentID)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]*models.Question, len(questions))
	for _, q := range questions {
		byID[q.ID] = q
	}

	overall := map[models.Field]*accumulator{}
	grouped := map[models.RespondentType]map[models.Field]*accumulator{}
	var comments []string
	for _, r := range responses {
		q, ok := byID[r.QuestionID]
		if !ok {
			continue
		}
		v := float64(AdjustScore(r.Score, s.points, q.ReverseScored))
		if overall[q.Field] == nil {
			overall[q.Field] = &accumulator{}
		}
		overall[q.Field].add(v)
		if grouped[r.Respondent] == nil {
			grouped[r.Respondent] = map[models.Field]*accumulator{}
		}
		if grouped[r.Respondent][q.Field] == nil {
			grouped[r.Respondent][q.Field] = &accumulator{}
		}
		grouped[r.Respondent][q.Field].add(v)
		if strings.TrimSpace(r.Comment) != "" {
			comments = append(comments, r.Comment)
		}
	}

	report := &AssessmentReport{
		AssessmentID:  a.ID,
		Status:        a.Status,
		ScalePoints:   s.points,
		Overall:       s.fieldScores(overall),
		LastSendError: a.LastSendError,
		Keywords:      extractKeywords(comments, 10),
	}

	for _, rt := range []models.RespondentType{models.RespondentEmployee, models.RespondentLeaderAssess, models.RespondentLeaderSelf} {
		accs, ok := grouped[rt]
		respondents := usedTokens[rt]
		if !ok && respondents == 0 {
			continue
		}
		rr := RespondentReport{
			Respondent:   rt,
			Fields:       s.fieldScores(accs),
			Respondents:  respondents,
			MeetsMinimum: a.MinResponses == 0 || respondents >= a.MinResponses,
			Substitution: s.substitutionSignal(accs),
		}
		report.ByRespondent = append(report.ByRespondent, rr)
	}

	report.CriticalAreas = s.criticalAreas(report.Overall)
	report.Headline = headline(report.Overall)
	report.Gaps = s.gapScores(grouped)
	for _, n := range usedTokens {
		report.TotalRespondents += n
	}
	report.MeetsMinimum = a.MinResponses == 0 || report.TotalRespondents >= a.MinResponses
	return report, nil
}

// fieldScores renders accumulators into the fixed MENING, TRYGHED, KAN,
// BESVÆR ordering. Dimensions are never sorted by score.
func (s *ReportService) fieldScores(accs map[models.Field]*accumulator) []FieldScore {
	out := make([]FieldScore, 0, len(models.FieldOrder))
	for _, f := range models.FieldOrder {
		fs := FieldScore{Field: f, DisplayName: f.DisplayName()}
		if acc := accs[f]; acc != nil && acc.count > 0 {
			avg := acc.average()
			fs.Average = &avg
			fs.Count = acc.count
			fs.Severity = s.thresholds.Classify(avg, s.points)
			fs.Uniform = acc.variance() < s.thresholds.UniformVariance
		}
		out = append(out, fs)
	}
	return out
}

// criticalAreas lists every dimension below the warning band, worst first.
func (s *ReportService) criticalAreas(scores []FieldScore) []CriticalArea {
	var out []CriticalArea
	for _, fs := range scores {
		if fs.Average == nil {
			continue
		}
		if *fs.Average < scaleRelative(s.thresholds.WarningBelow, s.points) {
			out = append(out, CriticalArea{Field: fs.Field, Average: *fs.Average, Severity: fs.Severity})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Average < out[j].Average })
	return out
}

// headline picks the single worst dimension for the top recommendation,
// regardless of whether it crosses any band.
func headline(scores []FieldScore) *CriticalArea {
	var worst *CriticalArea
	for _, fs := range scores {
		if fs.Average == nil {
			continue
		}
		if worst == nil || *fs.Average < worst.Average {
			worst = &CriticalArea{Field: fs.Field, Average: *fs.Average, Severity: fs.Severity}
		}
	}
	return worst
}

// gapScores compares employee and leader_assess averages per dimension. A
// dimension can be healthy for both groups and still carry a critical gap.
func (s *ReportService) gapScores(grouped map[models.RespondentType]map[models.Field]*accumulator) []GapScore {
	emp := grouped[models.RespondentEmployee]
	leader := grouped[models.RespondentLeaderAssess]
	if emp == nil || leader == nil {
		return nil
	}
	var out []GapScore
	for _, f := range models.FieldOrder {
		e, l := emp[f], leader[f]
		if e == nil || e.count == 0 || l == nil || l.count == 0 {
			continue
		}
		gap := math.Abs(l.average() - e.average())
		out = append(out, GapScore{
			Field:           f,
			EmployeeAverage: e.average(),
			LeaderAverage:   l.average(),
			Gap:             gap,
			Critical:        gap > s.thresholds.CriticalGap,
		})
	}
	return out
}

// substitutionSignal flags the validation pattern: safety and ability high
// while meaning and friction are low within the same rater group. Advisory
// only, never blocking.
func (s *ReportService) substitutionSignal(accs map[models.Field]*accumulator) bool {
	avg := func(f models.Field) (float64, bool) {
		if acc := accs[f]; acc != nil && acc.count > 0 {
			return acc.average(), true
		}
		return 0, false
	}
	safety, ok1 := avg(models.FieldSafety)
	ability, ok2 := avg(models.FieldAbility)
	meaning, ok3 := avg(models.FieldMeaning)
	friction, ok4 := avg(models.FieldFriction)
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return false
	}
	high := scaleRelative(s.thresholds.SubstitutionHigh, s.points)
	low := scaleRelative(s.thresholds.SubstitutionLow, s.points)
	return safety >= high && ability >= high && meaning <= low && friction <= low
}

var keywordStopwords = map[string]bool{
	"ikke": true, "have": true, "mere": true, "meget": true, "noget": true,
	"også": true, "bliver": true, "kunne": true, "skal": true, "være": true,
	"this": true, "that": true, "with": true, "there": true,
	"about": true, "would": true, "could": true, "very": true,
}

// extractKeywords is the simple word-frequency extraction over free-text
// comments; anything smarter is out of scope.
func extractKeywords(comments []string, limit int) []KeywordCount {
	counts := map[string]int{}
	for _, c := range comments {
		words := strings.FieldsFunc(strings.ToLower(c), func(r rune) bool {
			return !unicode.IsLetter(r)
		})
		for _, w := range words {
			if len([]rune(w)) < 4 || keywordStopwords[w] {
				continue
			}
			counts[w]++
		}
	}
	out := make([]KeywordCount, 0, len(counts))
	for w, n := range counts {
		out = append(out, KeywordCount{Word: w, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Word < out[j].Word
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}
