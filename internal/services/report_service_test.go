package services

import (
	"math"
	"testing"

	"github.com/glimt-hq/friktion/internal/models"
)

type stubReportStore struct {
	assessment *models.Assessment
	questions  []*models.Question
	responses  []*models.Response
	usedTokens map[models.RespondentType]int
}

func (s *stubReportStore) GetAssessment(customerID, id string) (*models.Assessment, error) {
	if s.assessment == nil || s.assessment.ID != id || s.assessment.CustomerID != customerID {
		return nil, nil
	}
	return s.assessment, nil
}

func (s *stubReportStore) ListQuestions(string) ([]*models.Question, error) {
	return s.questions, nil
}

func (s *stubReportStore) ListResponses(string) ([]*models.Response, error) {
	return s.responses, nil
}

func (s *stubReportStore) CountUsedTokens(string) (map[models.RespondentType]int, error) {
	if s.usedTokens == nil {
		return map[models.RespondentType]int{}, nil
	}
	return s.usedTokens, nil
}

func reportQuestions() []*models.Question {
	return []*models.Question{
		{ID: "m1", Field: models.FieldMeaning, Active: true},
		{ID: "t1", Field: models.FieldSafety, Active: true},
		{ID: "k1", Field: models.FieldAbility, Active: true},
		{ID: "b1", Field: models.FieldFriction, ReverseScored: true, Active: true},
	}
}

func respond(questionID string, rt models.RespondentType, score int, comment string) *models.Response {
	return &models.Response{AssessmentID: "A1", UnitID: "U1", QuestionID: questionID, Respondent: rt, Score: score, Comment: comment}
}

func newReportFixture() (*ReportService, *stubReportStore) {
	store := &stubReportStore{
		assessment: &models.Assessment{ID: "A1", CustomerID: "C1", UnitID: "U1", Status: models.StatusSent},
		questions:  reportQuestions(),
		usedTokens: map[models.RespondentType]int{},
	}
	return NewReportService(store, 5, DefaultThresholds()), store
}

func floatEq(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestReportNotFound(t *testing.T) {
	svc, _ := newReportFixture()

	for _, tc := range []struct{ customer, id string }{
		{"C1", "missing"},
		{"C2", "A1"}, // foreign assessment looks missing, not forbidden
	} {
		_, err := svc.Report(tc.customer, tc.id)
		se, ok := AsServiceError(err)
		if !ok || se.Code != ErrorNotFound {
			t.Fatalf("Report(%s, %s): got %v, want not_found", tc.customer, tc.id, err)
		}
	}
}

func TestReportEmptyAssessment(t *testing.T) {
	svc, _ := newReportFixture()

	report, err := svc.Report("C1", "A1")
	if err != nil {
		t.Fatalf("Report returned error: %v", err)
	}
	if len(report.Overall) != len(models.FieldOrder) {
		t.Fatalf("overall has %d fields, want %d", len(report.Overall), len(models.FieldOrder))
	}
	for _, fs := range report.Overall {
		if fs.Average != nil {
			t.Fatalf("field %s has average without responses", fs.Field)
		}
		if fs.Count != 0 {
			t.Fatalf("field %s has count %d without responses", fs.Field, fs.Count)
		}
	}
	if len(report.CriticalAreas) != 0 || report.Headline != nil {
		t.Fatalf("empty assessment produced critical areas")
	}
	if report.TotalRespondents != 0 {
		t.Fatalf("total respondents = %d, want 0", report.TotalRespondents)
	}
}

func TestReportAveragesAndOrdering(t *testing.T) {
	svc, store := newReportFixture()
	store.responses = []*models.Response{
		respond("m1", models.RespondentEmployee, 2, ""),
		respond("m1", models.RespondentEmployee, 3, ""),
		respond("t1", models.RespondentEmployee, 5, ""),
		respond("k1", models.RespondentEmployee, 4, ""),
		// reverse-scored friction item: raw 1 adjusts to 5
		respond("b1", models.RespondentEmployee, 1, ""),
	}
	store.usedTokens[models.RespondentEmployee] = 2

	report, err := svc.Report("C1", "A1")
	if err != nil {
		t.Fatalf("Report returned error: %v", err)
	}

	want := []struct {
		field models.Field
		avg   float64
	}{
		{models.FieldMeaning, 2.5},
		{models.FieldSafety, 5},
		{models.FieldAbility, 4},
		{models.FieldFriction, 5},
	}
	for i, w := range want {
		fs := report.Overall[i]
		if fs.Field != w.field {
			t.Fatalf("position %d holds %s, want %s (fixed ordering)", i, fs.Field, w.field)
		}
		if fs.Average == nil || !floatEq(*fs.Average, w.avg) {
			t.Fatalf("%s average = %v, want %v", w.field, fs.Average, w.avg)
		}
	}
	if report.Overall[0].Severity != SeverityCritical {
		t.Fatalf("meaning severity = %s, want critical", report.Overall[0].Severity)
	}
	if report.Overall[1].Severity != SeverityHealthy {
		t.Fatalf("safety severity = %s, want healthy", report.Overall[1].Severity)
	}
	if report.TotalRespondents != 2 {
		t.Fatalf("total respondents = %d, want 2", report.TotalRespondents)
	}
}

func TestReportCriticalAreasAndHeadline(t *testing.T) {
	svc, store := newReportFixture()
	store.responses = []*models.Response{
		respond("m1", models.RespondentEmployee, 2, ""), // 2.0 critical
		respond("t1", models.RespondentEmployee, 3, ""), // 3.0 warning
		respond("k1", models.RespondentEmployee, 4, ""), // healthy
		respond("b1", models.RespondentEmployee, 1, ""), // adjusted 5, healthy
	}

	report, err := svc.Report("C1", "A1")
	if err != nil {
		t.Fatalf("Report returned error: %v", err)
	}
	if len(report.CriticalAreas) != 2 {
		t.Fatalf("critical areas = %d, want 2", len(report.CriticalAreas))
	}
	// worst first
	if report.CriticalAreas[0].Field != models.FieldMeaning || report.CriticalAreas[1].Field != models.FieldSafety {
		t.Fatalf("critical areas order: %+v", report.CriticalAreas)
	}
	if report.Headline == nil || report.Headline.Field != models.FieldMeaning {
		t.Fatalf("headline = %+v, want meaning", report.Headline)
	}
}

func TestReportGapScores(t *testing.T) {
	svc, store := newReportFixture()
	store.responses = []*models.Response{
		// meaning: employees 2.0 vs leader 4.0 -> gap 2.0, critical
		respond("m1", models.RespondentEmployee, 2, ""),
		respond("m1", models.RespondentLeaderAssess, 4, ""),
		// safety: employees 3.0 vs leader 3.6 -> gap 0.6, not critical
		respond("t1", models.RespondentEmployee, 3, ""),
		respond("t1", models.RespondentLeaderAssess, 4, ""),
		respond("t1", models.RespondentLeaderAssess, 4, ""),
		respond("t1", models.RespondentLeaderAssess, 4, ""),
		respond("t1", models.RespondentLeaderAssess, 3, ""),
		respond("t1", models.RespondentLeaderAssess, 3, ""),
	}

	report, err := svc.Report("C1", "A1")
	if err != nil {
		t.Fatalf("Report returned error: %v", err)
	}
	if len(report.Gaps) != 2 {
		t.Fatalf("gaps = %d, want 2 (dimensions without both sides are skipped)", len(report.Gaps))
	}
	meaning := report.Gaps[0]
	if !floatEq(meaning.Gap, 2.0) || !meaning.Critical {
		t.Fatalf("meaning gap = %+v, want critical 2.0", meaning)
	}
	safety := report.Gaps[1]
	if !floatEq(safety.Gap, 0.6) || safety.Critical {
		t.Fatalf("safety gap = %+v, want non-critical 0.6", safety)
	}
}

func TestReportGapExactThresholdNotCritical(t *testing.T) {
	svc, store := newReportFixture()
	// gap of exactly 1.5: strictly-greater comparison keeps it non-critical
	store.responses = []*models.Response{
		respond("m1", models.RespondentEmployee, 2, ""),
		respond("m1", models.RespondentEmployee, 3, ""),
		respond("m1", models.RespondentLeaderAssess, 4, ""),
	}

	report, err := svc.Report("C1", "A1")
	if err != nil {
		t.Fatalf("Report returned error: %v", err)
	}
	if len(report.Gaps) != 1 {
		t.Fatalf("gaps = %d, want 1", len(report.Gaps))
	}
	if !floatEq(report.Gaps[0].Gap, 1.5) || report.Gaps[0].Critical {
		t.Fatalf("gap at threshold = %+v, want non-critical 1.5", report.Gaps[0])
	}
}

func TestReportNoGapsWithoutLeaderResponses(t *testing.T) {
	svc, store := newReportFixture()
	store.responses = []*models.Response{
		respond("m1", models.RespondentEmployee, 2, ""),
		respond("t1", models.RespondentEmployee, 4, ""),
	}

	report, err := svc.Report("C1", "A1")
	if err != nil {
		t.Fatalf("Report returned error: %v", err)
	}
	if report.Gaps != nil {
		t.Fatalf("gaps = %+v, want none without leader responses", report.Gaps)
	}
}

func TestReportSubstitutionSignal(t *testing.T) {
	svc, store := newReportFixture()
	// safety and ability high, meaning and adjusted friction low
	store.responses = []*models.Response{
		respond("m1", models.RespondentEmployee, 2, ""),
		respond("t1", models.RespondentEmployee, 4, ""),
		respond("k1", models.RespondentEmployee, 5, ""),
		respond("b1", models.RespondentEmployee, 4, ""), // adjusted 2
	}
	store.usedTokens[models.RespondentEmployee] = 1

	report, err := svc.Report("C1", "A1")
	if err != nil {
		t.Fatalf("Report returned error: %v", err)
	}
	if len(report.ByRespondent) != 1 {
		t.Fatalf("by_respondent groups = %d, want 1", len(report.ByRespondent))
	}
	if !report.ByRespondent[0].Substitution {
		t.Fatalf("substitution signal not raised")
	}
}

func TestReportSubstitutionNeedsAllFourFields(t *testing.T) {
	svc, store := newReportFixture()
	store.responses = []*models.Response{
		respond("m1", models.RespondentEmployee, 2, ""),
		respond("t1", models.RespondentEmployee, 4, ""),
		respond("k1", models.RespondentEmployee, 5, ""),
		// no friction responses
	}
	store.usedTokens[models.RespondentEmployee] = 1

	report, err := svc.Report("C1", "A1")
	if err != nil {
		t.Fatalf("Report returned error: %v", err)
	}
	if report.ByRespondent[0].Substitution {
		t.Fatalf("substitution raised with a dimension missing")
	}
}

func TestReportUniformResponses(t *testing.T) {
	svc, store := newReportFixture()
	store.responses = []*models.Response{
		respond("m1", models.RespondentEmployee, 4, ""),
		respond("m1", models.RespondentEmployee, 4, ""),
		respond("m1", models.RespondentEmployee, 4, ""),
		respond("t1", models.RespondentEmployee, 1, ""),
		respond("t1", models.RespondentEmployee, 5, ""),
	}

	report, err := svc.Report("C1", "A1")
	if err != nil {
		t.Fatalf("Report returned error: %v", err)
	}
	if !report.Overall[0].Uniform {
		t.Fatalf("identical meaning scores not flagged uniform")
	}
	if report.Overall[1].Uniform {
		t.Fatalf("spread safety scores flagged uniform")
	}
}

func TestReportMinimumResponses(t *testing.T) {
	svc, store := newReportFixture()
	store.assessment.MinResponses = 5
	store.responses = []*models.Response{respond("m1", models.RespondentEmployee, 4, "")}
	store.usedTokens[models.RespondentEmployee] = 3

	report, err := svc.Report("C1", "A1")
	if err != nil {
		t.Fatalf("Report returned error: %v", err)
	}
	if report.MeetsMinimum {
		t.Fatalf("3 respondents reported as meeting a minimum of 5")
	}
	if report.ByRespondent[0].MeetsMinimum {
		t.Fatalf("employee group reported as meeting the minimum")
	}
	// averages still computed; the flag is advisory, never a suppression
	if report.Overall[0].Average == nil {
		t.Fatalf("averages suppressed below minimum")
	}

	store.usedTokens[models.RespondentEmployee] = 5
	report, err = svc.Report("C1", "A1")
	if err != nil {
		t.Fatalf("Report returned error: %v", err)
	}
	if !report.MeetsMinimum {
		t.Fatalf("5 respondents not meeting a minimum of 5")
	}
}

func TestReportRespondentCountsFromUsedTokens(t *testing.T) {
	svc, store := newReportFixture()
	store.responses = []*models.Response{
		respond("m1", models.RespondentEmployee, 4, ""),
		respond("m1", models.RespondentEmployee, 3, ""),
	}
	store.usedTokens[models.RespondentEmployee] = 2
	store.usedTokens[models.RespondentLeaderSelf] = 1

	report, err := svc.Report("C1", "A1")
	if err != nil {
		t.Fatalf("Report returned error: %v", err)
	}
	if report.TotalRespondents != 3 {
		t.Fatalf("total respondents = %d, want 3", report.TotalRespondents)
	}
	var employee, leaderSelf *RespondentReport
	for i := range report.ByRespondent {
		switch report.ByRespondent[i].Respondent {
		case models.RespondentEmployee:
			employee = &report.ByRespondent[i]
		case models.RespondentLeaderSelf:
			leaderSelf = &report.ByRespondent[i]
		}
	}
	if employee == nil || employee.Respondents != 2 {
		t.Fatalf("employee group = %+v, want 2 respondents", employee)
	}
	if leaderSelf == nil || leaderSelf.Respondents != 1 {
		t.Fatalf("leader_self group missing despite a used token")
	}
}

func TestReportSevenPointScale(t *testing.T) {
	store := &stubReportStore{
		assessment: &models.Assessment{ID: "A1", CustomerID: "C1", Status: models.StatusSent},
		questions:  reportQuestions(),
		usedTokens: map[models.RespondentType]int{},
	}
	svc := NewReportService(store, 7, DefaultThresholds())
	store.responses = []*models.Response{
		respond("m1", models.RespondentEmployee, 3, ""), // 3.0 < 2.5*7/5=3.5 -> critical
		respond("t1", models.RespondentEmployee, 4, ""), // 4.0 < 3.5*7/5=4.9 -> warning
		respond("k1", models.RespondentEmployee, 6, ""), // healthy
		respond("b1", models.RespondentEmployee, 2, ""), // adjusted 6, healthy
	}

	report, err := svc.Report("C1", "A1")
	if err != nil {
		t.Fatalf("Report returned error: %v", err)
	}
	if report.ScalePoints != 7 {
		t.Fatalf("scale points = %d, want 7", report.ScalePoints)
	}
	if report.Overall[0].Severity != SeverityCritical {
		t.Fatalf("meaning severity = %s, want critical on rescaled band", report.Overall[0].Severity)
	}
	if report.Overall[1].Severity != SeverityWarning {
		t.Fatalf("safety severity = %s, want warning on rescaled band", report.Overall[1].Severity)
	}
	if got := *report.Overall[3].Average; !floatEq(got, 6) {
		t.Fatalf("friction adjusted average = %v, want 6 on 7-point scale", got)
	}
}

func TestReportSkipsUnknownQuestionResponses(t *testing.T) {
	svc, store := newReportFixture()
	store.responses = []*models.Response{
		respond("m1", models.RespondentEmployee, 4, ""),
		respond("deleted-q", models.RespondentEmployee, 1, ""),
	}

	report, err := svc.Report("C1", "A1")
	if err != nil {
		t.Fatalf("Report returned error: %v", err)
	}
	if report.Overall[0].Count != 1 {
		t.Fatalf("meaning count = %d, want 1", report.Overall[0].Count)
	}
}

func TestExtractKeywords(t *testing.T) {
	comments := []string{
		"Alt for mange systemer, og systemer der ikke taler sammen",
		"Systemer er langsomme",
		"For mange møder om systemer",
	}
	keywords := extractKeywords(comments, 10)
	if len(keywords) == 0 || keywords[0].Word != "systemer" || keywords[0].Count != 4 {
		t.Fatalf("top keyword = %+v, want systemer x4", keywords)
	}
	for _, kw := range keywords {
		if len([]rune(kw.Word)) < 4 {
			t.Fatalf("short word %q survived filtering", kw.Word)
		}
		if keywordStopwords[kw.Word] {
			t.Fatalf("stopword %q survived filtering", kw.Word)
		}
	}
}

func TestExtractKeywordsLimitAndTieBreak(t *testing.T) {
	comments := []string{"beta alfa beta alfa gamma"}
	keywords := extractKeywords(comments, 2)
	if len(keywords) != 2 {
		t.Fatalf("limit ignored: %+v", keywords)
	}
	// equal counts break alphabetically
	if keywords[0].Word != "alfa" || keywords[1].Word != "beta" {
		t.Fatalf("tie-break order: %+v", keywords)
	}
}
