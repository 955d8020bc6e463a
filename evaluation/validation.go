package evaluation

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// Question groups used by the submission gate.
var (
	HRSection    = []int{1, 2, 3, 4, 5, 6, 7, 15, 16}
	LegalSection = []int{8, 9, 10, 11, 12, 13, 14}
)

// SubmitThreshold is the minimum completion percentage per group.
const SubmitThreshold = 80

// Question ids with format rules.
const (
	QuestionRoleDescription = 5
	QuestionFullName        = 7
	QuestionLegalTopics     = 12
	QuestionExperienceYears = 15
)

type SectionResult struct {
	Total      int  `json:"total"`
	Answered   int  `json:"answered"`
	Percentage int  `json:"percentage"`
	IsComplete bool `json:"isComplete"`
}

type RequiredResult struct {
	IsValid bool   `json:"isValid"`
	Missing []int  `json:"missingQuestions"`
	Message string `json:"errorMessage,omitempty"`
}

type FormatResult struct {
	IsValid bool     `json:"isValid"`
	Errors  []string `json:"errors"`
	Message string   `json:"errorMessage,omitempty"`
}

// FormStatus is the aggregate gate over both groups and the format rules.
type FormStatus struct {
	HR              SectionResult `json:"rrhh"`
	Legal           SectionResult `json:"legal"`
	Format          FormatResult  `json:"format"`
	CanSubmit       bool          `json:"canSubmit"`
	OverallProgress int           `json:"overallProgress"`
}

type formatRule struct {
	ids     []int
	kind    Kind
	ok      func(Answer) bool
	message string
}

// Rules only apply when the answer holds the variant they expect.
var formatRules = []formatRule{
	{
		ids:     []int{QuestionExperienceYears},
		kind:    KindNumber,
		ok:      func(a Answer) bool { return a.Number >= 0 && a.Number <= 50 },
		message: "Years of experience must be between 0 and 50",
	},
	{
		ids:     []int{QuestionRoleDescription, QuestionFullName},
		kind:    KindText,
		ok:      func(a Answer) bool { return len([]rune(strings.TrimSpace(a.Text))) >= 2 },
		message: "Text answers must be at least 2 characters long",
	},
	{
		ids:     []int{QuestionLegalTopics},
		kind:    KindChoices,
		ok:      func(a Answer) bool { return len(a.Choices) > 0 },
		message: "Select at least one legal topic of interest",
	},
}

// Validator evaluates the answers currently held by a State.
type Validator struct {
	state *State
}

func NewValidator(state *State) *Validator {
	return &Validator{state: state}
}

func (v *Validator) ValidateSection(ids []int) SectionResult {
	return sectionOf(v.state.Snapshot().Answers, ids)
}

func (v *Validator) ValidateRequired(ids []int) RequiredResult {
	return requiredOf(v.state.Snapshot().Answers, ids)
}

func (v *Validator) ValidateFormat() FormatResult {
	return formatOf(v.state.Snapshot().Answers)
}

func (v *Validator) FormStatus() FormStatus {
	return Evaluate(v.state.Snapshot().Answers)
}

// Watch recomputes the gate after every state mutation.
func (v *Validator) Watch(fn func(FormStatus)) (stop func()) {
	return v.state.Subscribe(func(s Snapshot) { fn(Evaluate(s.Answers)) })
}

// Evaluate computes the gate for an answer set.
func Evaluate(answers map[int]Answer) FormStatus {
	hr := sectionOf(answers, HRSection)
	legal := sectionOf(answers, LegalSection)
	format := formatOf(answers)
	return FormStatus{
		HR:              hr,
		Legal:           legal,
		Format:          format,
		CanSubmit:       hr.Percentage >= SubmitThreshold && legal.Percentage >= SubmitThreshold && format.IsValid,
		OverallProgress: int(math.Round(float64(hr.Percentage+legal.Percentage) / 2)),
	}
}

func sectionOf(answers map[int]Answer, ids []int) SectionResult {
	answered := 0
	for _, id := range ids {
		if answers[id].Answered() {
			answered++
		}
	}
	res := SectionResult{Total: len(ids), Answered: answered, IsComplete: answered == len(ids)}
	if len(ids) > 0 {
		res.Percentage = int(math.Round(100 * float64(answered) / float64(len(ids))))
	}
	return res
}

func requiredOf(answers map[int]Answer, ids []int) RequiredResult {
	missing := []int{}
	for _, id := range ids {
		if !answers[id].Answered() {
			missing = append(missing, id)
		}
	}
	res := RequiredResult{IsValid: len(missing) == 0, Missing: missing}
	if len(missing) > 0 {
		res.Message = fmt.Sprintf("%d required questions are unanswered", len(missing))
	}
	return res
}

func formatOf(answers map[int]Answer) FormatResult {
	ids := make([]int, 0, len(answers))
	for id := range answers {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	errs := []string{}
	for _, id := range ids {
		a := answers[id]
		for _, rule := range formatRules {
			if a.Kind != rule.kind || !containsID(rule.ids, id) {
				continue
			}
			if !rule.ok(a) {
				errs = append(errs, rule.message)
			}
		}
	}
	res := FormatResult{IsValid: len(errs) == 0, Errors: errs}
	if len(errs) > 0 {
		res.Message = strings.Join(errs, ". ")
	}
	return res
}

func containsID(ids []int, id int) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
