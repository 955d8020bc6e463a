package evaluation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func answered(ids []int) map[int]Answer {
	out := map[int]Answer{}
	for _, id := range ids {
		out[id] = Text("ok")
	}
	return out
}

func TestValidateSection(t *testing.T) {
	state := NewState()
	v := NewValidator(state)

	empty := v.ValidateSection(nil)
	assert.Equal(t, SectionResult{Total: 0, Answered: 0, Percentage: 0, IsComplete: true}, empty)

	state.SetAnswer(1, Text("a"))
	state.SetAnswer(2, Text(""))
	state.SetAnswer(3, Answer{})
	res := v.ValidateSection([]int{1, 2, 3})
	assert.Equal(t, 3, res.Total)
	assert.Equal(t, 1, res.Answered)
	assert.Equal(t, 33, res.Percentage)
	assert.False(t, res.IsComplete)

	state.SetAnswer(2, Text("b"))
	assert.Equal(t, 67, v.ValidateSection([]int{1, 2, 3}).Percentage)
}

func TestValidateRequired(t *testing.T) {
	state := NewState()
	state.SetAnswer(8, Number(0))
	v := NewValidator(state)

	res := v.ValidateRequired([]int{8, 9, 10})
	assert.False(t, res.IsValid)
	assert.Equal(t, []int{9, 10}, res.Missing)
	assert.Contains(t, res.Message, "2")

	state.ReplaceAnswers(answered([]int{8, 9, 10}))
	res = v.ValidateRequired([]int{8, 9, 10})
	assert.True(t, res.IsValid)
	assert.Empty(t, res.Missing)
	assert.Empty(t, res.Message)
}

func TestValidateFormat(t *testing.T) {
	cases := []struct {
		name    string
		answers map[int]Answer
		errors  int
		match   string
	}{
		{"experience out of range", map[int]Answer{15: Number(60)}, 1, "0 and 50"},
		{"negative experience", map[int]Answer{15: Number(-1)}, 1, "0 and 50"},
		{"only the short text fails", map[int]Answer{15: Number(30), 5: Text("a")}, 1, "2 characters"},
		{"text is trimmed", map[int]Answer{7: Text("  a  ")}, 1, "2 characters"},
		{"empty topic list", map[int]Answer{12: Choices()}, 1, "legal topic"},
		{"all rules accumulate", map[int]Answer{15: Number(51), 5: Text("a"), 7: Text("b"), 12: Choices()}, 4, ""},
		{"valid answers", map[int]Answer{15: Number(50), 5: Text("ok"), 12: Choices("x")}, 0, ""},
		{"rules skip other variants", map[int]Answer{15: Text("sixty"), 12: Text("x")}, 0, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			state := NewState()
			state.ReplaceAnswers(tc.answers)
			res := NewValidator(state).ValidateFormat()

			require.Len(t, res.Errors, tc.errors)
			assert.Equal(t, tc.errors == 0, res.IsValid)
			if tc.match != "" {
				assert.Contains(t, res.Errors[0], tc.match)
			}
		})
	}
}

func TestFormStatusGate(t *testing.T) {
	// 8 of 9 HR questions (89%) and 6 of 7 legal ones (86%).
	answers := answered([]int{1, 2, 3, 4, 5, 6, 7, 15, 8, 9, 10, 11, 12, 13})
	answers[15] = Number(10)
	answers[12] = Choices("contracts")

	got := Evaluate(answers)
	assert.Equal(t, 89, got.HR.Percentage)
	assert.Equal(t, 86, got.Legal.Percentage)
	assert.True(t, got.Format.IsValid)
	assert.True(t, got.CanSubmit)
	assert.Equal(t, 88, got.OverallProgress)

	answers[15] = Number(99)
	got = Evaluate(answers)
	assert.False(t, got.CanSubmit)

	answers[15] = Number(10)
	delete(answers, 13)
	got = Evaluate(answers)
	assert.Equal(t, 71, got.Legal.Percentage)
	assert.False(t, got.CanSubmit)
}

func TestValidatorWatch(t *testing.T) {
	state := NewState()
	v := NewValidator(state)
	var last FormStatus
	calls := 0
	stop := v.Watch(func(fs FormStatus) { last = fs; calls++ })

	state.ReplaceAnswers(answered(append(append([]int{}, HRSection...), LegalSection...)))
	assert.Equal(t, 1, calls)
	assert.True(t, last.CanSubmit)
	assert.Equal(t, 100, last.OverallProgress)

	state.SetAnswer(15, Number(70))
	assert.Equal(t, 2, calls)
	assert.False(t, last.CanSubmit)

	stop()
	state.Reset()
	assert.Equal(t, 2, calls)
}
