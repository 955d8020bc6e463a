// Package evaluation keeps an in-progress questionnaire: the answer state, its
// time-bounded persistence and the completion/format checks that gate
// submission.
package evaluation

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Kind tags which variant an Answer holds.
type Kind uint8

const (
	KindNone Kind = iota
	KindText
	KindNumber
	KindChoices
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindNumber:
		return "number"
	case KindChoices:
		return "choices"
	default:
		return "none"
	}
}

// Answer is the value given to one question: free text, a number or a set of
// selected options.
type Answer struct {
	Kind    Kind
	Text    string
	Number  float64
	Choices []string
}

// Text builds a free-text answer.
func Text(s string) Answer { return Answer{Kind: KindText, Text: s} }

// Number builds a numeric answer.
func Number(n float64) Answer { return Answer{Kind: KindNumber, Number: n} }

// Choices builds a multi-select answer.
func Choices(opts ...string) Answer {
	if opts == nil {
		opts = []string{}
	}
	return Answer{Kind: KindChoices, Choices: opts}
}

// Answered reports whether the answer counts towards completion. Only absent
// values and the empty string are treated as unanswered.
func (a Answer) Answered() bool {
	switch a.Kind {
	case KindNone:
		return false
	case KindText:
		return a.Text != ""
	default:
		return true
	}
}

func (a Answer) MarshalJSON() ([]byte, error) {
	switch a.Kind {
	case KindText:
		return json.Marshal(a.Text)
	case KindNumber:
		return json.Marshal(a.Number)
	case KindChoices:
		if a.Choices == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(a.Choices)
	default:
		return []byte("null"), nil
	}
}

func (a *Answer) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return fmt.Errorf("evaluation: empty answer")
	}
	switch b[0] {
	case 'n':
		*a = Answer{}
		return nil
	case '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*a = Text(s)
		return nil
	case '[':
		var opts []string
		if err := json.Unmarshal(b, &opts); err != nil {
			return fmt.Errorf("evaluation: choices must be strings: %w", err)
		}
		*a = Choices(opts...)
		return nil
	default:
		var n float64
		if err := json.Unmarshal(b, &n); err != nil {
			return fmt.Errorf("evaluation: unsupported answer %s", string(b))
		}
		*a = Number(n)
		return nil
	}
}
