package evaluation

import "sync"

// Snapshot is an immutable copy of the state at one point in time.
type Snapshot struct {
	Answers     map[int]Answer `json:"answers"`
	ShowResults bool           `json:"showResults"`
}

type subscriber struct {
	id int
	fn func(Snapshot)
}

// State owns the answer set and the results-shown flag. Every mutation
// notifies subscribers synchronously, in subscription order, before the
// mutating call returns.
type State struct {
	mu          sync.Mutex
	answers     map[int]Answer
	showResults bool
	subs        []subscriber
	nextID      int
}

// NewState returns an empty state.
func NewState() *State {
	return &State{answers: map[int]Answer{}}
}

// Restore replaces the content without notifying subscribers. It is meant for
// hydrating a state from persisted data.
func (s *State) Restore(snap Snapshot) {
	s.mu.Lock()
	s.answers = copyAnswers(snap.Answers)
	s.showResults = snap.ShowResults
	s.mu.Unlock()
}

// SetAnswer records the answer to question id.
func (s *State) SetAnswer(id int, a Answer) {
	s.mutate(func() { s.answers[id] = a })
}

// RemoveAnswer forgets the answer to question id.
func (s *State) RemoveAnswer(id int) {
	s.mutate(func() { delete(s.answers, id) })
}

// ReplaceAnswers swaps the whole answer set.
func (s *State) ReplaceAnswers(answers map[int]Answer) {
	s.mutate(func() { s.answers = copyAnswers(answers) })
}

// SetShowResults toggles the results-shown flag.
func (s *State) SetShowResults(v bool) {
	s.mutate(func() { s.showResults = v })
}

// Reset clears all answers and hides results.
func (s *State) Reset() {
	s.mutate(func() {
		s.answers = map[int]Answer{}
		s.showResults = false
	})
}

// Answer returns the answer to question id, if any.
func (s *State) Answer(id int) (Answer, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.answers[id]
	return a, ok
}

// Snapshot copies the current content.
func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Subscribe registers fn for every later mutation and returns a function that
// removes it.
func (s *State) Subscribe(fn func(Snapshot)) (cancel func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs = append(s.subs, subscriber{id: id, fn: fn})
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, sub := range s.subs {
			if sub.id == id {
				s.subs = append(s.subs[:i:i], s.subs[i+1:]...)
				return
			}
		}
	}
}

func (s *State) mutate(apply func()) {
	s.mu.Lock()
	apply()
	snap := s.snapshotLocked()
	subs := append([]subscriber(nil), s.subs...)
	s.mu.Unlock()

	// Called outside the lock so subscribers may read the state.
	for _, sub := range subs {
		sub.fn(snap)
	}
}

func (s *State) snapshotLocked() Snapshot {
	return Snapshot{Answers: copyAnswers(s.answers), ShowResults: s.showResults}
}

func copyAnswers(in map[int]Answer) map[int]Answer {
	out := make(map[int]Answer, len(in))
	for k, v := range in {
		if v.Choices != nil {
			v.Choices = append([]string{}, v.Choices...)
		}
		out[k] = v
	}
	return out
}
