package evaluation

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"
)

const (
	// StorageKey is the fixed slot holding the draft.
	StorageKey = "evaluation_answers_yg"
	// MaxAge is how long a saved draft stays valid.
	MaxAge = 24 * time.Hour
)

type storedDraft struct {
	Answers     map[int]Answer `json:"answers"`
	Timestamp   *int64         `json:"timestamp"` // epoch milliseconds
	ShowResults bool           `json:"showResults"`
}

// Cache persists drafts in a Storage slot. None of its methods fail: storage
// and decoding problems are logged and replaced by the empty default.
type Cache struct {
	store  Storage
	logger *zap.Logger
	now    func() time.Time
}

// NewCache creates a cache over store. A nil logger disables logging.
func NewCache(store Storage, logger *zap.Logger) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{store: store, logger: logger.Named("evaluation_cache"), now: time.Now}
}

// WithClock overrides the time source.
func (c *Cache) WithClock(now func() time.Time) *Cache {
	c.now = now
	return c
}

func emptySnapshot() Snapshot {
	return Snapshot{Answers: map[int]Answer{}, ShowResults: false}
}

// Save writes answers and showResults stamped with the current time.
func (c *Cache) Save(ctx context.Context, answers map[int]Answer, showResults bool) {
	if answers == nil {
		answers = map[int]Answer{}
	}
	stamp := c.now().UnixMilli()
	b, err := json.Marshal(storedDraft{
		Answers:     answers,
		Timestamp:   &stamp,
		ShowResults: showResults,
	})
	if err != nil {
		c.logger.Warn("could not encode evaluation draft", zap.Error(err))
		return
	}
	if err := c.store.Set(ctx, StorageKey, string(b)); err != nil {
		c.logger.Warn("could not save evaluation draft", zap.Error(err))
	}
}

// Load returns the saved draft, or the empty default when nothing usable is
// stored. Expired and corrupted drafts are removed.
func (c *Cache) Load(ctx context.Context) Snapshot {
	raw, ok, err := c.store.Get(ctx, StorageKey)
	if err != nil {
		c.logger.Warn("could not read evaluation draft", zap.Error(err))
		return emptySnapshot()
	}
	if !ok || raw == "" {
		return emptySnapshot()
	}

	var d storedDraft
	if err := json.Unmarshal([]byte(raw), &d); err != nil {
		c.logger.Warn("discarding corrupted evaluation draft", zap.Error(err))
		c.remove(ctx)
		return emptySnapshot()
	}
	// an unstamped draft has no age and is kept
	if d.Timestamp != nil && c.now().UnixMilli()-*d.Timestamp > MaxAge.Milliseconds() {
		c.remove(ctx)
		return emptySnapshot()
	}
	if d.Answers == nil {
		d.Answers = map[int]Answer{}
	}
	return Snapshot{Answers: d.Answers, ShowResults: d.ShowResults}
}

// Clear removes the slot.
func (c *Cache) Clear(ctx context.Context) {
	c.remove(ctx)
}

func (c *Cache) remove(ctx context.Context) {
	if err := c.store.Remove(ctx, StorageKey); err != nil {
		c.logger.Warn("could not clear evaluation draft", zap.Error(err))
	}
}

// AutoSave persists the state on every mutation, one write per change. The
// returned function stops it.
func AutoSave(ctx context.Context, state *State, cache *Cache) (stop func()) {
	return state.Subscribe(func(s Snapshot) {
		cache.Save(ctx, s.Answers, s.ShowResults)
	})
}
