// internal/engine/changetrack/tracker.go
package changetrack

import (
	"sync"

	"firmadoc-engine/internal/common/clock"
	"firmadoc-engine/internal/models"
)

// Tracker records field-level edits to a quote before finalization. The log
// is process-local and scoped to one document session; it is never shared
// across sessions for different documents. Callers needing audit history
// across sessions must persist the summary themselves.
type Tracker struct {
	mu      sync.Mutex
	clock   clock.Clock
	hash    string
	order   []string // change keys, insertion order of first appearance
	changes map[string]models.Change
}

func NewTracker(clk clock.Clock) *Tracker {
	return &Tracker{
		clock:   clk,
		changes: make(map[string]models.Change),
	}
}

// Initialize sets the tracking baseline. A no-op when a baseline is already
// set for a non-empty hash, guarding against accidental re-initialization
// mid-session.
func (t *Tracker) Initialize(documentHash string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.hash != "" {
		return
	}
	t.hash = documentHash
	t.order = nil
	t.changes = make(map[string]models.Change)
}

// Hash returns the current baseline document hash.
func (t *Tracker) Hash() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.hash
}

// Track upserts a change record keyed by (productIndex, changeType). A
// repeated edit of the same kind replaces the record, refreshing the
// timestamp and the product name to the latest values.
func (t *Tracker) Track(productIndex int, productName string, changeType models.ChangeType) {
	t.mu.Lock()
	defer t.mu.Unlock()

	change := models.Change{
		ProductIndex: productIndex,
		ProductName:  productName,
		Type:         changeType,
		Timestamp:    t.clock.Now(),
	}

	key := change.Key()
	if _, exists := t.changes[key]; !exists {
		t.order = append(t.order, key)
	}
	t.changes[key] = change
}

// Clear drops the baseline hash and empties the log, so tracking can restart
// for a different document.
func (t *Tracker) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.hash = ""
	t.order = nil
	t.changes = make(map[string]models.Change)
}

// Changes returns the log in insertion order of first appearance.
func (t *Tracker) Changes() []models.Change {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]models.Change, 0, len(t.order))
	for _, key := range t.order {
		out = append(out, t.changes[key])
	}
	return out
}

// Summarize groups the log per product, in insertion order of the product's
// first appearance. Each summary carries the distinct change kinds touched
// and the latest timestamp among them. Callers needing a sorted display
// order must sort explicitly.
func (t *Tracker) Summarize() []models.ProductChangeSummary {
	t.mu.Lock()
	defer t.mu.Unlock()

	var summaries []models.ProductChangeSummary
	byProduct := make(map[int]int) // product index -> position in summaries

	for _, key := range t.order {
		change := t.changes[key]

		pos, exists := byProduct[change.ProductIndex]
		if !exists {
			byProduct[change.ProductIndex] = len(summaries)
			summaries = append(summaries, models.ProductChangeSummary{
				ProductIndex:  change.ProductIndex,
				ProductName:   change.ProductName,
				ChangeTypes:   []models.ChangeType{change.Type},
				LastChangedAt: change.Timestamp,
			})
			continue
		}

		s := &summaries[pos]
		s.ChangeTypes = append(s.ChangeTypes, change.Type)
		if !change.Timestamp.Before(s.LastChangedAt) {
			s.LastChangedAt = change.Timestamp
			s.ProductName = change.ProductName
		}
	}

	return summaries
}
