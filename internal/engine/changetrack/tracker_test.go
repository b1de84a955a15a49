// internal/engine/changetrack/tracker_test.go
package changetrack

import (
	"testing"
	"time"

	"firmadoc-engine/internal/common/clock"
	"firmadoc-engine/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTracker(t *testing.T) (*Tracker, *clock.Fake) {
	t.Helper()
	clk := clock.NewFake(time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC))
	return NewTracker(clk), clk
}

// ==========================
// Baseline Tests
// ==========================

func TestTracker_Initialize(t *testing.T) {
	tracker, _ := newTestTracker(t)

	tracker.Initialize("abc12345")
	assert.Equal(t, "abc12345", tracker.Hash())

	// Re-initialization mid-session is a no-op.
	tracker.Initialize("other999")
	assert.Equal(t, "abc12345", tracker.Hash())
}

func TestTracker_Clear(t *testing.T) {
	tracker, _ := newTestTracker(t)

	tracker.Initialize("abc12345")
	tracker.Track(0, "Caldaia", models.ChangePrice)
	require.Len(t, tracker.Changes(), 1)

	tracker.Clear()
	assert.Equal(t, "", tracker.Hash())
	assert.Empty(t, tracker.Changes())

	// After Clear a new baseline can be set.
	tracker.Initialize("other999")
	assert.Equal(t, "other999", tracker.Hash())
}

// ==========================
// Upsert Semantics
// ==========================

func TestTracker_Track_UpsertsByProductAndType(t *testing.T) {
	tracker, clk := newTestTracker(t)
	tracker.Initialize("abc12345")

	tracker.Track(0, "Caldaia", models.ChangePrice)
	clk.Advance(time.Minute)
	tracker.Track(0, "Caldaia", models.ChangePrice)

	changes := tracker.Changes()
	require.Len(t, changes, 1)
	assert.Equal(t, clk.Now(), changes[0].Timestamp)
}

func TestTracker_Track_DistinctTypesCoexist(t *testing.T) {
	tracker, _ := newTestTracker(t)
	tracker.Initialize("abc12345")

	tracker.Track(0, "Caldaia", models.ChangePrice)
	tracker.Track(0, "Caldaia", models.ChangeDiscount)
	tracker.Track(1, "Termostato", models.ChangePrice)

	changes := tracker.Changes()
	require.Len(t, changes, 3)
	assert.Equal(t, models.ChangePrice, changes[0].Type)
	assert.Equal(t, models.ChangeDiscount, changes[1].Type)
	assert.Equal(t, 1, changes[2].ProductIndex)
}

func TestTracker_Track_PreservesInsertionOrder(t *testing.T) {
	tracker, clk := newTestTracker(t)
	tracker.Initialize("abc12345")

	tracker.Track(2, "C", models.ChangePrice)
	clk.Advance(time.Second)
	tracker.Track(0, "A", models.ChangePrice)
	clk.Advance(time.Second)
	// Re-editing product 2 must not move it to the back.
	tracker.Track(2, "C", models.ChangePrice)

	changes := tracker.Changes()
	require.Len(t, changes, 2)
	assert.Equal(t, 2, changes[0].ProductIndex)
	assert.Equal(t, 0, changes[1].ProductIndex)
}

// ==========================
// Summaries
// ==========================

func TestTracker_Summarize_GroupsByProduct(t *testing.T) {
	tracker, clk := newTestTracker(t)
	tracker.Initialize("abc12345")

	tracker.Track(0, "Caldaia", models.ChangePrice)
	clk.Advance(time.Minute)
	tracker.Track(1, "Termostato", models.ChangeDescription)
	clk.Advance(time.Minute)
	tracker.Track(0, "Caldaia", models.ChangeDiscount)
	last := clk.Now()

	summaries := tracker.Summarize()
	require.Len(t, summaries, 2)

	first := summaries[0]
	assert.Equal(t, 0, first.ProductIndex)
	assert.Equal(t, "Caldaia", first.ProductName)
	assert.Equal(t, []models.ChangeType{models.ChangePrice, models.ChangeDiscount}, first.ChangeTypes)
	assert.Equal(t, last, first.LastChangedAt)

	second := summaries[1]
	assert.Equal(t, 1, second.ProductIndex)
	assert.Equal(t, []models.ChangeType{models.ChangeDescription}, second.ChangeTypes)
}

func TestTracker_Summarize_RefreshesProductName(t *testing.T) {
	tracker, clk := newTestTracker(t)
	tracker.Initialize("abc12345")

	tracker.Track(0, "Caldaia", models.ChangePrice)
	clk.Advance(time.Minute)
	tracker.Track(0, "Caldaia a condensazione", models.ChangeDescription)

	summaries := tracker.Summarize()
	require.Len(t, summaries, 1)
	assert.Equal(t, "Caldaia a condensazione", summaries[0].ProductName)
}

func TestTracker_Summarize_Empty(t *testing.T) {
	tracker, _ := newTestTracker(t)
	tracker.Initialize("abc12345")

	assert.Empty(t, tracker.Summarize())
	assert.Empty(t, tracker.Changes())
}
