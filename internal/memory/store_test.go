package memory

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annai-ai/annai/internal/bus"
	"github.com/annai-ai/annai/internal/model"
	"github.com/annai-ai/annai/internal/testutil"
)

func newTestStore() *Store {
	return NewStore(bus.New(testutil.TestLogger(), 100))
}

func TestClassify(t *testing.T) {
	tests := []struct {
		content string
		want    model.MemoryCategory
	}{
		{"I prefer dark mode in every app", model.CategoryPreference},
		{"My favourite editor is vim", model.CategoryPreference},
		{"Need to renew the domain before Friday", model.CategoryTask},
		{"I realized the deploy fails only on Mondays", model.CategoryInsight},
		{"Alice said the launch moved to March", model.CategoryConversation},
		{"The automation should trigger at midnight", model.CategoryAutomation},
		{"The office door code is 4821", model.CategoryFact},
		// Short declaratives stay facts even when a keyword rule would
		// also match.
		{"The meeting is at 3pm", model.CategoryFact},
		{"The deadline is Friday", model.CategoryFact},
		// Preference outranks fact on overlap.
		{"My favourite port is 8080", model.CategoryPreference},
		// Past the length bound the keyword rules take over.
		{"We have to migrate the billing tables before the end of the quarter because the old schema is slow and reports are timing out nightly", model.CategoryTask},
		{"hello there", model.CategoryGeneral},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Classify(tt.content), "content: %s", tt.content)
	}
}

func TestScoreImportance(t *testing.T) {
	assert.InDelta(t, 0.5, ScoreImportance("short note"), 1e-9)

	// Emphasis marker: +0.2.
	assert.InDelta(t, 0.7, ScoreImportance("this is important"), 1e-9)

	// Obligation marker: +0.1.
	assert.InDelta(t, 0.6, ScoreImportance("we have to ship friday"), 1e-9)

	// Long + emphatic + obligatory content clamps at 1.0.
	long := "You must always remember that this is important. "
	for len(long) <= 200 {
		long += "More context follows to pad the content out further. "
	}
	assert.InDelta(t, 1.0, ScoreImportance(long), 1e-9)
}

func TestStore_AddDerivesCategoryAndImportance(t *testing.T) {
	s := newTestStore()

	item := s.Add("owner-1", "I prefer tea over coffee", "", nil)
	assert.Equal(t, model.CategoryPreference, item.Category)
	assert.Greater(t, item.Importance, 0.0)

	// Explicit category wins over classification.
	forced := s.Add("owner-1", "I prefer tea over coffee", model.CategoryFact, nil)
	assert.Equal(t, model.CategoryFact, forced.Category)
}

func TestStore_QueryRanksByTermOverlap(t *testing.T) {
	s := newTestStore()
	s.Add("owner-1", "the meeting with alice is at 3pm", "", nil)
	s.Add("owner-1", "alice likes green tea", "", nil)
	s.Add("owner-1", "unrelated note about gardening", "", nil)

	got := s.Query(QueryParams{OwnerID: "owner-1", Text: "meeting alice 3pm"})
	require.Len(t, got, 2, "items with zero overlap are excluded")
	assert.Contains(t, got[0].Content, "meeting")
}

func TestStore_QueryScopedToOwner(t *testing.T) {
	s := newTestStore()
	s.Add("owner-1", "alpha", "", nil)
	s.Add("owner-2", "beta", "", nil)

	got := s.Query(QueryParams{OwnerID: "owner-1"})
	require.Len(t, got, 1)
	assert.Equal(t, "alpha", got[0].Content)
}

func TestStore_QueryBumpsAccessBookkeeping(t *testing.T) {
	s := newTestStore()
	item := s.Add("owner-1", "note", "", nil)

	got := s.Query(QueryParams{OwnerID: "owner-1"})
	require.Len(t, got, 1)
	assert.Equal(t, 1, got[0].AccessCount)
	assert.False(t, got[0].LastAccessedAt.Before(item.LastAccessedAt))
}

func TestStore_Delete(t *testing.T) {
	s := newTestStore()
	item := s.Add("owner-1", "note", "", nil)

	assert.True(t, s.Delete("owner-1", item.ID))
	assert.False(t, s.Delete("owner-1", item.ID), "second delete reports absence")
	assert.False(t, s.Delete("owner-1", uuid.New()))
}

func TestStore_DeleteScopedToOwner(t *testing.T) {
	s := newTestStore()
	item := s.Add("owner-1", "note", "", nil)

	assert.False(t, s.Delete("owner-2", item.ID), "other owners cannot delete")
	assert.True(t, s.Delete("owner-1", item.ID))
}

func TestStore_Summary(t *testing.T) {
	s := newTestStore()
	s.Add("owner-1", "a", model.CategoryFact, nil)
	s.Add("owner-1", "b", model.CategoryFact, nil)
	s.Add("owner-1", "c", model.CategoryFact, nil)
	s.Add("owner-1", "d", model.CategoryPreference, nil)

	sum := s.Summary("owner-1")
	assert.Equal(t, 4, sum.TotalItems)
	assert.Equal(t, 3, sum.ByCategory[model.CategoryFact])
	assert.Equal(t, 1, sum.ByCategory[model.CategoryPreference])
}
