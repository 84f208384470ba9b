package model

import (
	"time"

	"github.com/google/uuid"
)

// MemoryCategory classifies what kind of information a memory holds.
type MemoryCategory string

const (
	CategoryGeneral      MemoryCategory = "general"
	CategoryPreference   MemoryCategory = "preference"
	CategoryFact         MemoryCategory = "fact"
	CategoryConversation MemoryCategory = "conversation"
	CategoryTask         MemoryCategory = "task"
	CategoryInsight      MemoryCategory = "insight"
	CategoryAutomation   MemoryCategory = "automation"
)

// ValidMemoryCategories returns the closed set of categories.
func ValidMemoryCategories() []MemoryCategory {
	return []MemoryCategory{
		CategoryGeneral, CategoryPreference, CategoryFact,
		CategoryConversation, CategoryTask, CategoryInsight, CategoryAutomation,
	}
}

// MemoryItem is one remembered snippet of text, owned by a single owner.
// Category and importance are derived from content once at creation and never
// recomputed. Reads bump LastAccessedAt and AccessCount; deletion is hard.
type MemoryItem struct {
	ID             uuid.UUID      `json:"id"`
	OwnerID        string         `json:"owner_id"`
	Content        string         `json:"content"`
	Category       MemoryCategory `json:"category"`
	// Importance is advisory [0,1]: stored for a future ranking policy,
	// not consulted by Query or eviction today.
	Importance     float64        `json:"importance"`
	CreatedAt      time.Time      `json:"created_at"`
	LastAccessedAt time.Time      `json:"last_accessed_at"`
	AccessCount    int            `json:"access_count"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

// MemorySummary aggregates an owner's memories.
type MemorySummary struct {
	TotalItems int                    `json:"total_items"`
	ByCategory map[MemoryCategory]int `json:"by_category"`
}
