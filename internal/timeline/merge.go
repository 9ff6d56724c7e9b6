// Package timeline merges a chat's messages and its current budget into one
// chronologically ordered display sequence.
package timeline

import (
	"sort"

	"prochat/internal/models"
)

// Merge produces the display timeline for a chat: every message, plus the
// budget when it carries a real quote (price > 0). A zero-price budget is a
// pending request placeholder and never renders as a timeline entry.
//
// Merge is pure: it never mutates its inputs and returns a fresh slice on
// every call. Ordering is ascending by sort key; ties keep input order, with
// messages ahead of the budget.
func Merge(messages []models.Message, budget *models.Budget) []models.TimelineItem {
	items := make([]models.TimelineItem, 0, len(messages)+1)

	for i := range messages {
		msg := messages[i]
		items = append(items, models.TimelineItem{
			Type:      models.TimelineMessage,
			DisplayID: "message:" + msg.ID,
			SortKey:   msg.CreatedAt,
			Message:   &msg,
		})
	}

	if budget.Quoted() {
		b := *budget
		items = append(items, models.TimelineItem{
			Type:      models.TimelineBudget,
			DisplayID: "budget:" + b.ID,
			SortKey:   b.SortKey(),
			Budget:    &b,
		})
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].SortKey < items[j].SortKey
	})

	return items
}
