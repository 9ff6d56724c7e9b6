package models

// TimelineItemType tags the variant held by a TimelineItem.
type TimelineItemType string

const (
	TimelineMessage TimelineItemType = "message"
	TimelineBudget  TimelineItemType = "budget"
)

// TimelineItem is one display-ready unit of the merged chat view: either a
// message or the chat's current budget, positioned by SortKey.
type TimelineItem struct {
	Type      TimelineItemType `json:"type"`
	DisplayID string           `json:"displayId"`
	SortKey   int64            `json:"sortKey"`
	Message   *Message         `json:"message,omitempty"`
	Budget    *Budget          `json:"budget,omitempty"`
}
