package models

// BudgetStatus is the lifecycle state of a quote.
type BudgetStatus string

const (
	BudgetPending  BudgetStatus = "PENDING"
	BudgetQuoted   BudgetStatus = "QUOTED"
	BudgetAccepted BudgetStatus = "ACCEPTED"
	BudgetRejected BudgetStatus = "REJECTED"
	BudgetExpired  BudgetStatus = "EXPIRED"
)

// Budget is the single active quote attached to a chat. A price of exactly 0
// is a pending request placeholder, not a real offer.
type Budget struct {
	ID          string       `json:"id"`
	ChatID      string       `json:"chatId"`
	ServiceID   string       `json:"serviceId"`
	Price       float64      `json:"price"`
	Description string       `json:"description,omitempty"`
	Status      BudgetStatus `json:"status"`
	CreatedAt   int64        `json:"createdAt"` // epoch milliseconds
	UpdatedAt   int64        `json:"updatedAt"`
	ExpiresAt   *int64       `json:"expiresAt,omitempty"`
}

// Quoted reports whether a price has actually been set.
func (b *Budget) Quoted() bool {
	return b != nil && b.Price > 0
}

// SortKey returns the budget's effective timeline position: the moment the
// quote was last set when priced, otherwise the moment the request was opened.
func (b *Budget) SortKey() int64 {
	if b.Quoted() {
		return b.UpdatedAt
	}
	return b.CreatedAt
}
