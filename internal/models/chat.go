package models

// Chat is a conversation between a client and a professional, optionally
// anchored to a specific service listing.
type Chat struct {
	ID             string `json:"id"`
	ClientID       string `json:"clientId"`
	ProfessionalID string `json:"professionalId"`
	ServiceID      string `json:"serviceId,omitempty"`
	LastMessageAt  int64  `json:"lastMessageAt"` // epoch milliseconds
	CreatedAt      int64  `json:"createdAt"`
	UpdatedAt      int64  `json:"updatedAt"`
}

// ChatSummary is the inbox row for a chat: enough to render the professional's
// conversation list without opening a session.
type ChatSummary struct {
	ChatID        string `json:"chatId"`
	ClientID      string `json:"clientId"`
	ClientName    string `json:"clientName,omitempty"`
	ServiceID     string `json:"serviceId,omitempty"`
	ServiceTitle  string `json:"serviceTitle,omitempty"`
	LastMessageAt int64  `json:"lastMessageAt"`
	UnreadCount   int    `json:"unreadCount"`
}
