package models

// Real-time channel event names. The server fans these out to every current
// participant of the room the client joined.
const (
	EventNewMessage     = "new-message"
	EventMessageRead    = "message-read"
	EventNewChat        = "new-chat"
	EventNewBudget      = "new-budget"
	EventChatListUpdate = "chat-list-update"

	EventJoinChat         = "join-chat"
	EventLeaveChat        = "leave-chat"
	EventJoinProfessional = "join-professional"
)

// BudgetEvent is the push payload for new-budget. The budget itself may be
// absent; receivers then re-load the authoritative value from the API.
type BudgetEvent struct {
	ChatID    string  `json:"chatId,omitempty"`
	ServiceID string  `json:"serviceId,omitempty"`
	Budget    *Budget `json:"budget,omitempty"`
}

// MessageReadEvent is the push payload for message-read.
type MessageReadEvent struct {
	ChatID string `json:"chatId"`
	UserID string `json:"userId"`
}

// ChatListUpdateEvent is the push payload for chat-list-update and new-chat.
type ChatListUpdateEvent struct {
	ChatID string `json:"chatId"`
}
