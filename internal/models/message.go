package models

// MessageKind identifies the payload carried by a chat message.
type MessageKind string

const (
	TextMessage  MessageKind = "TEXT"
	ImageMessage MessageKind = "IMAGE"
	AudioMessage MessageKind = "AUDIO"
)

// Message is a single chat utterance. Before server confirmation the ID is a
// client-generated temporary id; Confirm swaps it for the server-assigned one.
type Message struct {
	ID               string      `json:"id"`
	ChatID           string      `json:"chatId"`
	SenderID         string      `json:"senderId"`
	Kind             MessageKind `json:"messageType"`
	Content          string      `json:"content,omitempty"`
	MediaRef         string      `json:"mediaUrl,omitempty"`
	AudioDurationSec int         `json:"audioDuration,omitempty"`
	CreatedAt        int64       `json:"createdAt"` // epoch milliseconds, sole ordering key
	IsMine           bool        `json:"isMine"`
	Read             bool        `json:"isRead"`
}
