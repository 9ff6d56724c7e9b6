package types

// Wire shapes for the marketplace backend API. Timestamps travel as RFC 3339
// strings and prices as decimal strings; conversion to domain models happens
// in internal/models.

type Person struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	AvatarURL *string `json:"avatarUrl"`
}

type ServiceRef struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type Chat struct {
	ID             string      `json:"id"`
	ClientID       string      `json:"clientId"`
	ProfessionalID string      `json:"professionalId"`
	ServiceID      *string     `json:"serviceId"`
	LastMessageAt  string      `json:"lastMessageAt"`
	CreatedAt      string      `json:"createdAt"`
	UpdatedAt      string      `json:"updatedAt"`
	Client         *Person     `json:"client,omitempty"`
	Professional   *Person     `json:"professional,omitempty"`
	Service        *ServiceRef `json:"service,omitempty"`
	Budget         *Budget     `json:"budget,omitempty"`
	Messages       []Message   `json:"messages,omitempty"`
	Count          *ChatCount  `json:"_count,omitempty"`
}

type ChatCount struct {
	Messages int `json:"messages"`
}

type Message struct {
	ID            string  `json:"id"`
	ChatID        string  `json:"chatId"`
	SenderID      string  `json:"senderId"`
	Content       *string `json:"content"`
	MessageType   string  `json:"messageType"`
	MediaURL      *string `json:"mediaUrl"`
	AudioDuration *int    `json:"audioDuration"`
	IsRead        bool    `json:"isRead"`
	CreatedAt     string  `json:"createdAt"`
	Sender        *Person `json:"sender,omitempty"`
}

type Budget struct {
	ID          string  `json:"id"`
	ChatID      string  `json:"chatId"`
	ServiceID   string  `json:"serviceId"`
	Price       string  `json:"price"`
	Description *string `json:"description"`
	Status      string  `json:"status"`
	CreatedAt   string  `json:"createdAt"`
	UpdatedAt   string  `json:"updatedAt"`
	ExpiresAt   *string `json:"expiresAt"`
}

type CreateChatRequest struct {
	ClientID       string  `json:"clientId"`
	ProfessionalID string  `json:"professionalId"`
	ServiceID      *string `json:"serviceId,omitempty"`
}

type SendMessageRequest struct {
	ChatID        string  `json:"-"`
	SenderID      string  `json:"senderId"`
	Content       *string `json:"content,omitempty"`
	MessageType   string  `json:"messageType,omitempty"`
	MediaURL      *string `json:"mediaUrl,omitempty"`
	AudioDuration *int    `json:"audioDuration,omitempty"`
}

type GetMessagesRequest struct {
	ChatID string
	Limit  int
	Offset int
}

type MarkReadRequest struct {
	ChatID string `json:"-"`
	UserID string `json:"userId"`
}

type CreateBudgetRequest struct {
	ChatID      string  `json:"chatId"`
	ServiceID   string  `json:"serviceId"`
	Price       float64 `json:"price"`
	Description *string `json:"description,omitempty"`
}

type ErrorResponse struct {
	Message string `json:"message,omitempty"`
}
