package models

// Conversation summarizes one counterpart's activity on a page.
type Conversation struct {
	SenderID     string  `json:"senderId"`
	SenderInfo   Profile `json:"senderInfo"`
	LastMessage  Message `json:"lastMessage"`
	LastActivity int64   `json:"lastActivity"`
	UnreadCount  int     `json:"unreadCount"`
}
