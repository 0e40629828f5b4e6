package models

// MessagePage is one page of messages, most recent first.
type MessagePage struct {
	Messages []Message `json:"messages"`
	Total    int       `json:"total"`
	HasMore  bool      `json:"hasMore"`
}
