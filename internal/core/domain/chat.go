package domain

import "time"

// Author identifies who wrote a chat message.
type Author string

const (
	AuthorUser      Author = "user"
	AuthorAssistant Author = "assistant"
)

// Message is a single chat turn.
type Message struct {
	ID        string    `json:"id"`
	Author    Author    `json:"author"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// Greeting opens every conversation.
const Greeting = "Hello! I'm your AI assistant. How can I help you today?"

// CannedReplies is the fixed pool the assistant answers from.
var CannedReplies = []string{
	"I'd be happy to help you with that! Let me provide you with a comprehensive answer.",
	"That's a great question! Here's what I can tell you about this topic.",
	"I understand what you're looking for. Let me break this down for you step by step.",
	"Excellent point! This is definitely something worth exploring further.",
	"I can help you with that. Here are some key insights and recommendations.",
}
