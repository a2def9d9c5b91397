package model

import "time"

// Message is a chat turn. Sources holds the JSON-encoded retrieval
// sources for assistant answers produced through the knowledge base;
// plain chat messages leave it empty.
type Message struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	SessionID uint      `gorm:"not null;index" json:"session_id"`
	UserID    uint      `gorm:"not null;index" json:"user_id"`
	Role      string    `gorm:"size:16;not null;index" json:"role"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	Sources   string    `gorm:"type:text" json:"sources,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
