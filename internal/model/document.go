package model

import "time"

// Document is an uploaded legal document. RAGIndexed reports whether its
// chunks made it into the vector index; a false value means the analysis
// succeeded but retrieval will not see this document.
type Document struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	UserID     uint      `gorm:"not null;index" json:"user_id"`
	Filename   string    `gorm:"size:256;not null" json:"filename"`
	Analysis   string    `gorm:"type:text" json:"analysis"`
	ChunkCount int       `gorm:"not null" json:"chunk_count"`
	RAGIndexed bool      `gorm:"not null" json:"rag_indexed"`
	CreatedAt  time.Time `json:"created_at"`
}
