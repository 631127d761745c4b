package models

import "time"

// Comment hangs off an answer and is removed when the answer (or the
// answer's question) goes away.
type Comment struct {
	ID        int       `gorm:"primaryKey" json:"id"`
	AnswerID  int       `gorm:"index;not null" json:"answerId"`
	AuthorID  int       `json:"authorId"`
	Author    User      `gorm:"foreignKey:AuthorID" json:"author"`
	Body      string    `gorm:"not null" json:"body"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type CreateCommentRequest struct {
	AnswerID int    `json:"answerId"`
	Body     string `json:"body"`
}
