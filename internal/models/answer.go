package models

import "time"

// Answer lives and dies with its question: deleting the question removes
// every answer below it.
type Answer struct {
	ID         int       `gorm:"primaryKey" json:"id"`
	QuestionID int       `gorm:"index;not null" json:"questionId"`
	AuthorID   int       `json:"authorId"`
	Author     User      `gorm:"foreignKey:AuthorID" json:"author"`
	Body       string    `gorm:"not null" json:"body"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

type CreateAnswerRequest struct {
	QuestionID int    `json:"questionId"`
	Body       string `json:"body"`
}
