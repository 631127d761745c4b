package models

import (
	"errors"
	"time"
)

// ErrSelfVote is returned when a question's author tries to vote on it.
var ErrSelfVote = errors.New("cannot vote on your own question")

// VoteDirection is the direction of a vote request.
type VoteDirection int

const (
	VoteUp   VoteDirection = 1
	VoteDown VoteDirection = -1
)

// UserIDSet is a set of user ids stored as a JSONB array on the question row.
type UserIDSet []int

func (s UserIDSet) Has(userID int) bool {
	for _, id := range s {
		if id == userID {
			return true
		}
	}
	return false
}

func (s UserIDSet) Add(userID int) UserIDSet {
	if s.Has(userID) {
		return s
	}
	return append(s, userID)
}

func (s UserIDSet) Remove(userID int) UserIDSet {
	out := make(UserIDSet, 0, len(s))
	for _, id := range s {
		if id != userID {
			out = append(out, id)
		}
	}
	return out
}

// StringList is a tag list stored as a JSONB array.
type StringList []string

type Question struct {
	ID           int        `gorm:"primaryKey" json:"id"`
	Title        string     `gorm:"not null" json:"title"`
	Body         string     `gorm:"not null" json:"body"`
	Tags         StringList `gorm:"type:jsonb;serializer:json" json:"tags"`
	AuthorID     int        `gorm:"index" json:"authorId"`
	Author       User       `gorm:"foreignKey:AuthorID" json:"author"`
	Votes        int        `gorm:"default:0" json:"votes"`
	UpvotedBy    UserIDSet  `gorm:"type:jsonb;serializer:json" json:"upvotedBy"`
	DownvotedBy  UserIDSet  `gorm:"type:jsonb;serializer:json" json:"downvotedBy"`
	AnswersCount int        `gorm:"default:0" json:"answersCount"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// ApplyVote runs the per-user vote state machine over the question's vote
// sets and derived counter. Each (question, user) pair is in one of three
// states: no vote, upvoted, or downvoted. Repeating the same direction
// toggles the vote off; the opposite direction switches it, moving the
// counter by two. The counter always equals len(UpvotedBy)-len(DownvotedBy)
// when ApplyVote returns nil.
func (q *Question) ApplyVote(userID int, dir VoteDirection) error {
	if userID == q.AuthorID {
		return ErrSelfVote
	}

	switch dir {
	case VoteUp:
		switch {
		case q.UpvotedBy.Has(userID): // toggle off
			q.UpvotedBy = q.UpvotedBy.Remove(userID)
			q.Votes--
		case q.DownvotedBy.Has(userID): // switch
			q.DownvotedBy = q.DownvotedBy.Remove(userID)
			q.UpvotedBy = q.UpvotedBy.Add(userID)
			q.Votes += 2
		default:
			q.UpvotedBy = q.UpvotedBy.Add(userID)
			q.Votes++
		}
	case VoteDown:
		switch {
		case q.DownvotedBy.Has(userID): // toggle off
			q.DownvotedBy = q.DownvotedBy.Remove(userID)
			q.Votes++
		case q.UpvotedBy.Has(userID): // switch
			q.UpvotedBy = q.UpvotedBy.Remove(userID)
			q.DownvotedBy = q.DownvotedBy.Add(userID)
			q.Votes -= 2
		default:
			q.DownvotedBy = q.DownvotedBy.Add(userID)
			q.Votes--
		}
	}
	return nil
}

type CreateQuestionRequest struct {
	Title string     `json:"title"`
	Body  string     `json:"body"`
	Tags  StringList `json:"tags"`
}

// UpdateQuestionRequest is the typed partial update: only these three fields
// are mutable, any other JSON key is dropped at decode time. A nil field
// means "leave unchanged".
type UpdateQuestionRequest struct {
	Title *string     `json:"title"`
	Body  *string     `json:"body"`
	Tags  *StringList `json:"tags"`
}

type VoteRequest struct {
	ID int `json:"id"`
}
