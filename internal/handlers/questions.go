package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/DivyanshChaudhary0/Stack-Wave-Backend/internal/models"
)

const (
	defaultPageSize = 3
	maxPageSize     = 50
)

type QuestionHandler struct {
	db *gorm.DB
}

func NewQuestionHandler(db *gorm.DB) *QuestionHandler {
	return &QuestionHandler{db: db}
}

func authorPreload(db *gorm.DB) *gorm.DB {
	return db.Select("id", "username", "avatar")
}

// questionResponse builds the wire shape: the question's own fields plus a
// minimal author projection.
func questionResponse(q models.Question) gin.H {
	upvotedBy := q.UpvotedBy
	if upvotedBy == nil {
		upvotedBy = models.UserIDSet{}
	}
	downvotedBy := q.DownvotedBy
	if downvotedBy == nil {
		downvotedBy = models.UserIDSet{}
	}
	tags := q.Tags
	if tags == nil {
		tags = models.StringList{}
	}

	return gin.H{
		"id":       q.ID,
		"title":    q.Title,
		"body":     q.Body,
		"tags":     tags,
		"authorId": q.AuthorID,
		"author": gin.H{
			"id":       q.Author.ID,
			"username": q.Author.Username,
			"avatar":   q.Author.Avatar,
		},
		"votes":        q.Votes,
		"upvotedBy":    upvotedBy,
		"downvotedBy":  downvotedBy,
		"answersCount": q.AnswersCount,
		"createdAt":    q.CreatedAt,
		"updatedAt":    q.UpdatedAt,
	}
}

// GetQuestions returns a page of questions for the requested filter.
// "Newest" (and no filter) orders by creation time, "Top Voted" by the vote
// counter; any other filter value selects unanswered questions. The caller's
// limit is honored in every branch.
func (h *QuestionHandler) GetQuestions(c *gin.Context) {
	if _, ok := extractUserID(c); !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Unauthorized"})
		return
	}

	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultPageSize)))
	if err != nil || limit < 1 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	query := h.db.Preload("Author", authorPreload)

	switch filter := c.Query("filter"); filter {
	case "", "Newest":
		query = query.Order("created_at desc")
	case "Top Voted":
		query = query.Order("votes desc")
	default:
		query = query.Where("answers_count = 0")
	}

	var questions []models.Question
	if err := query.Offset((page - 1) * limit).Limit(limit).Find(&questions).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to fetch questions"})
		return
	}

	// If no questions, return empty array not null
	responses := make([]gin.H, 0, len(questions))
	for _, question := range questions {
		responses = append(responses, questionResponse(question))
	}

	c.JSON(http.StatusOK, gin.H{
		"questions": responses,
		"message":   "Questions fetched successfully",
	})
}

// CreateQuestion creates a question and bumps the author's asked counter in
// the same transaction.
func (h *QuestionHandler) CreateQuestion(c *gin.Context) {
	userID, ok := extractUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Unauthorized"})
		return
	}

	var user models.User
	if err := h.db.First(&user, userID).Error; err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "User not found"})
		return
	}

	var input models.CreateQuestionRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "All fields are required"})
		return
	}
	if input.Title == "" || input.Body == "" || len(input.Tags) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"message": "All fields are required"})
		return
	}

	question := models.Question{
		Title:       input.Title,
		Body:        input.Body,
		Tags:        input.Tags,
		AuthorID:    userID,
		UpvotedBy:   models.UserIDSet{},
		DownvotedBy: models.UserIDSet{},
	}

	err := h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&question).Error; err != nil {
			return err
		}
		return tx.Model(&models.User{}).Where("id = ?", userID).
			UpdateColumn("questions_asked_count", gorm.Expr("questions_asked_count + ?", 1)).Error
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to create question"})
		return
	}

	h.db.Preload("Author", authorPreload).First(&question, question.ID)

	c.JSON(http.StatusCreated, gin.H{
		"question": questionResponse(question),
		"message":  "Question created successfully",
	})
}

// GetQuestion returns a single question with its author.
func (h *QuestionHandler) GetQuestion(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Question not found"})
		return
	}

	var question models.Question
	if err := h.db.Preload("Author", authorPreload).First(&question, id).Error; err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Question not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"question": questionResponse(question),
		"message":  "Question fetched successfully",
	})
}

// UpdateQuestion applies a partial update. Only title, body and tags are
// mutable; anything else in the request body is dropped when decoding into
// the typed patch.
func (h *QuestionHandler) UpdateQuestion(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "id is not valid"})
		return
	}

	userID, ok := extractUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Unauthorized"})
		return
	}

	var question models.Question
	if err := h.db.First(&question, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"message": "Question not found"})
		return
	}

	if question.AuthorID != userID {
		c.JSON(http.StatusForbidden, gin.H{"message": "Unauthorized to modify this question"})
		return
	}

	var patch models.UpdateQuestionRequest
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	updates := map[string]interface{}{}
	if patch.Title != nil {
		updates["title"] = *patch.Title
	}
	if patch.Body != nil {
		updates["body"] = *patch.Body
	}
	if patch.Tags != nil {
		question.Tags = *patch.Tags
	}

	if len(updates) == 0 && patch.Tags == nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "No fields provided for update"})
		return
	}

	err = h.db.Transaction(func(tx *gorm.DB) error {
		if len(updates) > 0 {
			if err := tx.Model(&question).Updates(updates).Error; err != nil {
				return err
			}
		}
		if patch.Tags != nil {
			if err := tx.Model(&question).Select("Tags").Updates(question).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to update question"})
		return
	}

	h.db.Preload("Author", authorPreload).First(&question, question.ID)

	c.JSON(http.StatusOK, gin.H{
		"updatedQuestion": questionResponse(question),
		"message":         "Question updated successfully",
	})
}

// DeleteQuestion removes a question together with its answers and their
// comments, and decrements the author's asked counter. All four steps run in
// one transaction so a failure leaves nothing half-deleted.
func (h *QuestionHandler) DeleteQuestion(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "id is not valid"})
		return
	}

	userID, ok := extractUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Unauthorized"})
		return
	}

	var question models.Question
	if err := h.db.First(&question, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"message": "Question not found"})
		return
	}

	if question.AuthorID != userID {
		c.JSON(http.StatusForbidden, gin.H{"message": "Unauthorized to modify this question"})
		return
	}

	err = h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&models.Question{}, question.ID).Error; err != nil {
			return err
		}

		var answerIDs []int
		if err := tx.Model(&models.Answer{}).Where("question_id = ?", question.ID).Pluck("id", &answerIDs).Error; err != nil {
			return err
		}
		if len(answerIDs) > 0 {
			if err := tx.Where("answer_id IN ?", answerIDs).Delete(&models.Comment{}).Error; err != nil {
				return err
			}
			if err := tx.Where("question_id = ?", question.ID).Delete(&models.Answer{}).Error; err != nil {
				return err
			}
		}

		return tx.Model(&models.User{}).Where("id = ?", question.AuthorID).
			UpdateColumn("questions_asked_count", gorm.Expr("questions_asked_count - ?", 1)).Error
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to delete question"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Question is deleted"})
}

// UpvoteQuestion handles POST /api/questions/upvote
func (h *QuestionHandler) UpvoteQuestion(c *gin.Context) {
	h.vote(c, models.VoteUp, http.StatusNotFound, "upVote successfully")
}

// DownvoteQuestion handles POST /api/questions/downvote
func (h *QuestionHandler) DownvoteQuestion(c *gin.Context) {
	h.vote(c, models.VoteDown, http.StatusBadRequest, "downVote successfully")
}

// vote runs the toggle/switch state machine inside a transaction that locks
// the question row, so two concurrent votes on the same question serialize
// instead of overwriting each other's sets.
func (h *QuestionHandler) vote(c *gin.Context, dir models.VoteDirection, notFoundStatus int, successMessage string) {
	voterID, ok := extractUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Unauthorized"})
		return
	}

	var input models.VoteRequest
	if err := c.ShouldBindJSON(&input); err != nil || input.ID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Question not found"})
		return
	}

	var question models.Question
	err := h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&question, input.ID).Error; err != nil {
			return err
		}
		if err := question.ApplyVote(voterID, dir); err != nil {
			return err
		}
		return tx.Model(&question).Select("Votes", "UpvotedBy", "DownvotedBy").Updates(question).Error
	})

	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		c.JSON(notFoundStatus, gin.H{"message": "Question not found"})
		return
	case errors.Is(err, models.ErrSelfVote):
		c.JSON(http.StatusForbidden, gin.H{"message": "Can not upVote or downVote to your question"})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to record vote"})
		return
	}

	h.db.Preload("Author", authorPreload).First(&question, question.ID)

	c.JSON(http.StatusOK, gin.H{
		"question": questionResponse(question),
		"message":  successMessage,
	})
}
