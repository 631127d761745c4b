package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/DivyanshChaudhary0/Stack-Wave-Backend/internal/models"
)

type CommentHandler struct {
	db *gorm.DB
}

func NewCommentHandler(db *gorm.DB) *CommentHandler {
	return &CommentHandler{db: db}
}

// CreateComment adds a comment under an answer.
func (h *CommentHandler) CreateComment(c *gin.Context) {
	userID, ok := extractUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Unauthorized"})
		return
	}

	var input models.CreateCommentRequest
	if err := c.ShouldBindJSON(&input); err != nil || input.AnswerID == 0 || input.Body == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "answerId and body are required"})
		return
	}

	var answer models.Answer
	if err := h.db.First(&answer, input.AnswerID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"message": "Answer not found"})
		return
	}

	comment := models.Comment{
		AnswerID: answer.ID,
		AuthorID: userID,
		Body:     input.Body,
	}

	if err := h.db.Create(&comment).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to create comment"})
		return
	}

	h.db.Preload("Author", authorPreload).First(&comment, comment.ID)

	c.JSON(http.StatusCreated, gin.H{
		"comment": comment,
		"message": "Comment created successfully",
	})
}

// GetComments returns all comments for an answer.
func (h *CommentHandler) GetComments(c *gin.Context) {
	answerID, err := strconv.Atoi(c.Param("answerId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "id is not valid"})
		return
	}

	var comments []models.Comment
	if err := h.db.Where("answer_id = ?", answerID).
		Preload("Author", authorPreload).
		Order("created_at asc").
		Find(&comments).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to fetch comments"})
		return
	}

	if comments == nil {
		comments = []models.Comment{}
	}

	c.JSON(http.StatusOK, gin.H{
		"comments": comments,
		"message":  "Comments fetched successfully",
	})
}

// DeleteComment removes a comment (author only).
func (h *CommentHandler) DeleteComment(c *gin.Context) {
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

	var comment models.Comment
	if err := h.db.First(&comment, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"message": "Comment not found"})
		return
	}

	if comment.AuthorID != userID {
		c.JSON(http.StatusForbidden, gin.H{"message": "Unauthorized to modify this comment"})
		return
	}

	if err := h.db.Delete(&comment).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to delete comment"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Comment is deleted"})
}
