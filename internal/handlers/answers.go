package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/DivyanshChaudhary0/Stack-Wave-Backend/internal/models"
)

type AnswerHandler struct {
	db *gorm.DB
}

func NewAnswerHandler(db *gorm.DB) *AnswerHandler {
	return &AnswerHandler{db: db}
}

// CreateAnswer posts an answer and bumps the question's answersCount, which
// the Unanswered listing filter depends on.
func (h *AnswerHandler) CreateAnswer(c *gin.Context) {
	userID, ok := extractUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Unauthorized"})
		return
	}

	var input models.CreateAnswerRequest
	if err := c.ShouldBindJSON(&input); err != nil || input.QuestionID == 0 || input.Body == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "questionId and body are required"})
		return
	}

	var question models.Question
	if err := h.db.First(&question, input.QuestionID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"message": "Question not found"})
		return
	}

	answer := models.Answer{
		QuestionID: question.ID,
		AuthorID:   userID,
		Body:       input.Body,
	}

	err := h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&answer).Error; err != nil {
			return err
		}
		return tx.Model(&models.Question{}).Where("id = ?", question.ID).
			UpdateColumn("answers_count", gorm.Expr("answers_count + ?", 1)).Error
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to create answer"})
		return
	}

	h.db.Preload("Author", authorPreload).First(&answer, answer.ID)

	c.JSON(http.StatusCreated, gin.H{
		"answer":  answer,
		"message": "Answer created successfully",
	})
}

// GetAnswers returns all answers for a question, newest first.
func (h *AnswerHandler) GetAnswers(c *gin.Context) {
	questionID, err := strconv.Atoi(c.Param("questionId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "id is not valid"})
		return
	}

	var answers []models.Answer
	if err := h.db.Where("question_id = ?", questionID).
		Preload("Author", authorPreload).
		Order("created_at desc").
		Find(&answers).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to fetch answers"})
		return
	}

	if answers == nil {
		answers = []models.Answer{}
	}

	c.JSON(http.StatusOK, gin.H{
		"answers": answers,
		"message": "Answers fetched successfully",
	})
}

// DeleteAnswer removes an answer, its comments, and decrements the owning
// question's answersCount (author only).
func (h *AnswerHandler) DeleteAnswer(c *gin.Context) {
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

	var answer models.Answer
	if err := h.db.First(&answer, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"message": "Answer not found"})
		return
	}

	if answer.AuthorID != userID {
		c.JSON(http.StatusForbidden, gin.H{"message": "Unauthorized to modify this answer"})
		return
	}

	err = h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("answer_id = ?", answer.ID).Delete(&models.Comment{}).Error; err != nil {
			return err
		}
		if err := tx.Delete(&models.Answer{}, answer.ID).Error; err != nil {
			return err
		}
		return tx.Model(&models.Question{}).Where("id = ?", answer.QuestionID).
			UpdateColumn("answers_count", gorm.Expr("answers_count - ?", 1)).Error
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to delete answer"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Answer is deleted"})
}
