package server

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/DivyanshChaudhary0/Stack-Wave-Backend/internal/database"
	"github.com/DivyanshChaudhary0/Stack-Wave-Backend/internal/handlers"
	"github.com/DivyanshChaudhary0/Stack-Wave-Backend/internal/middleware"
)

type Server struct {
	db      database.Service
	handler *handlers.Handler
}

// NewServer creates and configures a new server
func NewServer() *http.Server {
	db := database.New()

	handler := handlers.NewHandler(db.GetDB())

	newServer := &Server{
		db:      db,
		handler: handler,
	}

	router := newServer.RegisterRoutes()

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080" // local dev fallback
	}

	server := &http.Server{
		Addr:         "0.0.0.0:" + port,
		Handler:      router,
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	log.Printf("🚀 Server starting on port %s\n", port)
	fmt.Println("📝 Press Ctrl+C to stop the server")

	return server
}

// RegisterRoutes sets up all application routes
func (s *Server) RegisterRoutes() *gin.Engine {
	r := gin.Default()

	// CORS configuration
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowHeaders:     []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * 3600,
	}))

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, s.db.Health())
	})

	api := r.Group("/api")
	{
		// Auth routes (public)
		api.POST("/auth/register", s.handler.Auth.Register)
		api.POST("/auth/login", s.handler.Auth.Login)

		// Everything else requires an authenticated caller
		protected := api.Group("")
		protected.Use(middleware.AuthMiddleware())
		{
			protected.GET("/auth/me", s.handler.Auth.GetMe)

			// Question routes
			protected.GET("/questions", s.handler.Question.GetQuestions)
			protected.POST("/questions", s.handler.Question.CreateQuestion)
			protected.POST("/questions/upvote", s.handler.Question.UpvoteQuestion)
			protected.POST("/questions/downvote", s.handler.Question.DownvoteQuestion)
			protected.GET("/questions/:id", s.handler.Question.GetQuestion)
			protected.PUT("/questions/:id", s.handler.Question.UpdateQuestion)
			protected.DELETE("/questions/:id", s.handler.Question.DeleteQuestion)

			// Answer routes
			protected.POST("/answers", s.handler.Answer.CreateAnswer)
			protected.GET("/answers/question/:questionId", s.handler.Answer.GetAnswers)
			protected.DELETE("/answers/:id", s.handler.Answer.DeleteAnswer)

			// Comment routes
			protected.POST("/comments", s.handler.Comment.CreateComment)
			protected.GET("/comments/answer/:answerId", s.handler.Comment.GetComments)
			protected.DELETE("/comments/:id", s.handler.Comment.DeleteComment)

			// User routes
			protected.GET("/users/:id", s.handler.User.GetUser)
			protected.PUT("/users/:id", s.handler.User.UpdateUser)
			protected.GET("/leaderboard", s.handler.User.Leaderboard)
		}
	}

	return r
}
