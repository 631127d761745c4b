package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"gorm.io/gorm"

	"github.com/DivyanshChaudhary0/Stack-Wave-Backend/internal/database"
	"github.com/DivyanshChaudhary0/Stack-Wave-Backend/internal/middleware"
	"github.com/DivyanshChaudhary0/Stack-Wave-Backend/internal/models"
)

var (
	testDB     *gorm.DB
	testRouter *gin.Engine
	userSeq    atomic.Int64
)

func TestMain(m *testing.M) {
	flag.Parse()
	os.Setenv("JWT_SECRET", "integration-test-secret")

	if testing.Short() {
		os.Exit(m.Run())
	}

	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("stackwave_test"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(90*time.Second)),
	)
	if err != nil {
		log.Printf("skipping handler tests, could not start postgres container: %v", err)
		os.Exit(m.Run())
	}

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		log.Fatalf("connection string: %v", err)
	}

	testDB, err = database.Open(dsn)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}

	testRouter = newTestRouter(testDB)

	code := m.Run()

	if err := container.Terminate(ctx); err != nil {
		log.Printf("terminate container: %v", err)
	}
	os.Exit(code)
}

func newTestRouter(db *gorm.DB) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewHandler(db)

	r := gin.New()
	api := r.Group("/api")
	api.POST("/auth/register", h.Auth.Register)
	api.POST("/auth/login", h.Auth.Login)

	protected := api.Group("")
	protected.Use(middleware.AuthMiddleware())
	{
		protected.GET("/questions", h.Question.GetQuestions)
		protected.POST("/questions", h.Question.CreateQuestion)
		protected.POST("/questions/upvote", h.Question.UpvoteQuestion)
		protected.POST("/questions/downvote", h.Question.DownvoteQuestion)
		protected.GET("/questions/:id", h.Question.GetQuestion)
		protected.PUT("/questions/:id", h.Question.UpdateQuestion)
		protected.DELETE("/questions/:id", h.Question.DeleteQuestion)

		protected.POST("/answers", h.Answer.CreateAnswer)
		protected.GET("/answers/question/:questionId", h.Answer.GetAnswers)
		protected.DELETE("/answers/:id", h.Answer.DeleteAnswer)

		protected.POST("/comments", h.Comment.CreateComment)
		protected.GET("/comments/answer/:answerId", h.Comment.GetComments)
		protected.DELETE("/comments/:id", h.Comment.DeleteComment)

		protected.GET("/users/:id", h.User.GetUser)
		protected.PUT("/users/:id", h.User.UpdateUser)
		protected.GET("/leaderboard", h.User.Leaderboard)
	}
	return r
}

func requireDB(t *testing.T) {
	t.Helper()
	if testDB == nil {
		t.Skip("database not available")
	}
}

type questionJSON struct {
	ID           int      `json:"id"`
	Title        string   `json:"title"`
	Body         string   `json:"body"`
	Tags         []string `json:"tags"`
	AuthorID     int      `json:"authorId"`
	Votes        int      `json:"votes"`
	UpvotedBy    []int    `json:"upvotedBy"`
	DownvotedBy  []int    `json:"downvotedBy"`
	AnswersCount int      `json:"answersCount"`
}

func doRequest(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	testRouter.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), out))
}

// registerUser creates a fresh user and returns its id and token.
func registerUser(t *testing.T, name string) (int, string) {
	t.Helper()

	suffix := userSeq.Add(1)
	w := doRequest(t, http.MethodPost, "/api/auth/register", "", gin.H{
		"username": fmt.Sprintf("%s_%d", name, suffix),
		"email":    fmt.Sprintf("%s_%d@example.com", name, suffix),
		"password": "password123",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp models.AuthResponse
	decodeBody(t, w, &resp)
	require.NotEmpty(t, resp.Token)
	return resp.User.ID, resp.Token
}

func createQuestion(t *testing.T, token, title string) questionJSON {
	t.Helper()

	w := doRequest(t, http.MethodPost, "/api/questions", token, gin.H{
		"title": title,
		"body":  "body of " + title,
		"tags":  []string{"go", "testing"},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp struct {
		Question questionJSON `json:"question"`
	}
	decodeBody(t, w, &resp)
	require.NotZero(t, resp.Question.ID)
	return resp.Question
}

func getQuestion(t *testing.T, token string, id int) questionJSON {
	t.Helper()

	w := doRequest(t, http.MethodGet, fmt.Sprintf("/api/questions/%d", id), token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Question questionJSON `json:"question"`
	}
	decodeBody(t, w, &resp)
	return resp.Question
}

func TestListRequiresAuth(t *testing.T) {
	requireDB(t)

	w := doRequest(t, http.MethodGet, "/api/questions", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCreateQuestionValidation(t *testing.T) {
	requireDB(t)
	userID, token := registerUser(t, "creator")

	w := doRequest(t, http.MethodPost, "/api/questions", token, gin.H{
		"title": "missing body and tags",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	createQuestion(t, token, "a valid question")

	w = doRequest(t, http.MethodGet, fmt.Sprintf("/api/users/%d", userID), token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		User models.User `json:"user"`
	}
	decodeBody(t, w, &resp)
	assert.Equal(t, 1, resp.User.QuestionsAskedCount)
}

func TestVoteToggleAndSwitch(t *testing.T) {
	requireDB(t)
	_, authorToken := registerUser(t, "author")
	voterID, voterToken := registerUser(t, "voter")

	q := createQuestion(t, authorToken, "vote target")

	// None --up--> Up
	w := doRequest(t, http.MethodPost, "/api/questions/upvote", voterToken, gin.H{"id": q.ID})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp struct {
		Question questionJSON `json:"question"`
	}
	decodeBody(t, w, &resp)
	assert.Equal(t, 1, resp.Question.Votes)
	assert.Contains(t, resp.Question.UpvotedBy, voterID)

	// Up --down--> Down, counter moves by two
	w = doRequest(t, http.MethodPost, "/api/questions/downvote", voterToken, gin.H{"id": q.ID})
	require.Equal(t, http.StatusOK, w.Code)
	decodeBody(t, w, &resp)
	assert.Equal(t, -1, resp.Question.Votes)
	assert.NotContains(t, resp.Question.UpvotedBy, voterID)
	assert.Contains(t, resp.Question.DownvotedBy, voterID)

	// Down --down--> None (toggle off)
	w = doRequest(t, http.MethodPost, "/api/questions/downvote", voterToken, gin.H{"id": q.ID})
	require.Equal(t, http.StatusOK, w.Code)
	decodeBody(t, w, &resp)
	assert.Equal(t, 0, resp.Question.Votes)
	assert.Empty(t, resp.Question.DownvotedBy)

	// Toggle idempotence: up then up returns to the initial state
	doRequest(t, http.MethodPost, "/api/questions/upvote", voterToken, gin.H{"id": q.ID})
	w = doRequest(t, http.MethodPost, "/api/questions/upvote", voterToken, gin.H{"id": q.ID})
	require.Equal(t, http.StatusOK, w.Code)
	decodeBody(t, w, &resp)
	assert.Equal(t, 0, resp.Question.Votes)
	assert.Empty(t, resp.Question.UpvotedBy)
}

func TestSelfVoteForbidden(t *testing.T) {
	requireDB(t)
	_, authorToken := registerUser(t, "selfvoter")
	q := createQuestion(t, authorToken, "my own question")

	w := doRequest(t, http.MethodPost, "/api/questions/upvote", authorToken, gin.H{"id": q.ID})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = doRequest(t, http.MethodPost, "/api/questions/downvote", authorToken, gin.H{"id": q.ID})
	assert.Equal(t, http.StatusForbidden, w.Code)

	assert.Equal(t, 0, getQuestion(t, authorToken, q.ID).Votes)
}

func TestVoteUnknownQuestion(t *testing.T) {
	requireDB(t)
	_, token := registerUser(t, "lost")

	w := doRequest(t, http.MethodPost, "/api/questions/upvote", token, gin.H{"id": 99999999})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doRequest(t, http.MethodPost, "/api/questions/downvote", token, gin.H{"id": 99999999})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(t, http.MethodPost, "/api/questions/upvote", token, gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestConcurrentUpvotesAreNotLost(t *testing.T) {
	requireDB(t)
	_, authorToken := registerUser(t, "racehost")
	q := createQuestion(t, authorToken, "contended question")

	const voters = 8
	tokens := make([]string, voters)
	for i := range tokens {
		_, tokens[i] = registerUser(t, "racer")
	}

	var wg sync.WaitGroup
	for _, token := range tokens {
		wg.Add(1)
		go func(token string) {
			defer wg.Done()
			w := doRequest(t, http.MethodPost, "/api/questions/upvote", token, gin.H{"id": q.ID})
			assert.Equal(t, http.StatusOK, w.Code)
		}(token)
	}
	wg.Wait()

	final := getQuestion(t, authorToken, q.ID)
	assert.Equal(t, voters, final.Votes, "every concurrent upvote must be counted")
	assert.Len(t, final.UpvotedBy, voters)
	assert.Empty(t, final.DownvotedBy)
}

func TestListPaginationAndFilters(t *testing.T) {
	requireDB(t)
	_, token := registerUser(t, "lister")

	ids := map[int]bool{}
	for i := 0; i < 7; i++ {
		q := createQuestion(t, token, fmt.Sprintf("page question %d", i))
		ids[q.ID] = true
	}

	listPage := func(query string) []questionJSON {
		w := doRequest(t, http.MethodGet, "/api/questions"+query, token, nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var resp struct {
			Questions []questionJSON `json:"questions"`
		}
		decodeBody(t, w, &resp)
		return resp.Questions
	}

	page1 := listPage("?filter=Newest&page=1&limit=3")
	page2 := listPage("?filter=Newest&page=2&limit=3")
	require.Len(t, page1, 3)
	require.Len(t, page2, 3)

	seen := map[int]bool{}
	for _, q := range page1 {
		seen[q.ID] = true
	}
	for _, q := range page2 {
		assert.False(t, seen[q.ID], "pages must not overlap")
	}

	// The limit parameter is honored, not fixed.
	assert.Len(t, listPage("?filter=Newest&page=1&limit=5"), 5)

	// Top Voted is ordered by the vote counter descending.
	top := listPage("?filter=Top Voted&page=1&limit=50")
	for i := 1; i < len(top); i++ {
		assert.GreaterOrEqual(t, top[i-1].Votes, top[i].Votes)
	}

	// Unanswered never returns a question with answers.
	var answered questionJSON
	for id := range ids {
		answered = getQuestion(t, token, id)
		break
	}
	w := doRequest(t, http.MethodPost, "/api/answers", token, gin.H{
		"questionId": answered.ID,
		"body":       "an answer",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	for _, q := range listPage("?filter=Unanswered&page=1&limit=50") {
		assert.Equal(t, 0, q.AnswersCount)
		assert.NotEqual(t, answered.ID, q.ID)
	}
}

func TestUpdateQuestion(t *testing.T) {
	requireDB(t)
	_, authorToken := registerUser(t, "editor")
	_, strangerToken := registerUser(t, "stranger")
	q := createQuestion(t, authorToken, "original title")

	// Only the author may edit.
	w := doRequest(t, http.MethodPut, fmt.Sprintf("/api/questions/%d", q.ID), strangerToken, gin.H{
		"title": "hijacked",
	})
	assert.Equal(t, http.StatusForbidden, w.Code)

	// An empty patch is rejected.
	w = doRequest(t, http.MethodPut, fmt.Sprintf("/api/questions/%d", q.ID), authorToken, gin.H{
		"votes": 1000, // not a mutable field, dropped at decode
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Partial update touches only the provided fields.
	w = doRequest(t, http.MethodPut, fmt.Sprintf("/api/questions/%d", q.ID), authorToken, gin.H{
		"title": "edited title",
		"tags":  []string{"updated"},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp struct {
		UpdatedQuestion questionJSON `json:"updatedQuestion"`
	}
	decodeBody(t, w, &resp)
	assert.Equal(t, "edited title", resp.UpdatedQuestion.Title)
	assert.Equal(t, []string{"updated"}, resp.UpdatedQuestion.Tags)
	assert.Equal(t, q.Body, resp.UpdatedQuestion.Body)
	assert.Equal(t, 0, resp.UpdatedQuestion.Votes)

	// Unknown question and invalid id.
	w = doRequest(t, http.MethodPut, "/api/questions/99999999", authorToken, gin.H{"title": "x"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = doRequest(t, http.MethodPut, "/api/questions/abc", authorToken, gin.H{"title": "x"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCascadeDelete(t *testing.T) {
	requireDB(t)
	authorID, authorToken := registerUser(t, "cascader")
	_, helperToken := registerUser(t, "helper")

	q := createQuestion(t, authorToken, "doomed question")

	// Two answers with three comments between them.
	answerIDs := make([]int, 0, 2)
	for i := 0; i < 2; i++ {
		w := doRequest(t, http.MethodPost, "/api/answers", helperToken, gin.H{
			"questionId": q.ID,
			"body":       fmt.Sprintf("answer %d", i),
		})
		require.Equal(t, http.StatusCreated, w.Code)
		var resp struct {
			Answer models.Answer `json:"answer"`
		}
		decodeBody(t, w, &resp)
		answerIDs = append(answerIDs, resp.Answer.ID)
	}
	for i, answerID := range []int{answerIDs[0], answerIDs[0], answerIDs[1]} {
		w := doRequest(t, http.MethodPost, "/api/comments", helperToken, gin.H{
			"answerId": answerID,
			"body":     fmt.Sprintf("comment %d", i),
		})
		require.Equal(t, http.StatusCreated, w.Code)
	}

	// Not the author: forbidden.
	w := doRequest(t, http.MethodDelete, fmt.Sprintf("/api/questions/%d", q.ID), helperToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = doRequest(t, http.MethodDelete, fmt.Sprintf("/api/questions/%d", q.ID), authorToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var questionCount, answerCount, commentCount int64
	testDB.Model(&models.Question{}).Where("id = ?", q.ID).Count(&questionCount)
	testDB.Model(&models.Answer{}).Where("question_id = ?", q.ID).Count(&answerCount)
	testDB.Model(&models.Comment{}).Where("answer_id IN ?", answerIDs).Count(&commentCount)
	assert.Zero(t, questionCount)
	assert.Zero(t, answerCount)
	assert.Zero(t, commentCount)

	var author models.User
	require.NoError(t, testDB.First(&author, authorID).Error)
	assert.Equal(t, 0, author.QuestionsAskedCount, "delete undoes the create increment")

	// Deleting again: gone.
	w = doRequest(t, http.MethodDelete, fmt.Sprintf("/api/questions/%d", q.ID), authorToken, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
