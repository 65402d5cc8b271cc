package controller

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"ucode_backend/internal/config"
	"ucode_backend/internal/model"
	"ucode_backend/internal/repository"
	"ucode_backend/internal/service"
	"ucode_backend/internal/util"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type pdfStub struct{}

func (pdfStub) Render(data service.CertificateData) ([]byte, error) {
	return []byte("%PDF-1.3 " + data.ID), nil
}

type fixture struct {
	db       *gorm.DB
	router   *gin.Engine
	users    *repository.UserRepository
	courses  *service.CourseService
	lessons  *service.LessonService
	scoring  *service.ScoringService
	learner  *model.User
	claimsOf func() *util.Claims
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(model.All()...))

	cfg := &config.Config{}
	userRepo := repository.NewUserRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	lessonRepo := repository.NewLessonRepository(db)
	progressRepo := repository.NewProgressRepository(db)

	courses := service.NewCourseService(db, courseRepo, lessonRepo, progressRepo, nil, cfg)
	lessons := service.NewLessonService(db, lessonRepo, courseRepo, progressRepo)
	scoring := service.NewScoringService(db, lessonRepo, progressRepo)
	coding := service.NewCodingService(repository.NewCodingSubmissionRepository(db), lessonRepo, progressRepo, scoring, nil)
	certs := service.NewCertificateService(repository.NewCertificateRepository(db), courseRepo, userRepo, progressRepo, pdfStub{}, nil, cfg)

	learner := &model.User{Username: "alice", Email: "alice@example.com", Password: "x"}
	require.NoError(t, userRepo.Create(learner))

	f := &fixture{db: db, users: userRepo, courses: courses, lessons: lessons, scoring: scoring, learner: learner}
	f.claimsOf = func() *util.Claims { return &util.Claims{UserID: learner.ID, Username: learner.Username} }

	lessonCtl := NewLessonController(lessons, scoring)
	taskCtl := NewTaskController(scoring, coding)
	certCtl := NewCertificateController(certs)
	courseCtl := NewCourseController(courses, lessons)

	router := gin.New()
	api := router.Group("/api")
	api.GET("/verify-certificate/:id", certCtl.VerifyCertificate)
	api.Use(func(c *gin.Context) {
		c.Set("user", f.claimsOf())
		c.Next()
	})
	api.POST("/lessons", lessonCtl.SaveLesson)
	api.POST("/lessons/:id/start", lessonCtl.StartLesson)
	api.POST("/task-check/:componentId", taskCtl.CheckTask)
	api.GET("/courses/:id/certificate", certCtl.DownloadCertificate)
	api.GET("/courses/:id/next-lesson/:serial", courseCtl.NextLesson)
	f.router = router
	return f
}

func (f *fixture) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, data interface{}) util.Response {
	t.Helper()
	resp := util.Response{Data: data}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func (f *fixture) seedLesson(t *testing.T) (*model.Course, *model.Lesson) {
	t.Helper()
	view, err := f.courses.CreateCourse(&service.CourseInput{Name: "Go", Complexity: model.Junior})
	require.NoError(t, err)
	saved, err := f.lessons.SaveLesson(&service.LessonInput{
		CourseID: view.ID, Title: "Quiz", MaxScore: 100, SerialNumber: 1,
		Components: []service.ComponentInput{
			{Type: model.KindText, MaxScore: 40, SerialNumber: 1, Data: json.RawMessage(`{"content":"read"}`)},
			{Type: model.KindMCQ, MaxScore: 60, SerialNumber: 2, Data: json.RawMessage(`{"question":"q","options":[{"option":"a","isCorrect":true},{"option":"b"}]}`)},
		},
	})
	require.NoError(t, err)
	lesson, err := repository.NewLessonRepository(f.db).FindWithComponents(saved.ID)
	require.NoError(t, err)
	return &view.Course, lesson
}

func TestHealthCheck(t *testing.T) {
	sqlDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer sqlDB.Close()

	db, err := gorm.Open(mysql.New(mysql.Config{Conn: sqlDB, SkipInitializeWithVersion: true}), &gorm.Config{
		DisableAutomaticPing: true,
		Logger:               gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	router := gin.New()
	router.GET("/api/health", NewHealthController(db).HealthCheck)

	mock.ExpectPing()
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"database":"up"`)

	mock.ExpectPing().WillReturnError(errors.New("connection refused"))
	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "Database unavailable")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTaskCheckFlow(t *testing.T) {
	f := newFixture(t)
	course, lesson := f.seedLesson(t)
	mcq := lesson.Components[1]
	path := "/api/task-check/" + fmt.Sprint(mcq.ID)

	w := f.do(t, http.MethodPost, path, `{"answer":true}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "lesson not started")

	w = f.do(t, http.MethodPost, "/api/lessons/"+fmt.Sprint(lesson.ID)+"/start", nil)
	require.Equal(t, http.StatusCreated, w.Code)
	var started service.LessonStartResult
	decode(t, w, &started)
	assert.Equal(t, 40, started.UserLesson.Score)

	w = f.do(t, http.MethodPost, "/api/lessons/"+fmt.Sprint(lesson.ID)+"/start", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, http.MethodPost, path, map[string]interface{}{"optionId": mcq.Options[0].ID})
	require.Equal(t, http.StatusOK, w.Code)
	var result service.TaskCheckResult
	decode(t, w, &result)
	assert.True(t, result.IsCorrect)
	assert.Equal(t, 100, result.LessonScore)
	assert.Equal(t, 100, result.CourseProgress)
	assert.True(t, result.CourseCompleted)

	w = f.do(t, http.MethodGet, "/api/courses/"+fmt.Sprint(course.ID)+"/certificate", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, util.MimePDF, w.Header().Get("Content-Type"))
	certID := w.Header().Get("X-Certificate-Id")
	require.NotEmpty(t, certID)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "certificate-"+certID+".pdf")
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("%PDF")))

	w = f.do(t, http.MethodGet, "/api/verify-certificate/"+certID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var verification service.CertificateVerification
	decode(t, w, &verification)
	assert.Equal(t, "alice", verification.Username)
	assert.Equal(t, "Go", verification.CourseName)
}

func TestTaskCheck_Errors(t *testing.T) {
	f := newFixture(t)
	_, lesson := f.seedLesson(t)

	w := f.do(t, http.MethodPost, "/api/task-check/abc", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodPost, "/api/task-check/9999", `{"answer":true}`)
	assert.Equal(t, http.StatusNotFound, w.Code)

	text := lesson.Components[0]
	w = f.do(t, http.MethodPost, "/api/task-check/"+fmt.Sprint(text.ID), `{"answer":true}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodPost, "/api/task-check/"+fmt.Sprint(lesson.Components[1].ID), `{"answer":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSaveLesson_FieldErrors(t *testing.T) {
	f := newFixture(t)
	course, _ := f.seedLesson(t)

	w := f.do(t, http.MethodPost, "/api/lessons", map[string]interface{}{
		"courseId":     course.ID,
		"title":        "Broken",
		"maxScore":     10,
		"serialNumber": 2,
		"components": []map[string]interface{}{
			{"type": "mcq", "maxScore": 10, "serialNumber": 1, "data": map[string]interface{}{"question": "q"}},
		},
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	var data struct {
		Errors map[string]string `json:"errors"`
	}
	resp := decode(t, w, &data)
	assert.Equal(t, "validation failed", resp.Message)
	assert.Contains(t, data.Errors, "components.0.data.options")
}

func TestVerifyCertificate_NotFound(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, http.MethodGet, "/api/verify-certificate/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestNextLesson(t *testing.T) {
	f := newFixture(t)
	course, _ := f.seedLesson(t)
	base := "/api/courses/" + fmt.Sprint(course.ID) + "/next-lesson/"

	w := f.do(t, http.MethodGet, base+"0", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var next model.Lesson
	decode(t, w, &next)
	assert.Equal(t, 1, next.SerialNumber)

	w = f.do(t, http.MethodGet, base+"1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"data":null`)

	w = f.do(t, http.MethodGet, base+"x", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
