package service

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"testing"
	"time"

	"ucode_backend/internal/config"
	"ucode_backend/internal/model"
	"ucode_backend/internal/repository"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	// 内存库只存在于单个连接上
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(model.All()...))
	return db
}

func testConfig() *config.Config {
	return &config.Config{
		JWT: config.JWTConfig{
			Secret:        "test-secret-test-secret-test-secret",
			AccessExpire:  time.Hour,
			RefreshExpire: 24 * time.Hour,
		},
		Storage: config.StorageConfig{
			Type:                "local",
			DefaultBannerImage:  "default/banner",
			DefaultProfileImage: "default/avatar",
		},
		Certificate: config.CertificateConfig{VerifyBaseURL: "https://ucode.test/verify-certificate"},
	}
}

// testEnv 组装服务层依赖，外部协作方使用内存实现
type testEnv struct {
	DB           *gorm.DB
	Cfg          *config.Config
	Users        *repository.UserRepository
	Courses      *repository.CourseRepository
	Lessons      *repository.LessonRepository
	Progress     *repository.ProgressRepository
	Certificates *repository.CertificateRepository
	Submissions  *repository.CodingSubmissionRepository
	Storage      *memoryStorage

	CourseService *CourseService
	LessonService *LessonService
	Scoring       *ScoringService
}

func newTestEnv(t *testing.T) *testEnv {
	db := newTestDB(t)
	cfg := testConfig()
	env := &testEnv{
		DB:           db,
		Cfg:          cfg,
		Users:        repository.NewUserRepository(db),
		Courses:      repository.NewCourseRepository(db),
		Lessons:      repository.NewLessonRepository(db),
		Progress:     repository.NewProgressRepository(db),
		Certificates: repository.NewCertificateRepository(db),
		Submissions:  repository.NewCodingSubmissionRepository(db),
		Storage:      newMemoryStorage(),
	}
	env.CourseService = NewCourseService(db, env.Courses, env.Lessons, env.Progress, env.Storage, cfg)
	env.LessonService = NewLessonService(db, env.Lessons, env.Courses, env.Progress)
	env.Scoring = NewScoringService(db, env.Lessons, env.Progress)
	return env
}

func (e *testEnv) createUser(t *testing.T, username string) *model.User {
	t.Helper()
	u := &model.User{Username: username, Email: username + "@example.com", Password: "x"}
	require.NoError(t, e.Users.Create(u))
	return u
}

func (e *testEnv) createCourse(t *testing.T, name string) *model.Course {
	t.Helper()
	view, err := e.CourseService.CreateCourse(&CourseInput{Name: name, Complexity: model.Junior})
	require.NoError(t, err)
	return &view.Course
}

func (e *testEnv) saveLesson(t *testing.T, in *LessonInput) *model.Lesson {
	t.Helper()
	_, err := e.LessonService.SaveLesson(in)
	require.NoError(t, err)
	lesson, err := e.Lessons.FindBySerial(in.CourseID, in.SerialNumber)
	require.NoError(t, err)
	lesson, err = e.Lessons.FindWithComponents(lesson.ID)
	require.NoError(t, err)
	return lesson
}

func (e *testEnv) component(t *testing.T, lesson *model.Lesson, kind model.ComponentKind) *model.Component {
	t.Helper()
	for _, c := range lesson.Components {
		if c.Kind == kind {
			comp, err := e.Lessons.FindComponent(c.ID)
			require.NoError(t, err)
			return comp
		}
	}
	t.Fatalf("lesson %d has no %s component", lesson.ID, kind)
	return nil
}

func rawJSON(v interface{}) json.RawMessage {
	b, _ := json.Marshal(v)
	return b
}

func textInput(serial, maxScore int) ComponentInput {
	return ComponentInput{
		Type:         model.KindText,
		MaxScore:     maxScore,
		SerialNumber: serial,
		Data:         rawJSON(map[string]string{"content": "read me"}),
	}
}

func videoInput(serial, maxScore int) ComponentInput {
	return ComponentInput{
		Type:         model.KindVideo,
		MaxScore:     maxScore,
		SerialNumber: serial,
		Data:         rawJSON(map[string]string{"videoUrl": "https://example.com/v.mp4"}),
	}
}

type opt struct {
	Option    string `json:"option"`
	IsCorrect bool   `json:"isCorrect"`
}

func choiceInput(kind model.ComponentKind, serial, maxScore int, options ...opt) ComponentInput {
	return ComponentInput{
		Type:         kind,
		MaxScore:     maxScore,
		SerialNumber: serial,
		Data: rawJSON(map[string]interface{}{
			"question": "pick",
			"options":  options,
		}),
	}
}

func codingInput(serial, maxScore int, tests ...map[string]string) ComponentInput {
	return ComponentInput{
		Type:         model.KindCoding,
		MaxScore:     maxScore,
		SerialNumber: serial,
		Data: rawJSON(map[string]interface{}{
			"question": "echo",
			"language": "python",
			"tests":    tests,
		}),
	}
}

func boolPtr(b bool) *bool { return &b }

func answerTrue() (*TaskAnswer, []byte) {
	return &TaskAnswer{Answer: boolPtr(true)}, []byte(`{"answer":true}`)
}

func answerFalse() (*TaskAnswer, []byte) {
	return &TaskAnswer{Answer: boolPtr(false)}, []byte(`{"answer":false}`)
}

// memoryStorage 存储的内存实现
type memoryStorage struct {
	mu    sync.Mutex
	files map[string][]byte
	err   error
}

func newMemoryStorage() *memoryStorage {
	return &memoryStorage{files: make(map[string][]byte)}
}

func (m *memoryStorage) Upload(_ context.Context, filename string, reader io.Reader, _ int64, _ string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	b, err := io.ReadAll(reader)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[filename] = b
	return m.GetURL(filename), nil
}

func (m *memoryStorage) Delete(_ context.Context, filename string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, filename)
	return nil
}

func (m *memoryStorage) GetURL(filename string) string {
	return "/uploads/" + filename
}

func (m *memoryStorage) keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.files))
	for k := range m.files {
		keys = append(keys, k)
	}
	return keys
}
