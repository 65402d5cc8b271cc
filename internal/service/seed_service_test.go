package service

import (
	"strings"
	"testing"

	"ucode_backend/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCatalog = `
courses:
  - name: Go Basics
    complexity: junior
    lessons:
      - title: Syntax
        maxScore: 60
        serialNumber: 1
        components:
          - type: text
            maxScore: 50
            serialNumber: 1
            data:
              content: hello
          - type: mcq
            maxScore: 50
            serialNumber: 2
            data:
              question: Which keyword declares a function?
              options:
                - option: func
                  isCorrect: true
                - option: def
      - title: Types
        maxScore: 40
        serialNumber: 2
`

func newSeedService(env *testEnv) *SeedService {
	return NewSeedService(env.CourseService, env.LessonService)
}

func TestParseCatalog(t *testing.T) {
	catalog, err := ParseCatalog(strings.NewReader(sampleCatalog))
	require.NoError(t, err)
	require.Len(t, catalog.Courses, 1)
	require.Len(t, catalog.Courses[0].Lessons, 2)
	assert.Equal(t, "mcq", catalog.Courses[0].Lessons[0].Components[1].Type)

	empty, err := ParseCatalog(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, empty.Courses)

	_, err = ParseCatalog(strings.NewReader("courses:\n  - name: x\n    level: junior\n"))
	assert.Error(t, err)
}

func TestSeed_Idempotent(t *testing.T) {
	env := newTestEnv(t)
	seeder := newSeedService(env)
	catalog, err := ParseCatalog(strings.NewReader(sampleCatalog))
	require.NoError(t, err)

	summary, err := seeder.Seed(catalog)
	require.NoError(t, err)
	assert.Equal(t, &SeedSummary{CoursesCreated: 1, LessonsSaved: 2}, summary)

	course, err := env.Courses.FindByName("Go Basics")
	require.NoError(t, err)
	first, err := env.Lessons.FindBySerial(course.ID, 1)
	require.NoError(t, err)

	summary, err = seeder.Seed(catalog)
	require.NoError(t, err)
	assert.Equal(t, &SeedSummary{CoursesUpdated: 1, LessonsSaved: 2}, summary)

	var courses, lessons, components int64
	require.NoError(t, env.DB.Model(&model.Course{}).Count(&courses).Error)
	require.NoError(t, env.DB.Model(&model.Lesson{}).Count(&lessons).Error)
	require.NoError(t, env.DB.Model(&model.Component{}).Count(&components).Error)
	assert.EqualValues(t, 1, courses)
	assert.EqualValues(t, 2, lessons)
	assert.EqualValues(t, 2, components)

	again, err := env.Lessons.FindBySerial(course.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)
}

func TestSeed_ReportsPosition(t *testing.T) {
	env := newTestEnv(t)
	seeder := newSeedService(env)

	_, err := seeder.Seed(&CatalogFile{Courses: []CatalogCourse{{Name: "x", Complexity: "expert"}}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "courses.0")

	_, err = seeder.Seed(&CatalogFile{Courses: []CatalogCourse{{
		Name: "Go", Complexity: "junior",
		Lessons: []CatalogLesson{{
			Title: "Bad", SerialNumber: 1,
			Components: []CatalogComponent{{Type: "video", SerialNumber: 1}},
		}},
	}}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "courses.0.lessons.0")
	assert.Contains(t, err.Error(), "components.0.data.videoUrl")
}

func TestSeedFile_Example(t *testing.T) {
	env := newTestEnv(t)
	summary, err := newSeedService(env).SeedFile("../../configs/catalog.example.yaml")
	require.NoError(t, err)
	assert.Positive(t, summary.CoursesCreated)
	assert.Positive(t, summary.LessonsSaved)
}
