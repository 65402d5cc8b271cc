package service

import (
	"context"
	"errors"
	"testing"

	"ucode_backend/internal/model"
	"ucode_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validationFields(t *testing.T, err error) map[string]string {
	t.Helper()
	var verr *util.ValidationError
	require.True(t, errors.As(err, &verr), "expected validation error, got %v", err)
	return verr.Fields
}

func TestSaveLesson_CreatesOrderedComponents(t *testing.T) {
	env := newTestEnv(t)
	course := env.createCourse(t, "Go")

	view, err := env.LessonService.SaveLesson(&LessonInput{
		CourseID: course.ID, Title: "Intro", MaxScore: 30, SerialNumber: 1, Material: "intro.pdf",
		Components: []ComponentInput{
			choiceInput(model.KindMOQ, 3, 10, opt{"a", true}, opt{"b", false}),
			textInput(1, 5),
			codingInput(2, 20, map[string]string{"input": "", "output": "hi"}),
		},
	})
	require.NoError(t, err)
	assert.NotZero(t, view.ID)
	assert.Len(t, view.Components, 3)

	lesson, err := env.Lessons.FindWithComponents(view.ID)
	require.NoError(t, err)
	require.Len(t, lesson.Components, 3)
	assert.Equal(t, model.KindText, lesson.Components[0].Kind)
	assert.Equal(t, model.KindCoding, lesson.Components[1].Kind)
	assert.Equal(t, model.KindMOQ, lesson.Components[2].Kind)

	moq := lesson.Components[2]
	require.Len(t, moq.Options, 2)
	assert.Equal(t, "a", moq.Options[0].Option)
	assert.True(t, moq.Options[0].IsCorrect)
	assert.Equal(t, 1, moq.CorrectOptionCount())

	coding := lesson.Components[1]
	require.Len(t, coding.Tests, 1)
	assert.Equal(t, "hi", coding.Tests[0].Output)
	assert.Equal(t, "python", coding.Language())
}

func TestSaveLesson_Validation(t *testing.T) {
	env := newTestEnv(t)
	course := env.createCourse(t, "Go")
	env.saveLesson(t, &LessonInput{CourseID: course.ID, Title: "Taken", MaxScore: 10, SerialNumber: 1})

	cases := []struct {
		name  string
		in    *LessonInput
		field string
	}{
		{
			name:  "unknown course",
			in:    &LessonInput{CourseID: 999, Title: "x", SerialNumber: 1},
			field: "courseId",
		},
		{
			name:  "serial taken",
			in:    &LessonInput{CourseID: course.ID, Title: "x", SerialNumber: 1},
			field: "serialNumber",
		},
		{
			name: "unknown component type",
			in: &LessonInput{CourseID: course.ID, Title: "x", SerialNumber: 2, Components: []ComponentInput{
				{Type: "audio", SerialNumber: 1, Data: rawJSON(map[string]string{})},
			}},
			field: "components.0.type",
		},
		{
			name: "duplicate component serial",
			in: &LessonInput{CourseID: course.ID, Title: "x", SerialNumber: 2, Components: []ComponentInput{
				textInput(1, 5), textInput(1, 5),
			}},
			field: "components.1.serialNumber",
		},
		{
			name: "choice without options",
			in: &LessonInput{CourseID: course.ID, Title: "x", SerialNumber: 2, Components: []ComponentInput{
				textInput(1, 5),
				{Type: model.KindMCQ, SerialNumber: 2, MaxScore: 5, Data: rawJSON(map[string]string{"question": "q"})},
			}},
			field: "components.1.data.options",
		},
		{
			name: "video without url",
			in: &LessonInput{CourseID: course.ID, Title: "x", SerialNumber: 2, Components: []ComponentInput{
				{Type: model.KindVideo, SerialNumber: 1, Data: rawJSON(map[string]string{})},
			}},
			field: "components.0.data.videoUrl",
		},
		{
			name: "coding with unsupported language",
			in: &LessonInput{CourseID: course.ID, Title: "x", SerialNumber: 2, Components: []ComponentInput{
				{Type: model.KindCoding, SerialNumber: 1, Data: rawJSON(map[string]interface{}{
					"question": "q", "language": "cobol", "tests": []map[string]string{{"output": "1"}},
				})},
			}},
			field: "components.0.data.language",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := env.LessonService.SaveLesson(tc.in)
			require.Error(t, err)
			assert.ErrorIs(t, err, util.ErrValidation)
			assert.Contains(t, validationFields(t, err), tc.field)
		})
	}

	var count int64
	require.NoError(t, env.DB.Model(&model.Lesson{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestSaveLesson_ReplaceRevokesCredit(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.createUser(t, "alice")
	course := env.createCourse(t, "Go")
	lesson := env.saveLesson(t, &LessonInput{
		CourseID: course.ID, Title: "Old", MaxScore: 40, SerialNumber: 1,
		Components: []ComponentInput{textInput(1, 80)},
	})
	_, err := env.Scoring.StartLesson(ctx, user.ID, lesson.ID)
	require.NoError(t, err)

	uc, err := env.Progress.FindUserCourse(user.ID, course.ID, false)
	require.NoError(t, err)
	require.Equal(t, 40, uc.Progress)

	id := lesson.ID
	view, err := env.LessonService.SaveLesson(&LessonInput{
		ID: &id, CourseID: course.ID, Title: "New", MaxScore: 40, SerialNumber: 1,
		Components: []ComponentInput{textInput(1, 10)},
	})
	require.NoError(t, err)
	assert.Equal(t, lesson.ID, view.ID)
	assert.Equal(t, "New", view.Title)

	uc, err = env.Progress.FindUserCourse(user.ID, course.ID, false)
	require.NoError(t, err)
	assert.Equal(t, 0, uc.Progress)

	_, err = env.Progress.FindUserLesson(user.ID, lesson.ID, false)
	assert.Error(t, err)

	// 重新开始按新内容计分
	res, err := env.Scoring.StartLesson(ctx, user.ID, lesson.ID)
	require.NoError(t, err)
	assert.False(t, res.AlreadyStarted)
	assert.Equal(t, 10, res.UserLesson.Score)
}

func TestSaveLesson_UnknownIDCreates(t *testing.T) {
	env := newTestEnv(t)
	course := env.createCourse(t, "Go")

	missing := uint(4242)
	view, err := env.LessonService.SaveLesson(&LessonInput{ID: &missing, CourseID: course.ID, Title: "Fresh", MaxScore: 10, SerialNumber: 1})
	require.NoError(t, err)
	assert.NotZero(t, view.ID)
}

func TestDeleteLesson(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.createUser(t, "alice")
	course := env.createCourse(t, "Go")
	lesson := env.saveLesson(t, &LessonInput{
		CourseID: course.ID, Title: "Only", MaxScore: 100, SerialNumber: 1,
		Components: []ComponentInput{textInput(1, 80)},
	})
	res, err := env.Scoring.StartLesson(ctx, user.ID, lesson.ID)
	require.NoError(t, err)
	require.True(t, res.CourseCompleted)

	require.NoError(t, env.LessonService.DeleteLesson(lesson.ID))

	uc, err := env.Progress.FindUserCourse(user.ID, course.ID, false)
	require.NoError(t, err)
	assert.Equal(t, 0, uc.Progress)
	assert.False(t, uc.IsCompleted)
	assert.Nil(t, uc.CompletedAt)

	_, err = env.LessonService.GetLesson(user.ID, lesson.ID)
	assert.ErrorIs(t, err, util.ErrLessonNotFound)
	assert.ErrorIs(t, env.LessonService.DeleteLesson(lesson.ID), util.ErrLessonNotFound)
}

func TestGetLesson_WithUserProgress(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.createUser(t, "alice")
	course := env.createCourse(t, "Go")
	lesson := env.saveLesson(t, &LessonInput{
		CourseID: course.ID, Title: "Quiz", MaxScore: 50, SerialNumber: 1,
		Components: []ComponentInput{videoInput(1, 10), choiceInput(model.KindMCQ, 2, 20, opt{"a", true})},
	})

	view, err := env.LessonService.GetLesson(user.ID, lesson.ID)
	require.NoError(t, err)
	assert.Nil(t, view.UserLesson)
	require.Len(t, view.Components, 2)
	assert.Nil(t, view.Components[1].UserScore)

	video, ok := view.Components[0].Data.(model.VideoBody)
	require.True(t, ok)
	assert.Equal(t, "https://example.com/v.mp4", video.VideoURL)

	_, err = env.Scoring.StartLesson(ctx, user.ID, lesson.ID)
	require.NoError(t, err)
	a, raw := answerTrue()
	_, err = env.Scoring.CheckTask(ctx, user.ID, env.component(t, lesson, model.KindMCQ), a, raw)
	require.NoError(t, err)

	view, err = env.LessonService.GetLesson(user.ID, lesson.ID)
	require.NoError(t, err)
	require.NotNil(t, view.UserLesson)
	assert.Equal(t, 30, view.UserLesson.Score)
	require.NotNil(t, view.Components[1].UserScore)
	assert.Equal(t, 20, *view.Components[1].UserScore)
	assert.True(t, *view.Components[1].IsCorrect)

	choice, ok := view.Components[1].Data.(model.ChoiceBody)
	require.True(t, ok)
	assert.Equal(t, "pick", choice.Question)
	require.Len(t, choice.Options, 1)
}

func TestNextLesson(t *testing.T) {
	env := newTestEnv(t)
	course := env.createCourse(t, "Go")
	env.saveLesson(t, &LessonInput{CourseID: course.ID, Title: "One", MaxScore: 10, SerialNumber: 1})
	env.saveLesson(t, &LessonInput{CourseID: course.ID, Title: "Five", MaxScore: 10, SerialNumber: 5})

	next, err := env.LessonService.NextLesson(course.ID, 1)
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, "Five", next.Title)

	next, err = env.LessonService.NextLesson(course.ID, 5)
	require.NoError(t, err)
	assert.Nil(t, next)

	_, err = env.LessonService.NextLesson(999, 1)
	assert.ErrorIs(t, err, util.ErrCourseNotFound)
}
