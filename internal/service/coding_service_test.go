package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"ucode_backend/internal/model"
	"ucode_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedJudge 按 stdin 返回预设结果
type scriptedJudge struct {
	mu      sync.Mutex
	results map[string]*JudgeRun
	err     error
	stdins  []string
}

func (j *scriptedJudge) Run(_ context.Context, _, _, stdin string) (*JudgeRun, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.stdins = append(j.stdins, stdin)
	if j.err != nil {
		return nil, j.err
	}
	if r, ok := j.results[stdin]; ok {
		return r, nil
	}
	return &JudgeRun{}, nil
}

// recordingQueue 只记录投递，由测试手动触发判题
type recordingQueue struct {
	ids []uint
	err error
}

func (q *recordingQueue) EnqueueJudge(_ context.Context, id uint) error {
	if q.err != nil {
		return q.err
	}
	q.ids = append(q.ids, id)
	return nil
}

type codingFixture struct {
	env     *testEnv
	coding  *CodingService
	judge   *scriptedJudge
	queue   *recordingQueue
	user    *model.User
	lesson  *model.Lesson
	problem *model.Component
}

func newCodingFixture(t *testing.T) *codingFixture {
	env := newTestEnv(t)
	judge := &scriptedJudge{results: map[string]*JudgeRun{}}
	queue := &recordingQueue{}
	coding := NewCodingService(env.Submissions, env.Lessons, env.Progress, env.Scoring, judge)
	coding.SetQueue(queue)

	user := env.createUser(t, "alice")
	course := env.createCourse(t, "Python")
	lesson := env.saveLesson(t, &LessonInput{
		CourseID: course.ID, Title: "Echo", MaxScore: 100, SerialNumber: 1,
		Components: []ComponentInput{
			textInput(1, 20),
			codingInput(2, 60,
				map[string]string{"input": "1", "output": "one"},
				map[string]string{"input": "2", "output": "two"},
			),
		},
	})
	return &codingFixture{
		env:     env,
		coding:  coding,
		judge:   judge,
		queue:   queue,
		user:    user,
		lesson:  lesson,
		problem: env.component(t, lesson, model.KindCoding),
	}
}

func (f *codingFixture) start(t *testing.T) {
	t.Helper()
	_, err := f.env.Scoring.StartLesson(context.Background(), f.user.ID, f.lesson.ID)
	require.NoError(t, err)
}

func (f *codingFixture) submitAndJudge(t *testing.T) *model.CodingSubmission {
	t.Helper()
	ctx := context.Background()
	sub, err := f.coding.Submit(ctx, f.user.ID, f.problem, "print(input())")
	require.NoError(t, err)
	require.NoError(t, f.coding.ProcessSubmission(ctx, sub.ID))
	judged, err := f.env.Submissions.FindByID(sub.ID)
	require.NoError(t, err)
	return judged
}

func (f *codingFixture) lessonScore(t *testing.T) int {
	t.Helper()
	ul, err := f.env.Progress.FindUserLesson(f.user.ID, f.lesson.ID, false)
	require.NoError(t, err)
	return ul.Score
}

func TestSubmit_Validation(t *testing.T) {
	f := newCodingFixture(t)
	ctx := context.Background()

	_, err := f.coding.Submit(ctx, f.user.ID, f.problem, "   ")
	assert.ErrorIs(t, err, util.ErrValidation)

	_, err = f.coding.Submit(ctx, f.user.ID, f.problem, "print(1)")
	assert.ErrorIs(t, err, util.ErrLessonNotStarted)

	text := f.env.component(t, f.lesson, model.KindText)
	_, err = f.coding.Submit(ctx, f.user.ID, text, "print(1)")
	assert.ErrorIs(t, err, util.ErrComponentNotGraded)

	foreign := *f.problem
	foreign.Payload = []byte(`{"question":"q","language":"cobol"}`)
	_, err = f.coding.Submit(ctx, f.user.ID, &foreign, "print(1)")
	assert.ErrorIs(t, err, util.ErrUnsupportedLanguage)

	assert.Empty(t, f.queue.ids)
}

func TestSubmit_EnqueuesPending(t *testing.T) {
	f := newCodingFixture(t)
	f.start(t)

	sub, err := f.coding.Submit(context.Background(), f.user.ID, f.problem, "print(input())")
	require.NoError(t, err)
	assert.Equal(t, model.SubmissionPending, sub.Status)
	assert.Equal(t, "python", sub.Language)
	assert.Equal(t, 2, sub.TotalTests)
	assert.Equal(t, []uint{sub.ID}, f.queue.ids)
}

func TestSubmit_QueueFailure(t *testing.T) {
	f := newCodingFixture(t)
	f.start(t)
	f.queue.err = errors.New("redis down")

	_, err := f.coding.Submit(context.Background(), f.user.ID, f.problem, "print(input())")
	assert.ErrorIs(t, err, util.ErrJudgeUnavailable)

	var sub model.CodingSubmission
	require.NoError(t, f.env.DB.Last(&sub).Error)
	assert.Equal(t, model.SubmissionError, sub.Status)
	assert.NotNil(t, sub.FinishedAt)
}

func TestProcessSubmission_Passed(t *testing.T) {
	f := newCodingFixture(t)
	f.start(t)
	f.judge.results["1\n"] = &JudgeRun{Stdout: "one\n"}
	f.judge.results["2\n"] = &JudgeRun{Stdout: "two\n"}

	sub := f.submitAndJudge(t)
	assert.Equal(t, model.SubmissionPassed, sub.Status)
	assert.Equal(t, 2, sub.PassedTests)
	assert.NotNil(t, sub.FinishedAt)
	assert.Equal(t, 80, f.lessonScore(t))

	ucomp, err := f.env.Progress.FindUserComponent(f.user.ID, f.problem.ID, false)
	require.NoError(t, err)
	assert.True(t, ucomp.IsCorrect)
	assert.Equal(t, 60, ucomp.Score)

	view, err := f.coding.GetSubmission(f.user.ID, sub.ID)
	require.NoError(t, err)
	assert.True(t, view.Finished)
}

func TestProcessSubmission_StopsAtFirstFailure(t *testing.T) {
	f := newCodingFixture(t)
	f.start(t)
	f.judge.results["1\n"] = &JudgeRun{Stdout: "uno\n"}

	sub := f.submitAndJudge(t)
	assert.Equal(t, model.SubmissionFailed, sub.Status)
	assert.Equal(t, 0, sub.PassedTests)
	assert.Equal(t, []string{"1\n"}, f.judge.stdins)
	assert.Equal(t, 20, f.lessonScore(t))
}

func TestProcessSubmission_CompileError(t *testing.T) {
	f := newCodingFixture(t)
	f.start(t)
	f.judge.results["1\n"] = &JudgeRun{Stdout: "one\n"}
	f.judge.results["2\n"] = &JudgeRun{CompileOutput: "SyntaxError"}

	sub := f.submitAndJudge(t)
	assert.Equal(t, model.SubmissionFailed, sub.Status)
	assert.Equal(t, 1, sub.PassedTests)
	assert.Equal(t, "SyntaxError", sub.Stderr)
}

func TestProcessSubmission_JudgeErrorKeepsScore(t *testing.T) {
	f := newCodingFixture(t)
	f.start(t)
	f.judge.results["1\n"] = &JudgeRun{Stdout: "one\n"}
	f.judge.results["2\n"] = &JudgeRun{Stdout: "two\n"}
	f.submitAndJudge(t)
	require.Equal(t, 80, f.lessonScore(t))

	f.judge.err = errors.New("judge0 returned 503")
	sub := f.submitAndJudge(t)
	assert.Equal(t, model.SubmissionError, sub.Status)
	assert.Contains(t, sub.Stderr, "503")
	assert.Equal(t, 80, f.lessonScore(t))
}

func TestProcessSubmission_RunsOnce(t *testing.T) {
	f := newCodingFixture(t)
	f.start(t)
	f.judge.results["1\n"] = &JudgeRun{Stdout: "one\n"}
	f.judge.results["2\n"] = &JudgeRun{Stdout: "two\n"}

	sub := f.submitAndJudge(t)
	require.NoError(t, f.coding.ProcessSubmission(context.Background(), sub.ID))
	assert.Len(t, f.judge.stdins, 2)
}

func TestGetSubmission_OnlyOwner(t *testing.T) {
	f := newCodingFixture(t)
	f.start(t)
	sub, err := f.coding.Submit(context.Background(), f.user.ID, f.problem, "print(input())")
	require.NoError(t, err)

	other := f.env.createUser(t, "bob")
	_, err = f.coding.GetSubmission(other.ID, sub.ID)
	assert.ErrorIs(t, err, util.ErrSubmissionNotFound)

	view, err := f.coding.GetSubmission(f.user.ID, sub.ID)
	require.NoError(t, err)
	assert.False(t, view.Finished)
}

func TestOutputMatching(t *testing.T) {
	assert.Equal(t, "", JudgeStdin(""))
	assert.Equal(t, "5\n", JudgeStdin("5"))
	assert.True(t, OutputMatches("ok\n", "ok"))
	assert.False(t, OutputMatches("ok", "ok"))
	assert.False(t, OutputMatches("ok\n\n", "ok"))
}
