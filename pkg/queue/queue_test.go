package queue

import (
	"context"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJudgeTaskRoundTrip(t *testing.T) {
	task, err := NewJudgeTask(42)
	require.NoError(t, err)
	assert.Equal(t, TypeJudgeSubmission, task.Type())

	id, err := ParseJudgeTask(task)
	require.NoError(t, err)
	assert.Equal(t, uint(42), id)
}

func TestParseJudgeTask_Invalid(t *testing.T) {
	_, err := ParseJudgeTask(asynq.NewTask(TypeJudgeSubmission, []byte("oops")))
	assert.Error(t, err)

	_, err = ParseJudgeTask(asynq.NewTask(TypeJudgeSubmission, []byte(`{}`)))
	assert.Error(t, err)
}

func TestServeMuxDispatchesToHandler(t *testing.T) {
	var got uint
	mux := NewServeMux(func(ctx context.Context, id uint) error {
		got = id
		return nil
	})

	task, err := NewJudgeTask(7)
	require.NoError(t, err)
	require.NoError(t, mux.ProcessTask(context.Background(), task))
	assert.Equal(t, uint(7), got)
}

func TestInlineDispatcher(t *testing.T) {
	done := make(chan uint, 1)
	d := &InlineDispatcher{Handler: func(ctx context.Context, id uint) error {
		done <- id
		return nil
	}}

	require.NoError(t, d.EnqueueJudge(context.Background(), 3))
	select {
	case id := <-done:
		assert.Equal(t, uint(3), id)
	case <-time.After(time.Second):
		t.Fatal("handler was not called")
	}
}
