package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"ucode_backend/internal/model"
	"ucode_backend/internal/repository"
	"ucode_backend/internal/util"
	"ucode_backend/pkg/logger"
	"ucode_backend/pkg/monitoring"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// CodingQueue 投递判题任务
type CodingQueue interface {
	EnqueueJudge(ctx context.Context, submissionID uint) error
}

// CodingSubmissionView 提交记录及判分后的进度
// swagger:model CodingSubmissionView
type CodingSubmissionView struct {
	model.CodingSubmission
	Finished bool `json:"finished"`
}

type CodingService struct {
	SubmissionRepo *repository.CodingSubmissionRepository
	LessonRepo     *repository.LessonRepository
	ProgressRepo   *repository.ProgressRepository
	Scoring        *ScoringService
	Judge          CodeJudge
	Queue          CodingQueue
}

func NewCodingService(submissionRepo *repository.CodingSubmissionRepository, lessonRepo *repository.LessonRepository, progressRepo *repository.ProgressRepository, scoring *ScoringService, judge CodeJudge) *CodingService {
	return &CodingService{
		SubmissionRepo: submissionRepo,
		LessonRepo:     lessonRepo,
		ProgressRepo:   progressRepo,
		Scoring:        scoring,
		Judge:          judge,
	}
}

// SetQueue 队列依赖判题处理函数，需在构造后注入
func (s *CodingService) SetQueue(q CodingQueue) {
	s.Queue = q
}

// Submit 记录提交并投递判题任务，判题结果稍后经 ScoringService 写入进度
func (s *CodingService) Submit(ctx context.Context, userID uint, component *model.Component, code string) (*model.CodingSubmission, error) {
	if component.Kind != model.KindCoding {
		return nil, util.ErrComponentNotGraded
	}
	if strings.TrimSpace(code) == "" {
		return nil, util.NewValidationError("code", "required")
	}

	language := component.Language()
	if _, ok := util.Judge0LanguageIDs[language]; !ok {
		return nil, util.ErrUnsupportedLanguage
	}

	// 提前校验前置条件，避免投递注定失败的任务
	lesson, err := s.LessonRepo.FindByID(component.LessonID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrComponentNotFound
		}
		return nil, err
	}
	if _, err := s.ProgressRepo.FindUserLesson(userID, lesson.ID, false); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrLessonNotStarted
		}
		return nil, err
	}
	if _, err := s.ProgressRepo.FindUserCourse(userID, lesson.CourseID, false); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrCourseNotJoined
		}
		return nil, err
	}

	sub := &model.CodingSubmission{
		UserID:      userID,
		ComponentID: component.ID,
		Language:    language,
		SourceCode:  code,
		Status:      model.SubmissionPending,
		TotalTests:  len(component.Tests),
	}
	if err := s.SubmissionRepo.Create(sub); err != nil {
		return nil, err
	}

	if s.Queue == nil {
		s.fail(sub, "judge queue is not configured")
		return nil, util.ErrJudgeUnavailable
	}
	if err := s.Queue.EnqueueJudge(ctx, sub.ID); err != nil {
		logger.Log.Error("Failed to enqueue judge task", zap.Uint("submission_id", sub.ID), zap.Error(err))
		s.fail(sub, "failed to enqueue judge task")
		return nil, util.ErrJudgeUnavailable
	}
	return sub, nil
}

func (s *CodingService) fail(sub *model.CodingSubmission, msg string) {
	now := time.Now()
	sub.Status = model.SubmissionError
	sub.Stderr = msg
	sub.FinishedAt = &now
	if err := s.SubmissionRepo.Save(sub); err != nil {
		logger.Log.Error("Failed to save submission", zap.Uint("submission_id", sub.ID), zap.Error(err))
	}
}

// GetSubmission 只能查看自己的提交
func (s *CodingService) GetSubmission(userID, id uint) (*CodingSubmissionView, error) {
	sub, err := s.SubmissionRepo.FindByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrSubmissionNotFound
		}
		return nil, err
	}
	if sub.UserID != userID {
		return nil, util.ErrSubmissionNotFound
	}
	return &CodingSubmissionView{CodingSubmission: *sub, Finished: sub.Status.Finished()}, nil
}

// ProcessSubmission 判题任务入口。依次运行测试用例，遇到第一个未通过的用例即停止。
// 判题服务本身出错时提交记为 error，不修改分数；程序运行出错或输出不符时判为错误答案
func (s *CodingService) ProcessSubmission(ctx context.Context, submissionID uint) error {
	claimed, err := s.SubmissionRepo.MarkRunning(submissionID)
	if err != nil {
		return err
	}
	if !claimed {
		logger.Log.Info("Submission already processed", zap.Uint("submission_id", submissionID))
		return nil
	}

	sub, err := s.SubmissionRepo.FindByID(submissionID)
	if err != nil {
		return err
	}

	component, err := s.LessonRepo.FindComponent(sub.ComponentID)
	if err != nil {
		// 组件在判题前被删除
		s.fail(sub, "component no longer exists")
		return nil
	}

	start := time.Now()
	status, passed, stderr := s.runTests(ctx, sub, component)
	monitoring.JudgeDuration.Observe(time.Since(start).Seconds())
	monitoring.CodingVerdicts.WithLabelValues(sub.Language, string(status)).Inc()

	now := time.Now()
	sub.Status = status
	sub.PassedTests = passed
	sub.TotalTests = len(component.Tests)
	sub.Stderr = stderr
	sub.FinishedAt = &now
	if err := s.SubmissionRepo.Save(sub); err != nil {
		return err
	}

	if status == model.SubmissionError {
		return nil
	}

	answer, _ := json.Marshal(map[string]interface{}{"submissionId": sub.ID})
	if _, err := s.Scoring.ApplyResult(ctx, sub.UserID, component, status == model.SubmissionPassed, answer); err != nil {
		logger.Log.Warn("Failed to apply coding result",
			zap.Uint("submission_id", sub.ID),
			zap.Uint("user_id", sub.UserID),
			zap.Error(err),
		)
		if errors.Is(err, util.ErrPrecondition) || errors.Is(err, util.ErrNotFound) {
			return nil
		}
		return err
	}

	logger.Log.Info("Coding submission judged",
		zap.Uint("submission_id", sub.ID),
		zap.String("status", string(status)),
		zap.Int("passed", passed),
		zap.Int("total", sub.TotalTests),
	)
	return nil
}

func (s *CodingService) runTests(ctx context.Context, sub *model.CodingSubmission, component *model.Component) (model.SubmissionStatus, int, string) {
	if len(component.Tests) == 0 {
		return model.SubmissionError, 0, "coding question has no tests"
	}

	passed := 0
	for _, test := range component.Tests {
		run, err := s.Judge.Run(ctx, sub.Language, sub.SourceCode, JudgeStdin(test.Input))
		if err != nil {
			logger.Log.Error("Judge run failed", zap.Uint("submission_id", sub.ID), zap.Error(err))
			return model.SubmissionError, passed, err.Error()
		}
		if run.CompileOutput != "" {
			return model.SubmissionFailed, passed, run.CompileOutput
		}
		if run.Stderr != "" {
			return model.SubmissionFailed, passed, run.Stderr
		}
		if !OutputMatches(run.Stdout, test.Output) {
			return model.SubmissionFailed, passed, ""
		}
		passed++
	}
	return model.SubmissionPassed, passed, ""
}
