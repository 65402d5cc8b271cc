package service

import (
	"context"
	"errors"
	"time"

	"ucode_backend/internal/model"
	"ucode_backend/internal/repository"
	"ucode_backend/internal/util"
	"ucode_backend/pkg/logger"
	"ucode_backend/pkg/monitoring"
	"ucode_backend/pkg/tracing"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// TaskCheckResult 判分后三级进度的最新状态
// swagger:model TaskCheckResult
type TaskCheckResult struct {
	IsCorrect       bool `json:"isCorrect"`
	Score           int  `json:"score"`
	LessonScore     int  `json:"lessonScore"`
	LessonCompleted bool `json:"lessonCompleted"`
	CourseProgress  int  `json:"courseProgress"`
	CourseCompleted bool `json:"courseCompleted"`
}

// LessonStartResult 开始课时的结果
// swagger:model LessonStartResult
type LessonStartResult struct {
	AlreadyStarted  bool             `json:"alreadyStarted"`
	UserLesson      model.UserLesson `json:"userLesson"`
	CourseProgress  int              `json:"courseProgress"`
	CourseCompleted bool             `json:"courseCompleted"`
}

// ScoringService 组件 -> 课时 -> 课程的进度引擎，课程进度只在这里修改
type ScoringService struct {
	DB           *gorm.DB
	LessonRepo   *repository.LessonRepository
	ProgressRepo *repository.ProgressRepository
	now          func() time.Time
}

func NewScoringService(db *gorm.DB, lessonRepo *repository.LessonRepository, progressRepo *repository.ProgressRepository) *ScoringService {
	return &ScoringService{
		DB:           db,
		LessonRepo:   lessonRepo,
		ProgressRepo: progressRepo,
		now:          time.Now,
	}
}

func (s *ScoringService) FindComponent(componentID uint) (*model.Component, error) {
	c, err := s.LessonRepo.FindComponent(componentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrComponentNotFound
		}
		return nil, err
	}
	return c, nil
}

// StartLesson 幂等：已开始直接返回原记录。视频和文本组件在开始时即计分
func (s *ScoringService) StartLesson(ctx context.Context, userID, lessonID uint) (*LessonStartResult, error) {
	_, span := tracing.StartSpan(ctx, "scoring.StartLesson",
		attribute.Int("user.id", int(userID)),
		attribute.Int("lesson.id", int(lessonID)),
	)

	lesson, err := s.LessonRepo.FindWithComponents(lessonID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			err = util.ErrLessonNotFound
		}
		tracing.EndSpan(span, err)
		return nil, err
	}

	result := &LessonStartResult{}
	var wasCompleted, isCompleted bool

	err = s.DB.Transaction(func(tx *gorm.DB) error {
		progress := s.ProgressRepo.WithTx(tx)

		if _, err := progress.EnsureUserCourse(userID, lesson.CourseID); err != nil {
			return err
		}
		uc, err := progress.FindUserCourse(userID, lesson.CourseID, true)
		if err != nil {
			return err
		}

		ul, err := progress.FindUserLesson(userID, lessonID, true)
		if err == nil {
			result.AlreadyStarted = true
			result.UserLesson = *ul
			result.CourseProgress = uc.Progress
			result.CourseCompleted = uc.IsCompleted
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		ul = &model.UserLesson{
			UserID:   userID,
			LessonID: lessonID,
			Score:    lesson.AutoCreditedScore(),
		}
		ul.IsCompleted = ul.Score >= model.LessonPassScore
		if err := progress.CreateUserLesson(ul); err != nil {
			return err
		}

		isCompleted = ul.IsCompleted
		if applyLessonTransition(uc, lesson.MaxScore, wasCompleted, isCompleted, s.now()) {
			if err := progress.SaveUserCourse(uc); err != nil {
				return err
			}
		}

		result.UserLesson = *ul
		result.CourseProgress = uc.Progress
		result.CourseCompleted = uc.IsCompleted
		return nil
	})
	tracing.EndSpan(span, err)
	if err != nil {
		return nil, err
	}

	if !result.AlreadyStarted {
		monitoring.ObserveLessonTransition(wasCompleted, isCompleted)
		logger.Log.Debug("Lesson started",
			zap.Uint("user_id", userID),
			zap.Uint("lesson_id", lessonID),
			zap.Int("score", result.UserLesson.Score),
		)
	}
	return result, nil
}

// CheckTask 即时判分（单选、多选）
func (s *ScoringService) CheckTask(ctx context.Context, userID uint, component *model.Component, answer *TaskAnswer, rawAnswer []byte) (*TaskCheckResult, error) {
	if !component.Kind.Graded() {
		return nil, util.ErrComponentNotGraded
	}

	correct, err := Grade(component, answer)
	if err != nil {
		return nil, err
	}

	return s.ApplyResult(ctx, userID, component, correct, rawAnswer)
}

// ApplyResult 把一次判分结果写入三级进度。
// 同一事务内依次锁 user_courses、user_lessons、user_components，课时分数只替换当前组件这一项
func (s *ScoringService) ApplyResult(ctx context.Context, userID uint, component *model.Component, correct bool, rawAnswer []byte) (*TaskCheckResult, error) {
	_, span := tracing.StartSpan(ctx, "scoring.ApplyResult",
		attribute.Int("user.id", int(userID)),
		attribute.Int("component.id", int(component.ID)),
		attribute.String("component.type", string(component.Kind)),
		attribute.Bool("correct", correct),
	)

	result := &TaskCheckResult{IsCorrect: correct}
	var wasCompleted, isCompleted bool

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		progress := s.ProgressRepo.WithTx(tx)

		lesson, err := s.LessonRepo.WithTx(tx).FindByID(component.LessonID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return util.ErrComponentNotFound
			}
			return err
		}

		uc, ucErr := progress.FindUserCourse(userID, lesson.CourseID, true)
		if ucErr != nil && !errors.Is(ucErr, gorm.ErrRecordNotFound) {
			return ucErr
		}
		ul, err := progress.FindUserLesson(userID, lesson.ID, true)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return util.ErrLessonNotStarted
			}
			return err
		}
		if ucErr != nil {
			return util.ErrCourseNotJoined
		}

		ucomp, err := progress.FindUserComponent(userID, component.ID, true)
		if err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
			ucomp = &model.UserComponent{UserID: userID, ComponentID: component.ID}
		}

		previous := ucomp.Score
		newScore := 0
		if correct {
			newScore = component.MaxScore
		}

		ucomp.Score = newScore
		ucomp.IsCorrect = correct
		if len(rawAnswer) > 0 {
			ucomp.Answer = datatypes.JSON(rawAnswer)
		}
		if err := progress.SaveUserComponent(ucomp); err != nil {
			return err
		}

		wasCompleted = ul.IsCompleted
		ul.Score = ul.Score - previous + newScore
		ul.IsCompleted = ul.Score >= model.LessonPassScore
		isCompleted = ul.IsCompleted
		if previous != newScore || wasCompleted != isCompleted {
			if err := progress.SaveUserLesson(ul); err != nil {
				return err
			}
		}

		if applyLessonTransition(uc, lesson.MaxScore, wasCompleted, isCompleted, s.now()) {
			if err := progress.SaveUserCourse(uc); err != nil {
				return err
			}
		}

		result.Score = newScore
		result.LessonScore = ul.Score
		result.LessonCompleted = ul.IsCompleted
		result.CourseProgress = uc.Progress
		result.CourseCompleted = uc.IsCompleted
		return nil
	})
	tracing.EndSpan(span, err)
	if err != nil {
		return nil, err
	}

	monitoring.ObserveTaskCheck(string(component.Kind), correct)
	monitoring.ObserveLessonTransition(wasCompleted, isCompleted)
	return result, nil
}

// applyLessonTransition 课时完成状态变化时调整课程进度，返回课程记录是否被修改
func applyLessonTransition(uc *model.UserCourse, lessonMaxScore int, wasCompleted, isCompleted bool, now time.Time) bool {
	switch {
	case !wasCompleted && isCompleted:
		uc.Progress += lessonMaxScore
	case wasCompleted && !isCompleted:
		uc.Progress -= lessonMaxScore
		if uc.Progress < 0 {
			uc.Progress = 0
		}
	default:
		return false
	}

	completed := uc.Progress >= model.CourseCompleteProgress
	switch {
	case completed && !uc.IsCompleted:
		uc.CompletedAt = &now
	case !completed:
		uc.CompletedAt = nil
	}
	uc.IsCompleted = completed
	return true
}

// revokeLessonCredit 课时被替换或删除前，从已完成该课时的用户的课程进度中扣除其满分
func revokeLessonCredit(progress *repository.ProgressRepository, lesson *model.Lesson, now time.Time) error {
	completed, err := progress.CompletedUserLessons(lesson.ID)
	if err != nil {
		return err
	}

	for _, ul := range completed {
		uc, err := progress.FindUserCourse(ul.UserID, lesson.CourseID, true)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				continue
			}
			return err
		}
		if applyLessonTransition(uc, lesson.MaxScore, true, false, now) {
			if err := progress.SaveUserCourse(uc); err != nil {
				return err
			}
		}
	}
	return nil
}
