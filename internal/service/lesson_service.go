package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"ucode_backend/internal/model"
	"ucode_backend/internal/repository"
	"ucode_backend/internal/util"
	"ucode_backend/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ComponentInput 保存课时时的单个组件
// swagger:model ComponentInput
type ComponentInput struct {
	Type         model.ComponentKind `json:"type" binding:"required"`
	MaxScore     int                 `json:"maxScore" binding:"min=0,max=100"`
	SerialNumber int                 `json:"serialNumber" binding:"min=1"`
	Data         json.RawMessage     `json:"data" swaggertype:"object"`
}

// LessonInput 创建或替换课时，带 id 时整体替换原课时
// swagger:model LessonInput
type LessonInput struct {
	ID           *uint            `json:"id"`
	CourseID     uint             `json:"courseId" binding:"required"`
	Title        string           `json:"title" binding:"required,max=250"`
	MaxScore     int              `json:"maxScore" binding:"min=0,max=100"`
	SerialNumber int              `json:"serialNumber" binding:"min=1"`
	Material     string           `json:"material" binding:"max=255"`
	Components   []ComponentInput `json:"components" binding:"dive"`
}

// ComponentView 组件及当前用户在该组件上的得分
// swagger:model ComponentView
type ComponentView struct {
	ID           uint                `json:"id"`
	LessonID     uint                `json:"lessonId"`
	Type         model.ComponentKind `json:"type"`
	MaxScore     int                 `json:"maxScore"`
	SerialNumber int                 `json:"serialNumber"`
	Data         interface{}         `json:"data"`
	UserScore    *int                `json:"userScore,omitempty"`
	IsCorrect    *bool               `json:"isCorrect,omitempty"`
}

// LessonView 课时详情
// swagger:model LessonView
type LessonView struct {
	ID           uint              `json:"id"`
	CourseID     uint              `json:"courseId"`
	Title        string            `json:"title"`
	MaxScore     int               `json:"maxScore"`
	SerialNumber int               `json:"serialNumber"`
	Material     string            `json:"material,omitempty"`
	CreatedAt    time.Time         `json:"createdAt"`
	Components   []ComponentView   `json:"components"`
	UserLesson   *model.UserLesson `json:"userLesson"`
}

type LessonService struct {
	DB           *gorm.DB
	LessonRepo   *repository.LessonRepository
	CourseRepo   *repository.CourseRepository
	ProgressRepo *repository.ProgressRepository
}

func NewLessonService(db *gorm.DB, lessonRepo *repository.LessonRepository, courseRepo *repository.CourseRepository, progressRepo *repository.ProgressRepository) *LessonService {
	return &LessonService{
		DB:           db,
		LessonRepo:   lessonRepo,
		CourseRepo:   courseRepo,
		ProgressRepo: progressRepo,
	}
}

func componentView(c *model.Component) ComponentView {
	v := ComponentView{
		ID:           c.ID,
		LessonID:     c.LessonID,
		Type:         c.Kind,
		MaxScore:     c.MaxScore,
		SerialNumber: c.SerialNumber,
	}
	body, err := c.Body()
	if err != nil || body == nil {
		// 内容缺失或损坏时按空对象返回
		if err != nil {
			logger.Log.Warn("Component payload is malformed", zap.Uint("component_id", c.ID), zap.Error(err))
		}
		v.Data = map[string]interface{}{}
	} else {
		v.Data = body
	}
	return v
}

func lessonView(l *model.Lesson) *LessonView {
	v := &LessonView{
		ID:           l.ID,
		CourseID:     l.CourseID,
		Title:        l.Title,
		MaxScore:     l.MaxScore,
		SerialNumber: l.SerialNumber,
		Material:     l.Material,
		CreatedAt:    l.CreatedAt,
		Components:   make([]ComponentView, 0, len(l.Components)),
	}
	for i := range l.Components {
		v.Components = append(v.Components, componentView(&l.Components[i]))
	}
	return v
}

// GetLesson 课时详情附带当前用户的课时和组件进度
func (s *LessonService) GetLesson(userID, lessonID uint) (*LessonView, error) {
	lesson, err := s.LessonRepo.FindWithComponents(lessonID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrLessonNotFound
		}
		return nil, err
	}

	view := lessonView(lesson)

	ul, err := s.ProgressRepo.FindUserLesson(userID, lessonID, false)
	switch {
	case err == nil:
		view.UserLesson = ul
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, err
	}

	ids := make([]uint, 0, len(lesson.Components))
	for _, c := range lesson.Components {
		ids = append(ids, c.ID)
	}
	userComponents, err := s.ProgressRepo.UserComponentsByComponents(userID, ids)
	if err != nil {
		return nil, err
	}
	for i := range view.Components {
		if uc, ok := userComponents[view.Components[i].ID]; ok {
			score, correct := uc.Score, uc.IsCorrect
			view.Components[i].UserScore = &score
			view.Components[i].IsCorrect = &correct
		}
	}
	return view, nil
}

func (s *LessonService) validate(in *LessonInput, replaceID uint) (*util.ValidationError, error) {
	verr := &util.ValidationError{}

	if _, err := s.CourseRepo.FindByID(in.CourseID); err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		verr.Add("courseId", "course does not exist")
	} else {
		taken, err := s.LessonRepo.SerialTaken(in.CourseID, in.SerialNumber, replaceID)
		if err != nil {
			return nil, err
		}
		if taken {
			verr.Add("serialNumber", fmt.Sprintf("lesson with serial number %d already exists in this course", in.SerialNumber))
		}
	}

	serials := make(map[int]int, len(in.Components))
	for i, c := range in.Components {
		prefix := fmt.Sprintf("components.%d", i)
		if !c.Type.Valid() {
			verr.Add(prefix+".type", fmt.Sprintf("unknown component type %q", c.Type))
			continue
		}
		if prev, dup := serials[c.SerialNumber]; dup {
			verr.Add(prefix+".serialNumber", fmt.Sprintf("duplicates serial number of components.%d", prev))
		} else {
			serials[c.SerialNumber] = i
		}
		validateComponentData(c.Type, c.Data, prefix+".data", verr)
	}

	if verr.Empty() {
		return nil, nil
	}
	return verr, nil
}

// SaveLesson 新建课时；带 id 且课时存在时删除原课时及其级联数据后以相同 id 重建
func (s *LessonService) SaveLesson(in *LessonInput) (*LessonView, error) {
	var existing *model.Lesson
	var replaceID uint
	if in.ID != nil && *in.ID != 0 {
		l, err := s.LessonRepo.FindByID(*in.ID)
		switch {
		case err == nil:
			existing = l
			replaceID = l.ID
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return nil, err
		}
	}

	verr, err := s.validate(in, replaceID)
	if err != nil {
		return nil, err
	}
	if verr != nil {
		return nil, verr
	}

	components := make([]model.Component, 0, len(in.Components))
	for _, c := range in.Components {
		comp, err := buildComponent(c)
		if err != nil {
			return nil, util.NewValidationError("components", err.Error())
		}
		components = append(components, comp)
	}

	lesson := &model.Lesson{
		CourseID:     in.CourseID,
		Title:        in.Title,
		MaxScore:     in.MaxScore,
		SerialNumber: in.SerialNumber,
		Material:     in.Material,
		Components:   components,
	}

	err = s.DB.Transaction(func(tx *gorm.DB) error {
		lessons := s.LessonRepo.WithTx(tx)
		if existing != nil {
			if err := revokeLessonCredit(s.ProgressRepo.WithTx(tx), existing, time.Now()); err != nil {
				return err
			}
			if err := lessons.DeleteCascade(existing.ID); err != nil {
				return err
			}
			lesson.ID = existing.ID
			lesson.CreatedAt = existing.CreatedAt
		}
		return lessons.Create(lesson)
	})
	if err != nil {
		return nil, err
	}

	logger.Log.Info("Lesson saved",
		zap.Uint("lesson_id", lesson.ID),
		zap.Uint("course_id", lesson.CourseID),
		zap.Bool("replaced", existing != nil),
		zap.Int("components", len(lesson.Components)),
	)
	return lessonView(lesson), nil
}

// DeleteLesson 删除课时并回滚已完成用户的课程进度
func (s *LessonService) DeleteLesson(lessonID uint) error {
	lesson, err := s.LessonRepo.FindByID(lessonID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return util.ErrLessonNotFound
		}
		return err
	}

	return s.DB.Transaction(func(tx *gorm.DB) error {
		if err := revokeLessonCredit(s.ProgressRepo.WithTx(tx), lesson, time.Now()); err != nil {
			return err
		}
		return s.LessonRepo.WithTx(tx).DeleteCascade(lesson.ID)
	})
}

// NextLesson 同一课程中顺序号大于 serial 的第一个课时，没有时返回 nil
func (s *LessonService) NextLesson(courseID uint, serial int) (*model.Lesson, error) {
	if _, err := s.CourseRepo.FindByID(courseID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrCourseNotFound
		}
		return nil, err
	}

	lesson, err := s.LessonRepo.FindNext(courseID, serial)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return lesson, nil
}
