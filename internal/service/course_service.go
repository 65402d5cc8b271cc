package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"ucode_backend/internal/config"
	"ucode_backend/internal/model"
	"ucode_backend/internal/repository"
	"ucode_backend/internal/util"
	"ucode_backend/pkg/logger"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// CourseInput 创建或更新课程
// swagger:model CourseInput
type CourseInput struct {
	Name        string           `json:"name" binding:"required,max=250"`
	Complexity  model.Complexity `json:"complexity" binding:"required,oneof=junior middle senior"`
	Description string           `json:"description"`
	BannerImage string           `json:"bannerImage" binding:"max=255"`
}

// TimeSinceCreation 月按 30 天、年按 365 天计
type TimeSinceCreation struct {
	Days   int `json:"days"`
	Months int `json:"months"`
	Years  int `json:"years"`
}

// CourseView 课程列表项
// swagger:model CourseView
type CourseView struct {
	model.Course
	TimeSinceCreation TimeSinceCreation `json:"timeSinceCreation"`
	// Enrolled 仅在登录访问课程列表时返回
	Enrolled *bool `json:"enrolled,omitempty"`
}

// LessonSummary 课程下的课时概要及当前用户进度
// swagger:model LessonSummary
type LessonSummary struct {
	ID           uint              `json:"id"`
	Title        string            `json:"title"`
	MaxScore     int               `json:"maxScore"`
	SerialNumber int               `json:"serialNumber"`
	Material     string            `json:"material,omitempty"`
	UserLesson   *model.UserLesson `json:"userLesson"`
}

// CourseDetail 课程详情
// swagger:model CourseDetail
type CourseDetail struct {
	CourseView
	Lessons    []LessonSummary   `json:"lessons"`
	UserCourse *model.UserCourse `json:"userCourse"`
}

// EnrolledCourses 已选课程
// swagger:model EnrolledCourses
type EnrolledCourses struct {
	CourseIDs []uint       `json:"courseIds"`
	Courses   []CourseView `json:"courses"`
}

type CourseService struct {
	DB           *gorm.DB
	CourseRepo   *repository.CourseRepository
	LessonRepo   *repository.LessonRepository
	ProgressRepo *repository.ProgressRepository
	Storage      StorageProvider
	Cfg          *config.Config
	now          func() time.Time
}

func NewCourseService(db *gorm.DB, courseRepo *repository.CourseRepository, lessonRepo *repository.LessonRepository, progressRepo *repository.ProgressRepository, storage StorageProvider, cfg *config.Config) *CourseService {
	return &CourseService{
		DB:           db,
		CourseRepo:   courseRepo,
		LessonRepo:   lessonRepo,
		ProgressRepo: progressRepo,
		Storage:      storage,
		Cfg:          cfg,
		now:          time.Now,
	}
}

func sinceCreation(created, now time.Time) TimeSinceCreation {
	days := int(now.Sub(created).Hours() / 24)
	if days < 0 {
		days = 0
	}
	return TimeSinceCreation{Days: days, Months: days / 30, Years: days / 365}
}

func (s *CourseService) view(c model.Course) CourseView {
	return CourseView{Course: c, TimeSinceCreation: sinceCreation(c.CreatedAt, s.now())}
}

func (s *CourseService) findCourse(id uint) (*model.Course, error) {
	course, err := s.CourseRepo.FindByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrCourseNotFound
		}
		return nil, err
	}
	return course, nil
}

// ListCourses 按创建时间倒序，userID 为 0 表示游客
func (s *CourseService) ListCourses(userID uint) ([]CourseView, error) {
	courses, err := s.CourseRepo.List()
	if err != nil {
		return nil, err
	}

	var enrolled map[uint]bool
	if userID != 0 {
		ids, err := s.ProgressRepo.EnrolledCourseIDs(userID)
		if err != nil {
			return nil, err
		}
		enrolled = make(map[uint]bool, len(ids))
		for _, id := range ids {
			enrolled[id] = true
		}
	}

	views := make([]CourseView, 0, len(courses))
	for _, c := range courses {
		v := s.view(c)
		if enrolled != nil {
			joined := enrolled[c.ID]
			v.Enrolled = &joined
		}
		views = append(views, v)
	}
	return views, nil
}

func (s *CourseService) CreateCourse(in *CourseInput) (*CourseView, error) {
	course := &model.Course{
		Name:        in.Name,
		Complexity:  in.Complexity,
		Description: in.Description,
		BannerImage: in.BannerImage,
	}
	if course.BannerImage == "" {
		course.BannerImage = s.Cfg.Storage.DefaultBannerImage
	}
	if err := s.CourseRepo.Create(course); err != nil {
		return nil, err
	}
	v := s.view(*course)
	return &v, nil
}

func (s *CourseService) UpdateCourse(id uint, in *CourseInput) (*CourseView, error) {
	course, err := s.findCourse(id)
	if err != nil {
		return nil, err
	}

	course.Name = in.Name
	course.Complexity = in.Complexity
	course.Description = in.Description
	if in.BannerImage != "" {
		course.BannerImage = in.BannerImage
	}
	if err := s.CourseRepo.Update(course); err != nil {
		return nil, err
	}
	v := s.view(*course)
	return &v, nil
}

// DeleteCourse 级联删除课时、组件、选课、证书以及全部用户进度
func (s *CourseService) DeleteCourse(id uint) error {
	if _, err := s.findCourse(id); err != nil {
		return err
	}

	return s.DB.Transaction(func(tx *gorm.DB) error {
		lessons := s.LessonRepo.WithTx(tx)
		ids, err := lessons.IDsByCourse(id)
		if err != nil {
			return err
		}
		for _, lessonID := range ids {
			if err := lessons.DeleteCascade(lessonID); err != nil {
				return err
			}
		}
		return s.CourseRepo.WithTx(tx).Delete(id)
	})
}

func (s *CourseService) UploadBanner(ctx context.Context, id uint, filename string, reader io.Reader, size int64, contentType string) (*model.Course, error) {
	course, err := s.findCourse(id)
	if err != nil {
		return nil, err
	}

	key := fmt.Sprintf("course_banners/%d_%d%s", id, s.now().UnixNano(), filepath.Ext(filename))
	url, err := s.Storage.Upload(ctx, key, reader, size, contentType)
	if err != nil {
		return nil, err
	}
	if err := s.CourseRepo.UpdateBanner(id, url); err != nil {
		return nil, err
	}
	course.BannerImage = url
	return course, nil
}

// GetCourseDetail 查看课程即自动选课
func (s *CourseService) GetCourseDetail(userID, courseID uint) (*CourseDetail, error) {
	course, err := s.findCourse(courseID)
	if err != nil {
		return nil, err
	}

	uc, err := s.ProgressRepo.EnsureUserCourse(userID, courseID)
	if err != nil {
		return nil, err
	}

	lessons, err := s.CourseLessons(userID, courseID)
	if err != nil {
		return nil, err
	}

	return &CourseDetail{
		CourseView: s.view(*course),
		Lessons:    lessons,
		UserCourse: uc,
	}, nil
}

// CourseLessons 按顺序号排列，附带用户课时进度
func (s *CourseService) CourseLessons(userID, courseID uint) ([]LessonSummary, error) {
	if _, err := s.findCourse(courseID); err != nil {
		return nil, err
	}

	lessons, err := s.LessonRepo.FindByCourse(courseID)
	if err != nil {
		return nil, err
	}

	ids := make([]uint, 0, len(lessons))
	for _, l := range lessons {
		ids = append(ids, l.ID)
	}
	userLessons, err := s.ProgressRepo.UserLessonsByLessons(userID, ids)
	if err != nil {
		return nil, err
	}

	summaries := make([]LessonSummary, 0, len(lessons))
	for _, l := range lessons {
		summary := LessonSummary{
			ID:           l.ID,
			Title:        l.Title,
			MaxScore:     l.MaxScore,
			SerialNumber: l.SerialNumber,
			Material:     l.Material,
		}
		if ul, ok := userLessons[l.ID]; ok {
			ul := ul
			summary.UserLesson = &ul
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

func (s *CourseService) EnrolledCourses(userID uint) (*EnrolledCourses, error) {
	ids, err := s.ProgressRepo.EnrolledCourseIDs(userID)
	if err != nil {
		return nil, err
	}
	courses, err := s.CourseRepo.FindByIDs(ids)
	if err != nil {
		return nil, err
	}

	result := &EnrolledCourses{CourseIDs: ids, Courses: make([]CourseView, 0, len(courses))}
	if result.CourseIDs == nil {
		result.CourseIDs = []uint{}
	}
	for _, c := range courses {
		result.Courses = append(result.Courses, s.view(c))
	}
	return result, nil
}

// ExportProgress 导出课程学员进度为 xlsx
func (s *CourseService) ExportProgress(courseID uint) (string, []byte, error) {
	course, err := s.findCourse(courseID)
	if err != nil {
		return "", nil, err
	}

	learners, err := s.ProgressRepo.LearnersOfCourse(courseID)
	if err != nil {
		return "", nil, err
	}

	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			logger.Log.Warn("Failed to close workbook", zap.Error(err))
		}
	}()

	const sheet = "Progress"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return "", nil, err
	}

	header := []interface{}{"User ID", "Username", "Email", "First name", "Last name", "Progress", "Completed", "Enrolled at", "Completed at"}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return "", nil, err
	}

	for i, l := range learners {
		completedAt := ""
		if l.CompletedAt != nil {
			completedAt = l.CompletedAt.Format(util.TimeFormat)
		}
		row := []interface{}{
			l.UserID, l.Username, l.Email, l.FirstName, l.LastName,
			l.Progress, l.IsCompleted, l.EnrolledAt.Format(util.TimeFormat), completedAt,
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return "", nil, err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return "", nil, err
		}
	}

	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err == nil {
		_ = f.SetRowStyle(sheet, 1, 1, style)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return "", nil, err
	}

	filename := fmt.Sprintf("course-%d-progress-%s.xlsx", course.ID, s.now().Format(util.DateFormat))
	return filename, buf.Bytes(), nil
}
