package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"ucode_backend/internal/model"
	"ucode_backend/pkg/logger"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
)

// CatalogFile 课程目录导入文件
type CatalogFile struct {
	Courses []CatalogCourse `yaml:"courses"`
}

type CatalogCourse struct {
	Name        string          `yaml:"name"`
	Complexity  string          `yaml:"complexity"`
	Description string          `yaml:"description"`
	BannerImage string          `yaml:"bannerImage"`
	Lessons     []CatalogLesson `yaml:"lessons"`
}

type CatalogLesson struct {
	Title        string             `yaml:"title"`
	MaxScore     int                `yaml:"maxScore"`
	SerialNumber int                `yaml:"serialNumber"`
	Material     string             `yaml:"material"`
	Components   []CatalogComponent `yaml:"components"`
}

type CatalogComponent struct {
	Type         string                 `yaml:"type"`
	MaxScore     int                    `yaml:"maxScore"`
	SerialNumber int                    `yaml:"serialNumber"`
	Data         map[string]interface{} `yaml:"data"`
}

// SeedSummary 导入结果统计
type SeedSummary struct {
	CoursesCreated int
	CoursesUpdated int
	LessonsSaved   int
}

// SeedService 从 YAML 文件导入课程目录。课程按名称匹配，课时按顺序号匹配，重复导入会替换已有课时
type SeedService struct {
	Courses *CourseService
	Lessons *LessonService
}

func NewSeedService(courses *CourseService, lessons *LessonService) *SeedService {
	return &SeedService{Courses: courses, Lessons: lessons}
}

func ParseCatalog(r io.Reader) (*CatalogFile, error) {
	var catalog CatalogFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&catalog); err != nil {
		if errors.Is(err, io.EOF) {
			return &catalog, nil
		}
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	return &catalog, nil
}

func (s *SeedService) SeedFile(path string) (*SeedSummary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	catalog, err := ParseCatalog(f)
	if err != nil {
		return nil, err
	}
	return s.Seed(catalog)
}

func (s *SeedService) Seed(catalog *CatalogFile) (*SeedSummary, error) {
	summary := &SeedSummary{}
	for i, c := range catalog.Courses {
		courseID, created, err := s.upsertCourse(c)
		if err != nil {
			return summary, fmt.Errorf("courses.%d: %w", i, err)
		}
		if created {
			summary.CoursesCreated++
		} else {
			summary.CoursesUpdated++
		}

		for j, l := range c.Lessons {
			if err := s.saveLesson(courseID, l); err != nil {
				return summary, fmt.Errorf("courses.%d.lessons.%d: %w", i, j, err)
			}
			summary.LessonsSaved++
		}
	}

	logger.Log.Info("Catalog seeded",
		zap.Int("courses_created", summary.CoursesCreated),
		zap.Int("courses_updated", summary.CoursesUpdated),
		zap.Int("lessons_saved", summary.LessonsSaved),
	)
	return summary, nil
}

func (s *SeedService) upsertCourse(c CatalogCourse) (uint, bool, error) {
	in := &CourseInput{
		Name:        c.Name,
		Complexity:  model.Complexity(c.Complexity),
		Description: c.Description,
		BannerImage: c.BannerImage,
	}
	switch in.Complexity {
	case model.Junior, model.Middle, model.Senior:
	default:
		return 0, false, fmt.Errorf("unknown complexity %q", c.Complexity)
	}

	existing, err := s.Courses.CourseRepo.FindByName(c.Name)
	if err == nil {
		view, err := s.Courses.UpdateCourse(existing.ID, in)
		if err != nil {
			return 0, false, err
		}
		return view.ID, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, false, err
	}

	view, err := s.Courses.CreateCourse(in)
	if err != nil {
		return 0, false, err
	}
	return view.ID, true, nil
}

func (s *SeedService) saveLesson(courseID uint, l CatalogLesson) error {
	in := &LessonInput{
		CourseID:     courseID,
		Title:        l.Title,
		MaxScore:     l.MaxScore,
		SerialNumber: l.SerialNumber,
		Material:     l.Material,
	}

	existing, err := s.Lessons.LessonRepo.FindBySerial(courseID, l.SerialNumber)
	switch {
	case err == nil:
		in.ID = &existing.ID
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return err
	}

	for _, c := range l.Components {
		data := c.Data
		if data == nil {
			data = map[string]interface{}{}
		}
		raw, err := json.Marshal(data)
		if err != nil {
			return err
		}
		in.Components = append(in.Components, ComponentInput{
			Type:         model.ComponentKind(c.Type),
			MaxScore:     c.MaxScore,
			SerialNumber: c.SerialNumber,
			Data:         raw,
		})
	}

	_, err = s.Lessons.SaveLesson(in)
	return err
}
