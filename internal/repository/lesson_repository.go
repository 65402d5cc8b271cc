package repository

import (
	"ucode_backend/internal/model"

	"gorm.io/gorm"
)

type LessonRepository struct {
	DB *gorm.DB
}

func NewLessonRepository(db *gorm.DB) *LessonRepository {
	return &LessonRepository{DB: db}
}

func (r *LessonRepository) WithTx(tx *gorm.DB) *LessonRepository {
	return &LessonRepository{DB: tx}
}

func preloadComponents(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Components", func(db *gorm.DB) *gorm.DB {
			return db.Order("serial_number ASC, id ASC")
		}).
		Preload("Components.Options", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC, id ASC")
		}).
		Preload("Components.Tests", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC, id ASC")
		})
}

func (r *LessonRepository) FindByID(id uint) (*model.Lesson, error) {
	var lesson model.Lesson
	err := r.DB.First(&lesson, id).Error
	return &lesson, err
}

// FindWithComponents 带组件、选项和测试用例，均按顺序号排列
func (r *LessonRepository) FindWithComponents(id uint) (*model.Lesson, error) {
	var lesson model.Lesson
	err := preloadComponents(r.DB).First(&lesson, id).Error
	return &lesson, err
}

func (r *LessonRepository) FindByCourse(courseID uint) ([]model.Lesson, error) {
	var lessons []model.Lesson
	err := r.DB.Where("course_id = ?", courseID).
		Order("serial_number ASC").
		Find(&lessons).Error
	return lessons, err
}

// FindNext 同一课程中顺序号大于 serial 的第一个课时
func (r *LessonRepository) FindNext(courseID uint, serial int) (*model.Lesson, error) {
	var lesson model.Lesson
	err := r.DB.Where("course_id = ? AND serial_number > ?", courseID, serial).
		Order("serial_number ASC").
		First(&lesson).Error
	return &lesson, err
}

func (r *LessonRepository) SerialTaken(courseID uint, serial int, excludeID uint) (bool, error) {
	var count int64
	err := r.DB.Model(&model.Lesson{}).
		Where("course_id = ? AND serial_number = ? AND id <> ?", courseID, serial, excludeID).
		Count(&count).Error
	return count > 0, err
}

func (r *LessonRepository) ComponentIDs(lessonID uint) ([]uint, error) {
	var ids []uint
	err := r.DB.Model(&model.Component{}).Where("lesson_id = ?", lessonID).Pluck("id", &ids).Error
	return ids, err
}

// FindBySerial 导入课程目录时按顺序号匹配已有课时
func (r *LessonRepository) FindBySerial(courseID uint, serial int) (*model.Lesson, error) {
	var lesson model.Lesson
	err := r.DB.Where("course_id = ? AND serial_number = ?", courseID, serial).First(&lesson).Error
	return &lesson, err
}

func (r *LessonRepository) IDsByCourse(courseID uint) ([]uint, error) {
	var ids []uint
	err := r.DB.Model(&model.Lesson{}).Where("course_id = ?", courseID).Pluck("id", &ids).Error
	return ids, err
}

// Create 按给定顺序逐个写入组件及其选项、测试用例
func (r *LessonRepository) Create(lesson *model.Lesson) error {
	components := lesson.Components
	lesson.Components = nil
	defer func() { lesson.Components = components }()

	if err := r.DB.Create(lesson).Error; err != nil {
		return err
	}

	for i := range components {
		c := &components[i]
		c.LessonID = lesson.ID
		options, tests := c.Options, c.Tests
		c.Options, c.Tests = nil, nil

		if err := r.DB.Create(c).Error; err != nil {
			return err
		}

		for j := range options {
			options[j].ComponentID = c.ID
			options[j].Position = j
			if err := r.DB.Create(&options[j]).Error; err != nil {
				return err
			}
		}
		for j := range tests {
			tests[j].ComponentID = c.ID
			tests[j].Position = j
			if err := r.DB.Create(&tests[j]).Error; err != nil {
				return err
			}
		}
		c.Options, c.Tests = options, tests
	}
	return nil
}

// DeleteCascade 删除课时、组件、选项、测试用例及相关的用户进度和提交记录
func (r *LessonRepository) DeleteCascade(lessonID uint) error {
	componentIDs, err := r.ComponentIDs(lessonID)
	if err != nil {
		return err
	}

	if len(componentIDs) > 0 {
		if err := r.DB.Where("component_id IN ?", componentIDs).Delete(&model.ComponentOption{}).Error; err != nil {
			return err
		}
		if err := r.DB.Where("component_id IN ?", componentIDs).Delete(&model.CodingTest{}).Error; err != nil {
			return err
		}
		if err := r.DB.Where("component_id IN ?", componentIDs).Delete(&model.UserComponent{}).Error; err != nil {
			return err
		}
		if err := r.DB.Where("component_id IN ?", componentIDs).Delete(&model.CodingSubmission{}).Error; err != nil {
			return err
		}
		if err := r.DB.Where("lesson_id = ?", lessonID).Delete(&model.Component{}).Error; err != nil {
			return err
		}
	}

	if err := r.DB.Where("lesson_id = ?", lessonID).Delete(&model.UserLesson{}).Error; err != nil {
		return err
	}
	return r.DB.Delete(&model.Lesson{}, lessonID).Error
}

// FindComponent 带选项和测试用例
func (r *LessonRepository) FindComponent(id uint) (*model.Component, error) {
	var c model.Component
	err := r.DB.
		Preload("Options", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC, id ASC")
		}).
		Preload("Tests", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC, id ASC")
		}).
		First(&c, id).Error
	return &c, err
}
