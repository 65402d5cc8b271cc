package repository

import (
	"ucode_backend/internal/model"

	"gorm.io/gorm"
)

type CourseRepository struct {
	DB *gorm.DB
}

func NewCourseRepository(db *gorm.DB) *CourseRepository {
	return &CourseRepository{DB: db}
}

func (r *CourseRepository) WithTx(tx *gorm.DB) *CourseRepository {
	return &CourseRepository{DB: tx}
}

func (r *CourseRepository) Create(course *model.Course) error {
	return r.DB.Create(course).Error
}

func (r *CourseRepository) Update(course *model.Course) error {
	return r.DB.Save(course).Error
}

func (r *CourseRepository) FindByID(id uint) (*model.Course, error) {
	var course model.Course
	err := r.DB.First(&course, id).Error
	return &course, err
}

func (r *CourseRepository) FindByName(name string) (*model.Course, error) {
	var course model.Course
	err := r.DB.Where("name = ?", name).First(&course).Error
	return &course, err
}

// List 按创建时间倒序
func (r *CourseRepository) List() ([]model.Course, error) {
	var courses []model.Course
	err := r.DB.Order("created_at DESC, id DESC").Find(&courses).Error
	return courses, err
}

func (r *CourseRepository) FindByIDs(ids []uint) ([]model.Course, error) {
	var courses []model.Course
	if len(ids) == 0 {
		return courses, nil
	}
	err := r.DB.Where("id IN ?", ids).Order("created_at DESC, id DESC").Find(&courses).Error
	return courses, err
}

func (r *CourseRepository) UpdateBanner(courseID uint, banner string) error {
	return r.DB.Model(&model.Course{}).
		Where("id = ?", courseID).
		Update("banner_image", banner).
		Error
}

// Delete 只删除课程本身及选课和证书记录，课时由调用方先行级联删除
func (r *CourseRepository) Delete(courseID uint) error {
	if err := r.DB.Where("course_id = ?", courseID).Delete(&model.Certificate{}).Error; err != nil {
		return err
	}
	if err := r.DB.Where("course_id = ?", courseID).Delete(&model.UserCourse{}).Error; err != nil {
		return err
	}
	return r.DB.Delete(&model.Course{}, courseID).Error
}
