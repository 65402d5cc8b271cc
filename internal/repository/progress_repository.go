package repository

import (
	"ucode_backend/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ProgressRepository 选课、课时和组件三级进度
type ProgressRepository struct {
	DB *gorm.DB
}

func NewProgressRepository(db *gorm.DB) *ProgressRepository {
	return &ProgressRepository{DB: db}
}

func (r *ProgressRepository) WithTx(tx *gorm.DB) *ProgressRepository {
	return &ProgressRepository{DB: tx}
}

func (r *ProgressRepository) query(lock bool) *gorm.DB {
	if lock {
		return r.DB.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return r.DB
}

func (r *ProgressRepository) FindUserCourse(userID, courseID uint, lock bool) (*model.UserCourse, error) {
	var uc model.UserCourse
	err := r.query(lock).Where("user_id = ? AND course_id = ?", userID, courseID).First(&uc).Error
	return &uc, err
}

// EnsureUserCourse 不存在则创建，唯一索引冲突时忽略
func (r *ProgressRepository) EnsureUserCourse(userID, courseID uint) (*model.UserCourse, error) {
	uc := model.UserCourse{UserID: userID, CourseID: courseID}
	err := r.DB.Clauses(clause.OnConflict{DoNothing: true}).Create(&uc).Error
	if err != nil {
		return nil, err
	}
	return r.FindUserCourse(userID, courseID, false)
}

func (r *ProgressRepository) SaveUserCourse(uc *model.UserCourse) error {
	return r.DB.Save(uc).Error
}

func (r *ProgressRepository) EnrolledCourseIDs(userID uint) ([]uint, error) {
	var ids []uint
	err := r.DB.Model(&model.UserCourse{}).
		Where("user_id = ?", userID).
		Order("enrolled_at DESC").
		Pluck("course_id", &ids).Error
	return ids, err
}

func (r *ProgressRepository) UserCoursesByUser(userID uint) ([]model.UserCourse, error) {
	var ucs []model.UserCourse
	err := r.DB.Where("user_id = ?", userID).Find(&ucs).Error
	return ucs, err
}

// LearnersOfCourse 导出用，带用户信息
func (r *ProgressRepository) LearnersOfCourse(courseID uint) ([]CourseLearner, error) {
	var rows []CourseLearner
	err := r.DB.Table("user_courses AS uc").
		Select("u.id AS user_id, u.username, u.email, u.first_name, u.last_name, uc.progress, uc.is_completed, uc.enrolled_at, uc.completed_at").
		Joins("JOIN users u ON u.id = uc.user_id").
		Where("uc.course_id = ? AND u.deleted_at IS NULL", courseID).
		Order("uc.progress DESC, u.username ASC").
		Scan(&rows).Error
	return rows, err
}

func (r *ProgressRepository) FindUserLesson(userID, lessonID uint, lock bool) (*model.UserLesson, error) {
	var ul model.UserLesson
	err := r.query(lock).Where("user_id = ? AND lesson_id = ?", userID, lessonID).First(&ul).Error
	return &ul, err
}

func (r *ProgressRepository) CreateUserLesson(ul *model.UserLesson) error {
	return r.DB.Create(ul).Error
}

func (r *ProgressRepository) SaveUserLesson(ul *model.UserLesson) error {
	return r.DB.Save(ul).Error
}

// UserLessonsByLessons 按 lesson_id 建索引
func (r *ProgressRepository) UserLessonsByLessons(userID uint, lessonIDs []uint) (map[uint]model.UserLesson, error) {
	result := make(map[uint]model.UserLesson)
	if len(lessonIDs) == 0 {
		return result, nil
	}
	var uls []model.UserLesson
	if err := r.DB.Where("user_id = ? AND lesson_id IN ?", userID, lessonIDs).Find(&uls).Error; err != nil {
		return nil, err
	}
	for _, ul := range uls {
		result[ul.LessonID] = ul
	}
	return result, nil
}

// CompletedUserLessons 某课时的全部已完成记录，课时替换或删除时回滚课程进度
func (r *ProgressRepository) CompletedUserLessons(lessonID uint) ([]model.UserLesson, error) {
	var uls []model.UserLesson
	err := r.DB.Where("lesson_id = ? AND is_completed = ?", lessonID, true).Find(&uls).Error
	return uls, err
}

func (r *ProgressRepository) FindUserComponent(userID, componentID uint, lock bool) (*model.UserComponent, error) {
	var uc model.UserComponent
	err := r.query(lock).Where("user_id = ? AND component_id = ?", userID, componentID).First(&uc).Error
	return &uc, err
}

func (r *ProgressRepository) SaveUserComponent(uc *model.UserComponent) error {
	return r.DB.Save(uc).Error
}

func (r *ProgressRepository) UserComponentsByComponents(userID uint, componentIDs []uint) (map[uint]model.UserComponent, error) {
	result := make(map[uint]model.UserComponent)
	if len(componentIDs) == 0 {
		return result, nil
	}
	var ucs []model.UserComponent
	if err := r.DB.Where("user_id = ? AND component_id IN ?", userID, componentIDs).Find(&ucs).Error; err != nil {
		return nil, err
	}
	for _, uc := range ucs {
		result[uc.ComponentID] = uc
	}
	return result, nil
}

// UserStatistics 个人学习统计
func (r *ProgressRepository) UserStatistics(userID uint) (*UserStatistics, error) {
	stats := &UserStatistics{}

	if err := r.DB.Model(&model.UserCourse{}).Where("user_id = ?", userID).Count(&stats.EnrolledCourses).Error; err != nil {
		return nil, err
	}
	if err := r.DB.Model(&model.UserCourse{}).Where("user_id = ? AND is_completed = ?", userID, true).Count(&stats.CompletedCourses).Error; err != nil {
		return nil, err
	}
	if err := r.DB.Model(&model.UserLesson{}).Where("user_id = ?", userID).Count(&stats.StartedLessons).Error; err != nil {
		return nil, err
	}
	if err := r.DB.Model(&model.UserLesson{}).Where("user_id = ? AND is_completed = ?", userID, true).Count(&stats.CompletedLessons).Error; err != nil {
		return nil, err
	}
	if err := r.DB.Model(&model.UserComponent{}).Where("user_id = ?", userID).Count(&stats.AnsweredTasks).Error; err != nil {
		return nil, err
	}
	if err := r.DB.Model(&model.UserComponent{}).Where("user_id = ? AND is_correct = ?", userID, true).Count(&stats.CorrectTasks).Error; err != nil {
		return nil, err
	}
	if err := r.DB.Model(&model.UserLesson{}).Where("user_id = ?", userID).
		Select("COALESCE(SUM(score), 0)").Scan(&stats.TotalScore).Error; err != nil {
		return nil, err
	}
	if err := r.DB.Model(&model.Certificate{}).Where("user_id = ?", userID).Count(&stats.Certificates).Error; err != nil {
		return nil, err
	}
	return stats, nil
}
