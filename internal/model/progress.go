package model

import (
	"time"

	"gorm.io/datatypes"
)

const (
	// LessonPassScore 课时完成阈值，与课时配置的满分无关
	LessonPassScore = 80
	// CourseCompleteProgress 课程完成所需的进度
	CourseCompleteProgress = 100
)

// UserCourse 用户选课记录，进度只由判分引擎修改
// swagger:model UserCourse
type UserCourse struct {
	ID          uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID      uint       `gorm:"not null;uniqueIndex:idx_user_course" json:"userId"`
	CourseID    uint       `gorm:"not null;uniqueIndex:idx_user_course" json:"courseId"`
	Progress    int        `gorm:"default:0" json:"progress"`
	IsCompleted bool       `gorm:"default:false" json:"isCompleted"`
	CompletedAt *time.Time `json:"completedAt"`
	EnrolledAt  time.Time  `gorm:"autoCreateTime" json:"enrolledAt"`
}

func (UserCourse) TableName() string {
	return "user_courses"
}

// swagger:model UserLesson
type UserLesson struct {
	ID          uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID      uint      `gorm:"not null;uniqueIndex:idx_user_lesson" json:"userId"`
	LessonID    uint      `gorm:"not null;uniqueIndex:idx_user_lesson" json:"lessonId"`
	Score       int       `gorm:"default:0" json:"score"`
	IsCompleted bool      `gorm:"default:false" json:"isCompleted"`
	StartedAt   time.Time `gorm:"autoCreateTime" json:"startedAt"`
}

func (UserLesson) TableName() string {
	return "user_lessons"
}

// UserComponent 用户在某个组件上当前持有的分数
// swagger:model UserComponent
type UserComponent struct {
	ID          uint           `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID      uint           `gorm:"not null;uniqueIndex:idx_user_component" json:"userId"`
	ComponentID uint           `gorm:"not null;uniqueIndex:idx_user_component" json:"componentId"`
	Score       int            `gorm:"default:0" json:"score"`
	IsCorrect   bool           `gorm:"default:false" json:"isCorrect"`
	Answer      datatypes.JSON `json:"answer,omitempty"`
	UpdatedAt   time.Time      `json:"updatedAt"`
}

func (UserComponent) TableName() string {
	return "user_components"
}
