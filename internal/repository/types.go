package repository

import "time"

// CourseLearner 课程学员进度导出行
type CourseLearner struct {
	UserID      uint       `json:"userId"`
	Username    string     `json:"username"`
	Email       string     `json:"email"`
	FirstName   string     `json:"firstName"`
	LastName    string     `json:"lastName"`
	Progress    int        `json:"progress"`
	IsCompleted bool       `json:"isCompleted"`
	EnrolledAt  time.Time  `json:"enrolledAt"`
	CompletedAt *time.Time `json:"completedAt"`
}

// swagger:model UserStatistics
type UserStatistics struct {
	EnrolledCourses  int64 `json:"enrolledCourses"`
	CompletedCourses int64 `json:"completedCourses"`
	StartedLessons   int64 `json:"startedLessons"`
	CompletedLessons int64 `json:"completedLessons"`
	AnsweredTasks    int64 `json:"answeredTasks"`
	CorrectTasks     int64 `json:"correctTasks"`
	TotalScore       int64 `json:"totalScore"`
	Certificates     int64 `json:"certificates"`
}
