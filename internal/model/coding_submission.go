package model

import (
	"time"
)

type SubmissionStatus string

const (
	SubmissionPending SubmissionStatus = "pending"
	SubmissionRunning SubmissionStatus = "running"
	SubmissionPassed  SubmissionStatus = "passed"
	SubmissionFailed  SubmissionStatus = "failed"
	SubmissionError   SubmissionStatus = "error"
)

// Finished 是否已得出结果
func (s SubmissionStatus) Finished() bool {
	return s == SubmissionPassed || s == SubmissionFailed || s == SubmissionError
}

// CodingSubmission 编程题的一次提交，由后台任务调用判题服务
// swagger:model CodingSubmission
type CodingSubmission struct {
	ID          uint             `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID      uint             `gorm:"not null;index" json:"userId"`
	ComponentID uint             `gorm:"not null;index" json:"componentId"`
	Language    string           `gorm:"size:20" json:"language"`
	SourceCode  string           `gorm:"type:text" json:"sourceCode"`
	Status      SubmissionStatus `gorm:"size:20;default:'pending'" json:"status"`
	PassedTests int              `gorm:"default:0" json:"passedTests"`
	TotalTests  int              `gorm:"default:0" json:"totalTests"`
	Stderr      string           `gorm:"type:text" json:"stderr,omitempty"`
	CreatedAt   time.Time        `json:"createdAt"`
	FinishedAt  *time.Time       `json:"finishedAt"`
}

func (CodingSubmission) TableName() string {
	return "coding_submissions"
}
