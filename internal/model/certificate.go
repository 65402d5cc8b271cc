package model

import (
	"time"

	"gorm.io/gorm"
)

// Certificate 课程结业证书，每个用户每门课程只有一张
// swagger:model Certificate
type Certificate struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_cert_user_course" json:"userId"`
	CourseID  uint      `gorm:"not null;uniqueIndex:idx_cert_user_course" json:"courseId"`
	IssuedAt  time.Time `gorm:"type:date" json:"issuedAt"`
	FileURL   string    `gorm:"size:255" json:"fileUrl,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	User      User      `gorm:"foreignKey:UserID" json:"-"`
	Course    Course    `gorm:"foreignKey:CourseID" json:"-"`
}

func (Certificate) TableName() string {
	return "certificates"
}

func (c *Certificate) BeforeCreate(tx *gorm.DB) (err error) {
	if c.ID == "" {
		c.ID = GenerateUUID()
	}
	return
}
