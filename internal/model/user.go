package model

import (
	"time"
)

// swagger:model User
type User struct {
	BaseModel
	Username     string     `gorm:"size:150;uniqueIndex;not null" json:"username"`
	Email        string     `gorm:"size:100;uniqueIndex;not null" json:"email"`
	FirstName    string     `gorm:"size:150" json:"firstName"`
	LastName     string     `gorm:"size:150" json:"lastName"`
	Password     string     `gorm:"size:100;not null" json:"-"`
	IsStaff      bool       `gorm:"default:false" json:"isStaff"`
	ProfileImage string     `gorm:"size:255" json:"profileImage"`
	LastLogin    *time.Time `json:"lastLogin"`
}

func (User) TableName() string {
	return "users"
}

// DisplayName 证书和公开校验使用的姓名，没有填写姓名时退回到用户名
func (u *User) DisplayName() string {
	name := u.FirstName
	if u.LastName != "" {
		if name != "" {
			name += " "
		}
		name += u.LastName
	}
	if name == "" {
		return u.Username
	}
	return name
}
