package repository

import (
	"ucode_backend/internal/model"

	"gorm.io/gorm"
)

type CodingSubmissionRepository struct {
	DB *gorm.DB
}

func NewCodingSubmissionRepository(db *gorm.DB) *CodingSubmissionRepository {
	return &CodingSubmissionRepository{DB: db}
}

func (r *CodingSubmissionRepository) Create(sub *model.CodingSubmission) error {
	return r.DB.Create(sub).Error
}

func (r *CodingSubmissionRepository) FindByID(id uint) (*model.CodingSubmission, error) {
	var sub model.CodingSubmission
	err := r.DB.First(&sub, id).Error
	return &sub, err
}

func (r *CodingSubmissionRepository) Save(sub *model.CodingSubmission) error {
	return r.DB.Save(sub).Error
}

// MarkRunning 只有 pending 状态可以进入 running，返回是否抢占成功
func (r *CodingSubmissionRepository) MarkRunning(id uint) (bool, error) {
	res := r.DB.Model(&model.CodingSubmission{}).
		Where("id = ? AND status = ?", id, model.SubmissionPending).
		Update("status", model.SubmissionRunning)
	return res.RowsAffected > 0, res.Error
}
