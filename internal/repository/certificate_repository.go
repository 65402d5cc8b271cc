package repository

import (
	"ucode_backend/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CertificateRepository struct {
	DB *gorm.DB
}

func NewCertificateRepository(db *gorm.DB) *CertificateRepository {
	return &CertificateRepository{DB: db}
}

func (r *CertificateRepository) WithTx(tx *gorm.DB) *CertificateRepository {
	return &CertificateRepository{DB: tx}
}

func (r *CertificateRepository) FindByID(id string) (*model.Certificate, error) {
	var cert model.Certificate
	err := r.DB.Preload("User").Preload("Course").Where("id = ?", id).First(&cert).Error
	return &cert, err
}

func (r *CertificateRepository) FindByUserCourse(userID, courseID uint) (*model.Certificate, error) {
	var cert model.Certificate
	err := r.DB.Where("user_id = ? AND course_id = ?", userID, courseID).First(&cert).Error
	return &cert, err
}

// CreateIfAbsent 并发签发时以唯一索引为准，返回最终落库的证书
func (r *CertificateRepository) CreateIfAbsent(cert *model.Certificate) (*model.Certificate, bool, error) {
	res := r.DB.Clauses(clause.OnConflict{DoNothing: true}).Create(cert)
	if res.Error != nil {
		return nil, false, res.Error
	}
	stored, err := r.FindByUserCourse(cert.UserID, cert.CourseID)
	if err != nil {
		return nil, false, err
	}
	return stored, res.RowsAffected > 0, nil
}

func (r *CertificateRepository) UpdateFileURL(id, url string) error {
	return r.DB.Model(&model.Certificate{}).Where("id = ?", id).Update("file_url", url).Error
}
