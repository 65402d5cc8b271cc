package service

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"time"

	"ucode_backend/internal/config"
	"ucode_backend/internal/model"
	"ucode_backend/internal/repository"
	"ucode_backend/internal/util"
	"ucode_backend/pkg/logger"
	"ucode_backend/pkg/monitoring"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// CertificateVerification 公开校验接口返回的信息
// swagger:model CertificateVerification
type CertificateVerification struct {
	ID            string    `json:"id"`
	IssuedAt      string    `json:"issuedAt"`
	RecipientName string    `json:"recipientName"`
	Username      string    `json:"username"`
	CourseID      uint      `json:"courseId"`
	CourseName    string    `json:"courseName"`
	Complexity    string    `json:"complexity"`
	CreatedAt     time.Time `json:"createdAt"`
}

type CertificateService struct {
	CertRepo     *repository.CertificateRepository
	CourseRepo   *repository.CourseRepository
	UserRepo     *repository.UserRepository
	ProgressRepo *repository.ProgressRepository
	Renderer     CertificateRenderer
	Storage      StorageProvider
	Cfg          *config.Config
	now          func() time.Time
}

func NewCertificateService(certRepo *repository.CertificateRepository, courseRepo *repository.CourseRepository, userRepo *repository.UserRepository, progressRepo *repository.ProgressRepository, renderer CertificateRenderer, storage StorageProvider, cfg *config.Config) *CertificateService {
	return &CertificateService{
		CertRepo:     certRepo,
		CourseRepo:   courseRepo,
		UserRepo:     userRepo,
		ProgressRepo: progressRepo,
		Renderer:     renderer,
		Storage:      storage,
		Cfg:          cfg,
		now:          time.Now,
	}
}

// Issue 幂等签发：已有证书原样返回，即使课程完成状态之后被撤回
func (s *CertificateService) Issue(userID, courseID uint) (*model.Certificate, bool, error) {
	if _, err := s.CourseRepo.FindByID(courseID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, util.ErrCourseNotFound
		}
		return nil, false, err
	}

	existing, err := s.CertRepo.FindByUserCourse(userID, courseID)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}

	uc, err := s.ProgressRepo.FindUserCourse(userID, courseID, false)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, util.ErrCourseNotJoined
		}
		return nil, false, err
	}
	if !uc.IsCompleted {
		return nil, false, util.ErrCourseNotCompleted
	}

	now := s.now()
	cert := &model.Certificate{
		ID:       model.GenerateUUID(),
		UserID:   userID,
		CourseID: courseID,
		IssuedAt: time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC),
	}
	stored, created, err := s.CertRepo.CreateIfAbsent(cert)
	if err != nil {
		return nil, false, err
	}
	if created {
		monitoring.CertificatesIssued.Inc()
		logger.Log.Info("Certificate issued",
			zap.String("certificate_id", stored.ID),
			zap.Uint("user_id", userID),
			zap.Uint("course_id", courseID),
		)
	}
	return stored, created, nil
}

func (s *CertificateService) VerifyURL(id string) string {
	base := strings.TrimRight(s.Cfg.Certificate.VerifyBaseURL, "/")
	if base == "" {
		return ""
	}
	return base + "/" + id
}

// Download 签发并渲染证书 PDF，上传到存储失败不影响下载
func (s *CertificateService) Download(ctx context.Context, userID, courseID uint) (*model.Certificate, []byte, error) {
	cert, _, err := s.Issue(userID, courseID)
	if err != nil {
		return nil, nil, err
	}

	user, err := s.UserRepo.FindByID(userID)
	if err != nil {
		return nil, nil, err
	}
	course, err := s.CourseRepo.FindByID(courseID)
	if err != nil {
		return nil, nil, err
	}

	pdf, err := s.Renderer.Render(CertificateData{
		ID:            cert.ID,
		RecipientName: user.DisplayName(),
		CourseName:    course.Name,
		Complexity:    string(course.Complexity),
		IssuedAt:      cert.IssuedAt,
		VerifyURL:     s.VerifyURL(cert.ID),
	})
	if err != nil {
		return nil, nil, err
	}

	if s.Storage != nil {
		key := "certificates/" + cert.ID + ".pdf"
		url, err := s.Storage.Upload(ctx, key, bytes.NewReader(pdf), int64(len(pdf)), util.MimePDF)
		if err != nil {
			logger.Log.Warn("Failed to store certificate", zap.String("certificate_id", cert.ID), zap.Error(err))
		} else if url != cert.FileURL {
			if err := s.CertRepo.UpdateFileURL(cert.ID, url); err != nil {
				logger.Log.Warn("Failed to record certificate url", zap.String("certificate_id", cert.ID), zap.Error(err))
			} else {
				cert.FileURL = url
			}
		}
	}

	return cert, pdf, nil
}

// Verify 按证书 ID 公开查询
func (s *CertificateService) Verify(id string) (*CertificateVerification, error) {
	cert, err := s.CertRepo.FindByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrCertificateNotFound
		}
		return nil, err
	}

	return &CertificateVerification{
		ID:            cert.ID,
		IssuedAt:      cert.IssuedAt.Format(util.DateFormat),
		RecipientName: cert.User.DisplayName(),
		Username:      cert.User.Username,
		CourseID:      cert.CourseID,
		CourseName:    cert.Course.Name,
		Complexity:    string(cert.Course.Complexity),
		CreatedAt:     cert.CreatedAt,
	}, nil
}
