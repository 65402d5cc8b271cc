package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"io"
	"time"

	"ucode_backend/internal/config"
	"ucode_backend/internal/model"
	"ucode_backend/internal/repository"
	"ucode_backend/internal/util"
	"ucode_backend/pkg/logger"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/image/draw"
	"gorm.io/gorm"
)

// 头像统一裁剪为正方形
const profileImageSize = 256

// 上传图片大小上限
const maxProfileImageBytes = 5 << 20

// ProfileInput 个人资料修改，未填写的字段保持不变
// swagger:model ProfileInput
type ProfileInput struct {
	Username  *string `json:"username" binding:"omitempty,min=3,max=150"`
	Email     *string `json:"email" binding:"omitempty,email,max=100"`
	FirstName *string `json:"firstName" binding:"omitempty,max=150"`
	LastName  *string `json:"lastName" binding:"omitempty,max=150"`
	Password  *string `json:"password" binding:"omitempty,min=8"`
}

type UserService struct {
	UserRepo     *repository.UserRepository
	ProgressRepo *repository.ProgressRepository
	Storage      StorageProvider
	Cfg          *config.Config
}

func NewUserService(userRepo *repository.UserRepository, progressRepo *repository.ProgressRepository, storage StorageProvider, cfg *config.Config) *UserService {
	return &UserService{
		UserRepo:     userRepo,
		ProgressRepo: progressRepo,
		Storage:      storage,
		Cfg:          cfg,
	}
}

func (s *UserService) GetProfile(userID uint) (*model.User, error) {
	user, err := s.UserRepo.FindByID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

func (s *UserService) UpdateProfile(userID uint, in *ProfileInput) (*model.User, error) {
	user, err := s.GetProfile(userID)
	if err != nil {
		return nil, err
	}

	if in.Username != nil && *in.Username != user.Username {
		taken, err := s.UserRepo.ExistsByUsername(*in.Username, user.ID)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, util.ErrUsernameTaken
		}
		user.Username = *in.Username
	}
	if in.Email != nil && *in.Email != user.Email {
		registered, err := s.UserRepo.ExistsByEmail(*in.Email, user.ID)
		if err != nil {
			return nil, err
		}
		if registered {
			return nil, util.ErrEmailRegistered
		}
		user.Email = *in.Email
	}
	if in.FirstName != nil {
		user.FirstName = *in.FirstName
	}
	if in.LastName != nil {
		user.LastName = *in.LastName
	}
	if in.Password != nil {
		hashed, err := bcrypt.GenerateFromPassword([]byte(*in.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, err
		}
		user.Password = string(hashed)
	}

	if err := s.UserRepo.Update(user); err != nil {
		return nil, err
	}
	return user, nil
}

// UploadProfileImage 居中裁剪并缩放为 PNG 后上传
func (s *UserService) UploadProfileImage(ctx context.Context, userID uint, reader io.Reader) (*model.User, error) {
	user, err := s.GetProfile(userID)
	if err != nil {
		return nil, err
	}

	raw, err := io.ReadAll(io.LimitReader(reader, maxProfileImageBytes+1))
	if err != nil {
		return nil, err
	}
	if len(raw) > maxProfileImageBytes {
		return nil, util.NewValidationError("image", "file too large")
	}

	out, err := processProfileImage(raw, profileImageSize)
	if err != nil {
		return nil, util.NewValidationError("image", "unsupported image")
	}

	key := fmt.Sprintf("profile_images/%d_%d.png", user.ID, time.Now().UnixNano())
	url, err := s.Storage.Upload(ctx, key, bytes.NewReader(out), int64(len(out)), "image/png")
	if err != nil {
		return nil, err
	}
	if err := s.UserRepo.UpdateProfileImage(user.ID, url); err != nil {
		return nil, err
	}

	logger.Log.Info("Profile image updated", zap.Uint("user_id", user.ID), zap.String("url", url))
	user.ProfileImage = url
	return user, nil
}

func processProfileImage(raw []byte, size int) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	side := w
	if h < w {
		side = h
	}
	x0 := b.Min.X + (w-side)/2
	y0 := b.Min.Y + (h-side)/2

	cropRect := image.Rect(0, 0, side, side)
	cropped := image.NewRGBA(cropRect)
	draw.Draw(cropped, cropRect, img, image.Point{X: x0, Y: y0}, draw.Src)

	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.CatmullRom.Scale(dst, dst.Bounds(), cropped, cropped.Bounds(), draw.Over, nil)

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

func (s *UserService) Statistics(userID uint) (*repository.UserStatistics, error) {
	if _, err := s.GetProfile(userID); err != nil {
		return nil, err
	}
	return s.ProgressRepo.UserStatistics(userID)
}
