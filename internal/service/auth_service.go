package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"ucode_backend/internal/config"
	"ucode_backend/internal/model"
	"ucode_backend/internal/repository"
	"ucode_backend/internal/util"
	"ucode_backend/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"google.golang.org/api/idtoken"
	"gorm.io/gorm"
)

// SignupInput 注册请求
// swagger:model SignupInput
type SignupInput struct {
	Username     string `json:"username" binding:"required,min=3,max=150"`
	Email        string `json:"email" binding:"required,email,max=100"`
	Password     string `json:"password" binding:"required,min=8"`
	FirstName    string `json:"firstName" binding:"max=150"`
	LastName     string `json:"lastName" binding:"max=150"`
	ProfileImage string `json:"profileImage" binding:"max=255"`
}

// TokenPair 登录后签发的令牌
// swagger:model TokenPair
type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// GoogleIdentity Google ID Token 中的用户信息
type GoogleIdentity struct {
	Email     string
	FirstName string
	LastName  string
	Picture   string
}

// GoogleVerifier 校验 Google ID Token
type GoogleVerifier interface {
	Verify(ctx context.Context, token string) (*GoogleIdentity, error)
}

type idTokenVerifier struct {
	clientID string
}

func NewGoogleVerifier(clientID string) GoogleVerifier {
	return &idTokenVerifier{clientID: clientID}
}

func (v *idTokenVerifier) Verify(ctx context.Context, token string) (*GoogleIdentity, error) {
	payload, err := idtoken.Validate(ctx, token, v.clientID)
	if err != nil {
		return nil, err
	}

	claim := func(key string) string {
		if s, ok := payload.Claims[key].(string); ok {
			return s
		}
		return ""
	}
	if verified, ok := payload.Claims["email_verified"].(bool); ok && !verified {
		return nil, errors.New("google email is not verified")
	}

	identity := &GoogleIdentity{
		Email:     claim("email"),
		FirstName: claim("given_name"),
		LastName:  claim("family_name"),
		Picture:   claim("picture"),
	}
	if identity.Email == "" {
		return nil, errors.New("google token has no email")
	}
	return identity, nil
}

type AuthService struct {
	UserRepo  *repository.UserRepository
	Blacklist TokenBlacklist
	Google    GoogleVerifier
	Cfg       *config.Config
}

func NewAuthService(userRepo *repository.UserRepository, blacklist TokenBlacklist, google GoogleVerifier, cfg *config.Config) *AuthService {
	return &AuthService{
		UserRepo:  userRepo,
		Blacklist: blacklist,
		Google:    google,
		Cfg:       cfg,
	}
}

func (s *AuthService) Signup(in *SignupInput) (*model.User, error) {
	taken, err := s.UserRepo.ExistsByUsername(in.Username, 0)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, util.ErrUsernameTaken
	}
	registered, err := s.UserRepo.ExistsByEmail(in.Email, 0)
	if err != nil {
		return nil, err
	}
	if registered {
		return nil, util.ErrEmailRegistered
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := &model.User{
		Username:     in.Username,
		Email:        in.Email,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Password:     string(hashedPassword),
		ProfileImage: in.ProfileImage,
	}
	if user.ProfileImage == "" {
		user.ProfileImage = s.Cfg.Storage.DefaultProfileImage
	}
	if err := s.UserRepo.Create(user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *AuthService) issueTokens(user *model.User) (*TokenPair, error) {
	access, _, err := util.GenerateJWT(user, s.Cfg.JWT.Secret, util.TokenTypeAccess, s.Cfg.JWT.AccessExpire)
	if err != nil {
		return nil, err
	}
	refresh, _, err := util.GenerateJWT(user, s.Cfg.JWT.Secret, util.TokenTypeRefresh, s.Cfg.JWT.RefreshExpire)
	if err != nil {
		return nil, err
	}
	return &TokenPair{Access: access, Refresh: refresh}, nil
}

func (s *AuthService) touchLastLogin(user *model.User) {
	now := time.Now()
	if err := s.UserRepo.UpdateLastLogin(user.ID, now); err != nil {
		logger.Log.Warn("Failed to update last login", zap.Uint("user_id", user.ID), zap.Error(err))
		return
	}
	user.LastLogin = &now
}

// Login 登录名可以是用户名或邮箱
func (s *AuthService) Login(login, password string) (*TokenPair, *model.User, error) {
	user, err := s.UserRepo.FindByLogin(login)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, util.ErrInvalidCredentials
		}
		return nil, nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, nil, util.ErrInvalidCredentials
	}

	tokens, err := s.issueTokens(user)
	if err != nil {
		return nil, nil, err
	}
	s.touchLastLogin(user)
	return tokens, user, nil
}

// GoogleLogin 首次登录时按 Google 资料创建用户
func (s *AuthService) GoogleLogin(ctx context.Context, token string) (*TokenPair, *model.User, bool, error) {
	identity, err := s.Google.Verify(ctx, token)
	if err != nil {
		logger.Log.Info("Google token rejected", zap.Error(err))
		return nil, nil, false, util.ErrGoogleAuthFailed
	}

	created := false
	user, err := s.UserRepo.FindByEmail(identity.Email)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, false, err
		}
		user, err = s.createGoogleUser(identity)
		if err != nil {
			return nil, nil, false, err
		}
		created = true
	}

	tokens, err := s.issueTokens(user)
	if err != nil {
		return nil, nil, false, err
	}
	s.touchLastLogin(user)
	return tokens, user, created, nil
}

func (s *AuthService) createGoogleUser(identity *GoogleIdentity) (*model.User, error) {
	base := strings.SplitN(identity.Email, "@", 2)[0]
	if base == "" {
		base = "user"
	}
	username := base
	for i := 1; ; i++ {
		taken, err := s.UserRepo.ExistsByUsername(username, 0)
		if err != nil {
			return nil, err
		}
		if !taken {
			break
		}
		username = fmt.Sprintf("%s%d", base, i)
	}

	// 第三方登录用户没有本地密码，写入不可用的随机哈希
	hashed, err := bcrypt.GenerateFromPassword([]byte(uuid.NewString()), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := &model.User{
		Username:     username,
		Email:        identity.Email,
		FirstName:    identity.FirstName,
		LastName:     identity.LastName,
		Password:     string(hashed),
		ProfileImage: identity.Picture,
	}
	if user.ProfileImage == "" {
		user.ProfileImage = s.Cfg.Storage.DefaultProfileImage
	}
	if err := s.UserRepo.Create(user); err != nil {
		return nil, err
	}
	logger.Log.Info("User created from google sign-in", zap.Uint("user_id", user.ID))
	return user, nil
}

func (s *AuthService) parseRefresh(ctx context.Context, refresh string) (*util.Claims, error) {
	claims, err := util.ParseJWT(refresh, s.Cfg.JWT.Secret, util.TokenTypeRefresh)
	if err != nil {
		return nil, err
	}
	revoked, err := s.Blacklist.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, util.ErrTokenRevoked
	}
	return claims, nil
}

// Refresh 用刷新令牌换取新的访问令牌
func (s *AuthService) Refresh(ctx context.Context, refresh string) (string, error) {
	claims, err := s.parseRefresh(ctx, refresh)
	if err != nil {
		return "", err
	}

	user, err := s.UserRepo.FindByID(claims.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", util.ErrInvalidToken
		}
		return "", err
	}

	access, _, err := util.GenerateJWT(user, s.Cfg.JWT.Secret, util.TokenTypeAccess, s.Cfg.JWT.AccessExpire)
	return access, err
}

// Logout 将刷新令牌加入黑名单直到其过期
func (s *AuthService) Logout(ctx context.Context, userID uint, refresh string) error {
	claims, err := s.parseRefresh(ctx, refresh)
	if err != nil {
		return err
	}
	if claims.UserID != userID {
		return util.ErrInvalidToken
	}

	ttl := time.Until(claims.ExpiresAt.Time)
	if ttl <= 0 {
		return nil
	}
	return s.Blacklist.Revoke(ctx, claims.ID, ttl)
}

func (s *AuthService) GetCurrentUser(c *gin.Context) *model.User {
	claims := util.GetUserFromContext(c)
	if claims == nil {
		return nil
	}

	user, err := s.UserRepo.FindByID(claims.UserID)
	if err != nil {
		return nil
	}
	return user
}
