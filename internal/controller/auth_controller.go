package controller

import (
	"net/http"

	"ucode_backend/internal/service"
	"ucode_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type AuthController struct {
	AuthService *service.AuthService
}

func NewAuthController(authService *service.AuthService) *AuthController {
	return &AuthController{AuthService: authService}
}

// LoginRequest 登录请求，login 可以是用户名或邮箱
// swagger:model LoginRequest
type LoginRequest struct {
	Login    string `json:"login" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// GoogleAuthRequest Google 登录请求
// swagger:model GoogleAuthRequest
type GoogleAuthRequest struct {
	Token string `json:"token" binding:"required"`
}

// RefreshRequest 刷新令牌请求
// swagger:model RefreshRequest
type RefreshRequest struct {
	Refresh string `json:"refresh" binding:"required"`
}

// Signup godoc
// @Summary 注册新用户
// @Description 使用用户名、邮箱和密码注册
// @Tags 认证
// @Accept  json
// @Produce  json
// @Param   body body service.SignupInput true "用户注册信息"
// @Success 201 {object} util.Response{data=model.User} "创建成功"
// @Failure 400 {object} util.Response "请求参数错误"
// @Failure 409 {object} util.Response "用户名或邮箱已被使用"
// @Router /api/signup [post]
func (c *AuthController) Signup(ctx *gin.Context) {
	var req service.SignupInput
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	user, err := c.AuthService.Signup(&req)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}

	util.Created(ctx, user)
}

// Login godoc
// @Summary 用户登录
// @Description 使用用户名或邮箱登录，返回访问令牌和刷新令牌
// @Tags 认证
// @Accept  json
// @Produce  json
// @Param   body body LoginRequest true "登录信息"
// @Success 200 {object} util.Response{data=object} "登录成功"
// @Failure 400 {object} util.Response "请求参数错误"
// @Failure 401 {object} util.Response "用户名或密码错误"
// @Router /api/login [post]
func (c *AuthController) Login(ctx *gin.Context) {
	var req LoginRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	tokens, user, err := c.AuthService.Login(req.Login, req.Password)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}

	util.Success(ctx, gin.H{
		"access":  tokens.Access,
		"refresh": tokens.Refresh,
		"user":    user,
	})
}

// GoogleAuth godoc
// @Summary Google 登录
// @Description 校验 Google ID Token，首次登录时创建用户
// @Tags 认证
// @Accept  json
// @Produce  json
// @Param   body body GoogleAuthRequest true "Google ID Token"
// @Success 200 {object} util.Response{data=object} "登录成功"
// @Failure 400 {object} util.Response "Google 校验失败"
// @Router /api/google-auth [post]
func (c *AuthController) GoogleAuth(ctx *gin.Context) {
	var req GoogleAuthRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	tokens, user, created, err := c.AuthService.GoogleLogin(ctx.Request.Context(), req.Token)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}

	util.Success(ctx, gin.H{
		"access":  tokens.Access,
		"refresh": tokens.Refresh,
		"user":    user,
		"created": created,
	})
}

// Refresh godoc
// @Summary 刷新访问令牌
// @Tags 认证
// @Accept  json
// @Produce  json
// @Param   body body RefreshRequest true "刷新令牌"
// @Success 200 {object} util.Response{data=object} "新的访问令牌"
// @Failure 401 {object} util.Response "令牌无效或已注销"
// @Router /api/token/refresh [post]
func (c *AuthController) Refresh(ctx *gin.Context) {
	var req RefreshRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	access, err := c.AuthService.Refresh(ctx.Request.Context(), req.Refresh)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}

	util.Success(ctx, gin.H{"access": access})
}

// Logout godoc
// @Summary 退出登录
// @Description 注销刷新令牌
// @Tags 认证
// @Accept  json
// @Param   body body RefreshRequest true "刷新令牌"
// @Security ApiKeyAuth
// @Success 205 "已注销"
// @Failure 401 {object} util.Response "令牌无效"
// @Router /api/logout [post]
func (c *AuthController) Logout(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	var req RefreshRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	if err := c.AuthService.Logout(ctx.Request.Context(), claims.UserID, req.Refresh); err != nil {
		util.RespondError(ctx, err)
		return
	}

	ctx.Status(http.StatusResetContent)
}
