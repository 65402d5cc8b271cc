package controller

import (
	"ucode_backend/internal/util"

	"github.com/gin-gonic/gin"
)

// idParam 解析路径中的 ID，非法时直接返回 400
func idParam(ctx *gin.Context, name string) (uint, bool) {
	id := util.MustParseUint(ctx.Param(name))
	if id == 0 {
		util.BadRequest(ctx, "invalid "+name)
		return 0, false
	}
	return id, true
}

// currentUserID 认证中间件之后调用
func currentUserID(ctx *gin.Context) (uint, bool) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return 0, false
	}
	return claims.UserID, true
}
