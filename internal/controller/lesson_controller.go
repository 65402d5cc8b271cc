package controller

import (
	"ucode_backend/internal/service"
	"ucode_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type LessonController struct {
	LessonService  *service.LessonService
	ScoringService *service.ScoringService
}

func NewLessonController(lessonService *service.LessonService, scoringService *service.ScoringService) *LessonController {
	return &LessonController{
		LessonService:  lessonService,
		ScoringService: scoringService,
	}
}

// GetLesson godoc
// @Summary 课时详情
// @Description 返回课时、全部组件以及当前用户的得分
// @Tags 课时
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "课时ID"
// @Success 200 {object} util.Response{data=service.LessonView}
// @Failure 404 {object} util.Response "课时不存在"
// @Router /api/lessons/{id} [get]
func (c *LessonController) GetLesson(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}
	lessonID, ok := idParam(ctx, "id")
	if !ok {
		return
	}

	lesson, err := c.LessonService.GetLesson(userID, lessonID)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, lesson)
}

// SaveLesson godoc
// @Summary 创建或替换课时
// @Description 带 id 且课时存在时整体替换，已完成该课时用户的课程进度会先扣除原满分
// @Tags 课程管理
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param body body service.LessonInput true "课时及组件"
// @Success 201 {object} util.Response{data=service.LessonView}
// @Failure 400 {object} util.Response "校验失败，data.errors 给出字段级错误"
// @Router /api/lessons [post]
func (c *LessonController) SaveLesson(ctx *gin.Context) {
	var req service.LessonInput
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	lesson, err := c.LessonService.SaveLesson(&req)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Created(ctx, lesson)
}

// DeleteLesson godoc
// @Summary 删除课时
// @Tags 课程管理
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "课时ID"
// @Success 200 {object} util.Response
// @Router /api/lessons/{id} [delete]
func (c *LessonController) DeleteLesson(ctx *gin.Context) {
	lessonID, ok := idParam(ctx, "id")
	if !ok {
		return
	}

	if err := c.LessonService.DeleteLesson(lessonID); err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"id": lessonID})
}

// StartLesson godoc
// @Summary 开始课时
// @Description 重复调用返回已有记录；视频和文本组件在开始时计分
// @Tags 课时
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "课时ID"
// @Success 201 {object} util.Response{data=service.LessonStartResult} "新开始"
// @Success 200 {object} util.Response{data=service.LessonStartResult} "已开始过"
// @Router /api/lessons/{id}/start [post]
func (c *LessonController) StartLesson(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}
	lessonID, ok := idParam(ctx, "id")
	if !ok {
		return
	}

	result, err := c.ScoringService.StartLesson(ctx.Request.Context(), userID, lessonID)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	if result.AlreadyStarted {
		util.Success(ctx, result)
		return
	}
	util.Created(ctx, result)
}
