package controller

import (
	"io"

	"ucode_backend/internal/model"
	"ucode_backend/internal/service"
	"ucode_backend/internal/util"

	"github.com/gin-gonic/gin"
)

// 判分请求体上限
const maxAnswerBytes = 256 << 10

type TaskController struct {
	ScoringService *service.ScoringService
	CodingService  *service.CodingService
}

func NewTaskController(scoringService *service.ScoringService, codingService *service.CodingService) *TaskController {
	return &TaskController{
		ScoringService: scoringService,
		CodingService:  codingService,
	}
}

// CheckTask godoc
// @Summary 提交答案
// @Description 单选和多选题即时判分；编程题创建提交记录并异步判题，返回 202
// @Tags 判分
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param componentId path int true "组件ID"
// @Param body body service.TaskAnswer true "答案"
// @Success 200 {object} util.Response{data=service.TaskCheckResult}
// @Success 202 {object} util.Response{data=model.CodingSubmission} "编程题已进入判题队列"
// @Failure 400 {object} util.Response "答案格式错误或未开始课时"
// @Failure 404 {object} util.Response "组件不存在"
// @Router /api/task-check/{componentId} [post]
func (c *TaskController) CheckTask(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}
	componentID, ok := idParam(ctx, "componentId")
	if !ok {
		return
	}

	raw, err := io.ReadAll(io.LimitReader(ctx.Request.Body, maxAnswerBytes))
	if err != nil {
		util.BadRequest(ctx, "failed to read body")
		return
	}
	answer, err := service.ParseTaskAnswer(raw)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}

	component, err := c.ScoringService.FindComponent(componentID)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}

	if component.Kind == model.KindCoding {
		sub, err := c.CodingService.Submit(ctx.Request.Context(), userID, component, answer.Code)
		if err != nil {
			util.RespondError(ctx, err)
			return
		}
		util.Accepted(ctx, sub)
		return
	}

	result, err := c.ScoringService.CheckTask(ctx.Request.Context(), userID, component, answer, raw)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, result)
}

// GetSubmission godoc
// @Summary 查询编程题提交
// @Description 轮询判题结果，finished 为 true 时结果已写入进度
// @Tags 判分
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "提交ID"
// @Success 200 {object} util.Response{data=service.CodingSubmissionView}
// @Failure 404 {object} util.Response "提交不存在"
// @Router /api/coding-submissions/{id} [get]
func (c *TaskController) GetSubmission(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}
	id, ok := idParam(ctx, "id")
	if !ok {
		return
	}

	sub, err := c.CodingService.GetSubmission(userID, id)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, sub)
}
