package controller

import (
	"fmt"
	"net/http"
	"strconv"

	"ucode_backend/internal/service"
	"ucode_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type CourseController struct {
	CourseService *service.CourseService
	LessonService *service.LessonService
}

func NewCourseController(courseService *service.CourseService, lessonService *service.LessonService) *CourseController {
	return &CourseController{
		CourseService: courseService,
		LessonService: lessonService,
	}
}

// ListCourses godoc
// @Summary 课程列表
// @Description 按创建时间倒序，附带创建至今的天数、月数和年数；携带令牌时标记是否已选
// @Tags 课程
// @Produce json
// @Success 200 {object} util.Response{data=[]service.CourseView}
// @Router /api/courses [get]
func (c *CourseController) ListCourses(ctx *gin.Context) {
	var userID uint
	if claims := util.GetUserFromContext(ctx); claims != nil {
		userID = claims.UserID
	}
	courses, err := c.CourseService.ListCourses(userID)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, courses)
}

// EnrolledCourses godoc
// @Summary 已选课程
// @Tags 课程
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=service.EnrolledCourses}
// @Router /api/courses/enrolled [get]
func (c *CourseController) EnrolledCourses(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}

	result, err := c.CourseService.EnrolledCourses(userID)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, result)
}

// GetCourse godoc
// @Summary 课程详情
// @Description 查看课程详情时自动选课
// @Tags 课程
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "课程ID"
// @Success 200 {object} util.Response{data=service.CourseDetail}
// @Failure 404 {object} util.Response "课程不存在"
// @Router /api/courses/{id} [get]
func (c *CourseController) GetCourse(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}
	courseID, ok := idParam(ctx, "id")
	if !ok {
		return
	}

	detail, err := c.CourseService.GetCourseDetail(userID, courseID)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, detail)
}

// CourseLessons godoc
// @Summary 课程课时列表
// @Description 按顺序号排列，附带当前用户的课时进度
// @Tags 课程
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "课程ID"
// @Success 200 {object} util.Response{data=[]service.LessonSummary}
// @Router /api/courses/{id}/lessons [get]
func (c *CourseController) CourseLessons(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}
	courseID, ok := idParam(ctx, "id")
	if !ok {
		return
	}

	lessons, err := c.CourseService.CourseLessons(userID, courseID)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, lessons)
}

// NextLesson godoc
// @Summary 下一课时
// @Description 顺序号大于给定值的第一个课时，没有时 data 为 null
// @Tags 课程
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "课程ID"
// @Param serial path int true "当前课时顺序号"
// @Success 200 {object} util.Response{data=model.Lesson}
// @Router /api/courses/{id}/next-lesson/{serial} [get]
func (c *CourseController) NextLesson(ctx *gin.Context) {
	courseID, ok := idParam(ctx, "id")
	if !ok {
		return
	}
	serial, err := strconv.Atoi(ctx.Param("serial"))
	if err != nil {
		util.BadRequest(ctx, "invalid serial")
		return
	}

	lesson, err := c.LessonService.NextLesson(courseID, serial)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, lesson)
}

// CreateCourse godoc
// @Summary 创建课程
// @Tags 课程管理
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param body body service.CourseInput true "课程信息"
// @Success 201 {object} util.Response{data=service.CourseView}
// @Failure 400 {object} util.Response "请求参数错误"
// @Failure 403 {object} util.Response "需要员工权限"
// @Router /api/courses [post]
func (c *CourseController) CreateCourse(ctx *gin.Context) {
	var req service.CourseInput
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	course, err := c.CourseService.CreateCourse(&req)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Created(ctx, course)
}

// UpdateCourse godoc
// @Summary 更新课程
// @Tags 课程管理
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "课程ID"
// @Param body body service.CourseInput true "课程信息"
// @Success 200 {object} util.Response{data=service.CourseView}
// @Router /api/courses/{id} [put]
func (c *CourseController) UpdateCourse(ctx *gin.Context) {
	courseID, ok := idParam(ctx, "id")
	if !ok {
		return
	}

	var req service.CourseInput
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	course, err := c.CourseService.UpdateCourse(courseID, &req)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, course)
}

// DeleteCourse godoc
// @Summary 删除课程
// @Description 级联删除课时、选课记录、证书和用户进度
// @Tags 课程管理
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "课程ID"
// @Success 200 {object} util.Response
// @Router /api/courses/{id} [delete]
func (c *CourseController) DeleteCourse(ctx *gin.Context) {
	courseID, ok := idParam(ctx, "id")
	if !ok {
		return
	}

	if err := c.CourseService.DeleteCourse(courseID); err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"id": courseID})
}

// UploadBanner godoc
// @Summary 上传课程封面
// @Tags 课程管理
// @Accept multipart/form-data
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "课程ID"
// @Param file formData file true "封面图片"
// @Success 200 {object} util.Response{data=model.Course}
// @Router /api/courses/{id}/banner [post]
func (c *CourseController) UploadBanner(ctx *gin.Context) {
	courseID, ok := idParam(ctx, "id")
	if !ok {
		return
	}

	file, err := ctx.FormFile("file")
	if err != nil {
		util.BadRequest(ctx, "file is required")
		return
	}
	contentType := file.Header.Get("Content-Type")
	if !service.IsImage(contentType) {
		util.BadRequest(ctx, "file must be an image")
		return
	}

	src, err := file.Open()
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	defer src.Close()

	course, err := c.CourseService.UploadBanner(ctx.Request.Context(), courseID, file.Filename, src, file.Size, contentType)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, course)
}

// ExportProgress godoc
// @Summary 导出学员进度
// @Description 以 xlsx 格式导出课程全部学员的进度
// @Tags 课程管理
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Security ApiKeyAuth
// @Param id path int true "课程ID"
// @Success 200 {file} file
// @Router /api/courses/{id}/progress/export [get]
func (c *CourseController) ExportProgress(ctx *gin.Context) {
	courseID, ok := idParam(ctx, "id")
	if !ok {
		return
	}

	filename, data, err := c.CourseService.ExportProgress(courseID)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}

	ctx.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	ctx.Data(http.StatusOK, util.MimeXLSX, data)
}
