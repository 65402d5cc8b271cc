package controller

import (
	"fmt"
	"net/http"

	"ucode_backend/internal/service"
	"ucode_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type CertificateController struct {
	CertificateService *service.CertificateService
}

func NewCertificateController(certificateService *service.CertificateService) *CertificateController {
	return &CertificateController{CertificateService: certificateService}
}

// DownloadCertificate godoc
// @Summary 下载结业证书
// @Description 课程完成后签发证书（重复调用返回同一张），以 PDF 下载
// @Tags 证书
// @Produce application/pdf
// @Security ApiKeyAuth
// @Param id path int true "课程ID"
// @Success 200 {file} file
// @Failure 400 {object} util.Response "未选课或课程未完成"
// @Failure 404 {object} util.Response "课程不存在"
// @Router /api/courses/{id}/certificate [get]
func (c *CertificateController) DownloadCertificate(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}
	courseID, ok := idParam(ctx, "id")
	if !ok {
		return
	}

	cert, pdf, err := c.CertificateService.Download(ctx.Request.Context(), userID, courseID)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}

	ctx.Header("Content-Disposition", fmt.Sprintf("attachment; filename=certificate-%s.pdf", cert.ID))
	ctx.Header("X-Certificate-Id", cert.ID)
	ctx.Data(http.StatusOK, util.MimePDF, pdf)
}

// VerifyCertificate godoc
// @Summary 校验证书
// @Description 公开接口，按证书 ID 查询持有人和课程
// @Tags 证书
// @Produce json
// @Param id path string true "证书ID"
// @Success 200 {object} util.Response{data=service.CertificateVerification}
// @Failure 404 {object} util.Response "证书不存在"
// @Router /api/verify-certificate/{id} [get]
func (c *CertificateController) VerifyCertificate(ctx *gin.Context) {
	id := ctx.Param("id")
	if id == "" {
		util.BadRequest(ctx, "invalid id")
		return
	}

	result, err := c.CertificateService.Verify(id)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, result)
}
