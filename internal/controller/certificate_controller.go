package controller

import (
	"net/http"
	"strconv"

	"training_backend/internal/model"
	"training_backend/internal/service"
	"training_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type CertificateController struct {
	CertificateService *service.CertificateService
}

func NewCertificateController(certificateService *service.CertificateService) *CertificateController {
	return &CertificateController{CertificateService: certificateService}
}

type ResendCertificateRequest struct {
	CertificateType string `json:"certificateType" binding:"required"`
}

// @Summary 我的证书
// @Tags 证书
// @Produce json
// @Security BearerAuth
// @Success 200 {object} util.Response{data=[]service.CertificateView}
// @Router /api/certificates [get]
func (c *CertificateController) List(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	certs, err := c.CertificateService.ListForUser(ctx.Request.Context(), user.UserID)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"certificates": certs})
}

// @Summary 重新发送证书邮件
// @Description 发送指定类型最新一张证书
// @Tags 证书
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body ResendCertificateRequest true "证书类型 knowledge/certified"
// @Success 200 {object} util.Response
// @Failure 404 {object} util.Response "没有该类型证书"
// @Failure 502 {object} util.Response "邮件发送失败"
// @Router /api/certificates/resend [post]
func (c *CertificateController) Resend(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	var req ResendCertificateRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	err := c.CertificateService.ResendLatest(ctx.Request.Context(), user.UserID, model.CertificateType(req.CertificateType))
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"message": "Email enviado exitosamente"})
}

// @Summary 证书查看
// @Description 渲染证书 HTML，可通过 query 参数 token 鉴权
// @Tags 证书
// @Produce html
// @Security BearerAuth
// @Param id path int true "证书ID"
// @Success 200 {string} string "HTML"
// @Router /api/certificates/{id}/document [get]
func (c *CertificateController) Document(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	id, err := strconv.ParseUint(ctx.Param("id"), 10, 32)
	if err != nil {
		util.BadRequest(ctx, "invalid certificate id")
		return
	}

	doc, err := c.CertificateService.Document(ctx.Request.Context(), user.UserID, uint(id))
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	ctx.Data(http.StatusOK, util.MimeHTML, doc)
}

// @Summary 公开验证证书
// @Tags 证书
// @Produce json
// @Param code path string true "证书验证码"
// @Success 200 {object} util.Response{data=service.VerifiedCertificate}
// @Failure 404 {object} util.Response
// @Router /api/public/certificates/{code} [get]
func (c *CertificateController) Verify(ctx *gin.Context) {
	cert, err := c.CertificateService.FindByCode(ctx.Request.Context(), ctx.Param("code"))
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, cert)
}
