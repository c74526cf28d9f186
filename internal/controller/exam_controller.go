package controller

import (
	"strconv"

	"training_backend/internal/service"
	"training_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type ExamController struct {
	ExamService *service.ExamService
}

func NewExamController(examService *service.ExamService) *ExamController {
	return &ExamController{ExamService: examService}
}

// SubmitExamRequest answers 的键为题号，值为所选选项下标
// swagger:model SubmitExamRequest
type SubmitExamRequest struct {
	Answers map[int]int `json:"answers"`
}

// @Summary 提交期末考试
// @Description 得分不低于及格线时发放认证证书；已通过的用户再次提交不会重复记录
// @Tags 考试
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body SubmitExamRequest true "答卷"
// @Success 200 {object} util.Response{data=service.ExamResult}
// @Failure 400 {object} util.Response
// @Router /api/exam/submit [post]
func (c *ExamController) Submit(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	var req SubmitExamRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	result, err := c.ExamService.Submit(ctx.Request.Context(), user.UserID, req.Answers)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, result)
}

// @Summary 考试记录
// @Tags 考试
// @Produce json
// @Security BearerAuth
// @Success 200 {object} util.Response
// @Router /api/exam/attempts [get]
func (c *ExamController) ListAttempts(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	attempts, err := c.ExamService.Attempts(ctx.Request.Context(), user.UserID)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, attempts)
}

// @Summary 单次考试的逐题作答
// @Tags 考试
// @Produce json
// @Security BearerAuth
// @Param id path int true "考试记录ID"
// @Success 200 {object} util.Response
// @Router /api/exam/attempts/{id}/answers [get]
func (c *ExamController) ListAttemptAnswers(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	id, err := strconv.ParseUint(ctx.Param("id"), 10, 32)
	if err != nil {
		util.BadRequest(ctx, "invalid attempt id")
		return
	}

	answers, err := c.ExamService.AttemptAnswers(ctx.Request.Context(), user.UserID, uint(id))
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, answers)
}
