package controller

import (
	"training_backend/internal/service"
	"training_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type ProgressController struct {
	ProgressService *service.ProgressService
}

func NewProgressController(progressService *service.ProgressService) *ProgressController {
	return &ProgressController{ProgressService: progressService}
}

// MarkReadRequest
// swagger:model MarkReadRequest
type MarkReadRequest struct {
	ModuleID string `json:"moduleId" binding:"required"`
	TopicID  string `json:"topicId" binding:"required"`
}

// RateContentRequest rating 在服务层校验 1-5
type RateContentRequest struct {
	ModuleID string `json:"moduleId" binding:"required"`
	TopicID  string `json:"topicId" binding:"required"`
	Rating   int    `json:"rating"`
}

// @Summary 标记主题已读
// @Description 完成模块全部主题时自动发放知识证书
// @Tags 学习进度
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body MarkReadRequest true "模块和主题"
// @Success 200 {object} util.Response{data=service.MarkReadResult}
// @Failure 400 {object} util.Response
// @Router /api/progress/mark-read [post]
func (c *ProgressController) MarkRead(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	var req MarkReadRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	result, err := c.ProgressService.MarkTopicRead(ctx.Request.Context(), user.UserID, req.ModuleID, req.TopicID)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, result)
}

// @Summary 内容评分
// @Tags 学习进度
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body RateContentRequest true "评分 1-5"
// @Success 200 {object} util.Response
// @Failure 400 {object} util.Response
// @Router /api/progress/rate [post]
func (c *ProgressController) RateContent(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	var req RateContentRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	if err := c.ProgressService.RateContent(ctx.Request.Context(), user.UserID, req.ModuleID, req.TopicID, req.Rating); err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

// @Summary 获取学习进度快照
// @Tags 学习进度
// @Produce json
// @Security BearerAuth
// @Success 200 {object} util.Response{data=service.ProgressSnapshot}
// @Router /api/progress [get]
func (c *ProgressController) GetProgress(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	snapshot, err := c.ProgressService.GetProgressSnapshot(ctx.Request.Context(), user.UserID)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, snapshot)
}

// @Summary 已读主题列表
// @Tags 学习进度
// @Produce json
// @Security BearerAuth
// @Success 200 {object} util.Response
// @Router /api/progress/topics [get]
func (c *ProgressController) GetCompletedTopics(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	topics, err := c.ProgressService.ListCompletedTopics(ctx.Request.Context(), user.UserID)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, topics)
}

// @Summary 评分列表
// @Tags 学习进度
// @Produce json
// @Security BearerAuth
// @Success 200 {object} util.Response
// @Router /api/progress/ratings [get]
func (c *ProgressController) GetRatings(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	ratings, err := c.ProgressService.ListRatings(ctx.Request.Context(), user.UserID)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, ratings)
}

// @Summary 已完成模块
// @Tags 学习进度
// @Produce json
// @Security BearerAuth
// @Success 200 {object} util.Response
// @Router /api/progress/completed-modules [get]
func (c *ProgressController) GetCompletedModules(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	modules, err := c.ProgressService.ListCompletedModules(ctx.Request.Context(), user.UserID)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"completedModules": modules})
}
