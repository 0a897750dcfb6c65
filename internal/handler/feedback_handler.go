package handler

import (
	"errors"
	"net/http"

	"fin-advisor-go/internal/service"
	"fin-advisor-go/pkg/log"
	"fin-advisor-go/pkg/token"

	"github.com/gin-gonic/gin"
)

// FeedbackHandler 处理推荐反馈相关的 API 请求。
type FeedbackHandler struct {
	service service.FeedbackService
}

// NewFeedbackHandler 创建一个新的 FeedbackHandler。
func NewFeedbackHandler(service service.FeedbackService) *FeedbackHandler {
	return &FeedbackHandler{service: service}
}

type feedbackRequest struct {
	ProductID  uint  `json:"productId" binding:"required"`
	IsRelevant *bool `json:"isRelevant" binding:"required"`
}

// Submit 处理提交一条推荐反馈的请求。
func (h *FeedbackHandler) Submit(c *gin.Context) {
	claims := c.MustGet("claims").(*token.CustomClaims)

	var req feedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    http.StatusBadRequest,
			"message": "productId and isRelevant are required",
			"data":    nil,
		})
		return
	}

	if err := h.service.Record(c.Request.Context(), claims.UserID, req.ProductID, *req.IsRelevant); err != nil {
		if errors.Is(err, service.ErrUnknownProduct) {
			c.JSON(http.StatusNotFound, gin.H{
				"code":    http.StatusNotFound,
				"message": "Unknown product",
				"data":    nil,
			})
			return
		}
		log.Errorf("保存反馈失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    http.StatusInternalServerError,
			"message": "Failed to save feedback",
			"data":    nil,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "success",
		"data":    nil,
	})
}
