package handler

import (
	"errors"
	"net/http"
	"strconv"

	"fin-advisor-go/internal/repository"
	"fin-advisor-go/internal/service"
	"fin-advisor-go/pkg/log"
	"fin-advisor-go/pkg/token"

	"github.com/gin-gonic/gin"
)

// RecommendationHandler 处理推荐相关的 API 请求。
type RecommendationHandler struct {
	service service.RecommendationService
}

// NewRecommendationHandler 创建一个新的 RecommendationHandler。
func NewRecommendationHandler(service service.RecommendationService) *RecommendationHandler {
	return &RecommendationHandler{service: service}
}

// Get 处理为当前用户计算推荐的请求。
func (h *RecommendationHandler) Get(c *gin.Context) {
	claims := c.MustGet("claims").(*token.CustomClaims)

	recs, degraded, err := h.service.Recommend(c.Request.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrPersonaNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"code":    http.StatusNotFound,
				"message": "Complete onboarding before requesting recommendations",
				"data":    nil,
			})
			return
		}
		log.Errorf("计算推荐失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    http.StatusInternalServerError,
			"message": "Failed to compute recommendations",
			"data":    nil,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "success",
		"data": gin.H{
			"recommendations": recs,
			"degraded":        degraded,
		},
	})
}

// History 处理获取历史推荐快照的请求。
func (h *RecommendationHandler) History(c *gin.Context) {
	claims := c.MustGet("claims").(*token.CustomClaims)

	limit := 10
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > 100 {
			c.JSON(http.StatusBadRequest, gin.H{
				"code":    http.StatusBadRequest,
				"message": "limit must be a positive integer up to 100",
				"data":    nil,
			})
			return
		}
		limit = parsed
	}

	snapshots, err := h.service.History(c.Request.Context(), claims.UserID, limit)
	if err != nil {
		log.Errorf("获取推荐历史失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    http.StatusInternalServerError,
			"message": "Failed to retrieve recommendation history",
			"data":    nil,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "success",
		"data":    snapshots,
	})
}
