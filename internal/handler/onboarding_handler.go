// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"errors"
	"net/http"

	"fin-advisor-go/internal/repository"
	"fin-advisor-go/internal/service"
	"fin-advisor-go/pkg/log"
	"fin-advisor-go/pkg/token"

	"github.com/gin-gonic/gin"
)

// OnboardingHandler 处理引导会话相关的 API 请求。
type OnboardingHandler struct {
	service service.OnboardingService
}

// NewOnboardingHandler 创建一个新的 OnboardingHandler。
func NewOnboardingHandler(service service.OnboardingService) *OnboardingHandler {
	return &OnboardingHandler{service: service}
}

// Start 处理开启新引导会话的请求。
func (h *OnboardingHandler) Start(c *gin.Context) {
	claims := c.MustGet("claims").(*token.CustomClaims)

	session, greeting, err := h.service.Start(c.Request.Context(), claims.UserID)
	if err != nil {
		log.Errorf("开启引导会话失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    http.StatusInternalServerError,
			"message": "Failed to start onboarding session",
			"data":    nil,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "success",
		"data": gin.H{
			"sessionId": session.ID,
			"greeting":  greeting,
			"turnCount": session.UserTurnCount,
			"complete":  session.Complete,
		},
	})
}

type advanceRequest struct {
	SessionID string `json:"sessionId" binding:"required"`
	Message   string `json:"message" binding:"required"`
}

// Advance 处理向会话提交一条用户消息的请求。
func (h *OnboardingHandler) Advance(c *gin.Context) {
	claims := c.MustGet("claims").(*token.CustomClaims)

	var req advanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    http.StatusBadRequest,
			"message": "sessionId and message are required",
			"data":    nil,
		})
		return
	}

	result, err := h.service.Advance(c.Request.Context(), req.SessionID, claims.UserID, req.Message)
	if err != nil {
		h.writeAdvanceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "success",
		"data": gin.H{
			"reply":     result.Reply,
			"turnCount": result.Session.UserTurnCount,
			"complete":  result.Session.Complete,
			"degraded":  result.Degraded,
			"saved":     result.Saved,
		},
	})
}

func (h *OnboardingHandler) writeAdvanceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, repository.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"code":    http.StatusNotFound,
			"message": "Session not found or expired",
			"data":    nil,
		})
	case errors.Is(err, service.ErrSessionComplete):
		c.JSON(http.StatusConflict, gin.H{
			"code":    http.StatusConflict,
			"message": "Session is already complete",
			"data":    nil,
		})
	default:
		log.Errorf("推进引导会话失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    http.StatusInternalServerError,
			"message": "Failed to advance onboarding session",
			"data":    nil,
		})
	}
}

type finalizeRequest struct {
	SessionID string `json:"sessionId" binding:"required"`
}

// Finalize 处理从已完成会话抽取画像的请求。
func (h *OnboardingHandler) Finalize(c *gin.Context) {
	claims := c.MustGet("claims").(*token.CustomClaims)

	var req finalizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    http.StatusBadRequest,
			"message": "sessionId is required",
			"data":    nil,
		})
		return
	}

	persona, err := h.service.Finalize(c.Request.Context(), req.SessionID, claims.UserID)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrSessionNotFound):
			c.JSON(http.StatusNotFound, gin.H{
				"code":    http.StatusNotFound,
				"message": "Session not found or expired",
				"data":    nil,
			})
		case errors.Is(err, service.ErrSessionNotComplete):
			c.JSON(http.StatusConflict, gin.H{
				"code":    http.StatusConflict,
				"message": "Session is not complete yet",
				"data":    nil,
			})
		default:
			log.Errorf("定稿引导会话失败: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{
				"code":    http.StatusInternalServerError,
				"message": "Failed to finalize onboarding session",
				"data":    nil,
			})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "success",
		"data": gin.H{
			"goals":         persona.GoalList(),
			"riskTolerance": persona.RiskTolerance,
			"timeHorizon":   persona.TimeHorizon,
			"interests":     persona.Interests,
			"completedAt":   persona.CompletedAt,
		},
	})
}
