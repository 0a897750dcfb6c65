package handler

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"fin-advisor-go/internal/service"
	"fin-advisor-go/pkg/log"
	"fin-advisor-go/pkg/token"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // 允许所有来源
	},
}

// AdvisoryHandler 负责处理咨询对话的 WebSocket 连接。
type AdvisoryHandler struct {
	advisoryService service.AdvisoryService
	jwtManager      *token.JWTManager
}

// NewAdvisoryHandler 创建一个新的 AdvisoryHandler。
func NewAdvisoryHandler(advisoryService service.AdvisoryService, jwtManager *token.JWTManager) *AdvisoryHandler {
	return &AdvisoryHandler{advisoryService: advisoryService, jwtManager: jwtManager}
}

// Handle 处理一个传入的 WebSocket 连接。
// 浏览器的 WebSocket API 无法自定义请求头，令牌放在路径参数中。
func (h *AdvisoryHandler) Handle(c *gin.Context) {
	tokenString := c.Param("token")
	claims, err := h.jwtManager.VerifyToken(tokenString)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"code": http.StatusUnauthorized, "message": "invalid token", "data": nil})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("WebSocket 升级失败", err)
		return
	}
	defer conn.Close()

	log.Infof("咨询 WebSocket 连接已建立，用户: %d", claims.UserID)

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			log.Warnf("从 WebSocket 读取消息失败: %v", err)
			break
		}

		question := strings.TrimSpace(string(message))
		if question == "" {
			continue
		}

		answer, degraded, err := h.advisoryService.Answer(c.Request.Context(), claims.UserID, question)
		if err != nil {
			log.Errorf("处理咨询问题失败: %v", err)
			h.writeJSON(conn, gin.H{"type": "error", "message": "The advisor is temporarily unavailable"})
			continue
		}

		h.writeJSON(conn, gin.H{
			"type":      "answer",
			"answer":    answer,
			"degraded":  degraded,
			"timestamp": time.Now().UnixMilli(),
		})
	}
}

func (h *AdvisoryHandler) writeJSON(conn *websocket.Conn, payload gin.H) {
	b, err := json.Marshal(payload)
	if err != nil {
		return
	}
	if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
		log.Warnf("向 WebSocket 写入消息失败: %v", err)
	}
}
