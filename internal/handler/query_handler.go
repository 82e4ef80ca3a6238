package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"doc-theme-go/internal/model"
	"doc-theme-go/internal/service"
	"doc-theme-go/pkg/log"
	"doc-theme-go/pkg/token"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // 允许所有来源
	},
}

// QueryHandler 结构体定义了查询相关的处理器。
type QueryHandler struct {
	queryService service.QueryService
	jwtManager   *token.JWTManager
}

// NewQueryHandler 创建一个新的 QueryHandler 实例。
func NewQueryHandler(queryService service.QueryService, jwtManager *token.JWTManager) *QueryHandler {
	return &QueryHandler{
		queryService: queryService,
		jwtManager:   jwtManager,
	}
}

// Query 处理一次同步查询请求。
func (h *QueryHandler) Query(c *gin.Context) {
	query := c.PostForm("query")
	log.Infof("[QueryHandler] 收到查询请求, query: '%s'", query)

	result, err := h.queryService.Query(c.Request.Context(), query)
	if err != nil {
		if errors.Is(err, service.ErrEmptyQuery) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Query cannot be empty"})
			return
		}
		log.Errorf("[QueryHandler] 查询处理失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, result)
}

// History 返回最近的查询历史。
func (h *QueryHandler) History(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit <= 0 {
		limit = 20
	}

	results, err := h.queryService.History(c.Request.Context(), limit)
	if err != nil {
		log.Errorf("[QueryHandler] 查询历史获取失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load query history"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"history": results, "count": len(results)})
}

// GetWebsocketToken 为流式查询签发一个短时会话令牌。
func (h *QueryHandler) GetWebsocketToken(c *gin.Context) {
	tokenString, sessionID, err := h.jwtManager.GenerateSessionToken()
	if err != nil {
		log.Errorf("[QueryHandler] 生成会话令牌失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate session token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": tokenString, "session_id": sessionID})
}

// Stream 处理一个流式查询的 WebSocket 连接。
// 每收到一条查询消息：逐文档推送 answer 帧，随后是 themes 帧与 completion 帧。
func (h *QueryHandler) Stream(c *gin.Context) {
	tokenString := c.Param("token")
	claims, err := h.jwtManager.VerifyToken(tokenString)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("WebSocket 升级失败", err)
		return
	}
	defer conn.Close()

	log.Infof("WebSocket 连接已建立, session: %s", claims.SessionID)

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			log.Warnf("从 WebSocket 读取消息失败: %v", err)
			break
		}

		query := string(message)
		log.Infof("[QueryHandler] 收到流式查询, session: %s, query: '%s'", claims.SessionID, query)

		onAnswer := func(answer model.DocumentAnswer) {
			writeFrame(conn, gin.H{"type": "answer", "data": answer})
		}

		result, err := h.queryService.QueryStream(c.Request.Context(), query, onAnswer)
		if err != nil {
			writeFrame(conn, gin.H{"type": "error", "message": err.Error()})
			writeCompletionFrame(conn)
			continue
		}

		writeFrame(conn, gin.H{
			"type": "themes",
			"data": gin.H{"themes": result.Themes, "synthesis": result.Synthesis},
		})
		writeCompletionFrame(conn)
	}
}

// writeFrame 序列化并发送一帧，失败只记日志。
func writeFrame(conn *websocket.Conn, frame gin.H) {
	if err := conn.WriteJSON(frame); err != nil {
		log.Warnf("[QueryHandler] WebSocket 发送帧失败: %v", err)
	}
}

// writeCompletionFrame 发送查询完成通知。
func writeCompletionFrame(conn *websocket.Conn) {
	writeFrame(conn, gin.H{
		"type":      "completion",
		"status":    "finished",
		"timestamp": time.Now().UnixMilli(),
	})
}
