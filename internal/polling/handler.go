package polling

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// Handler exposes the polling transport's HTTP surface.
type Handler struct {
	store  MessageLog
	logger *slog.Logger
}

// NewHandler creates a Handler over the given store.
func NewHandler(store MessageLog) *Handler {
	return &Handler{store: store, logger: slog.Default()}
}

// Mount registers the /signaling routes.
func (h *Handler) Mount(r gin.IRouter) {
	r.POST("/signaling", h.post)
	r.GET("/signaling", h.get)
	r.DELETE("/signaling", h.clear)
}

type postRequest struct {
	SessionID string          `json:"sessionId" binding:"required"`
	Type      string          `json:"type" binding:"required"`
	Data      json.RawMessage `json:"data"`
}

func (h *Handler) post(c *gin.Context) {
	var req postRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !ValidType(req.Type) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid message type"})
		return
	}

	if err := h.store.Append(c.Request.Context(), req.SessionID, req.Type, req.Data); err != nil {
		h.logger.Error("append signaling message", "session", req.SessionID, "type", req.Type, "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store message"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *Handler) get(c *gin.Context) {
	sessionID := c.Query("sessionId")
	msgType := c.Query("type")
	if sessionID == "" || msgType == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing sessionId or type"})
		return
	}
	if !ValidType(msgType) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid message type"})
		return
	}
	lastIndex, _ := strconv.Atoi(c.DefaultQuery("lastIndex", "0"))

	messages, cursor, err := h.store.After(c.Request.Context(), sessionID, msgType, lastIndex)
	if err != nil {
		h.logger.Error("read signaling messages", "session", sessionID, "type", msgType, "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read messages"})
		return
	}
	if messages == nil {
		messages = []json.RawMessage{}
	}

	c.JSON(http.StatusOK, gin.H{
		"messages":  messages,
		"lastIndex": cursor,
	})
}

func (h *Handler) clear(c *gin.Context) {
	sessionID := c.Query("sessionId")
	if sessionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing sessionId"})
		return
	}

	if err := h.store.Clear(c.Request.Context(), sessionID); err != nil {
		if err == ErrSessionNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
			return
		}
		h.logger.Error("clear signaling session", "session", sessionID, "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to clear session"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}
