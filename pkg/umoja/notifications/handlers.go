package notifications

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rukundo/umoja/pkg/umoja/auth"
	"github.com/rukundo/umoja/pkg/umoja/models"
	"github.com/rukundo/umoja/pkg/umoja/scope"
	"gorm.io/gorm"
)

// Handler handles notification requests
type Handler struct {
	db    *gorm.DB
	queue *Queue
}

// NewHandler creates a new notifications handler
func NewHandler(db *gorm.DB, queue *Queue) *Handler {
	return &Handler{db: db, queue: queue}
}

// NotificationResponse represents a notification in API responses
type NotificationResponse struct {
	ID        uint   `json:"id"`
	EventType string `json:"event_type"`
	EventID   uint   `json:"event_id"`
	Subject   string `json:"subject"`
	Message   string `json:"message"`
	Metadata  string `json:"metadata"`
	ReadAt    string `json:"read_at,omitempty"`
	CreatedAt string `json:"created_at"`
}

func toResponse(n models.Notification) NotificationResponse {
	resp := NotificationResponse{
		ID:        n.ID,
		EventType: string(n.EventType),
		EventID:   n.EventID,
		Subject:   n.Subject,
		Message:   n.Message,
		Metadata:  n.Metadata,
		CreatedAt: n.CreatedAt.Format(time.RFC3339),
	}
	if n.ReadAt != nil {
		resp.ReadAt = n.ReadAt.Format(time.RFC3339)
	}
	return resp
}

// List returns the current user's notifications
// @Summary List notifications
// @Description Get the current user's notifications, newest first
// @Tags notifications
// @Produce json
// @Success 200 {array} NotificationResponse
// @Security BearerAuth
// @Router /notifications [get]
func (h *Handler) List(c *gin.Context) {
	userID, _ := auth.GetUserID(c)
	s, _ := auth.GetScope(c)

	var notifs []models.Notification
	err := h.db.Scopes(s.Filter(scope.EntityNotification)).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&notifs).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch notifications"})
		return
	}

	out := make([]NotificationResponse, len(notifs))
	for i, n := range notifs {
		out[i] = toResponse(n)
	}
	c.JSON(http.StatusOK, out)
}

// UnreadCount returns the number of unread notifications
// @Summary Unread notification count
// @Tags notifications
// @Produce json
// @Success 200 {object} map[string]int64
// @Security BearerAuth
// @Router /notifications/unread_count [get]
func (h *Handler) UnreadCount(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	var count int64
	err := h.db.Model(&models.Notification{}).
		Where("user_id = ? AND read_at IS NULL", userID).
		Count(&count).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count notifications"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"unread": count})
}

// MarkRead marks a notification read and triggers the acknowledgment rollup
// @Summary Mark a notification read
// @Description Set the notification's read timestamp. For attendance alerts,
// @Description the first read triggers the university acknowledgment rollup.
// @Tags notifications
// @Produce json
// @Success 200 {object} NotificationResponse
// @Failure 404 {object} map[string]string "Notification not found"
// @Security BearerAuth
// @Router /notifications/{id}/read [post]
func (h *Handler) MarkRead(c *gin.Context) {
	userID, _ := auth.GetUserID(c)
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid notification ID"})
		return
	}

	var notif models.Notification
	if err := h.db.Where("user_id = ?", userID).First(&notif, uint(id)).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Notification not found"})
		return
	}

	// Only the first read transitions the notification and fires the rollup.
	if notif.ReadAt == nil {
		now := time.Now().UTC()
		if err := h.db.Model(&notif).Update("read_at", now).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to mark notification read"})
			return
		}
		notif.ReadAt = &now
		h.queue.NotificationRead(notif.ID, userID)
	}

	c.JSON(http.StatusOK, toResponse(notif))
}

// Delete removes a notification owned by the current user
// @Summary Delete a notification
// @Tags notifications
// @Produce json
// @Success 200 {object} map[string]string
// @Failure 404 {object} map[string]string "Notification not found"
// @Security BearerAuth
// @Router /notifications/{id} [delete]
func (h *Handler) Delete(c *gin.Context) {
	userID, _ := auth.GetUserID(c)
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid notification ID"})
		return
	}

	var notif models.Notification
	if err := h.db.Where("user_id = ?", userID).First(&notif, uint(id)).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Notification not found"})
		return
	}

	if err := h.db.Delete(&notif).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete notification"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Notification deleted"})
}

// RegisterRoutes registers notification routes on the given router group
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.GET("/unread_count", h.UnreadCount)
	rg.POST("/:id/read", h.MarkRead)
	rg.DELETE("/:id", h.Delete)
}
