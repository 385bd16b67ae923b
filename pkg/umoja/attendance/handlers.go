package attendance

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rukundo/umoja/pkg/umoja/auth"
	"github.com/rukundo/umoja/pkg/umoja/models"
	"github.com/rukundo/umoja/pkg/umoja/notifications"
	"github.com/rukundo/umoja/pkg/umoja/scope"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Handler handles attendance event requests
type Handler struct {
	db    *gorm.DB
	queue *notifications.Queue
}

// NewHandler creates a new attendance handler
func NewHandler(db *gorm.DB, queue *notifications.Queue) *Handler {
	return &Handler{db: db, queue: queue}
}

// CreateEventRequest represents the request to create an attendance event
type CreateEventRequest struct {
	Name         string `json:"name" binding:"required,min=1,max=200"`
	Type         string `json:"type" binding:"required,oneof=permanent training"`
	Date         string `json:"date" binding:"required"`
	RegionID     uint   `json:"region_id" binding:"required"`
	UniversityID uint   `json:"university_id" binding:"required"`
}

// RecordAttendanceRequest represents the request to record statuses for an event
type RecordAttendanceRequest struct {
	Records []AttendanceEntry `json:"records" binding:"required,min=1,dive"`
}

// AttendanceEntry is one member's status in a recording request
type AttendanceEntry struct {
	MemberID uint   `json:"member_id" binding:"required"`
	Status   string `json:"status" binding:"required,oneof=present absent excuse"`
}

// EventResponse represents an event in API responses
type EventResponse struct {
	ID           uint   `json:"id"`
	Name         string `json:"name"`
	Type         string `json:"type"`
	Date         string `json:"date"`
	RegionID     uint   `json:"region_id"`
	UniversityID uint   `json:"university_id"`
}

func toResponse(e models.Event) EventResponse {
	return EventResponse{
		ID:           e.ID,
		Name:         e.Name,
		Type:         string(e.Type),
		Date:         e.Date.Format("2006-01-02"),
		RegionID:     e.RegionID,
		UniversityID: e.UniversityID,
	}
}

// List returns the events visible to the caller's scope
// @Summary List attendance events
// @Tags attendance
// @Produce json
// @Success 200 {array} EventResponse
// @Security BearerAuth
// @Router /events [get]
func (h *Handler) List(c *gin.Context) {
	s, _ := auth.GetScope(c)
	if !s.Allowed(scope.EntityEvent) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Access denied"})
		return
	}

	var events []models.Event
	err := h.db.Scopes(s.Filter(scope.EntityEvent)).Order("date DESC").Find(&events).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch events"})
		return
	}

	out := make([]EventResponse, len(events))
	for i, e := range events {
		out[i] = toResponse(e)
	}
	c.JSON(http.StatusOK, out)
}

// Get returns one event within the caller's scope
// @Summary Get an attendance event
// @Tags attendance
// @Produce json
// @Success 200 {object} EventResponse
// @Failure 404 {object} map[string]string "Event not found"
// @Security BearerAuth
// @Router /events/{id} [get]
func (h *Handler) Get(c *gin.Context) {
	s, _ := auth.GetScope(c)
	if !s.Allowed(scope.EntityEvent) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Access denied"})
		return
	}

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid event ID"})
		return
	}

	var event models.Event
	if err := h.db.Scopes(s.Filter(scope.EntityEvent)).First(&event, uint(id)).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Event not found"})
		return
	}
	c.JSON(http.StatusOK, toResponse(event))
}

// Create creates an attendance event under a university within scope
// @Summary Create an attendance event
// @Tags attendance
// @Accept json
// @Produce json
// @Success 201 {object} EventResponse
// @Failure 400 {object} map[string]string "Validation error"
// @Failure 403 {object} map[string]string "Access denied"
// @Security BearerAuth
// @Router /events [post]
func (h *Handler) Create(c *gin.Context) {
	s, _ := auth.GetScope(c)
	if !s.Allowed(scope.EntityEvent) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Access denied"})
		return
	}

	var req CreateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Date must be YYYY-MM-DD"})
		return
	}

	// Creating an event takes university-level (or higher) authority; group
	// leaders only record attendance on existing events.
	if !s.CanAct(scope.EntityEvent, scope.OrgRefs{RegionID: req.RegionID, UniversityID: req.UniversityID}) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Access denied"})
		return
	}

	// The owning university must belong to the given region.
	var uni models.University
	if err := h.db.First(&uni, req.UniversityID).Error; err != nil || uni.RegionID != req.RegionID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "University does not belong to the given region"})
		return
	}

	event := models.Event{
		Name:         req.Name,
		Type:         models.EventType(req.Type),
		Date:         date,
		RegionID:     req.RegionID,
		UniversityID: req.UniversityID,
	}
	if err := h.db.Create(&event).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create event"})
		return
	}
	c.JSON(http.StatusCreated, toResponse(event))
}

// Record records per-member statuses for an event and triggers the
// notification fan-out. Recording succeeds or fails on its own; the fan-out
// is handed to the cascade queue and can never fail the recording.
// @Summary Record attendance for an event
// @Tags attendance
// @Accept json
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]string "Validation error"
// @Failure 404 {object} map[string]string "Event not found"
// @Security BearerAuth
// @Router /events/{id}/attendance [post]
func (h *Handler) Record(c *gin.Context) {
	s, _ := auth.GetScope(c)
	if !s.Allowed(scope.EntityEvent) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Access denied"})
		return
	}

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid event ID"})
		return
	}

	var event models.Event
	if err := h.db.Scopes(s.Filter(scope.EntityEvent)).First(&event, uint(id)).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Event not found"})
		return
	}

	var req RecordAttendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// Every member in the batch must be visible to the caller's scope;
	// recording for someone else's members is rejected wholesale.
	memberIDs := make([]uint, len(req.Records))
	for i, r := range req.Records {
		memberIDs[i] = r.MemberID
	}
	var visible int64
	err = h.db.Model(&models.Member{}).Scopes(s.Filter(scope.EntityMember)).
		Where("id IN ?", memberIDs).Count(&visible).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to verify members"})
		return
	}
	if visible != int64(len(memberIDs)) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Access denied"})
		return
	}

	err = h.db.Transaction(func(tx *gorm.DB) error {
		for _, r := range req.Records {
			record := models.AttendanceRecord{
				EventID:  event.ID,
				MemberID: r.MemberID,
				Status:   models.AttendanceStatus(r.Status),
			}
			// Re-recording overwrites the previous status for the member.
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "event_id"}, {Name: "member_id"}},
				DoUpdates: clause.AssignmentColumns([]string{"status", "updated_at"}),
			}).Create(&record).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to record attendance"})
		return
	}

	h.queue.AttendanceRecorded(event.ID)

	c.JSON(http.StatusOK, gin.H{"message": "Attendance recorded", "count": len(req.Records)})
}

// ReportResponse summarizes attendance for one event within scope
type ReportResponse struct {
	EventID uint  `json:"event_id"`
	Present int64 `json:"present"`
	Absent  int64 `json:"absent"`
	Excused int64 `json:"excused"`
}

// Report returns a scoped attendance summary for an event
// @Summary Attendance report for an event
// @Tags attendance
// @Produce json
// @Success 200 {object} ReportResponse
// @Failure 404 {object} map[string]string "Event not found"
// @Security BearerAuth
// @Router /events/{id}/report [get]
func (h *Handler) Report(c *gin.Context) {
	s, _ := auth.GetScope(c)
	if !s.Allowed(scope.EntityReport) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Access denied"})
		return
	}

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid event ID"})
		return
	}

	var event models.Event
	if err := h.db.Scopes(s.Filter(scope.EntityEvent)).First(&event, uint(id)).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Event not found"})
		return
	}

	resp := ReportResponse{EventID: event.ID}
	statuses := map[models.AttendanceStatus]*int64{
		models.StatusPresent: &resp.Present,
		models.StatusAbsent:  &resp.Absent,
		models.StatusExcuse:  &resp.Excused,
	}
	for status, target := range statuses {
		// The summary only counts members the caller can see.
		err := h.db.Model(&models.Member{}).Scopes(s.Filter(scope.EntityMember)).
			Joins("JOIN attendance_records ON attendance_records.member_id = members.id").
			Where("attendance_records.event_id = ? AND attendance_records.status = ?", event.ID, status).
			Count(target).Error
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to build report"})
			return
		}
	}
	c.JSON(http.StatusOK, resp)
}

// RegisterRoutes registers attendance routes on the given router group
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.POST("", h.Create)
	rg.GET("/:id", h.Get)
	rg.POST("/:id/attendance", h.Record)
	rg.GET("/:id/report", h.Report)
}
