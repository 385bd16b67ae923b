package universities

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rukundo/umoja/pkg/umoja/auth"
	"github.com/rukundo/umoja/pkg/umoja/models"
	"github.com/rukundo/umoja/pkg/umoja/scope"
	"gorm.io/gorm"
)

// Handler handles university requests
type Handler struct {
	db *gorm.DB
}

// NewHandler creates a new universities handler
func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db}
}

// CreateUniversityRequest represents the request to create a university
type CreateUniversityRequest struct {
	Name     string `json:"name" binding:"required,min=1,max=100"`
	RegionID uint   `json:"region_id" binding:"required"`
}

// UpdateUniversityRequest represents the request to update a university
type UpdateUniversityRequest struct {
	Name     string `json:"name" binding:"omitempty,min=1,max=100"`
	RegionID uint   `json:"region_id"`
}

// UniversityResponse represents a university in API responses
type UniversityResponse struct {
	ID         uint   `json:"id"`
	Name       string `json:"name"`
	RegionID   uint   `json:"region_id"`
	GroupCount int64  `json:"group_count,omitempty"`
}

// parseRequestedRegion reads the optional ?region_id= filter and checks it
// against the scope bound. A requested id outside the scope is denied, never
// silently narrowed or widened.
func parseRequestedRegion(c *gin.Context, s scope.Scope) (uint, bool) {
	raw := c.Query("region_id")
	if raw == "" {
		return 0, true
	}
	parsed, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid region ID"})
		return 0, false
	}
	if err := s.CheckParam(uint(parsed), s.RegionID); err != nil {
		c.JSON(http.StatusForbidden, gin.H{"error": "Access denied"})
		return 0, false
	}
	return uint(parsed), true
}

// List returns the universities visible to the caller's scope
// @Summary List universities
// @Tags universities
// @Produce json
// @Param region_id query int false "Filter by region (must be within scope)"
// @Success 200 {array} UniversityResponse
// @Failure 403 {object} map[string]string "Access denied"
// @Security BearerAuth
// @Router /universities [get]
func (h *Handler) List(c *gin.Context) {
	s, _ := auth.GetScope(c)
	if !s.Allowed(scope.EntityUniversity) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Access denied"})
		return
	}

	regionID, ok := parseRequestedRegion(c, s)
	if !ok {
		return
	}

	query := h.db.Scopes(s.Filter(scope.EntityUniversity))
	if regionID != 0 {
		query = query.Where("region_id = ?", regionID)
	}

	var unis []models.University
	if err := query.Find(&unis).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch universities"})
		return
	}

	out := make([]UniversityResponse, len(unis))
	for i, u := range unis {
		var groupCount int64
		h.db.Model(&models.SmallGroup{}).Where("university_id = ?", u.ID).Count(&groupCount)
		out[i] = UniversityResponse{ID: u.ID, Name: u.Name, RegionID: u.RegionID, GroupCount: groupCount}
	}
	c.JSON(http.StatusOK, out)
}

// Get returns one university within the caller's scope
// @Summary Get a university
// @Tags universities
// @Produce json
// @Success 200 {object} UniversityResponse
// @Failure 404 {object} map[string]string "University not found"
// @Security BearerAuth
// @Router /universities/{id} [get]
func (h *Handler) Get(c *gin.Context) {
	s, _ := auth.GetScope(c)
	if !s.Allowed(scope.EntityUniversity) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Access denied"})
		return
	}

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid university ID"})
		return
	}

	var uni models.University
	if err := h.db.Scopes(s.Filter(scope.EntityUniversity)).First(&uni, uint(id)).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "University not found"})
		return
	}

	c.JSON(http.StatusOK, UniversityResponse{ID: uni.ID, Name: uni.Name, RegionID: uni.RegionID})
}

// Create creates a university under a region within the caller's scope
// @Summary Create a university
// @Tags universities
// @Accept json
// @Produce json
// @Success 201 {object} UniversityResponse
// @Failure 400 {object} map[string]string "Validation error"
// @Failure 403 {object} map[string]string "Access denied"
// @Security BearerAuth
// @Router /universities [post]
func (h *Handler) Create(c *gin.Context) {
	s, _ := auth.GetScope(c)
	if !s.Allowed(scope.EntityUniversity) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Access denied"})
		return
	}

	var req CreateUniversityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if !s.CanAct(scope.EntityUniversity, scope.OrgRefs{RegionID: req.RegionID}) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Access denied"})
		return
	}

	// The parent region must exist; a crafted id must not orphan the row.
	var region models.Region
	if err := h.db.First(&region, req.RegionID).Error; err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Region does not exist"})
		return
	}

	uni := models.University{Name: req.Name, RegionID: req.RegionID}
	if err := h.db.Create(&uni).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create university"})
		return
	}
	c.JSON(http.StatusCreated, UniversityResponse{ID: uni.ID, Name: uni.Name, RegionID: uni.RegionID})
}

// Update updates a university within the caller's scope
// @Summary Update a university
// @Tags universities
// @Accept json
// @Produce json
// @Success 200 {object} UniversityResponse
// @Failure 404 {object} map[string]string "University not found"
// @Security BearerAuth
// @Router /universities/{id} [put]
func (h *Handler) Update(c *gin.Context) {
	s, _ := auth.GetScope(c)
	if !s.Allowed(scope.EntityUniversity) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Access denied"})
		return
	}

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid university ID"})
		return
	}

	var uni models.University
	if err := h.db.Scopes(s.Filter(scope.EntityUniversity)).First(&uni, uint(id)).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "University not found"})
		return
	}

	if !s.CanAct(scope.EntityUniversity, scope.OrgRefs{RegionID: uni.RegionID, UniversityID: uni.ID}) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Access denied"})
		return
	}

	var req UpdateUniversityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.Name != "" {
		uni.Name = req.Name
	}
	if req.RegionID != 0 && req.RegionID != uni.RegionID {
		// Moving to another region must stay within scope and target a real
		// parent.
		if !s.CanAct(scope.EntityUniversity, scope.OrgRefs{RegionID: req.RegionID, UniversityID: uni.ID}) {
			c.JSON(http.StatusForbidden, gin.H{"error": "Access denied"})
			return
		}
		var region models.Region
		if err := h.db.First(&region, req.RegionID).Error; err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Region does not exist"})
			return
		}
		uni.RegionID = req.RegionID
	}

	if err := h.db.Save(&uni).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update university"})
		return
	}
	c.JSON(http.StatusOK, UniversityResponse{ID: uni.ID, Name: uni.Name, RegionID: uni.RegionID})
}

// Delete removes a university within the caller's scope
// @Summary Delete a university
// @Tags universities
// @Produce json
// @Success 200 {object} map[string]string
// @Failure 404 {object} map[string]string "University not found"
// @Security BearerAuth
// @Router /universities/{id} [delete]
func (h *Handler) Delete(c *gin.Context) {
	s, _ := auth.GetScope(c)
	if !s.Allowed(scope.EntityUniversity) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Access denied"})
		return
	}

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid university ID"})
		return
	}

	var uni models.University
	if err := h.db.Scopes(s.Filter(scope.EntityUniversity)).First(&uni, uint(id)).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "University not found"})
		return
	}

	if !s.CanAct(scope.EntityUniversity, scope.OrgRefs{RegionID: uni.RegionID, UniversityID: uni.ID}) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Access denied"})
		return
	}

	if err := h.db.Delete(&uni).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete university"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "University deleted"})
}

// RegisterRoutes registers university routes on the given router group
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.POST("", h.Create)
	rg.GET("/:id", h.Get)
	rg.PUT("/:id", h.Update)
	rg.DELETE("/:id", h.Delete)
}
