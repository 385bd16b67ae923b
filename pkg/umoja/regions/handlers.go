package regions

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rukundo/umoja/pkg/umoja/auth"
	"github.com/rukundo/umoja/pkg/umoja/models"
	"github.com/rukundo/umoja/pkg/umoja/scope"
	"gorm.io/gorm"
)

// Handler handles region requests
type Handler struct {
	db *gorm.DB
}

// NewHandler creates a new regions handler
func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db}
}

// CreateRegionRequest represents the request to create a region
type CreateRegionRequest struct {
	Name string `json:"name" binding:"required,min=1,max=100"`
}

// UpdateRegionRequest represents the request to update a region
type UpdateRegionRequest struct {
	Name string `json:"name" binding:"required,min=1,max=100"`
}

// RegionResponse represents a region in API responses
type RegionResponse struct {
	ID              uint   `json:"id"`
	Name            string `json:"name"`
	UniversityCount int64  `json:"university_count,omitempty"`
}

// List returns the regions visible to the caller's scope
// @Summary List regions
// @Tags regions
// @Produce json
// @Success 200 {array} RegionResponse
// @Failure 403 {object} map[string]string "Access denied"
// @Security BearerAuth
// @Router /regions [get]
func (h *Handler) List(c *gin.Context) {
	s, _ := auth.GetScope(c)
	if !s.Allowed(scope.EntityRegion) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Access denied"})
		return
	}

	var regions []models.Region
	if err := h.db.Scopes(s.Filter(scope.EntityRegion)).Find(&regions).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch regions"})
		return
	}

	out := make([]RegionResponse, len(regions))
	for i, r := range regions {
		var uniCount int64
		h.db.Model(&models.University{}).Where("region_id = ?", r.ID).Count(&uniCount)
		out[i] = RegionResponse{ID: r.ID, Name: r.Name, UniversityCount: uniCount}
	}
	c.JSON(http.StatusOK, out)
}

// Get returns one region within the caller's scope
// @Summary Get a region
// @Tags regions
// @Produce json
// @Success 200 {object} RegionResponse
// @Failure 404 {object} map[string]string "Region not found"
// @Security BearerAuth
// @Router /regions/{id} [get]
func (h *Handler) Get(c *gin.Context) {
	s, _ := auth.GetScope(c)
	if !s.Allowed(scope.EntityRegion) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Access denied"})
		return
	}

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid region ID"})
		return
	}

	// Out-of-scope rows render as not found: existence is not confirmed to
	// callers who cannot see them.
	var region models.Region
	if err := h.db.Scopes(s.Filter(scope.EntityRegion)).First(&region, uint(id)).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Region not found"})
		return
	}

	c.JSON(http.StatusOK, RegionResponse{ID: region.ID, Name: region.Name})
}

// Create creates a region (unbounded scopes only)
// @Summary Create a region
// @Tags regions
// @Accept json
// @Produce json
// @Success 201 {object} RegionResponse
// @Failure 403 {object} map[string]string "Access denied"
// @Security BearerAuth
// @Router /regions [post]
func (h *Handler) Create(c *gin.Context) {
	s, _ := auth.GetScope(c)
	if !s.Unbounded() {
		c.JSON(http.StatusForbidden, gin.H{"error": "Access denied"})
		return
	}

	var req CreateRegionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	region := models.Region{Name: req.Name}
	if err := h.db.Create(&region).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create region"})
		return
	}
	c.JSON(http.StatusCreated, RegionResponse{ID: region.ID, Name: region.Name})
}

// Update renames a region within the caller's scope
// @Summary Update a region
// @Tags regions
// @Accept json
// @Produce json
// @Success 200 {object} RegionResponse
// @Failure 404 {object} map[string]string "Region not found"
// @Security BearerAuth
// @Router /regions/{id} [put]
func (h *Handler) Update(c *gin.Context) {
	s, _ := auth.GetScope(c)
	if !s.Allowed(scope.EntityRegion) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Access denied"})
		return
	}

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid region ID"})
		return
	}

	var region models.Region
	if err := h.db.Scopes(s.Filter(scope.EntityRegion)).First(&region, uint(id)).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Region not found"})
		return
	}

	if !s.CanAct(scope.EntityRegion, scope.OrgRefs{RegionID: region.ID}) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Access denied"})
		return
	}

	var req UpdateRegionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	region.Name = req.Name
	if err := h.db.Save(&region).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update region"})
		return
	}
	c.JSON(http.StatusOK, RegionResponse{ID: region.ID, Name: region.Name})
}

// Delete removes a region (unbounded scopes only)
// @Summary Delete a region
// @Tags regions
// @Produce json
// @Success 200 {object} map[string]string
// @Failure 404 {object} map[string]string "Region not found"
// @Security BearerAuth
// @Router /regions/{id} [delete]
func (h *Handler) Delete(c *gin.Context) {
	s, _ := auth.GetScope(c)
	if !s.Unbounded() {
		c.JSON(http.StatusForbidden, gin.H{"error": "Access denied"})
		return
	}

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid region ID"})
		return
	}

	var region models.Region
	if err := h.db.First(&region, uint(id)).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Region not found"})
		return
	}

	if err := h.db.Delete(&region).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete region"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Region deleted"})
}

// RegisterRoutes registers region routes on the given router group
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.POST("", h.Create)
	rg.GET("/:id", h.Get)
	rg.PUT("/:id", h.Update)
	rg.DELETE("/:id", h.Delete)
}
