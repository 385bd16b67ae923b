package properties

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rukundo/umoja/pkg/umoja/auth"
	"github.com/rukundo/umoja/pkg/umoja/models"
	"github.com/rukundo/umoja/pkg/umoja/scope"
	"gorm.io/gorm"
)

// Handler handles property requests. Property management is open to region
// and national scopes only; university and small-group scopes are denied the
// resource type entirely.
type Handler struct {
	db *gorm.DB
}

// NewHandler creates a new properties handler
func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db}
}

// PropertyRequest represents the request to create or update a property
type PropertyRequest struct {
	Name         string `json:"name" binding:"required,min=1,max=100"`
	Description  string `json:"description" binding:"omitempty,max=500"`
	RegionID     uint   `json:"region_id" binding:"required"`
	UniversityID uint   `json:"university_id"`
}

// PropertyResponse represents a property in API responses
type PropertyResponse struct {
	ID           uint   `json:"id"`
	Name         string `json:"name"`
	Description  string `json:"description,omitempty"`
	RegionID     uint   `json:"region_id"`
	UniversityID uint   `json:"university_id,omitempty"`
}

func toResponse(p models.Property) PropertyResponse {
	return PropertyResponse{
		ID:           p.ID,
		Name:         p.Name,
		Description:  p.Description,
		RegionID:     p.RegionID,
		UniversityID: p.UniversityID,
	}
}

// List returns the properties visible to the caller's scope
// @Summary List properties
// @Tags properties
// @Produce json
// @Success 200 {array} PropertyResponse
// @Failure 403 {object} map[string]string "Access denied"
// @Security BearerAuth
// @Router /properties [get]
func (h *Handler) List(c *gin.Context) {
	s, _ := auth.GetScope(c)
	if !s.Allowed(scope.EntityProperty) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Access denied"})
		return
	}

	var props []models.Property
	if err := h.db.Scopes(s.Filter(scope.EntityProperty)).Find(&props).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch properties"})
		return
	}

	out := make([]PropertyResponse, len(props))
	for i, p := range props {
		out[i] = toResponse(p)
	}
	c.JSON(http.StatusOK, out)
}

// Get returns one property within the caller's scope
// @Summary Get a property
// @Tags properties
// @Produce json
// @Success 200 {object} PropertyResponse
// @Failure 404 {object} map[string]string "Property not found"
// @Security BearerAuth
// @Router /properties/{id} [get]
func (h *Handler) Get(c *gin.Context) {
	s, _ := auth.GetScope(c)
	if !s.Allowed(scope.EntityProperty) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Access denied"})
		return
	}

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid property ID"})
		return
	}

	var prop models.Property
	if err := h.db.Scopes(s.Filter(scope.EntityProperty)).First(&prop, uint(id)).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Property not found"})
		return
	}
	c.JSON(http.StatusOK, toResponse(prop))
}

// Create registers a property within the caller's scope
// @Summary Create a property
// @Tags properties
// @Accept json
// @Produce json
// @Success 201 {object} PropertyResponse
// @Failure 403 {object} map[string]string "Access denied"
// @Security BearerAuth
// @Router /properties [post]
func (h *Handler) Create(c *gin.Context) {
	s, _ := auth.GetScope(c)
	if !s.Allowed(scope.EntityProperty) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Access denied"})
		return
	}

	var req PropertyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if !s.CanAct(scope.EntityProperty, scope.OrgRefs{RegionID: req.RegionID, UniversityID: req.UniversityID}) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Access denied"})
		return
	}

	if req.UniversityID != 0 {
		var uni models.University
		if err := h.db.First(&uni, req.UniversityID).Error; err != nil || uni.RegionID != req.RegionID {
			c.JSON(http.StatusBadRequest, gin.H{"error": "University does not belong to the given region"})
			return
		}
	}

	prop := models.Property{
		Name:         req.Name,
		Description:  req.Description,
		RegionID:     req.RegionID,
		UniversityID: req.UniversityID,
	}
	if err := h.db.Create(&prop).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create property"})
		return
	}
	c.JSON(http.StatusCreated, toResponse(prop))
}

// Update updates a property within the caller's scope
// @Summary Update a property
// @Tags properties
// @Accept json
// @Produce json
// @Success 200 {object} PropertyResponse
// @Failure 404 {object} map[string]string "Property not found"
// @Security BearerAuth
// @Router /properties/{id} [put]
func (h *Handler) Update(c *gin.Context) {
	s, _ := auth.GetScope(c)
	if !s.Allowed(scope.EntityProperty) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Access denied"})
		return
	}

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid property ID"})
		return
	}

	var prop models.Property
	if err := h.db.Scopes(s.Filter(scope.EntityProperty)).First(&prop, uint(id)).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Property not found"})
		return
	}

	var req PropertyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if !s.CanAct(scope.EntityProperty, scope.OrgRefs{RegionID: req.RegionID, UniversityID: req.UniversityID}) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Access denied"})
		return
	}

	prop.Name = req.Name
	prop.Description = req.Description
	prop.RegionID = req.RegionID
	prop.UniversityID = req.UniversityID
	if err := h.db.Save(&prop).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update property"})
		return
	}
	c.JSON(http.StatusOK, toResponse(prop))
}

// Delete removes a property within the caller's scope
// @Summary Delete a property
// @Tags properties
// @Produce json
// @Success 200 {object} map[string]string
// @Failure 404 {object} map[string]string "Property not found"
// @Security BearerAuth
// @Router /properties/{id} [delete]
func (h *Handler) Delete(c *gin.Context) {
	s, _ := auth.GetScope(c)
	if !s.Allowed(scope.EntityProperty) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Access denied"})
		return
	}

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid property ID"})
		return
	}

	var prop models.Property
	if err := h.db.Scopes(s.Filter(scope.EntityProperty)).First(&prop, uint(id)).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Property not found"})
		return
	}

	if !s.CanAct(scope.EntityProperty, scope.OrgRefs{RegionID: prop.RegionID, UniversityID: prop.UniversityID}) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Access denied"})
		return
	}

	if err := h.db.Delete(&prop).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete property"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Property deleted"})
}

// RegisterRoutes registers property routes on the given router group
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.POST("", h.Create)
	rg.GET("/:id", h.Get)
	rg.PUT("/:id", h.Update)
	rg.DELETE("/:id", h.Delete)
}
