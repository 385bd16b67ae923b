package smallgroups

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rukundo/umoja/pkg/umoja/auth"
	"github.com/rukundo/umoja/pkg/umoja/models"
	"github.com/rukundo/umoja/pkg/umoja/scope"
)

// CreateGraduateGroupRequest represents the request to create a graduate group
type CreateGraduateGroupRequest struct {
	Name     string `json:"name" binding:"required,min=1,max=100"`
	RegionID uint   `json:"region_id" binding:"required"`
}

// UpdateGraduateGroupRequest represents the request to update a graduate group
type UpdateGraduateGroupRequest struct {
	Name string `json:"name" binding:"required,min=1,max=100"`
}

// ListGraduate returns the graduate groups visible to the caller's scope
// @Summary List graduate small groups
// @Tags graduategroups
// @Produce json
// @Success 200 {array} GroupResponse
// @Security BearerAuth
// @Router /graduategroups [get]
func (h *Handler) ListGraduate(c *gin.Context) {
	s, _ := auth.GetScope(c)
	if !s.Allowed(scope.EntityGraduateGroup) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Access denied"})
		return
	}

	var groups []models.GraduateSmallGroup
	if err := h.db.Scopes(s.Filter(scope.EntityGraduateGroup)).Find(&groups).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch graduate groups"})
		return
	}

	out := make([]GroupResponse, len(groups))
	for i, g := range groups {
		var memberCount int64
		h.db.Model(&models.Member{}).Where("graduate_group_id = ?", g.ID).Count(&memberCount)
		out[i] = GroupResponse{ID: g.ID, Name: g.Name, RegionID: g.RegionID, MemberCount: memberCount}
	}
	c.JSON(http.StatusOK, out)
}

// GetGraduate returns one graduate group within the caller's scope
// @Summary Get a graduate small group
// @Tags graduategroups
// @Produce json
// @Success 200 {object} GroupResponse
// @Failure 404 {object} map[string]string "Graduate group not found"
// @Security BearerAuth
// @Router /graduategroups/{id} [get]
func (h *Handler) GetGraduate(c *gin.Context) {
	s, _ := auth.GetScope(c)
	if !s.Allowed(scope.EntityGraduateGroup) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Access denied"})
		return
	}

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid graduate group ID"})
		return
	}

	var group models.GraduateSmallGroup
	if err := h.db.Scopes(s.Filter(scope.EntityGraduateGroup)).First(&group, uint(id)).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Graduate group not found"})
		return
	}

	c.JSON(http.StatusOK, GroupResponse{ID: group.ID, Name: group.Name, RegionID: group.RegionID})
}

// CreateGraduate creates a graduate group under a region within scope
// @Summary Create a graduate small group
// @Tags graduategroups
// @Accept json
// @Produce json
// @Success 201 {object} GroupResponse
// @Failure 403 {object} map[string]string "Access denied"
// @Security BearerAuth
// @Router /graduategroups [post]
func (h *Handler) CreateGraduate(c *gin.Context) {
	s, _ := auth.GetScope(c)
	if !s.Allowed(scope.EntityGraduateGroup) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Access denied"})
		return
	}

	var req CreateGraduateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// Region-level (or unbounded) authority is required to create one.
	if !s.CanAct(scope.EntityRegion, scope.OrgRefs{RegionID: req.RegionID}) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Access denied"})
		return
	}

	var region models.Region
	if err := h.db.First(&region, req.RegionID).Error; err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Region does not exist"})
		return
	}

	group := models.GraduateSmallGroup{Name: req.Name, RegionID: req.RegionID}
	if err := h.db.Create(&group).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create graduate group"})
		return
	}
	c.JSON(http.StatusCreated, GroupResponse{ID: group.ID, Name: group.Name, RegionID: group.RegionID})
}

// UpdateGraduate renames a graduate group within the caller's scope
// @Summary Update a graduate small group
// @Tags graduategroups
// @Accept json
// @Produce json
// @Success 200 {object} GroupResponse
// @Failure 404 {object} map[string]string "Graduate group not found"
// @Security BearerAuth
// @Router /graduategroups/{id} [put]
func (h *Handler) UpdateGraduate(c *gin.Context) {
	s, _ := auth.GetScope(c)
	if !s.Allowed(scope.EntityGraduateGroup) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Access denied"})
		return
	}

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid graduate group ID"})
		return
	}

	var group models.GraduateSmallGroup
	if err := h.db.Scopes(s.Filter(scope.EntityGraduateGroup)).First(&group, uint(id)).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Graduate group not found"})
		return
	}

	if !s.CanAct(scope.EntityGraduateGroup, scope.OrgRefs{RegionID: group.RegionID, GraduateGroupID: group.ID}) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Access denied"})
		return
	}

	var req UpdateGraduateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	group.Name = req.Name
	if err := h.db.Save(&group).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update graduate group"})
		return
	}
	c.JSON(http.StatusOK, GroupResponse{ID: group.ID, Name: group.Name, RegionID: group.RegionID})
}

// DeleteGraduate removes a graduate group (region authority or above)
// @Summary Delete a graduate small group
// @Tags graduategroups
// @Produce json
// @Success 200 {object} map[string]string
// @Failure 404 {object} map[string]string "Graduate group not found"
// @Security BearerAuth
// @Router /graduategroups/{id} [delete]
func (h *Handler) DeleteGraduate(c *gin.Context) {
	s, _ := auth.GetScope(c)
	if !s.Allowed(scope.EntityGraduateGroup) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Access denied"})
		return
	}

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid graduate group ID"})
		return
	}

	var group models.GraduateSmallGroup
	if err := h.db.Scopes(s.Filter(scope.EntityGraduateGroup)).First(&group, uint(id)).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Graduate group not found"})
		return
	}

	if !s.CanAct(scope.EntityRegion, scope.OrgRefs{RegionID: group.RegionID}) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Access denied"})
		return
	}

	if err := h.db.Delete(&group).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete graduate group"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Graduate group deleted"})
}

// RegisterGraduateRoutes registers graduate-group routes on the given router group
func (h *Handler) RegisterGraduateRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.ListGraduate)
	rg.POST("", h.CreateGraduate)
	rg.GET("/:id", h.GetGraduate)
	rg.PUT("/:id", h.UpdateGraduate)
	rg.DELETE("/:id", h.DeleteGraduate)
}
