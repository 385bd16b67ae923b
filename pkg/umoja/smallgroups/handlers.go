package smallgroups

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rukundo/umoja/pkg/umoja/auth"
	"github.com/rukundo/umoja/pkg/umoja/models"
	"github.com/rukundo/umoja/pkg/umoja/scope"
	"gorm.io/gorm"
)

// Handler handles small-group and graduate-group requests
type Handler struct {
	db *gorm.DB
}

// NewHandler creates a new small groups handler
func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db}
}

// CreateGroupRequest represents the request to create a small group
type CreateGroupRequest struct {
	Name         string `json:"name" binding:"required,min=1,max=100"`
	RegionID     uint   `json:"region_id" binding:"required"`
	UniversityID uint   `json:"university_id" binding:"required"`
}

// UpdateGroupRequest represents the request to update a small group
type UpdateGroupRequest struct {
	Name         string `json:"name" binding:"omitempty,min=1,max=100"`
	RegionID     uint   `json:"region_id"`
	UniversityID uint   `json:"university_id"`
}

// GroupResponse represents a small group in API responses
type GroupResponse struct {
	ID           uint   `json:"id"`
	Name         string `json:"name"`
	RegionID     uint   `json:"region_id"`
	UniversityID uint   `json:"university_id,omitempty"`
	MemberCount  int64  `json:"member_count,omitempty"`
}

// checkParentChain verifies that the proposed university actually belongs to
// the proposed region. Without this a crafted parent id could orphan the
// group or smuggle it into another region's subtree.
func (h *Handler) checkParentChain(regionID, universityID uint) error {
	var uni models.University
	if err := h.db.First(&uni, universityID).Error; err != nil {
		return &ValidationError{"University does not exist"}
	}
	if uni.RegionID != regionID {
		return &ValidationError{"University does not belong to the given region"}
	}
	return nil
}

// ValidationError represents a validation error
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func checkFilterParam(c *gin.Context, s scope.Scope, name string, bound uint) (uint, bool) {
	raw := c.Query(name)
	if raw == "" {
		return 0, true
	}
	parsed, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + name})
		return 0, false
	}
	if err := s.CheckParam(uint(parsed), bound); err != nil {
		c.JSON(http.StatusForbidden, gin.H{"error": "Access denied"})
		return 0, false
	}
	return uint(parsed), true
}

// List returns the small groups visible to the caller's scope
// @Summary List small groups
// @Tags smallgroups
// @Produce json
// @Param region_id query int false "Filter by region (must be within scope)"
// @Param university_id query int false "Filter by university (must be within scope)"
// @Success 200 {array} GroupResponse
// @Security BearerAuth
// @Router /smallgroups [get]
func (h *Handler) List(c *gin.Context) {
	s, _ := auth.GetScope(c)
	if !s.Allowed(scope.EntitySmallGroup) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Access denied"})
		return
	}

	regionID, ok := checkFilterParam(c, s, "region_id", s.RegionID)
	if !ok {
		return
	}
	universityID, ok := checkFilterParam(c, s, "university_id", s.UniversityID)
	if !ok {
		return
	}

	query := h.db.Scopes(s.Filter(scope.EntitySmallGroup))
	if regionID != 0 {
		query = query.Where("region_id = ?", regionID)
	}
	if universityID != 0 {
		query = query.Where("university_id = ?", universityID)
	}

	var groups []models.SmallGroup
	if err := query.Find(&groups).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch small groups"})
		return
	}

	out := make([]GroupResponse, len(groups))
	for i, g := range groups {
		var memberCount int64
		h.db.Model(&models.Member{}).Where("small_group_id = ?", g.ID).Count(&memberCount)
		out[i] = GroupResponse{
			ID:           g.ID,
			Name:         g.Name,
			RegionID:     g.RegionID,
			UniversityID: g.UniversityID,
			MemberCount:  memberCount,
		}
	}
	c.JSON(http.StatusOK, out)
}

// Get returns one small group within the caller's scope
// @Summary Get a small group
// @Tags smallgroups
// @Produce json
// @Success 200 {object} GroupResponse
// @Failure 404 {object} map[string]string "Small group not found"
// @Security BearerAuth
// @Router /smallgroups/{id} [get]
func (h *Handler) Get(c *gin.Context) {
	s, _ := auth.GetScope(c)
	if !s.Allowed(scope.EntitySmallGroup) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Access denied"})
		return
	}

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid small group ID"})
		return
	}

	var group models.SmallGroup
	if err := h.db.Scopes(s.Filter(scope.EntitySmallGroup)).First(&group, uint(id)).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Small group not found"})
		return
	}

	c.JSON(http.StatusOK, GroupResponse{
		ID:           group.ID,
		Name:         group.Name,
		RegionID:     group.RegionID,
		UniversityID: group.UniversityID,
	})
}

// Create creates a small group under a university within the caller's scope
// @Summary Create a small group
// @Tags smallgroups
// @Accept json
// @Produce json
// @Success 201 {object} GroupResponse
// @Failure 400 {object} map[string]string "Validation error"
// @Failure 403 {object} map[string]string "Access denied"
// @Security BearerAuth
// @Router /smallgroups [post]
func (h *Handler) Create(c *gin.Context) {
	s, _ := auth.GetScope(c)
	if !s.Allowed(scope.EntitySmallGroup) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Access denied"})
		return
	}

	var req CreateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// Creating a child row outside the scope's subtree is rejected before
	// anything touches the store. Parent-level authority is required: group
	// leaders cannot create sibling groups.
	refs := scope.OrgRefs{RegionID: req.RegionID, UniversityID: req.UniversityID}
	if !s.CanAct(scope.EntityUniversity, refs) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Access denied"})
		return
	}

	if err := h.checkParentChain(req.RegionID, req.UniversityID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	group := models.SmallGroup{
		Name:         req.Name,
		RegionID:     req.RegionID,
		UniversityID: req.UniversityID,
	}
	if err := h.db.Create(&group).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create small group"})
		return
	}
	c.JSON(http.StatusCreated, GroupResponse{
		ID:           group.ID,
		Name:         group.Name,
		RegionID:     group.RegionID,
		UniversityID: group.UniversityID,
	})
}

// Update updates or moves a small group within the caller's scope
// @Summary Update a small group
// @Tags smallgroups
// @Accept json
// @Produce json
// @Success 200 {object} GroupResponse
// @Failure 400 {object} map[string]string "Validation error"
// @Failure 404 {object} map[string]string "Small group not found"
// @Security BearerAuth
// @Router /smallgroups/{id} [put]
func (h *Handler) Update(c *gin.Context) {
	s, _ := auth.GetScope(c)
	if !s.Allowed(scope.EntitySmallGroup) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Access denied"})
		return
	}

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid small group ID"})
		return
	}

	var group models.SmallGroup
	if err := h.db.Scopes(s.Filter(scope.EntitySmallGroup)).First(&group, uint(id)).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Small group not found"})
		return
	}

	if !s.CanAct(scope.EntitySmallGroup, scope.OrgRefs{
		RegionID:     group.RegionID,
		UniversityID: group.UniversityID,
		SmallGroupID: group.ID,
	}) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Access denied"})
		return
	}

	var req UpdateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.Name != "" {
		group.Name = req.Name
	}

	newRegion := group.RegionID
	newUniversity := group.UniversityID
	if req.RegionID != 0 {
		newRegion = req.RegionID
	}
	if req.UniversityID != 0 {
		newUniversity = req.UniversityID
	}
	if newRegion != group.RegionID || newUniversity != group.UniversityID {
		// Moving the group: the new parent chain must be consistent and
		// inside the caller's subtree.
		refs := scope.OrgRefs{RegionID: newRegion, UniversityID: newUniversity}
		if !s.CanAct(scope.EntityUniversity, refs) {
			c.JSON(http.StatusForbidden, gin.H{"error": "Access denied"})
			return
		}
		if err := h.checkParentChain(newRegion, newUniversity); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		group.RegionID = newRegion
		group.UniversityID = newUniversity
	}

	if err := h.db.Save(&group).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update small group"})
		return
	}
	c.JSON(http.StatusOK, GroupResponse{
		ID:           group.ID,
		Name:         group.Name,
		RegionID:     group.RegionID,
		UniversityID: group.UniversityID,
	})
}

// Delete removes a small group within the caller's scope
// @Summary Delete a small group
// @Tags smallgroups
// @Produce json
// @Success 200 {object} map[string]string
// @Failure 404 {object} map[string]string "Small group not found"
// @Security BearerAuth
// @Router /smallgroups/{id} [delete]
func (h *Handler) Delete(c *gin.Context) {
	s, _ := auth.GetScope(c)
	if !s.Allowed(scope.EntitySmallGroup) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Access denied"})
		return
	}

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid small group ID"})
		return
	}

	var group models.SmallGroup
	if err := h.db.Scopes(s.Filter(scope.EntitySmallGroup)).First(&group, uint(id)).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Small group not found"})
		return
	}

	// Leaders of the group itself may not delete it; that is the owning
	// university's (or higher) call.
	refs := scope.OrgRefs{RegionID: group.RegionID, UniversityID: group.UniversityID}
	if !s.CanAct(scope.EntityUniversity, refs) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Access denied"})
		return
	}

	if err := h.db.Delete(&group).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete small group"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Small group deleted"})
}

// RegisterRoutes registers small-group routes on the given router group
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.POST("", h.Create)
	rg.GET("/:id", h.Get)
	rg.PUT("/:id", h.Update)
	rg.DELETE("/:id", h.Delete)
}
