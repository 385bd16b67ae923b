package members

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rukundo/umoja/pkg/umoja/auth"
	"github.com/rukundo/umoja/pkg/umoja/models"
	"github.com/rukundo/umoja/pkg/umoja/scope"
	"gorm.io/gorm"
)

// Handler handles member requests
type Handler struct {
	db *gorm.DB
}

// NewHandler creates a new members handler
func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db}
}

// MemberRequest represents the request to create or update a member
type MemberRequest struct {
	FirstName       string `json:"first_name" binding:"required,min=1,max=100"`
	SecondName      string `json:"second_name" binding:"omitempty,max=100"`
	Phone           string `json:"phone" binding:"omitempty,max=20"`
	RegionID        uint   `json:"region_id"`
	UniversityID    uint   `json:"university_id"`
	SmallGroupID    *uint  `json:"small_group_id"`
	GraduateGroupID *uint  `json:"graduate_group_id"`
}

// MemberResponse represents a member in API responses
type MemberResponse struct {
	ID              uint   `json:"id"`
	Name            string `json:"name"`
	FirstName       string `json:"first_name"`
	SecondName      string `json:"second_name,omitempty"`
	Phone           string `json:"phone,omitempty"`
	RegionID        uint   `json:"region_id,omitempty"`
	UniversityID    uint   `json:"university_id,omitempty"`
	SmallGroupID    *uint  `json:"small_group_id,omitempty"`
	GraduateGroupID *uint  `json:"graduate_group_id,omitempty"`
}

func toResponse(m models.Member) MemberResponse {
	return MemberResponse{
		ID:              m.ID,
		Name:            m.DisplayName(),
		FirstName:       m.FirstName,
		SecondName:      m.SecondName,
		Phone:           m.Phone,
		RegionID:        m.RegionID,
		UniversityID:    m.UniversityID,
		SmallGroupID:    m.SmallGroupID,
		GraduateGroupID: m.GraduateGroupID,
	}
}

// resolveHierarchy normalizes a member's organizational ids from its group
// assignment. A member in a small group inherits the group's university and
// region; a mismatch in the request is a validation error, not something to
// silently repair across subtrees.
func (h *Handler) resolveHierarchy(req *MemberRequest) error {
	if req.SmallGroupID != nil && req.GraduateGroupID != nil {
		return &ValidationError{"A member cannot be in both a small group and a graduate group"}
	}
	if req.SmallGroupID != nil {
		var group models.SmallGroup
		if err := h.db.First(&group, *req.SmallGroupID).Error; err != nil {
			return &ValidationError{"Small group does not exist"}
		}
		if req.UniversityID != 0 && req.UniversityID != group.UniversityID {
			return &ValidationError{"University does not match the small group's university"}
		}
		if req.RegionID != 0 && req.RegionID != group.RegionID {
			return &ValidationError{"Region does not match the small group's region"}
		}
		req.UniversityID = group.UniversityID
		req.RegionID = group.RegionID
	}
	if req.GraduateGroupID != nil {
		var group models.GraduateSmallGroup
		if err := h.db.First(&group, *req.GraduateGroupID).Error; err != nil {
			return &ValidationError{"Graduate group does not exist"}
		}
		if req.RegionID != 0 && req.RegionID != group.RegionID {
			return &ValidationError{"Region does not match the graduate group's region"}
		}
		req.RegionID = group.RegionID
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

func memberRefs(req MemberRequest) scope.OrgRefs {
	refs := scope.OrgRefs{RegionID: req.RegionID, UniversityID: req.UniversityID}
	if req.SmallGroupID != nil {
		refs.SmallGroupID = *req.SmallGroupID
	}
	if req.GraduateGroupID != nil {
		refs.GraduateGroupID = *req.GraduateGroupID
	}
	return refs
}

// List returns the members visible to the caller's scope
// @Summary List members
// @Tags members
// @Produce json
// @Param small_group_id query int false "Filter by small group (must be within scope)"
// @Success 200 {array} MemberResponse
// @Security BearerAuth
// @Router /members [get]
func (h *Handler) List(c *gin.Context) {
	s, _ := auth.GetScope(c)
	if !s.Allowed(scope.EntityMember) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Access denied"})
		return
	}

	query := h.db.Scopes(s.Filter(scope.EntityMember))
	if raw := c.Query("small_group_id"); raw != "" {
		parsed, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid small group ID"})
			return
		}
		if err := s.CheckParam(uint(parsed), s.SmallGroupID); err != nil {
			c.JSON(http.StatusForbidden, gin.H{"error": "Access denied"})
			return
		}
		query = query.Where("small_group_id = ?", uint(parsed))
	}

	var members []models.Member
	if err := query.Find(&members).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch members"})
		return
	}

	out := make([]MemberResponse, len(members))
	for i, m := range members {
		out[i] = toResponse(m)
	}
	c.JSON(http.StatusOK, out)
}

// Get returns one member within the caller's scope
// @Summary Get a member
// @Tags members
// @Produce json
// @Success 200 {object} MemberResponse
// @Failure 404 {object} map[string]string "Member not found"
// @Security BearerAuth
// @Router /members/{id} [get]
func (h *Handler) Get(c *gin.Context) {
	s, _ := auth.GetScope(c)
	if !s.Allowed(scope.EntityMember) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Access denied"})
		return
	}

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid member ID"})
		return
	}

	var member models.Member
	if err := h.db.Scopes(s.Filter(scope.EntityMember)).First(&member, uint(id)).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Member not found"})
		return
	}

	c.JSON(http.StatusOK, toResponse(member))
}

// Create registers a member within the caller's scope
// @Summary Create a member
// @Tags members
// @Accept json
// @Produce json
// @Success 201 {object} MemberResponse
// @Failure 400 {object} map[string]string "Validation error"
// @Failure 403 {object} map[string]string "Access denied"
// @Security BearerAuth
// @Router /members [post]
func (h *Handler) Create(c *gin.Context) {
	s, _ := auth.GetScope(c)
	if !s.Allowed(scope.EntityMember) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Access denied"})
		return
	}

	var req MemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.resolveHierarchy(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if !s.CanAct(scope.EntityMember, memberRefs(req)) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Access denied"})
		return
	}

	member := models.Member{
		FirstName:       req.FirstName,
		SecondName:      req.SecondName,
		Phone:           req.Phone,
		RegionID:        req.RegionID,
		UniversityID:    req.UniversityID,
		SmallGroupID:    req.SmallGroupID,
		GraduateGroupID: req.GraduateGroupID,
	}
	if err := h.db.Create(&member).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create member"})
		return
	}
	c.JSON(http.StatusCreated, toResponse(member))
}

// Update updates a member within the caller's scope
// @Summary Update a member
// @Tags members
// @Accept json
// @Produce json
// @Success 200 {object} MemberResponse
// @Failure 400 {object} map[string]string "Validation error"
// @Failure 404 {object} map[string]string "Member not found"
// @Security BearerAuth
// @Router /members/{id} [put]
func (h *Handler) Update(c *gin.Context) {
	s, _ := auth.GetScope(c)
	if !s.Allowed(scope.EntityMember) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Access denied"})
		return
	}

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid member ID"})
		return
	}

	var member models.Member
	if err := h.db.Scopes(s.Filter(scope.EntityMember)).First(&member, uint(id)).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Member not found"})
		return
	}

	var req MemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.resolveHierarchy(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// Both the current row and its proposed new position must be actionable.
	if !s.CanAct(scope.EntityMember, memberRefs(req)) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Access denied"})
		return
	}

	member.FirstName = req.FirstName
	member.SecondName = req.SecondName
	member.Phone = req.Phone
	member.RegionID = req.RegionID
	member.UniversityID = req.UniversityID
	member.SmallGroupID = req.SmallGroupID
	member.GraduateGroupID = req.GraduateGroupID
	if err := h.db.Save(&member).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update member"})
		return
	}
	c.JSON(http.StatusOK, toResponse(member))
}

// Delete removes a member within the caller's scope
// @Summary Delete a member
// @Tags members
// @Produce json
// @Success 200 {object} map[string]string
// @Failure 404 {object} map[string]string "Member not found"
// @Security BearerAuth
// @Router /members/{id} [delete]
func (h *Handler) Delete(c *gin.Context) {
	s, _ := auth.GetScope(c)
	if !s.Allowed(scope.EntityMember) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Access denied"})
		return
	}

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid member ID"})
		return
	}

	var member models.Member
	if err := h.db.Scopes(s.Filter(scope.EntityMember)).First(&member, uint(id)).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Member not found"})
		return
	}

	refs := scope.OrgRefs{RegionID: member.RegionID, UniversityID: member.UniversityID}
	if member.SmallGroupID != nil {
		refs.SmallGroupID = *member.SmallGroupID
	}
	if member.GraduateGroupID != nil {
		refs.GraduateGroupID = *member.GraduateGroupID
	}
	if !s.CanAct(scope.EntityMember, refs) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Access denied"})
		return
	}

	if err := h.db.Delete(&member).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete member"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Member deleted"})
}

// RegisterRoutes registers member routes on the given router group
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.POST("", h.Create)
	rg.GET("/:id", h.Get)
	rg.PUT("/:id", h.Update)
	rg.DELETE("/:id", h.Delete)
}
