package admin

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rukundo/umoja/pkg/umoja/models"
	"gorm.io/gorm"
)

// Handler handles admin requests: user listing and role assignment. Routes
// are mounted behind the superadmin gate.
type Handler struct {
	db *gorm.DB
}

// NewHandler creates a new admin handler
func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db}
}

// UserResponse represents user data in admin responses
type UserResponse struct {
	ID        uint   `json:"id"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	RoleCount int64  `json:"role_count"`
	CreatedAt string `json:"created_at"`
}

// AssignRoleRequest represents the request to assign a scope to a user
type AssignRoleRequest struct {
	UserID          uint   `json:"user_id" binding:"required"`
	Level           string `json:"level" binding:"required,oneof=superadmin national region university smallgroup graduatesmallgroup"`
	RegionID        *uint  `json:"region_id"`
	UniversityID    *uint  `json:"university_id"`
	SmallGroupID    *uint  `json:"small_group_id"`
	GraduateGroupID *uint  `json:"graduate_group_id"`
}

// RoleResponse represents a role assignment in API responses
type RoleResponse struct {
	ID              uint   `json:"id"`
	UserID          uint   `json:"user_id"`
	Level           string `json:"level"`
	RegionID        *uint  `json:"region_id,omitempty"`
	UniversityID    *uint  `json:"university_id,omitempty"`
	SmallGroupID    *uint  `json:"small_group_id,omitempty"`
	GraduateGroupID *uint  `json:"graduate_group_id,omitempty"`
}

func toRoleResponse(r models.UserRole) RoleResponse {
	return RoleResponse{
		ID:              r.ID,
		UserID:          r.UserID,
		Level:           string(r.Level),
		RegionID:        r.RegionID,
		UniversityID:    r.UniversityID,
		SmallGroupID:    r.SmallGroupID,
		GraduateGroupID: r.GraduateGroupID,
	}
}

// ListUsers returns all users (superadmin only)
// @Summary List users
// @Tags admin
// @Produce json
// @Param search query string false "Search by email or name"
// @Success 200 {array} UserResponse
// @Security BearerAuth
// @Router /admin/users [get]
func (h *Handler) ListUsers(c *gin.Context) {
	query := h.db.Order("created_at DESC")

	// Optional search by email or name
	if search := c.Query("search"); search != "" {
		pattern := "%" + search + "%"
		query = query.Where("email LIKE ? OR name LIKE ?", pattern, pattern)
	}

	var users []models.User
	if err := query.Find(&users).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch users"})
		return
	}

	out := make([]UserResponse, len(users))
	for i, u := range users {
		var roleCount int64
		h.db.Model(&models.UserRole{}).Where("user_id = ?", u.ID).Count(&roleCount)
		out[i] = UserResponse{
			ID:        u.ID,
			Email:     u.Email,
			Name:      u.Name,
			RoleCount: roleCount,
			CreatedAt: u.CreatedAt.Format("2006-01-02T15:04:05Z"),
		}
	}
	c.JSON(http.StatusOK, out)
}

// validateAssignment checks that the level's required ids are present and
// that the referenced rows exist and form a consistent parent chain.
func (h *Handler) validateAssignment(req AssignRoleRequest) string {
	switch models.ScopeLevel(req.Level) {
	case models.ScopeSuperAdmin, models.ScopeNational:
		return ""
	case models.ScopeRegion:
		if req.RegionID == nil {
			return "region scope requires region_id"
		}
		if err := h.db.First(&models.Region{}, *req.RegionID).Error; err != nil {
			return "Region does not exist"
		}
	case models.ScopeUniversity:
		if req.UniversityID == nil {
			return "university scope requires university_id"
		}
		var uni models.University
		if err := h.db.First(&uni, *req.UniversityID).Error; err != nil {
			return "University does not exist"
		}
		if req.RegionID != nil && *req.RegionID != uni.RegionID {
			return "University does not belong to the given region"
		}
	case models.ScopeSmallGroup:
		if req.SmallGroupID == nil {
			return "smallgroup scope requires small_group_id"
		}
		var group models.SmallGroup
		if err := h.db.First(&group, *req.SmallGroupID).Error; err != nil {
			return "Small group does not exist"
		}
		if req.UniversityID != nil && *req.UniversityID != group.UniversityID {
			return "Small group does not belong to the given university"
		}
	case models.ScopeGraduateGroup:
		if req.GraduateGroupID == nil {
			return "graduatesmallgroup scope requires graduate_group_id"
		}
		if err := h.db.First(&models.GraduateSmallGroup{}, *req.GraduateGroupID).Error; err != nil {
			return "Graduate group does not exist"
		}
	}
	return ""
}

// AssignRole assigns a scope to a user (superadmin only)
// @Summary Assign a role
// @Tags admin
// @Accept json
// @Produce json
// @Success 201 {object} RoleResponse
// @Failure 400 {object} map[string]string "Validation error"
// @Security BearerAuth
// @Router /admin/roles [post]
func (h *Handler) AssignRole(c *gin.Context) {
	var req AssignRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var user models.User
	if err := h.db.First(&user, req.UserID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	if msg := h.validateAssignment(req); msg != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": msg})
		return
	}

	role := models.UserRole{
		UserID:          req.UserID,
		Level:           models.ScopeLevel(req.Level),
		RegionID:        req.RegionID,
		UniversityID:    req.UniversityID,
		SmallGroupID:    req.SmallGroupID,
		GraduateGroupID: req.GraduateGroupID,
	}
	if err := h.db.Create(&role).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to assign role"})
		return
	}
	c.JSON(http.StatusCreated, toRoleResponse(role))
}

// ListRoles returns role assignments, optionally for one user
// @Summary List role assignments
// @Tags admin
// @Produce json
// @Param user_id query int false "Filter by user"
// @Success 200 {array} RoleResponse
// @Security BearerAuth
// @Router /admin/roles [get]
func (h *Handler) ListRoles(c *gin.Context) {
	query := h.db.Order("id ASC")
	if raw := c.Query("user_id"); raw != "" {
		parsed, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
			return
		}
		query = query.Where("user_id = ?", uint(parsed))
	}

	var roles []models.UserRole
	if err := query.Find(&roles).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch roles"})
		return
	}

	out := make([]RoleResponse, len(roles))
	for i, r := range roles {
		out[i] = toRoleResponse(r)
	}
	c.JSON(http.StatusOK, out)
}

// RevokeRole removes a role assignment (superadmin only)
// @Summary Revoke a role assignment
// @Tags admin
// @Produce json
// @Success 200 {object} map[string]string
// @Failure 404 {object} map[string]string "Role not found"
// @Security BearerAuth
// @Router /admin/roles/{id} [delete]
func (h *Handler) RevokeRole(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid role ID"})
		return
	}

	var role models.UserRole
	if err := h.db.First(&role, uint(id)).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Role not found"})
		return
	}

	if err := h.db.Delete(&role).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to revoke role"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Role revoked"})
}

// RegisterRoutes registers admin routes on the given router group
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/users", h.ListUsers)
	rg.POST("/roles", h.AssignRole)
	rg.GET("/roles", h.ListRoles)
	rg.DELETE("/roles/:id", h.RevokeRole)
}
