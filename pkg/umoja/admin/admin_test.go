package admin

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rukundo/umoja/pkg/umoja/auth"
	"github.com/rukundo/umoja/pkg/umoja/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	models.AutoMigrate(db)
	return db
}

func setupTestRouter(db *gorm.DB) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := NewHandler(db)

	admin := r.Group("/admin")
	admin.Use(auth.AuthMiddleware(), auth.ScopeMiddleware(db), auth.RequireSuperAdmin())
	handler.RegisterRoutes(admin)

	return r
}

func uintPtr(v uint) *uint { return &v }

func createUserWithRole(t *testing.T, db *gorm.DB, email string, role models.UserRole) models.User {
	t.Helper()
	user := models.User{Email: email, Name: email, PasswordHash: "x"}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("Failed to create user: %v", err)
	}
	role.UserID = user.ID
	if err := db.Create(&role).Error; err != nil {
		t.Fatalf("Failed to create role: %v", err)
	}
	return user
}

func doRequest(router *gin.Engine, method, path string, body interface{}, user models.User) *httptest.ResponseRecorder {
	var buf *bytes.Buffer
	if body != nil {
		b, _ := json.Marshal(body)
		buf = bytes.NewBuffer(b)
	} else {
		buf = bytes.NewBuffer(nil)
	}
	req, _ := http.NewRequest(method, path, buf)
	req.Header.Set("Content-Type", "application/json")
	token, _ := auth.GenerateToken(user.ID, user.Email)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func TestListUsersSuperAdminOnly(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)

	admin := createUserWithRole(t, db, "admin@umoja.local", models.UserRole{Level: models.ScopeSuperAdmin})
	national := createUserWithRole(t, db, "national@umoja.local", models.UserRole{Level: models.ScopeNational})

	resp := doRequest(router, "GET", "/admin/users", nil, admin)
	if resp.Code != http.StatusOK {
		t.Fatalf("Expected 200 for superadmin, got %d: %s", resp.Code, resp.Body.String())
	}
	var users []UserResponse
	json.Unmarshal(resp.Body.Bytes(), &users)
	if len(users) != 2 {
		t.Errorf("Expected 2 users, got %d", len(users))
	}

	resp = doRequest(router, "GET", "/admin/users", nil, national)
	if resp.Code != http.StatusForbidden {
		t.Errorf("Expected 403 for national scope, got %d", resp.Code)
	}
}

func TestListUsersSearch(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)

	admin := createUserWithRole(t, db, "admin@umoja.local", models.UserRole{Level: models.ScopeSuperAdmin})
	db.Create(&models.User{Email: "alice@example.com", Name: "Alice", PasswordHash: "x"})
	db.Create(&models.User{Email: "bob@example.com", Name: "Bob", PasswordHash: "x"})

	resp := doRequest(router, "GET", "/admin/users?search=alice", nil, admin)
	if resp.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.Code)
	}
	var users []UserResponse
	json.Unmarshal(resp.Body.Bytes(), &users)
	if len(users) != 1 || users[0].Email != "alice@example.com" {
		t.Errorf("Expected search to match only alice, got %+v", users)
	}
}

func TestAssignRole(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)

	admin := createUserWithRole(t, db, "admin@umoja.local", models.UserRole{Level: models.ScopeSuperAdmin})
	target := models.User{Email: "leader@umoja.local", Name: "Leader", PasswordHash: "x"}
	db.Create(&target)

	region := models.Region{Name: "Kigali"}
	db.Create(&region)
	uni := models.University{Name: "UoK", RegionID: region.ID}
	db.Create(&uni)

	body := AssignRoleRequest{UserID: target.ID, Level: "university", RegionID: uintPtr(region.ID), UniversityID: uintPtr(uni.ID)}
	resp := doRequest(router, "POST", "/admin/roles", body, admin)
	if resp.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", resp.Code, resp.Body.String())
	}
	var role RoleResponse
	json.Unmarshal(resp.Body.Bytes(), &role)
	if role.UserID != target.ID || role.Level != "university" {
		t.Errorf("Unexpected role response: %+v", role)
	}

	var count int64
	db.Model(&models.UserRole{}).Where("user_id = ?", target.ID).Count(&count)
	if count != 1 {
		t.Errorf("Expected 1 stored role, got %d", count)
	}
}

func TestAssignRoleUnknownUser(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)

	admin := createUserWithRole(t, db, "admin@umoja.local", models.UserRole{Level: models.ScopeSuperAdmin})

	body := AssignRoleRequest{UserID: 999, Level: "national"}
	resp := doRequest(router, "POST", "/admin/roles", body, admin)
	if resp.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown user, got %d", resp.Code)
	}
}

func TestAssignRoleMissingLevelID(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)

	admin := createUserWithRole(t, db, "admin@umoja.local", models.UserRole{Level: models.ScopeSuperAdmin})
	target := models.User{Email: "leader@umoja.local", Name: "Leader", PasswordHash: "x"}
	db.Create(&target)

	// A region role without a region id is unusable; reject it up front.
	body := AssignRoleRequest{UserID: target.ID, Level: "region"}
	resp := doRequest(router, "POST", "/admin/roles", body, admin)
	if resp.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for region role without region_id, got %d", resp.Code)
	}
}

func TestAssignRoleInconsistentChain(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)

	admin := createUserWithRole(t, db, "admin@umoja.local", models.UserRole{Level: models.ScopeSuperAdmin})
	target := models.User{Email: "leader@umoja.local", Name: "Leader", PasswordHash: "x"}
	db.Create(&target)

	kigali := models.Region{Name: "Kigali"}
	db.Create(&kigali)
	north := models.Region{Name: "North"}
	db.Create(&north)
	uni := models.University{Name: "UoK", RegionID: kigali.ID}
	db.Create(&uni)

	body := AssignRoleRequest{UserID: target.ID, Level: "university", RegionID: uintPtr(north.ID), UniversityID: uintPtr(uni.ID)}
	resp := doRequest(router, "POST", "/admin/roles", body, admin)
	if resp.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for university outside the given region, got %d", resp.Code)
	}
}

func TestListRolesFilteredByUser(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)

	admin := createUserWithRole(t, db, "admin@umoja.local", models.UserRole{Level: models.ScopeSuperAdmin})
	national := createUserWithRole(t, db, "national@umoja.local", models.UserRole{Level: models.ScopeNational})

	resp := doRequest(router, "GET", fmt.Sprintf("/admin/roles?user_id=%d", national.ID), nil, admin)
	if resp.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.Code)
	}
	var roles []RoleResponse
	json.Unmarshal(resp.Body.Bytes(), &roles)
	if len(roles) != 1 || roles[0].UserID != national.ID {
		t.Errorf("Expected only the national user's role, got %+v", roles)
	}
}

func TestRevokeRole(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)

	admin := createUserWithRole(t, db, "admin@umoja.local", models.UserRole{Level: models.ScopeSuperAdmin})
	national := createUserWithRole(t, db, "national@umoja.local", models.UserRole{Level: models.ScopeNational})

	var role models.UserRole
	db.Where("user_id = ?", national.ID).First(&role)

	resp := doRequest(router, "DELETE", fmt.Sprintf("/admin/roles/%d", role.ID), nil, admin)
	if resp.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", resp.Code, resp.Body.String())
	}

	resp = doRequest(router, "DELETE", fmt.Sprintf("/admin/roles/%d", role.ID), nil, admin)
	if resp.Code != http.StatusNotFound {
		t.Errorf("Expected 404 revoking an already-revoked role, got %d", resp.Code)
	}
}
