package members

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

	members := r.Group("/members")
	members.Use(auth.AuthMiddleware(), auth.ScopeMiddleware(db))
	handler.RegisterRoutes(members)

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

type hierarchy struct {
	region models.Region
	uni    models.University
	alpha  models.SmallGroup
	beta   models.SmallGroup
	grad   models.GraduateSmallGroup
}

func seedHierarchy(t *testing.T, db *gorm.DB) hierarchy {
	t.Helper()
	h := hierarchy{region: models.Region{Name: "Kigali"}}
	db.Create(&h.region)
	h.uni = models.University{Name: "UoK", RegionID: h.region.ID}
	db.Create(&h.uni)
	h.alpha = models.SmallGroup{Name: "Alpha", RegionID: h.region.ID, UniversityID: h.uni.ID}
	db.Create(&h.alpha)
	h.beta = models.SmallGroup{Name: "Beta", RegionID: h.region.ID, UniversityID: h.uni.ID}
	db.Create(&h.beta)
	h.grad = models.GraduateSmallGroup{Name: "Graduates", RegionID: h.region.ID}
	db.Create(&h.grad)
	return h
}

func seedMember(t *testing.T, db *gorm.DB, name string, group models.SmallGroup) models.Member {
	t.Helper()
	m := models.Member{
		FirstName:    name,
		RegionID:     group.RegionID,
		UniversityID: group.UniversityID,
		SmallGroupID: uintPtr(group.ID),
	}
	if err := db.Create(&m).Error; err != nil {
		t.Fatalf("Failed to create member: %v", err)
	}
	return m
}

func TestListMembersScoped(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	h := seedHierarchy(t, db)

	seedMember(t, db, "A1", h.alpha)
	seedMember(t, db, "A2", h.alpha)
	seedMember(t, db, "B1", h.beta)

	uniUser := createUserWithRole(t, db, "uni", models.UserRole{Level: models.ScopeUniversity, UniversityID: uintPtr(h.uni.ID)})
	leader := createUserWithRole(t, db, "leader", models.UserRole{Level: models.ScopeSmallGroup, SmallGroupID: uintPtr(h.alpha.ID)})

	resp := doRequest(router, "GET", "/members", nil, uniUser)
	if resp.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	var list []MemberResponse
	json.Unmarshal(resp.Body.Bytes(), &list)
	if len(list) != 3 {
		t.Errorf("Expected university scope to see 3 members, got %d", len(list))
	}

	resp = doRequest(router, "GET", "/members", nil, leader)
	json.Unmarshal(resp.Body.Bytes(), &list)
	if len(list) != 2 {
		t.Errorf("Expected group leader to see 2 members, got %d", len(list))
	}
}

func TestListMembersGroupParamOutsideScope(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	h := seedHierarchy(t, db)

	leader := createUserWithRole(t, db, "leader", models.UserRole{Level: models.ScopeSmallGroup, SmallGroupID: uintPtr(h.alpha.ID)})

	resp := doRequest(router, "GET", fmt.Sprintf("/members?small_group_id=%d", h.beta.ID), nil, leader)
	if resp.Code != http.StatusForbidden {
		t.Errorf("Expected 403 for group param outside scope, got %d", resp.Code)
	}

	resp = doRequest(router, "GET", fmt.Sprintf("/members?small_group_id=%d", h.alpha.ID), nil, leader)
	if resp.Code != http.StatusOK {
		t.Errorf("Expected 200 for own group param, got %d", resp.Code)
	}
}

func TestGetMemberOutOfScopeIs404(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	h := seedHierarchy(t, db)

	other := seedMember(t, db, "B1", h.beta)
	leader := createUserWithRole(t, db, "leader", models.UserRole{Level: models.ScopeSmallGroup, SmallGroupID: uintPtr(h.alpha.ID)})

	resp := doRequest(router, "GET", fmt.Sprintf("/members/%d", other.ID), nil, leader)
	if resp.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for member in sibling group, got %d", resp.Code)
	}
}

func TestCreateMemberInheritsGroupHierarchy(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	h := seedHierarchy(t, db)

	leader := createUserWithRole(t, db, "leader", models.UserRole{Level: models.ScopeSmallGroup, SmallGroupID: uintPtr(h.alpha.ID)})

	resp := doRequest(router, "POST", "/members", MemberRequest{
		FirstName:    "Jean",
		SecondName:   "Bosco",
		SmallGroupID: uintPtr(h.alpha.ID),
	}, leader)
	if resp.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", resp.Code, resp.Body.String())
	}

	var body MemberResponse
	json.Unmarshal(resp.Body.Bytes(), &body)
	if body.RegionID != h.region.ID || body.UniversityID != h.uni.ID {
		t.Errorf("Expected member to inherit group's hierarchy, got %+v", body)
	}
	if body.Name != "Jean Bosco" {
		t.Errorf("Expected display name 'Jean Bosco', got %q", body.Name)
	}
}

func TestCreateMemberOutsideOwnGroupDenied(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	h := seedHierarchy(t, db)

	leader := createUserWithRole(t, db, "leader", models.UserRole{Level: models.ScopeSmallGroup, SmallGroupID: uintPtr(h.alpha.ID)})

	resp := doRequest(router, "POST", "/members", MemberRequest{
		FirstName:    "Sneaky",
		SmallGroupID: uintPtr(h.beta.ID),
	}, leader)
	if resp.Code != http.StatusForbidden {
		t.Errorf("Expected 403 for create in sibling group, got %d", resp.Code)
	}
}

func TestCreateMemberInBothBranchesRejected(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	h := seedHierarchy(t, db)

	admin := createUserWithRole(t, db, "admin", models.UserRole{Level: models.ScopeSuperAdmin})

	resp := doRequest(router, "POST", "/members", MemberRequest{
		FirstName:       "Twice",
		SmallGroupID:    uintPtr(h.alpha.ID),
		GraduateGroupID: uintPtr(h.grad.ID),
	}, admin)
	if resp.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for member in both branches, got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestCreateMemberMismatchedUniversityRejected(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	h := seedHierarchy(t, db)

	other := models.University{Name: "KIST", RegionID: h.region.ID}
	db.Create(&other)

	admin := createUserWithRole(t, db, "admin", models.UserRole{Level: models.ScopeSuperAdmin})

	resp := doRequest(router, "POST", "/members", MemberRequest{
		FirstName:    "Mismatch",
		UniversityID: other.ID,
		SmallGroupID: uintPtr(h.alpha.ID),
	}, admin)
	if resp.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for university not matching the group's, got %d", resp.Code)
	}
}

func TestUpdateMemberCannotMoveOutsideScope(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	h := seedHierarchy(t, db)

	m := seedMember(t, db, "Movable", h.alpha)
	leader := createUserWithRole(t, db, "leader", models.UserRole{Level: models.ScopeSmallGroup, SmallGroupID: uintPtr(h.alpha.ID)})

	resp := doRequest(router, "PUT", fmt.Sprintf("/members/%d", m.ID), MemberRequest{
		FirstName:    "Movable",
		SmallGroupID: uintPtr(h.beta.ID),
	}, leader)
	if resp.Code != http.StatusForbidden {
		t.Errorf("Expected 403 for move into sibling group, got %d", resp.Code)
	}
}

func TestDeleteMemberScoped(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	h := seedHierarchy(t, db)

	own := seedMember(t, db, "Own", h.alpha)
	other := seedMember(t, db, "Other", h.beta)
	leader := createUserWithRole(t, db, "leader", models.UserRole{Level: models.ScopeSmallGroup, SmallGroupID: uintPtr(h.alpha.ID)})

	resp := doRequest(router, "DELETE", fmt.Sprintf("/members/%d", other.ID), nil, leader)
	if resp.Code != http.StatusNotFound {
		t.Errorf("Expected 404 deleting out-of-scope member, got %d", resp.Code)
	}

	resp = doRequest(router, "DELETE", fmt.Sprintf("/members/%d", own.ID), nil, leader)
	if resp.Code != http.StatusOK {
		t.Errorf("Expected 200 deleting own member, got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestGraduateLeaderSeesOnlyOwnBranch(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	h := seedHierarchy(t, db)

	seedMember(t, db, "Student", h.alpha)
	gradMember := models.Member{FirstName: "Grad", RegionID: h.region.ID, GraduateGroupID: uintPtr(h.grad.ID)}
	db.Create(&gradMember)

	gradLeader := createUserWithRole(t, db, "grad", models.UserRole{Level: models.ScopeGraduateGroup, GraduateGroupID: uintPtr(h.grad.ID)})

	resp := doRequest(router, "GET", "/members", nil, gradLeader)
	if resp.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	var list []MemberResponse
	json.Unmarshal(resp.Body.Bytes(), &list)
	if len(list) != 1 || list[0].FirstName != "Grad" {
		t.Errorf("Expected graduate leader to see only graduate members, got %+v", list)
	}
}
