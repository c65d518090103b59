package testutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/bitfantasy/repairhub/internal/config"
	"github.com/bitfantasy/repairhub/internal/middleware"
	"github.com/bitfantasy/repairhub/internal/repair/entity"
	"github.com/bitfantasy/repairhub/internal/repair/repository"
	"github.com/bitfantasy/repairhub/internal/repair/service"
)

const (
	TestSchema = "test_repairhub"
	JWTSecret  = "repairhub-jwt-secret-key-2025"
)

// TestEnv holds test environment resources
type TestEnv struct {
	DB     *gorm.DB
	Router *gin.Engine
	T      *testing.T
}

// projectRoot returns the project root directory by looking for go.mod
func projectRoot() string {
	_, filename, _, _ := runtime.Caller(0)
	dir := filepath.Dir(filename)
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

// loadEnv loads .env from the project root
func loadEnv() {
	root := projectRoot()
	if root != "" {
		godotenv.Load(filepath.Join(root, ".env"))
	}
}

// SetupTestDB creates a test database connection using a dedicated test schema.
// Each test gets an isolated schema that is cleaned up after the test.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	loadEnv()

	host := getEnv("DB_HOST", "127.0.0.1")
	port := getEnv("DB_PORT", "5432")
	user := getEnv("DB_USER", "repairhub")
	password := getEnv("DB_PASSWORD", "repairhub123")
	dbname := getEnv("DB_NAME", "repairhub")

	baseDSN := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	// Create a unique test schema for isolation
	schemaName := fmt.Sprintf("%s_%d", TestSchema, time.Now().UnixNano()%1000000)

	// First: create schema using a temporary connection
	setupDB, err := gorm.Open(postgres.Open(baseDSN), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("Failed to connect to database for schema setup: %v", err)
	}
	setupDB.Exec(fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", schemaName))
	sqlSetup, _ := setupDB.DB()
	sqlSetup.Close()

	// Second: open connection with search_path in DSN so ALL pooled connections use test schema
	testDSN := fmt.Sprintf("%s search_path=%s", baseDSN, schemaName)
	db, err := gorm.Open(postgres.Open(testDSN), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}

	// Migrate test tables
	err = db.AutoMigrate(
		&entity.Branch{},
		&entity.Role{},
		&entity.Admin{},
		&entity.AdminRole{},
		&entity.RepairOrderStatus{},
		&entity.StatusPermission{},
		&entity.PhoneCategory{},
		&entity.ProblemCategory{},
		&entity.Part{},
		&entity.PhoneProblemMapping{},
		&entity.PartAssignment{},
		&entity.RepairOrder{},
		&entity.OrderAdmin{},
		&entity.InitialProblem{},
		&entity.ProblemPart{},
		&entity.FinalProblem{},
		&entity.Comment{},
		&entity.Attachment{},
		&entity.Pickup{},
		&entity.Delivery{},
		&entity.RentalPhone{},
		&entity.Payment{},
		&entity.ChangeHistory{},
	)
	if err != nil {
		t.Fatalf("Failed to migrate test tables: %v", err)
	}

	// Cleanup on test completion
	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		if sqlDB != nil {
			sqlDB.Close()
		}
		// Reconnect to drop the schema
		cleanDB, cleanErr := gorm.Open(postgres.Open(baseDSN), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		if cleanErr == nil {
			cleanDB.Exec(fmt.Sprintf("DROP SCHEMA IF EXISTS %s CASCADE", schemaName))
			sqlClean, _ := cleanDB.DB()
			if sqlClean != nil {
				sqlClean.Close()
			}
		}
	})

	return db
}

// TestConfig returns a config suitable for service-level tests
func TestConfig() *config.Config {
	return &config.Config{
		JWT: config.JWTConfig{
			Secret:            JWTSecret,
			AccessTokenExpire: 24 * time.Hour,
			Issuer:            "repairhub-test",
		},
		Cache: config.CacheConfig{
			OrderListTTL:  5 * time.Minute,
			PermissionTTL: 2 * time.Minute,
		},
	}
}

// SetupServices wires the full service stack against the test database.
// Redis is nil so both caches degrade to pass-through.
func SetupServices(t *testing.T, db *gorm.DB) *service.Services {
	t.Helper()
	repos := repository.NewRepositories(db)
	return service.NewServices(repos, db, nil, TestConfig(), zap.NewNop())
}

// SetupRouter creates a gin test router
func SetupRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(gin.Recovery())
	return r
}

// AuthGroup creates an API group with JWT auth middleware for testing
func AuthGroup(r *gin.Engine, path string) *gin.RouterGroup {
	return r.Group(path, middleware.JWTAuth(JWTSecret))
}

// GenerateTestToken creates a valid JWT token for testing
func GenerateTestToken(adminID, name, branchID string, roleIDs []string) string {
	if roleIDs == nil {
		roleIDs = []string{}
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"sub":       adminID,
		"uid":       adminID,
		"name":      name,
		"branch_id": branchID,
		"role_ids":  roleIDs,
		"iss":       "repairhub-test",
		"iat":       now.Unix(),
		"exp":       now.Add(24 * time.Hour).Unix(),
		"jti":       fmt.Sprintf("test-jti-%d", now.UnixNano()),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, _ := token.SignedString([]byte(JWTSecret))
	return tokenString
}

// DoRequest executes an HTTP request against the test router
func DoRequest(r *gin.Engine, method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	var reqBody *bytes.Buffer
	if body != nil {
		jsonBytes, _ := json.Marshal(body)
		reqBody = bytes.NewBuffer(jsonBytes)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req, _ := http.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// ParseResponse parses the JSON response body into a handler.Response-like map
func ParseResponse(w *httptest.ResponseRecorder) map[string]interface{} {
	var result map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &result)
	return result
}

// SeedBranch creates a test branch
func SeedBranch(t *testing.T, db *gorm.DB, id, name string) *entity.Branch {
	t.Helper()
	branch := &entity.Branch{
		ID:        id,
		NameUz:    name,
		IsActive:  true,
		Status:    entity.LifecycleOpen,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := db.Create(branch).Error; err != nil {
		t.Fatalf("Failed to seed test branch: %v", err)
	}
	return branch
}

// SeedRole creates a test role
func SeedRole(t *testing.T, db *gorm.DB, id, code, name string) *entity.Role {
	t.Helper()
	role := &entity.Role{
		ID:        id,
		Code:      code,
		Name:      name,
		Status:    "active",
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := db.Create(role).Error; err != nil {
		t.Fatalf("Failed to seed test role: %v", err)
	}
	return role
}

// SeedAdmin creates a test admin bound to a branch with the given roles
func SeedAdmin(t *testing.T, db *gorm.DB, id, branchID, name string, roleIDs []string) *entity.Admin {
	t.Helper()
	admin := &entity.Admin{
		ID:           id,
		BranchID:     &branchID,
		Name:         name,
		Phone:        "+99890" + id,
		PasswordHash: "x",
		IsActive:     true,
		Status:       entity.LifecycleOpen,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	if err := db.Create(admin).Error; err != nil {
		t.Fatalf("Failed to seed test admin: %v", err)
	}
	for _, roleID := range roleIDs {
		link := &entity.AdminRole{AdminID: id, RoleID: roleID}
		if err := db.Create(link).Error; err != nil {
			t.Fatalf("Failed to seed admin role link: %v", err)
		}
	}
	return admin
}

// SeedStatus creates a kanban status column for a branch
func SeedStatus(t *testing.T, db *gorm.DB, id, branchID, name string, sort int) *entity.RepairOrderStatus {
	t.Helper()
	status := &entity.RepairOrderStatus{
		ID:        id,
		BranchID:  branchID,
		NameUz:    name,
		Sort:      sort,
		Type:      entity.StatusTypeNone,
		IsActive:  true,
		Status:    entity.LifecycleOpen,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := db.Create(status).Error; err != nil {
		t.Fatalf("Failed to seed test status: %v", err)
	}
	return status
}

// SeedPermission inserts a (role, status) permission row
func SeedPermission(t *testing.T, db *gorm.DB, perm *entity.StatusPermission) *entity.StatusPermission {
	t.Helper()
	if perm.ID == "" {
		perm.ID = fmt.Sprintf("perm-%s-%s", perm.RoleID, perm.StatusID)
	}
	perm.CreatedAt = time.Now()
	perm.UpdatedAt = time.Now()
	if err := db.Create(perm).Error; err != nil {
		t.Fatalf("Failed to seed test permission: %v", err)
	}
	return perm
}

// FullPermission returns a permission row with every capability granted
func FullPermission(roleID, statusID string) *entity.StatusPermission {
	return &entity.StatusPermission{
		RoleID:                   roleID,
		StatusID:                 statusID,
		CanView:                  true,
		CanAdd:                   true,
		CanUpdate:                true,
		CanAssignAdmin:           true,
		CanComment:               true,
		CanPickupManage:          true,
		CanDeliveryManage:        true,
		CanChangeInitialProblems: true,
		CanChangeFinalProblems:   true,
	}
}

// SeedPhoneCategory creates a phone category
func SeedPhoneCategory(t *testing.T, db *gorm.DB, id, name string) *entity.PhoneCategory {
	t.Helper()
	cat := &entity.PhoneCategory{
		ID:        id,
		Name:      name,
		IsActive:  true,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := db.Create(cat).Error; err != nil {
		t.Fatalf("Failed to seed phone category: %v", err)
	}
	return cat
}

// SeedProblemCategory creates a problem category node. parentID may be empty for roots.
func SeedProblemCategory(t *testing.T, db *gorm.DB, id, name, parentID string) *entity.ProblemCategory {
	t.Helper()
	cat := &entity.ProblemCategory{
		ID:        id,
		Name:      name,
		IsActive:  true,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if parentID != "" {
		cat.ParentID = &parentID
	}
	if err := db.Create(cat).Error; err != nil {
		t.Fatalf("Failed to seed problem category: %v", err)
	}
	return cat
}

// SeedMapping links a phone category to a problem category
func SeedMapping(t *testing.T, db *gorm.DB, phoneCategoryID, problemCategoryID string) {
	t.Helper()
	m := &entity.PhoneProblemMapping{
		ID:                fmt.Sprintf("map-%s-%s", phoneCategoryID, problemCategoryID),
		PhoneCategoryID:   phoneCategoryID,
		ProblemCategoryID: problemCategoryID,
		CreatedAt:         time.Now(),
	}
	if err := db.Create(m).Error; err != nil {
		t.Fatalf("Failed to seed phone problem mapping: %v", err)
	}
}

// SeedPart creates a part
func SeedPart(t *testing.T, db *gorm.DB, id, name string) *entity.Part {
	t.Helper()
	part := &entity.Part{
		ID:        id,
		Code:      "code-" + id,
		Name:      name,
		IsActive:  true,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := db.Create(part).Error; err != nil {
		t.Fatalf("Failed to seed part: %v", err)
	}
	return part
}

// SeedPartAssignment links a part to a problem category
func SeedPartAssignment(t *testing.T, db *gorm.DB, partID, problemCategoryID string) {
	t.Helper()
	a := &entity.PartAssignment{
		ID:                fmt.Sprintf("pa-%s-%s", partID, problemCategoryID),
		PartID:            partID,
		ProblemCategoryID: problemCategoryID,
		CreatedAt:         time.Now(),
	}
	if err := db.Create(a).Error; err != nil {
		t.Fatalf("Failed to seed part assignment: %v", err)
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
