package handler

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/bitfantasy/repairhub/internal/repair/service"
	"github.com/bitfantasy/repairhub/internal/repair/testutil"
)

func setupOrderTest(t *testing.T) (*gorm.DB, *gin.Engine) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	services := testutil.SetupServices(t, db)
	h := NewHandlers(services, testutil.TestConfig())

	router := testutil.SetupRouter()
	api := testutil.AuthGroup(router, "/api/v1")
	api.GET("/orders", h.Order.List)
	api.POST("/orders", h.Order.Create)
	api.GET("/orders/:id", h.Order.Get)
	api.PUT("/orders/:id", h.Order.Update)
	api.DELETE("/orders/:id", h.Order.Delete)
	api.POST("/orders/:id/move", h.Order.Move)
	api.GET("/orders/:id/history", h.Order.History)
	api.POST("/orders/:id/comments", h.Order.AddComment)

	testutil.SeedBranch(t, db, "br-1", "Chilonzor")
	testutil.SeedRole(t, db, "role-1", "manager", "Manager")
	testutil.SeedAdmin(t, db, "admin-1", "br-1", "Aziz", []string{"role-1"})
	testutil.SeedStatus(t, db, "st-1", "br-1", "Yangi", 1)
	testutil.SeedStatus(t, db, "st-2", "br-1", "Tashxis", 2)
	testutil.SeedPermission(t, db, testutil.FullPermission("role-1", "st-1"))
	testutil.SeedPermission(t, db, testutil.FullPermission("role-1", "st-2"))
	testutil.SeedPhoneCategory(t, db, "ph-1", "iPhone 15")

	return db, router
}

func managerToken() string {
	return testutil.GenerateTestToken("admin-1", "Aziz", "br-1", []string{"role-1"})
}

func TestOrderCreateAndGet(t *testing.T) {
	_, router := setupOrderTest(t)
	token := managerToken()

	w := testutil.DoRequest(router, "POST", "/api/v1/orders", map[string]interface{}{
		"branch_id":         "br-1",
		"phone_category_id": "ph-1",
		"customer_name":     "Mijoz",
		"customer_phone":    "+998901234567",
	}, token)
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body.String())
	}
	resp := testutil.ParseResponse(w)
	data := resp["data"].(map[string]interface{})
	orderID := data["id"].(string)
	if data["status_id"] != "st-1" {
		t.Errorf("Expected order in st-1, got %v", data["status_id"])
	}
	if data["sort"] != float64(1) {
		t.Errorf("Expected sort 1, got %v", data["sort"])
	}

	w = testutil.DoRequest(router, "GET", "/api/v1/orders/"+orderID, nil, token)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	resp = testutil.ParseResponse(w)
	data = resp["data"].(map[string]interface{})
	if data["customer_name"] != "Mijoz" {
		t.Errorf("Expected customer Mijoz, got %v", data["customer_name"])
	}
}

func TestOrderCreateRequiresAuth(t *testing.T) {
	_, router := setupOrderTest(t)

	w := testutil.DoRequest(router, "POST", "/api/v1/orders", map[string]interface{}{
		"branch_id":         "br-1",
		"phone_category_id": "ph-1",
	}, "")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 without token, got %d", w.Code)
	}
}

func TestOrderCreatePermissionDeniedMapsTo403(t *testing.T) {
	db, router := setupOrderTest(t)

	testutil.SeedRole(t, db, "role-view", "viewer", "Viewer")
	token := testutil.GenerateTestToken("admin-1", "Aziz", "br-1", []string{"role-view"})

	w := testutil.DoRequest(router, "POST", "/api/v1/orders", map[string]interface{}{
		"branch_id":         "br-1",
		"phone_category_id": "ph-1",
	}, token)
	if w.Code != http.StatusForbidden {
		t.Fatalf("Expected 403, got %d: %s", w.Code, w.Body.String())
	}
	resp := testutil.ParseResponse(w)
	if resp["code"] != float64(40300) {
		t.Errorf("Expected code 40300, got %v", resp["code"])
	}
}

func TestOrderValidationMapsTo400WithField(t *testing.T) {
	_, router := setupOrderTest(t)
	token := managerToken()

	w := testutil.DoRequest(router, "POST", "/api/v1/orders", map[string]interface{}{
		"branch_id":         "br-1",
		"phone_category_id": "ph-1",
		"priority":          "urgent",
	}, token)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d: %s", w.Code, w.Body.String())
	}
	resp := testutil.ParseResponse(w)
	if resp["field"] != "priority" {
		t.Errorf("Expected field priority in response, got %v", resp["field"])
	}
}

func TestOrderMoveAndHistory(t *testing.T) {
	_, router := setupOrderTest(t)
	token := managerToken()

	w := testutil.DoRequest(router, "POST", "/api/v1/orders", map[string]interface{}{
		"branch_id":         "br-1",
		"phone_category_id": "ph-1",
	}, token)
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body.String())
	}
	orderID := testutil.ParseResponse(w)["data"].(map[string]interface{})["id"].(string)

	w = testutil.DoRequest(router, "POST", "/api/v1/orders/"+orderID+"/move", map[string]interface{}{
		"status_id": "st-2",
		"sort":      1,
	}, token)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200 on move, got %d: %s", w.Code, w.Body.String())
	}

	w = testutil.DoRequest(router, "GET", "/api/v1/orders/"+orderID+"/history", nil, token)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200 on history, got %d: %s", w.Code, w.Body.String())
	}
	data := testutil.ParseResponse(w)["data"].(map[string]interface{})
	items := data["items"].([]interface{})
	// order_created + status_id 两条
	if len(items) < 2 {
		t.Errorf("Expected at least 2 history rows, got %d", len(items))
	}
}

func TestOrderListGroupsByStatus(t *testing.T) {
	_, router := setupOrderTest(t)
	token := managerToken()

	for i := 0; i < 2; i++ {
		w := testutil.DoRequest(router, "POST", "/api/v1/orders", map[string]interface{}{
			"branch_id":         "br-1",
			"phone_category_id": "ph-1",
		}, token)
		if w.Code != http.StatusCreated {
			t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body.String())
		}
	}

	w := testutil.DoRequest(router, "GET", "/api/v1/orders?page=1&page_size=10", nil, token)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	data := testutil.ParseResponse(w)["data"].(map[string]interface{})
	columns := data["columns"].(map[string]interface{})
	col := columns["st-1"].([]interface{})
	if len(col) != 2 {
		t.Errorf("Expected 2 orders in st-1 column, got %d", len(col))
	}
}

func TestOrderDeleteThenGet404(t *testing.T) {
	_, router := setupOrderTest(t)
	token := managerToken()

	w := testutil.DoRequest(router, "POST", "/api/v1/orders", map[string]interface{}{
		"branch_id":         "br-1",
		"phone_category_id": "ph-1",
	}, token)
	orderID := testutil.ParseResponse(w)["data"].(map[string]interface{})["id"].(string)

	w = testutil.DoRequest(router, "DELETE", "/api/v1/orders/"+orderID, nil, token)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200 on delete, got %d: %s", w.Code, w.Body.String())
	}

	w = testutil.DoRequest(router, "GET", "/api/v1/orders/"+orderID, nil, token)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 after delete, got %d", w.Code)
	}
}

func TestAuthLogin(t *testing.T) {
	db := testutil.SetupTestDB(t)
	services := testutil.SetupServices(t, db)
	h := NewHandlers(services, testutil.TestConfig())

	router := testutil.SetupRouter()
	router.POST("/api/v1/auth/login", h.Auth.Login)

	testutil.SeedBranch(t, db, "br-1", "Chilonzor")
	testutil.SeedRole(t, db, "role-1", "manager", "Manager")
	admin := testutil.SeedAdmin(t, db, "admin-1", "br-1", "Aziz", []string{"role-1"})
	hash, err := service.HashPassword("parol123")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	db.Model(admin).Update("password_hash", hash)

	w := testutil.DoRequest(router, "POST", "/api/v1/auth/login", map[string]interface{}{
		"phone":    admin.Phone,
		"password": "parol123",
	}, "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	data := testutil.ParseResponse(w)["data"].(map[string]interface{})
	if data["token"] == nil || data["token"] == "" {
		t.Errorf("Expected token in login response")
	}

	w = testutil.DoRequest(router, "POST", "/api/v1/auth/login", map[string]interface{}{
		"phone":    admin.Phone,
		"password": "wrong",
	}, "")
	if w.Code != http.StatusForbidden {
		t.Errorf("Expected 403 for bad password, got %d", w.Code)
	}
}
