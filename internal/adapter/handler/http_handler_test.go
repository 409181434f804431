package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/rl1809/stock-ledger/internal/adapter/storage"
	"github.com/rl1809/stock-ledger/internal/auth"
	"github.com/rl1809/stock-ledger/internal/core/domain"
	"github.com/rl1809/stock-ledger/internal/core/service"
)

type handlerFixture struct {
	router     *gin.Engine
	store      *storage.MemoryStore
	adminToken string
	staffToken string
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := storage.NewMemoryStore()
	log := zap.NewNop().Sugar()

	inventory := service.NewInventoryService(store, nil, log)
	reports := service.NewReportService(store, log)

	provider, err := auth.NewStaticProvider("admin@example.com:admin:admin,staff@example.com:staff:staff")
	if err != nil {
		t.Fatalf("NewStaticProvider failed: %v", err)
	}
	tokens := auth.NewTokenManager("test-secret", time.Hour)

	h := NewHTTPHandler(inventory, reports, provider, tokens, log)

	adminToken, err := tokens.Issue(domain.Actor{ID: "a1", Email: "admin@example.com", Role: domain.RoleAdmin})
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	staffToken, err := tokens.Issue(domain.Actor{ID: "s1", Email: "staff@example.com", Role: domain.RoleStaff})
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	return &handlerFixture{
		router:     h.Router(),
		store:      store,
		adminToken: adminToken,
		staffToken: staffToken,
	}
}

func (f *handlerFixture) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]json.RawMessage {
	t.Helper()
	out := map[string]json.RawMessage{}
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
	return out
}

func (f *handlerFixture) createItem(t *testing.T, name, sku string, quantity int) domain.Item {
	t.Helper()
	w := f.do(t, http.MethodPost, "/api/items", f.adminToken, gin.H{
		"name": name, "sku": sku, "location": "A-01", "quantity": quantity,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create item: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var item domain.Item
	if err := json.Unmarshal(decodeBody(t, w)["item"], &item); err != nil {
		t.Fatalf("decode item: %v", err)
	}
	return item
}

func TestHealthCheck(t *testing.T) {
	f := newHandlerFixture(t)
	w := f.do(t, http.MethodGet, "/health", "", nil)
	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
}

func TestLogin(t *testing.T) {
	f := newHandlerFixture(t)

	w := f.do(t, http.MethodPost, "/api/login", "", gin.H{"email": "admin@example.com", "password": "admin"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var token string
	if err := json.Unmarshal(decodeBody(t, w)["token"], &token); err != nil || token == "" {
		t.Fatalf("expected a token in the response, got %s", w.Body.String())
	}

	// The issued token must open the protected surface.
	w = f.do(t, http.MethodGet, "/api/items", token, nil)
	if w.Code != http.StatusOK {
		t.Errorf("expected 200 with issued token, got %d", w.Code)
	}

	w = f.do(t, http.MethodPost, "/api/login", "", gin.H{"email": "admin@example.com", "password": "wrong"})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 for wrong password, got %d", w.Code)
	}
}

func TestAuthRequired(t *testing.T) {
	f := newHandlerFixture(t)

	if w := f.do(t, http.MethodGet, "/api/items", "", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without token, got %d", w.Code)
	}
	if w := f.do(t, http.MethodGet, "/api/items", "garbage", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 with bad token, got %d", w.Code)
	}
}

func TestRolePolicy(t *testing.T) {
	f := newHandlerFixture(t)
	item := f.createItem(t, "Policy Item", "POL-001", 5)

	// Staff may read and transact.
	if w := f.do(t, http.MethodGet, "/api/items", f.staffToken, nil); w.Code != http.StatusOK {
		t.Errorf("staff list: expected 200, got %d", w.Code)
	}
	w := f.do(t, http.MethodPost, "/api/transactions", f.staffToken, gin.H{
		"item_id": item.ID, "type": "out", "quantity": 1,
	})
	if w.Code != http.StatusOK {
		t.Errorf("staff transaction: expected 200, got %d: %s", w.Code, w.Body.String())
	}

	// Catalog mutations and reconciliation are admin-only.
	cases := []struct {
		method, path string
		body         any
	}{
		{http.MethodPost, "/api/items", gin.H{"name": "X", "sku": "X-1"}},
		{http.MethodPut, "/api/items/" + item.ID, gin.H{"name": "X"}},
		{http.MethodDelete, "/api/items/" + item.ID, nil},
		{http.MethodGet, "/api/items/" + item.ID + "/reconcile", nil},
	}
	for _, tc := range cases {
		if w := f.do(t, tc.method, tc.path, f.staffToken, tc.body); w.Code != http.StatusForbidden {
			t.Errorf("%s %s as staff: expected 403, got %d", tc.method, tc.path, w.Code)
		}
	}
}

func TestCreateItem_InitialStockThroughLedger(t *testing.T) {
	f := newHandlerFixture(t)
	item := f.createItem(t, "Sabun Cair", "SBN-001", 24)

	if item.Quantity != 24 {
		t.Errorf("expected quantity 24, got %d", item.Quantity)
	}

	w := f.do(t, http.MethodGet, "/api/items/"+item.ID+"/movements", f.staffToken, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var mvs []domain.Movement
	if err := json.Unmarshal(decodeBody(t, w)["movements"], &mvs); err != nil {
		t.Fatalf("decode movements: %v", err)
	}
	if len(mvs) != 1 || mvs[0].Kind != domain.MovementIn || mvs[0].Quantity != 24 {
		t.Errorf("expected a single opening IN of 24, got %+v", mvs)
	}
}

func TestCreateItem_DuplicateSKU(t *testing.T) {
	f := newHandlerFixture(t)
	f.createItem(t, "First", "DUP-001", 0)

	w := f.do(t, http.MethodPost, "/api/items", f.adminToken, gin.H{"name": "Second", "sku": "DUP-001"})
	if w.Code != http.StatusConflict {
		t.Errorf("expected 409, got %d: %s", w.Code, w.Body.String())
	}
}

func TestTransaction_Lifecycle(t *testing.T) {
	f := newHandlerFixture(t)
	item := f.createItem(t, "Shampoo", "SHP-001", 24)

	w := f.do(t, http.MethodPost, "/api/transactions", f.staffToken, gin.H{
		"item_id": item.ID, "type": "out", "quantity": 10, "note": "order",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var updated domain.Item
	if err := json.Unmarshal(decodeBody(t, w)["item"], &updated); err != nil {
		t.Fatalf("decode item: %v", err)
	}
	if updated.Quantity != 14 {
		t.Errorf("expected quantity 14, got %d", updated.Quantity)
	}

	// Overdraw is rejected and leaves the balance untouched.
	w = f.do(t, http.MethodPost, "/api/transactions", f.staffToken, gin.H{
		"item_id": item.ID, "type": "out", "quantity": 20,
	})
	if w.Code != http.StatusGone {
		t.Errorf("expected 410 for overdraw, got %d: %s", w.Code, w.Body.String())
	}

	w = f.do(t, http.MethodGet, "/api/items/"+item.ID+"/quantity", f.staffToken, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var qty int
	json.Unmarshal(decodeBody(t, w)["quantity"], &qty)
	if qty != 14 {
		t.Errorf("expected quantity 14 after rejected overdraw, got %d", qty)
	}
}

func TestTransaction_Validation(t *testing.T) {
	f := newHandlerFixture(t)
	item := f.createItem(t, "Lotion", "LTN-001", 5)

	cases := []struct {
		name string
		body gin.H
		want int
	}{
		{"zero quantity", gin.H{"item_id": item.ID, "type": "in", "quantity": 0}, http.StatusUnprocessableEntity},
		{"negative quantity", gin.H{"item_id": item.ID, "type": "in", "quantity": -3}, http.StatusUnprocessableEntity},
		{"unknown kind", gin.H{"item_id": item.ID, "type": "transfer", "quantity": 1}, http.StatusUnprocessableEntity},
		{"missing item", gin.H{"item_id": "missing", "type": "in", "quantity": 1}, http.StatusNotFound},
		{"missing fields", gin.H{"quantity": 1}, http.StatusBadRequest},
	}
	for _, tc := range cases {
		w := f.do(t, http.MethodPost, "/api/transactions", f.staffToken, tc.body)
		if w.Code != tc.want {
			t.Errorf("%s: expected %d, got %d: %s", tc.name, tc.want, w.Code, w.Body.String())
		}
	}
}

func TestUpdateItem_RejectsQuantityEdit(t *testing.T) {
	f := newHandlerFixture(t)
	item := f.createItem(t, "Old Name", "UPD-001", 9)

	w := f.do(t, http.MethodPut, "/api/items/"+item.ID, f.adminToken, gin.H{"quantity": 50})
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422 for quantity edit, got %d", w.Code)
	}

	w = f.do(t, http.MethodPut, "/api/items/"+item.ID, f.adminToken, gin.H{"name": "New Name"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var updated domain.Item
	json.Unmarshal(decodeBody(t, w)["item"], &updated)
	if updated.Name != "New Name" || updated.Quantity != 9 {
		t.Errorf("expected rename with quantity 9, got %+v", updated)
	}
}

func TestDeleteItem(t *testing.T) {
	f := newHandlerFixture(t)
	item := f.createItem(t, "Doomed", "DEL-001", 0)

	if w := f.do(t, http.MethodDelete, "/api/items/"+item.ID, f.adminToken, nil); w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if w := f.do(t, http.MethodGet, "/api/items/"+item.ID, f.staffToken, nil); w.Code != http.StatusNotFound {
		t.Errorf("expected 404 after delete, got %d", w.Code)
	}
}

func TestListItems_FilterAndSort(t *testing.T) {
	f := newHandlerFixture(t)
	f.createItem(t, "Sabun Cair", "SBN-001", 24)
	f.createItem(t, "Shampoo Herbal", "SHP-001", 8)
	f.createItem(t, "Body Lotion", "BLT-001", 4)

	w := f.do(t, http.MethodGet, "/api/items?q=sabun", f.staffToken, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var items []domain.Item
	json.Unmarshal(decodeBody(t, w)["items"], &items)
	if len(items) != 1 || items[0].SKU != "SBN-001" {
		t.Errorf("expected only the sabun item, got %+v", items)
	}

	w = f.do(t, http.MethodGet, "/api/items?sort=quantity&dir=desc", f.staffToken, nil)
	items = nil
	json.Unmarshal(decodeBody(t, w)["items"], &items)
	if len(items) != 3 || items[0].Quantity != 24 || items[2].Quantity != 4 {
		t.Errorf("expected descending quantities, got %+v", items)
	}
}

func TestLowStockFlag(t *testing.T) {
	f := newHandlerFixture(t)
	item := f.createItem(t, "Scarce", "SCR-001", 3)

	w := f.do(t, http.MethodGet, "/api/items/"+item.ID, f.staffToken, nil)
	var resp struct {
		Item struct {
			LowStock bool `json:"low_stock"`
		} `json:"item"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Item.LowStock {
		t.Error("expected low_stock true for quantity 3")
	}
}

func TestReconcileItem(t *testing.T) {
	f := newHandlerFixture(t)
	item := f.createItem(t, "Audited", "AUD-001", 12)

	w := f.do(t, http.MethodGet, "/api/items/"+item.ID+"/reconcile", f.adminToken, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var result service.ReconcileResult
	json.Unmarshal(decodeBody(t, w)["result"], &result)
	if !result.Consistent || result.Stored != 12 || result.Derived != 12 {
		t.Errorf("expected consistent 12/12, got %+v", result)
	}
}

func TestDailyReport(t *testing.T) {
	f := newHandlerFixture(t)
	f.createItem(t, "Reported", "RPT-001", 10)

	w := f.do(t, http.MethodGet, "/api/reports/daily?days=7", f.staffToken, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var series []domain.DailyStat
	json.Unmarshal(decodeBody(t, w)["series"], &series)
	if len(series) != 7 {
		t.Fatalf("expected 7 buckets, got %d", len(series))
	}
	today := series[6]
	if today.TotalIn != 10 || today.TotalOut != 0 {
		t.Errorf("expected today's bucket to carry the opening stock, got %+v", today)
	}

	if w := f.do(t, http.MethodGet, "/api/reports/daily?days=0", f.staffToken, nil); w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for days=0, got %d", w.Code)
	}
	// The window is capped; an absurd value must not allocate a giant series.
	if w := f.do(t, http.MethodGet, "/api/reports/daily?days=100000000", f.staffToken, nil); w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for oversized window, got %d", w.Code)
	}
	if w := f.do(t, http.MethodGet, "/api/reports/daily?days=365", f.staffToken, nil); w.Code != http.StatusOK {
		t.Errorf("expected 200 at the window cap, got %d", w.Code)
	}
}

func TestRangeReport(t *testing.T) {
	f := newHandlerFixture(t)
	f.createItem(t, "Ranged", "RNG-001", 6)

	today := time.Now().UTC().Format(domain.DateFormat)
	path := fmt.Sprintf("/api/reports/range?from=%s&to=%s", today, today)
	w := f.do(t, http.MethodGet, path, f.staffToken, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var series []domain.DailyStat
	json.Unmarshal(decodeBody(t, w)["series"], &series)
	if len(series) != 1 || series[0].TotalIn != 6 {
		t.Errorf("expected today's sparse bucket with in=6, got %+v", series)
	}

	if w := f.do(t, http.MethodGet, "/api/reports/range?from=bad&to="+today, f.staffToken, nil); w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for malformed from, got %d", w.Code)
	}
}
