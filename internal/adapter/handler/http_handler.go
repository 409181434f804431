package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/rl1809/stock-ledger/internal/auth"
	"github.com/rl1809/stock-ledger/internal/core/domain"
	"github.com/rl1809/stock-ledger/internal/core/service"
)

type HTTPHandler struct {
	inventory *service.InventoryService
	reports   *service.ReportService
	provider  auth.Provider
	tokens    *auth.TokenManager
	log       *zap.SugaredLogger
}

func NewHTTPHandler(inventory *service.InventoryService, reports *service.ReportService, provider auth.Provider, tokens *auth.TokenManager, log *zap.SugaredLogger) *HTTPHandler {
	return &HTTPHandler{
		inventory: inventory,
		reports:   reports,
		provider:  provider,
		tokens:    tokens,
		log:       log.With("component", "http"),
	}
}

// Router wires all routes. Staff and admin may read and transact; catalog
// mutations and reconciliation are admin-only.
func (h *HTTPHandler) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(cors.Default())

	r.GET("/health", h.HealthCheck)
	r.POST("/api/login", h.Login)

	api := r.Group("/api", RequireAuth(h.tokens))
	{
		api.GET("/items", h.ListItems)
		api.GET("/items/:id", h.GetItem)
		api.GET("/items/:id/quantity", h.Quantity)
		api.GET("/items/:id/movements", h.ItemMovements)
		api.POST("/transactions", h.ApplyTransaction)
		api.GET("/reports/daily", h.DailyReport)
		api.GET("/reports/range", h.RangeReport)

		admin := api.Group("", RequireRole(domain.RoleAdmin))
		{
			admin.POST("/items", h.CreateItem)
			admin.PUT("/items/:id", h.UpdateItem)
			admin.DELETE("/items/:id", h.DeleteItem)
			admin.GET("/items/:id/reconcile", h.ReconcileItem)
		}
	}
	return r
}

func (h *HTTPHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *HTTPHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	actor, err := h.provider.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}
	token, err := h.tokens.Issue(actor)
	if err != nil {
		h.log.Errorw("token issue failed", "email", req.Email, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token, "user": actor})
}

type itemResponse struct {
	domain.Item
	LowStock bool `json:"low_stock"`
}

func toItemResponse(item domain.Item) itemResponse {
	return itemResponse{Item: item, LowStock: item.LowStock()}
}

func (h *HTTPHandler) ListItems(c *gin.Context) {
	items, err := h.inventory.ListItems(c.Request.Context(), service.ListQuery{
		Query:   c.Query("q"),
		SortKey: c.DefaultQuery("sort", "name"),
		SortDir: c.DefaultQuery("dir", "asc"),
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	out := make([]itemResponse, 0, len(items))
	for _, item := range items {
		out = append(out, toItemResponse(item))
	}
	c.JSON(http.StatusOK, gin.H{"items": out})
}

func (h *HTTPHandler) GetItem(c *gin.Context) {
	item, err := h.inventory.GetItem(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"item": toItemResponse(*item)})
}

func (h *HTTPHandler) Quantity(c *gin.Context) {
	qty, err := h.inventory.Quantity(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"item_id": c.Param("id"), "quantity": qty})
}

type createItemRequest struct {
	Name     string `json:"name" binding:"required"`
	SKU      string `json:"sku" binding:"required"`
	Location string `json:"location"`
	Quantity int    `json:"quantity"`
}

func (h *HTTPHandler) CreateItem(c *gin.Context) {
	var req createItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	item, err := h.inventory.CreateItem(c.Request.Context(), ActorFrom(c), domain.ItemAttrs{
		Name:     req.Name,
		SKU:      req.SKU,
		Location: req.Location,
		Quantity: req.Quantity,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"item": toItemResponse(*item)})
}

type updateItemRequest struct {
	Name     *string `json:"name"`
	SKU      *string `json:"sku"`
	Location *string `json:"location"`
	Quantity *int    `json:"quantity"`
}

func (h *HTTPHandler) UpdateItem(c *gin.Context) {
	var req updateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.Quantity != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "quantity can only change through transactions"})
		return
	}
	item, err := h.inventory.UpdateItem(c.Request.Context(), ActorFrom(c), c.Param("id"), domain.ItemPatch{
		Name:     req.Name,
		SKU:      req.SKU,
		Location: req.Location,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"item": toItemResponse(*item)})
}

func (h *HTTPHandler) DeleteItem(c *gin.Context) {
	if err := h.inventory.DeleteItem(c.Request.Context(), ActorFrom(c), c.Param("id")); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

func (h *HTTPHandler) ItemMovements(c *gin.Context) {
	mvs, err := h.inventory.Movements(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	if mvs == nil {
		mvs = []domain.Movement{}
	}
	c.JSON(http.StatusOK, gin.H{"movements": mvs})
}

func (h *HTTPHandler) ReconcileItem(c *gin.Context) {
	result, err := h.inventory.Reconcile(c.Request.Context(), c.Param("id"))
	if err != nil {
		var inc *domain.InconsistencyError
		if errors.As(err, &inc) {
			// The result carries both balances for manual reconciliation.
			c.JSON(http.StatusInternalServerError, gin.H{"error": "ledger inconsistency", "result": result})
			return
		}
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": result})
}

type transactionRequest struct {
	RequestID string `json:"request_id"`
	ItemID    string `json:"item_id" binding:"required"`
	Kind      string `json:"type" binding:"required"`
	Quantity  int    `json:"quantity"`
	Note      string `json:"note"`
}

func (h *HTTPHandler) ApplyTransaction(c *gin.Context) {
	var req transactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	item, mv, err := h.inventory.Apply(c.Request.Context(), ActorFrom(c), service.ApplyRequest{
		RequestID: req.RequestID,
		ItemID:    req.ItemID,
		Kind:      domain.MovementKind(req.Kind),
		Quantity:  req.Quantity,
		Note:      req.Note,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"item": toItemResponse(*item), "transaction": mv})
}

// maxReportWindowDays bounds the zero-filled series a single request may
// allocate.
const maxReportWindowDays = 365

func (h *HTTPHandler) DailyReport(c *gin.Context) {
	days, err := strconv.Atoi(c.DefaultQuery("days", "14"))
	if err != nil || days <= 0 || days > maxReportWindowDays {
		c.JSON(http.StatusBadRequest, gin.H{"error": "days must be between 1 and 365"})
		return
	}
	series, err := h.reports.DailySeries(c.Request.Context(), days)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"series": series})
}

func (h *HTTPHandler) RangeReport(c *gin.Context) {
	from, err := time.Parse(domain.DateFormat, c.Query("from"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "from must be YYYY-MM-DD"})
		return
	}
	to, err := time.Parse(domain.DateFormat, c.Query("to"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "to must be YYYY-MM-DD"})
		return
	}
	// The range is inclusive of the "to" date.
	series, err := h.reports.RangeSeries(c.Request.Context(), from, to.AddDate(0, 0, 1))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"series": series})
}

func (h *HTTPHandler) writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	message := "internal error"

	switch {
	case errors.Is(err, domain.ErrItemNotFound):
		status, message = http.StatusNotFound, "item not found"
	case errors.Is(err, domain.ErrInvalidQuantity), errors.Is(err, domain.ErrInvalidKind), errors.Is(err, domain.ErrInvalidItem):
		status, message = http.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, domain.ErrInsufficientStock):
		status, message = http.StatusGone, "insufficient stock"
	case errors.Is(err, domain.ErrDuplicateSKU):
		status, message = http.StatusConflict, "sku already in use"
	case errors.Is(err, domain.ErrDuplicateRequest):
		status, message = http.StatusConflict, "duplicate request"
	case errors.Is(err, domain.ErrUnauthenticated):
		status, message = http.StatusUnauthorized, "unauthenticated"
	case errors.Is(err, domain.ErrUnauthorized):
		status, message = http.StatusForbidden, "forbidden"
	case errors.Is(err, domain.ErrUnavailable):
		status, message = http.StatusServiceUnavailable, "store unavailable"
	default:
		h.log.Errorw("request failed", "path", c.FullPath(), "error", err)
	}

	c.JSON(status, gin.H{"error": message})
}
