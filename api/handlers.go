/*
handlers.go - HTTP API handlers for the price tracking system

PURPOSE:
  Exposes the pricing engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Pricing:
    GET    /api/discounts                 Active discounts with prices
    GET    /api/products/{id}/prices      Per-store prices for a product

  Basket:
    POST   /api/basket/optimize           Cheapest-store assignment

  Alerts:
    GET    /api/alerts                    List alerts
    POST   /api/alerts                    Create alert
    GET    /api/alerts/{id}               Get alert
    DELETE /api/alerts/{id}               Delete alert
    POST   /api/alerts/check              Evaluate active alerts now

  Admin:
    POST   /api/ingest/run                Trigger an ingestion run

ARCHITECTURE:
  Handler struct holds all dependencies:
  - Engine/Optimizer: Price resolution and basket assignment
  - Alerts/Checker:   Price watch storage and evaluation
  - Orchestrator:     File ingestion

REQUEST FLOW:
  1. Parse HTTP request
  2. Validate input
  3. Call domain logic
  4. Serialize response
  5. Handle errors

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Resource not found
  - 500: Internal errors

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pricefeed/basket-engine/alerts"
	"github.com/pricefeed/basket-engine/catalog"
	"github.com/pricefeed/basket-engine/ingest"
	"github.com/pricefeed/basket-engine/metrics"
	"github.com/pricefeed/basket-engine/pricing"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Engine       *pricing.Engine
	Optimizer    *pricing.Optimizer
	Alerts       alerts.Store
	Checker      *alerts.Checker
	Orchestrator *ingest.Orchestrator
	Metrics      *metrics.Collector
}

// NewHandler creates a new handler around the pricing engine.
func NewHandler(engine *pricing.Engine, alertStore alerts.Store, orch *ingest.Orchestrator) *Handler {
	return &Handler{
		Engine:       engine,
		Optimizer:    pricing.NewOptimizer(engine),
		Alerts:       alertStore,
		Checker:      alerts.NewChecker(engine, alertStore),
		Orchestrator: orch,
	}
}

// =============================================================================
// PRICING HANDLERS
// =============================================================================

// ListDiscounts returns every discount active on the as-of day together
// with the price it applies against.
// GET /api/discounts?as_of=2026-08-30
func (h *Handler) ListDiscounts(w http.ResponseWriter, r *http.Request) {
	asOf, ok := parseAsOf(w, r)
	if !ok {
		return
	}

	prices, err := h.Engine.ActiveDiscountPrices(r.Context(), asOf)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list discounts", err)
		return
	}

	dtos := make([]DiscountPriceDTO, len(prices))
	for i, p := range prices {
		name := ""
		if p.Product != nil {
			name = p.Product.Name
		}
		dtos[i] = DiscountPriceDTO{
			ProductID:       int64(p.Discount.ProductID),
			ProductName:     name,
			StoreID:         int64(p.Discount.StoreID),
			FromDate:        p.Discount.FromDate.String(),
			ToDate:          p.Discount.ToDate.String(),
			PackageQty:      p.Discount.PackageQty.String(),
			PackageUnit:     p.Discount.PackageUnit,
			Percentage:      int64(p.Discount.Percentage),
			OriginalPrice:   p.Original.String(),
			DiscountedPrice: p.Discounted.String(),
			Currency:        p.Currency,
		}
	}

	writeJSON(w, http.StatusOK, dtos)
}

// GetProductPrices returns each store's current price for a product,
// discounts applied.
// GET /api/products/{id}/prices?as_of=2026-08-30
func (h *Handler) GetProductPrices(w http.ResponseWriter, r *http.Request) {
	productID, ok := parseProductID(w, r)
	if !ok {
		return
	}
	asOf, ok := parseAsOf(w, r)
	if !ok {
		return
	}

	ctx := r.Context()
	product, err := h.Engine.Source.FindProductByID(ctx, productID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get product", err)
		return
	}
	if product == nil {
		writeError(w, http.StatusNotFound, "Product not found", nil)
		return
	}

	entries, err := h.Engine.LatestPerStore(ctx, productID, asOf)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to resolve prices", err)
		return
	}

	resp := ProductPricesResponse{
		ProductID: int64(product.ID),
		Name:      product.Name,
		AsOf:      asOf.String(),
		Prices:    make([]StorePriceDTO, 0, len(entries)),
	}

	for _, e := range entries {
		discount, err := h.Engine.Source.ActiveDiscountFor(ctx, e.ProductID, e.StoreID, e.PackageQty, e.PackageUnit, asOf)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to resolve discount", err)
			return
		}

		dto := StorePriceDTO{
			StoreID:        int64(e.StoreID),
			EntryDate:      e.EntryDate.String(),
			Price:          e.Price.String(),
			EffectivePrice: pricing.EffectivePrice(e, discount).String(),
			Currency:       e.Currency,
			PackageQty:     e.PackageQty.String(),
			PackageUnit:    e.PackageUnit,
		}
		if discount != nil {
			dto.DiscountPct = int64(discount.Percentage)
		}
		if store, err := h.Engine.Source.FindStoreByID(ctx, e.StoreID); err == nil && store != nil {
			dto.StoreName = store.Name
		}
		resp.Prices = append(resp.Prices, dto)
	}

	writeJSON(w, http.StatusOK, resp)
}

// =============================================================================
// BASKET HANDLER
// =============================================================================

// OptimizeBasket assigns each requested product to its cheapest store.
// POST /api/basket/optimize
func (h *Handler) OptimizeBasket(w http.ResponseWriter, r *http.Request) {
	var req OptimizeBasketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if len(req.Items) == 0 {
		writeError(w, http.StatusBadRequest, "Basket is empty", nil)
		return
	}

	asOf := catalog.Today()
	if req.AsOf != "" {
		var err error
		asOf, err = catalog.ParseDay(req.AsOf)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid as_of format (use YYYY-MM-DD)", err)
			return
		}
	}

	items := make([]pricing.Item, len(req.Items))
	for i, it := range req.Items {
		if it.Quantity <= 0 {
			writeError(w, http.StatusBadRequest, "Quantity must be positive", nil)
			return
		}
		items[i] = pricing.Item{
			ProductID: catalog.ProductID(it.ProductID),
			Quantity:  it.Quantity,
		}
	}

	result, err := h.Optimizer.Optimize(r.Context(), items, asOf)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to optimize basket", err)
		return
	}
	h.Metrics.BasketRequest(len(result.Unfulfillable))

	resp := OptimizeBasketResponse{
		AsOf:     asOf.String(),
		Stores:   make([]StoreListDTO, len(result.Stores)),
		Total:    result.Total.StringFixed(2),
		Baseline: result.Baseline.StringFixed(2),
		Savings:  result.Savings.StringFixed(2),
	}
	for _, pid := range result.Unfulfillable {
		resp.Unfulfillable = append(resp.Unfulfillable, int64(pid))
	}
	for i, sl := range result.Stores {
		dto := StoreListDTO{
			StoreID:   int64(sl.StoreID),
			StoreName: sl.StoreName,
			Items:     make([]BasketLineDTO, len(sl.Items)),
			Subtotal:  sl.Subtotal.StringFixed(2),
			ItemCount: sl.ItemCount,
		}
		for j, pick := range sl.Items {
			dto.Items[j] = BasketLineDTO{
				ProductID:   int64(pick.ProductID),
				Quantity:    pick.Quantity,
				UnitPrice:   pick.Offer.UnitPrice.String(),
				DiscountPct: int64(pick.Offer.DiscountPct),
				Cost:        pick.Cost.StringFixed(2),
				Currency:    pick.Offer.Currency,
			}
		}
		resp.Stores[i] = dto
	}

	writeJSON(w, http.StatusOK, resp)
}

// =============================================================================
// ALERT HANDLERS
// =============================================================================

// ListAlerts returns all alerts, newest first.
// GET /api/alerts
func (h *Handler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	all, err := h.Alerts.ListAlerts(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list alerts", err)
		return
	}

	dtos := make([]AlertDTO, len(all))
	for i := range all {
		dtos[i] = toAlertDTO(&all[i])
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateAlert registers a new price watch.
// POST /api/alerts
func (h *Handler) CreateAlert(w http.ResponseWriter, r *http.Request) {
	var req CreateAlertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	target, err := decimal.NewFromString(req.TargetPrice)
	if err != nil || !target.IsPositive() {
		writeError(w, http.StatusBadRequest, "target_price must be a positive decimal string", err)
		return
	}

	ctx := r.Context()
	product, err := h.Engine.Source.FindProductByID(ctx, catalog.ProductID(req.ProductID))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get product", err)
		return
	}
	if product == nil {
		writeError(w, http.StatusNotFound, "Product not found", nil)
		return
	}

	var storeID *catalog.StoreID
	if req.StoreID != nil {
		sid := catalog.StoreID(*req.StoreID)
		storeID = &sid
	}

	alert := alerts.New(product.ID, storeID, target)
	if err := h.Alerts.SaveAlert(ctx, alert); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create alert", err)
		return
	}

	writeJSON(w, http.StatusCreated, toAlertDTO(alert))
}

// GetAlert returns one alert by id.
// GET /api/alerts/{id}
func (h *Handler) GetAlert(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid alert id", err)
		return
	}

	alert, err := h.Alerts.GetAlert(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get alert", err)
		return
	}
	if alert == nil {
		writeError(w, http.StatusNotFound, "Alert not found", nil)
		return
	}

	writeJSON(w, http.StatusOK, toAlertDTO(alert))
}

// DeleteAlert removes an alert.
// DELETE /api/alerts/{id}
func (h *Handler) DeleteAlert(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid alert id", err)
		return
	}

	if err := h.Alerts.DeleteAlert(r.Context(), id); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to delete alert", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CheckAlerts evaluates every active alert against current prices.
// POST /api/alerts/check
func (h *Handler) CheckAlerts(w http.ResponseWriter, r *http.Request) {
	asOf, ok := parseAsOf(w, r)
	if !ok {
		return
	}

	ctx := r.Context()
	active, err := h.Alerts.ListActiveAlerts(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list alerts", err)
		return
	}

	triggered, err := h.Checker.CheckAll(ctx, asOf)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to check alerts", err)
		return
	}

	writeJSON(w, http.StatusOK, CheckAlertsResponse{
		Checked:   len(active),
		Triggered: triggered,
	})
}

// =============================================================================
// INGESTION HANDLER
// =============================================================================

// RunIngestion triggers an immediate ingestion run and reports per-file
// outcomes.
// POST /api/ingest/run
func (h *Handler) RunIngestion(w http.ResponseWriter, r *http.Request) {
	report, err := h.Orchestrator.Run(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Ingestion run failed", err)
		return
	}

	resp := RunReportDTO{
		Started:   report.Started.Format(time.RFC3339),
		Duration:  report.Duration.String(),
		Committed: report.Committed,
		Failed:    report.Failed,
		Skipped:   report.Skipped,
		Files:     make([]FileResultDTO, len(report.Files)),
	}
	for i, f := range report.Files {
		dto := FileResultDTO{
			File:         f.File,
			Type:         f.Type.String(),
			RowsUpserted: f.RowsUpserted,
			RowsSkipped:  f.RowsSkipped,
		}
		if f.Err != nil {
			dto.Error = f.Err.Error()
		}
		resp.Files[i] = dto
	}

	writeJSON(w, http.StatusOK, resp)
}

// =============================================================================
// HELPERS
// =============================================================================

func parseAsOf(w http.ResponseWriter, r *http.Request) (catalog.Day, bool) {
	raw := r.URL.Query().Get("as_of")
	if raw == "" {
		return catalog.Today(), true
	}
	day, err := catalog.ParseDay(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid as_of format (use YYYY-MM-DD)", err)
		return catalog.Day{}, false
	}
	return day, true
}

func parseProductID(w http.ResponseWriter, r *http.Request) (catalog.ProductID, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "Invalid product id", err)
		return 0, false
	}
	return catalog.ProductID(id), true
}

func toAlertDTO(a *alerts.Alert) AlertDTO {
	dto := AlertDTO{
		ID:          a.ID.String(),
		ProductID:   int64(a.ProductID),
		TargetPrice: a.TargetPrice.String(),
		Active:      a.Active,
		CreatedAt:   a.CreatedAt.Format(time.RFC3339),
	}
	if a.StoreID != nil {
		sid := int64(*a.StoreID)
		dto.StoreID = &sid
	}
	if a.TriggeredPrice != nil {
		p := a.TriggeredPrice.String()
		dto.TriggeredPrice = &p
	}
	if a.TriggeredStoreID != nil {
		sid := int64(*a.TriggeredStoreID)
		dto.TriggeredStoreID = &sid
	}
	if a.TriggeredAt != nil {
		t := a.TriggeredAt.Format(time.RFC3339)
		dto.TriggeredAt = &t
	}
	return dto
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
