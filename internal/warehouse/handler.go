package warehouse

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/fims-logistics/fims/internal/platform/httpx"
)

// Handler wires HTTP endpoints for warehouse stock.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs the warehouse handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers stock routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/balances", h.balances)
	r.Post("/{id}/stock-in", h.stockIn)
	r.Post("/{id}/stock-out", h.stockOut)
	r.Post("/{id}/adjust", h.adjust)
	r.Get("/{id}/balance", h.balance)
	r.Get("/{id}/transactions", h.transactions)
}

type stockInRequest struct {
	DocumentID *int64  `json:"document_id,omitempty" validate:"omitempty,gt=0"`
	Bags       int64   `json:"bags" validate:"gte=0"`
	Quantity   float64 `json:"quantity_mt" validate:"required,gt=0"`
	Unloader   string  `json:"unloader"`
	EntryDate  string  `json:"entry_date"`
	ActorID    int64   `json:"actor_id"`
}

type stockOutRequest struct {
	DocumentID *int64  `json:"document_id,omitempty"`
	AccountID  *int64  `json:"account_id,omitempty"`
	Bags       int64   `json:"bags" validate:"gte=0"`
	Quantity   float64 `json:"quantity_mt" validate:"required,gt=0"`
	EntryDate  string  `json:"entry_date"`
	Notes      string  `json:"notes"`
	ActorID    int64   `json:"actor_id"`
}

type adjustRequest struct {
	Quantity float64 `json:"quantity_mt" validate:"required"`
	Notes    string  `json:"notes" validate:"required"`
	ActorID  int64   `json:"actor_id"`
}

func warehouseID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil && id > 0
}

func parseEntryDate(raw string) (time.Time, bool) {
	if raw == "" {
		return time.Time{}, true
	}
	t, err := time.Parse("2006-01-02", raw)
	return t, err == nil
}

func (h *Handler) stockIn(w http.ResponseWriter, r *http.Request) {
	id, ok := warehouseID(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid warehouse id")
		return
	}
	var req stockInRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	entryDate, ok := parseEntryDate(req.EntryDate)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "entry_date must be YYYY-MM-DD")
		return
	}
	entry, err := h.service.RecordStockIn(r.Context(), StockInInput{
		WarehouseID: id,
		DocumentID:  req.DocumentID,
		Bags:        req.Bags,
		Quantity:    req.Quantity,
		Unloader:    req.Unloader,
		EntryDate:   entryDate,
		ActorID:     req.ActorID,
	})
	if err != nil {
		h.logger.Warn("stock in", slog.Int64("warehouse", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, entry)
}

func (h *Handler) stockOut(w http.ResponseWriter, r *http.Request) {
	id, ok := warehouseID(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid warehouse id")
		return
	}
	var req stockOutRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	entryDate, ok := parseEntryDate(req.EntryDate)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "entry_date must be YYYY-MM-DD")
		return
	}
	entry, err := h.service.RecordStockOut(r.Context(), StockOutInput{
		WarehouseID: id,
		DocumentID:  req.DocumentID,
		AccountID:   req.AccountID,
		Bags:        req.Bags,
		Quantity:    req.Quantity,
		EntryDate:   entryDate,
		Notes:       req.Notes,
		ActorID:     req.ActorID,
	})
	if err != nil {
		h.logger.Warn("stock out", slog.Int64("warehouse", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, entry)
}

func (h *Handler) adjust(w http.ResponseWriter, r *http.Request) {
	id, ok := warehouseID(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid warehouse id")
		return
	}
	var req adjustRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	entry, err := h.service.RecordAdjustment(r.Context(), AdjustInput{
		WarehouseID: id,
		Quantity:    req.Quantity,
		Notes:       req.Notes,
		ActorID:     req.ActorID,
	})
	if err != nil {
		h.logger.Warn("stock adjust", slog.Int64("warehouse", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, entry)
}

func (h *Handler) balance(w http.ResponseWriter, r *http.Request) {
	id, ok := warehouseID(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid warehouse id")
		return
	}
	bal, err := h.service.GetBalance(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, bal)
}

func (h *Handler) balances(w http.ResponseWriter, r *http.Request) {
	balances, err := h.service.GetBalancesForAll(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, balances)
}

func (h *Handler) transactions(w http.ResponseWriter, r *http.Request) {
	id, ok := warehouseID(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid warehouse id")
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, _ = strconv.Atoi(raw)
	}
	entries, err := h.service.ListTransactions(r.Context(), id, limit)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, entries)
}
