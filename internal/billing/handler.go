package billing

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/fims-logistics/fims/internal/platform/httpx"
)

// Handler wires HTTP endpoints for bills.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs the billing handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers bill routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.create)
	r.Get("/", h.list)
	r.Get("/unbilled", h.unbilled)
	r.Get("/{id}", h.get)
}

type createRequest struct {
	DocumentID    int64   `json:"document_id" validate:"required,gt=0"`
	Number        string  `json:"number" validate:"required"`
	Amount        float64 `json:"amount" validate:"gte=0"`
	GeneratedDate string  `json:"generated_date"`
	ActorID       int64   `json:"actor_id"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	var generated time.Time
	if req.GeneratedDate != "" {
		var err error
		generated, err = time.Parse("2006-01-02", req.GeneratedDate)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "generated_date must be YYYY-MM-DD")
			return
		}
	}
	bill, err := h.service.CreateBill(r.Context(), CreateInput{
		DocumentID:    req.DocumentID,
		Number:        req.Number,
		Amount:        req.Amount,
		GeneratedDate: generated,
		ActorID:       req.ActorID,
	})
	if err != nil {
		h.logger.Warn("create bill", slog.Int64("document", req.DocumentID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, bill)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, _ = strconv.Atoi(raw)
	}
	bills, err := h.service.ListBills(r.Context(), limit)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, bills)
}

func (h *Handler) unbilled(w http.ResponseWriter, r *http.Request) {
	docs, err := h.service.ListUnbilledDocuments(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, docs)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid bill id")
		return
	}
	bill, err := h.service.GetBill(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, bill)
}
