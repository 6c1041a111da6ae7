package dispatch

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/fims-logistics/fims/internal/platform/httpx"
	"github.com/fims-logistics/fims/internal/shared"
)

// Handler wires HTTP endpoints for dispatch allocations.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs the dispatch handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers allocation routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.create)
	r.Get("/unlinked", h.listUnlinked)
	r.Get("/{id}", h.get)
	r.Get("/rake/{code}", h.listByRake)
	r.Get("/rake/{code}/next-serial", h.nextSerial)
}

type createRequest struct {
	RakeCode        string  `json:"rake_code" validate:"required"`
	DestinationKind string  `json:"destination_kind" validate:"required,oneof=ACCOUNT WAREHOUSE SOCIETY"`
	DestinationID   int64   `json:"destination_id" validate:"required,gt=0"`
	Product         string  `json:"product"`
	Bags            int64   `json:"bags" validate:"gte=0"`
	Quantity        float64 `json:"quantity_mt" validate:"required,gt=0"`
	TruckID         *int64  `json:"truck_id,omitempty"`
	WagonNumber     string  `json:"wagon_number"`
	ActorID         int64   `json:"actor_id"`
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
	alloc, err := h.service.CreateAllocation(r.Context(), CreateInput{
		RakeCode:    req.RakeCode,
		Destination: shared.Destination{Kind: shared.DestinationKind(req.DestinationKind), ID: req.DestinationID},
		Product:     req.Product,
		Bags:        req.Bags,
		Quantity:    req.Quantity,
		TruckID:     req.TruckID,
		WagonNumber: req.WagonNumber,
		ActorID:     req.ActorID,
	})
	if err != nil {
		h.logger.Warn("create allocation", slog.String("rake", req.RakeCode), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, alloc)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid allocation id")
		return
	}
	alloc, err := h.service.GetAllocation(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, alloc)
}

func (h *Handler) listByRake(w http.ResponseWriter, r *http.Request) {
	allocs, err := h.service.ListByRake(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, allocs)
}

func (h *Handler) listUnlinked(w http.ResponseWriter, r *http.Request) {
	allocs, err := h.service.ListUnlinked(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, allocs)
}

func (h *Handler) nextSerial(w http.ResponseWriter, r *http.Request) {
	next, err := h.service.GetNextSerial(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"next_serial": next})
}
