package transport

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/fims-logistics/fims/internal/platform/httpx"
	"github.com/fims-logistics/fims/internal/shared"
)

// Handler wires HTTP endpoints for transport documents.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs the transport handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers document routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.create)
	r.Get("/", h.list)
	r.Get("/number/{number}", h.getByNumber)
	r.Get("/{id}", h.get)
	r.Delete("/{id}", h.delete)
	r.Post("/{id}/link/{allocationID}", h.link)
}

type createRequest struct {
	Number          string  `json:"number" validate:"required"`
	RakeCode        *string `json:"rake_code,omitempty"`
	Date            string  `json:"date" validate:"required"`
	DestinationKind string  `json:"destination_kind" validate:"required,oneof=ACCOUNT WAREHOUSE SOCIETY"`
	DestinationID   int64   `json:"destination_id" validate:"required,gt=0"`
	TruckID         *int64  `json:"truck_id,omitempty"`
	LoadingPoint    string  `json:"loading_point"`
	UnloadingPoint  string  `json:"unloading_point"`
	GoodsName       string  `json:"goods_name"`
	Bags            int64   `json:"bags" validate:"gte=0"`
	Quantity        float64 `json:"quantity_mt" validate:"required,gt=0"`
	AssignLR        bool    `json:"assign_lr"`
	CreatedByRole   string  `json:"created_by_role"`
	AllocationID    *int64  `json:"allocation_id,omitempty"`
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
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "date must be YYYY-MM-DD")
		return
	}
	doc, err := h.service.CreateDocument(r.Context(), CreateInput{
		Number:         req.Number,
		RakeCode:       req.RakeCode,
		Date:           date,
		Destination:    shared.Destination{Kind: shared.DestinationKind(req.DestinationKind), ID: req.DestinationID},
		TruckID:        req.TruckID,
		LoadingPoint:   req.LoadingPoint,
		UnloadingPoint: req.UnloadingPoint,
		GoodsName:      req.GoodsName,
		Bags:           req.Bags,
		Quantity:       req.Quantity,
		AssignLR:       req.AssignLR,
		CreatedByRole:  req.CreatedByRole,
		AllocationID:   req.AllocationID,
		ActorID:        req.ActorID,
	})
	if err != nil {
		h.logger.Warn("create document", slog.String("number", req.Number), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, doc)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	filter := ListFilter{
		RakeCode:      r.URL.Query().Get("rake_code"),
		WarehouseOnly: r.URL.Query().Get("warehouse_only") == "true",
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if limit, err := strconv.Atoi(raw); err == nil {
			filter.Limit = limit
		}
	}
	docs, err := h.service.ListDocuments(r.Context(), filter)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, docs)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid document id")
		return
	}
	doc, err := h.service.GetDocument(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, doc)
}

func (h *Handler) getByNumber(w http.ResponseWriter, r *http.Request) {
	doc, err := h.service.GetDocumentByNumber(r.Context(), chi.URLParam(r, "number"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, doc)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid document id")
		return
	}
	cascade := r.URL.Query().Get("cascade") == "true"
	var actorID int64
	if raw := r.URL.Query().Get("actor_id"); raw != "" {
		actorID, _ = strconv.ParseInt(raw, 10, 64)
	}
	if err := h.service.DeleteDocument(r.Context(), id, cascade, actorID); err != nil {
		h.logger.Warn("delete document", slog.Int64("id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) link(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid document id")
		return
	}
	allocationID, err := strconv.ParseInt(chi.URLParam(r, "allocationID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid allocation id")
		return
	}
	if err := h.service.LinkAllocationToDocument(r.Context(), allocationID, id, 0); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"linked": true})
}
