package rake

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/fims-logistics/fims/internal/platform/httpx"
)

// Handler wires HTTP endpoints for the rake ledger.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs the rake handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers rake routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/summary", h.summaries)
	r.Get("/shortage", h.totalShortage)
	r.Get("/{code}", h.get)
	r.Get("/{code}/balance", h.balance)
	r.Post("/{code}/close", h.close)
	r.Post("/{code}/reopen", h.reopen)
}

type createRequest struct {
	Code          string  `json:"code" validate:"required"`
	CompanyName   string  `json:"company_name"`
	ArrivalDate   string  `json:"arrival_date"`
	TotalQuantity float64 `json:"total_quantity" validate:"required,gt=0"`
	Product       string  `json:"product" validate:"required"`
	RakePoint     string  `json:"rake_point"`
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
	var arrival time.Time
	if req.ArrivalDate != "" {
		parsed, err := time.Parse("2006-01-02", req.ArrivalDate)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "arrival_date must be YYYY-MM-DD")
			return
		}
		arrival = parsed
	}
	id, err := h.service.CreateRake(r.Context(), CreateInput{
		Code:          req.Code,
		CompanyName:   req.CompanyName,
		ArrivalDate:   arrival,
		TotalQuantity: req.TotalQuantity,
		Product:       req.Product,
		RakePoint:     req.RakePoint,
		ActorID:       req.ActorID,
	})
	if err != nil {
		h.logger.Warn("create rake", slog.String("code", req.Code), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"id": id})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	rakes, err := h.service.ListRakes(r.Context())
	if err != nil {
		h.logger.Error("list rakes", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, rakes)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	rk, err := h.service.GetRake(r.Context(), code)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, rk)
}

func (h *Handler) balance(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	bal, err := h.service.GetBalance(r.Context(), code)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, bal)
}

type actorRequest struct {
	ActorID int64 `json:"actor_id"`
}

func (h *Handler) close(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	var req actorRequest
	_ = httpx.DecodeJSON(r, &req)
	shortage, err := h.service.CloseRake(r.Context(), code, req.ActorID)
	if err != nil {
		h.logger.Warn("close rake", slog.String("code", code), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"shortage": shortage})
}

func (h *Handler) reopen(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	var req actorRequest
	_ = httpx.DecodeJSON(r, &req)
	if err := h.service.ReopenRake(r.Context(), code, req.ActorID); err != nil {
		h.logger.Warn("reopen rake", slog.String("code", code), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"status": "reopened"})
}

func (h *Handler) totalShortage(w http.ResponseWriter, r *http.Request) {
	total, err := h.service.TotalShortage(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"total_shortage": total})
}

// summaryView augments a Summary with grouped decimal strings so dashboard
// clients can render quantities without locale logic of their own.
type summaryView struct {
	Summary
	TotalDisplay     string `json:"total_display"`
	RemainingDisplay string `json:"remaining_display"`
}

func (h *Handler) summaries(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.service.Summaries(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	printer := message.NewPrinter(language.English)
	views := make([]summaryView, 0, len(summaries))
	for _, s := range summaries {
		views = append(views, summaryView{
			Summary:          s,
			TotalDisplay:     printer.Sprintf("%.3f MT", s.TotalQuantity),
			RemainingDisplay: printer.Sprintf("%.3f MT", s.Remaining),
		})
	}
	httpx.JSON(w, http.StatusOK, views)
}
