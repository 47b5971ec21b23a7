package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/carlog/carlog/internal/auth"
	"github.com/carlog/carlog/internal/handler/dto"
	"github.com/carlog/carlog/internal/middleware"
	"github.com/carlog/carlog/internal/model"
	"github.com/carlog/carlog/internal/service"
	"github.com/carlog/carlog/internal/view"
)

const (
	msgServiceTypeRequired = "Service type is required."
	msgRecordTooLong       = "Service type or notes are too long."
	msgRecordAdded         = "Maintenance record added!"
)

// MaintenanceService is the record logic the maintenance handlers need.
type MaintenanceService interface {
	AddRecord(ctx context.Context, input service.AddRecordInput) (*model.MaintenanceRecord, error)
	ListRecords(ctx context.Context, userID int64) ([]*model.MaintenanceRecord, error)
}

// MaintenanceHandler serves the maintenance record pages. Every route is
// guarded, so a user is always in the request context.
type MaintenanceHandler struct {
	*Handler
	records MaintenanceService
}

// NewMaintenanceHandler creates a new MaintenanceHandler.
func NewMaintenanceHandler(base *Handler, records MaintenanceService) *MaintenanceHandler {
	return &MaintenanceHandler{
		Handler: base,
		records: records,
	}
}

// AddServiceForm renders the add-record form.
// GET /add_service
func (h *MaintenanceHandler) AddServiceForm(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, view.PageAddService, &view.Page{Today: h.today()})
}

// AddService stores a record for the current user.
// POST /add_service
func (h *MaintenanceHandler) AddService(w http.ResponseWriter, r *http.Request) {
	user := auth.MustUserFromContext(r.Context())

	form, err := dto.ParseAddServiceForm(r)
	if err != nil {
		h.badRequest(w, r, err)
		return
	}

	rec, err := h.records.AddRecord(r.Context(), service.AddRecordInput{
		UserID:      user.ID,
		ServiceType: form.ServiceType,
		Cost:        form.Cost,
		Notes:       form.Notes,
		Date:        form.Date,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrMissingServiceType):
			h.flashRedirect(w, r, model.FlashDanger, msgServiceTypeRequired, "/add_service")
		case errors.Is(err, service.ErrFieldTooLong):
			h.flashRedirect(w, r, model.FlashDanger, msgRecordTooLong, "/add_service")
		case errors.Is(err, service.ErrInvalidCost):
			h.badRequest(w, r, dto.ErrInvalidCost)
		default:
			h.ServerError(w, r, err)
		}
		return
	}

	h.logger.Info("maintenance record added",
		slog.Int64("record_id", rec.ID),
		slog.Int64("user_id", user.ID),
		slog.String("request_id", middleware.GetRequestID(r.Context())),
	)
	h.flashRedirect(w, r, model.FlashSuccess, msgRecordAdded, "/dashboard")
}

// ViewServices lists the current user's records, newest first.
// GET /view_services
func (h *MaintenanceHandler) ViewServices(w http.ResponseWriter, r *http.Request) {
	user := auth.MustUserFromContext(r.Context())

	records, err := h.records.ListRecords(r.Context(), user.ID)
	if err != nil {
		h.ServerError(w, r, err)
		return
	}

	h.render(w, r, http.StatusOK, view.PageViewServices, &view.Page{Records: records})
}
