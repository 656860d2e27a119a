package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"trustreg/contracts/registry"
	"trustreg/internal/registry/models"
	id "trustreg/pkg/domain"
	dErrors "trustreg/pkg/domain-errors"
	audit "trustreg/pkg/platform/audit"
	"trustreg/pkg/platform/httputil"
	"trustreg/pkg/requestcontext"
)

const (
	defaultAuditLimit = 50
	maxAuditLimit     = 500
)

// Service defines the registry operations the HTTP layer calls.
type Service interface {
	Register(ctx context.Context, cmd models.RegisterCommand) (*models.Mutation, error)
	Deactivate(ctx context.Context, entity registry.EntityID) (*models.Mutation, error)
	Reactivate(ctx context.Context, entity registry.EntityID) (*models.Mutation, error)
	IsVerified(ctx context.Context, entity registry.EntityID) models.Verification
	GetManufacturer(ctx context.Context, entity registry.EntityID) (*models.Manufacturer, error)
	ListManufacturers(ctx context.Context) []*models.Manufacturer
	Status(ctx context.Context) models.Status
	History(ctx context.Context, entity registry.EntityID) ([]models.RegistryEvent, error)
	VerifyJournal(ctx context.Context) (models.Status, error)
}

// AuditReader serves the admin audit trail.
type AuditReader interface {
	List(ctx context.Context, subject string) ([]audit.Event, error)
	ListRecent(ctx context.Context, limit int) ([]audit.Event, error)
}

// Handler exposes the manufacturer registry over HTTP.
type Handler struct {
	service Service
	audit   AuditReader
	logger  *slog.Logger
}

// New constructs a registry handler. reader may be nil, in which case the
// admin audit route is not mounted.
func New(service Service, reader AuditReader, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		audit:   reader,
		logger:  logger,
	}
}

// Register mounts the public read routes.
func (h *Handler) Register(r chi.Router) {
	r.Get("/registry/status", h.HandleStatus)
	r.Get("/registry/manufacturers", h.HandleList)
	r.Get("/registry/manufacturers/{entityID}", h.HandleGet)
	r.Get("/registry/manufacturers/{entityID}/verified", h.HandleIsVerified)
	r.Get("/registry/manufacturers/{entityID}/history", h.HandleHistory)
}

// RegisterMutations mounts the state-changing routes. The router must
// already authenticate the caller.
func (h *Handler) RegisterMutations(r chi.Router) {
	r.Post("/registry/manufacturers", h.HandleRegister)
	r.Post("/registry/manufacturers/{entityID}/deactivate", h.HandleDeactivate)
	r.Post("/registry/manufacturers/{entityID}/reactivate", h.HandleReactivate)
}

// RegisterAdmin mounts operator routes behind the admin token.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Get("/journal/verify", h.HandleVerifyJournal)
	if h.audit != nil {
		r.Get("/audit", h.HandleAudit)
	}
}

// HandleRegister handles POST /registry/manufacturers.
func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[RegisterRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	mut, err := h.service.Register(ctx, req.Command())
	if err != nil {
		h.writeMutationError(ctx, w, "register", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, mut)
}

// HandleDeactivate handles POST /registry/manufacturers/{entityID}/deactivate.
func (h *Handler) HandleDeactivate(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, "deactivate", h.service.Deactivate)
}

// HandleReactivate handles POST /registry/manufacturers/{entityID}/reactivate.
func (h *Handler) HandleReactivate(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, "reactivate", h.service.Reactivate)
}

func (h *Handler) toggle(
	w http.ResponseWriter,
	r *http.Request,
	operation string,
	call func(context.Context, registry.EntityID) (*models.Mutation, error),
) {
	ctx := r.Context()
	entity, ok := h.entityParam(w, r)
	if !ok {
		return
	}
	mut, err := call(ctx, entity)
	if err != nil {
		h.writeMutationError(ctx, w, operation, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, mut)
}

// HandleIsVerified handles GET /registry/manufacturers/{entityID}/verified.
// Unknown entities are simply unverified.
func (h *Handler) HandleIsVerified(w http.ResponseWriter, r *http.Request) {
	entity, ok := h.entityParam(w, r)
	if !ok {
		return
	}
	httputil.WriteJSON(w, http.StatusOK, h.service.IsVerified(r.Context(), entity))
}

// HandleGet handles GET /registry/manufacturers/{entityID}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	entity, ok := h.entityParam(w, r)
	if !ok {
		return
	}
	m, err := h.service.GetManufacturer(r.Context(), entity)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, m)
}

// HandleList handles GET /registry/manufacturers.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	list := h.service.ListManufacturers(r.Context())
	httputil.WriteJSON(w, http.StatusOK, &ListResponse{Manufacturers: list, Count: len(list)})
}

// HandleHistory handles GET /registry/manufacturers/{entityID}/history.
func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	entity, ok := h.entityParam(w, r)
	if !ok {
		return
	}
	events, err := h.service.History(ctx, entity)
	if err != nil {
		if !dErrors.HasCode(err, dErrors.CodeNotFound) {
			h.logger.ErrorContext(ctx, "failed to load history",
				"error", err,
				"entity_id", string(entity),
				"request_id", requestcontext.RequestID(ctx),
			)
		}
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, &HistoryResponse{EntityID: entity, Events: events})
}

// HandleStatus handles GET /registry/status.
func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, h.service.Status(r.Context()))
}

// HandleVerifyJournal handles GET /admin/journal/verify.
func (h *Handler) HandleVerifyJournal(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	status, err := h.service.VerifyJournal(ctx)
	if err != nil {
		httputil.WriteJSON(w, httputil.StatusFor(dErrors.CodeOf(err)), &JournalCheckResponse{
			Status: status,
			Valid:  false,
			Error:  string(dErrors.CodeOf(err)),
		})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, &JournalCheckResponse{Status: status, Valid: true})
}

// HandleAudit handles GET /admin/audit. With ?subject= it returns that
// entity's trail, otherwise the most recent events.
func (h *Handler) HandleAudit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var (
		events []audit.Event
		err    error
	)
	if subject := r.URL.Query().Get("subject"); subject != "" {
		entity, perr := id.ParseEntityID(subject)
		if perr != nil {
			httputil.WriteError(w, perr)
			return
		}
		events, err = h.audit.List(ctx, string(entity))
	} else {
		limit, perr := parseLimit(r.URL.Query().Get("limit"))
		if perr != nil {
			httputil.WriteError(w, perr)
			return
		}
		events, err = h.audit.ListRecent(ctx, limit)
	}
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to read audit trail",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read audit trail"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toAuditResponse(events))
}

func (h *Handler) entityParam(w http.ResponseWriter, r *http.Request) (registry.EntityID, bool) {
	entity, err := id.ParseEntityID(chi.URLParam(r, "entityID"))
	if err != nil {
		h.logger.WarnContext(r.Context(), "invalid entity id",
			"error", err,
			"request_id", requestcontext.RequestID(r.Context()),
		)
		httputil.WriteError(w, err)
		return "", false
	}
	return entity, true
}

// writeMutationError logs server-side failures; rejections were already
// recorded by the service.
func (h *Handler) writeMutationError(ctx context.Context, w http.ResponseWriter, operation string, err error) {
	if httputil.StatusFor(dErrors.CodeOf(err)) >= http.StatusInternalServerError {
		h.logger.ErrorContext(ctx, "registry mutation failed",
			"operation", operation,
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
	}
	httputil.WriteError(w, err)
}

func parseLimit(raw string) (int, error) {
	if raw == "" {
		return defaultAuditLimit, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "limit must be a positive integer")
	}
	return min(n, maxAuditLimit), nil
}
