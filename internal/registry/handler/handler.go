// Package handler exposes the registry over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"provenance/internal/platform/middleware"
	"provenance/internal/registry/models"
	"provenance/pkg/domain"
	dErrors "provenance/pkg/domain-errors"
	audit "provenance/pkg/platform/audit"
	"provenance/pkg/platform/httputil"
	"provenance/pkg/requestcontext"
)

// Service is the registry surface the HTTP adapter calls.
type Service interface {
	CreateAsset(ctx context.Context, caller domain.Identity, meta models.AssetMetadata) (domain.AssetID, error)
	GetAsset(ctx context.Context, id domain.AssetID) (*models.Asset, error)
	VerifyAuthenticity(ctx context.Context, id domain.AssetID, provided []byte) (models.Verification, error)
	GetOwner(ctx context.Context, id domain.AssetID) (domain.Identity, error)
	ListAssetsByOwner(ctx context.Context, owner domain.Identity) ([]*models.Asset, error)
	AddRevision(ctx context.Context, caller domain.Identity, id domain.AssetID, index uint32, updatedHash []byte, notes string) (*models.Revision, error)
	GetRevision(ctx context.Context, id domain.AssetID, index uint32) (*models.Revision, error)
	Certify(ctx context.Context, caller domain.Identity, id domain.AssetID, certType string, expiry time.Time, details string) (*models.Certification, error)
	GetCertification(ctx context.Context, id domain.AssetID, certifier domain.Identity) (*models.Certification, error)
	ListCertifications(ctx context.Context, id domain.AssetID) ([]*models.Certification, error)
	AddWarranty(ctx context.Context, caller domain.Identity, id domain.AssetID, duration time.Duration, terms string) (*models.Warranty, error)
	GetWarranty(ctx context.Context, id domain.AssetID) (*models.Warranty, error)
	LogEvent(ctx context.Context, caller domain.Identity, id domain.AssetID, action string, location *string) (uint32, error)
	GetEvent(ctx context.Context, id domain.AssetID, index uint32) (*models.ProvenanceEvent, error)
	ListEvents(ctx context.Context, id domain.AssetID) ([]*models.ProvenanceEvent, error)
	EventCount(ctx context.Context, id domain.AssetID) (uint32, error)
	SetTransferRestriction(ctx context.Context, caller domain.Identity, id domain.AssetID, restricted bool, allowed []domain.Identity) (*models.TransferPolicy, error)
	GetTransferPolicy(ctx context.Context, id domain.AssetID) (*models.TransferPolicy, error)
	Transfer(ctx context.Context, caller domain.Identity, id domain.AssetID, recipient domain.Identity) error
	AuditTrail(ctx context.Context, id domain.AssetID) ([]audit.Event, error)
}

// Handler serves the registry routes.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New creates a registry Handler.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// Register mounts the registry routes on r.
func (h *Handler) Register(r chi.Router) {
	r.Route("/v1", func(r chi.Router) {
		r.Post("/assets", h.HandleCreateAsset)
		r.Get("/owners/{owner}/assets", h.HandleListAssetsByOwner)

		r.Route("/assets/{assetID}", func(r chi.Router) {
			r.Get("/", h.HandleGetAsset)
			r.Post("/verify", h.HandleVerify)
			r.Get("/owner", h.HandleGetOwner)

			r.Get("/revisions/{index}", h.HandleGetRevision)
			r.Put("/revisions/{index}", h.HandleAddRevision)

			r.Get("/certifications", h.HandleListCertifications)
			r.Put("/certifications", h.HandleCertify)
			r.Get("/certifications/{certifier}", h.HandleGetCertification)

			r.Get("/warranty", h.HandleGetWarranty)
			r.Put("/warranty", h.HandleAddWarranty)

			r.Get("/events", h.HandleListEvents)
			r.Post("/events", h.HandleLogEvent)
			r.Get("/events/count", h.HandleEventCount)
			r.Get("/events/{index}", h.HandleGetEvent)

			r.Get("/transfer-policy", h.HandleGetTransferPolicy)
			r.Put("/transfer-policy", h.HandleSetTransferPolicy)
			r.Post("/transfer", h.HandleTransfer)

			r.Get("/audit", h.HandleAuditTrail)
		})
	})
}

// requireCaller returns the authenticated caller or writes 401.
func (h *Handler) requireCaller(w http.ResponseWriter, r *http.Request) (domain.Identity, bool) {
	caller := middleware.GetCaller(r)
	if caller.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "caller identity required"))
		return "", false
	}
	return caller, true
}

func assetIDParam(r *http.Request) (domain.AssetID, error) {
	return domain.ParseAssetID(chi.URLParam(r, "assetID"))
}

// indexParam parses a non-negative slot index. Range checks belong to the
// service.
func indexParam(r *http.Request) (uint32, error) {
	n, err := strconv.ParseUint(chi.URLParam(r, "index"), 10, 32)
	if err != nil {
		return 0, dErrors.New(dErrors.CodeBadRequest, "index must be a non-negative integer")
	}
	return uint32(n), nil
}

// fail logs a service error at a level matching its class and writes it.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	ctx := r.Context()
	args := []any{
		"operation", op,
		"request_id", requestcontext.RequestID(ctx),
		"error", err,
	}
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, "registry operation failed", args...)
	} else {
		h.logger.DebugContext(ctx, "registry operation rejected", args...)
	}
	httputil.WriteError(w, err)
}

func notFound(w http.ResponseWriter, what string) {
	httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, what+" not found"))
}

func (h *Handler) HandleCreateAsset(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := h.requireCaller(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[CreateAssetRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	id, err := h.service.CreateAsset(ctx, caller, models.AssetMetadata{
		Serial:      req.Serial,
		AuthHash:    req.authHash,
		Model:       req.Model,
		Description: req.Description,
	})
	if err != nil {
		h.fail(w, r, "create_asset", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, CreateAssetResponse{AssetID: id})
}

func (h *Handler) HandleGetAsset(w http.ResponseWriter, r *http.Request) {
	id, err := assetIDParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	asset, err := h.service.GetAsset(r.Context(), id)
	if err != nil {
		h.fail(w, r, "get_asset", err)
		return
	}
	if asset == nil {
		notFound(w, "asset")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, asset)
}

func (h *Handler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := assetIDParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[VerifyRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	result, err := h.service.VerifyAuthenticity(ctx, id, req.hash)
	if err != nil {
		h.fail(w, r, "verify_authenticity", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, VerifyResponse{AssetID: id, Result: result})
}

func (h *Handler) HandleGetOwner(w http.ResponseWriter, r *http.Request) {
	id, err := assetIDParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	owner, err := h.service.GetOwner(r.Context(), id)
	if err != nil {
		h.fail(w, r, "get_owner", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, OwnerResponse{AssetID: id, Owner: owner})
}

func (h *Handler) HandleListAssetsByOwner(w http.ResponseWriter, r *http.Request) {
	owner, err := domain.ParseIdentity(chi.URLParam(r, "owner"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	assets, err := h.service.ListAssetsByOwner(r.Context(), owner)
	if err != nil {
		h.fail(w, r, "list_assets_by_owner", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, AssetListResponse{Owner: owner, Assets: assets})
}

func (h *Handler) HandleAddRevision(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := h.requireCaller(w, r)
	if !ok {
		return
	}
	id, err := assetIDParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	index, err := indexParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[AddRevisionRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	rev, err := h.service.AddRevision(ctx, caller, id, index, req.updatedHash, req.Notes)
	if err != nil {
		h.fail(w, r, "add_revision", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, rev)
}

func (h *Handler) HandleGetRevision(w http.ResponseWriter, r *http.Request) {
	id, err := assetIDParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	index, err := indexParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	rev, err := h.service.GetRevision(r.Context(), id, index)
	if err != nil {
		h.fail(w, r, "get_revision", err)
		return
	}
	if rev == nil {
		notFound(w, "revision")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, rev)
}

func (h *Handler) HandleCertify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := h.requireCaller(w, r)
	if !ok {
		return
	}
	id, err := assetIDParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[CertifyRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	cert, err := h.service.Certify(ctx, caller, id, req.CertType, req.Expiry, req.Details)
	if err != nil {
		h.fail(w, r, "certify", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, cert)
}

func (h *Handler) HandleGetCertification(w http.ResponseWriter, r *http.Request) {
	id, err := assetIDParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	certifier, err := domain.ParseIdentity(chi.URLParam(r, "certifier"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	cert, err := h.service.GetCertification(r.Context(), id, certifier)
	if err != nil {
		h.fail(w, r, "get_certification", err)
		return
	}
	if cert == nil {
		notFound(w, "certification")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, cert)
}

func (h *Handler) HandleListCertifications(w http.ResponseWriter, r *http.Request) {
	id, err := assetIDParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	certs, err := h.service.ListCertifications(r.Context(), id)
	if err != nil {
		h.fail(w, r, "list_certifications", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, CertificationListResponse{AssetID: id, Certifications: certs})
}

func (h *Handler) HandleAddWarranty(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := h.requireCaller(w, r)
	if !ok {
		return
	}
	id, err := assetIDParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[AddWarrantyRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	warranty, err := h.service.AddWarranty(ctx, caller, id, req.duration(), req.Terms)
	if err != nil {
		h.fail(w, r, "add_warranty", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toWarrantyResponse(warranty, requestcontext.Now(ctx)))
}

func (h *Handler) HandleGetWarranty(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := assetIDParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	warranty, err := h.service.GetWarranty(ctx, id)
	if err != nil {
		h.fail(w, r, "get_warranty", err)
		return
	}
	if warranty == nil {
		notFound(w, "warranty")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toWarrantyResponse(warranty, requestcontext.Now(ctx)))
}

func (h *Handler) HandleLogEvent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := h.requireCaller(w, r)
	if !ok {
		return
	}
	id, err := assetIDParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[LogEventRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	index, err := h.service.LogEvent(ctx, caller, id, req.Action, req.Location)
	if err != nil {
		h.fail(w, r, "log_event", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, LogEventResponse{AssetID: id, LogIndex: index})
}

func (h *Handler) HandleGetEvent(w http.ResponseWriter, r *http.Request) {
	id, err := assetIDParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	index, err := indexParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	ev, err := h.service.GetEvent(r.Context(), id, index)
	if err != nil {
		h.fail(w, r, "get_event", err)
		return
	}
	if ev == nil {
		notFound(w, "event")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ev)
}

func (h *Handler) HandleListEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := assetIDParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	events, err := h.service.ListEvents(ctx, id)
	if err != nil {
		h.fail(w, r, "list_events", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, EventListResponse{
		AssetID: id,
		Count:   uint32(len(events)),
		Events:  events,
	})
}

func (h *Handler) HandleEventCount(w http.ResponseWriter, r *http.Request) {
	id, err := assetIDParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	count, err := h.service.EventCount(r.Context(), id)
	if err != nil {
		h.fail(w, r, "event_count", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, EventCountResponse{AssetID: id, Count: count})
}

func (h *Handler) HandleSetTransferPolicy(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := h.requireCaller(w, r)
	if !ok {
		return
	}
	id, err := assetIDParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[TransferPolicyRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	policy, err := h.service.SetTransferRestriction(ctx, caller, id, req.Restricted, req.allowed())
	if err != nil {
		h.fail(w, r, "set_transfer_restriction", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, policy)
}

func (h *Handler) HandleGetTransferPolicy(w http.ResponseWriter, r *http.Request) {
	id, err := assetIDParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	policy, err := h.service.GetTransferPolicy(r.Context(), id)
	if err != nil {
		h.fail(w, r, "get_transfer_policy", err)
		return
	}
	if policy == nil {
		notFound(w, "transfer policy")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, policy)
}

func (h *Handler) HandleTransfer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := h.requireCaller(w, r)
	if !ok {
		return
	}
	id, err := assetIDParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[TransferRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	if err := h.service.Transfer(ctx, caller, id, domain.Identity(req.Recipient)); err != nil {
		h.fail(w, r, "transfer", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, OwnerResponse{AssetID: id, Owner: domain.Identity(req.Recipient)})
}

func (h *Handler) HandleAuditTrail(w http.ResponseWriter, r *http.Request) {
	id, err := assetIDParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	events, err := h.service.AuditTrail(r.Context(), id)
	if err != nil {
		h.fail(w, r, "audit_trail", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, AuditTrailResponse{AssetID: id, Events: events})
}
