package backendhandlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	backendservice "github.com/Black-And-White-Club/arena-sync/app/modules/backend/application"
	backenddto "github.com/Black-And-White-Club/arena-sync/app/modules/backend/dto"
	"github.com/Black-And-White-Club/arena-sync/internal/observability/attr"
)

// maxBodyBytes bounds request bodies; traces are the largest.
const maxBodyBytes = 1 << 20

// BackendHandlers serves the backend HTTP API.
type BackendHandlers struct {
	service backendservice.Service
	logger  *slog.Logger
	tracer  trace.Tracer
}

func NewBackendHandlers(service backendservice.Service, logger *slog.Logger, tracer trace.Tracer) *BackendHandlers {
	return &BackendHandlers{service: service, logger: logger, tracer: tracer}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, backenddto.ErrorResponse{Error: msg})
}

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
}

// fail maps service errors onto status codes and logs the unexpected ones.
func (h *BackendHandlers) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, backendservice.ErrUserNotFound), errors.Is(err, backendservice.ErrTraceNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, backendservice.ErrInvalidWallet),
		errors.Is(err, backendservice.ErrInvalidEntry),
		errors.Is(err, backendservice.ErrInvalidTrace):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, backendservice.ErrTokensOff):
		writeError(w, http.StatusNotImplemented, err.Error())
	default:
		h.logger.ErrorContext(r.Context(), "Backend request failed", attr.String("operation", op), attr.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// sameWallet rejects a body naming a different wallet than the request's session token.
func sameWallet(w http.ResponseWriter, r *http.Request, wallet string) bool {
	claimed, ok := WalletFromContext(r.Context())
	if ok && claimed != wallet {
		writeError(w, http.StatusForbidden, "token was issued for another wallet")
		return false
	}
	return true
}

func (h *BackendHandlers) HandleGetUser(w http.ResponseWriter, r *http.Request) {
	wallet := chi.URLParam(r, "wallet")
	ctx, span := h.tracer.Start(r.Context(), "HandleGetUser", trace.WithAttributes(attribute.String("wallet", wallet)))
	defer span.End()

	profile, err := h.service.LookupUser(ctx, wallet)
	if err != nil {
		h.fail(w, r, "lookup_user", err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (h *BackendHandlers) HandleAddLeaderboardEntry(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "HandleAddLeaderboardEntry")
	defer span.End()

	var entry backenddto.LeaderboardEntry
	if err := decode(w, r, &entry); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !sameWallet(w, r, entry.WalletAddress) {
		return
	}
	stored, err := h.service.AddLeaderboardEntry(ctx, entry)
	if err != nil {
		h.fail(w, r, "add_leaderboard_entry", err)
		return
	}
	writeJSON(w, http.StatusCreated, stored)
}

func (h *BackendHandlers) HandleSetStake(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "HandleSetStake")
	defer span.End()

	var req backenddto.StakeRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !sameWallet(w, r, req.WalletAddress) {
		return
	}
	resp, err := h.service.SetStake(ctx, req)
	if err != nil {
		h.fail(w, r, "set_stake", err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *BackendHandlers) HandleIssueToken(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "HandleIssueToken")
	defer span.End()

	var req backenddto.TokenRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	resp, err := h.service.IssueToken(ctx, req)
	if err != nil {
		h.fail(w, r, "issue_token", err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *BackendHandlers) HandleSubmitTrace(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "HandleSubmitTrace")
	defer span.End()

	var req backenddto.TraceRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	receipt, err := h.service.SubmitTrace(ctx, req)
	if err != nil {
		h.fail(w, r, "submit_trace", err)
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}

func (h *BackendHandlers) HandleGetTrace(w http.ResponseWriter, r *http.Request) {
	digest := chi.URLParam(r, "digest")
	ctx, span := h.tracer.Start(r.Context(), "HandleGetTrace", trace.WithAttributes(attribute.String("digest", digest)))
	defer span.End()

	record, err := h.service.Trace(ctx, digest)
	if err != nil {
		h.fail(w, r, "get_trace", err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (h *BackendHandlers) HandleLeaderboard(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomId")
	ctx, span := h.tracer.Start(r.Context(), "HandleLeaderboard", trace.WithAttributes(attribute.String("room", roomID)))
	defer span.End()

	entries, err := h.service.Leaderboard(ctx, roomID)
	if err != nil {
		h.fail(w, r, "leaderboard", err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *BackendHandlers) HandleExportLeaderboard(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomId")
	ctx, span := h.tracer.Start(r.Context(), "HandleExportLeaderboard", trace.WithAttributes(attribute.String("room", roomID)))
	defer span.End()

	data, err := h.service.ExportLeaderboard(ctx, roomID)
	if err != nil {
		h.fail(w, r, "export_leaderboard", err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="leaderboard.xlsx"`)
	_, _ = w.Write(data)
}

func (h *BackendHandlers) HandleLeaderboardChart(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomId")
	ctx, span := h.tracer.Start(r.Context(), "HandleLeaderboardChart", trace.WithAttributes(attribute.String("room", roomID)))
	defer span.End()

	data, err := h.service.LeaderboardChart(ctx, roomID)
	if err != nil {
		h.fail(w, r, "leaderboard_chart", err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(data)
}
