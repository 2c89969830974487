package alert

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-ids-console/internal/alert/entity"
	"github.com/ovaphlow/pitchfork/service-ids-console/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-ids-console/internal/auth"
)

// Handler exposes the log and alert endpoints.
type Handler struct {
	svc    *AlertService
	logger *zap.SugaredLogger
}

func NewHandler(svc *AlertService, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

type messageResponse struct {
	Message string `json:"message"`
}

func (h *Handler) Logs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := entity.LogFilter{
		SourceIP:      q.Get("sourceIP"),
		DestinationIP: q.Get("dstIP"),
		Protocol:      q.Get("protocol"),
	}
	out, err := h.svc.QueryLogs(r.Context(), f)
	if err != nil {
		apperr.Write(w, h.logger, err)
		return
	}
	h.logger.Debugw("logs queried", "filtered", !f.Empty(), "count", len(out))
	apperr.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) Alerts(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.ListAlerts(r.Context(), r.URL.Query().Get("label"))
	if err != nil {
		apperr.Write(w, h.logger, err)
		return
	}
	apperr.WriteJSON(w, http.StatusOK, out)
}

type changeOwnerRequest struct {
	Alerts   []entity.Key      `json:"alerts"`
	NewOwner string            `json:"newOwner"`
	AlertIDs []json.RawMessage `json:"alertIds"`
}

var errLegacyAlertIDs = apperr.Validation("alertIds is not supported; send alerts as {ConnectionID, SrcIP} pairs.")

func (h *Handler) ChangeOwner(w http.ResponseWriter, r *http.Request) {
	var req changeOwnerRequest
	if err := apperr.DecodeJSON(w, r, &req); err != nil {
		h.logger.Debugw("invalid change-owner payload", "err", err)
		apperr.Write(w, h.logger, ErrNoAlerts)
		return
	}
	if len(req.Alerts) == 0 && len(req.AlertIDs) > 0 {
		apperr.Write(w, h.logger, errLegacyAlertIDs)
		return
	}
	if err := h.svc.ChangeOwner(r.Context(), req.Alerts, req.NewOwner); err != nil {
		apperr.Write(w, h.logger, err)
		return
	}
	actor, _ := auth.ClaimsFromContext(r.Context())
	by := ""
	if actor != nil {
		by = actor.Username
	}
	h.logger.Infow("alert owner changed", "count", len(req.Alerts), "owner", req.NewOwner, "by", by)
	apperr.WriteJSON(w, http.StatusOK, messageResponse{Message: "Alert owner updated successfully"})
}

type statusRequest struct {
	ConnectionID string `json:"ConnectionID"`
	SrcIP        string `json:"SrcIP"`
	Status       string `json:"status"`
}

// UpdateStatus handles both the body-addressed route and the legacy
// /api/alerts/{id}/status route, where {id} is the ConnectionID.
func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		apperr.Write(w, h.logger, apperr.Unauthenticated("Unauthorized: User not found in request."))
		return
	}
	var req statusRequest
	if err := apperr.DecodeJSON(w, r, &req); err != nil {
		h.logger.Debugw("invalid status payload", "err", err)
		apperr.Write(w, h.logger, ErrInvalidStatus)
		return
	}
	if id := r.PathValue("id"); id != "" {
		req.ConnectionID = id
	}
	key := entity.Key{ConnectionID: req.ConnectionID, SrcIP: req.SrcIP}
	if err := h.svc.UpdateStatus(r.Context(), key, req.Status, actor.Username); err != nil {
		apperr.Write(w, h.logger, err)
		return
	}
	h.logger.Infow("alert status updated", "connection_id", key.ConnectionID, "src_ip", key.SrcIP, "status", req.Status, "by", actor.Username)
	apperr.WriteJSON(w, http.StatusOK, messageResponse{Message: "Alert status updated successfully"})
}
