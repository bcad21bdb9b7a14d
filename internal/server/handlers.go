package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/edgard/jaiminho/internal/domain"
	apperrors "github.com/edgard/jaiminho/internal/errors"
	"github.com/edgard/jaiminho/internal/metrics"
	"github.com/edgard/jaiminho/internal/pipeline"
	"github.com/edgard/jaiminho/internal/tenant"
)

// messageRequest is the webhook body. Payload is the raw transport payload,
// checked for tampering but never trusted for identity.
type messageRequest struct {
	Message     domain.NormalizedMessage `json:"message"`
	Payload     map[string]any           `json:"payload"`
	SenderPhone string                   `json:"sender_phone"`
}

type errorResponse struct {
	Error   string            `json:"error"`
	Reasons map[string]string `json:"reasons,omitempty"`
}

func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	instanceID := chi.URLParam(r, "instanceID")

	var req messageRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.maxBodyBytes())).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Message.Timestamp.IsZero() {
		req.Message.Timestamp = time.Now().UTC()
	}
	if err := s.validate.Struct(&req.Message); err != nil {
		writeError(w, http.StatusBadRequest, "invalid message: "+err.Error())
		return
	}

	res, err := s.deps.Processor.Process(ctx, pipeline.Input{
		InstanceID:  instanceID,
		Credential:  r.Header.Get(InstanceKeyHeader),
		SenderPhone: req.SenderPhone,
		Payload:     req.Payload,
		Message:     req.Message,
	})
	if err != nil {
		var authErr *apperrors.AuthorizationError
		switch {
		case errors.As(err, &authErr):
			writeJSON(w, http.StatusForbidden, errorResponse{Error: "rejected", Reasons: authErr.Reasons})
		case apperrors.Code(err) == apperrors.CodeInvariant:
			writeError(w, http.StatusInternalServerError, "internal invariant violation")
		default:
			s.logger.ErrorContext(ctx, "Message processing failed", "instance_id", instanceID, "error", err)
			writeError(w, http.StatusInternalServerError, "processing failed")
		}
		return
	}

	writeJSON(w, http.StatusOK, res)
}

type feedbackResponse struct {
	MessageID string `json:"message_id"`
	Recorded  bool   `json:"recorded"`
}

// handleFeedback records an important / not important verdict for a sender.
// Identity comes from the instance only; the whole body goes through the
// gate's payload checks, so a user_id or foreign tenant_id is rejected.
func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	instanceID := chi.URLParam(r, "instanceID")

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxBodyBytes()))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	var fb domain.SenderFeedback
	var raw map[string]any
	if err := json.Unmarshal(body, &fb); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.validate.Struct(&fb); err != nil {
		writeError(w, http.StatusBadRequest, "invalid feedback: "+err.Error())
		return
	}

	tc, rej := s.deps.Tenants.Resolve(ctx, tenant.GateRequest{
		InstanceID: instanceID,
		Credential: r.Header.Get(InstanceKeyHeader),
		Payload:    raw,
	})
	if rej.Rejected() {
		writeJSON(w, http.StatusForbidden, errorResponse{Error: "rejected", Reasons: rej})
		return
	}
	if tc.Status != domain.TenantActive {
		writeJSON(w, http.StatusForbidden, errorResponse{
			Error:   "rejected",
			Reasons: map[string]string{tenant.ReasonStatus: string(tc.Status)},
		})
		return
	}

	recorded, err := s.deps.Feedback.RecordFeedback(ctx, tc.TenantID, tc.UserID, &fb)
	if err != nil {
		s.logger.ErrorContext(ctx, "Feedback not recorded", "instance_id", instanceID, "message_id", fb.MessageID, "error", err)
		writeError(w, http.StatusInternalServerError, "feedback not recorded")
		return
	}
	metrics.FeedbackReceived.WithLabelValues(string(fb.Feedback), strconv.FormatBool(recorded)).Inc()

	status := http.StatusCreated
	if !recorded {
		status = http.StatusOK
	}
	writeJSON(w, status, feedbackResponse{MessageID: fb.MessageID, Recorded: recorded})
}

func (s *Server) maxBodyBytes() int64 {
	if s.cfg.MaxBodyBytes <= 0 {
		return 1 << 20
	}
	return s.cfg.MaxBodyBytes
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.Health != nil {
		if err := s.deps.Health.Ping(r.Context()); err != nil {
			s.logger.WarnContext(r.Context(), "Health check failed", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}
