package api

import (
	"encoding/json"
	"net"
	"net/http"
	"strings"

	"github.com/voxkit/license-server/internal/models"
	"github.com/voxkit/license-server/internal/service"
)

type deviceRequest struct {
	DeviceID string `json:"device_id"`
}

type useRequest struct {
	DeviceID string `json:"device_id"`
	Text     string `json:"text"`
	Voice    string `json:"voice"`
}

type activateRequest struct {
	DeviceID string `json:"device_id"`
	Code     string `json:"code"`
}

type statusResponse struct {
	Tier          models.Tier `json:"tier"`
	TierDisplay   string      `json:"tier_display"`
	Remaining     any         `json:"remaining"`
	Unlimited     bool        `json:"unlimited"`
	Expires       string      `json:"expires,omitempty"`
	DailyUsed     int         `json:"daily_used"`
	DailyLimit    int         `json:"daily_limit"`
	Suspended     bool        `json:"suspended"`
	SuspendReason string      `json:"suspend_reason,omitempty"`
}

func toStatusResponse(st *service.Status) statusResponse {
	var remaining any = st.Remaining
	if st.Unlimited {
		remaining = "unlimited"
	}
	return statusResponse{
		Tier:          st.Tier,
		TierDisplay:   st.TierDisplay,
		Remaining:     remaining,
		Unlimited:     st.Unlimited,
		Expires:       st.Expires,
		DailyUsed:     st.DailyUsed,
		DailyLimit:    st.DailyLimit,
		Suspended:     st.Suspended,
		SuspendReason: st.SuspendReason,
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	var req deviceRequest
	if !s.decodeDevice(w, r, &req) {
		return
	}
	status, err := s.licenses.Status(r.Context(), req.DeviceID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toStatusResponse(status))
}

type validateResponse struct {
	CanGenerate bool   `json:"can_generate"`
	Reason      string `json:"reason,omitempty"`
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	var req deviceRequest
	if !s.decodeDevice(w, r, &req) {
		return
	}
	ok, reason, err := s.licenses.Validate(r.Context(), req.DeviceID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, validateResponse{CanGenerate: ok, Reason: reason})
}

func (s *Server) handleUse(w http.ResponseWriter, r *http.Request) {
	var req useRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.badRequest(w, "invalid json")
		return
	}
	if strings.TrimSpace(req.DeviceID) == "" {
		s.badRequest(w, "device_id required")
		return
	}

	status, err := s.licenses.Consume(r.Context(), service.ConsumeInput{
		DeviceID: req.DeviceID,
		Text:     req.Text,
		Voice:    req.Voice,
		ClientIP: clientIP(r),
	})
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toStatusResponse(status))
}

type activateResponse struct {
	Success   bool        `json:"success"`
	Message   string      `json:"message"`
	Tier      models.Tier `json:"tier"`
	Credits   int         `json:"credits"`
	Unlimited bool        `json:"unlimited"`
	Expires   string      `json:"expires,omitempty"`
}

func (s *Server) handleActivate(w http.ResponseWriter, r *http.Request) {
	var req activateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.badRequest(w, "invalid json")
		return
	}
	if strings.TrimSpace(req.DeviceID) == "" {
		s.badRequest(w, "device_id required")
		return
	}
	if strings.TrimSpace(req.Code) == "" {
		s.badRequest(w, "coupon code required")
		return
	}

	activation, err := s.coupons.Redeem(r.Context(), req.DeviceID, req.Code)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, activateResponse{
		Success:   true,
		Message:   activation.Message,
		Tier:      activation.Tier,
		Credits:   activation.Credits,
		Unlimited: activation.Unlimited,
		Expires:   activation.Expires,
	})
}

type notificationJSON struct {
	Type          models.NotificationType `json:"type"`
	Title         string                  `json:"title"`
	Message       string                  `json:"message"`
	CreditsChange int                     `json:"credits_change"`
	CreatedAt     string                  `json:"created_at"`
}

func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	var req deviceRequest
	if !s.decodeDevice(w, r, &req) {
		return
	}
	notifications, err := s.notifications.Fetch(r.Context(), req.DeviceID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	out := make([]notificationJSON, 0, len(notifications))
	for _, n := range notifications {
		out = append(out, notificationJSON{
			Type:          n.Type,
			Title:         n.Title,
			Message:       n.Message,
			CreditsChange: n.CreditsChange,
			CreatedAt:     n.CreatedAt,
		})
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"notifications": out})
}

func (s *Server) decodeDevice(w http.ResponseWriter, r *http.Request, req *deviceRequest) bool {
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		s.badRequest(w, "invalid json")
		return false
	}
	if strings.TrimSpace(req.DeviceID) == "" {
		s.badRequest(w, "device_id required")
		return false
	}
	return true
}

func clientIP(r *http.Request) string {
	// RealIP middleware rewrites RemoteAddr from X-Forwarded-For when
	// present; otherwise this is the socket peer.
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
