package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/voxkit/license-server/internal/models"
)

type issueCouponsRequest struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
}

func (s *Server) handleAdminIssueCoupons(w http.ResponseWriter, r *http.Request) {
	var req issueCouponsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.badRequest(w, "invalid json")
		return
	}
	if strings.TrimSpace(req.Type) == "" {
		s.badRequest(w, "type required")
		return
	}

	result, err := s.coupons.Issue(r.Context(), strings.ToUpper(strings.TrimSpace(req.Type)), req.Count)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, map[string]any{
		"success":  true,
		"batch_id": result.BatchID,
		"codes":    result.Codes,
	})
}

type couponJSON struct {
	Code      string `json:"code"`
	Class     string `json:"class"`
	Credits   int    `json:"credits"`
	Days      int    `json:"days"`
	Unlimited bool   `json:"unlimited"`
	BatchID   string `json:"batch_id"`
	Used      bool   `json:"used"`
	UsedBy    string `json:"used_by,omitempty"`
	UsedAt    string `json:"used_at,omitempty"`
	CreatedAt string `json:"created_at"`
}

func (s *Server) handleAdminListCoupons(w http.ResponseWriter, r *http.Request) {
	coupons, err := s.coupons.List(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	out := make([]couponJSON, 0, len(coupons))
	for _, c := range coupons {
		out = append(out, couponJSON{
			Code:      c.Code,
			Class:     c.Class,
			Credits:   c.Credits,
			Days:      c.Days,
			Unlimited: c.Unlimited,
			BatchID:   c.BatchID,
			Used:      c.Used,
			UsedBy:    c.UsedBy,
			UsedAt:    c.UsedAt,
			CreatedAt: c.CreatedAt,
		})
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"coupons": out})
}

func (s *Server) handleAdminStats(w http.ResponseWriter, r *http.Request) {
	licenseStats, err := s.licenses.Stats(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	couponStats, err := s.coupons.Stats(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"total_coupons":     couponStats.Total,
		"used_coupons":      couponStats.Used,
		"total_devices":     licenseStats.Devices,
		"pro_devices":       licenseStats.ProDevices,
		"suspended_devices": licenseStats.SuspendedDevices,
		"total_generations": licenseStats.TotalGenerations,
	})
}

type licenseJSON struct {
	DeviceID         string      `json:"device_id"`
	Tier             models.Tier `json:"tier"`
	Credits          int         `json:"credits"`
	Unlimited        bool        `json:"unlimited"`
	Expires          string      `json:"expires,omitempty"`
	DailyUsed        int         `json:"daily_used"`
	DailyReset       string      `json:"daily_reset,omitempty"`
	CouponUsed       string      `json:"coupon_used,omitempty"`
	Suspended        bool        `json:"suspended"`
	SuspendReason    string      `json:"suspend_reason,omitempty"`
	TotalGenerations int64       `json:"total_generations"`
	LastActive       string      `json:"last_active,omitempty"`
	CreatedAt        string      `json:"created_at"`
	UpdatedAt        string      `json:"updated_at"`
}

func toLicenseJSON(l *models.License) licenseJSON {
	return licenseJSON{
		DeviceID:         l.DeviceID,
		Tier:             l.Tier,
		Credits:          l.Credits,
		Unlimited:        l.Unlimited,
		Expires:          l.Expires,
		DailyUsed:        l.DailyUsed,
		DailyReset:       l.DailyReset,
		CouponUsed:       l.CouponUsed,
		Suspended:        l.Suspended,
		SuspendReason:    l.SuspendReason,
		TotalGenerations: l.TotalGenerations,
		LastActive:       l.LastActive,
		CreatedAt:        l.CreatedAt,
		UpdatedAt:        l.UpdatedAt,
	}
}

func (s *Server) handleAdminListDevices(w http.ResponseWriter, r *http.Request) {
	licenses, err := s.licenses.List(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	out := make([]licenseJSON, 0, len(licenses))
	for i := range licenses {
		out = append(out, toLicenseJSON(&licenses[i]))
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"devices": out})
}

type usageJSON struct {
	TextPreview string `json:"text_preview"`
	TextLength  int    `json:"text_length"`
	Voice       string `json:"voice,omitempty"`
	IPAddress   string `json:"ip_address,omitempty"`
	CreatedAt   string `json:"created_at"`
}

func (s *Server) handleAdminDeviceDetail(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "deviceID")
	detail, err := s.licenses.Detail(r.Context(), deviceID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	usage := make([]usageJSON, 0, len(detail.Usage))
	for _, e := range detail.Usage {
		usage = append(usage, usageJSON{
			TextPreview: e.TextPreview,
			TextLength:  e.TextLength,
			Voice:       e.Voice,
			IPAddress:   e.IPAddress,
			CreatedAt:   e.CreatedAt,
		})
	}
	notifications := make([]notificationJSON, 0, len(detail.Notifications))
	for _, n := range detail.Notifications {
		notifications = append(notifications, notificationJSON{
			Type:          n.Type,
			Title:         n.Title,
			Message:       n.Message,
			CreditsChange: n.CreditsChange,
			CreatedAt:     n.CreatedAt,
		})
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"license":       toLicenseJSON(detail.License),
		"usage":         usage,
		"notifications": notifications,
	})
}

type suspendRequest struct {
	DeviceID string `json:"device_id"`
	Reason   string `json:"reason"`
}

func (s *Server) handleAdminSuspend(w http.ResponseWriter, r *http.Request) {
	var req suspendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.badRequest(w, "invalid json")
		return
	}
	if strings.TrimSpace(req.DeviceID) == "" {
		s.badRequest(w, "device_id required")
		return
	}
	if err := s.licenses.Suspend(r.Context(), req.DeviceID, req.Reason); err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleAdminUnsuspend(w http.ResponseWriter, r *http.Request) {
	var req suspendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.badRequest(w, "invalid json")
		return
	}
	if strings.TrimSpace(req.DeviceID) == "" {
		s.badRequest(w, "device_id required")
		return
	}
	if err := s.licenses.Unsuspend(r.Context(), req.DeviceID); err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

type adjustRequest struct {
	DeviceID string `json:"device_id"`
	Credits  int    `json:"credits"`
	Message  string `json:"message"`
	Reason   string `json:"reason"`
}

func (s *Server) handleAdminBonus(w http.ResponseWriter, r *http.Request) {
	var req adjustRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.badRequest(w, "invalid json")
		return
	}
	if strings.TrimSpace(req.DeviceID) == "" {
		s.badRequest(w, "device_id required")
		return
	}
	if err := s.licenses.Bonus(r.Context(), req.DeviceID, req.Credits, req.Message); err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleAdminPenalty(w http.ResponseWriter, r *http.Request) {
	var req adjustRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.badRequest(w, "invalid json")
		return
	}
	if strings.TrimSpace(req.DeviceID) == "" {
		s.badRequest(w, "device_id required")
		return
	}
	if err := s.licenses.Penalty(r.Context(), req.DeviceID, req.Credits, req.Reason); err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"success": true})
}
