package api

import (
	"net/http"
	"strings"
	"time"

	"vip-key-shop/internal/domain/model"
	"vip-key-shop/internal/infra/logging"
	"vip-key-shop/internal/infra/metrics"
	"vip-key-shop/internal/usecase"
)

const (
	smallBody  = 16 << 10
	importBody = 8 << 20
)

// ===== public =====

type checkOrderRequest struct {
	Content       string `json:"content" validate:"required_without=ReferenceCode,max=64"`
	ReferenceCode string `json:"referenceCode" validate:"required_without=Content,max=64"`
	TierHint      string `json:"tier_hint" validate:"max=64"`
}

type checkOrderResponse struct {
	Status    string     `json:"status"`
	Key       string     `json:"key,omitempty"`
	Package   string     `json:"package,omitempty"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
	MaxUses   *int       `json:"maxUses,omitempty"`
	Message   string     `json:"message,omitempty"`
	Code      string     `json:"code,omitempty"`
}

func (s *Server) handleCheckOrder(w http.ResponseWriter, r *http.Request) {
	var req checkOrderRequest
	if !decode(w, r, smallBody, &req) {
		return
	}
	ref := req.Content
	if ref == "" {
		ref = req.ReferenceCode
	}
	res, err := s.orders.CheckOrder(r.Context(), usecase.OrderRequest{ReferenceCode: ref, TierHint: req.TierHint})
	if err != nil {
		logging.With(r.Context(), s.log).Error().Err(err).Msg("check order failed")
		writeError(w, err)
		return
	}
	out := checkOrderResponse{Status: string(res.Status), Message: res.Message, Code: res.ErrorCode}
	if c := res.Credential; c != nil {
		out.Key = c.Key
		out.Package = res.Tier
		out.ExpiresAt = c.ExpiresAt
		out.MaxUses = c.MaxUses
	}
	writeJSON(w, http.StatusOK, out)
}

type verifyRequest struct {
	Key string `json:"key" validate:"required,max=64"`
}

type verifyResponse struct {
	Success       bool       `json:"success"`
	Message       string     `json:"message"`
	RemainingUses *int       `json:"remainingUses"`
	IsUnlimited   bool       `json:"isUnlimited"`
	ExpiresAt     *time.Time `json:"expiresAt"`
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if !decode(w, r, smallBody, &req) {
		return
	}
	res, err := s.credentials.Verify(r.Context(), req.Key)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, verifyResponse{
		Success:       true,
		Message:       "key verified",
		RemainingUses: res.RemainingUses,
		IsUnlimited:   res.Unlimited,
		ExpiresAt:     res.ExpiresAt,
	})
}

type buyVPNRequest struct {
	Content  string `json:"content" validate:"required,max=64"`
	PlanDays int    `json:"plan_days" validate:"min=0,max=3660"`
}

type vpnData struct {
	QRImage  string     `json:"qr_image,omitempty"`
	ConfText string     `json:"conf_text,omitempty"`
	Expire   *time.Time `json:"expire,omitempty"`
}

type buyVPNResponse struct {
	Status  string   `json:"status"`
	Message string   `json:"message,omitempty"`
	Code    string   `json:"code,omitempty"`
	Data    *vpnData `json:"data,omitempty"`
}

func (s *Server) handleBuyVPN(w http.ResponseWriter, r *http.Request) {
	var req buyVPNRequest
	if !decode(w, r, smallBody, &req) {
		return
	}
	res, err := s.vpn.Buy(r.Context(), req.Content, req.PlanDays)
	if err != nil {
		writeError(w, err)
		return
	}
	out := buyVPNResponse{Status: string(res.Status), Message: res.Message, Code: res.ErrorCode}
	if it := res.Item; it != nil {
		out.Data = &vpnData{QRImage: it.QRImage, ConfText: it.Conf, Expire: it.ExpireAt}
	}
	writeJSON(w, http.StatusOK, out)
}

// ===== admin =====

type loginRequest struct {
	Password string `json:"password" validate:"required,max=256"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decode(w, r, smallBody, &req) {
		return
	}
	if !s.auth.CheckPassword(req.Password) {
		metrics.IncAdminCommand("http", "login", "denied")
		logging.With(r.Context(), s.log).Warn().Str("ip", clientIP(r)).Msg("admin login rejected")
		writeJSON(w, http.StatusUnauthorized, errorBody{Status: "error", Error: "invalid password", Code: "UNAUTHORIZED"})
		return
	}
	token, exp, err := s.auth.Mint(w)
	if err != nil {
		writeError(w, err)
		return
	}
	metrics.IncAdminCommand("http", "login", "ok")
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "token": token, "expiresAt": exp})
}

func (s *Server) handleSession(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "authenticated"})
}

type createKeyRequest struct {
	Duration int    `json:"duration" validate:"min=0,max=36600"`
	MaxUses  int    `json:"maxUses" validate:"min=0,max=1000000"`
	Notes    string `json:"notes" validate:"max=256"`
}

type createKeyResponse struct {
	Success   bool       `json:"success"`
	Key       string     `json:"key"`
	ExpiresAt *time.Time `json:"expiresAt"`
	MaxUses   *int       `json:"maxUses"`
	Details   struct {
		ID          string    `json:"id"`
		CreatedAt   time.Time `json:"createdAt"`
		IsUnlimited bool      `json:"isUnlimited"`
	} `json:"details"`
}

func (s *Server) handleCreateKey(w http.ResponseWriter, r *http.Request) {
	var req createKeyRequest
	if !decode(w, r, smallBody, &req) {
		return
	}
	rec, err := s.credentials.Create(r.Context(), usecase.CreateParams{
		Days:      req.Duration,
		MaxUses:   req.MaxUses,
		Notes:     req.Notes,
		CreatedBy: model.CreatedByAdminAPI,
	})
	if err != nil {
		metrics.IncAdminCommand("http", "create", "error")
		writeError(w, err)
		return
	}
	metrics.IncAdminCommand("http", "create", "ok")
	out := createKeyResponse{Success: true, Key: rec.Key, ExpiresAt: rec.ExpiresAt, MaxUses: rec.MaxUses}
	out.Details.ID = rec.ID
	out.Details.CreatedAt = rec.CreatedAt
	out.Details.IsUnlimited = rec.ExpiresAt == nil && rec.MaxUses == nil
	writeJSON(w, http.StatusCreated, out)
}

func (s *Server) handleListKeys(w http.ResponseWriter, r *http.Request) {
	recs, stats, err := s.credentials.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	metrics.IncAdminCommand("http", "list", "ok")
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "keys": recs, "stats": stats})
}

type keyRequest struct {
	Key string `json:"key" validate:"required,max=64"`
}

func (s *Server) handleDeleteKey(w http.ResponseWriter, r *http.Request) {
	var req keyRequest
	if !decode(w, r, smallBody, &req) {
		return
	}
	rec, err := s.credentials.Delete(r.Context(), req.Key)
	if err != nil {
		metrics.IncAdminCommand("http", "delete", "error")
		writeError(w, err)
		return
	}
	metrics.IncAdminCommand("http", "delete", "ok")
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "key deleted", "key": rec.Key})
}

func (s *Server) handleRevokeKey(w http.ResponseWriter, r *http.Request) {
	var req keyRequest
	if !decode(w, r, smallBody, &req) {
		return
	}
	rec, err := s.credentials.Revoke(r.Context(), req.Key)
	if err != nil {
		metrics.IncAdminCommand("http", "revoke", "error")
		writeError(w, err)
		return
	}
	metrics.IncAdminCommand("http", "revoke", "ok")
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "key": rec.Key, "active": rec.Active})
}

func (s *Server) handleVPNStock(w http.ResponseWriter, r *http.Request) {
	st, err := s.vpn.Stock(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

type vpnImportRequest struct {
	Items []*model.VPNItem `json:"items" validate:"required,min=1,dive,required"`
}

func (s *Server) handleVPNImport(w http.ResponseWriter, r *http.Request) {
	var req vpnImportRequest
	if !decode(w, r, importBody, &req) {
		return
	}
	n, err := s.vpn.Import(r.Context(), req.Items)
	if err != nil {
		metrics.IncAdminCommand("http", "vpn_import", "error")
		writeError(w, err)
		return
	}
	metrics.IncAdminCommand("http", "vpn_import", "ok")
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "imported": n})
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func notFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, errorBody{Status: "error", Error: "no route for " + strings.ToUpper(r.Method) + " " + r.URL.Path, Code: "NOT_FOUND"})
}
