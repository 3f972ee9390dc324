package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/comtower/sms-relay/internal/audit"
	"github.com/comtower/sms-relay/internal/middleware"
	"github.com/comtower/sms-relay/internal/model"
	"github.com/comtower/sms-relay/internal/service"
)

type AdminHandler struct {
	adminService      *service.AdminService
	poolService       *service.PoolService
	linkService       *service.LinkService
	sessionMiddleware func(http.Handler) http.Handler
	loginRateLimiter  *middleware.LoginRateLimiter
}

func NewAdminHandler(
	adminService *service.AdminService,
	poolService *service.PoolService,
	linkService *service.LinkService,
	sessionMiddleware func(http.Handler) http.Handler,
) *AdminHandler {
	return &AdminHandler{
		adminService:      adminService,
		poolService:       poolService,
		linkService:       linkService,
		sessionMiddleware: sessionMiddleware,
		loginRateLimiter:  middleware.NewLoginRateLimiter(),
	}
}

func (h *AdminHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.With(h.loginRateLimiter.Handler).Post("/api/login", h.Login)
	r.Post("/api/logout", h.Logout)

	r.Group(func(r chi.Router) {
		r.Use(h.sessionMiddleware)
		r.Get("/api/stats", h.Stats)

		// Runtime configuration
		r.Get("/api/configs", h.ListConfigs)
		r.Post("/api/config", h.SetConfig)

		// Phone pool
		r.Get("/api/mappings", h.ListMappings)
		r.Post("/api/mappings/import", h.ImportMappings)
		r.Post("/api/mappings/reset-cooldown", h.ResetCooldown)

		// Link issuance
		r.Post("/api/links", h.IssueLinks)
		r.Post("/api/shortlinks", h.IssueShortLinks)

		r.Post("/api/delete-all-data", h.DeleteAllData)
	})

	return r
}

func (h *AdminHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SecretKey string `json:"secretKey"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.SecretKey == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "secretKey is required"})
		return
	}

	token, err := h.adminService.Login(r.Context(), req.SecretKey)
	if err != nil {
		log.Error().Err(err).Msg("admin login error")
		writeError(w, err)
		return
	}

	if token == "" {
		audit.LogFromRequest(r, audit.Event{Type: audit.EventLoginFailure})
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Invalid secret key"})
		return
	}

	audit.LogFromRequest(r, audit.Event{Type: audit.EventLoginSuccess})
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (h *AdminHandler) Logout(w http.ResponseWriter, r *http.Request) {
	token := middleware.ExtractBearerToken(r)
	if token != "" {
		h.adminService.Logout(r.Context(), token)
		audit.LogFromRequest(r, audit.Event{Type: audit.EventLogout})
	}

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.adminService.Stats(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("failed to get stats")
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

func (h *AdminHandler) ListConfigs(w http.ResponseWriter, r *http.Request) {
	configs, err := h.adminService.Configs(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("failed to list configs")
		writeError(w, err)
		return
	}

	out := make(map[string]string, len(configs))
	for _, c := range configs {
		out[c.ConfigKey] = c.ConfigValue
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *AdminHandler) SetConfig(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Key   string `json:"key"`
		Value string `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}

	if err := h.adminService.SetConfig(r.Context(), req.Key, req.Value); err != nil {
		log.Error().Err(err).Str("key", req.Key).Msg("failed to set config")
		writeError(w, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{
		Type:    audit.EventConfigUpdate,
		Details: map[string]interface{}{"key": req.Key},
	})
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *AdminHandler) ListMappings(w http.ResponseWriter, r *http.Request) {
	p := ParsePagination(r)

	page, err := h.poolService.List(r.Context(), p.Page, p.Limit)
	if err != nil {
		log.Error().Err(err).Msg("failed to list mappings")
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, page)
}

func (h *AdminHandler) ImportMappings(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Mappings []model.ImportMappingParams `json:"mappings"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}

	imported, err := h.poolService.Import(r.Context(), req.Mappings)
	if err != nil {
		log.Error().Err(err).Msg("failed to import mappings")
		writeError(w, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{
		Type:    audit.EventMappingsImport,
		Details: map[string]interface{}{"count": imported},
	})
	writeJSON(w, http.StatusOK, map[string]int{"imported": imported})
}

func (h *AdminHandler) ResetCooldown(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IDs []int64 `json:"ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}

	affected, err := h.poolService.ResetCooldown(r.Context(), req.IDs)
	if err != nil {
		log.Error().Err(err).Msg("failed to reset cooldown")
		writeError(w, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{
		Type:    audit.EventCooldownReset,
		Details: map[string]interface{}{"affected": affected},
	})
	writeJSON(w, http.StatusOK, map[string]int64{"affected": affected})
}

func (h *AdminHandler) IssueLinks(w http.ResponseWriter, r *http.Request) {
	h.issueLinks(w, r, model.LinkVariantStandard)
}

func (h *AdminHandler) IssueShortLinks(w http.ResponseWriter, r *http.Request) {
	h.issueLinks(w, r, model.LinkVariantShort)
}

func (h *AdminHandler) issueLinks(w http.ResponseWriter, r *http.Request, variant model.LinkVariant) {
	var req struct {
		Quantity int `json:"quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}

	urls, err := h.linkService.IssueLinks(r.Context(), req.Quantity, variant)
	if err != nil {
		log.Warn().Err(err).Int("quantity", req.Quantity).Msg("link issuance failed")
		writeError(w, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{
		Type: audit.EventLinksIssued,
		Details: map[string]interface{}{
			"variant": string(variant),
			"count":   len(urls),
		},
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"requested": req.Quantity,
		"issued":    len(urls),
		"links":     urls,
	})
}

func (h *AdminHandler) DeleteAllData(w http.ResponseWriter, r *http.Request) {
	if err := h.adminService.DeleteAllData(r.Context()); err != nil {
		log.Error().Err(err).Msg("failed to delete all data")
		writeError(w, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{Type: audit.EventDataWipe})
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
