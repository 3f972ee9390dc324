package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	apperrors "github.com/comtower/sms-relay/internal/errors"
	"github.com/comtower/sms-relay/internal/service"
)

// LinkHandler serves the public link resolution endpoints. No auth: the
// token in the path is the credential.
type LinkHandler struct {
	linkService *service.LinkService
}

func NewLinkHandler(linkService *service.LinkService) *LinkHandler {
	return &LinkHandler{linkService: linkService}
}

func (h *LinkHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/short/{token}", h.Resolve)
	r.Get("/{token}", h.Resolve)

	return r
}

func (h *LinkHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	if token == "" {
		writeError(w, apperrors.LinkInvalid())
		return
	}

	result, err := h.linkService.Resolve(r.Context(), token)
	if err != nil {
		if !apperrors.IsCode(err, apperrors.ErrCodeLinkInvalid) {
			log.Error().Err(err).Msg("link resolution failed")
		}
		writeError(w, err)
		return
	}

	if result.Pending {
		writeJSON(w, http.StatusAccepted, map[string]any{
			"status":       "pending",
			"message":      "Waiting for new messages...",
			"phoneNumber":  result.PhoneNumber,
			"announcement": result.Announcement,
			"messages":     formatMessages(result.Messages),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":       "completed",
		"phoneNumber":  result.PhoneNumber,
		"announcement": result.Announcement,
		"messages":     formatMessages(result.Messages),
	})
}
