package handler

import (
	"net/http"
	"time"

	"github.com/comtower/sms-relay/internal/httputil"
	"github.com/comtower/sms-relay/internal/model"
)

func writeJSON(w http.ResponseWriter, status int, data any) {
	httputil.WriteJSON(w, status, data)
}

func writeError(w http.ResponseWriter, err error) {
	httputil.WriteError(w, err)
}

func formatMessage(m model.SmsMessage) map[string]any {
	return map[string]any{
		"content":           m.Content,
		"originalTimestamp": m.OriginalTimestamp.Format(time.RFC3339),
	}
}

func formatMessages(msgs []model.SmsMessage) []map[string]any {
	out := make([]map[string]any, len(msgs))
	for i, m := range msgs {
		out[i] = formatMessage(m)
	}
	return out
}
