package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// writeJSON сериализует ответ и выставляет заголовки
func writeJSON(w http.ResponseWriter, logger *slog.Logger, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Error("Failed to encode response", "error", err)
	}
}
