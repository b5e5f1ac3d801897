package httpapi

import (
	"net"
	"net/http"
)

type DBHandler struct {
	DB Checkpointer
}

// Checkpoint is only served to loopback clients.
func (h DBHandler) Checkpoint(w http.ResponseWriter, r *http.Request) {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	if host != "127.0.0.1" && host != "::1" && host != "localhost" {
		WriteError(w, r, http.StatusForbidden, "forbidden", "checkpoint is only allowed from localhost")
		return
	}
	if h.DB == nil {
		WriteError(w, r, http.StatusServiceUnavailable, "unavailable", "no database")
		return
	}

	if err := h.DB.Checkpoint(r.Context()); err != nil {
		WriteError(w, r, http.StatusInternalServerError, "storage_error", err.Error())
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
