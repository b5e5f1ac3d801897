package httpapi

import (
	"net/http"

	"webmonitor-engine/internal/domain"
)

type SnapshotsHandler struct {
	Engine Engine
}

func (h SnapshotsHandler) ListForJob(w http.ResponseWriter, r *http.Request) {
	snaps, err := h.Engine.Snapshots(r.Context(), pathID(r))
	if err != nil {
		writeStoreError(w, r, "snapshots", err)
		return
	}
	if snaps == nil {
		snaps = []domain.Snapshot{}
	}
	WriteJSON(w, http.StatusOK, snaps)
}

func (h SnapshotsHandler) Latest(w http.ResponseWriter, r *http.Request) {
	s, err := h.Engine.LatestSnapshot(r.Context(), pathID(r))
	if err != nil {
		writeStoreError(w, r, "snapshot", err)
		return
	}
	if s == nil {
		WriteError(w, r, http.StatusNotFound, "not_found", "job has no snapshots")
		return
	}
	WriteJSON(w, http.StatusOK, s)
}

func (h SnapshotsHandler) Get(w http.ResponseWriter, r *http.Request) {
	s, err := h.Engine.Snapshot(r.Context(), pathID(r))
	if err != nil {
		writeStoreError(w, r, "snapshot", err)
		return
	}
	if s == nil {
		WriteError(w, r, http.StatusNotFound, "not_found", "snapshot not found")
		return
	}
	WriteJSON(w, http.StatusOK, s)
}

func (h SnapshotsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := pathID(r)
	if err := h.Engine.DeleteSnapshot(r.Context(), id); err != nil {
		writeStoreError(w, r, "snapshot", err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"ok": true, "id": id})
}
