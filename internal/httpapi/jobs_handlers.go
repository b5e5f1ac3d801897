package httpapi

import (
	"errors"
	"net/http"

	"webmonitor-engine/internal/domain"
	"webmonitor-engine/internal/monitor"
	"webmonitor-engine/internal/store"
)

type JobsHandler struct {
	Engine Engine
}

func (h JobsHandler) List(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.Engine.Jobs(r.Context())
	if err != nil {
		writeStoreError(w, r, "jobs", err)
		return
	}
	if jobs == nil {
		jobs = []domain.Job{}
	}
	WriteJSON(w, http.StatusOK, jobs)
}

func (h JobsHandler) Get(w http.ResponseWriter, r *http.Request) {
	j, err := h.Engine.Job(r.Context(), pathID(r))
	if err != nil {
		writeStoreError(w, r, "job", err)
		return
	}
	if j == nil {
		WriteError(w, r, http.StatusNotFound, "not_found", "job not found")
		return
	}
	WriteJSON(w, http.StatusOK, j)
}

func (h JobsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var nj domain.NewJob
	if !decodeJSON(w, r, &nj) {
		return
	}
	if err := nj.Validate(); err != nil {
		WriteError(w, r, http.StatusBadRequest, "invalid_job", err.Error())
		return
	}
	j, err := h.Engine.AddJob(r.Context(), nj)
	if err != nil {
		writeStoreError(w, r, "job", err)
		return
	}
	WriteJSON(w, http.StatusCreated, j)
}

// Update replaces the job definition. The body is a NewJob; the id comes
// from the path.
func (h JobsHandler) Update(w http.ResponseWriter, r *http.Request) {
	var nj domain.NewJob
	if !decodeJSON(w, r, &nj) {
		return
	}
	j := nj.WithID(pathID(r))
	if err := j.Validate(); err != nil {
		WriteError(w, r, http.StatusBadRequest, "invalid_job", err.Error())
		return
	}
	updated, err := h.Engine.UpdateJob(r.Context(), j)
	if err != nil {
		writeStoreError(w, r, "job", err)
		return
	}
	WriteJSON(w, http.StatusOK, updated)
}

func (h JobsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := pathID(r)
	if err := h.Engine.DeleteJob(r.Context(), id); err != nil {
		writeStoreError(w, r, "job", err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"ok": true, "id": id})
}

// Check runs one check now and reports whether it produced a snapshot.
func (h JobsHandler) Check(w http.ResponseWriter, r *http.Request) {
	res, err := h.Engine.CheckNow(r.Context(), pathID(r))
	if err == nil {
		WriteJSON(w, http.StatusOK, res)
		return
	}

	var ce *monitor.CheckError
	switch {
	case errors.Is(err, store.ErrNotFound):
		WriteError(w, r, http.StatusNotFound, "not_found", "job not found")
	case errors.As(err, &ce) && ce.Stage == monitor.StageFetch:
		WriteError(w, r, http.StatusBadGateway, "fetch_failed", err.Error())
	case errors.As(err, &ce) && ce.Stage == monitor.StageFilter:
		WriteError(w, r, http.StatusUnprocessableEntity, "filter_failed", err.Error())
	default:
		WriteError(w, r, http.StatusInternalServerError, "check_failed", err.Error())
	}
}
