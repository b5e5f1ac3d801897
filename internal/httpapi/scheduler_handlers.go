package httpapi

import "net/http"

type SchedulerStatus struct {
	Active []string `json:"active"`
	Count  int      `json:"count"`
}

type SchedulerHandler struct {
	Engine Engine
}

func (h SchedulerHandler) Status(w http.ResponseWriter, r *http.Request) {
	ids := h.Engine.Active()
	if ids == nil {
		ids = []string{}
	}
	WriteJSON(w, http.StatusOK, SchedulerStatus{Active: ids, Count: len(ids)})
}
