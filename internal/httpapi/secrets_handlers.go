package httpapi

import (
	"net/http"
	"strings"
	"sync/atomic"

	"webmonitor-engine/internal/config"
)

type SecretsHandler struct {
	CfgVal *atomic.Value // stores config.Config
	Set    func(account, password string) error
}

type setSMTPPasswordReq struct {
	Password string `json:"password"`
}

func (h SecretsHandler) SetSMTPPassword(w http.ResponseWriter, r *http.Request) {
	var req setSMTPPasswordReq
	if !decodeJSON(w, r, &req) {
		return
	}

	cfg := h.CfgVal.Load().(config.Config)
	if strings.TrimSpace(cfg.Notify.Email.SMTPHost) == "" {
		WriteError(w, r, http.StatusConflict, "smtp_not_configured", "set notify.email.smtp_host first")
		return
	}
	if err := h.Set(cfg.SMTPKeyringAccount(), req.Password); err != nil {
		WriteError(w, r, http.StatusBadRequest, "keyring_error", "failed to store password: "+err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
