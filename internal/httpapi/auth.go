package httpapi

import (
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/UkralStul/echonymous/internal/service"
)

func sessionData(s *service.Session) map[string]any {
	return map[string]any{
		"id":       s.User.ID,
		"username": s.User.Username,
	}
}

func (h *Handler) signup(w http.ResponseWriter, r *http.Request) {
	var in service.SignupInput
	if err := decode(r, &in); err != nil {
		writeError(w, r, err)
		return
	}

	log.Info().Str("username", in.Username).Msg("signing up user")
	session, err := h.svc.Signup(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, envelope{
		Status:       http.StatusOK,
		Success:      true,
		Details:      "Sign up successful.",
		Token:        session.Token,
		ResponseData: sessionData(session),
	})
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var in service.LoginInput
	if err := decode(r, &in); err != nil {
		writeError(w, r, err)
		return
	}

	session, err := h.svc.Login(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, envelope{
		Status:       http.StatusOK,
		Success:      true,
		Details:      "Login successful.",
		Token:        session.Token,
		ResponseData: sessionData(session),
	})
}
