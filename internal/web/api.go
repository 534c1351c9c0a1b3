package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/digkill/CapCalWeb/internal/auth"
	"github.com/digkill/CapCalWeb/internal/contact"
	"github.com/digkill/CapCalWeb/internal/dashboard"
	"github.com/digkill/CapCalWeb/internal/models"
	"github.com/digkill/CapCalWeb/internal/promoter"
	"github.com/digkill/CapCalWeb/internal/session"
)

const maxBodyBytes = 1 << 20

type sessionResponse struct {
	Authenticated bool   `json:"authenticated"`
	UserName      string `json:"userName,omitempty"`
	UserEmail     string `json:"userEmail,omitempty"`
}

func newSessionResponse(s *models.Session) sessionResponse {
	return sessionResponse{Authenticated: s.IsAuthenticated, UserName: s.UserName, UserEmail: s.UserEmail}
}

func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid json")
		return false
	}
	return true
}

func (s *Server) apiSession(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, newSessionResponse(session.FromContext(r.Context())))
}

func (s *Server) apiLogin(w http.ResponseWriter, r *http.Request) {
	var creds models.Credentials
	if !s.decodeJSON(w, r, &creds) {
		return
	}
	identity, err := s.deps.Auth.Authenticate(r.Context(), creds)
	if err != nil {
		s.writeError(w, loginStatus(err), auth.UserMessage(err))
		return
	}
	current, err := s.deps.Sessions.Login(w, r, identity.UserName, identity.UserEmail, identity.Token)
	if err != nil {
		s.log.Error("login session", "err", err)
		s.writeError(w, http.StatusInternalServerError, auth.MsgLoginFailed)
		return
	}
	s.writeJSON(w, http.StatusOK, newSessionResponse(current))
}

func (s *Server) apiLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Sessions.Logout(w, r); err != nil {
		s.log.Error("logout", "err", err)
	}
	s.writeJSON(w, http.StatusOK, sessionResponse{})
}

func (s *Server) apiContact(w http.ResponseWriter, r *http.Request) {
	var msg models.ContactMessage
	if !s.decodeJSON(w, r, &msg) {
		return
	}
	err := s.deps.Contact.Submit(r.Context(), clientKey(r), msg)
	if err == nil {
		s.writeJSON(w, http.StatusOK, map[string]string{"message": contact.MsgSent})
		return
	}

	var verr *contact.ValidationError
	switch {
	case errors.As(err, &verr):
		s.writeFieldErrors(w, contact.UserMessage(err), verr.Fields)
	case errors.Is(err, contact.ErrRateLimited):
		s.writeError(w, http.StatusTooManyRequests, contact.UserMessage(err))
	default:
		s.writeError(w, http.StatusBadGateway, contact.UserMessage(err))
	}
}

func (s *Server) apiUsage(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	rng, err := dashboard.ParseRange(q.Get("start"), q.Get("end"), s.now())
	if err != nil {
		s.writeError(w, http.StatusBadRequest, msgInvalidRange)
		return
	}
	view, err := s.deps.Dashboard.Load(r.Context(), rng)
	if err != nil {
		s.writeError(w, http.StatusBadGateway, loadMessage(err))
		return
	}
	s.writeJSON(w, http.StatusOK, view)
}

type promoterListResponse struct {
	Promoters  []models.Promoter `json:"promoters"`
	Pagination models.Pagination `json:"pagination"`
}

func (s *Server) apiListPromoters(w http.ResponseWriter, r *http.Request) {
	q := s.deps.Promoters.Normalize(promoterQuery(r.URL.Query()))
	page, err := s.deps.Promoters.List(r.Context(), q)
	if err != nil {
		s.writeError(w, http.StatusBadGateway, promoter.UserMessage(err))
		return
	}
	promoters := page.Promoters
	if promoters == nil {
		promoters = []models.Promoter{}
	}
	s.writeJSON(w, http.StatusOK, promoterListResponse{Promoters: promoters, Pagination: page.Pagination})
}

func (s *Server) apiCreatePromoter(w http.ResponseWriter, r *http.Request) {
	var form promoter.Form
	if !s.decodeJSON(w, r, &form) {
		return
	}
	created, err := s.deps.Promoters.Create(r.Context(), form)
	if err != nil {
		var verr *promoter.ValidationError
		if errors.As(err, &verr) {
			s.writeFieldErrors(w, promoter.UserMessage(err), verr.Fields)
			return
		}
		s.writeError(w, http.StatusBadGateway, promoter.UserMessage(err))
		return
	}
	s.writeJSON(w, http.StatusCreated, created)
}

func (s *Server) apiPromoterCode(w http.ResponseWriter, _ *http.Request) {
	code, err := s.deps.Promoters.GenerateCode()
	if err != nil {
		s.log.Error("generate promoter code", "err", err)
		s.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"code": code, "promoLink": s.deps.Promoters.PromoLink(code)})
}
