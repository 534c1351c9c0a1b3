package web

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"github.com/gorilla/csrf"

	"github.com/digkill/CapCalWeb/internal/auth"
	"github.com/digkill/CapCalWeb/internal/backend"
	"github.com/digkill/CapCalWeb/internal/contact"
	"github.com/digkill/CapCalWeb/internal/dashboard"
	"github.com/digkill/CapCalWeb/internal/models"
	"github.com/digkill/CapCalWeb/internal/promoter"
	"github.com/digkill/CapCalWeb/internal/validation"
)

const (
	msgInvalidRange  = "Invalid date range"
	msgArchiveFailed = "Failed to archive report"
	msgCSRFFailed    = "Your form expired. Please try again."
	contactSentParam = "contact"
	createdParam     = "created"
)

type feature struct {
	Title string
	Desc  string
}

var features = []feature{
	{"Track Everything", "Monitor calories, macros, BMI, weight, and activity at a glance. Adjust your goals as you progress, and stay aligned with your health journey every day."},
	{"Snap, Track, Eat", "Just snap a picture. CapCal AI instantly analyzes your food, giving you accurate calories and macros with no effort."},
	{"Know Every Meal", "Instantly see protein, fats, carbs, and calories for every meal. Visual, simple, and always at your fingertips."},
	{"Challenge Friends", "Compete in daily and weekly challenges: track steps, calories, and more. Stay accountable and motivated, together!"},
	{"Celebrate Victories", "Win challenges, earn badges, and get cheered on with celebratory popups. Every win counts, big or small!"},
	{"Your Profile, Your Journey", "Unlock achievements, build healthy habits, and show off your progress on your personal profile."},
}

type contactResult struct {
	Kind    string
	Message string
}

type homeContent struct {
	Features      []feature
	ContactResult *contactResult
	Contact       models.ContactMessage
	Errors        map[string]string
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	content := homeContent{Features: features}
	if r.URL.Query().Get(contactSentParam) == "sent" {
		content.ContactResult = &contactResult{Kind: "success", Message: contact.MsgSent}
	}
	s.render(w, r, http.StatusOK, "home", content)
}

// handleNotFound serves the landing page for any unknown path.
func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusNotFound, "home", homeContent{Features: features})
}

func (s *Server) handleContact(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	msg := models.ContactMessage{
		Name:    r.PostForm.Get("name"),
		Email:   r.PostForm.Get("email"),
		Message: r.PostForm.Get("message"),
	}

	err := s.deps.Contact.Submit(r.Context(), clientKey(r), msg)
	if err == nil {
		http.Redirect(w, r, "/?"+contactSentParam+"=sent#contact", http.StatusSeeOther)
		return
	}

	content := homeContent{
		Features:      features,
		Contact:       msg,
		ContactResult: &contactResult{Kind: "error", Message: contact.UserMessage(err)},
	}
	var verr *contact.ValidationError
	status := http.StatusBadGateway
	switch {
	case errors.As(err, &verr):
		status = http.StatusBadRequest
		content.Errors = verr.Fields
	case errors.Is(err, contact.ErrRateLimited):
		status = http.StatusTooManyRequests
	}
	s.render(w, r, status, "home", content)
}

type loginContent struct {
	Error string
	Email string
	Demo  bool
}

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "login", loginContent{Demo: s.deps.Auth.Mode() == auth.ModeDemo})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	creds := models.Credentials{
		Email:    r.PostForm.Get("email"),
		Password: r.PostForm.Get("password"),
	}

	identity, err := s.deps.Auth.Authenticate(r.Context(), creds)
	if err != nil {
		s.render(w, r, loginStatus(err), "login", loginContent{
			Error: auth.UserMessage(err),
			Email: creds.Email,
			Demo:  s.deps.Auth.Mode() == auth.ModeDemo,
		})
		return
	}

	if _, err := s.deps.Sessions.Login(w, r, identity.UserName, identity.UserEmail, identity.Token); err != nil {
		s.log.Error("login session", "err", err)
		s.render(w, r, http.StatusInternalServerError, "login", loginContent{Error: auth.MsgLoginFailed, Email: creds.Email})
		return
	}
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

func loginStatus(err error) int {
	switch {
	case errors.Is(err, auth.ErrMissingFields), errors.Is(err, auth.ErrInvalidEmail):
		return http.StatusBadRequest
	default:
		if _, ok := backend.RejectionMessage(err); ok {
			return http.StatusUnauthorized
		}
		return http.StatusBadGateway
	}
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Sessions.Logout(w, r); err != nil {
		s.log.Error("logout", "err", err)
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

type dashboardContent struct {
	Start          string
	End            string
	ArchiveEnabled bool
	Error          string
	View           *dashboard.View
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	status, content := s.loadDashboard(r, q.Get("start"), q.Get("end"))
	s.render(w, r, status, "dashboard", content)
}

func (s *Server) handleArchive(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	start, end := r.PostForm.Get("start"), r.PostForm.Get("end")
	rng, err := dashboard.ParseRange(start, end, s.now())
	if err != nil {
		s.render(w, r, http.StatusBadRequest, "dashboard", dashboardContent{
			Start: start, End: end, ArchiveEnabled: s.deps.Dashboard.ArchiveEnabled(), Error: msgInvalidRange,
		})
		return
	}

	result := flash{Kind: "success"}
	location, err := s.deps.Dashboard.Archive(r.Context(), rng)
	if err != nil {
		s.log.Error("archive usage report", "range", rng.Label(), "err", err)
		result = flash{Kind: "error", Message: msgArchiveFailed}
	} else {
		result.Message = "Report archived: " + location
	}

	status, content := s.loadDashboard(r, start, end)
	if err != nil && status == http.StatusOK {
		status = http.StatusBadGateway
	}
	s.renderFlash(w, r, status, "dashboard", content, result)
}

func (s *Server) loadDashboard(r *http.Request, start, end string) (int, dashboardContent) {
	content := dashboardContent{Start: start, End: end, ArchiveEnabled: s.deps.Dashboard.ArchiveEnabled()}
	rng, err := dashboard.ParseRange(start, end, s.now())
	if err != nil {
		content.Error = msgInvalidRange
		return http.StatusBadRequest, content
	}
	content.Start = rng.Start.Format(dateInputLayout)
	content.End = rng.End.Format(dateInputLayout)

	view, err := s.deps.Dashboard.Load(r.Context(), rng)
	if err != nil {
		content.Error = loadMessage(err)
		return http.StatusBadGateway, content
	}
	content.View = view
	return http.StatusOK, content
}

const dateInputLayout = "2006-01-02"

func loadMessage(err error) string {
	var loadErr *dashboard.LoadError
	if errors.As(err, &loadErr) {
		return loadErr.Message
	}
	return dashboard.MsgNetworkError
}

type promotersContent struct {
	Query     promoter.Query
	Statuses  []models.PromoterStatus
	Error     string
	Promoters []models.Promoter
	Pager     *promoter.Pager
	Form      promoter.Form
	Errors    map[string]string
	BaseURL   string
	Platforms []string
}

var promoterStatuses = []models.PromoterStatus{
	models.PromoterStatusActive,
	models.PromoterStatusInactive,
	models.PromoterStatusAll,
}

func (s *Server) handlePromoters(w http.ResponseWriter, r *http.Request) {
	q := s.deps.Promoters.Normalize(promoterQuery(r.URL.Query()))
	content := s.newPromotersContent(q)

	var result flash
	if code := r.URL.Query().Get(createdParam); code != "" {
		result = flash{Kind: "success", Message: "Promoter " + code + " created"}
	}
	status := s.listPromoters(r, &content)
	s.renderFlash(w, r, status, "promoters", content, result)
}

func (s *Server) handleCreatePromoter(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	q := s.deps.Promoters.Normalize(promoterQuery(r.PostForm))
	form := promoter.Form{
		Name:      r.PostForm.Get("name"),
		Email:     r.PostForm.Get("email"),
		Code:      r.PostForm.Get("code"),
		Platforms: r.PostForm["platforms"],
	}

	created, err := s.deps.Promoters.Create(r.Context(), form)
	if err == nil {
		values := url.Values{}
		values.Set("page", strconv.Itoa(q.Page))
		if q.Search != "" {
			values.Set("search", q.Search)
		}
		values.Set("status", string(q.Status))
		values.Set(createdParam, created.Code)
		http.Redirect(w, r, "/promoters?"+values.Encode(), http.StatusSeeOther)
		return
	}

	content := s.newPromotersContent(q)
	content.Form = form
	status := http.StatusBadGateway
	var verr *promoter.ValidationError
	if errors.As(err, &verr) {
		status = http.StatusBadRequest
		content.Errors = verr.Fields
	}
	// The list is still shown under the failed form.
	s.listPromoters(r, &content)
	s.renderFlash(w, r, status, "promoters", content, flash{Kind: "error", Message: promoter.UserMessage(err)})
}

func (s *Server) newPromotersContent(q promoter.Query) promotersContent {
	return promotersContent{
		Query:     q,
		Statuses:  promoterStatuses,
		BaseURL:   s.deps.Promoters.PromoLink(""),
		Platforms: validation.Platforms,
	}
}

func (s *Server) listPromoters(r *http.Request, content *promotersContent) int {
	page, err := s.deps.Promoters.List(r.Context(), content.Query)
	if err != nil {
		content.Error = promoter.UserMessage(err)
		return http.StatusBadGateway
	}
	content.Promoters = page.Promoters
	pager := promoter.NewPager("/promoters", page.Pagination, content.Query)
	content.Pager = &pager
	return http.StatusOK
}

func promoterQuery(values url.Values) promoter.Query {
	page, _ := strconv.Atoi(values.Get("page"))
	return promoter.Query{
		Page:   page,
		Search: values.Get("search"),
		Status: models.PromoterStatus(values.Get("status")),
	}
}

func (s *Server) handleCSRFFailure(w http.ResponseWriter, r *http.Request) {
	s.log.Warn("csrf check failed", "path", r.URL.Path, "reason", csrf.FailureReason(r))
	page := "home"
	var content any = homeContent{Features: features}
	if r.URL.Path == "/login" {
		page, content = "login", loginContent{Demo: s.deps.Auth.Mode() == auth.ModeDemo}
	}
	s.renderFlash(w, r, http.StatusForbidden, page, content, flash{Kind: "error", Message: msgCSRFFailed})
}
