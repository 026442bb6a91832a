package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/cleanops/cleanops/internal/identity"
	"github.com/cleanops/cleanops/internal/shared"
	"github.com/cleanops/cleanops/internal/view"
)

// Publisher broadcasts identity changes to mounted gates.
type Publisher interface {
	Publish(key string, s identity.Snapshot)
}

// Auditor records sign-in events.
type Auditor interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Handler wires HTTP endpoints for sign-in and sign-out.
type Handler struct {
	logger         *slog.Logger
	service        *Service
	templates      *view.Engine
	sessionManager *shared.SessionManager
	csrfManager    *shared.CSRFManager
	publisher      Publisher
	audit          Auditor
	validator      *validator.Validate
}

// NewHandler constructs a Handler instance. publisher may be nil.
func NewHandler(logger *slog.Logger, service *Service, templates *view.Engine, sessions *shared.SessionManager, csrf *shared.CSRFManager, publisher Publisher) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:         logger,
		service:        service,
		templates:      templates,
		sessionManager: sessions,
		csrfManager:    csrf,
		publisher:      publisher,
		validator:      validator.New(),
	}
}

// WithAuditor records sign-ins and sign-outs through a.
func (h *Handler) WithAuditor(a Auditor) *Handler {
	h.audit = a
	return h
}

// MountRoutes registers auth routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/login", h.showLogin)
	r.Post("/login", h.handleLogin)
	r.Post("/logout", h.handleLogout)
}

type loginForm struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required,min=8"`
}

type loginPageData struct {
	Form   loginForm
	Errors map[string]string
}

func (h *Handler) showLogin(w http.ResponseWriter, r *http.Request) {
	if identity.FromContext(r.Context()).Principal() != nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	h.renderLogin(w, r, loginPageData{}, http.StatusOK)
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	form := loginForm{
		Email:    r.PostFormValue("email"),
		Password: r.PostFormValue("password"),
	}
	errs := make(map[string]string)
	if err := h.validator.Struct(form); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok {
			for _, fieldErr := range verrs {
				errs[fieldErr.Field()] = fieldErr.Error()
			}
		}
	}

	if len(errs) == 0 {
		account, err := h.service.Authenticate(r.Context(), form.Email, form.Password)
		if err == nil {
			h.signIn(w, r, account)
			return
		}
		errs["general"] = "Invalid email or password"
	}
	h.renderLogin(w, r, loginPageData{Form: loginForm{Email: form.Email}, Errors: errs}, http.StatusBadRequest)
}

func (h *Handler) signIn(w http.ResponseWriter, r *http.Request, account *Account) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		h.logger.Error("session missing during login")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	key := identity.ClientKey(sess)
	h.sessionManager.Renew(sess)
	sess.SetUser(strconv.FormatInt(account.ID, 10))
	sess.AddFlash(shared.FlashMessage{Kind: "success", Message: "Welcome back, " + account.Name})

	expiresAt := time.Now().Add(h.sessionManager.TTL())
	if err := h.service.RegisterSession(r.Context(), sess.ID, account.ID, expiresAt, r.RemoteAddr, r.UserAgent()); err != nil {
		h.logger.Warn("register session", slog.Any("error", err))
	}
	if h.publisher != nil {
		h.publisher.Publish(key, identity.Authenticated(account.Identity()))
	}
	h.record(r, shared.AuditSignIn, account.ID)
	h.logger.Info("user signed in", slog.Int64("user_id", account.ID), slog.String("role", string(account.Role)))
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		if u := identity.FromContext(r.Context()).Principal(); u != nil {
			h.record(r, shared.AuditSignOut, u.ID)
		}
		key := identity.ClientKey(sess)
		if err := h.service.RemoveSession(r.Context(), sess.ID); err != nil {
			h.logger.Warn("remove session", slog.Any("error", err))
		}
		h.sessionManager.Destroy(sess)
		if h.publisher != nil {
			h.publisher.Publish(key, identity.Anonymous())
		}
	}
	http.Redirect(w, r, "/welcome", http.StatusSeeOther)
}

func (h *Handler) record(r *http.Request, action string, userID int64) {
	if h.audit == nil {
		return
	}
	id := strconv.FormatInt(userID, 10)
	err := h.audit.Record(r.Context(), shared.AuditLog{
		ActorID:  userID,
		Action:   action,
		Entity:   "user",
		EntityID: id,
		Meta:     map[string]any{"ip": r.RemoteAddr},
	})
	if err != nil {
		h.logger.Warn("audit", slog.String("action", action), slog.Any("error", err))
	}
}

func (h *Handler) renderLogin(w http.ResponseWriter, r *http.Request, data loginPageData, status int) {
	csrfToken, _ := h.csrfManager.EnsureToken(shared.SessionFromContext(r.Context()))
	viewData := view.TemplateData{
		Title:       "Sign in",
		CSRFToken:   csrfToken,
		Flash:       shared.PopFlash(r.Context()),
		CurrentPath: r.URL.Path,
		Data:        data,
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := h.templates.Render(w, "pages/login.html", viewData); err != nil {
		h.logger.Error("render login", slog.Any("error", err))
	}
}
