package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/rs/xid"

	"github.com/sakif/portfolio-tracker/internal/apperror"
	"github.com/sakif/portfolio-tracker/internal/auth"
	"github.com/sakif/portfolio-tracker/internal/model"
	"github.com/sakif/portfolio-tracker/internal/service"
)

const stateCookie = "oauth_state"

// IdentityProvider is the OAuth side of login. *auth.GoogleProvider
// implements it.
type IdentityProvider interface {
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (*auth.Identity, error)
}

// Authenticator turns a verified identity into a session.
// *service.AuthService implements it.
type Authenticator interface {
	LoginOrRegister(ctx context.Context, id *auth.Identity) (*service.AuthResult, error)
	GetUserByID(ctx context.Context, id string) (*model.User, error)
}

// AuthHandler runs the Google login flow and the session endpoints.
//
//   - HandleLogin     → redirect the browser to Google's consent screen
//   - HandleAuthorize → receive the code, create the user, set the session cookie
//   - HandleLogout    → clear the session cookie
//   - HandleGetUser   → return the logged-in user's profile
type AuthHandler struct {
	provider     IdentityProvider
	auth         Authenticator
	tokens       *auth.TokenService
	cookieSecure bool
	logger       *slog.Logger
}

// NewAuthHandler creates an AuthHandler. cookieSecure sets the Secure flag on
// the cookies it writes; turn it on behind HTTPS.
func NewAuthHandler(
	provider IdentityProvider,
	authenticator Authenticator,
	tokens *auth.TokenService,
	cookieSecure bool,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		provider:     provider,
		auth:         authenticator,
		tokens:       tokens,
		cookieSecure: cookieSecure,
		logger:       logger,
	}
}

// HandleLogin redirects the user to Google.
//
// HTTP: GET /login
//
// CSRF PROTECTION VIA STATE:
// A random state goes into a short-lived HttpOnly cookie and into the
// consent URL. HandleAuthorize only accepts a callback whose state matches
// the cookie, which proves this browser started the flow.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	state := xid.New().String()

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   600,
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.provider.AuthURL(state), http.StatusTemporaryRedirect)
}

// HandleAuthorize completes the OAuth login flow.
//
// HTTP: GET /authorize?code=xxx&state=yyy
//
//  1. Check the state against the cookie (400 on mismatch)
//  2. Exchange the code for a Google identity (400 if Google refuses)
//  3. Create the user on first login
//  4. Set the session cookie and redirect to /portfolio
func (h *AuthHandler) HandleAuthorize(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	cookie, err := r.Cookie(stateCookie)
	if err != nil || cookie.Value == "" || query.Get("state") != cookie.Value {
		h.logger.Warn("authorize: state mismatch",
			slog.Bool("cookiePresent", err == nil),
			slog.String("got", query.Get("state")),
		)
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_state",
			Message: "Invalid OAuth state",
		})
		return
	}

	// The state is single-use.
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	if errParam := query.Get("error"); errParam != "" {
		h.logger.Info("authorize: user denied consent", slog.String("error", errParam))
		http.Redirect(w, r, "/?auth=denied", http.StatusSeeOther)
		return
	}

	code := query.Get("code")
	if code == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "authorization_failed",
			Message: "Authorization failed",
		})
		return
	}

	identity, err := h.provider.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Error("authorize: code exchange failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "authorization_failed",
			Message: "Authorization failed",
		})
		return
	}

	result, err := h.auth.LoginOrRegister(r.Context(), identity)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookie,
		Value:    result.Token,
		Path:     "/",
		MaxAge:   int(h.tokens.TTL().Seconds()),
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, "/portfolio", http.StatusSeeOther)
}

// HandleLogout clears the session cookie and sends the browser home.
//
// HTTP: GET /logout
//
// Sessions are stateless JWTs, so logging out means deleting the cookie. The
// token itself stays valid until it expires.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

type userResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// HandleGetUser returns the logged-in user's profile.
//
// HTTP: GET /api/get-user
func (h *AuthHandler) HandleGetUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, h.logger, r, apperror.Unauthorized("valid authentication required"))
		return
	}

	user, err := h.auth.GetUserByID(r.Context(), userID)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	writeJSON(w, http.StatusOK, userResponse{ID: user.ID, Name: user.Name, Email: user.Email})
}
