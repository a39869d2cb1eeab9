package api

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/go-faster/errors"

	"github.com/example/ec-storefront/internal/api/middleware"
	"github.com/example/ec-storefront/internal/apiclient"
	"github.com/example/ec-storefront/internal/apperrors"
	"github.com/example/ec-storefront/internal/auth"
	"github.com/example/ec-storefront/internal/domain/cart"
)

// Authenticator is the backend auth API
type Authenticator interface {
	Register(ctx context.Context, r apiclient.Registration) (*apiclient.AuthResult, error)
	Login(ctx context.Context, creds apiclient.Credentials) (*apiclient.AuthResult, error)
	Profile(ctx context.Context) (*auth.User, error)
	Logout(ctx context.Context) error
}

// SessionHandlers handles sign-in and sign-out of the local agent
type SessionHandlers struct {
	session *auth.Session
	backend Authenticator
	carts   *cart.Service
}

func NewSessionHandlers(session *auth.Session, backend Authenticator, carts *cart.Service) *SessionHandlers {
	return &SessionHandlers{
		session: session,
		backend: backend,
		carts:   carts,
	}
}

// SessionResponse describes the current session
type SessionResponse struct {
	Authenticated bool       `json:"authenticated"`
	User          *auth.User `json:"user,omitempty"`
	ExpiresAt     *time.Time `json:"expiresAt,omitempty"`
	Message       string     `json:"message,omitempty"`

	// Set after sign-in and sign-out. Skipped lists cart lines the server
	// refused and offline changes that were discarded.
	Cart    *cart.Result `json:"cart,omitempty"`
	Skipped []string     `json:"skipped,omitempty"`
}

func (h *SessionHandlers) current() SessionResponse {
	resp := SessionResponse{
		Authenticated: h.session.Authenticated(),
		User:          h.session.User(),
	}
	if exp := h.session.ExpiresAt(); !exp.IsZero() && resp.Authenticated {
		resp.ExpiresAt = &exp
	}
	return resp
}

func (h *SessionHandlers) GetSession(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.current())
}

// Login signs in with email and password. A request carrying a bearer token
// and no body adopts that token instead.
func (h *SessionHandlers) Login(w http.ResponseWriter, r *http.Request) {
	var creds apiclient.Credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil && !errors.Is(err, io.EOF) {
		respondJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if creds.Email == "" && creds.Password == "" {
		token := middleware.ExtractToken(r)
		if token == "" {
			respondJSONError(w, "Email and password are required", http.StatusBadRequest)
			return
		}
		h.adoptToken(w, r, token)
		return
	}

	result, err := h.backend.Login(r.Context(), creds)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	h.signIn(w, r, result)
}

func (h *SessionHandlers) Register(w http.ResponseWriter, r *http.Request) {
	var req apiclient.Registration
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Email == "" || req.Password == "" || req.Name == "" {
		respondJSONError(w, "Name, email and password are required", http.StatusBadRequest)
		return
	}

	result, err := h.backend.Register(r.Context(), req)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	h.signIn(w, r, result)
}

func (h *SessionHandlers) adoptToken(w http.ResponseWriter, r *http.Request, token string) {
	if err := h.session.SignIn(token, nil); err != nil {
		respondJSONError(w, err.Error(), http.StatusUnauthorized)
		return
	}
	user, err := h.backend.Profile(r.Context())
	if err != nil {
		if apperrors.KindOf(err) != apperrors.KindNetwork {
			h.session.Clear()
			respondDomainError(w, err)
			return
		}
		log.Printf("[Auth] Profile unavailable, continuing with token only: %v", err)
	} else {
		h.session.SetUser(user)
	}
	h.merge(w, r, "")
}

func (h *SessionHandlers) signIn(w http.ResponseWriter, r *http.Request, result *apiclient.AuthResult) {
	user := result.User
	if err := h.session.SignIn(result.Token, &user); err != nil {
		respondJSONError(w, err.Error(), http.StatusUnauthorized)
		return
	}
	log.Printf("[Auth] Signed in as %s", h.session.UserID())
	h.merge(w, r, result.Message)
}

type joinedError interface {
	error
	Unwrap() []error
}

// merge pushes the anonymous cart to the account and responds with the
// session and the merged cart
func (h *SessionHandlers) merge(w http.ResponseWriter, r *http.Request, message string) {
	resp := h.current()
	resp.Message = message

	res, err := h.carts.MergeLocal(r.Context())
	if err != nil {
		// Skipped lines come back joined; anything else failed the merge
		if _, ok := errors.Into[joinedError](err); !ok {
			respondDomainError(w, err)
			return
		}
	}
	resp.Skipped = res.Dropped
	resp.Cart = &res
	respondJSON(w, http.StatusOK, resp)
}

// Logout signs out locally even if the backend cannot be reached, then
// switches the cart back to the device mirror
func (h *SessionHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	if h.session.Authenticated() {
		if err := h.backend.Logout(r.Context()); err != nil {
			log.Printf("[Auth] Backend logout failed: %v", err)
		}
	}
	h.session.Clear()

	resp := h.current()
	if res, err := h.carts.Fetch(r.Context()); err == nil {
		resp.Cart = &res
		resp.Skipped = res.Dropped
	}
	respondJSON(w, http.StatusOK, resp)
}
