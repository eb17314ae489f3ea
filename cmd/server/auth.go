package main

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/Simplici0/itabus/internal/store"
)

const sessionCookieName = "itabus_session"

type ctxKey int

const userKey ctxKey = iota

type authService struct {
	users         *store.UserStore
	sessionSecret []byte
}

func newAuthService(users *store.UserStore, sessionSecret string) *authService {
	return &authService{users: users, sessionSecret: []byte(sessionSecret)}
}

func (a *authService) sign(payload string) []byte {
	mac := hmac.New(sha256.New, a.sessionSecret)
	_, _ = mac.Write([]byte(payload))
	return mac.Sum(nil)
}

func (a *authService) createSessionValue(userID int64) string {
	payload := base64.RawURLEncoding.EncodeToString([]byte(strconv.FormatInt(userID, 10)))
	return payload + "." + hex.EncodeToString(a.sign(payload))
}

func (a *authService) verifySessionValue(value string) (int64, bool) {
	payload, signature, ok := strings.Cut(value, ".")
	if !ok {
		return 0, false
	}

	provided, err := hex.DecodeString(signature)
	if err != nil {
		return 0, false
	}
	if !hmac.Equal(provided, a.sign(payload)) {
		return 0, false
	}

	decoded, err := base64.RawURLEncoding.DecodeString(payload)
	if err != nil {
		return 0, false
	}
	id, err := strconv.ParseInt(string(decoded), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}

	return id, true
}

func (a *authService) setSessionCookie(w http.ResponseWriter, userID int64) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    a.createSessionValue(userID),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func (a *authService) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// currentUser resolves the session cookie to a stored user. Sessions of
// deleted users are rejected.
func (a *authService) currentUser(r *http.Request) (store.User, error) {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil {
		return store.User{}, errUnauthenticated
	}

	id, ok := a.verifySessionValue(cookie.Value)
	if !ok {
		return store.User{}, errUnauthenticated
	}

	u, err := a.users.ByID(id)
	if errors.Is(err, store.ErrNotFound) {
		return store.User{}, errUnauthenticated
	}
	if err != nil {
		return store.User{}, fmt.Errorf("load session user: %w", err)
	}
	return u, nil
}

func (s *server) requireLogin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, err := s.auth.currentUser(r)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey, u)))
	})
}

// requireAdmin must run after requireLogin.
func (s *server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !userFrom(r).IsAdmin() {
			s.writeError(w, r, fmt.Errorf("%w: admin role required", errForbidden))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func userFrom(r *http.Request) store.User {
	u, _ := r.Context().Value(userKey).(store.User)
	return u
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userResponse struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	CreatedAt string `json:"created_at"`
}

func toUserResponse(u store.User) userResponse {
	return userResponse{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		Role:      string(u.Role),
		CreatedAt: u.CreatedAt.Format(timeLayout),
	}
}

func (s *server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	u, err := s.users.Authenticate(req.Email, req.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.auth.setSessionCookie(w, u.ID)
	writeJSON(w, http.StatusOK, toUserResponse(u))
}

func (s *server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.auth.clearSessionCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, toUserResponse(userFrom(r)))
}
