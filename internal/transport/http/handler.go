package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"linkauth/internal/domain"
	"linkauth/internal/dto"
	obsmw "linkauth/internal/observability/middleware"
	"linkauth/internal/service"
)

const (
	maxBodyBytes   = 4 << 10
	invalidLinkMsg = "invalid or expired link"
)

type handler struct {
	auth service.AuthService
	opts Options
}

func (h *handler) requestMagicLink(w http.ResponseWriter, r *http.Request) {
	var req dto.MagicLinkRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad request")
		return
	}
	origin := domain.Origin{IP: h.clientIP(r), Intent: parseIntent(req.Context)}

	err := h.auth.RequestMagicLink(r.Context(), req.Email, origin)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrInvalidEmail):
		writeError(w, http.StatusBadRequest, "invalid email")
		return
	case errors.Is(err, domain.ErrStorageUnavailable):
		h.logFailure(r.Context(), "magic link request failed", err)
		writeError(w, http.StatusServiceUnavailable, "service unavailable")
		return
	default:
		h.logFailure(r.Context(), "magic link request failed", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusAccepted, dto.StatusResponse{Status: "sent"})
}

// verify is the landing page of mailed links and scanned QR codes.
func (h *handler) verify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, err := h.auth.VerifyToken(ctx, r.URL.Query().Get("token"))
	if err != nil {
		var expired *domain.ExpiredTokenError
		switch {
		case errors.As(err, &expired) && expired.NeedsRenewal():
			if err := h.auth.RemindQRRenewal(ctx, expired); err != nil {
				h.logFailure(ctx, "qr renewal reminder failed", err)
			}
			http.Redirect(w, r, h.expiredURL(), http.StatusSeeOther)
		case errors.Is(err, domain.ErrStorageUnavailable):
			writeError(w, http.StatusServiceUnavailable, "service unavailable")
		default:
			// The precise reason is in the verifier's logs and metrics only.
			writeError(w, http.StatusUnauthorized, invalidLinkMsg)
		}
		return
	}

	cred, err := h.auth.MintSession(ctx, identity)
	if err != nil {
		h.logFailure(ctx, "mint session failed", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	http.SetCookie(w, h.sessionCookie(cred, int(h.opts.SessionTTL.Seconds())))
	http.Redirect(w, r, h.opts.AfterLoginURL, http.StatusSeeOther)
}

func (h *handler) session(w http.ResponseWriter, r *http.Request) {
	claims := sessionFrom(r.Context())
	writeJSON(w, http.StatusOK, dto.SessionResponse{
		UserID:            claims.UserID.String(),
		Email:             claims.Email,
		CommunityVerified: claims.CommunityVerified,
		IsAdmin:           claims.IsAdmin,
		IssuedAt:          claims.IssuedAt,
		ExpiresAt:         claims.IssuedAt.Add(h.opts.SessionTTL),
	})
}

func (h *handler) qrKey(w http.ResponseWriter, r *http.Request) {
	claims := sessionFrom(r.Context())
	key, err := h.auth.IssueOrReuseQRKey(r.Context(), claims.UserID)
	if err != nil {
		h.writeServiceError(w, r, "qr key failed", err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(key.PNG)
}

func (h *handler) emailQRKey(w http.ResponseWriter, r *http.Request) {
	claims := sessionFrom(r.Context())
	if err := h.auth.EmailQRKey(r.Context(), claims.UserID); err != nil {
		h.writeServiceError(w, r, "email qr key failed", err)
		return
	}
	writeJSON(w, http.StatusAccepted, dto.StatusResponse{Status: "sent"})
}

func (h *handler) logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, h.sessionCookie("", -1))
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cred := bearer(r)
		if cred == "" {
			if c, err := r.Cookie(h.opts.CookieName); err == nil {
				cred = c.Value
			}
		}
		if cred == "" {
			writeError(w, http.StatusUnauthorized, "missing session")
			return
		}
		claims, err := h.auth.ReadSession(cred)
		if err != nil {
			slog.Warn("session rejected", "error", err,
				"request_id", obsmw.RequestIDFromContext(r.Context()),
				"trace_id", obsmw.TraceIDFromContext(r.Context()))
			writeError(w, http.StatusUnauthorized, "invalid session")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionKey{}, claims)))
	})
}

func (h *handler) sessionCookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     h.opts.CookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.opts.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
}

func (h *handler) expiredURL() string {
	u, err := url.Parse(h.opts.LoginURL)
	if err != nil {
		return h.opts.LoginURL
	}
	q := u.Query()
	q.Set("expired", "1")
	u.RawQuery = q.Encode()
	return u.String()
}

func (h *handler) writeServiceError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	switch {
	case errors.Is(err, domain.ErrUserNotFound):
		writeError(w, http.StatusUnauthorized, "invalid session")
	case errors.Is(err, domain.ErrStorageUnavailable):
		h.logFailure(r.Context(), msg, err)
		writeError(w, http.StatusServiceUnavailable, "service unavailable")
	default:
		h.logFailure(r.Context(), msg, err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (h *handler) logFailure(ctx context.Context, msg string, err error) {
	slog.ErrorContext(ctx, msg, "error", err,
		"request_id", obsmw.RequestIDFromContext(ctx),
		"trace_id", obsmw.TraceIDFromContext(ctx))
}

type sessionKey struct{}

func sessionFrom(ctx context.Context) *domain.SessionClaims {
	claims, _ := ctx.Value(sessionKey{}).(*domain.SessionClaims)
	return claims
}

func bearer(r *http.Request) string {
	raw := r.Header.Get("Authorization")
	if len(raw) < len("Bearer ") || !strings.EqualFold(raw[:len("Bearer ")], "bearer ") {
		return ""
	}
	return strings.TrimSpace(raw[len("Bearer "):])
}

func parseIntent(s string) domain.Intent {
	if domain.Intent(strings.TrimSpace(s)) == domain.IntentBusinessAdvertising {
		return domain.IntentBusinessAdvertising
	}
	return domain.IntentNone
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		_ = json.NewEncoder(w).Encode(body)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, dto.ErrorResponse{Error: msg})
}
