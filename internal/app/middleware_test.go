package app

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/depot-ops/depot-ops/internal/shared"
)

type stubResolver struct {
	actors map[string]shared.Actor
	err    error
}

func (s stubResolver) ResolveActor(_ context.Context, userID string) (shared.Actor, error) {
	if s.err != nil {
		return shared.Actor{}, s.err
	}
	actor, ok := s.actors[userID]
	if !ok {
		return shared.Actor{}, shared.ErrNotFound
	}
	return actor, nil
}

func newTestStack(t *testing.T, resolver ActorResolver) (http.Handler, *shared.SessionManager) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sessions := shared.NewSessionManager(client, "depot_session", time.Hour, false)
	csrf := shared.NewCSRFManager("secret")

	r := chi.NewRouter()
	r.Use(SessionMiddleware(logger, sessions), CSRFMiddleware(logger, csrf), ActorMiddleware(logger, resolver))
	r.Get("/csrf", func(w http.ResponseWriter, r *http.Request) {
		token, err := csrf.EnsureToken(r.Context(), shared.SessionFromContext(r.Context()))
		require.NoError(t, err)
		_, _ = w.Write([]byte(token))
	})
	r.Post("/login", func(w http.ResponseWriter, r *http.Request) {
		sess := shared.SessionFromContext(r.Context())
		sess.SetUser("7")
		w.WriteHeader(http.StatusNoContent)
	})
	r.Get("/me", func(w http.ResponseWriter, r *http.Request) {
		actor, ok := shared.ActorFromContext(r.Context())
		if !ok {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(actor.Name))
	})
	return r, sessions
}

func cookiesFrom(rr *httptest.ResponseRecorder) []*http.Cookie {
	return rr.Result().Cookies()
}

func TestCSRFRejectsUnsafeMethodWithoutToken(t *testing.T) {
	handler, _ := newTestStack(t, nil)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/login", nil))
	require.Equal(t, http.StatusForbidden, rr.Code)
}

func TestSessionLoginAndActorFlow(t *testing.T) {
	handler, _ := newTestStack(t, stubResolver{actors: map[string]shared.Actor{
		"7": {ID: 7, Name: "Sari", Role: shared.RoleOperator, Branch: "Cibubur"},
	}})

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/csrf", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	token := rr.Body.String()
	cookies := cookiesFrom(rr)
	require.NotEmpty(t, cookies)

	req := httptest.NewRequest(http.MethodPost, "/login", nil)
	req.Header.Set(shared.CSRFHeader, token)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusNoContent, rr.Code)

	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "Sari", rr.Body.String())
}

func TestActorMiddlewareSignsOutUnknownProfile(t *testing.T) {
	handler, _ := newTestStack(t, stubResolver{actors: map[string]shared.Actor{}})

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/csrf", nil))
	token := rr.Body.String()
	cookies := cookiesFrom(rr)

	req := httptest.NewRequest(http.MethodPost, "/login", nil)
	req.Header.Set(shared.CSRFHeader, token)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	handler.ServeHTTP(httptest.NewRecorder(), req)

	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusUnauthorized, rr.Code)
}
