package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"sacco/pkg/errors"
	"sacco/pkg/logger"
)

const testSecret = "test-secret"

func signed(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return s
}

type blacklistMock struct{ mock.Mock }

func (m *blacklistMock) IsBlacklisted(ctx context.Context, token string) (bool, error) {
	args := m.Called(ctx, token)
	return args.Bool(0), args.Error(1)
}

type revokerMock struct{ blacklistMock }

func (m *revokerMock) Blacklist(ctx context.Context, token string, expiration time.Duration) error {
	return m.Called(ctx, token, expiration).Error(0)
}

func echoActor() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, _ := ActorIDFromContext(r.Context())
		role, _ := RoleFromContext(r.Context())
		_, _ = w.Write([]byte(id.String() + "|" + role))
	})
}

func TestAuthenticate(t *testing.T) {
	actor := uuid.New()
	tests := []struct {
		name   string
		header string
		code   int
		body   string
	}{
		{"missing header", "", http.StatusUnauthorized, ""},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized, ""},
		{"garbage token", "Bearer abc", http.StatusUnauthorized, ""},
		{"expired", "Bearer " + signed(t, jwt.MapClaims{
			"user_id": actor.String(), "exp": time.Now().Add(-time.Minute).Unix(),
		}), http.StatusUnauthorized, ""},
		{"no actor", "Bearer " + signed(t, jwt.MapClaims{"role": "admin"}), http.StatusUnauthorized, ""},
		{"member default role", "Bearer " + signed(t, jwt.MapClaims{
			"user_id": actor.String(), "exp": time.Now().Add(time.Hour).Unix(),
		}), http.StatusOK, actor.String() + "|member"},
		{"admin via sub", "Bearer " + signed(t, jwt.MapClaims{
			"sub": actor.String(), "role": "admin",
		}), http.StatusOK, actor.String() + "|admin"},
	}
	h := NewAuthMiddleware(testSecret, "").Authenticate(echoActor())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)
			assert.Equal(t, tt.code, w.Code)
			if tt.body != "" {
				assert.Equal(t, tt.body, w.Body.String())
			}
		})
	}
}

func TestAuthenticateChecksIssuerAndBlacklist(t *testing.T) {
	actor := uuid.New()
	bl := &blacklistMock{}
	revoked := signed(t, jwt.MapClaims{"user_id": actor.String(), "iss": "portal"})
	fine := signed(t, jwt.MapClaims{"user_id": actor.String(), "iss": "portal", "role": "admin"})
	bl.On("IsBlacklisted", mock.Anything, revoked).Return(true, nil)
	bl.On("IsBlacklisted", mock.Anything, fine).Return(false, nil)

	h := NewAuthMiddleware(testSecret, "portal").WithBlacklist(bl).Authenticate(echoActor())
	for token, code := range map[string]int{
		revoked: http.StatusUnauthorized,
		fine:    http.StatusOK,
		signed(t, jwt.MapClaims{"user_id": actor.String(), "iss": "elsewhere"}): http.StatusUnauthorized,
	} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		assert.Equal(t, code, w.Code)
	}
	bl.AssertExpectations(t)
}

func TestRevoke(t *testing.T) {
	ctx := context.Background()
	actor := uuid.New()
	live := signed(t, jwt.MapClaims{"user_id": actor.String(), "exp": time.Now().Add(time.Hour).Unix()})
	noExp := signed(t, jwt.MapClaims{"user_id": actor.String()})
	expired := signed(t, jwt.MapClaims{"user_id": actor.String(), "exp": time.Now().Add(-time.Minute).Unix()})

	rv := &revokerMock{}
	rv.On("Blacklist", mock.Anything, live, mock.MatchedBy(func(d time.Duration) bool {
		return d > 59*time.Minute && d <= time.Hour
	})).Return(nil).Once()
	rv.On("Blacklist", mock.Anything, noExp, MaxRevocation).Return(nil).Once()

	m := NewAuthMiddleware(testSecret, "").WithBlacklist(rv)
	require.NoError(t, m.Revoke(ctx, live))
	require.NoError(t, m.Revoke(ctx, noExp))
	require.NoError(t, m.Revoke(ctx, expired))

	err := m.Revoke(ctx, "not-a-jwt")
	assert.True(t, errors.IsValidation(err))
	rv.AssertExpectations(t)

	// A read-only blacklist cannot revoke.
	err = NewAuthMiddleware(testSecret, "").WithBlacklist(&blacklistMock{}).Revoke(ctx, live)
	assert.ErrorIs(t, err, errors.ErrRevocationOff)

	// The revoked token is then refused.
	rv.On("IsBlacklisted", mock.Anything, live).Return(true, nil).Once()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+live)
	w := httptest.NewRecorder()
	m.Authenticate(echoActor()).ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireRole(t *testing.T) {
	h := RequireRole(RoleAdmin)(echoActor())

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req.WithContext(WithActor(req.Context(), uuid.New(), RoleMember)))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = httptest.NewRecorder()
	h.ServeHTTP(w, req.WithContext(WithActor(req.Context(), uuid.New(), RoleAdmin)))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCORS(t *testing.T) {
	h := CORS([]string{"https://portal.example"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodOptions, "/", nil)
	req.Header.Set("Origin", "https://portal.example")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://portal.example", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://evil.example")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRecoveryAndCorrelation(t *testing.T) {
	var seen string
	h := CorrelationID(Recovery(logger.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
		panic("boom")
	})))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "req-1")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "req-1", w.Header().Get("X-Request-ID"))
	assert.Equal(t, "req-1", seen)
}
