package handler_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/talkline/counters/internal/counter"
	"github.com/talkline/counters/internal/rest"
	"github.com/talkline/counters/internal/rest/middleware/session"
	"go.uber.org/zap"
)

const testSecret = "test-secret"

// stubService records calls and serves canned counter data.
type stubService struct {
	counts     map[int64]int64
	getErr     error
	updateErr  error
	lastUpdate counter.UpdateParams
	updates    int
}

func (s *stubService) GetCounters(_ context.Context, _ int64, _ []int64) (map[int64]int64, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}

	return s.counts, nil
}

func (s *stubService) UpdateCounter(_ context.Context, params counter.UpdateParams) error {
	s.updates++
	s.lastUpdate = params

	return s.updateErr
}

func sessionToken(t *testing.T, uid int64) string {
	t.Helper()

	claims := &session.Claims{
		UID: uid,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)

	return token
}

func publicServer(svc *stubService) http.Handler {
	return rest.NewPublicServer(svc, session.New(testSecret, zap.NewNop()), zap.NewNop())
}

func getCounters(t *testing.T, srv http.Handler, url string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, url, nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	return rec
}

func TestGetCounters(t *testing.T) {
	t.Parallel()

	svc := &stubService{counts: map[int64]int64{3: 5, 4: 0}}
	srv := publicServer(svc)

	rec := getCounters(t, srv, "/get_counters/?userId=7&friends=3,4&session="+sessionToken(t, 7))
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]int64
	require.NoError(t, sonic.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, map[string]int64{"3": 5, "4": 0}, body)
}

func TestGetCountersMissingParams(t *testing.T) {
	t.Parallel()

	srv := publicServer(&stubService{})
	token := sessionToken(t, 7)

	for _, url := range []string{
		"/get_counters/?session=" + token,
		"/get_counters/?userId=7&session=" + token,
		"/get_counters/?friends=3,4&session=" + token,
		"/get_counters/?userId=abc&friends=3,4&session=" + token,
		"/get_counters/?userId=7&friends=3,x&session=" + token,
		"/get_counters/?userId=-7&friends=3&session=" + token,
		"/get_counters/?userId=7&friends=0&session=" + token,
	} {
		rec := getCounters(t, srv, url)
		assert.Equal(t, http.StatusBadRequest, rec.Code, url)
	}
}

func TestGetCountersWrongSession(t *testing.T) {
	t.Parallel()

	srv := publicServer(&stubService{counts: map[int64]int64{3: 5}})

	// Valid token, but for a different user than the query asks about
	rec := getCounters(t, srv, "/get_counters/?userId=7&friends=3&session="+sessionToken(t, 8))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestGetCountersMissingSession(t *testing.T) {
	t.Parallel()

	srv := publicServer(&stubService{})

	rec := getCounters(t, srv, "/get_counters/?userId=7&friends=3")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestGetCountersForgedSession(t *testing.T) {
	t.Parallel()

	srv := publicServer(&stubService{})

	claims := &session.Claims{UID: 7}
	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("other-secret"))
	require.NoError(t, err)

	rec := getCounters(t, srv, "/get_counters/?userId=7&friends=3&session="+forged)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestGetCountersSessionCookie(t *testing.T) {
	t.Parallel()

	svc := &stubService{counts: map[int64]int64{3: 5}}
	srv := publicServer(svc)

	req := httptest.NewRequest(http.MethodGet, "/get_counters/?userId=7&friends=3", nil)
	req.AddCookie(&http.Cookie{Name: "session", Value: sessionToken(t, 7)})

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGetCountersCORSHeaders(t *testing.T) {
	t.Parallel()

	svc := &stubService{counts: map[int64]int64{3: 5}}
	srv := publicServer(svc)

	req := httptest.NewRequest(http.MethodGet, "/get_counters/?userId=7&friends=3&session="+sessionToken(t, 7), nil)
	req.Header.Set("Origin", "https://chat.example.com")

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://chat.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
}

func TestGetCountersServiceError(t *testing.T) {
	t.Parallel()

	svc := &stubService{getErr: assert.AnError}
	srv := publicServer(svc)

	rec := getCounters(t, srv, "/get_counters/?userId=7&friends=3&session="+sessionToken(t, 7))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func postUpdate(t *testing.T, srv http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/update_counter/", strings.NewReader(body))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	return rec
}

func TestUpdateCounter(t *testing.T) {
	t.Parallel()

	svc := &stubService{}
	srv := rest.NewInternalServer(svc, zap.NewNop())

	rec := postUpdate(t, srv, `{"user_id":7,"friend_id":3,"chat_id":1,"unread_messages":9}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true}`, rec.Body.String())

	assert.Equal(t, 1, svc.updates)
	assert.Equal(t, counter.UpdateParams{UserID: 7, FriendID: 3, ChatID: 1, UnreadMessages: 9}, svc.lastUpdate)
}

func TestUpdateCounterOptionalFields(t *testing.T) {
	t.Parallel()

	svc := &stubService{}
	srv := rest.NewInternalServer(svc, zap.NewNop())

	rec := postUpdate(t, srv, `{"user_id":7,"friend_id":3}`)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, counter.UpdateParams{UserID: 7, FriendID: 3}, svc.lastUpdate)
}

func TestUpdateCounterMissingFields(t *testing.T) {
	t.Parallel()

	svc := &stubService{}
	srv := rest.NewInternalServer(svc, zap.NewNop())

	rec := postUpdate(t, srv, `{"friend_id":3}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"user_id":"required"}`, rec.Body.String())

	rec = postUpdate(t, srv, `{"user_id":7}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"friend_id":"required"}`, rec.Body.String())

	assert.Equal(t, 0, svc.updates)
}

func TestUpdateCounterInvalidBody(t *testing.T) {
	t.Parallel()

	svc := &stubService{}
	srv := rest.NewInternalServer(svc, zap.NewNop())

	rec := postUpdate(t, srv, `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateCounterServiceError(t *testing.T) {
	t.Parallel()

	svc := &stubService{updateErr: assert.AnError}
	srv := rest.NewInternalServer(svc, zap.NewNop())

	rec := postUpdate(t, srv, `{"user_id":7,"friend_id":3}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
