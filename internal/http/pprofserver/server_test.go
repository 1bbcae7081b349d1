package pprofserver

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHandler_LoopbackWithoutCredentials(t *testing.T) {
	t.Parallel()

	h := Handler(Config{})
	req := httptest.NewRequest(http.MethodGet, "/debug/pprof/", nil)
	req.RemoteAddr = "127.0.0.1:5555"
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
}

func TestHandler_RemoteNeedsBasicAuth(t *testing.T) {
	t.Parallel()

	h := Handler(Config{User: "ops", Pass: "s3cret"})

	cases := []struct {
		name       string
		user, pass string
		setAuth    bool
		code       int
	}{
		{name: "no auth", code: http.StatusUnauthorized},
		{name: "wrong pass", user: "ops", pass: "nope", setAuth: true, code: http.StatusUnauthorized},
		{name: "ok", user: "ops", pass: "s3cret", setAuth: true, code: http.StatusOK},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/debug/pprof/cmdline", nil)
		req.RemoteAddr = "10.1.2.3:4000"
		if tc.setAuth {
			req.SetBasicAuth(tc.user, tc.pass)
		}
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		require.Equal(t, tc.code, rr.Code, tc.name)
	}
}

func TestHandler_RemoteWithoutConfiguredCredentials(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/debug/pprof/", nil)
	req.RemoteAddr = "10.1.2.3:4000"
	req.SetBasicAuth("", "")
	rr := httptest.NewRecorder()
	Handler(Config{}).ServeHTTP(rr, req)

	require.Equal(t, http.StatusUnauthorized, rr.Code)
	require.Equal(t, `Basic realm="pprof"`, rr.Header().Get("WWW-Authenticate"))
}

func TestNew(t *testing.T) {
	t.Parallel()

	require.Nil(t, New(Config{}))

	srv := New(Config{Addr: "127.0.0.1:6060"})
	require.NotNil(t, srv)
	require.Equal(t, "127.0.0.1:6060", srv.Addr)
	require.NotNil(t, srv.Handler)
}

func TestIsLoopback(t *testing.T) {
	t.Parallel()

	require.True(t, isLoopback("[::1]:80"))
	require.True(t, isLoopback("127.0.0.1"))
	require.False(t, isLoopback("192.168.0.1:80"))
	require.False(t, isLoopback("garbage"))
}
