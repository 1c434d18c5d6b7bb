package server

import (
	"crypto/x509"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/webb-auth/websso/oidc"
	"github.com/webb-auth/websso/session"
)

// testStack is a full application stack wired against an in-process
// TestProvider.
type testStack struct {
	app      *httptest.Server
	provider *oidc.TestProvider
	sessions *session.Manager
}

func newTestStack(t *testing.T) *testStack {
	t.Helper()
	require := require.New(t)

	tp := oidc.StartTestProvider(t)
	tp.SetClientCreds("websso-client", "websso-secret")
	tp.SetExpectedAuthCode("test-code-1234")
	tp.SetReplySubject("alice")
	tp.SetCustomClaims(map[string]interface{}{"email": "alice@example.com"})

	cfg, err := oidc.NewConfig(
		tp.Addr(),
		"websso-client",
		"websso-secret",
		[]oidc.Alg{oidc.ES256},
		oidc.WithProviderCA(tp.CACert()),
	)
	require.NoError(err)

	p, err := oidc.NewProvider(cfg)
	require.NoError(err)
	t.Cleanup(p.Done)

	mgr, err := session.NewManager(session.NewMemoryStore())
	require.NoError(err)

	srv, err := New(Config{
		Provider:     p,
		Sessions:     mgr,
		CookieSecret: "test-cookie-secret",
	})
	require.NoError(err)

	app := httptest.NewServer(srv)
	t.Cleanup(app.Close)
	tp.SetAllowedRedirectURIs([]string{app.URL + "/auth/callback"})

	return &testStack{
		app:      app,
		provider: tp,
		sessions: mgr,
	}
}

// client returns an http client with a fresh cookie jar that trusts the
// TestProvider's TLS certificate.  With follow false the client stops at
// every redirect so tests can inspect each hop.
func (s *testStack) client(t *testing.T, follow bool) *http.Client {
	t.Helper()
	require := require.New(t)

	jar, err := cookiejar.New(nil)
	require.NoError(err)

	pool := x509.NewCertPool()
	require.True(pool.AppendCertsFromPEM([]byte(s.provider.CACert())))
	tr := http.DefaultTransport.(*http.Transport).Clone()
	tr.TLSClientConfig.RootCAs = pool

	c := &http.Client{Jar: jar, Transport: tr}
	if !follow {
		c.CheckRedirect = func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}
	return c
}

// get performs a GET and returns the response with its body read.
func get(t *testing.T, c *http.Client, rawURL string) (*http.Response, string) {
	t.Helper()
	resp, err := c.Get(rawURL)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	return resp, string(body)
}

// login drives the whole authorization code flow for the client's cookie
// jar, leaving it authenticated.
func (s *testStack) login(t *testing.T, c *http.Client) {
	t.Helper()
	resp, body := get(t, c, s.app.URL+"/")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, body, "alice@example.com")
}

func TestEndToEndLogin(t *testing.T) {
	stack := newTestStack(t)

	t.Run("redirect-hops", func(t *testing.T) {
		require := require.New(t)
		c := stack.client(t, false)

		// no cookie: the gate bounces / into the login flow
		resp, _ := get(t, c, stack.app.URL+"/")
		require.Equal(http.StatusFound, resp.StatusCode)
		require.Equal(loginPath, resp.Header.Get("Location"))

		// login redirects to the provider's authorization endpoint
		resp, _ = get(t, c, stack.app.URL+loginPath)
		require.Equal(http.StatusFound, resp.StatusCode)

		authURL, err := url.Parse(resp.Header.Get("Location"))
		require.NoError(err)
		q := authURL.Query()
		assert.Equal(t, "websso-client", q.Get("client_id"))
		assert.Equal(t, stack.app.URL+"/auth/callback", q.Get("redirect_uri"))
		assert.Equal(t, "openid profile email", q.Get("scope"))
		assert.NotEmpty(t, q.Get("state"))
		assert.NotEmpty(t, q.Get("nonce"))

		// the provider authenticates the user and redirects back with a code
		resp, _ = get(t, c, authURL.String())
		require.Equal(http.StatusFound, resp.StatusCode)
		cb, err := url.Parse(resp.Header.Get("Location"))
		require.NoError(err)
		require.Equal(q.Get("state"), cb.Query().Get("state"))
		require.Equal("test-code-1234", cb.Query().Get("code"))

		// the callback exchanges the code, establishes the session and
		// returns the browser to the originally requested URL
		resp, _ = get(t, c, cb.String())
		require.Equal(http.StatusFound, resp.StatusCode)
		require.Equal("/", resp.Header.Get("Location"))

		resp, body := get(t, c, stack.app.URL+"/")
		require.Equal(http.StatusOK, resp.StatusCode)
		assert.Contains(t, body, "alice@example.com")
	})

	t.Run("with-redirects-followed", func(t *testing.T) {
		c := stack.client(t, true)
		stack.login(t, c)

		// the session survives subsequent requests without another flow
		resp, body := get(t, c, stack.app.URL+"/")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, body, "alice@example.com")
	})
}

func TestCallbackWithoutLogin(t *testing.T) {
	require := require.New(t)
	stack := newTestStack(t)
	c := stack.client(t, false)

	// directly navigated callback: nothing pending for this browser
	resp, _ := get(t, c, stack.app.URL+"/auth/callback?code=test-code-1234&state=st_forged")
	require.Equal(http.StatusFound, resp.StatusCode)
	require.Equal(loginPath, resp.Header.Get("Location"))

	// and no session came out of it
	resp, _ = get(t, c, stack.app.URL+"/")
	require.Equal(http.StatusFound, resp.StatusCode)
	require.Equal(loginPath, resp.Header.Get("Location"))
}

func TestCallbackStateMismatch(t *testing.T) {
	require := require.New(t)
	stack := newTestStack(t)
	c := stack.client(t, false)

	// begin a login so this browser has a pending attempt
	resp, _ := get(t, c, stack.app.URL+loginPath)
	require.Equal(http.StatusFound, resp.StatusCode)

	// callback with a state that was never issued for this browser
	resp, _ = get(t, c, stack.app.URL+"/auth/callback?code=test-code-1234&state=st_wrong")
	require.Equal(http.StatusFound, resp.StatusCode)
	require.Equal(loginPath, resp.Header.Get("Location"))

	resp, _ = get(t, c, stack.app.URL+"/")
	require.Equal(http.StatusFound, resp.StatusCode)
	require.Equal(loginPath, resp.Header.Get("Location"))
}

func TestCallbackProviderError(t *testing.T) {
	require := require.New(t)
	stack := newTestStack(t)
	// provider denies every authorization
	stack.provider.SetExpectedAuthCode("")
	c := stack.client(t, false)

	resp, _ := get(t, c, stack.app.URL+loginPath)
	require.Equal(http.StatusFound, resp.StatusCode)
	authURL := resp.Header.Get("Location")

	resp, _ = get(t, c, authURL)
	require.Equal(http.StatusFound, resp.StatusCode)
	cb, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(err)
	require.Equal("access_denied", cb.Query().Get("error"))

	resp, _ = get(t, c, cb.String())
	require.Equal(http.StatusFound, resp.StatusCode)
	require.Equal(loginPath, resp.Header.Get("Location"))
}

func TestGateRedirectsAuthenticatedFromLogin(t *testing.T) {
	require := require.New(t)
	stack := newTestStack(t)

	follow := stack.client(t, true)
	stack.login(t, follow)

	// reuse the authenticated jar without following redirects
	noFollow := stack.client(t, false)
	noFollow.Jar = follow.Jar

	resp, _ := get(t, noFollow, stack.app.URL+loginPath)
	require.Equal(http.StatusFound, resp.StatusCode)
	require.Equal(logoutPath, resp.Header.Get("Location"))

	resp, _ = get(t, noFollow, stack.app.URL+callbackPath)
	require.Equal(http.StatusFound, resp.StatusCode)
	require.Equal(logoutPath, resp.Header.Get("Location"))
}

func TestLogout(t *testing.T) {
	require := require.New(t)
	stack := newTestStack(t)

	follow := stack.client(t, true)
	stack.login(t, follow)

	noFollow := stack.client(t, false)
	noFollow.Jar = follow.Jar

	resp, _ := get(t, noFollow, stack.app.URL+logoutPath)
	require.Equal(http.StatusFound, resp.StatusCode)

	end, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(err)
	assert.Equal(t, stack.provider.Addr()+"/end-session", end.Scheme+"://"+end.Host+end.Path)
	assert.Equal(t, stack.app.URL, end.Query().Get("post_logout_redirect_uri"))
	assert.Equal(t, "websso-client", end.Query().Get("client_id"))

	// the local session is gone: the next request starts over
	resp, _ = get(t, noFollow, stack.app.URL+"/")
	require.Equal(http.StatusFound, resp.StatusCode)
	require.Equal(loginPath, resp.Header.Get("Location"))
}

func TestLogoutWithoutSession(t *testing.T) {
	require := require.New(t)
	stack := newTestStack(t)
	c := stack.client(t, false)

	// logging out with no local session still terminates upstream
	resp, _ := get(t, c, stack.app.URL+logoutPath)
	require.Equal(http.StatusFound, resp.StatusCode)
	end, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(err)
	assert.Equal(t, stack.provider.Addr()+"/end-session", end.Scheme+"://"+end.Host+end.Path)
}

func TestReturnToOriginalURL(t *testing.T) {
	require := require.New(t)
	stack := newTestStack(t)
	c := stack.client(t, false)

	// ask for a deep link; the gate remembers it for after the flow
	resp, _ := get(t, c, stack.app.URL+"/?tab=reports")
	require.Equal(http.StatusFound, resp.StatusCode)

	resp, _ = get(t, c, stack.app.URL+loginPath)
	require.Equal(http.StatusFound, resp.StatusCode)
	authURL := resp.Header.Get("Location")

	resp, _ = get(t, c, authURL)
	require.Equal(http.StatusFound, resp.StatusCode)
	cb := resp.Header.Get("Location")

	resp, _ = get(t, c, cb)
	require.Equal(http.StatusFound, resp.StatusCode)
	require.Equal("/?tab=reports", resp.Header.Get("Location"))
}

func TestExternalOrigin(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		host  string
		proto string
		tls   bool
		want  string
	}{
		{
			name: "plain-http-with-port",
			host: "localhost:3000",
			want: "http://localhost:3000",
		},
		{
			name: "behind-tls",
			host: "app.example.com",
			tls:  true,
			want: "https://app.example.com",
		},
		{
			name:  "forwarded-proto-wins",
			host:  "app.example.com",
			proto: "https",
			want:  "https://app.example.com",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.Host = tt.host
			if tt.proto != "" {
				r.Header.Set("X-Forwarded-Proto", tt.proto)
			}
			if tt.tls {
				r = httptest.NewRequest(http.MethodGet, "https://"+tt.host+"/", nil)
				r.Host = tt.host
			}
			assert.Equal(t, tt.want, externalOrigin(r))
		})
	}
}

func TestNew_validation(t *testing.T) {
	t.Parallel()
	mgr, err := session.NewManager(session.NewMemoryStore())
	require.NoError(t, err)

	tests := []struct {
		name string
		cfg  Config
	}{
		{
			name: "missing-provider",
			cfg:  Config{Sessions: mgr, CookieSecret: "secret"},
		},
		{
			name: "missing-sessions",
			cfg:  Config{Provider: &oidc.Provider{}, CookieSecret: "secret"},
		},
		{
			name: "missing-cookie-secret",
			cfg:  Config{Provider: &oidc.Provider{}, Sessions: mgr},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cfg)
			require.Error(t, err)
		})
	}
}
