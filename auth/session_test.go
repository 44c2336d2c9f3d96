package auth_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jrsteele09/go-github-auth/apiclient"
	"github.com/jrsteele09/go-github-auth/auth"
	"github.com/jrsteele09/go-github-auth/browser"
	"github.com/jrsteele09/go-github-auth/browser/browserfake"
	"github.com/jrsteele09/go-github-auth/exchange"
	"github.com/jrsteele09/go-github-auth/oauthmodel"
	"github.com/jrsteele09/go-github-auth/tokenstore"
	"github.com/jrsteele09/go-github-auth/tokenstore/storefake"
	"github.com/jrsteele09/go-github-auth/users"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

const (
	testClientID = "Iv1.native"
	testCode     = "abc"
)

// fakeGitHub plays both the OAuth provider and the REST API.
type fakeGitHub struct {
	t      *testing.T
	server *httptest.Server
	store  *storefake.FakeStore

	mu         sync.Mutex
	challenges map[string]string // code -> code_challenge
	usedCodes  map[string]bool
	revoked    map[string]bool
	issued     int
	exchanges  int
	rejectWith string

	profileStatus int
	profileGate   chan struct{} // when set, /user waits on it
	profileSeen   chan struct{} // when set, closed on the first /user request
	tokenAtFetch  string        // token in the store when /user was requested
}

func newFakeGitHub(t *testing.T, store *storefake.FakeStore) *fakeGitHub {
	t.Helper()
	gh := &fakeGitHub{
		t:          t,
		store:      store,
		challenges: make(map[string]string),
		usedCodes:  make(map[string]bool),
		revoked:    make(map[string]bool),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /login/oauth/access_token", gh.handleToken)
	mux.HandleFunc("GET /user", gh.handleUser)
	gh.server = httptest.NewServer(mux)
	t.Cleanup(gh.server.Close)
	return gh
}

func (gh *fakeGitHub) tokenURL() string { return gh.server.URL + "/login/oauth/access_token" }

// authorize simulates consent: the provider issues code for the challenge in authURL.
func (gh *fakeGitHub) authorize(authURL, code string) browser.Result {
	u, err := url.Parse(authURL)
	require.NoError(gh.t, err)
	q := u.Query()
	gh.mu.Lock()
	gh.challenges[code] = q.Get("code_challenge")
	gh.mu.Unlock()
	return browser.Result{Kind: browser.Success, Code: code, State: q.Get("state")}
}

func (gh *fakeGitHub) exchangeCount() int {
	gh.mu.Lock()
	defer gh.mu.Unlock()
	return gh.exchanges
}

func (gh *fakeGitHub) fetchedWithToken() string {
	gh.mu.Lock()
	defer gh.mu.Unlock()
	return gh.tokenAtFetch
}

func (gh *fakeGitHub) revoke(token string) {
	gh.mu.Lock()
	defer gh.mu.Unlock()
	gh.revoked[token] = true
}

func (gh *fakeGitHub) handleToken(w http.ResponseWriter, r *http.Request) {
	var req oauthmodel.ExchangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	gh.mu.Lock()
	defer gh.mu.Unlock()
	gh.exchanges++

	w.Header().Set("Content-Type", "application/json")
	resp := oauthmodel.TokenResponse{}
	switch {
	case gh.rejectWith != "":
		resp.Error = gh.rejectWith
	case gh.usedCodes[req.Code]:
		resp.Error = "bad_verification_code"
		resp.ErrorDescription = "The code passed is incorrect or expired."
	case gh.challenges[req.Code] == "" || oauth2.S256ChallengeFromVerifier(req.CodeVerifier) != gh.challenges[req.Code]:
		resp.Error = "bad_verification_code"
	case req.ClientID != testClientID:
		resp.Error = "incorrect_client_credentials"
	default:
		gh.usedCodes[req.Code] = true
		gh.issued++
		resp.AccessToken = fmt.Sprintf("tok_%d", gh.issued)
		resp.TokenType = "bearer"
		resp.Scope = "repo,read:user"
	}
	_ = json.NewEncoder(w).Encode(resp)
}

func (gh *fakeGitHub) handleUser(w http.ResponseWriter, r *http.Request) {
	gh.mu.Lock()
	if gh.profileSeen != nil {
		close(gh.profileSeen)
		gh.profileSeen = nil
	}
	gate := gh.profileGate
	status := gh.profileStatus
	token, _ := gh.store.Value(tokenstore.KeyAccessToken)
	gh.tokenAtFetch = token
	authz := r.Header.Get("Authorization")
	revoked := len(authz) > 7 && gh.revoked[authz[7:]]
	gh.mu.Unlock()

	if gate != nil {
		<-gate
	}

	w.Header().Set("Content-Type", "application/json")
	switch {
	case status != 0:
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(map[string]string{"message": "Server Error"})
	case authz == "" || revoked:
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]string{"message": "Bad credentials"})
	default:
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":         583231,
			"login":      "octocat",
			"name":       "The Octocat",
			"avatar_url": "https://avatars.githubusercontent.com/u/583231",
			"html_url":   "https://github.com/octocat",
		})
	}
}

type testFixture struct {
	store      *storefake.FakeStore
	github     *fakeGitHub
	factory    *apiclient.Factory
	launcher   *browserfake.FakeLauncher
	pending    *auth.InMemoryPendingRepo
	controller *auth.Controller
	now        atomic.Pointer[time.Time]
}

func (f *testFixture) advance(d time.Duration) {
	next := f.now.Load().Add(d)
	f.now.Store(&next)
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()
	f := &testFixture{
		store:    storefake.NewFakeStore(),
		launcher: &browserfake.FakeLauncher{},
		pending:  auth.NewInMemoryPendingRepo(),
	}
	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	f.now.Store(&start)
	f.github = newFakeGitHub(t, f.store)

	factory, err := apiclient.NewFactory(f.store, apiclient.WithBaseURL(f.github.server.URL), apiclient.WithLogger(zerolog.Nop()))
	require.NoError(t, err)
	f.factory = factory

	f.launcher.ResultFunc = func(authURL string) (browser.Result, error) {
		return f.github.authorize(authURL, testCode), nil
	}

	target := auth.TargetConfig{
		Target:        auth.TargetNative,
		ClientID:      testClientID,
		RedirectURI:   auth.NativeRedirectURI,
		TokenEndpoint: f.github.tokenURL(),
	}
	f.controller = f.newController(t, target)
	return f
}

func (f *testFixture) newController(t *testing.T, target auth.TargetConfig) *auth.Controller {
	t.Helper()
	c, err := auth.NewController(auth.Deps{
		Store:     f.store,
		Clients:   f.factory,
		Exchanger: exchange.NewClient(exchange.WithLogger(zerolog.Nop())),
		Launcher:  f.launcher,
		Pending:   f.pending,
	}, target,
		auth.WithLogger(zerolog.Nop()),
		auth.WithNowTime(func() time.Time { return *f.now.Load() }),
	)
	require.NoError(t, err)
	return c
}

func seedSession(store *storefake.FakeStore, token string, profile *users.Profile) {
	store.Seed(tokenstore.KeyAccessToken, token)
	raw, _ := profile.Marshal()
	store.Seed(tokenstore.KeyUserProfile, raw)
}

func TestNewController_RequiresDeps(t *testing.T) {
	_, err := auth.NewController(auth.Deps{}, auth.TargetConfig{})
	require.Error(t, err)
}

func TestController_Load(t *testing.T) {
	ctx := context.Background()
	name := "Mona"
	cached := &users.Profile{ID: 7, Login: "mona", Name: &name}

	t.Run("no stored token", func(t *testing.T) {
		f := setupTestFixture(t)
		require.Equal(t, auth.StateLoading, f.controller.Snapshot().State)
		for i := 0; i < 3; i++ {
			require.NoError(t, f.controller.Load(ctx))
			snap := f.controller.Snapshot()
			require.Equal(t, auth.StateUnauthenticated, snap.State)
			require.Nil(t, snap.User)
		}
	})

	t.Run("stored token and profile", func(t *testing.T) {
		f := setupTestFixture(t)
		seedSession(f.store, "tok_cached", cached)
		for i := 0; i < 3; i++ {
			require.NoError(t, f.controller.Load(ctx))
			snap := f.controller.Snapshot()
			require.Equal(t, auth.StateAuthenticated, snap.State)
			require.Equal(t, cached, snap.User)
		}
		// Fresh controllers over the same store agree
		other := f.newController(t, auth.TargetConfig{})
		require.NoError(t, other.Load(ctx))
		require.Equal(t, cached, other.Snapshot().User)

		// Cached profile is trusted: no network call was made
		require.Zero(t, f.github.exchangeCount())
		require.Zero(t, f.factory.Builds())
	})

	t.Run("token without profile", func(t *testing.T) {
		f := setupTestFixture(t)
		f.store.Seed(tokenstore.KeyAccessToken, "tok_cached")
		require.NoError(t, f.controller.Load(ctx))
		require.Equal(t, auth.StateUnauthenticated, f.controller.Snapshot().State)
	})

	t.Run("malformed profile", func(t *testing.T) {
		f := setupTestFixture(t)
		f.store.Seed(tokenstore.KeyAccessToken, "tok_cached")
		f.store.Seed(tokenstore.KeyUserProfile, `{"login":`)
		require.NoError(t, f.controller.Load(ctx))
		require.Equal(t, auth.StateUnauthenticated, f.controller.Snapshot().State)
		require.Zero(t, f.store.Writes+f.store.Deletes)
	})

	t.Run("storage failure propagates", func(t *testing.T) {
		f := setupTestFixture(t)
		f.store.FailOn(storefake.OpGet, tokenstore.KeyAccessToken, errors.New("keychain locked"))
		require.Error(t, f.controller.Load(ctx))
		require.Equal(t, auth.StateUnauthenticated, f.controller.Snapshot().State)
	})

	t.Run("returned snapshot cannot alias the session", func(t *testing.T) {
		f := setupTestFixture(t)
		seedSession(f.store, "tok_cached", cached)
		require.NoError(t, f.controller.Load(ctx))
		snap := f.controller.Snapshot()
		snap.User.Login = "mutated"
		require.Equal(t, "mona", f.controller.Snapshot().User.Login)
	})
}

// gatedStore blocks every Get until gate is closed.
type gatedStore struct {
	*storefake.FakeStore
	entered chan struct{}
	once    sync.Once
	gate    chan struct{}
}

func (g *gatedStore) Get(ctx context.Context, key string) (string, error) {
	g.once.Do(func() { close(g.entered) })
	<-g.gate
	return g.FakeStore.Get(ctx, key)
}

func TestController_ConcurrentLoad(t *testing.T) {
	ctx := context.Background()
	f := setupTestFixture(t)
	store := &gatedStore{FakeStore: f.store, entered: make(chan struct{}), gate: make(chan struct{})}
	c, err := auth.NewController(auth.Deps{
		Store:     store,
		Clients:   f.factory,
		Exchanger: exchange.NewClient(exchange.WithLogger(zerolog.Nop())),
		Launcher:  f.launcher,
	}, auth.TargetConfig{}, auth.WithLogger(zerolog.Nop()))
	require.NoError(t, err)

	type loaded struct {
		err   error
		state auth.State
	}
	results := make(chan loaded, 3)
	load := func() {
		err := c.Load(ctx)
		results <- loaded{err: err, state: c.Snapshot().State}
	}

	go load()
	<-store.entered
	go load()
	go load()

	// The later calls wait for the read in flight
	time.Sleep(20 * time.Millisecond)
	require.Empty(t, results)
	require.Equal(t, auth.StateLoading, c.Snapshot().State)

	close(store.gate)
	for i := 0; i < 3; i++ {
		r := <-results
		require.NoError(t, r.err)
		require.Equal(t, auth.StateUnauthenticated, r.state)
	}
}

func TestController_SignIn_HappyPath(t *testing.T) {
	ctx := context.Background()
	f := setupTestFixture(t)
	require.NoError(t, f.controller.Load(ctx))

	require.NoError(t, f.controller.SignIn(ctx))

	snap := f.controller.Snapshot()
	require.Equal(t, auth.StateAuthenticated, snap.State)
	require.False(t, snap.SigningIn)
	require.Equal(t, "octocat", snap.User.Login)

	token, ok := f.store.Value(tokenstore.KeyAccessToken)
	require.True(t, ok)
	require.Equal(t, "tok_1", token)

	raw, ok := f.store.Value(tokenstore.KeyUserProfile)
	require.True(t, ok)
	stored, ok := users.ParseProfile(raw)
	require.True(t, ok)
	require.Equal(t, "octocat", stored.Login)

	// Token was persisted before the profile fetch
	require.Equal(t, "tok_1", f.github.fetchedWithToken())

	launches := f.launcher.Launches()
	require.Len(t, launches, 1)
	require.Equal(t, auth.NativeRedirectURI, launches[0].RedirectURI)
	require.Zero(t, f.pending.Len())

	// Only the two session keys are written
	for _, call := range f.store.Calls() {
		require.Contains(t, []string{tokenstore.KeyAccessToken, tokenstore.KeyUserProfile}, call.Key)
	}
}

func TestController_SignIn_UserCancels(t *testing.T) {
	ctx := context.Background()

	for _, result := range []browser.Result{
		{Kind: browser.Cancelled},
		browser.ResultFromCallback(oauthmodel.CallbackParameters{Error: "access_denied"}),
	} {
		t.Run(result.Reason, func(t *testing.T) {
			f := setupTestFixture(t)
			require.NoError(t, f.controller.Load(ctx))
			f.launcher.ResultFunc = nil
			f.launcher.Result = result

			require.NoError(t, f.controller.SignIn(ctx))
			require.Equal(t, auth.StateUnauthenticated, f.controller.Snapshot().State)
			require.Zero(t, f.store.Writes)
			require.Zero(t, f.store.Deletes)
			require.Zero(t, f.github.exchangeCount())
			require.Zero(t, f.pending.Len())
		})
	}
}

func TestController_SignIn_ProviderError(t *testing.T) {
	ctx := context.Background()
	f := setupTestFixture(t)
	require.NoError(t, f.controller.Load(ctx))
	f.launcher.ResultFunc = nil
	f.launcher.Result = browser.Result{Kind: browser.Error, Reason: "redirect_uri_mismatch"}

	err := f.controller.SignIn(ctx)
	require.ErrorIs(t, err, auth.ErrAuthorizationFailed)
	require.Equal(t, auth.StateUnauthenticated, f.controller.Snapshot().State)
	require.Zero(t, f.store.Writes)
}

func TestController_SignIn_ExchangeRejected(t *testing.T) {
	ctx := context.Background()
	f := setupTestFixture(t)
	require.NoError(t, f.controller.Load(ctx))
	f.github.mu.Lock()
	f.github.rejectWith = "bad_verifier"
	f.github.mu.Unlock()

	err := f.controller.SignIn(ctx)
	require.ErrorIs(t, err, exchange.ErrExchangeFailed)

	var exErr *exchange.ExchangeError
	require.ErrorAs(t, err, &exErr)
	require.Equal(t, "bad_verifier", exErr.Detail)

	require.Equal(t, auth.StateUnauthenticated, f.controller.Snapshot().State)
	_, ok := f.store.Value(tokenstore.KeyAccessToken)
	require.False(t, ok)
	require.Zero(t, f.store.Writes)
}

func TestController_SignIn_ReusedCodeIsRejected(t *testing.T) {
	ctx := context.Background()
	f := setupTestFixture(t)
	require.NoError(t, f.controller.Load(ctx))

	require.NoError(t, f.controller.SignIn(ctx))
	require.Equal(t, auth.StateAuthenticated, f.controller.Snapshot().State)
	require.NoError(t, f.controller.SignOut(ctx))

	// The browser replays the same code; the provider refuses it
	err := f.controller.SignIn(ctx)
	require.ErrorIs(t, err, exchange.ErrExchangeFailed)
	require.Equal(t, auth.StateUnauthenticated, f.controller.Snapshot().State)
	require.Nil(t, f.controller.Snapshot().User)
	_, ok := f.store.Value(tokenstore.KeyAccessToken)
	require.False(t, ok)
	require.Equal(t, 2, f.github.exchangeCount())
}

func TestController_SignIn_ProtocolErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("state mismatch", func(t *testing.T) {
		f := setupTestFixture(t)
		require.NoError(t, f.controller.Load(ctx))
		f.launcher.ResultFunc = func(authURL string) (browser.Result, error) {
			r := f.github.authorize(authURL, testCode)
			r.State = "forged"
			return r, nil
		}

		require.ErrorIs(t, f.controller.SignIn(ctx), auth.ErrStateMismatch)
		require.Equal(t, auth.StateUnauthenticated, f.controller.Snapshot().State)
		require.Zero(t, f.github.exchangeCount())
		require.Zero(t, f.pending.Len())
	})

	t.Run("verifier lost", func(t *testing.T) {
		f := setupTestFixture(t)
		require.NoError(t, f.controller.Load(ctx))
		f.launcher.ResultFunc = func(authURL string) (browser.Result, error) {
			r := f.github.authorize(authURL, testCode)
			// The attempt is consumed elsewhere, as if another instance handled the redirect
			_, err := f.pending.Take(r.State)
			require.NoError(t, err)
			return r, nil
		}

		require.ErrorIs(t, f.controller.SignIn(ctx), auth.ErrMissingVerifier)
		require.Zero(t, f.github.exchangeCount())
		require.Zero(t, f.store.Writes)
	})

	t.Run("attempt expired", func(t *testing.T) {
		f := setupTestFixture(t)
		require.NoError(t, f.controller.Load(ctx))
		f.launcher.ResultFunc = func(authURL string) (browser.Result, error) {
			f.advance(20 * time.Minute)
			return f.github.authorize(authURL, testCode), nil
		}

		require.ErrorIs(t, f.controller.SignIn(ctx), auth.ErrMissingVerifier)
		require.Zero(t, f.github.exchangeCount())
	})

	t.Run("missing client id", func(t *testing.T) {
		f := setupTestFixture(t)
		c := f.newController(t, auth.TargetConfig{Target: auth.TargetNative, RedirectURI: auth.NativeRedirectURI})
		require.NoError(t, c.Load(ctx))

		require.ErrorIs(t, c.SignIn(ctx), auth.ErrMissingClientID)
		require.Empty(t, f.launcher.Launches())
	})

	t.Run("launch failure", func(t *testing.T) {
		f := setupTestFixture(t)
		require.NoError(t, f.controller.Load(ctx))
		f.launcher.ResultFunc = nil
		f.launcher.Err = errors.New("no browser")

		require.Error(t, f.controller.SignIn(ctx))
		require.Equal(t, auth.StateUnauthenticated, f.controller.Snapshot().State)
		require.Zero(t, f.pending.Len())
	})
}

func TestController_SignIn_ProfileFailureLeavesNoPartialSession(t *testing.T) {
	ctx := context.Background()

	t.Run("profile fetch fails", func(t *testing.T) {
		f := setupTestFixture(t)
		require.NoError(t, f.controller.Load(ctx))
		f.github.mu.Lock()
		f.github.profileStatus = http.StatusInternalServerError
		f.github.mu.Unlock()

		require.Error(t, f.controller.SignIn(ctx))
		require.Equal(t, auth.StateUnauthenticated, f.controller.Snapshot().State)
		_, ok := f.store.Value(tokenstore.KeyAccessToken)
		require.False(t, ok)
		_, ok = f.store.Value(tokenstore.KeyUserProfile)
		require.False(t, ok)
	})

	t.Run("profile persist fails", func(t *testing.T) {
		f := setupTestFixture(t)
		require.NoError(t, f.controller.Load(ctx))
		f.store.FailOn(storefake.OpSet, tokenstore.KeyUserProfile, errors.New("disk full"))

		require.Error(t, f.controller.SignIn(ctx))
		require.Equal(t, auth.StateUnauthenticated, f.controller.Snapshot().State)
		_, ok := f.store.Value(tokenstore.KeyAccessToken)
		require.False(t, ok)
	})

	t.Run("token persist fails", func(t *testing.T) {
		f := setupTestFixture(t)
		require.NoError(t, f.controller.Load(ctx))
		f.store.FailOn(storefake.OpSet, tokenstore.KeyAccessToken, errors.New("disk full"))

		require.Error(t, f.controller.SignIn(ctx))
		require.Equal(t, auth.StateUnauthenticated, f.controller.Snapshot().State)
		require.Empty(t, f.github.fetchedWithToken())
	})
}

func TestController_SignIn_InvalidTransitions(t *testing.T) {
	ctx := context.Background()
	f := setupTestFixture(t)

	require.ErrorIs(t, f.controller.SignIn(ctx), auth.ErrInvalidTransition)
	require.ErrorIs(t, f.controller.SignOut(ctx), auth.ErrInvalidTransition)

	require.NoError(t, f.controller.Load(ctx))
	require.ErrorIs(t, f.controller.SignOut(ctx), auth.ErrInvalidTransition)

	require.NoError(t, f.controller.SignIn(ctx))
	require.ErrorIs(t, f.controller.SignIn(ctx), auth.ErrInvalidTransition)
	require.Len(t, f.launcher.Launches(), 1)
}

func TestController_SignIn_SecondCallIsNoOp(t *testing.T) {
	ctx := context.Background()
	f := setupTestFixture(t)
	require.NoError(t, f.controller.Load(ctx))

	f.launcher.Block = make(chan struct{})
	f.launcher.Started = make(chan struct{})

	done := make(chan error, 1)
	go func() { done <- f.controller.SignIn(ctx) }()
	<-f.launcher.Started

	require.True(t, f.controller.Snapshot().SigningIn)
	require.NoError(t, f.controller.SignIn(ctx))
	require.NoError(t, f.controller.Load(ctx))
	require.Len(t, f.launcher.Launches(), 1)

	close(f.launcher.Block)
	require.NoError(t, <-done)
	require.Equal(t, auth.StateAuthenticated, f.controller.Snapshot().State)
	require.Equal(t, 1, f.github.exchangeCount())
}

func TestController_AuthenticatedAlwaysHasUser(t *testing.T) {
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		t.Run(fmt.Sprintf("run %d", i), func(t *testing.T) {
			f := setupTestFixture(t)
			require.NoError(t, f.controller.Load(ctx))

			gate := make(chan struct{})
			seen := make(chan struct{})
			f.github.mu.Lock()
			f.github.profileGate = gate
			f.github.profileSeen = seen
			f.github.mu.Unlock()

			var published []auth.Snapshot
			var profileMissing int
			var pubMu sync.Mutex
			cancel := f.controller.Watch(func(s auth.Snapshot) {
				pubMu.Lock()
				defer pubMu.Unlock()
				if s.State == auth.StateAuthenticated {
					// Profile is durable before Authenticated is observable
					if _, ok := f.store.Value(tokenstore.KeyUserProfile); !ok {
						profileMissing++
					}
				}
				published = append(published, s)
			})
			defer cancel()

			done := make(chan error, 1)
			go func() { done <- f.controller.SignIn(ctx) }()

			stop := make(chan struct{})
			var readers sync.WaitGroup
			var violations atomic.Int32
			for r := 0; r < 4; r++ {
				readers.Add(1)
				go func() {
					defer readers.Done()
					for {
						select {
						case <-stop:
							return
						default:
						}
						s := f.controller.Snapshot()
						if s.State == auth.StateAuthenticated && s.User == nil {
							violations.Add(1)
						}
						if s.State != auth.StateAuthenticated && s.User != nil {
							violations.Add(1)
						}
					}
				}()
			}

			<-seen
			// The profile fetch is in flight with the token already persisted
			require.Equal(t, auth.StateUnauthenticated, f.controller.Snapshot().State)
			_, ok := f.store.Value(tokenstore.KeyAccessToken)
			require.True(t, ok)
			time.Sleep(time.Duration(i) * time.Millisecond)
			close(gate)

			require.NoError(t, <-done)
			close(stop)
			readers.Wait()

			require.Zero(t, violations.Load())
			pubMu.Lock()
			defer pubMu.Unlock()
			require.Zero(t, profileMissing)
			for _, s := range published {
				if s.State == auth.StateAuthenticated {
					require.NotNil(t, s.User)
				}
			}
			require.Equal(t, auth.StateAuthenticated, published[len(published)-1].State)
		})
	}
}

func TestController_SignOut(t *testing.T) {
	ctx := context.Background()
	cached := &users.Profile{ID: 7, Login: "mona"}

	t.Run("clears both keys", func(t *testing.T) {
		f := setupTestFixture(t)
		seedSession(f.store, "tok_cached", cached)
		require.NoError(t, f.controller.Load(ctx))

		require.NoError(t, f.controller.SignOut(ctx))
		snap := f.controller.Snapshot()
		require.Equal(t, auth.StateUnauthenticated, snap.State)
		require.Nil(t, snap.User)
		_, ok := f.store.Value(tokenstore.KeyAccessToken)
		require.False(t, ok)
		_, ok = f.store.Value(tokenstore.KeyUserProfile)
		require.False(t, ok)
	})

	for _, failing := range []string{tokenstore.KeyAccessToken, tokenstore.KeyUserProfile} {
		t.Run("delete of "+failing+" fails", func(t *testing.T) {
			f := setupTestFixture(t)
			seedSession(f.store, "tok_cached", cached)
			require.NoError(t, f.controller.Load(ctx))
			f.store.FailOn(storefake.OpDelete, failing, errors.New("io error"))

			err := f.controller.SignOut(ctx)
			require.Error(t, err)

			var deleted []string
			for _, call := range f.store.Calls() {
				if call.Op == storefake.OpDelete {
					deleted = append(deleted, call.Key)
				}
			}
			require.ElementsMatch(t, []string{tokenstore.KeyAccessToken, tokenstore.KeyUserProfile}, deleted)

			snap := f.controller.Snapshot()
			require.Equal(t, auth.StateUnauthenticated, snap.State)
			require.Nil(t, snap.User)
		})
	}

	t.Run("api client is invalidated", func(t *testing.T) {
		f := setupTestFixture(t)
		require.NoError(t, f.controller.Load(ctx))
		require.NoError(t, f.controller.SignIn(ctx))
		require.NoError(t, f.controller.SignOut(ctx))

		_, err := f.factory.AuthenticatedUser(ctx)
		require.True(t, apiclient.IsUnauthorized(err))
	})
}

// A revoked token surfaces as a failed API call; the session itself does not react.
func TestController_RevokedTokenDoesNotForceSignOut(t *testing.T) {
	ctx := context.Background()
	f := setupTestFixture(t)
	require.NoError(t, f.controller.Load(ctx))
	require.NoError(t, f.controller.SignIn(ctx))

	f.github.revoke("tok_1")
	_, err := f.factory.AuthenticatedUser(ctx)
	require.Error(t, err)
	require.True(t, apiclient.IsUnauthorized(err))

	snap := f.controller.Snapshot()
	require.Equal(t, auth.StateAuthenticated, snap.State)
	require.NotNil(t, snap.User)
}
