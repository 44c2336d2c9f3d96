package apiclient_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/jrsteele09/go-github-auth/apiclient"
	"github.com/jrsteele09/go-github-auth/tokenstore"
	"github.com/jrsteele09/go-github-auth/tokenstore/storefake"
	"github.com/stretchr/testify/require"
)

type apiFixture struct {
	store   *storefake.FakeStore
	factory *apiclient.Factory

	mu          sync.Mutex
	authHeaders []string
}

func (f *apiFixture) headers() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.authHeaders...)
}

func setupTestFixture(t *testing.T) *apiFixture {
	t.Helper()
	fx := &apiFixture{store: storefake.NewFakeStore()}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /user", func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		fx.mu.Lock()
		fx.authHeaders = append(fx.authHeaders, auth)
		fx.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		if auth != "Bearer tok_1" {
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"message": "Bad credentials"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":           1,
			"login":        "octocat",
			"name":         "The Octocat",
			"email":        nil,
			"avatar_url":   "https://avatars.githubusercontent.com/u/583231",
			"bio":          nil,
			"company":      "@github",
			"location":     "San Francisco",
			"blog":         "https://github.blog",
			"public_repos": 8,
			"followers":    20,
			"following":    9,
			"html_url":     "https://github.com/octocat",
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	factory, err := apiclient.NewFactory(fx.store, apiclient.WithBaseURL(srv.URL))
	require.NoError(t, err)
	fx.factory = factory
	return fx
}

func TestNewFactory_RequiresStore(t *testing.T) {
	_, err := apiclient.NewFactory(nil)
	require.Error(t, err)
}

func TestFactory_AuthenticatedUser(t *testing.T) {
	ctx := context.Background()
	fx := setupTestFixture(t)
	fx.store.Seed(tokenstore.KeyAccessToken, "tok_1")

	p, err := fx.factory.AuthenticatedUser(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), p.ID)
	require.Equal(t, "octocat", p.Login)
	require.Equal(t, "The Octocat", *p.Name)
	require.Nil(t, p.Email)
	require.Nil(t, p.Bio)
	require.Equal(t, "San Francisco", *p.Location)
	require.Equal(t, 8, p.PublicRepos)
	require.Equal(t, 20, p.Followers)
	require.Equal(t, 9, p.Following)
	require.Equal(t, "https://github.com/octocat", p.HTMLURL)
	require.Equal(t, []string{"Bearer tok_1"}, fx.headers())
}

func TestFactory_ClientIsCached(t *testing.T) {
	ctx := context.Background()
	fx := setupTestFixture(t)
	fx.store.Seed(tokenstore.KeyAccessToken, "tok_1")

	c1, err := fx.factory.Client(ctx)
	require.NoError(t, err)
	c2, err := fx.factory.Client(ctx)
	require.NoError(t, err)
	require.Same(t, c1, c2)
	require.Equal(t, 1, fx.factory.Builds())
}

func TestFactory_InvalidatedOnTokenChange(t *testing.T) {
	ctx := context.Background()

	t.Run("no token then SetToken", func(t *testing.T) {
		fx := setupTestFixture(t)

		_, err := fx.factory.AuthenticatedUser(ctx)
		require.Error(t, err)
		require.True(t, apiclient.IsUnauthorized(err))

		require.NoError(t, fx.factory.SetToken(ctx, "tok_1"))
		p, err := fx.factory.AuthenticatedUser(ctx)
		require.NoError(t, err)
		require.Equal(t, "octocat", p.Login)

		require.Equal(t, []string{"", "Bearer tok_1"}, fx.headers())
		require.Equal(t, 2, fx.factory.Builds())
	})

	t.Run("ClearToken drops the credential", func(t *testing.T) {
		fx := setupTestFixture(t)
		require.NoError(t, fx.factory.SetToken(ctx, "tok_1"))
		_, err := fx.factory.AuthenticatedUser(ctx)
		require.NoError(t, err)

		require.NoError(t, fx.factory.ClearToken(ctx))
		_, ok := fx.store.Value(tokenstore.KeyAccessToken)
		require.False(t, ok)

		_, err = fx.factory.AuthenticatedUser(ctx)
		require.True(t, apiclient.IsUnauthorized(err))
		require.Equal(t, []string{"Bearer tok_1", ""}, fx.headers())
	})

	t.Run("invalidated even when the store fails", func(t *testing.T) {
		fx := setupTestFixture(t)
		fx.store.Seed(tokenstore.KeyAccessToken, "tok_1")
		_, err := fx.factory.Client(ctx)
		require.NoError(t, err)

		fx.store.FailOn(storefake.OpDelete, tokenstore.KeyAccessToken, errors.New("disk full"))
		require.Error(t, fx.factory.ClearToken(ctx))

		_, err = fx.factory.Client(ctx)
		require.NoError(t, err)
		require.Equal(t, 2, fx.factory.Builds())
	})
}

func TestFactory_HTTPClientCarriesBearer(t *testing.T) {
	ctx := context.Background()
	fx := setupTestFixture(t)
	fx.store.Seed(tokenstore.KeyAccessToken, "tok_1")

	c, err := fx.factory.Client(ctx)
	require.NoError(t, err)
	httpClient, err := fx.factory.HTTPClient(ctx)
	require.NoError(t, err)

	resp, err := httpClient.Get(c.BaseURL.String() + "user")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, []string{"Bearer tok_1"}, fx.headers())
}

func TestFactory_StoreReadFailure(t *testing.T) {
	fx := setupTestFixture(t)
	fx.store.FailOn(storefake.OpGet, tokenstore.KeyAccessToken, errors.New("keychain locked"))

	_, err := fx.factory.Client(context.Background())
	require.Error(t, err)
}

func TestIsUnauthorized(t *testing.T) {
	require.False(t, apiclient.IsUnauthorized(nil))
	require.False(t, apiclient.IsUnauthorized(errors.New("boom")))
}
