package scraperd

import (
	"context"
	"testing"

	"a11yhood-backend/lib/rowstore"
	"a11yhood-backend/lib/scrapers"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/require"
)

func newOauthService(t *testing.T) (*Service, rowstore.Store) {
	res, cleanup := setup(t)
	t.Cleanup(cleanup)

	svc, err := NewService(res.Store, DefaultRegistry(), Options{})
	require.NoError(t, err)

	svc.oauthClient = scrapers.NewHTTPClient(scrapers.ClientOptions{})
	httpmock.ActivateNonDefault(svc.oauthClient.GetClient())
	t.Cleanup(httpmock.DeactivateAndReset)
	return svc, res.Store
}

func TestExchangeRavelryCode(t *testing.T) {
	svc, store := newOauthService(t)
	ctx := context.Background()

	httpmock.RegisterResponder("POST", ravelryTokenUrl,
		httpmock.NewStringResponder(200,
			`{"access_token": "at-1", "refresh_token": "rt-1", "expires_in": 3600}`))

	app := OAuthApp{ClientId: "cid", ClientSecret: "secret", RedirectUri: "https://a11yhood.org/cb"}
	err := svc.ExchangeRavelryCode(ctx, app, "auth-code")
	require.NoError(t, err)

	rows, err := store.Table("oauth_configs").
		Select("access_token", "refresh_token", "token_expiry").
		Eq("platform", "ravelry").
		Execute(ctx)
	require.NoError(t, err)
	require.Len(t, rows.Data, 1)
	require.Equal(t, "at-1", rows.Data[0]["access_token"])
	require.Equal(t, "rt-1", rows.Data[0]["refresh_token"])
	require.NotEmpty(t, rows.Data[0]["token_expiry"])

	// the run path now resolves the persisted token
	token, err := svc.AccessToken(ctx, "ravelry")
	require.NoError(t, err)
	require.Equal(t, "at-1", token)
}

func TestExchangeThingiverseCode(t *testing.T) {
	svc, store := newOauthService(t)
	ctx := context.Background()

	httpmock.RegisterResponder("POST", thingiverseTokenUrl,
		httpmock.NewStringResponder(200, `{"access_token": "tv-token"}`))

	err := svc.ExchangeThingiverseCode(ctx, OAuthApp{ClientId: "cid", ClientSecret: "secret"}, "code")
	require.NoError(t, err)

	rows, err := store.Table("oauth_configs").
		Select("access_token").
		Eq("platform", "thingiverse").
		Execute(ctx)
	require.NoError(t, err)
	require.Len(t, rows.Data, 1)
	require.Equal(t, "tv-token", rows.Data[0]["access_token"])
}

func TestExchangeUpstreamError(t *testing.T) {
	svc, _ := newOauthService(t)

	httpmock.RegisterResponder("POST", ravelryTokenUrl,
		httpmock.NewStringResponder(200,
			`{"error": "invalid_grant", "error_description": "code expired"}`))

	err := svc.ExchangeRavelryCode(context.Background(), OAuthApp{}, "stale-code")
	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid_grant")
}

func TestRefreshRavelryToken(t *testing.T) {
	svc, store := newOauthService(t)
	ctx := context.Background()

	_, err := store.Table("oauth_configs").
		Insert(rowstore.Row{
			"platform":      "ravelry",
			"access_token":  "old-at",
			"refresh_token": "old-rt",
		}).
		Execute(ctx)
	require.NoError(t, err)

	httpmock.RegisterResponder("POST", ravelryTokenUrl,
		httpmock.NewStringResponder(200,
			`{"access_token": "new-at", "refresh_token": "new-rt", "expires_in": 3600}`))

	err = svc.RefreshRavelryToken(ctx, OAuthApp{ClientId: "cid", ClientSecret: "secret"})
	require.NoError(t, err)

	rows, err := store.Table("oauth_configs").
		Select("access_token", "refresh_token").
		Eq("platform", "ravelry").
		Execute(ctx)
	require.NoError(t, err)
	require.Len(t, rows.Data, 1)
	require.Equal(t, "new-at", rows.Data[0]["access_token"])
	require.Equal(t, "new-rt", rows.Data[0]["refresh_token"])
}

func TestRefreshWithoutPersistedConfig(t *testing.T) {
	svc, _ := newOauthService(t)

	err := svc.RefreshRavelryToken(context.Background(), OAuthApp{})
	require.Error(t, err)
	require.Contains(t, err.Error(), "no persisted ravelry config")
}
