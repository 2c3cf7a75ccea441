package scraperd

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"a11yhood-backend/lib/rowstore"
	"a11yhood-backend/lib/scrapers"
	"a11yhood-backend/lib/scrapers/ravelry"
	"a11yhood-backend/lib/scrapers/thingiverse"

	"github.com/go-resty/resty/v2"
	"github.com/mazen160/go-random"
)

// user-facing oauth endpoints. ravelry and thingiverse are the two sources
// whose credentials come from a code-grant flow instead of a static key.
const (
	ravelryAuthUrl      = "https://www.ravelry.com/oauth2/auth"
	ravelryTokenUrl     = "https://www.ravelry.com/oauth2/token"
	thingiverseAuthUrl  = "https://www.thingiverse.com/login/oauth/authorize"
	thingiverseTokenUrl = "https://www.thingiverse.com/login/oauth/access_token"
)

type OAuthApp struct {
	ClientId     string
	ClientSecret string
	RedirectUri  string
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	Error        string `json:"error"`
	ErrorDesc    string `json:"error_description"`
}

// AuthorizeUrl builds the url the operator opens to grant access, with a
// random state nonce to pin the callback to this request.
func AuthorizeUrl(platform string, app OAuthApp) (authUrl string, state string, err error) {
	state, err = random.String(24)
	if err != nil {
		return "", "", err
	}

	var base, scope string
	switch platform {
	case ravelry.PlatformTag:
		base = ravelryAuthUrl
		scope = "offline patternstore-read"
	case thingiverse.PlatformTag:
		base = thingiverseAuthUrl
	default:
		return "", "", fmt.Errorf("platform %q has no oauth flow", platform)
	}

	query := url.Values{}
	query.Set("client_id", app.ClientId)
	query.Set("redirect_uri", app.RedirectUri)
	query.Set("response_type", "code")
	query.Set("state", state)
	if scope != "" {
		query.Set("scope", scope)
	}
	return base + "?" + query.Encode(), state, nil
}

// ExchangeRavelryCode trades an authorization code for tokens and persists
// them under platform=ravelry.
func (s *Service) ExchangeRavelryCode(ctx context.Context, app OAuthApp, code string) error {
	return s.exchange(ctx, ravelry.PlatformTag, ravelryTokenUrl, app, map[string]string{
		"grant_type":   "authorization_code",
		"code":         code,
		"redirect_uri": app.RedirectUri,
	})
}

// ExchangeThingiverseCode trades an authorization code for an access token
// and persists it under platform=thingiverse. thingiverse tokens do not
// expire and carry no refresh token.
func (s *Service) ExchangeThingiverseCode(ctx context.Context, app OAuthApp, code string) error {
	return s.exchange(ctx, thingiverse.PlatformTag, thingiverseTokenUrl, app, map[string]string{
		"code": code,
	})
}

// RefreshRavelryToken rotates the persisted ravelry tokens using the stored
// refresh token.
func (s *Service) RefreshRavelryToken(ctx context.Context, app OAuthApp) error {
	res, err := s.store.Table(oauthConfigsTable).
		Select("refresh_token").
		Eq("platform", ravelry.PlatformTag).
		Limit(1).
		Execute(ctx)
	if err != nil {
		return err
	}
	if len(res.Data) == 0 {
		return fmt.Errorf("no persisted ravelry config to refresh")
	}
	refresh, _ := res.Data[0]["refresh_token"].(string)
	if refresh == "" {
		return fmt.Errorf("persisted ravelry config has no refresh token")
	}

	return s.exchange(ctx, ravelry.PlatformTag, ravelryTokenUrl, app, map[string]string{
		"grant_type":    "refresh_token",
		"refresh_token": refresh,
	})
}

func (s *Service) oauthHttp() *resty.Client {
	s.oauthClientOnce.Do(func() {
		if s.oauthClient == nil {
			s.oauthClient = scrapers.NewHTTPClient(scrapers.ClientOptions{
				Timeout:    time.Second * 30,
				TracerName: "scraperd/oauth",
			})
		}
	})
	return s.oauthClient
}

func (s *Service) exchange(ctx context.Context, platform, tokenUrl string, app OAuthApp, form map[string]string) error {
	client := s.oauthHttp()

	form["client_id"] = app.ClientId
	form["client_secret"] = app.ClientSecret

	res, err := client.R().
		SetContext(ctx).
		SetHeader("Accept", "application/json").
		SetFormData(form).
		Post(tokenUrl)
	if err != nil {
		return fmt.Errorf("token exchange with %s: %w", platform, err)
	}
	if res.StatusCode() != 200 {
		return fmt.Errorf("token exchange with %s: status %d", platform, res.StatusCode())
	}

	var token tokenResponse
	err = json.Unmarshal(res.Body(), &token)
	if err != nil {
		return fmt.Errorf("decode token response from %s: %w", platform, err)
	}
	if token.Error != "" {
		return fmt.Errorf("token exchange with %s: %s (%s)", platform, token.Error, token.ErrorDesc)
	}
	if token.AccessToken == "" {
		return fmt.Errorf("token exchange with %s returned no access token", platform)
	}

	return s.saveTokens(ctx, platform, app, token)
}

func (s *Service) saveTokens(ctx context.Context, platform string, app OAuthApp, token tokenResponse) error {
	row := rowstore.Row{
		"access_token":  token.AccessToken,
		"client_id":     app.ClientId,
		"client_secret": app.ClientSecret,
		"updated_at":    time.Now().UTC().Format(time.RFC3339),
	}
	if token.RefreshToken != "" {
		row["refresh_token"] = token.RefreshToken
	}
	if token.ExpiresIn > 0 {
		expiry := time.Now().UTC().Add(time.Duration(token.ExpiresIn) * time.Second)
		row["token_expiry"] = expiry.Format(time.RFC3339)
	}

	res, err := s.store.Table(oauthConfigsTable).
		Select("platform").
		Eq("platform", platform).
		Limit(1).
		Execute(ctx)
	if err != nil {
		return err
	}

	if len(res.Data) > 0 {
		_, err = s.store.Table(oauthConfigsTable).
			Update(row).
			Eq("platform", platform).
			Execute(ctx)
	} else {
		row["platform"] = platform
		_, err = s.store.Table(oauthConfigsTable).
			Insert(row).
			Execute(ctx)
	}
	if err != nil {
		return fmt.Errorf("persist %s tokens: %w", platform, err)
	}
	return nil
}
