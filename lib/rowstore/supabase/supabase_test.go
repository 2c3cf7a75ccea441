package supabase

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"testing"

	"a11yhood-backend/lib/rowstore"

	"github.com/go-resty/resty/v2"
	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/require"
)

const baseUrl = "https://project.supabase.co/rest/v1"

func newTestStore(t *testing.T) Store {
	client := resty.New()
	client.SetBaseURL(baseUrl)
	httpmock.ActivateNonDefault(client.GetClient())
	t.Cleanup(httpmock.DeactivateAndReset)
	return NewWithClient(client)
}

func TestSelectBuildsPostgrestFilters(t *testing.T) {
	store := newTestStore(t)

	var captured *http.Request
	httpmock.RegisterResponder("GET", baseUrl+"/products",
		func(req *http.Request) (*http.Response, error) {
			captured = req
			return httpmock.NewJsonResponse(200, []map[string]any{
				{"id": "1", "name": "Screen Reader"},
			})
		})

	res, err := store.Table("products").
		Select("id", "name").
		Eq("source", "GitHub").
		ILike("name", "%reader%").
		Order("created_at", true).
		Limit(5).
		Execute(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Data, 1)
	require.Equal(t, "Screen Reader", res.Data[0]["name"])

	params := captured.URL.Query()
	require.Equal(t, "id,name", params.Get("select"))
	require.Equal(t, "eq.GitHub", params.Get("source"))
	require.Equal(t, "ilike.*reader*", params.Get("name"))
	require.Equal(t, "created_at.desc", params.Get("order"))
	require.Equal(t, "5", params.Get("limit"))
}

func TestSelectIn(t *testing.T) {
	store := newTestStore(t)

	var captured *http.Request
	httpmock.RegisterResponder("GET", baseUrl+"/products",
		func(req *http.Request) (*http.Response, error) {
			captured = req
			return httpmock.NewJsonResponse(200, []map[string]any{})
		})

	res, err := store.Table("products").
		Select("id").
		In("id", "1", "2", "3").
		Execute(context.Background())
	require.NoError(t, err)
	require.NotNil(t, res.Data)
	require.Empty(t, res.Data)
	require.Equal(t, "in.(1,2,3)", captured.URL.Query().Get("id"))
}

func TestSelectInQuotesReservedCharacters(t *testing.T) {
	store := newTestStore(t)

	var captured *http.Request
	httpmock.RegisterResponder("GET", baseUrl+"/products",
		func(req *http.Request) (*http.Response, error) {
			captured = req
			return httpmock.NewJsonResponse(200, []map[string]any{})
		})

	_, err := store.Table("products").
		Select("id").
		In("name", "plain", "reader, braille", `the "best" one`).
		Execute(context.Background())
	require.NoError(t, err)
	require.Equal(t,
		`in.(plain,"reader, braille","the \"best\" one")`,
		captured.URL.Query().Get("name"))
}

func TestInsertPostsRows(t *testing.T) {
	store := newTestStore(t)

	var body []map[string]any
	var prefer string
	httpmock.RegisterResponder("POST", baseUrl+"/products",
		func(req *http.Request) (*http.Response, error) {
			prefer = req.Header.Get("Prefer")
			raw, err := io.ReadAll(req.Body)
			require.NoError(t, err)
			require.NoError(t, json.Unmarshal(raw, &body))
			return httpmock.NewJsonResponse(201, body)
		})

	res, err := store.Table("products").
		Insert(rowstore.Row{"id": "1", "name": "Adaptive Switch", "tags": []string{"switch"}}).
		Execute(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Data, 1)

	require.Equal(t, "return=representation", prefer)
	require.Len(t, body, 1)
	require.Equal(t, "Adaptive Switch", body[0]["name"])
	// tags travel as a real JSON array, postgres holds them natively
	require.Equal(t, []any{"switch"}, body[0]["tags"])
}

func TestUpdatePatchesWithFilter(t *testing.T) {
	store := newTestStore(t)

	var captured *http.Request
	var patch map[string]any
	httpmock.RegisterResponder("PATCH", baseUrl+"/products",
		func(req *http.Request) (*http.Response, error) {
			captured = req
			raw, err := io.ReadAll(req.Body)
			require.NoError(t, err)
			require.NoError(t, json.Unmarshal(raw, &patch))
			return httpmock.NewJsonResponse(200, []map[string]any{})
		})

	_, err := store.Table("products").
		Update(rowstore.Row{"description": "updated"}).
		Eq("id", "1").
		Execute(context.Background())
	require.NoError(t, err)
	require.Equal(t, "eq.1", captured.URL.Query().Get("id"))
	require.Equal(t, "updated", patch["description"])
}

func TestErrorStatusSurfacesBody(t *testing.T) {
	store := newTestStore(t)

	httpmock.RegisterResponder("GET", baseUrl+"/products",
		httpmock.NewStringResponder(401, `{"message": "JWT expired"}`))

	_, err := store.Table("products").Select("id").Execute(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "status 401")
	require.Contains(t, err.Error(), "JWT expired")
}
