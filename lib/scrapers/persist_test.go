package scrapers

import (
	"context"
	"testing"
	"time"

	"a11yhood-backend/lib/catalog"
	"a11yhood-backend/lib/testutil"
	scraperdb "a11yhood-backend/services/scraperd/db"

	"github.com/stretchr/testify/require"
)

func sampleProduct() catalog.Product {
	return catalog.Product{
		Name:        "Adaptive Switch",
		Description: "A large accessible switch.",
		Source:      "GitHub",
		Url:         "https://github.com/org/adaptive-switch",
		Image:       "https://example.com/switch.png",
		Type:        "Software",
		ExternalId:  "42",
		Tags:        []string{"switch-access"},
		ScrapedAt:   time.Now().UTC(),
	}
}

func TestUpsertCreatesThenUpdates(t *testing.T) {
	res, cleanup := testutil.SetupService(t, testutil.ServiceParams{
		Name:     "scrapers",
		DbSchema: scraperdb.Schema,
	})
	defer cleanup()
	ctx := context.Background()

	created, err := Upsert(ctx, res.Store, sampleProduct())
	require.NoError(t, err)
	require.True(t, created)

	_, exists, err := ExistsByUrl(ctx, res.Store, "https://github.com/org/adaptive-switch")
	require.NoError(t, err)
	require.True(t, exists)

	// same url again must update in place
	p := sampleProduct()
	p.Description = "An even larger accessible switch."
	created, err = Upsert(ctx, res.Store, p)
	require.NoError(t, err)
	require.False(t, created)

	rows, err := res.Store.Table("products").
		Select("id", "description").
		Eq("url", p.Url).
		Execute(ctx)
	require.NoError(t, err)
	require.Len(t, rows.Data, 1)
	require.Equal(t, "An even larger accessible switch.", rows.Data[0]["description"])
}

func TestUpsertUpdateKeepsFilledFields(t *testing.T) {
	res, cleanup := testutil.SetupService(t, testutil.ServiceParams{
		Name:     "scrapers",
		DbSchema: scraperdb.Schema,
	})
	defer cleanup()
	ctx := context.Background()

	_, err := Upsert(ctx, res.Store, sampleProduct())
	require.NoError(t, err)

	// a later scrape with sparser data must not null out what the first
	// scrape filled in
	sparse := sampleProduct()
	sparse.Description = ""
	sparse.Image = ""
	sparse.Tags = nil
	_, err = Upsert(ctx, res.Store, sparse)
	require.NoError(t, err)

	rows, err := res.Store.Table("products").
		Select("description", "image").
		Eq("url", sparse.Url).
		Execute(ctx)
	require.NoError(t, err)
	require.Len(t, rows.Data, 1)
	require.Equal(t, "A large accessible switch.", rows.Data[0]["description"])
	require.Equal(t, "https://example.com/switch.png", rows.Data[0]["image"])
}

func TestUpsertRejectsInvalidProduct(t *testing.T) {
	res, cleanup := testutil.SetupService(t, testutil.ServiceParams{
		Name:     "scrapers",
		DbSchema: scraperdb.Schema,
	})
	defer cleanup()

	p := sampleProduct()
	p.Url = ""
	_, err := Upsert(context.Background(), res.Store, p)
	require.Error(t, err)
}

func TestExistsByUrlMissing(t *testing.T) {
	res, cleanup := testutil.SetupService(t, testutil.ServiceParams{
		Name:     "scrapers",
		DbSchema: scraperdb.Schema,
	})
	defer cleanup()

	_, exists, err := ExistsByUrl(context.Background(), res.Store, "https://example.com/nothing")
	require.NoError(t, err)
	require.False(t, exists)
}
