package scrapers

import (
	"context"
	"fmt"
	"time"

	"a11yhood-backend/lib/catalog"
	"a11yhood-backend/lib/rowstore"

	"github.com/google/uuid"
)

const productsTable = "products"

// ExistsByUrl looks up an existing product by its canonical url and returns
// its row id.
func ExistsByUrl(ctx context.Context, store rowstore.Store, url string) (string, bool, error) {
	res, err := store.Table(productsTable).
		Select("id").
		Eq("url", url).
		Limit(1).
		Execute(ctx)
	if err != nil {
		return "", false, err
	}
	if len(res.Data) == 0 {
		return "", false, nil
	}
	id, _ := res.Data[0]["id"].(string)
	return id, id != "", nil
}

// Upsert runs the exists-then-create-or-update flow for one normalized
// product. the patch on the update path comes from Product.Row, which omits
// empty optional fields, so a rescrape never nulls out values a previous run
// filled in. returns whether a new row was created.
func Upsert(ctx context.Context, store rowstore.Store, p catalog.Product) (bool, error) {
	err := p.Validate()
	if err != nil {
		return false, err
	}

	id, exists, err := ExistsByUrl(ctx, store, p.Url)
	if err != nil {
		return false, fmt.Errorf("existence check for %s: %w", p.Url, err)
	}

	if exists {
		patch := p.Row()
		patch["updated_at"] = time.Now().UTC().Format(time.RFC3339)
		_, err = store.Table(productsTable).
			Update(patch).
			Eq("id", id).
			Execute(ctx)
		if err != nil {
			return false, fmt.Errorf("update product %s: %w", p.Url, err)
		}
		return false, nil
	}

	row := p.Row()
	if p.ID != "" {
		row["id"] = p.ID
	} else {
		row["id"] = uuid.NewString()
	}
	row["created_at"] = time.Now().UTC().Format(time.RFC3339)
	_, err = store.Table(productsTable).
		Insert(row).
		Execute(ctx)
	if err != nil {
		return false, fmt.Errorf("create product %s: %w", p.Url, err)
	}
	return true, nil
}
