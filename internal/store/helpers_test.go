package store

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Surfinbird-star/aas2/internal/model"
)

func seedProfile(t *testing.T, database *sql.DB, first, last, email string) *model.Profile {
	t.Helper()
	p, err := CreateProfile(context.Background(), database, "", model.ProfileInput{
		FirstName: first,
		LastName:  last,
		Email:     email,
	}, "hash", false)
	require.NoError(t, err)
	return p
}

func seedProduct(t *testing.T, database *sql.DB, categoryName, name, unit string) *model.Product {
	t.Helper()
	ctx := context.Background()

	cats, err := ListCategories(ctx, database)
	require.NoError(t, err)
	var catID int64
	for _, c := range cats {
		if c.Name == categoryName {
			catID = c.ID
		}
	}
	if catID == 0 {
		c, err := CreateCategory(ctx, database, categoryName)
		require.NoError(t, err)
		catID = c.ID
	}

	p, err := CreateProduct(ctx, database, model.ProductInput{Name: name, Unit: unit, CategoryID: catID})
	require.NoError(t, err)
	return p
}
