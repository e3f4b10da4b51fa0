package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Surfinbird-star/aas2/internal/db"
	"github.com/Surfinbird-star/aas2/internal/model"
)

func TestDocumentsOnePerUser(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	user := seedProfile(t, database, "A", "B", "a@example.com")

	doc := &model.Document{
		UserID:   user.ID,
		Filename: "passport.pdf",
		MIMEType: "application/pdf",
		Size:     1024,
		Ref:      model.ObjectRef{Bucket: "user_documents", Path: user.ID + "/1_passport.pdf"},
	}
	created, err := CreateDocument(ctx, database, doc)
	require.NoError(t, err)
	assert.Equal(t, "passport.pdf", created.Filename)
	assert.Equal(t, "user_documents", created.Ref.Bucket)

	_, err = CreateDocument(ctx, database, doc)
	assert.ErrorIs(t, err, model.ErrDocumentExists)

	docs, err := ListDocumentsByUser(ctx, database, user.ID)
	require.NoError(t, err)
	assert.Len(t, docs, 1)

	require.NoError(t, DeleteDocument(ctx, database, created.ID))
	require.NoError(t, DeleteDocument(ctx, database, created.ID))

	got, err := GetDocument(ctx, database, created.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}
