package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Surfinbird-star/aas2/internal/model"
)

const documentColumns = `id, user_id, filename, mime_type, size_bytes, bucket, storage_path, created_at`

func scanDocument(row interface{ Scan(...any) error }) (*model.Document, error) {
	d := &model.Document{}
	err := row.Scan(&d.ID, &d.UserID, &d.Filename, &d.MIMEType, &d.Size,
		&d.Ref.Bucket, &d.Ref.Path, &d.CreatedAt)
	if err != nil {
		return nil, err
	}
	return d, nil
}

// CreateDocument records an uploaded document. A second document for the same
// user fails with model.ErrDocumentExists.
func CreateDocument(ctx context.Context, db *sql.DB, d *model.Document) (*model.Document, error) {
	result, err := db.ExecContext(ctx,
		`INSERT INTO user_documents (user_id, filename, mime_type, size_bytes, bucket, storage_path)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		d.UserID, d.Filename, d.MIMEType, d.Size, d.Ref.Bucket, d.Ref.Path,
	)
	if isUniqueViolation(err) {
		return nil, model.ErrDocumentExists
	}
	if err != nil {
		return nil, fmt.Errorf("creating document: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting document id: %w", err)
	}
	return GetDocument(ctx, db, id)
}

// GetDocument returns a document by ID.
func GetDocument(ctx context.Context, db *sql.DB, id int64) (*model.Document, error) {
	d, err := scanDocument(db.QueryRowContext(ctx,
		`SELECT `+documentColumns+` FROM user_documents WHERE id = ?`, id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting document: %w", err)
	}
	return d, nil
}

// ListDocumentsByUser returns a user's documents, newest first.
func ListDocumentsByUser(ctx context.Context, db *sql.DB, userID string) ([]model.Document, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+documentColumns+` FROM user_documents WHERE user_id = ?
		 ORDER BY created_at DESC, id DESC`, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	defer rows.Close()

	var docs []model.Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		docs = append(docs, *d)
	}
	return docs, rows.Err()
}

// DeleteDocument removes a document row. Deleting a missing row is not an error.
func DeleteDocument(ctx context.Context, db *sql.DB, id int64) error {
	if _, err := db.ExecContext(ctx, `DELETE FROM user_documents WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting document: %w", err)
	}
	return nil
}
