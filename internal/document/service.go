// Package document stores the identity documents users upload. Each user may
// keep one document; its content lives in object storage and the database
// row holds a bucket and path reference.
package document

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/Surfinbird-star/aas2/internal/metrics"
	"github.com/Surfinbird-star/aas2/internal/model"
	"github.com/Surfinbird-star/aas2/internal/objstore"
	"github.com/Surfinbird-star/aas2/internal/store"
)

// MaxSize is the default upload limit, 5 MiB.
const MaxSize int64 = 5 << 20

// Allowed maps accepted file extensions to their canonical MIME type.
var Allowed = map[string]string{
	".pdf":  "application/pdf",
	".doc":  "application/msword",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
}

// AcceptAttr is the value for an HTML file input's accept attribute.
const AcceptAttr = ".pdf,.doc,.docx,.jpg,.jpeg,.png"

// Rejection reasons, also used as metric labels.
const (
	RejectEmpty   = "empty"
	RejectTooBig  = "too_large"
	RejectType    = "type"
	RejectNoOwner = "no_owner"
)

// Upload is a file received from a user.
type Upload struct {
	UserID   string
	Filename string
	MIMEType string
	Size     int64
	Body     io.Reader
}

// Service manages user documents.
type Service struct {
	db      *sql.DB
	bucket  objstore.Bucket
	log     *slog.Logger
	maxSize int64
	now     func() time.Time
}

// NewService creates a document service. A maxSize of 0 selects MaxSize.
func NewService(db *sql.DB, bucket objstore.Bucket, maxSize int64, log *slog.Logger) *Service {
	if maxSize <= 0 {
		maxSize = MaxSize
	}
	if log == nil {
		log = slog.Default()
	}
	return &Service{db: db, bucket: bucket, log: log, maxSize: maxSize, now: time.Now}
}

// MaxSize returns the configured upload limit.
func (s *Service) MaxSize() int64 { return s.maxSize }

func baseName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = strings.TrimSpace(path.Base(name))
	if name == "." || name == "/" {
		return ""
	}
	return name
}

func reject(reason, field, message string) error {
	metrics.DocumentsRejected.WithLabelValues(reason).Inc()
	return model.NewValidationError(field, message)
}

// Validate checks an upload's owner, size and type. It returns the canonical
// MIME type for the file.
func (s *Service) Validate(u Upload) (string, error) {
	if u.UserID == "" {
		return "", reject(RejectNoOwner, "user_id", "required")
	}
	if u.Size <= 0 {
		return "", reject(RejectEmpty, "file", "file is empty")
	}
	if u.Size > s.maxSize {
		return "", reject(RejectTooBig, "file", fmt.Sprintf("file exceeds %d MB", s.maxSize>>20))
	}

	name := baseName(u.Filename)
	mime, ok := Allowed[strings.ToLower(path.Ext(name))]
	if !ok {
		return "", reject(RejectType, "file", "allowed types: PDF, DOC, DOCX, JPG, PNG")
	}

	declared := strings.ToLower(strings.TrimSpace(strings.Split(u.MIMEType, ";")[0]))
	if declared != "" && declared != "application/octet-stream" && declared != mime {
		return "", reject(RejectType, "file", "file type does not match its extension")
	}
	return mime, nil
}

// safeName reduces a filename to characters that are safe in object keys.
func safeName(name string) string {
	ext := strings.ToLower(path.Ext(name))
	stem := strings.TrimSuffix(name, path.Ext(name))

	var b strings.Builder
	for _, r := range stem {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	out := strings.Trim(b.String(), "_")
	if out == "" {
		out = "document"
	}
	return out + ext
}

// objectKey builds the per-user storage path of a document.
func (s *Service) objectKey(userID, filename string) string {
	return fmt.Sprintf("%s/%d_%s", userID, s.now().UnixMilli(), safeName(filename))
}

// Upload validates and stores a document. The object is written before the
// row; when the row cannot be written the object is removed again.
func (s *Service) Upload(ctx context.Context, u Upload) (*model.Document, error) {
	mime, err := s.Validate(u)
	if err != nil {
		return nil, err
	}

	// The declared size is not trusted; read at most one byte past the limit.
	data, err := io.ReadAll(io.LimitReader(u.Body, s.maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("reading upload: %w", err)
	}
	if int64(len(data)) > s.maxSize {
		return nil, reject(RejectTooBig, "file", fmt.Sprintf("file exceeds %d MB", s.maxSize>>20))
	}
	if len(data) == 0 {
		return nil, reject(RejectEmpty, "file", "file is empty")
	}

	existing, err := store.ListDocumentsByUser(ctx, s.db, u.UserID)
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		return nil, model.ErrDocumentExists
	}

	filename := baseName(u.Filename)
	key := s.objectKey(u.UserID, filename)
	if err := s.bucket.Put(ctx, key, bytes.NewReader(data), int64(len(data)), mime); err != nil {
		return nil, fmt.Errorf("storing document: %w", err)
	}

	doc, err := store.CreateDocument(ctx, s.db, &model.Document{
		UserID:   u.UserID,
		Filename: filename,
		MIMEType: mime,
		Size:     int64(len(data)),
		Ref:      model.ObjectRef{Bucket: s.bucket.Name(), Path: key},
	})
	if err != nil {
		if derr := s.bucket.Delete(context.WithoutCancel(ctx), key); derr != nil {
			s.log.Error("removing orphaned document object", "key", key, "error", derr)
		}
		return nil, err
	}

	metrics.DocumentsUploaded.Inc()
	s.log.Info("document uploaded", "user", u.UserID, "document", doc.ID, "size", doc.Size)
	return doc, nil
}

// Get returns document metadata.
func (s *Service) Get(ctx context.Context, id int64) (*model.Document, error) {
	doc, err := store.GetDocument(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, fmt.Errorf("document %d: %w", id, model.ErrNotFound)
	}
	return doc, nil
}

// ForUser lists a user's documents.
func (s *Service) ForUser(ctx context.Context, userID string) ([]model.Document, error) {
	docs, err := store.ListDocumentsByUser(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}
	if docs == nil {
		docs = []model.Document{}
	}
	return docs, nil
}

// Open returns a document and a reader over its content. A missing row or a
// missing object both yield model.ErrNotFound.
func (s *Service) Open(ctx context.Context, id int64) (*model.Document, io.ReadCloser, error) {
	doc, err := s.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	rc, err := s.bucket.Open(ctx, doc.Ref.Path)
	if errors.Is(err, objstore.ErrNotFound) {
		return nil, nil, fmt.Errorf("document %d content: %w", id, model.ErrNotFound)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("opening document %d: %w", id, err)
	}
	return doc, rc, nil
}

// Delete removes a document and its object. Deleting a document that does
// not exist succeeds.
func (s *Service) Delete(ctx context.Context, id int64) error {
	doc, err := store.GetDocument(ctx, s.db, id)
	if err != nil {
		return err
	}
	if doc == nil {
		return nil
	}

	if err := s.bucket.Delete(ctx, doc.Ref.Path); err != nil {
		return fmt.Errorf("deleting document object: %w", err)
	}
	if err := store.DeleteDocument(ctx, s.db, id); err != nil {
		return err
	}

	metrics.DocumentsDeleted.Inc()
	s.log.Info("document deleted", "user", doc.UserID, "document", id)
	return nil
}
