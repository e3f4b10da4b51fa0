package api

import (
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/Surfinbird-star/aas2/internal/imaging"
	"github.com/Surfinbird-star/aas2/internal/model"
	"github.com/Surfinbird-star/aas2/internal/objstore"
	"github.com/Surfinbird-star/aas2/internal/store"
)

// CatalogHandler handles category and product endpoints.
type CatalogHandler struct {
	DB     *sql.DB
	Images objstore.Bucket
}

type categoryRequest struct {
	Name string `json:"name"`
}

// ListCategories handles GET /api/categories.
func (h *CatalogHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := store.ListCategories(r.Context(), h.DB)
	if err != nil {
		writeError(w, r, err, "failed to list categories")
		return
	}
	if cats == nil {
		cats = []model.Category{}
	}
	jsonResponse(w, http.StatusOK, cats)
}

// CreateCategory handles POST /api/categories.
func (h *CatalogHandler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		writeError(w, r, model.NewValidationError("name", "required"), "")
		return
	}

	c, err := store.CreateCategory(r.Context(), h.DB, name)
	if err != nil {
		writeError(w, r, err, "failed to create category")
		return
	}
	jsonResponse(w, http.StatusCreated, c)
}

// UpdateCategory handles PUT /api/categories/{id}.
func (h *CatalogHandler) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid category id")
		return
	}
	var req categoryRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		writeError(w, r, model.NewValidationError("name", "required"), "")
		return
	}

	if err := store.UpdateCategory(r.Context(), h.DB, id, name); err != nil {
		writeError(w, r, err, "failed to update category")
		return
	}
	c, err := store.GetCategory(r.Context(), h.DB, id)
	if err != nil {
		writeError(w, r, err, "failed to get category")
		return
	}
	jsonResponse(w, http.StatusOK, c)
}

// DeleteCategory handles DELETE /api/categories/{id}. Categories that still
// have products are refused with 409.
func (h *CatalogHandler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid category id")
		return
	}
	if err := store.DeleteCategory(r.Context(), h.DB, id); err != nil {
		writeError(w, r, err, "failed to delete category")
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"message": "category deleted"})
}

// ListProducts handles GET /api/products[?category_id=].
func (h *CatalogHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	var categoryID int64
	if raw := r.URL.Query().Get("category_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			jsonError(w, http.StatusBadRequest, "invalid category id")
			return
		}
		categoryID = id
	}

	products, err := store.ListProducts(r.Context(), h.DB, categoryID)
	if err != nil {
		writeError(w, r, err, "failed to list products")
		return
	}
	if products == nil {
		products = []model.Product{}
	}
	jsonResponse(w, http.StatusOK, products)
}

// GetProduct handles GET /api/products/{id}.
func (h *CatalogHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid product id")
		return
	}
	p, err := store.GetProduct(r.Context(), h.DB, id)
	if err != nil {
		writeError(w, r, err, "failed to get product")
		return
	}
	if p == nil {
		jsonError(w, http.StatusNotFound, "product not found")
		return
	}
	jsonResponse(w, http.StatusOK, p)
}

func decodeProduct(r *http.Request) (model.ProductInput, error) {
	var in model.ProductInput
	if err := decodeJSON(r, &in); err != nil {
		return in, model.NewValidationError("body", "invalid request body")
	}
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	in.Unit = strings.TrimSpace(in.Unit)
	in.ImageURL = strings.TrimSpace(in.ImageURL)
	return in, in.Validate()
}

// CreateProduct handles POST /api/products.
func (h *CatalogHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	in, err := decodeProduct(r)
	if err != nil {
		writeError(w, r, err, "")
		return
	}
	p, err := store.CreateProduct(r.Context(), h.DB, in)
	if err != nil {
		writeError(w, r, err, "failed to create product")
		return
	}
	jsonResponse(w, http.StatusCreated, p)
}

// UpdateProduct handles PUT /api/products/{id}.
func (h *CatalogHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid product id")
		return
	}
	in, err := decodeProduct(r)
	if err != nil {
		writeError(w, r, err, "")
		return
	}
	if err := store.UpdateProduct(r.Context(), h.DB, id, in); err != nil {
		writeError(w, r, err, "failed to update product")
		return
	}
	h.GetProduct(w, r)
}

// DeleteProduct handles DELETE /api/products/{id}. The stored image is
// removed with the product.
func (h *CatalogHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid product id")
		return
	}
	p, err := store.GetProduct(r.Context(), h.DB, id)
	if err != nil {
		writeError(w, r, err, "failed to get product")
		return
	}
	if p == nil {
		jsonError(w, http.StatusNotFound, "product not found")
		return
	}

	if err := store.DeleteProduct(r.Context(), h.DB, id); err != nil {
		writeError(w, r, err, "failed to delete product")
		return
	}
	if p.ImagePath != "" {
		if err := h.Images.Delete(r.Context(), p.ImagePath); err != nil {
			slog.Warn("deleting product image", "product", id, "error", err)
		}
	}
	jsonResponse(w, http.StatusOK, map[string]string{"message": "product deleted"})
}

// UploadImage handles PUT /api/products/{id}/image.
func (h *CatalogHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid product id")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, imaging.MaxUpload+(1<<20))
	if err := r.ParseMultipartForm(imaging.MaxUpload); err != nil {
		jsonError(w, http.StatusBadRequest, "file too large or invalid multipart form")
		return
	}
	file, _, err := r.FormFile("image")
	if err != nil {
		jsonError(w, http.StatusBadRequest, "image file required")
		return
	}
	defer file.Close()

	p, err := store.GetProduct(r.Context(), h.DB, id)
	if err != nil {
		writeError(w, r, err, "failed to get product")
		return
	}
	if p == nil {
		jsonError(w, http.StatusNotFound, "product not found")
		return
	}

	key, err := imaging.Store(r.Context(), h.Images, id, file)
	if errors.Is(err, imaging.ErrUnsupported) {
		jsonError(w, http.StatusBadRequest, "image must be JPEG or PNG")
		return
	}
	if err != nil {
		writeError(w, r, err, "failed to store image")
		return
	}
	if err := store.SetProductImage(r.Context(), h.DB, id, key); err != nil {
		writeError(w, r, err, "failed to save image")
		return
	}

	slog.Info("product image uploaded", "product", id)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "image uploaded"})
}

// GetImage handles GET /api/products/{id}/image. Uploaded images are
// streamed; products with only an external URL are redirected to it.
func (h *CatalogHandler) GetImage(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid product id")
		return
	}
	p, err := store.GetProduct(r.Context(), h.DB, id)
	if err != nil {
		writeError(w, r, err, "failed to get product")
		return
	}
	if p == nil {
		jsonError(w, http.StatusNotFound, "product not found")
		return
	}

	if p.ImagePath == "" {
		if p.ImageURL != "" {
			http.Redirect(w, r, p.ImageURL, http.StatusFound)
			return
		}
		jsonError(w, http.StatusNotFound, "no image")
		return
	}

	rc, err := h.Images.Open(r.Context(), p.ImagePath)
	if errors.Is(err, objstore.ErrNotFound) {
		jsonError(w, http.StatusNotFound, "no image")
		return
	}
	if err != nil {
		writeError(w, r, err, "failed to get image")
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", imaging.ContentType)
	w.Header().Set("Cache-Control", "public, max-age=3600")
	if _, err := io.Copy(w, rc); err != nil {
		slog.Warn("streaming product image", "product", id, "error", err)
	}
}
