package web

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/Surfinbird-star/aas2/internal/imaging"
	"github.com/Surfinbird-star/aas2/internal/model"
	"github.com/Surfinbird-star/aas2/internal/store"
)

type adminProductsPage struct {
	PageData
	Products   []model.Product
	Categories []model.Category
}

type adminCategoriesPage struct {
	PageData
	Categories []model.Category
}

// AdminProductsPage handles GET /admin/products.
func (s *Server) AdminProductsPage(w http.ResponseWriter, r *http.Request) {
	products, err := store.ListProducts(r.Context(), s.DB, 0)
	if err != nil {
		slog.Error("failed to list products", "error", err)
	}
	categories, err := store.ListCategories(r.Context(), s.DB)
	if err != nil {
		slog.Error("failed to list categories", "error", err)
	}
	s.Templates.Render(w, "admin_products.html", &adminProductsPage{
		PageData:   s.page(w, r, "Товары"),
		Products:   products,
		Categories: categories,
	})
}

func productForm(r *http.Request) model.ProductInput {
	categoryID, _ := strconv.ParseInt(r.FormValue("category_id"), 10, 64)
	return model.ProductInput{
		Name:        strings.TrimSpace(r.FormValue("name")),
		Description: strings.TrimSpace(r.FormValue("description")),
		Unit:        strings.TrimSpace(r.FormValue("unit")),
		ImageURL:    strings.TrimSpace(r.FormValue("image_url")),
		CategoryID:  categoryID,
	}
}

// ProductCreateSubmit handles POST /admin/products.
func (s *Server) ProductCreateSubmit(w http.ResponseWriter, r *http.Request) {
	in := productForm(r)
	if err := in.Validate(); err != nil {
		redirectErr(w, r, "/admin/products", "invalid")
		return
	}
	p, err := store.CreateProduct(r.Context(), s.DB, in)
	if err != nil {
		slog.Error("failed to create product", "error", err)
		redirectErr(w, r, "/admin/products", errorCode(err))
		return
	}
	slog.Info("product created", "user", GetWebClaims(r.Context()).UserID, "product", p.ID)
	redirectOK(w, r, "/admin/products", "product_saved")
}

// ProductUpdateSubmit handles POST /admin/products/{id}.
func (s *Server) ProductUpdateSubmit(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		redirectErr(w, r, "/admin/products", "invalid")
		return
	}
	in := productForm(r)
	if err := in.Validate(); err != nil {
		redirectErr(w, r, "/admin/products", "invalid")
		return
	}
	if err := store.UpdateProduct(r.Context(), s.DB, id, in); err != nil {
		if !errors.Is(err, model.ErrNotFound) {
			slog.Error("failed to update product", "product", id, "error", err)
		}
		redirectErr(w, r, "/admin/products", errorCode(err))
		return
	}
	slog.Info("product updated", "user", GetWebClaims(r.Context()).UserID, "product", id)
	redirectOK(w, r, "/admin/products", "product_saved")
}

// ProductDeleteSubmit handles POST /admin/products/{id}/delete.
func (s *Server) ProductDeleteSubmit(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		redirectErr(w, r, "/admin/products", "invalid")
		return
	}
	p, err := store.GetProduct(r.Context(), s.DB, id)
	if err != nil {
		slog.Error("failed to get product", "product", id, "error", err)
		redirectErr(w, r, "/admin/products", "internal")
		return
	}
	if p == nil {
		redirectErr(w, r, "/admin/products", "not_found")
		return
	}

	if err := store.DeleteProduct(r.Context(), s.DB, id); err != nil {
		slog.Error("failed to delete product", "product", id, "error", err)
		redirectErr(w, r, "/admin/products", errorCode(err))
		return
	}
	if p.ImagePath != "" {
		if err := s.Images.Delete(r.Context(), p.ImagePath); err != nil {
			slog.Warn("failed to delete product image", "product", id, "error", err)
		}
	}
	slog.Info("product deleted", "user", GetWebClaims(r.Context()).UserID, "product", id)
	redirectOK(w, r, "/admin/products", "product_deleted")
}

// ProductImageSubmit handles POST /admin/products/{id}/image.
func (s *Server) ProductImageSubmit(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		redirectErr(w, r, "/admin/products", "invalid")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, imaging.MaxUpload+(1<<20))
	if err := r.ParseMultipartForm(imaging.MaxUpload); err != nil {
		redirectErr(w, r, "/admin/products", "image_invalid")
		return
	}
	file, _, err := r.FormFile("image")
	if err != nil {
		redirectErr(w, r, "/admin/products", "image_invalid")
		return
	}
	defer file.Close()

	p, err := store.GetProduct(r.Context(), s.DB, id)
	if err != nil || p == nil {
		redirectErr(w, r, "/admin/products", "not_found")
		return
	}

	key, err := imaging.Store(r.Context(), s.Images, id, file)
	if errors.Is(err, imaging.ErrUnsupported) {
		redirectErr(w, r, "/admin/products", "image_invalid")
		return
	}
	if err != nil {
		slog.Error("failed to store product image", "product", id, "error", err)
		redirectErr(w, r, "/admin/products", "internal")
		return
	}
	if err := store.SetProductImage(r.Context(), s.DB, id, key); err != nil {
		slog.Error("failed to save product image", "product", id, "error", err)
		redirectErr(w, r, "/admin/products", "internal")
		return
	}
	slog.Info("product image uploaded", "user", GetWebClaims(r.Context()).UserID, "product", id)
	redirectOK(w, r, "/admin/products", "image_saved")
}

// AdminCategoriesPage handles GET /admin/categories.
func (s *Server) AdminCategoriesPage(w http.ResponseWriter, r *http.Request) {
	categories, err := store.ListCategories(r.Context(), s.DB)
	if err != nil {
		slog.Error("failed to list categories", "error", err)
	}
	s.Templates.Render(w, "admin_categories.html", &adminCategoriesPage{
		PageData:   s.page(w, r, "Категории"),
		Categories: categories,
	})
}

// CategoryCreateSubmit handles POST /admin/categories.
func (s *Server) CategoryCreateSubmit(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(r.FormValue("name"))
	if name == "" {
		redirectErr(w, r, "/admin/categories", "invalid")
		return
	}
	if _, err := store.CreateCategory(r.Context(), s.DB, name); err != nil {
		slog.Error("failed to create category", "error", err)
		redirectErr(w, r, "/admin/categories", errorCode(err))
		return
	}
	slog.Info("category created", "user", GetWebClaims(r.Context()).UserID, "category", name)
	redirectOK(w, r, "/admin/categories", "category_saved")
}

// CategoryUpdateSubmit handles POST /admin/categories/{id}.
func (s *Server) CategoryUpdateSubmit(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	name := strings.TrimSpace(r.FormValue("name"))
	if err != nil || name == "" {
		redirectErr(w, r, "/admin/categories", "invalid")
		return
	}
	if err := store.UpdateCategory(r.Context(), s.DB, id, name); err != nil {
		redirectErr(w, r, "/admin/categories", errorCode(err))
		return
	}
	redirectOK(w, r, "/admin/categories", "category_saved")
}

// CategoryDeleteSubmit handles POST /admin/categories/{id}/delete. A
// category that still has products is kept.
func (s *Server) CategoryDeleteSubmit(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		redirectErr(w, r, "/admin/categories", "invalid")
		return
	}
	if err := store.DeleteCategory(r.Context(), s.DB, id); err != nil {
		if !errors.Is(err, model.ErrCategoryInUse) && !errors.Is(err, model.ErrNotFound) {
			slog.Error("failed to delete category", "category", id, "error", err)
		}
		redirectErr(w, r, "/admin/categories", errorCode(err))
		return
	}
	slog.Info("category deleted", "user", GetWebClaims(r.Context()).UserID, "category", id)
	redirectOK(w, r, "/admin/categories", "category_deleted")
}
