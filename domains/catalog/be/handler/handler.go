package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/orderline-app/orderline/domains/catalog/be/service"
	"github.com/orderline-app/orderline/platform/go/httpx"
	platformlogging "github.com/orderline-app/orderline/platform/go/logging"
	platformstorage "github.com/orderline-app/orderline/platform/go/storage"
	"github.com/orderline-app/orderline/platform/go/tenant"
)

// Handler exposes the store catalog over HTTP. Every route requires a
// resolved store on the request context.
type Handler struct {
	svc    service.Service
	blobs  platformstorage.BlobWriter
	bucket string
	logger *zap.Logger
}

func New(svc service.Service, blobs platformstorage.BlobWriter, bucket string, logger *zap.Logger) *Handler {
	if svc == nil {
		panic("catalog service is required")
	}
	if logger == nil {
		panic("logger is required")
	}
	return &Handler{svc: svc, blobs: blobs, bucket: bucket, logger: logger}
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/products", h.listProducts)
	r.Post("/products", h.createProduct)
	r.Get("/products/{productID}", h.getProduct)
	r.Patch("/products/{productID}", h.updateProduct)
	r.Delete("/products/{productID}", h.deleteProduct)
	r.Post("/products/{productID}/image", h.uploadProductImage)
	r.Get("/categories", h.listCategories)
	r.Post("/categories", h.createCategory)
	r.Delete("/categories/{categoryID}", h.deleteCategory)
}

type productRequest struct {
	CategoryID  *int64  `json:"categoryId"`
	Name        string  `json:"name"`
	Description *string `json:"description"`
	PriceCents  int64   `json:"priceCents"`
	Currency    string  `json:"currency"`
	ImageURL    *string `json:"imageUrl"`
}

type productPatchRequest struct {
	CategoryID  *int64  `json:"categoryId"`
	Name        *string `json:"name"`
	Description *string `json:"description"`
	PriceCents  *int64  `json:"priceCents"`
	ImageURL    *string `json:"imageUrl"`
	IsAvailable *bool   `json:"isAvailable"`
}

type categoryRequest struct {
	Name      string `json:"name"`
	Slug      string `json:"slug"`
	SortOrder int    `json:"sortOrder"`
}

func (h *Handler) createProduct(w http.ResponseWriter, r *http.Request) {
	logger := platformlogging.FromRequest(r, h.logger)

	var req productRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Validation(w, logger, map[string][]string{"body": {"malformed JSON body"}})
		return
	}

	product, err := h.svc.CreateProduct(r.Context(), service.CreateProductInput{
		CategoryID:  req.CategoryID,
		Name:        req.Name,
		Description: req.Description,
		PriceCents:  req.PriceCents,
		Currency:    req.Currency,
		ImageURL:    req.ImageURL,
	})
	if err != nil {
		h.writeError(w, logger, err)
		return
	}
	httpx.JSON(w, logger, http.StatusCreated, product)
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	logger := platformlogging.FromRequest(r, h.logger)
	id, ok := pathID(w, r, logger, "productID")
	if !ok {
		return
	}

	product, err := h.svc.GetProduct(r.Context(), id)
	if err != nil {
		h.writeError(w, logger, err)
		return
	}
	httpx.JSON(w, logger, http.StatusOK, product)
}

func (h *Handler) updateProduct(w http.ResponseWriter, r *http.Request) {
	logger := platformlogging.FromRequest(r, h.logger)
	id, ok := pathID(w, r, logger, "productID")
	if !ok {
		return
	}

	var req productPatchRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Validation(w, logger, map[string][]string{"body": {"malformed JSON body"}})
		return
	}

	product, err := h.svc.UpdateProduct(r.Context(), id, service.UpdateProductInput{
		CategoryID:  req.CategoryID,
		Name:        req.Name,
		Description: req.Description,
		PriceCents:  req.PriceCents,
		ImageURL:    req.ImageURL,
		IsAvailable: req.IsAvailable,
	})
	if err != nil {
		h.writeError(w, logger, err)
		return
	}
	httpx.JSON(w, logger, http.StatusOK, product)
}

func (h *Handler) deleteProduct(w http.ResponseWriter, r *http.Request) {
	logger := platformlogging.FromRequest(r, h.logger)
	id, ok := pathID(w, r, logger, "productID")
	if !ok {
		return
	}

	if err := h.svc.DeleteProduct(r.Context(), id); err != nil {
		h.writeError(w, logger, err)
		return
	}
	httpx.JSON(w, logger, http.StatusNoContent, nil)
}

const maxImageBytes = 10 << 20

func (h *Handler) uploadProductImage(w http.ResponseWriter, r *http.Request) {
	logger := platformlogging.FromRequest(r, h.logger)
	id, ok := pathID(w, r, logger, "productID")
	if !ok {
		return
	}
	if h.blobs == nil {
		httpx.Error(w, logger, httpx.Problem{
			Type:   httpx.ProblemTypeInternal,
			Title:  "Uploads Disabled",
			Status: http.StatusNotImplemented,
			Detail: "no storage backend is configured",
		})
		return
	}

	space, ok := tenant.FromContext(r.Context())
	if !ok {
		h.writeError(w, logger, service.ErrNoStore)
		return
	}

	// Confirm the product exists before accepting the payload.
	if _, err := h.svc.GetProduct(r.Context(), id); err != nil {
		h.writeError(w, logger, err)
		return
	}

	if err := r.ParseMultipartForm(maxImageBytes); err != nil {
		httpx.Validation(w, logger, map[string][]string{"image": {"malformed multipart body"}})
		return
	}
	file, header, err := r.FormFile("image")
	if err != nil {
		httpx.Validation(w, logger, map[string][]string{"image": {"image file is required"}})
		return
	}
	defer file.Close()

	loc, err := platformstorage.ResolveObjectLocation(space, h.bucket, platformstorage.ProductImageKey(id, header.Filename))
	if err != nil {
		httpx.Validation(w, logger, map[string][]string{"image": {"invalid file name"}})
		return
	}
	if err := h.blobs.Put(r.Context(), loc, header.Header.Get("Content-Type"), file); err != nil {
		logger.Error("upload product image", zap.Error(err), zap.String("path", loc.FullPath))
		httpx.Internal(w, logger)
		return
	}

	imageURL := loc.Bucket + "/" + loc.FullPath
	product, err := h.svc.UpdateProduct(r.Context(), id, service.UpdateProductInput{ImageURL: &imageURL})
	if err != nil {
		h.writeError(w, logger, err)
		return
	}
	httpx.JSON(w, logger, http.StatusOK, product)
}

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	logger := platformlogging.FromRequest(r, h.logger)
	var opts service.ListOptions
	if err := httpx.BindQuery(r, "available", &opts.OnlyAvailable); err != nil {
		httpx.Validation(w, logger, map[string][]string{"available": {"must be a boolean"}})
		return
	}
	if err := httpx.BindQuery(r, "categoryId", &opts.CategoryID); err != nil {
		httpx.Validation(w, logger, map[string][]string{"categoryId": {"must be an integer"}})
		return
	}
	if err := httpx.BindQuery(r, "search", &opts.Search); err != nil {
		httpx.Validation(w, logger, map[string][]string{"search": {"must be a string"}})
		return
	}
	if err := httpx.BindQuery(r, "limit", &opts.Limit); err != nil {
		httpx.Validation(w, logger, map[string][]string{"limit": {"must be an integer"}})
		return
	}
	if err := httpx.BindQuery(r, "offset", &opts.Offset); err != nil {
		httpx.Validation(w, logger, map[string][]string{"offset": {"must be an integer"}})
		return
	}

	products, err := h.svc.ListProducts(r.Context(), opts)
	if err != nil {
		h.writeError(w, logger, err)
		return
	}
	httpx.JSON(w, logger, http.StatusOK, map[string]any{"products": products})
}

func (h *Handler) createCategory(w http.ResponseWriter, r *http.Request) {
	logger := platformlogging.FromRequest(r, h.logger)

	var req categoryRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Validation(w, logger, map[string][]string{"body": {"malformed JSON body"}})
		return
	}

	category, err := h.svc.CreateCategory(r.Context(), service.CreateCategoryInput{
		Name:      req.Name,
		Slug:      req.Slug,
		SortOrder: req.SortOrder,
	})
	if err != nil {
		h.writeError(w, logger, err)
		return
	}
	httpx.JSON(w, logger, http.StatusCreated, category)
}

func (h *Handler) listCategories(w http.ResponseWriter, r *http.Request) {
	logger := platformlogging.FromRequest(r, h.logger)

	categories, err := h.svc.ListCategories(r.Context())
	if err != nil {
		h.writeError(w, logger, err)
		return
	}
	httpx.JSON(w, logger, http.StatusOK, map[string]any{"categories": categories})
}

func (h *Handler) deleteCategory(w http.ResponseWriter, r *http.Request) {
	logger := platformlogging.FromRequest(r, h.logger)
	id, ok := pathID(w, r, logger, "categoryID")
	if !ok {
		return
	}

	if err := h.svc.DeleteCategory(r.Context(), id); err != nil {
		h.writeError(w, logger, err)
		return
	}
	httpx.JSON(w, logger, http.StatusNoContent, nil)
}

func pathID(w http.ResponseWriter, r *http.Request, logger *zap.Logger, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		httpx.NotFound(w, logger, "resource not found")
		return 0, false
	}
	return id, true
}

func (h *Handler) writeError(w http.ResponseWriter, logger *zap.Logger, err error) {
	var validationErr *service.ValidationError
	switch {
	case errors.As(err, &validationErr):
		httpx.Validation(w, logger, validationErr.Fields)
	case errors.Is(err, service.ErrNotFound):
		httpx.NotFound(w, logger, "product not found")
	case errors.Is(err, service.ErrNoStore):
		httpx.Error(w, logger, httpx.Problem{
			Type:   httpx.ProblemTypeValidation,
			Title:  "No Store Selected",
			Status: http.StatusBadRequest,
			Detail: "request has no resolved store",
		})
	default:
		logger.Error("catalog handler failure", zap.Error(err))
		httpx.Internal(w, logger)
	}
}
