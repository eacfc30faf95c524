// internal/handlers/product.go
package handlers

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/openshelf/catalog-backend/internal/config"
	"github.com/openshelf/catalog-backend/internal/repository"
	"github.com/openshelf/catalog-backend/internal/services"
	"github.com/openshelf/catalog-backend/internal/utils"
)

type ProductHandler struct {
	productService *services.ProductService
	storage        config.StorageConfig
}

func NewProductHandler(productService *services.ProductService, storage config.StorageConfig) *ProductHandler {
	return &ProductHandler{
		productService: productService,
		storage:        storage,
	}
}

type productForm struct {
	Name     string  `form:"name" validate:"required,max=255"`
	Details  string  `form:"details" validate:"required"`
	Size     string  `form:"size" validate:"required,max=50"`
	Color    string  `form:"color" validate:"required,max=50"`
	Category string  `form:"category" validate:"required,max=100"`
	Price    float64 `form:"price" validate:"gte=0"`
}

// GET /products
func (h *ProductHandler) ListProducts(c *gin.Context) {
	products, err := h.productService.ListProducts()
	if err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	utils.SuccessResponse(c, gin.H{
		"products": products,
	})
}

// GET /products/:id
func (h *ProductHandler) GetProduct(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid product ID", nil)
		return
	}

	product, err := h.productService.GetProduct(id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			utils.NotFoundResponse(c, "Product not found")
			return
		}
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	utils.SuccessResponse(c, gin.H{
		"product": product,
	})
}

// POST /products
func (h *ProductHandler) CreateProduct(c *gin.Context) {
	attrs, validationErrors := h.bindAttributes(c)
	if len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	files := formFiles(c)
	if len(files) < h.storage.MinImages {
		utils.ValidationErrorResponse(c, []utils.ValidationError{{
			Field:   "images",
			Tag:     "min",
			Message: fmt.Sprintf("at least %d image(s) required", h.storage.MinImages),
		}})
		return
	}

	uploads, closeUploads, validationErrors := h.openUploads(files)
	defer closeUploads()
	if len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	product, err := h.productService.CreateProduct(attrs, uploads)
	if err != nil {
		var partial *services.PartialError
		if errors.As(err, &partial) {
			utils.ErrorResponse(c, http.StatusInternalServerError, "STORE_WRITE_ERROR", partial.Error(), gin.H{
				"processed": partial.Failed,
				"total":     partial.Total,
			})
			return
		}
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	utils.CreatedResponse(c, gin.H{
		"message": "Product created successfully.",
		"product": product,
	})
}

// PUT /products/:id
func (h *ProductHandler) UpdateProduct(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid product ID", nil)
		return
	}

	attrs, validationErrors := h.bindAttributes(c)
	if len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	deleteRefs := c.PostFormArray("delete_images")

	uploads, closeUploads, validationErrors := h.openUploads(formFiles(c))
	defer closeUploads()
	if len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	product, err := h.productService.UpdateProduct(id, attrs, deleteRefs, uploads)

	var partial *services.PartialError
	if errors.As(err, &partial) && product != nil {
		// The partial image list was persisted; report how far we got.
		utils.SuccessResponse(c, gin.H{
			"message": fmt.Sprintf("Product updated; processed %d of %d new images.", partial.Failed, partial.Total),
			"product": product,
		})
		return
	}

	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			utils.NotFoundResponse(c, "Product not found")
		case errors.Is(err, repository.ErrConflict):
			utils.ConflictResponse(c, "Product was modified concurrently, please retry")
		default:
			utils.InternalErrorResponse(c, err.Error())
		}
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": "Product updated successfully.",
		"product": product,
	})
}

// DELETE /products/:id
func (h *ProductHandler) DeleteProduct(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid product ID", nil)
		return
	}

	removed, err := h.productService.DeleteProduct(id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			utils.NotFoundResponse(c, "Product not found")
			return
		}
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message":        "Product deleted successfully.",
		"images_removed": removed,
	})
}

func (h *ProductHandler) bindAttributes(c *gin.Context) (services.ProductAttributes, []utils.ValidationError) {
	var form productForm

	if c.PostForm("price") == "" {
		return services.ProductAttributes{}, []utils.ValidationError{{
			Field:   "price",
			Tag:     "required",
			Message: "price is required",
		}}
	}

	if err := c.ShouldBind(&form); err != nil {
		return services.ProductAttributes{}, []utils.ValidationError{{
			Field:   "price",
			Tag:     "numeric",
			Message: "price must be numeric",
		}}
	}

	if err := utils.ValidateStruct(&form); err != nil {
		return services.ProductAttributes{}, utils.GetValidationErrors(err)
	}

	return services.ProductAttributes{
		Name:     form.Name,
		Details:  form.Details,
		Size:     form.Size,
		Color:    form.Color,
		Category: form.Category,
		Price:    form.Price,
	}, nil
}

func formFiles(c *gin.Context) []*multipart.FileHeader {
	form, err := c.MultipartForm()
	if err != nil || form == nil {
		return nil
	}
	return form.File["images"]
}

// openUploads validates every file against the upload policy before any blob
// is written, so a bad file rejects the whole request instead of leaving a
// half-written batch behind.
func (h *ProductHandler) openUploads(files []*multipart.FileHeader) ([]services.UploadedImage, func(), []utils.ValidationError) {
	uploads := make([]services.UploadedImage, 0, len(files))
	opened := make([]multipart.File, 0, len(files))
	closeAll := func() {
		for _, f := range opened {
			f.Close()
		}
	}

	for _, header := range files {
		if header.Size > h.storage.MaxUploadBytes {
			closeAll()
			return nil, func() {}, []utils.ValidationError{{
				Field:   "images",
				Tag:     "max",
				Message: fmt.Sprintf("%s exceeds maximum size of %d bytes", header.Filename, h.storage.MaxUploadBytes),
			}}
		}

		ext := strings.ToLower(filepath.Ext(header.Filename))
		if !h.extensionAllowed(ext) {
			closeAll()
			return nil, func() {}, []utils.ValidationError{{
				Field:   "images",
				Tag:     "filetype",
				Message: fmt.Sprintf("file type %q is not allowed", ext),
			}}
		}

		file, err := header.Open()
		if err != nil {
			closeAll()
			return nil, func() {}, []utils.ValidationError{{
				Field:   "images",
				Tag:     "file",
				Message: fmt.Sprintf("failed to read %s", header.Filename),
			}}
		}
		opened = append(opened, file)

		if err := validateImageContent(file); err != nil {
			closeAll()
			return nil, func() {}, []utils.ValidationError{{
				Field:   "images",
				Tag:     "image",
				Message: fmt.Sprintf("%s is not a valid image", header.Filename),
			}}
		}

		uploads = append(uploads, services.UploadedImage{
			Reader: file,
			Ext:    ext,
		})
	}

	return uploads, closeAll, nil
}

func (h *ProductHandler) extensionAllowed(ext string) bool {
	for _, allowed := range h.storage.AllowedExtensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

// validateImageContent checks the file signature and rewinds the stream.
func validateImageContent(file multipart.File) error {
	buffer := make([]byte, 512)
	n, err := file.Read(buffer)
	if err != nil && n == 0 {
		return fmt.Errorf("failed to read file: %w", err)
	}

	if _, err := file.Seek(0, 0); err != nil {
		return fmt.Errorf("failed to rewind file: %w", err)
	}

	if !isValidImageType(buffer[:n]) {
		return errors.New("invalid image file")
	}

	return nil
}

func isValidImageType(buffer []byte) bool {
	// JPEG
	if len(buffer) >= 3 && buffer[0] == 0xFF && buffer[1] == 0xD8 && buffer[2] == 0xFF {
		return true
	}

	// PNG
	if len(buffer) >= 8 && buffer[0] == 0x89 && buffer[1] == 0x50 && buffer[2] == 0x4E && buffer[3] == 0x47 {
		return true
	}

	// GIF
	if len(buffer) >= 6 && (string(buffer[0:6]) == "GIF87a" || string(buffer[0:6]) == "GIF89a") {
		return true
	}

	// WebP
	if len(buffer) >= 12 && string(buffer[0:4]) == "RIFF" && string(buffer[8:12]) == "WEBP" {
		return true
	}

	return false
}
