// internal/router/router.go
package router

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/openshelf/catalog-backend/internal/config"
	"github.com/openshelf/catalog-backend/internal/handlers"
	"github.com/openshelf/catalog-backend/internal/middleware"
	"github.com/openshelf/catalog-backend/internal/repository"
	"github.com/openshelf/catalog-backend/internal/services"
	"github.com/openshelf/catalog-backend/internal/storage"
)

func Initialize(db *gorm.DB, cfg *config.Config) (*gin.Engine, error) {
	// Initialize services
	store, err := storage.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize blob store: %w", err)
	}

	productRepo := repository.NewProductRepository(db)
	imageService := services.NewImageService(store)
	productService := services.NewProductService(productRepo, imageService)

	// Initialize handlers
	productHandler := handlers.NewProductHandler(productService, cfg.Storage)

	// Initialize Gin router
	r := gin.New()

	// Global middleware
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger())
	r.Use(middleware.CORS(cfg.CORS))
	r.Use(middleware.GeneralRateLimit())

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"version": "1.0.0",
		})
	})

	// API v1 routes
	v1 := r.Group("/v1")
	{
		products := v1.Group("/products")
		{
			products.GET("", productHandler.ListProducts)
			products.GET("/:id", productHandler.GetProduct)
			products.POST("", middleware.UploadRateLimit(), productHandler.CreateProduct)
			products.PUT("/:id", middleware.UploadRateLimit(), productHandler.UpdateProduct)
			products.DELETE("/:id", productHandler.DeleteProduct)
		}
	}

	return r, nil
}
