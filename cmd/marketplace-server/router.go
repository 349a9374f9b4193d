package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mikepea/marketplace/pkg/marketplace/admin"
	"github.com/mikepea/marketplace/pkg/marketplace/auth"
	"github.com/mikepea/marketplace/pkg/marketplace/config"
	"github.com/mikepea/marketplace/pkg/marketplace/logging"
	"github.com/mikepea/marketplace/pkg/marketplace/oidc"
	"github.com/mikepea/marketplace/pkg/marketplace/products"
	"github.com/mikepea/marketplace/pkg/marketplace/redirect"
	"github.com/mikepea/marketplace/pkg/marketplace/tags"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type routerDeps struct {
	cfg      *config.Config
	db       *gorm.DB
	logger   *zap.Logger
	tokens   *auth.TokenIssuer
	products *products.Service
}

func setupRouter(d routerDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), logging.Middleware(d.logger))

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Swagger documentation
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	api := r.Group("/api")
	api.Use(auth.Authenticate(d.db, d.tokens))
	{
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"status":  "ok",
				"service": "marketplace",
			})
		})

		// Session and provider login routes
		authGroup := api.Group("/auth")
		auth.NewHandler(d.db).RegisterRoutes(authGroup)
		oidc.NewHandler(d.db, d.tokens, d.cfg.Auth, d.cfg.HTTP.BaseURL, d.logger.Named("oidc")).RegisterRoutes(authGroup)

		// Public catalogue
		productsHandler := products.NewHandler(d.products)
		productsHandler.RegisterRoutes(api)
		tags.NewHandler(d.db).RegisterRoutes(api)

		// Admin routes (admin role required)
		adminGroup := api.Group("/admin", auth.AdminOnly())
		productsHandler.RegisterAdminRoutes(adminGroup)
		admin.NewHandler(d.db, d.logger.Named("admin")).RegisterRoutes(adminGroup)
	}

	// Outbound click-through
	redirect.NewHandler(d.db, d.products).RegisterRoutes(r)

	return r
}
