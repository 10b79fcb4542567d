// Package api exposes the expense service as a stateless JSON API.
package api

import (
	"net/http"
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"expenses/internal/i18n"
	applog "expenses/internal/log"
	"expenses/internal/store"
)

type Config struct {
	// AllowOrigins lists the CORS origins; empty or "*" allows any origin.
	AllowOrigins []string
	Locale       i18n.Locale
}

type Handler struct {
	svc    store.Gateway
	msgs   *i18n.Messages
	logger *applog.Logger
}

// NewRouter builds the gin engine serving /api/*.
func NewRouter(svc store.Gateway, cfg Config, logger *applog.Logger) *gin.Engine {
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	h := &Handler{
		svc:    svc,
		msgs:   i18n.For(cfg.Locale),
		logger: logger.WithComponent(applog.ComponentAPI),
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(cors.New(corsConfig(cfg.AllowOrigins)))

	g := r.Group("/api")
	g.GET("/health", h.health)
	g.GET("/categories", h.listCategories)
	g.GET("/expenses", h.listExpenses)
	g.GET("/expenses/export.csv", h.exportCSV)
	g.POST("/expenses", h.createExpense)
	g.PATCH("/expenses/:id", h.updateExpense)
	g.DELETE("/expenses/:id", h.deleteExpense)
	return r
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders: []string{"Content-Length", "Content-Disposition"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || slices.Contains(origins, "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}
