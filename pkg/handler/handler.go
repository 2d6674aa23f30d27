package handler

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"virtualcard_back/models"
	"virtualcard_back/pkg/metrics"
	"virtualcard_back/pkg/middleware"
	"virtualcard_back/pkg/service"
)

type Handler struct {
	service     *service.Service
	corsOrigins []string
}

func NewHandler(service *service.Service, corsOrigins []string) *Handler {
	return &Handler{
		service:     service,
		corsOrigins: corsOrigins,
	}
}

func (h *Handler) InitRoute() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), metrics.Middleware())

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Length", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
	}
	if len(h.corsOrigins) == 0 || (len(h.corsOrigins) == 1 && h.corsOrigins[0] == "*") {
		// с AllowCredentials "*" запрещён, отражаем origin
		corsCfg.AllowOriginFunc = func(string) bool { return true }
	} else {
		corsCfg.AllowOrigins = h.corsOrigins
	}
	router.Use(cors.New(corsCfg))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", metrics.Handler())

	authRequired := middleware.AuthMiddleware(h.service.Authorization)

	auth := router.Group("/auth")
	{
		auth.POST("/register", h.Register)
		auth.POST("/login", h.Login)
		auth.GET("/verify", h.VerifyEmail)
		auth.GET("/me", authRequired, h.GetMe)
	}

	api := router.Group("/api", authRequired)
	{
		api.GET("/cards", h.GetCards)
		api.POST("/cards", h.RequestCard)
		api.POST("/topup", h.Topup)
		api.GET("/topup/history", h.TopupHistory)
		api.GET("/transactions", h.GetTransactions)
	}

	admin := router.Group("/admin", authRequired, middleware.RequireRole(models.RoleAdmin))
	{
		admin.GET("/users", h.AdminUsers)
		admin.GET("/cards", h.AdminCards)
		admin.POST("/cards", h.AdminCreateCard)
		admin.DELETE("/cards/:id", h.AdminDeleteCard)
		admin.POST("/cards/sync", h.AdminSyncBalances)
		admin.GET("/topups", h.AdminTopups)
		admin.PUT("/topups", h.AdminSetTopupStatus)
		admin.DELETE("/topups/:id", h.AdminDeleteTopup)
		admin.GET("/transactions", h.AdminTransactions)
		admin.POST("/transactions/import", h.AdminImportTransactions)
	}
	return router
}
