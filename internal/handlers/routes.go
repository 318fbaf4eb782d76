package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

type RouterOptions struct {
	AppName     string
	Version     string
	FrontendURL string
	SecretKey   string
	RequireAuth bool
	// Limiter is shared by all clients; nil turns rate limiting off.
	Limiter *rate.Limiter
}

func NewRouter(h *Handler, log *logrus.Logger, opts RouterOptions) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), RequestID(), RequestLogger(log), CORS(opts.FrontendURL), RateLimit(opts.Limiter, log))

	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "Welcome to " + opts.AppName, "version": opts.Version})
	})
	r.GET("/health", h.Health)

	api := r.Group("/api", Auth(opts.SecretKey, opts.RequireAuth, log))
	{
		inv := api.Group("/investments")
		inv.GET("", h.ListInvestments)
		inv.POST("", h.CreateInvestment)
		inv.POST("/sell", h.SellInvestment)
		inv.GET("/:id", h.GetInvestment)
		inv.PUT("/:id", h.UpdateInvestment)
		inv.DELETE("/:id", h.DeleteInvestment)

		pf := api.Group("/portfolio")
		pf.GET("/positions", h.GetPositions)
		pf.GET("/overview", h.GetOverview)
		pf.GET("/earnings", h.GetEarnings)

		api.PUT("/prices/:symbol", h.SetPrice)
	}
	return r
}
