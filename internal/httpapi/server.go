// Package httpapi is the transport layer: gin routes, bearer
// middleware, and the error-to-status mapping over the workflow
// services.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/nazeru/storefront-go/internal/catalog"
	"github.com/nazeru/storefront-go/internal/identity"
	"github.com/nazeru/storefront-go/internal/order"
	"github.com/nazeru/storefront-go/internal/payment"
	"github.com/nazeru/storefront-go/pkg/metrics"
)

// Pinger is the health-check slice of the database pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Deps struct {
	Log         *logrus.Logger
	Development bool
	CORSOrigins []string
	Metrics     *metrics.ServerMetrics

	DB       Pinger
	Tokens   *identity.TokenManager
	Identity *identity.Service
	Catalog  *catalog.Service
	Orders   *order.Service
	Payments *payment.Service
}

type Server struct {
	engine      *gin.Engine
	log         *logrus.Entry
	development bool

	db       Pinger
	tokens   *identity.TokenManager
	identity *identity.Service
	catalog  *catalog.Service
	orders   *order.Service
	payments *payment.Service
}

func New(deps Deps) *Server {
	if !deps.Development {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		log:         deps.Log.WithField("component", "httpapi"),
		development: deps.Development,
		db:          deps.DB,
		tokens:      deps.Tokens,
		identity:    deps.Identity,
		catalog:     deps.Catalog,
		orders:      deps.Orders,
		payments:    deps.Payments,
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(cors.New(cors.Config{
		AllowOrigins:     deps.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Idempotency-Key", payment.SignatureHeader},
		AllowCredentials: true,
	}))
	if deps.Metrics != nil {
		engine.Use(deps.Metrics.Middleware())
		engine.GET("/metrics", gin.WrapH(metrics.Handler()))
	}

	engine.GET("/health", s.health)

	api := engine.Group("/api")
	{
		api.POST("/auth/register", s.register)
		api.POST("/auth/login", s.login)
		api.GET("/auth/verify", s.requireAuth, s.verify)

		api.GET("/products", s.listProducts)
		api.GET("/products/featured", s.listFeaturedProducts)
		api.GET("/products/category/:category", s.listProductsByCategory)
		api.GET("/products/:id", s.getProduct)
		api.POST("/products", s.requireAuth, s.requireAdmin, s.createProduct)
		api.PUT("/products/:id", s.requireAuth, s.requireAdmin, s.updateProduct)
		api.DELETE("/products/:id", s.requireAuth, s.requireAdmin, s.deleteProduct)

		api.POST("/orders", s.requireAuth, s.placeOrder)
		api.GET("/orders", s.requireAuth, s.requireAdmin, s.listAllOrders)
		api.GET("/orders/user/:userId", s.requireAuth, s.listUserOrders)
		api.GET("/orders/:id", s.requireAuth, s.getOrder)
		api.PATCH("/orders/:id/status", s.requireAuth, s.requireAdmin, s.setOrderStatus)

		api.POST("/payments/create-intent", s.requireAuth, s.createPaymentIntent)
		api.POST("/payments/confirm", s.requireAuth, s.confirmPayment)
		api.POST("/payments/webhook", s.webhook)
	}

	s.engine = engine
	return s
}

func (s *Server) health(c *gin.Context) {
	if err := s.db.Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "db_error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": time.Now().UTC().Format(time.RFC3339)})
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) Run(port string) error {
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           s.engine,
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.log.WithField("port", port).Info("storefront-api listening")
	return srv.ListenAndServe()
}
