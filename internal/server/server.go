// Package server exposes the matcher over HTTP with gin.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/spigell/resource-matcher/internal/catalog"
	"github.com/spigell/resource-matcher/internal/identity"
	"github.com/spigell/resource-matcher/internal/matching"
	"github.com/spigell/resource-matcher/internal/metrics"
	"github.com/spigell/resource-matcher/internal/profile"
)

const (
	DefaultAddress  = ":8080"
	shutdownTimeout = 10 * time.Second
)

// Catalog lists the resources that may be recommended.
type Catalog interface {
	ListVerified(ctx context.Context) (*catalog.Resources, error)
}

// Seeder writes resources into the catalog storage.
type Seeder interface {
	Insert(ctx context.Context, resources *catalog.Resources) (int, error)
}

// Matcher produces recommendations and opportunity analyses.
type Matcher interface {
	Match(ctx context.Context, p *profile.UserProfile, resources *catalog.Resources) (*matching.Result, error)
}

// Store persists users and their results.
type Store interface {
	CreateAccount(ctx context.Context, id, email, name string) (*identity.Account, error)
	Account(ctx context.Context, id string) (*identity.Account, error)
	SaveAnswers(ctx context.Context, id string, answers profile.Answers) error
	CompleteOnboarding(ctx context.Context, id string) error
	Profile(ctx context.Context, id string) (*profile.UserProfile, error)
	SaveRecommendations(ctx context.Context, rec *identity.StoredRecommendations) error
	Recommendations(ctx context.Context, id string) (*identity.StoredRecommendations, error)
	LogActivity(ctx context.Context, userID, action string, details map[string]any) (*identity.Activity, error)
	Activity(ctx context.Context, userID string, limit int) ([]*identity.Activity, error)
}

type Config struct {
	Address     string
	CORSOrigins []string
}

type Deps struct {
	Catalog Catalog
	Matcher Matcher
	Store   Store
	// Seeder and SeedCatalog are optional; without them seeding is unavailable.
	Seeder      Seeder
	SeedCatalog *catalog.Resources
	Metrics     *metrics.Metrics
	Logger      *zap.Logger
}

type Server struct {
	cfg    Config
	deps   Deps
	engine *gin.Engine
	logger *zap.Logger
}

func New(cfg Config, deps Deps) (*Server, error) {
	if deps.Catalog == nil {
		return nil, errors.New("catalog is required")
	}
	if deps.Matcher == nil {
		return nil, errors.New("matcher is required")
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if cfg.Address == "" {
		cfg.Address = DefaultAddress
	}

	gin.SetMode(gin.ReleaseMode)
	s := &Server{cfg: cfg, deps: deps, logger: deps.Logger}
	s.engine = s.router()
	return s, nil
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) router() *gin.Engine {
	router := gin.New()
	router.Use(
		requestID(),
		requestLogger(s.logger),
		requestMetrics(s.deps.Metrics),
		recovery(),
		corsMiddleware(s.cfg.CORSOrigins),
	)

	router.GET("/healthz", s.health)
	router.GET("/metrics", gin.WrapH(s.deps.Metrics.Handler()))

	api := router.Group("/api")
	{
		api.GET("/questions", s.questions)
		api.GET("/resources", s.listResources)
		api.GET("/categories", s.categories)
		api.POST("/recommendations", s.generateRecommendations)
		api.POST("/seed-resources", s.seedResources)

		users := api.Group("/users")
		users.POST("", s.createUser)
		users.PUT("/:id/answers", s.saveAnswers)
		users.GET("/:id/recommendations", s.storedRecommendations)
		users.GET("/:id/activity", s.activity)
	}

	router.NoRoute(func(c *gin.Context) {
		respondError(c, http.StatusNotFound, errors.New("route not found"))
	})
	return router
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders:  []string{"Authorization", "Content-Type", "X-Requested-With", requestIDHeader},
		ExposeHeaders: []string{requestIDHeader},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
		cfg.AllowCredentials = true
	}
	return cors.New(cfg)
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Address,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", zap.String("address", s.cfg.Address))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.logger.Info("http server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	return <-errCh
}
