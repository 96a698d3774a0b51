// Package v1 exposes the REST surface: collection management, indexing,
// and search. Handlers translate between JSON payloads and the services,
// and map coded service errors to HTTP statuses.
package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/usesemdex/semdex/internal/profile"
	"github.com/usesemdex/semdex/server/ai"
	svcerrors "github.com/usesemdex/semdex/server/internal/errors"
	"github.com/usesemdex/semdex/server/middleware"
	"github.com/usesemdex/semdex/server/service/collection"
	"github.com/usesemdex/semdex/server/service/index"
	"github.com/usesemdex/semdex/server/service/search"
	"github.com/usesemdex/semdex/store"
)

// APIV1Service wires the services to the echo router.
type APIV1Service struct {
	Profile *profile.Profile
	Store   *store.Store

	CollectionService *collection.Service
	IndexService      *index.Service
	SearchService     *search.Service
}

// NewAPIV1Service assembles the services around one store and embedder.
func NewAPIV1Service(profile *profile.Profile, st *store.Store, embedder ai.Embedder) *APIV1Service {
	return &APIV1Service{
		Profile:           profile,
		Store:             st,
		CollectionService: collection.NewService(st),
		IndexService:      index.NewService(st, embedder, profile.EmbedConcurrency, profile.MaxTextLen),
		SearchService:     search.NewService(st, embedder, profile.DefaultTopK, profile.MaxTopK),
	}
}

// Register attaches all routes to the echo server. Auth applies to the API
// group only; /healthz stays open for probes.
func (s *APIV1Service) Register(echoServer *echo.Echo) {
	echoServer.GET("/healthz", s.Healthz)

	apiGroup := echoServer.Group("/api/v1")
	if s.Profile.APIKey != "" {
		apiGroup.Use(middleware.APIKeyAuth(s.Profile.APIKey))
	}
	if s.Profile.RateLimitPerSecond > 0 {
		apiGroup.Use(middleware.NewRateLimiter(s.Profile.RateLimitPerSecond).Middleware())
	}

	apiGroup.POST("/collections", s.CreateCollection)
	apiGroup.GET("/collections", s.ListCollections)
	apiGroup.GET("/collections/:cid", s.GetCollection)
	apiGroup.DELETE("/collections/:cid", s.DeleteCollection)

	apiGroup.GET("/collections/:cid/items", s.ListItems)
	apiGroup.DELETE("/collections/:cid/items/:item_id", s.DeleteItem)
	apiGroup.POST("/collections/:cid/index", s.IndexItems)
	apiGroup.POST("/collections/:cid/search", s.SearchItems)
}

// Healthz reports liveness and store reachability.
func (s *APIV1Service) Healthz(c echo.Context) error {
	if err := s.Store.Ping(c.Request().Context()); err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "store unreachable")
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// toHTTPError maps a coded service error to an HTTP status. Unclassified
// errors count as store failures.
func toHTTPError(err error) *echo.HTTPError {
	code := svcerrors.GetCodeFromError(err, svcerrors.ErrCodeStoreUnavailable)
	status := http.StatusServiceUnavailable
	switch code {
	case svcerrors.ErrCodeInvalidArgument:
		status = http.StatusBadRequest
	case svcerrors.ErrCodeNotFound:
		status = http.StatusNotFound
	case svcerrors.ErrCodeAlreadyExists:
		status = http.StatusConflict
	case svcerrors.ErrCodeEmbeddingFailed:
		status = http.StatusBadGateway
	case svcerrors.ErrCodeTimeout:
		status = http.StatusGatewayTimeout
	case svcerrors.ErrCodeContextCanceled:
		status = http.StatusRequestTimeout
	}
	return echo.NewHTTPError(status, err.Error())
}
