package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/usesemdex/semdex/store"
)

// CollectionResponse is the JSON shape of a collection.
type CollectionResponse struct {
	ID          int32  `json:"id"`
	UID         string `json:"uid"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	CreatedTs   int64  `json:"created_ts"`
}

func toCollectionResponse(c *store.Collection) CollectionResponse {
	return CollectionResponse{
		ID:          c.ID,
		UID:         c.UID,
		Name:        c.Name,
		Description: c.Description,
		CreatedTs:   c.CreatedTs,
	}
}

// CreateCollectionRequest is the create payload.
type CreateCollectionRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// CreateCollection handles POST /api/v1/collections.
func (s *APIV1Service) CreateCollection(c echo.Context) error {
	var req CreateCollectionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}
	created, err := s.CollectionService.Create(c.Request().Context(), req.Name, req.Description)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusCreated, toCollectionResponse(created))
}

// ListCollections handles GET /api/v1/collections.
func (s *APIV1Service) ListCollections(c echo.Context) error {
	list, err := s.CollectionService.List(c.Request().Context())
	if err != nil {
		return toHTTPError(err)
	}
	responses := make([]CollectionResponse, len(list))
	for i, col := range list {
		responses[i] = toCollectionResponse(col)
	}
	return c.JSON(http.StatusOK, responses)
}

// GetCollection handles GET /api/v1/collections/:cid. The cid may be the
// numeric id, the uid, or the name.
func (s *APIV1Service) GetCollection(c echo.Context) error {
	col, err := s.CollectionService.Resolve(c.Request().Context(), c.Param("cid"))
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, toCollectionResponse(col))
}

// DeleteCollection handles DELETE /api/v1/collections/:cid. Items are
// deleted with the collection.
func (s *APIV1Service) DeleteCollection(c echo.Context) error {
	if err := s.CollectionService.Delete(c.Request().Context(), c.Param("cid")); err != nil {
		return toHTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
