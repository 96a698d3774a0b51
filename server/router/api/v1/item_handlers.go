package v1

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	svcerrors "github.com/usesemdex/semdex/server/internal/errors"
	"github.com/usesemdex/semdex/server/internal/observability"
	"github.com/usesemdex/semdex/server/service/index"
	"github.com/usesemdex/semdex/store"
)

// ItemResponse is the JSON shape of an item (embedding omitted).
type ItemResponse struct {
	ID        string          `json:"id"`
	Text      string          `json:"text"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
	CreatedTs int64           `json:"created_ts"`
	UpdatedTs int64           `json:"updated_ts"`
}

func toItemResponse(item *store.Item) ItemResponse {
	return ItemResponse{
		ID:        item.ID,
		Text:      item.Text,
		Metadata:  item.Metadata,
		CreatedTs: item.CreatedTs,
		UpdatedTs: item.UpdatedTs,
	}
}

// ListItemsResponse is the paginated item listing.
type ListItemsResponse struct {
	Collection CollectionResponse `json:"collection"`
	Items      []ItemResponse     `json:"items"`
	Limit      int                `json:"limit"`
	Offset     int                `json:"offset"`
}

// ListItems handles GET /api/v1/collections/:cid/items with limit/offset
// pagination (limit 1..500, default 50).
func (s *APIV1Service) ListItems(c echo.Context) error {
	ctx := c.Request().Context()
	col, err := s.CollectionService.Resolve(ctx, c.Param("cid"))
	if err != nil {
		return toHTTPError(err)
	}

	limit := 50
	if raw := c.QueryParam("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be an integer")
		}
		limit = parsed
	}
	offset := 0
	if raw := c.QueryParam("offset"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "offset must be an integer")
		}
		offset = parsed
	}

	items, limit, offset, err := s.IndexService.ListItems(ctx, col.ID, limit, offset)
	if err != nil {
		return toHTTPError(err)
	}
	responses := make([]ItemResponse, len(items))
	for i, item := range items {
		responses[i] = toItemResponse(item)
	}
	return c.JSON(http.StatusOK, ListItemsResponse{
		Collection: toCollectionResponse(col),
		Items:      responses,
		Limit:      limit,
		Offset:     offset,
	})
}

// DeleteItem handles DELETE /api/v1/collections/:cid/items/:item_id.
func (s *APIV1Service) DeleteItem(c echo.Context) error {
	ctx := c.Request().Context()
	col, err := s.CollectionService.Resolve(ctx, c.Param("cid"))
	if err != nil {
		return toHTTPError(err)
	}
	if err := s.IndexService.DeleteItem(ctx, col.ID, c.Param("item_id")); err != nil {
		return toHTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// IndexItemInput is one item of the index payload.
type IndexItemInput struct {
	ID       string          `json:"id"`
	Text     string          `json:"text"`
	Metadata json.RawMessage `json:"metadata"`
}

// IndexRequest is the index payload.
type IndexRequest struct {
	Items []IndexItemInput `json:"items"`
}

// IndexItemResult is one per-item outcome, aligned with the request.
type IndexItemResult struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// IndexResponse reports every item's outcome; the batch is never
// all-or-nothing.
type IndexResponse struct {
	Results []IndexItemResult `json:"results"`
	Indexed int               `json:"indexed"`
}

// IndexItems handles POST /api/v1/collections/:cid/index.
func (s *APIV1Service) IndexItems(c echo.Context) error {
	reqCtx := observability.NewRequestContext(slog.Default(), "index")
	ctx, cancel := context.WithTimeout(c.Request().Context(), s.Profile.RequestTimeout)
	defer cancel()
	ctx = observability.WithRequestContext(ctx, reqCtx)

	col, err := s.CollectionService.Resolve(ctx, c.Param("cid"))
	if err != nil {
		return toHTTPError(err)
	}

	var req IndexRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}
	if len(req.Items) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "items is empty")
	}

	inputs := make([]index.ItemInput, len(req.Items))
	for i, item := range req.Items {
		inputs[i] = index.ItemInput{
			ID:       item.ID,
			Text:     item.Text,
			Metadata: item.Metadata,
		}
	}

	outcomes := s.IndexService.Index(ctx, col.ID, inputs)
	resp := IndexResponse{Results: make([]IndexItemResult, len(outcomes))}
	for i, outcome := range outcomes {
		result := IndexItemResult{ID: outcome.ID, Status: "ok"}
		if !outcome.OK() {
			result.Status = "error"
			result.Error = outcome.Err.Error()
		} else {
			resp.Indexed++
		}
		resp.Results[i] = result
	}

	reqCtx.Info("indexed batch",
		slog.String(observability.LogFieldCollection, col.Name),
		slog.Int("items", len(inputs)),
		slog.Int("indexed", resp.Indexed),
		slog.Int64(observability.LogFieldDuration, reqCtx.DurationMs()))
	return c.JSON(http.StatusOK, resp)
}

// SearchRequest is the search payload.
type SearchRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k"`
}

// SearchResult is one search hit.
type SearchResult struct {
	ID       string          `json:"id"`
	Text     string          `json:"text"`
	Metadata json.RawMessage `json:"metadata,omitempty"`
	Score    float64         `json:"score"`
}

// SearchResponse is the ranked result list.
type SearchResponse struct {
	Results []SearchResult `json:"results"`
}

// SearchItems handles POST /api/v1/collections/:cid/search.
func (s *APIV1Service) SearchItems(c echo.Context) error {
	reqCtx := observability.NewRequestContext(slog.Default(), "search")
	ctx, cancel := context.WithTimeout(c.Request().Context(), s.Profile.RequestTimeout)
	defer cancel()
	ctx = observability.WithRequestContext(ctx, reqCtx)

	col, err := s.CollectionService.Resolve(ctx, c.Param("cid"))
	if err != nil {
		return toHTTPError(err)
	}

	var req SearchRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}

	results, err := s.SearchService.Search(ctx, col.ID, req.Query, req.TopK)
	if err != nil {
		if svcerrors.IsCode(err, svcerrors.ErrCodeEmbeddingFailed) {
			reqCtx.Error("query embedding failed", err,
				slog.String(observability.LogFieldCollection, col.Name))
		}
		return toHTTPError(err)
	}

	resp := SearchResponse{Results: make([]SearchResult, len(results))}
	for i, result := range results {
		resp.Results[i] = SearchResult{
			ID:       result.Item.ID,
			Text:     result.Item.Text,
			Metadata: result.Item.Metadata,
			Score:    result.Score,
		}
	}

	reqCtx.Info("search completed",
		slog.String(observability.LogFieldCollection, col.Name),
		slog.Int("results", len(resp.Results)),
		slog.Int64(observability.LogFieldDuration, reqCtx.DurationMs()))
	return c.JSON(http.StatusOK, resp)
}
