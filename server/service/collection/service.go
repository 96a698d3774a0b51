// Package collection owns the collection lifecycle: create, list, resolve,
// and delete. It validates names and delegates persistence to the store;
// failures are surfaced directly, never retried here.
package collection

import (
	"context"
	"strconv"
	"strings"

	"github.com/lithammer/shortuuid/v4"
	"github.com/pkg/errors"

	svcerrors "github.com/usesemdex/semdex/server/internal/errors"
	"github.com/usesemdex/semdex/store"
)

// MaxNameLength bounds the slugified collection name.
const MaxNameLength = 100

// Store is the interface for store operations needed by the collection service.
type Store interface {
	CreateCollection(ctx context.Context, create *store.Collection) (*store.Collection, error)
	ListCollections(ctx context.Context, find *store.FindCollection) ([]*store.Collection, error)
	GetCollection(ctx context.Context, find *store.FindCollection) (*store.Collection, error)
	DeleteCollection(ctx context.Context, id int32) error
}

// Service manages collection lifecycle.
type Service struct {
	store Store
}

// NewService creates a collection service.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// Slugify normalizes a collection name: trimmed, lowercased, spaces
// replaced with hyphens.
func Slugify(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "-")
}

// Create creates a collection with a unique slugified name. The name is
// pre-checked for collisions, and the schema's UNIQUE constraint backstops
// concurrent creates.
func (s *Service) Create(ctx context.Context, name, description string) (*store.Collection, error) {
	slug := Slugify(name)
	if slug == "" {
		return nil, svcerrors.InvalidArgument("collection name is empty")
	}
	if len(slug) > MaxNameLength {
		return nil, svcerrors.InvalidArgument("collection name exceeds %d characters", MaxNameLength)
	}

	_, err := s.store.GetCollection(ctx, &store.FindCollection{Name: &slug})
	if err == nil {
		return nil, svcerrors.AlreadyExists("collection %q already exists", slug)
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, svcerrors.StoreUnavailable("failed to check collection name", err)
	}

	created, err := s.store.CreateCollection(ctx, &store.Collection{
		UID:         shortuuid.New(),
		Name:        slug,
		Description: description,
	})
	if err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return nil, svcerrors.AlreadyExists("collection %q already exists", slug)
		}
		return nil, svcerrors.StoreUnavailable("failed to create collection", err)
	}
	return created, nil
}

// Resolve finds a collection by numeric id, uid, or name, in that order.
// Trying the id first makes the behavior deterministic when a collection's
// name happens to look like another collection's id.
func (s *Service) Resolve(ctx context.Context, idOrName string) (*store.Collection, error) {
	idOrName = strings.TrimSpace(idOrName)
	if idOrName == "" {
		return nil, svcerrors.InvalidArgument("collection identifier is empty")
	}

	if parsed, err := strconv.ParseInt(idOrName, 10, 32); err == nil {
		id := int32(parsed)
		collection, err := s.store.GetCollection(ctx, &store.FindCollection{ID: &id})
		if err == nil {
			return collection, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return nil, svcerrors.StoreUnavailable("failed to resolve collection", err)
		}
	}

	collection, err := s.store.GetCollection(ctx, &store.FindCollection{UID: &idOrName})
	if err == nil {
		return collection, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, svcerrors.StoreUnavailable("failed to resolve collection", err)
	}

	collection, err = s.store.GetCollection(ctx, &store.FindCollection{Name: &idOrName})
	if err == nil {
		return collection, nil
	}
	if errors.Is(err, store.ErrNotFound) {
		return nil, svcerrors.NotFound("collection %q not found", idOrName)
	}
	return nil, svcerrors.StoreUnavailable("failed to resolve collection", err)
}

// List returns all collections in creation order.
func (s *Service) List(ctx context.Context) ([]*store.Collection, error) {
	list, err := s.store.ListCollections(ctx, &store.FindCollection{})
	if err != nil {
		return nil, svcerrors.StoreUnavailable("failed to list collections", err)
	}
	return list, nil
}

// Delete removes a collection and all of its items.
func (s *Service) Delete(ctx context.Context, idOrName string) error {
	collection, err := s.Resolve(ctx, idOrName)
	if err != nil {
		return err
	}
	if err := s.store.DeleteCollection(ctx, collection.ID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return svcerrors.NotFound("collection %q not found", idOrName)
		}
		return svcerrors.StoreUnavailable("failed to delete collection", err)
	}
	return nil
}
