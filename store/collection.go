package store

import (
	"context"
	"fmt"
)

// Collection groups items that are indexed and searched together.
type Collection struct {
	// ID is the numeric identifier assigned by the store, immutable.
	ID int32
	// UID is a stable external handle minted at create time.
	UID string
	// Name is the unique, slugified human label. Callers may address a
	// collection by name or by numeric id.
	Name string
	// Description is optional free text.
	Description string
	CreatedTs   int64
}

// FindCollection is the find condition for collections.
type FindCollection struct {
	ID   *int32
	UID  *string
	Name *string
}

func (s *Store) CreateCollection(ctx context.Context, create *Collection) (*Collection, error) {
	collection, err := s.driver.CreateCollection(ctx, create)
	if err != nil {
		return nil, err
	}
	s.collectionCache.Set(ctx, collectionCacheKey(collection.ID), collection)
	return collection, nil
}

// ListCollections lists collections in creation order.
func (s *Store) ListCollections(ctx context.Context, find *FindCollection) ([]*Collection, error) {
	return s.driver.ListCollections(ctx, find)
}

// GetCollection returns the single collection matching find, or ErrNotFound.
func (s *Store) GetCollection(ctx context.Context, find *FindCollection) (*Collection, error) {
	if find.ID != nil && find.Name == nil && find.UID == nil {
		if cached, ok := s.collectionCache.Get(ctx, collectionCacheKey(*find.ID)); ok {
			if collection, ok := cached.(*Collection); ok {
				return collection, nil
			}
		}
	}

	list, err := s.driver.ListCollections(ctx, find)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, ErrNotFound
	}
	collection := list[0]
	s.collectionCache.Set(ctx, collectionCacheKey(collection.ID), collection)
	return collection, nil
}

// DeleteCollection deletes a collection and, by cascade, all of its items.
func (s *Store) DeleteCollection(ctx context.Context, id int32) error {
	if err := s.driver.DeleteCollection(ctx, id); err != nil {
		return err
	}
	s.collectionCache.Delete(ctx, collectionCacheKey(id))
	return nil
}

func collectionCacheKey(id int32) string {
	return fmt.Sprintf("collection:%d", id)
}
