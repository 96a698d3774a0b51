package collection

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	svcerrors "github.com/usesemdex/semdex/server/internal/errors"
	"github.com/usesemdex/semdex/store"
)

// fakeStore is an in-memory collection store.
type fakeStore struct {
	collections []*store.Collection
	nextID      int32
	deleted     []int32
}

func newFakeStore() *fakeStore {
	return &fakeStore{nextID: 1}
}

func (f *fakeStore) CreateCollection(_ context.Context, create *store.Collection) (*store.Collection, error) {
	for _, c := range f.collections {
		if c.Name == create.Name {
			return nil, store.ErrAlreadyExists
		}
	}
	create.ID = f.nextID
	f.nextID++
	f.collections = append(f.collections, create)
	return create, nil
}

func (f *fakeStore) ListCollections(_ context.Context, find *store.FindCollection) ([]*store.Collection, error) {
	list := []*store.Collection{}
	for _, c := range f.collections {
		if find.ID != nil && c.ID != *find.ID {
			continue
		}
		if find.UID != nil && c.UID != *find.UID {
			continue
		}
		if find.Name != nil && c.Name != *find.Name {
			continue
		}
		list = append(list, c)
	}
	return list, nil
}

func (f *fakeStore) GetCollection(ctx context.Context, find *store.FindCollection) (*store.Collection, error) {
	list, err := f.ListCollections(ctx, find)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, store.ErrNotFound
	}
	return list[0], nil
}

func (f *fakeStore) DeleteCollection(_ context.Context, id int32) error {
	for i, c := range f.collections {
		if c.ID == id {
			f.collections = append(f.collections[:i], f.collections[i+1:]...)
			f.deleted = append(f.deleted, id)
			return nil
		}
	}
	return store.ErrNotFound
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"My Notes", "my-notes"},
		{"  Padded  Name ", "padded--name"},
		{"already-slugged", "already-slugged"},
		{"UPPER", "upper"},
		{"   ", ""},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, Slugify(tt.input))
	}
}

func TestCreateCollection(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newFakeStore())

	created, err := svc.Create(ctx, "My Notes", "personal notes")
	require.NoError(t, err)
	require.Equal(t, "my-notes", created.Name)
	require.Equal(t, "personal notes", created.Description)
	require.NotEmpty(t, created.UID)
	require.NotZero(t, created.ID)
}

func TestCreateCollectionEmptyName(t *testing.T) {
	svc := NewService(newFakeStore())
	_, err := svc.Create(context.Background(), "   ", "")
	require.True(t, svcerrors.IsCode(err, svcerrors.ErrCodeInvalidArgument))
}

func TestCreateCollectionNameTooLong(t *testing.T) {
	svc := NewService(newFakeStore())
	_, err := svc.Create(context.Background(), strings.Repeat("x", MaxNameLength+1), "")
	require.True(t, svcerrors.IsCode(err, svcerrors.ErrCodeInvalidArgument))
}

func TestCreateCollectionDuplicate(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newFakeStore())

	_, err := svc.Create(ctx, "notes", "")
	require.NoError(t, err)
	// Slugs collide even when the raw names differ.
	_, err = svc.Create(ctx, "  Notes ", "")
	require.True(t, svcerrors.IsCode(err, svcerrors.ErrCodeAlreadyExists))
}

func TestResolvePrefersNumericID(t *testing.T) {
	ctx := context.Background()
	fake := newFakeStore()
	svc := NewService(fake)

	// A collection literally named "2" and a collection whose id is 2.
	namedTwo, err := svc.Create(ctx, "2", "")
	require.NoError(t, err)
	second, err := svc.Create(ctx, "other", "")
	require.NoError(t, err)
	require.EqualValues(t, 2, second.ID)

	resolved, err := svc.Resolve(ctx, "2")
	require.NoError(t, err)
	require.Equal(t, second.ID, resolved.ID)
	require.NotEqual(t, namedTwo.ID, resolved.ID)
}

func TestResolveByUIDAndName(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newFakeStore())

	created, err := svc.Create(ctx, "notes", "")
	require.NoError(t, err)

	byUID, err := svc.Resolve(ctx, created.UID)
	require.NoError(t, err)
	require.Equal(t, created.ID, byUID.ID)

	byName, err := svc.Resolve(ctx, "notes")
	require.NoError(t, err)
	require.Equal(t, created.ID, byName.ID)
}

func TestResolveNotFound(t *testing.T) {
	svc := NewService(newFakeStore())
	_, err := svc.Resolve(context.Background(), "missing")
	require.True(t, svcerrors.IsCode(err, svcerrors.ErrCodeNotFound))

	_, err = svc.Resolve(context.Background(), "  ")
	require.True(t, svcerrors.IsCode(err, svcerrors.ErrCodeInvalidArgument))
}

func TestDeleteCollection(t *testing.T) {
	ctx := context.Background()
	fake := newFakeStore()
	svc := NewService(fake)

	created, err := svc.Create(ctx, "notes", "")
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, "notes"))
	require.Equal(t, []int32{created.ID}, fake.deleted)

	err = svc.Delete(ctx, "notes")
	require.True(t, svcerrors.IsCode(err, svcerrors.ErrCodeNotFound))
}

func TestListCollections(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newFakeStore())

	_, err := svc.Create(ctx, "alpha", "")
	require.NoError(t, err)
	_, err = svc.Create(ctx, "beta", "")
	require.NoError(t, err)

	list, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "alpha", list[0].Name)
	require.Equal(t, "beta", list[1].Name)
}
