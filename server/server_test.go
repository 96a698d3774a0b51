package server

import (
	"context"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/usesemdex/semdex/internal/profile"
	"github.com/usesemdex/semdex/store"
	"github.com/usesemdex/semdex/store/db/sqlite"
)

type stubEmbedder struct{}

func (stubEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	return []float32{1, 0, 0}, nil
}

func (stubEmbedder) Dimension() int {
	return 3
}

func TestStartFailureLeavesStoreClosable(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	testProfile := &profile.Profile{
		Mode:           "dev",
		Driver:         "sqlite",
		Data:           dir,
		DSN:            filepath.Join(dir, "semdex_test.db"),
		EmbeddingDim:   3,
		RequestTimeout: time.Second,
	}

	driver, err := sqlite.NewDB(testProfile)
	require.NoError(t, err)
	st := store.New(driver, testProfile)
	require.NoError(t, st.Migrate(ctx))

	// Occupy a port so the listener cannot bind.
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer lis.Close()
	testProfile.Addr = "127.0.0.1"
	testProfile.Port = lis.Addr().(*net.TCPAddr).Port

	s, err := NewServer(ctx, testProfile, st, stubEmbedder{})
	require.NoError(t, err)
	require.Error(t, s.Start(ctx))

	// A failed start still goes through Shutdown, which must release the
	// store handle.
	s.Shutdown(context.Background())
	require.Error(t, st.Ping(context.Background()))
}
