package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/usesemdex/semdex/internal/profile"
	"github.com/usesemdex/semdex/internal/version"
	"github.com/usesemdex/semdex/server"
	"github.com/usesemdex/semdex/server/ai"
	"github.com/usesemdex/semdex/store"
	"github.com/usesemdex/semdex/store/db"
)

const greetingBanner = `semdex - semantic search over your text collections`

var rootCmd = &cobra.Command{
	Use:   "semdex",
	Short: "A semantic-search index service",
	RunE: func(_ *cobra.Command, _ []string) error {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		instanceProfile := &profile.Profile{
			Mode:               viper.GetString("mode"),
			Addr:               viper.GetString("addr"),
			Port:               viper.GetInt("port"),
			Data:               viper.GetString("data"),
			Driver:             viper.GetString("driver"),
			DSN:                viper.GetString("dsn"),
			EmbeddingDim:       viper.GetInt("embedding-dim"),
			EmbedConcurrency:   viper.GetInt("embed-concurrency"),
			MaxTextLen:         viper.GetInt("max-text-len"),
			DefaultTopK:        viper.GetInt("default-top-k"),
			MaxTopK:            viper.GetInt("max-top-k"),
			RateLimitPerSecond: viper.GetInt("rate-limit-per-second"),
			RequestTimeout:     viper.GetDuration("request-timeout"),
			Version:            version.GetCurrentVersion(),
		}
		instanceProfile.FromEnv()
		if err := instanceProfile.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}

		dbDriver, err := db.NewDBDriver(instanceProfile)
		if err != nil {
			return fmt.Errorf("failed to create db driver: %w", err)
		}
		storeInstance := store.New(dbDriver, instanceProfile)
		if err := storeInstance.Migrate(ctx); err != nil {
			return fmt.Errorf("failed to migrate database: %w", err)
		}

		embedder, err := ai.NewEmbeddingService(ai.NewConfigFromProfile(instanceProfile))
		if err != nil {
			return fmt.Errorf("failed to create embedding service: %w", err)
		}

		s, err := server.NewServer(ctx, instanceProfile, storeInstance, embedder)
		if err != nil {
			return fmt.Errorf("failed to create server: %w", err)
		}

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		go func() {
			sig := <-sigCh
			slog.Info("received signal, shutting down", slog.String("signal", sig.String()))
			cancel()
		}()

		fmt.Println(greetingBanner)
		if err := s.Start(ctx); err != nil {
			s.Shutdown(context.Background())
			return fmt.Errorf("failed to start server: %w", err)
		}
		<-ctx.Done()
		s.Shutdown(context.Background())
		return nil
	},
}

func init() {
	viper.SetDefault("mode", "dev")
	viper.SetDefault("addr", "")
	viper.SetDefault("port", 8080)
	viper.SetDefault("data", "")
	viper.SetDefault("driver", "sqlite")

	rootCmd.PersistentFlags().String("mode", "dev", `mode of server, can be "prod" or "dev" or "demo"`)
	rootCmd.PersistentFlags().String("addr", "", "address of server")
	rootCmd.PersistentFlags().Int("port", 8080, "port of server")
	rootCmd.PersistentFlags().String("data", "", "data directory")
	rootCmd.PersistentFlags().String("driver", "sqlite", "database driver")
	rootCmd.PersistentFlags().String("dsn", "", "database source name (aka. DSN)")
	rootCmd.PersistentFlags().Int("embedding-dim", 384, "embedding vector dimension")
	rootCmd.PersistentFlags().Int("embed-concurrency", 3, "max concurrent embedding calls per batch")
	rootCmd.PersistentFlags().Int("max-text-len", 8192, "max item text length in runes")
	rootCmd.PersistentFlags().Int("default-top-k", 5, "default number of search results")
	rootCmd.PersistentFlags().Int("max-top-k", 100, "max number of search results")
	rootCmd.PersistentFlags().Int("rate-limit-per-second", 0, "per-caller request rate limit, 0 disables")
	rootCmd.PersistentFlags().Duration("request-timeout", 0, "deadline for a single embedding or store call")

	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		panic(err)
	}
	viper.SetEnvPrefix("semdex")
	// Flag keys are hyphenated but env vars use underscores, e.g.
	// SEMDEX_EMBEDDING_DIM overrides --embedding-dim.
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
