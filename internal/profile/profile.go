package profile

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Profile is the configuration to start the main server. It is built once
// at startup and never mutated afterwards; every component receives it
// through its constructor.
type Profile struct {
	// Mode can be "prod" or "dev" or "demo"
	Mode string
	// Addr is the binding address for server
	Addr string
	// Port is the binding port for server
	Port int
	// Data is the data directory
	Data string
	// DSN points to where semdex stores its own data
	DSN string
	// Driver is the database driver (sqlite or postgres)
	Driver string
	// Version is the current version of server
	Version string

	// Embedding configuration
	EmbeddingBaseURL string // SEMDEX_EMBEDDING_BASE_URL (default: https://api.openai.com/v1)
	EmbeddingAPIKey  string // SEMDEX_EMBEDDING_API_KEY
	EmbeddingModel   string // SEMDEX_EMBEDDING_MODEL (default: text-embedding-3-small)
	// EmbeddingDim is the fixed vector dimension D. Every stored vector
	// and every vector returned by the model must have this length.
	EmbeddingDim int // SEMDEX_EMBEDDING_DIM (default: 384)
	// EmbedConcurrency caps concurrent embedding calls inside a batch.
	EmbedConcurrency int // SEMDEX_EMBED_CONCURRENCY (default: 3)
	// MaxTextLen is the maximum item text length in runes; longer text is
	// truncated before embedding.
	MaxTextLen int // SEMDEX_MAX_TEXT_LEN (default: 8192)

	// Search configuration
	DefaultTopK int // SEMDEX_DEFAULT_TOP_K (default: 5)
	MaxTopK     int // SEMDEX_MAX_TOP_K (default: 100)

	// APIKey protects the HTTP surface. Either a plaintext key or a
	// bcrypt hash (recognized by the $2 prefix). Empty disables auth in
	// dev/demo mode; prod refuses to start without one.
	APIKey string // SEMDEX_API_KEY

	// RateLimitPerSecond throttles requests per caller; 0 disables.
	RateLimitPerSecond int // SEMDEX_RATE_LIMIT_PER_SECOND

	// RequestTimeout bounds a single embedding or store call.
	RequestTimeout time.Duration // SEMDEX_REQUEST_TIMEOUT (default: 30s)
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// getEnvOrDefault returns the environment variable value or the default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// FromEnv loads embedding and auth configuration from SEMDEX_* environment
// variables. Values already set (e.g. from flags) win; env fills the gaps.
func (p *Profile) FromEnv() {
	if p.EmbeddingBaseURL == "" {
		p.EmbeddingBaseURL = getEnvOrDefault("SEMDEX_EMBEDDING_BASE_URL", "https://api.openai.com/v1")
	}
	if p.EmbeddingAPIKey == "" {
		p.EmbeddingAPIKey = os.Getenv("SEMDEX_EMBEDDING_API_KEY")
	}
	if p.EmbeddingModel == "" {
		p.EmbeddingModel = getEnvOrDefault("SEMDEX_EMBEDDING_MODEL", "text-embedding-3-small")
	}
	if p.APIKey == "" {
		p.APIKey = os.Getenv("SEMDEX_API_KEY")
	}
}

func checkDataDir(dataDir string) (string, error) {
	// Convert to absolute path if relative path is supplied.
	if !filepath.IsAbs(dataDir) {
		relativeDir := filepath.Join(filepath.Dir(os.Args[0]), dataDir)
		absDir, err := filepath.Abs(relativeDir)
		if err != nil {
			return "", err
		}
		dataDir = absDir
	}

	// Trim trailing \ or / in case user supplies
	dataDir = strings.TrimRight(dataDir, "\\/")
	if _, err := os.Stat(dataDir); err != nil {
		return "", errors.Wrapf(err, "unable to access data folder %s", dataDir)
	}
	return dataDir, nil
}

// Validate normalizes the profile and fills derived defaults. It returns an
// error for configurations the server cannot start with.
func (p *Profile) Validate() error {
	if p.Mode != "demo" && p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "demo"
	}

	if p.Driver != "sqlite" && p.Driver != "postgres" {
		return errors.Errorf("unsupported database driver %q (want sqlite or postgres)", p.Driver)
	}

	if p.EmbeddingDim <= 0 {
		p.EmbeddingDim = 384
	}
	if p.EmbedConcurrency <= 0 {
		p.EmbedConcurrency = 3
	}
	if p.MaxTextLen <= 0 {
		p.MaxTextLen = 8192
	}
	if p.DefaultTopK <= 0 {
		p.DefaultTopK = 5
	}
	if p.MaxTopK <= 0 {
		p.MaxTopK = 100
	}
	if p.DefaultTopK > p.MaxTopK {
		return errors.Errorf("default top_k %d exceeds max top_k %d", p.DefaultTopK, p.MaxTopK)
	}
	if p.RequestTimeout <= 0 {
		p.RequestTimeout = 30 * time.Second
	}

	if p.Mode == "prod" && p.APIKey == "" {
		return errors.New("prod mode requires SEMDEX_API_KEY to be set")
	}

	if p.Mode == "prod" && p.Data == "" {
		if runtime.GOOS == "windows" {
			p.Data = filepath.Join(os.Getenv("ProgramData"), "semdex")
			if _, err := os.Stat(p.Data); os.IsNotExist(err) {
				if err := os.MkdirAll(p.Data, 0770); err != nil {
					return errors.Wrapf(err, "failed to create data directory %s", p.Data)
				}
			}
		} else {
			p.Data = "/var/opt/semdex"
		}
	}

	if p.Driver == "sqlite" {
		dataDir, err := checkDataDir(p.Data)
		if err != nil {
			return err
		}
		p.Data = dataDir
		if p.DSN == "" {
			dbFile := fmt.Sprintf("semdex_%s.db", p.Mode)
			p.DSN = filepath.Join(dataDir, dbFile)
		}
	}

	if p.Driver == "postgres" && p.DSN == "" {
		return errors.New("postgres driver requires a DSN")
	}

	return nil
}
