//go:build integration

package integration

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"agentbridge/config"
	"agentbridge/internal/app"
	"agentbridge/internal/core"
)

// TestServerConfig configures how the test server is set up.
type TestServerConfig struct {
	// DBType is either "postgresql" or "mongodb"
	DBType string

	// LogBodies enables body capture in journal entries
	LogBodies bool

	// PrimaryErr makes the codex stub fail with this error
	PrimaryErr error
}

// TestServerFixture holds test server resources.
type TestServerFixture struct {
	// ServerURL is the base URL of the test server
	ServerURL string

	// App is the running application
	App *app.App

	// PgPool is the PostgreSQL connection pool (for DB assertions)
	PgPool *pgxpool.Pool

	// MongoDb is the MongoDB database (for DB assertions)
	MongoDb *mongo.Database

	// DBType is the configured database type
	DBType string

	cancelFunc context.CancelFunc
}

// stubInvoker answers every prompt with a fixed text or error.
type stubInvoker struct {
	name string
	text string
	err  error
}

func (s *stubInvoker) Name() string { return s.name }

func (s *stubInvoker) Invoke(context.Context, string, string) (*core.BridgeResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &core.BridgeResult{Text: s.text}, nil
}

// SetupTestServer creates a test server with the specified configuration.
func SetupTestServer(t *testing.T, cfg TestServerConfig) *TestServerFixture {
	t.Helper()

	ctx, cancel := context.WithCancel(testContext())

	port, err := findAvailablePort()
	require.NoError(t, err, "failed to find available port")

	application, err := app.New(ctx, app.Config{
		AppConfig: buildAppConfig(t, cfg, port),
		Primary:   &stubInvoker{name: "codex", text: "Hello from codex", err: cfg.PrimaryErr},
		Secondary: &stubInvoker{name: "gemini", text: "Hello from gemini"},
	})
	require.NoError(t, err, "failed to create app")

	go func() {
		_ = application.Start()
	}()

	serverURL := fmt.Sprintf("http://127.0.0.1:%d", port)
	err = waitForServer(serverURL + healthPath)
	require.NoError(t, err, "server failed to become healthy")

	fixture := &TestServerFixture{
		ServerURL:  serverURL,
		App:        application,
		DBType:     cfg.DBType,
		cancelFunc: cancel,
	}

	switch cfg.DBType {
	case "postgresql":
		fixture.PgPool = postgresPool()
	case "mongodb":
		fixture.MongoDb = mongoDatabase()
	}

	return fixture
}

// FlushAndClose flushes all pending journal entries and closes the app.
// CRITICAL: Call this before making any DB assertions.
func (f *TestServerFixture) FlushAndClose(t *testing.T) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if f.App != nil {
		err := f.App.Shutdown(ctx)
		require.NoError(t, err, "failed to shutdown app")
	}
}

// Shutdown gracefully shuts down the test server.
func (f *TestServerFixture) Shutdown(t *testing.T) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if f.App != nil {
		_ = f.App.Shutdown(ctx)
	}

	if f.cancelFunc != nil {
		f.cancelFunc()
	}
}

// buildAppConfig creates an application config for testing.
func buildAppConfig(t *testing.T, cfg TestServerConfig, port int) *config.Config {
	t.Helper()

	appCfg := &config.Config{
		Server: config.ServerConfig{
			Host: "127.0.0.1",
			Port: strconv.Itoa(port),
		},
		Bridge: config.BridgeConfig{
			ModelName:  "codex",
			DetailMode: "off",
		},
		Codex:    config.CodexConfig{TimeoutSeconds: 5},
		Stream:   config.StreamConfig{ChunkSize: 40},
		Settings: config.SettingsConfig{Dir: t.TempDir()},
		Journal: config.JournalConfig{
			Enabled:       true,
			LogBodies:     cfg.LogBodies,
			BufferSize:    100,
			FlushInterval: 1,
			RetentionDays: 0,
		},
	}

	switch cfg.DBType {
	case "postgresql":
		appCfg.Storage = config.StorageConfig{
			Type: "postgresql",
			PostgreSQL: config.PostgreSQLConfig{
				URL:      postgresURL(),
				MaxConns: 5,
			},
		}
	case "mongodb":
		appCfg.Storage = config.StorageConfig{
			Type: "mongodb",
			MongoDB: config.MongoDBConfig{
				URL:      mongoURL(),
				Database: journalDatabase,
			},
		}
	default:
		t.Fatalf("unsupported DB type: %s", cfg.DBType)
	}

	return appCfg
}

// waitForServer waits for the server to become healthy.
func waitForServer(healthURL string) error {
	client := &http.Client{Timeout: 2 * time.Second}
	for i := 0; i < 50; i++ {
		resp, err := client.Get(healthURL)
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	return fmt.Errorf("server did not become healthy within timeout")
}

// findAvailablePort finds an available TCP port on loopback.
func findAvailablePort() (int, error) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}
	defer func() { _ = listener.Close() }()
	return listener.Addr().(*net.TCPAddr).Port, nil
}
