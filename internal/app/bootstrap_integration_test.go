package app_test

import (
	"context"
	"net/url"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prospectus/internal/app"
	"prospectus/internal/config"
	"prospectus/internal/testutils"
)

// integrationConfig points the job store and queue at the suite containers.
func integrationConfig(t *testing.T, s *testutils.IntegrationSuite) *config.Config {
	t.Helper()
	u, err := url.Parse(s.DSN)
	require.NoError(t, err)
	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)
	pass, _ := u.User.Password()

	return &config.Config{
		Provider:                   config.ProviderLocalService,
		VectorBackend:              config.VectorBackendFile,
		JobStore:                   config.JobStorePostgres,
		DBHost:                     u.Hostname(),
		DBPort:                     port,
		DBUser:                     u.User.Username(),
		DBPass:                     pass,
		DBName:                     u.Path[1:],
		MigrationPath:              testutils.MigrationsURL(),
		EnableIngestWorker:         true,
		NSQDHost:                   s.NSQDAddr,
		NSQDHTTP:                   "localhost:0",
		IngestMaxAttempts:          3,
		BootstrapRetryAttempts:     5,
		BootstrapRetryDelaySeconds: 1,
	}
}

func TestBootstrap_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	suite := testutils.NewIntegrationSuite(t)
	suite.Setup()
	defer suite.Teardown()

	deps, err := app.Bootstrap(context.Background(), integrationConfig(t, suite))
	require.NoError(t, err)
	defer deps.Close()

	require.NotNil(t, deps.DB)
	var exists bool
	err = deps.DB.QueryRow("SELECT EXISTS (SELECT FROM information_schema.tables WHERE table_name = 'failed_jobs')").Scan(&exists)
	require.NoError(t, err)
	assert.True(t, exists, "failed_jobs table should exist")

	assert.Nil(t, deps.Weaviate)
	require.NotNil(t, deps.NSQProducer)
	assert.NoError(t, deps.NSQProducer.Ping())
}

func TestBootstrap_Integration_Weaviate(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	suite := testutils.NewIntegrationSuite(t)
	suite.SetupWeaviate()
	defer suite.Teardown()

	cfg := &config.Config{
		VectorBackend:          config.VectorBackendWeaviate,
		JobStore:               config.JobStoreMemory,
		WeaviateHost:           suite.WeaviateHost,
		WeaviateScheme:         "http",
		BootstrapRetryAttempts: 5,
	}
	deps, err := app.Bootstrap(context.Background(), cfg)
	require.NoError(t, err)
	defer deps.Close()

	require.NotNil(t, deps.Weaviate)
	assert.NoError(t, deps.Weaviate.EnsureSchema(context.Background()))
}
