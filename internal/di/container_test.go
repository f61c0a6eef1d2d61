package di

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/samber/do/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clairecatohanson/rock-of-ages-api/internal/config"
	"github.com/clairecatohanson/rock-of-ages-api/internal/di/providers"
	"github.com/clairecatohanson/rock-of-ages-api/internal/domain"
	"github.com/clairecatohanson/rock-of-ages-api/internal/logger"
	"github.com/clairecatohanson/rock-of-ages-api/internal/service"
)

func testConfig(t *testing.T, driver string, search bool) *config.Config {
	t.Helper()
	return &config.Config{
		App:      config.AppConfig{Environment: "development"},
		Logger:   config.LoggerConfig{Level: "error"},
		Data:     config.DataConfig{BasePath: t.TempDir()},
		Database: config.DatabaseConfig{Driver: driver},
		Auth: config.AuthConfig{
			AccessTokenDuration:  15 * time.Minute,
			RefreshTokenDuration: time.Hour,
		},
		Search: config.SearchConfig{Enabled: search},
	}
}

func quietLogger() *logger.Logger {
	return logger.New(logger.Config{Writer: io.Discard})
}

func TestToolContainer_BootstrapSeedsTypes(t *testing.T) {
	for _, driver := range []string{config.DriverSQLite, config.DriverBadger} {
		t.Run(driver, func(t *testing.T) {
			injector := NewToolContainer(testConfig(t, driver, false), quietLogger())
			t.Cleanup(func() { injector.Shutdown() })

			boot, err := do.Invoke[*providers.Bootstrap](injector)
			require.NoError(t, err)
			assert.Equal(t, len(service.DefaultTypeLabels), boot.TypesCreated)

			storeHandle := do.MustInvoke[*providers.StoreHandle](injector)
			assert.Equal(t, driver, storeHandle.Driver)

			types, err := storeHandle.ListTypes(context.Background())
			require.NoError(t, err)
			assert.Len(t, types, len(service.DefaultTypeLabels))
		})
	}
}

func TestToolContainer_SearchDisabled(t *testing.T) {
	injector := NewToolContainer(testConfig(t, config.DriverSQLite, false), quietLogger())
	t.Cleanup(func() { injector.Shutdown() })

	handle, err := do.Invoke[*providers.SearchIndexHandle](injector)
	require.NoError(t, err)
	assert.Nil(t, handle.SearchIndex)
	assert.NoError(t, handle.Shutdown())
}

func TestToolContainer_SearchEnabled(t *testing.T) {
	injector := NewToolContainer(testConfig(t, config.DriverSQLite, true), quietLogger())
	t.Cleanup(func() { injector.Shutdown() })

	handle, err := do.Invoke[*providers.SearchIndexHandle](injector)
	require.NoError(t, err)
	require.NotNil(t, handle.SearchIndex)

	count, err := handle.DocumentCount()
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestOpenStore_UnknownDriver(t *testing.T) {
	cfg := testConfig(t, "postgres", false)

	_, err := providers.OpenStore(cfg, nil)

	assert.ErrorContains(t, err, `unsupported database driver "postgres"`)
}

func TestRockServiceWithoutSearch(t *testing.T) {
	injector := NewToolContainer(testConfig(t, config.DriverSQLite, false), quietLogger())
	do.Provide(injector, providers.ProvideSSEManager)
	do.Provide(injector, providers.ProvideRockService)
	t.Cleanup(func() { injector.Shutdown() })

	storeHandle := do.MustInvoke[*providers.StoreHandle](injector)
	ctx := context.Background()

	user := &domain.User{ID: "user-1", Email: "ada@example.com", FirstName: "Ada", LastName: "Stone", CreatedAt: time.Now(), UpdatedAt: time.Now()}
	require.NoError(t, storeHandle.CreateUser(ctx, user))
	typ := &domain.Type{Label: "Igneous"}
	require.NoError(t, storeHandle.CreateType(ctx, typ))

	rocks := do.MustInvoke[*service.RockService](injector)
	_, err := rocks.Create(ctx, []byte(`{"name":"Basalt","weight":1.5,"typeId":1}`), user)
	require.NoError(t, err)

	// Without an index, search scans the store.
	found, err := rocks.Search(ctx, "basalt", "", 0, user)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "Basalt", found[0].Name)
}
