//go:build integration_test

package record_test

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/victornm/dramquiz/internal/ledger"
	"github.com/victornm/dramquiz/internal/migrations"
	"github.com/victornm/dramquiz/internal/record"
)

func TestPostgres(t *testing.T) {
	ctx := context.Background()
	dsn := startPostgres(t, ctx)

	require.NoError(t, migrations.Up(ctx, dsn))

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	t.Run("store", func(t *testing.T) {
		testStore(t, record.NewPostgresStore(pool))
	})

	t.Run("ledger", func(t *testing.T) {
		l := ledger.NewPostgres(pool)
		req := ledger.CreditRequest{
			Identity:        "u1",
			Amount:          decimal.NewFromInt(150),
			Reason:          "quick session",
			SourceSessionID: "s1",
			CreateTime:      time.Now(),
		}

		c, err := l.CreditReward(ctx, req)
		require.NoError(t, err)
		require.False(t, c.Duplicate)
		require.True(t, decimal.NewFromInt(150).Equal(c.Balance))

		c, err = l.CreditReward(ctx, req)
		require.NoError(t, err)
		require.True(t, c.Duplicate)
		require.True(t, decimal.NewFromInt(150).Equal(c.Balance))

		req.SourceSessionID = "s2"
		req.Amount = decimal.NewFromInt(70)
		c, err = l.CreditReward(ctx, req)
		require.NoError(t, err)
		require.True(t, decimal.NewFromInt(220).Equal(c.Balance))
	})
}

func startPostgres(t *testing.T, ctx context.Context) string {
	t.Helper()

	req := tc.ContainerRequest{
		Image:        "postgres:16-alpine",
		Env:          map[string]string{"POSTGRES_USER": "dram", "POSTGRES_PASSWORD": "dram", "POSTGRES_DB": "dramquiz"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForLog("database system is ready to accept connections").WithOccurrence(2).WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	return fmt.Sprintf("postgres://dram:dram@%s:%s/dramquiz?sslmode=disable", host, port.Port())
}
