package orders

import (
	"context"
	"testing"
	"time"

	"github.com/fjod/go_cart/seafood-cart/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupTestDB(t *testing.T) *PostgresRepository {
	if testing.Short() {
		t.Skip("skipping postgres container test in short mode")
	}
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)

	host, err := pgContainer.Host(ctx)
	require.NoError(t, err)

	port, err := pgContainer.MappedPort(ctx, "5432")
	require.NoError(t, err)

	creds := &Credentials{
		Host:              host,
		Port:              port.Int(),
		User:              "testuser",
		Password:          "testpass",
		DBName:            "testdb",
		MigrationsDirPath: "./migrations",
	}

	repo, err := NewPostgresRepository(creds, nil)
	require.NoError(t, err)
	require.NoError(t, repo.RunMigrations(creds))

	t.Cleanup(func() {
		repo.Close()
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	})
	return repo
}

func storedOrder(id, session string, placedAt time.Time) *domain.Order {
	o := testOrder(id)
	o.SessionID = session
	o.Status = domain.OrderStatusConfirmed
	o.PlacedAt = placedAt
	o.DeliveryFee = decimal.NewFromInt(40)
	o.Coupon = &domain.Coupon{Code: "WELCOME10", Discount: decimal.NewFromInt(10)}
	o.Discount = decimal.NewFromInt(10)
	o.Address = domain.UserLocation{Address: "12 Harbour Road", PostalCode: "600001"}
	o.Slot = domain.DeliverySlot{ID: "tomorrow-am", Label: "Tomorrow 7-9 AM"}
	return o
}

func TestPostgresRepository_CreateAndGet(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()
	order := storedOrder("ORD-PG-1", "sess-pg", time.Now().UTC().Truncate(time.Millisecond))

	require.NoError(t, repo.CreateOrder(ctx, order))

	fetched, err := repo.GetOrderByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.SessionID, fetched.SessionID)
	assert.Equal(t, domain.OrderStatusConfirmed, fetched.Status)
	assert.True(t, order.Total.Equal(fetched.Total))
	assert.True(t, order.Discount.Equal(fetched.Discount))
	assert.Len(t, fetched.Items, 1)
	assert.Equal(t, "Seer Fish", fetched.Items[0].Name)
	assert.Equal(t, "Tomorrow 7-9 AM", fetched.Slot.Label)
	assert.Equal(t, "**** **** **** 1111", fetched.Payment.CardNumber)
	require.NotNil(t, fetched.Coupon)
	assert.Equal(t, "WELCOME10", fetched.Coupon.Code)
	assert.True(t, order.PlacedAt.Equal(fetched.PlacedAt))
}

func TestPostgresRepository_Duplicate(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, repo.CreateOrder(ctx, storedOrder("ORD-PG-2", "sess-pg", time.Now())))
	err := repo.CreateOrder(ctx, storedOrder("ORD-PG-2", "sess-pg", time.Now()))
	assert.ErrorIs(t, err, ErrDuplicateOrder)
}

func TestPostgresRepository_NotFound(t *testing.T) {
	repo := setupTestDB(t)

	_, err := repo.GetOrderByID(context.Background(), "ORD-MISSING")
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestPostgresRepository_ListBySession(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()
	base := time.Now().UTC()

	require.NoError(t, repo.CreateOrder(ctx, storedOrder("ORD-PG-A", "sess-list", base)))
	require.NoError(t, repo.CreateOrder(ctx, storedOrder("ORD-PG-B", "sess-list", base.Add(time.Minute))))
	require.NoError(t, repo.CreateOrder(ctx, storedOrder("ORD-PG-C", "other", base)))

	orders, err := repo.ListOrdersBySession(ctx, "sess-list")
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, "ORD-PG-B", orders[0].ID)
	assert.Equal(t, "ORD-PG-A", orders[1].ID)
}
