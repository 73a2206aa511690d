package orders

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/fjod/go_cart/seafood-cart/internal/domain"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/lib/pq"
	"go.uber.org/zap"
)

type Credentials struct {
	Host              string
	Port              int
	User              string
	Password          string
	DBName            string
	MigrationsDirPath string
}

type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(cred *Credentials, logger *zap.Logger) (*PostgresRepository, error) {
	psqlconn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cred.Host,
		cred.Port,
		cred.User,
		cred.Password,
		cred.DBName)

	db, err := sql.Open("postgres", psqlconn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if e2 := db.Ping(); e2 != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", e2)
	}

	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(10)
	if logger != nil {
		logger.Info("connected to postgres", zap.String("host", cred.Host), zap.String("db", cred.DBName))
	}
	return &PostgresRepository{db: db}, nil
}

func (r *PostgresRepository) RunMigrations(cred *Credentials) error {
	driver, err := postgres.WithInstance(r.db, &postgres.Config{
		MigrationsTable: "seafood_orders_schema_migrations",
	})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", cred.MigrationsDirPath),
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if e2 := m.Up(); e2 != nil && !errors.Is(e2, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", e2)
	}

	return nil
}

// orderDetails holds the parts of an order stored as JSON.
type orderDetails struct {
	Items   []domain.LineItem    `json:"items"`
	Address domain.UserLocation  `json:"address"`
	Slot    domain.DeliverySlot  `json:"slot"`
	Payment domain.PaymentMethod `json:"payment"`
	Coupon  *domain.Coupon       `json:"coupon,omitempty"`
}

func (r *PostgresRepository) CreateOrder(ctx context.Context, order *domain.Order) error {
	details, err := json.Marshal(orderDetails{
		Items:   order.Items,
		Address: order.Address,
		Slot:    order.Slot,
		Payment: order.Payment.Masked(),
		Coupon:  order.Coupon,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal order details: %w", err)
	}

	var couponCode sql.NullString
	if order.Coupon != nil {
		couponCode = sql.NullString{String: order.Coupon.Code, Valid: true}
	}

	query := `INSERT INTO orders (id, session_id, status, subtotal, delivery_fee, discount, tax, total, coupon_code, details, placed_at, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW())`

	_, insertErr := r.db.ExecContext(ctx, query,
		order.ID,
		order.SessionID,
		order.Status,
		order.Subtotal,
		order.DeliveryFee,
		order.Discount,
		order.Tax,
		order.Total,
		couponCode,
		details,
		order.PlacedAt)

	if insertErr != nil {
		var pqErr *pq.Error
		if errors.As(insertErr, &pqErr) && pqErr.Code == "23505" {
			return ErrDuplicateOrder
		}
		return fmt.Errorf("insert order: %w", insertErr)
	}
	return nil
}

const selectOrder = `SELECT id, session_id, status, subtotal, delivery_fee, discount, tax, total, details, placed_at FROM orders`

type scanner interface {
	Scan(dest ...any) error
}

func scanOrder(row scanner) (*domain.Order, error) {
	var order domain.Order
	var details []byte
	if err := row.Scan(
		&order.ID,
		&order.SessionID,
		&order.Status,
		&order.Subtotal,
		&order.DeliveryFee,
		&order.Discount,
		&order.Tax,
		&order.Total,
		&details,
		&order.PlacedAt,
	); err != nil {
		return nil, err
	}

	var d orderDetails
	if err := json.Unmarshal(details, &d); err != nil {
		return nil, fmt.Errorf("unmarshal order details: %w", err)
	}
	order.Items = d.Items
	order.Address = d.Address
	order.Slot = d.Slot
	order.Payment = d.Payment
	order.Coupon = d.Coupon
	return &order, nil
}

func (r *PostgresRepository) GetOrderByID(ctx context.Context, id string) (*domain.Order, error) {
	order, err := scanOrder(r.db.QueryRowContext(ctx, selectOrder+` WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query order by id: %w", err)
	}
	return order, nil
}

func (r *PostgresRepository) ListOrdersBySession(ctx context.Context, sessionID string) ([]*domain.Order, error) {
	rows, err := r.db.QueryContext(ctx, selectOrder+` WHERE session_id = $1 ORDER BY placed_at DESC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query orders by session: %w", err)
	}
	defer rows.Close()

	var orders []*domain.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order row: %w", err)
		}
		orders = append(orders, order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return orders, nil
}

func (r *PostgresRepository) Close() error {
	return r.db.Close()
}
