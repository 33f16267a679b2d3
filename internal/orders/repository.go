package orders

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"orderflow/internal/constants"
	pkgerrors "orderflow/pkg/errors"
)

type Repository interface {
	Create(ctx context.Context, order *Order) error
	GetByID(ctx context.Context, id string) (*Order, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]Order, error)
	ListByStatus(ctx context.Context, status OrderStatus, limit int) ([]Order, error)
	UpdateStatus(ctx context.Context, id string, from, to OrderStatus, trackingNumber string) (*Order, error)
}

type PostgresRepository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &PostgresRepository{db: db}
}

// Create inserts the order and its line items in one transaction. The
// order only exists once all of its items do.
func (r *PostgresRepository) Create(ctx context.Context, order *Order) error {
	if order.ID == "" {
		order.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if order.OrderDate.IsZero() {
		order.OrderDate = now
	}
	order.CreatedAt = now
	order.UpdatedAt = now
	if order.Status == "" {
		order.Status = StatusPending
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders (id, user_id, user_email, order_date, status, total_amount,
			shipping_address, shipping_city, shipping_province, shipping_postal_code,
			tracking_number, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`,
		order.ID, order.UserID, order.UserEmail, order.OrderDate, order.Status, order.TotalAmount,
		order.ShippingAddress.Address, order.ShippingAddress.City,
		order.ShippingAddress.Province, order.ShippingAddress.PostalCode,
		nullString(order.TrackingNumber), order.CreatedAt, order.UpdatedAt,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return pkgerrors.ErrConflict.WithCause(err).WithMessage("order %s already exists", order.ID)
		}
		return fmt.Errorf("failed to insert order: %w", err)
	}

	for i := range order.LineItems {
		item := &order.LineItems[i]
		if item.ID == "" {
			item.ID = uuid.New().String()
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO order_line_items (id, order_id, product_id, product_name, quantity, price)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, item.ID, order.ID, item.ProductID, item.ProductName, item.Quantity, item.Price)
		if err != nil {
			return fmt.Errorf("failed to insert line item: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit order: %w", err)
	}
	return nil
}

const orderColumns = `
	id, user_id, user_email, order_date, status, total_amount,
	shipping_address, shipping_city, shipping_province, shipping_postal_code,
	tracking_number, created_at, updated_at
`

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*Order, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)

	order, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkgerrors.ErrNotFound.WithMessage("order %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}

	if err := r.loadLineItems(ctx, order); err != nil {
		return nil, err
	}
	return order, nil
}

func (r *PostgresRepository) ListByUser(ctx context.Context, userID string, limit int) ([]Order, error) {
	return r.list(ctx, `SELECT `+orderColumns+` FROM orders WHERE user_id = $1 ORDER BY order_date DESC LIMIT $2`,
		userID, clampLimit(limit))
}

func (r *PostgresRepository) ListByStatus(ctx context.Context, status OrderStatus, limit int) ([]Order, error) {
	return r.list(ctx, `SELECT `+orderColumns+` FROM orders WHERE status = $1 ORDER BY order_date ASC LIMIT $2`,
		status, clampLimit(limit))
}

// UpdateStatus moves an order to a new status. The WHERE clause carries
// the expected current status, so a concurrent transition loses cleanly
// instead of overwriting.
func (r *PostgresRepository) UpdateStatus(ctx context.Context, id string, from, to OrderStatus, trackingNumber string) (*Order, error) {
	query := `
		UPDATE orders
		SET status = $1, updated_at = $2
		WHERE id = $3 AND status = $4
	`
	args := []interface{}{to, time.Now().UTC(), id, from}
	if trackingNumber != "" {
		query = `
			UPDATE orders
			SET status = $1, updated_at = $2, tracking_number = $5
			WHERE id = $3 AND status = $4
		`
		args = append(args, trackingNumber)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to update order status: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to read update result: %w", err)
	}
	if affected == 0 {
		current, getErr := r.GetByID(ctx, id)
		if getErr != nil {
			return nil, getErr
		}
		return nil, pkgerrors.ErrConflict.WithMessage("order %s is %s, expected %s", id, current.Status, from)
	}

	return r.GetByID(ctx, id)
}

func (r *PostgresRepository) list(ctx context.Context, query string, args ...interface{}) ([]Order, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	var orders []Order
	for rows.Next() {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("context cancelled: %w", ctx.Err())
		default:
		}

		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, *order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate orders: %w", err)
	}

	for i := range orders {
		if err := r.loadLineItems(ctx, &orders[i]); err != nil {
			return nil, err
		}
	}
	return orders, nil
}

func (r *PostgresRepository) loadLineItems(ctx context.Context, order *Order) error {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, product_id, product_name, quantity, price
		FROM order_line_items
		WHERE order_id = $1
		ORDER BY product_name ASC
	`, order.ID)
	if err != nil {
		return fmt.Errorf("failed to load line items: %w", err)
	}
	defer rows.Close()

	order.LineItems = nil
	for rows.Next() {
		var item LineItem
		if err := rows.Scan(&item.ID, &item.ProductID, &item.ProductName, &item.Quantity, &item.Price); err != nil {
			return fmt.Errorf("failed to scan line item: %w", err)
		}
		order.LineItems = append(order.LineItems, item)
	}
	return rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanOrder(row rowScanner) (*Order, error) {
	var order Order
	var tracking sql.NullString
	err := row.Scan(
		&order.ID, &order.UserID, &order.UserEmail, &order.OrderDate,
		&order.Status, &order.TotalAmount,
		&order.ShippingAddress.Address, &order.ShippingAddress.City,
		&order.ShippingAddress.Province, &order.ShippingAddress.PostalCode,
		&tracking, &order.CreatedAt, &order.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	order.TrackingNumber = tracking.String
	return &order, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return constants.DefaultListLimit
	}
	if limit > constants.MaxListLimit {
		return constants.MaxListLimit
	}
	return limit
}
