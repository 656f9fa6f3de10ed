package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/irsalhamdi/raiseup/database"
	"github.com/jmoiron/sqlx"
)

func Create(ctx context.Context, db sqlx.ExtContext, o Order) error {
	const q = `
	INSERT INTO orders
		(order_id, user_id, provider, provider_id, status, created_at, updated_at)
	VALUES
		(:order_id, :user_id, :provider, :provider_id, :status, :created_at, :updated_at)`

	if err := database.NamedExecContext(ctx, db, q, o); err != nil {
		return fmt.Errorf("inserting order: %w", err)
	}
	return nil
}

func CreateItem(ctx context.Context, db sqlx.ExtContext, it Item) error {
	const q = `
	INSERT INTO order_items
		(order_id, course_id, price, quantity, created_at)
	VALUES
		(:order_id, :course_id, :price, :quantity, :created_at)`

	if err := database.NamedExecContext(ctx, db, q, it); err != nil {
		return fmt.Errorf("inserting item of order[%s]: %w", it.OrderID, err)
	}
	return nil
}

const orderColumns = `order_id, user_id, provider, provider_id, status, created_at, updated_at`

func Fetch(ctx context.Context, db sqlx.ExtContext, id string) (Order, error) {
	q := `SELECT ` + orderColumns + ` FROM orders WHERE order_id = $1`

	var o Order
	if err := database.GetContext(ctx, db, &o, q, id); err != nil {
		if errors.Is(err, database.ErrDBNotFound) {
			return Order{}, ErrNotFound
		}
		return Order{}, fmt.Errorf("selecting order[%s]: %w", id, err)
	}
	return o, nil
}

// FetchByProviderID locks the order until the transaction ends so concurrent
// deliveries of the same webhook fulfil it once.
func FetchByProviderID(ctx context.Context, db sqlx.ExtContext, providerID string) (Order, error) {
	q := `SELECT ` + orderColumns + ` FROM orders WHERE provider_id = $1 FOR UPDATE`

	var o Order
	if err := database.GetContext(ctx, db, &o, q, providerID); err != nil {
		if errors.Is(err, database.ErrDBNotFound) {
			return Order{}, ErrNotFound
		}
		return Order{}, fmt.Errorf("selecting order bound to payment[%s]: %w", providerID, err)
	}
	return o, nil
}

func ListByUser(ctx context.Context, db sqlx.ExtContext, userID string) ([]Order, error) {
	q := `SELECT ` + orderColumns + ` FROM orders WHERE user_id = $1 ORDER BY created_at DESC`

	ords := []Order{}
	if err := database.SelectContext(ctx, db, &ords, q, userID); err != nil {
		return nil, fmt.Errorf("selecting orders of user[%s]: %w", userID, err)
	}
	return ords, nil
}

func FetchItems(ctx context.Context, db sqlx.ExtContext, orderID string) ([]Item, error) {
	const q = `
	SELECT
		i.order_id, i.course_id, c.title AS course_title, i.price, i.quantity, i.created_at
	FROM
		order_items AS i
	JOIN
		courses AS c ON c.id = i.course_id
	WHERE
		i.order_id = $1
	ORDER BY
		c.title`

	its := []Item{}
	if err := database.SelectContext(ctx, db, &its, q, orderID); err != nil {
		return nil, fmt.Errorf("selecting items of order[%s]: %w", orderID, err)
	}
	return its, nil
}

func UpdateStatus(ctx context.Context, db sqlx.ExtContext, up StatusUp) error {
	const q = `
	UPDATE orders SET
		status = :status,
		updated_at = :updated_at
	WHERE
		order_id = :order_id`

	if err := database.NamedExecContext(ctx, db, q, up); err != nil {
		if errors.Is(err, database.ErrDBNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("updating status of order[%s]: %w", up.ID, err)
	}
	return nil
}

// ExpireStale marks the orders still pending since before as expired.
func ExpireStale(ctx context.Context, db sqlx.ExtContext, before, now time.Time) (int64, error) {
	const q = `
	UPDATE orders SET
		status = $1,
		updated_at = $2
	WHERE
		status = $3 AND created_at < $4`

	n, err := database.ExecContext(ctx, db, q, Expired, now, Pending, before)
	if err != nil {
		return 0, fmt.Errorf("expiring orders: %w", err)
	}
	return n, nil
}

// Customer is who an order is billed to.
type Customer struct {
	Email     string  `db:"email"`
	FirstName *string `db:"first_name"`
	LastName  *string `db:"last_name"`
}

func FetchCustomer(ctx context.Context, db sqlx.ExtContext, userID string) (Customer, error) {
	const q = `
	SELECT
		u.email, p.first_name, p.last_name
	FROM
		auth_users AS u
	LEFT JOIN
		profiles AS p ON p.id = u.user_id
	WHERE
		u.user_id = $1`

	var c Customer
	if err := database.GetContext(ctx, db, &c, q, userID); err != nil {
		return Customer{}, fmt.Errorf("selecting customer[%s]: %w", userID, err)
	}
	return c, nil
}

func (c Customer) Name() string {
	var parts []string
	for _, p := range []*string{c.FirstName, c.LastName} {
		if p != nil && *p != "" {
			parts = append(parts, *p)
		}
	}
	if len(parts) == 0 {
		return c.Email
	}
	return strings.Join(parts, " ")
}
