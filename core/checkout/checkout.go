// Package checkout turns a cart into a hosted payment page and fulfils the
// order once the payment provider confirms it.
package checkout

import (
	"errors"
	"time"

	"github.com/irsalhamdi/raiseup/core/cart"
)

var (
	ErrEmptyCart = errors.New("no items to checkout")
	ErrNotFound  = errors.New("order not found")
)

type Status string

const (
	Pending Status = "pending"
	Success Status = "success"
	Expired Status = "expired"
)

type Order struct {
	ID         string    `json:"id" db:"order_id"`
	UserID     string    `json:"userId" db:"user_id"`
	Provider   string    `json:"provider" db:"provider"`
	ProviderID string    `json:"providerId" db:"provider_id"`
	Status     Status    `json:"status" db:"status"`
	CreatedAt  time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt  time.Time `json:"updatedAt" db:"updated_at"`
}

type StatusUp struct {
	ID        string    `db:"order_id"`
	Status    Status    `db:"status"`
	UpdatedAt time.Time `db:"updated_at"`
}

type Item struct {
	OrderID     string    `json:"orderId" db:"order_id"`
	CourseID    string    `json:"courseId" db:"course_id"`
	CourseTitle string    `json:"courseTitle" db:"course_title"`
	Price       float64   `json:"price" db:"price"`
	Quantity    int       `json:"quantity" db:"quantity"`
	CreatedAt   time.Time `json:"createdAt" db:"created_at"`
}

// LineItem is one course of a checkout request.
type LineItem struct {
	CourseID   string  `json:"courseId"`
	CourseName string  `json:"courseName"`
	Price      float64 `json:"price"`
	Quantity   int     `json:"quantity"`
}

func (li LineItem) UnitCents() int64 { return cart.Cents(li.Price) }

// Request is what a payment provider needs to open a hosted payment page.
type Request struct {
	Items         []LineItem `json:"items"`
	CustomerEmail string     `json:"customerEmail"`
	SuccessURL    string     `json:"successUrl"`
	CancelURL     string     `json:"cancelUrl"`
}

func (r Request) TotalCents() int64 {
	var tot int64
	for _, li := range r.Items {
		tot += li.UnitCents() * int64(li.Quantity)
	}
	return tot
}

// FromCart builds the request for the cart items. Only the id, price and
// quantity are taken from the cart; the name is shown on the payment page.
func FromCart(items []cart.Item, email, successURL, cancelURL string) (Request, error) {
	if len(items) == 0 {
		return Request{}, ErrEmptyCart
	}

	req := Request{
		Items:         make([]LineItem, 0, len(items)),
		CustomerEmail: email,
		SuccessURL:    successURL,
		CancelURL:     cancelURL,
	}
	for _, it := range items {
		req.Items = append(req.Items, LineItem{
			CourseID:   it.ID,
			CourseName: it.Title,
			Price:      it.Price,
			Quantity:   it.Quantity,
		})
	}
	return req, nil
}

// Session is the provider side of a checkout.
type Session struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}
