package checkout

import (
	"context"
	"fmt"
	"time"

	"github.com/irsalhamdi/raiseup/core/cart"
	"github.com/irsalhamdi/raiseup/core/enrollment"
	"github.com/irsalhamdi/raiseup/database"
	"github.com/irsalhamdi/raiseup/document"
	"github.com/irsalhamdi/raiseup/email"
	"github.com/irsalhamdi/raiseup/fetch"
	"github.com/irsalhamdi/raiseup/validate"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

type Observer interface {
	Checkout(provider, outcome string)
	OrderFulfilled()
	OrdersExpired(n int64)
}

type Invoicer interface {
	PutInvoice(ctx context.Context, d document.InvoiceData) (string, []byte, error)
}

type Mailer interface {
	SendOrderConfirmation(ctx context.Context, to string, o email.Order) error
}

type Runner interface {
	Run(fn func())
}

type Config struct {
	Log      logrus.FieldLogger
	DB       *sqlx.DB
	Cache    *fetch.Cache
	Invoices Invoicer
	Mailer   Mailer
	Runner   Runner
	Observer Observer
}

type Service struct {
	log      logrus.FieldLogger
	db       *sqlx.DB
	cache    *fetch.Cache
	invoices Invoicer
	mailer   Mailer
	bg       Runner
	obs      Observer
}

func NewService(cfg Config) *Service {
	return &Service{
		log:      cfg.Log,
		db:       cfg.DB,
		cache:    cfg.Cache,
		invoices: cfg.Invoices,
		mailer:   cfg.Mailer,
		bg:       cfg.Runner,
		obs:      cfg.Observer,
	}
}

// Prepare opens the payment page and records the pending order bound to it.
func (s *Service) Prepare(ctx context.Context, userID string, gw Gateway, req Request) (Session, error) {
	sess, err := gw.Create(ctx, req)
	if err != nil {
		s.obs.Checkout(gw.Name(), "failed")
		return Session{}, err
	}

	err = database.Transaction(ctx, s.db, func(tx sqlx.ExtContext) error {
		now := time.Now().UTC()
		ord := Order{
			ID:         validate.GenerateID(),
			UserID:     userID,
			Provider:   gw.Name(),
			ProviderID: sess.ID,
			Status:     Pending,
			CreatedAt:  now,
			UpdatedAt:  now,
		}

		if err := Create(ctx, tx, ord); err != nil {
			return err
		}

		for _, li := range req.Items {
			it := Item{
				OrderID:   ord.ID,
				CourseID:  li.CourseID,
				Price:     li.Price,
				Quantity:  li.Quantity,
				CreatedAt: now,
			}
			if err := CreateItem(ctx, tx, it); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.obs.Checkout(gw.Name(), "failed")
		return Session{}, fmt.Errorf("creating the order bound to payment[%s] for user[%s]: %w", sess.ID, userID, err)
	}

	s.obs.Checkout(gw.Name(), "created")
	return sess, nil
}

// Fulfil completes the order bound to a confirmed payment and enrolls the
// buyer in every course of it. It reports false when the order had already
// been fulfilled.
func (s *Service) Fulfil(ctx context.Context, providerID string) (Order, bool, error) {
	var (
		ord   Order
		items []Item
		done  bool
	)

	err := database.Transaction(ctx, s.db, func(tx sqlx.ExtContext) error {
		var err error
		ord, err = FetchByProviderID(ctx, tx, providerID)
		if err != nil {
			return err
		}
		if ord.Status == Success {
			return nil
		}

		now := time.Now().UTC()
		up := StatusUp{ID: ord.ID, Status: Success, UpdatedAt: now}
		if err := UpdateStatus(ctx, tx, up); err != nil {
			return err
		}
		ord.Status = Success
		ord.UpdatedAt = now

		items, err = FetchItems(ctx, tx, ord.ID)
		if err != nil {
			return err
		}

		for _, it := range items {
			paid := float64(cart.Cents(it.Price)*int64(it.Quantity)) / 100
			e := enrollment.Enrollment{
				ID:         validate.GenerateID(),
				UserID:     ord.UserID,
				CourseID:   it.CourseID,
				Status:     enrollment.Active,
				AmountPaid: &paid,
				EnrolledAt: now,
			}
			if _, err := enrollment.Create(ctx, tx, e); err != nil {
				return err
			}
		}

		done = true
		return nil
	})
	if err != nil {
		return Order{}, false, fmt.Errorf("fulfilling the order bound to payment[%s]: %w", providerID, err)
	}
	if !done {
		return ord, false, nil
	}

	s.cache.Invalidate(enrollment.CacheKey)
	s.obs.OrderFulfilled()
	s.log.WithFields(logrus.Fields{
		"order":    ord.ID,
		"provider": ord.Provider,
		"items":    len(items),
	}).Info("order fulfilled")

	s.bg.Run(func() {
		if err := s.confirm(context.Background(), ord, items); err != nil {
			s.log.WithError(err).WithField("order", ord.ID).Error("sending order confirmation")
		}
	})
	return ord, true, nil
}

// Invoice collects what the invoice of an order shows.
func (s *Service) Invoice(ctx context.Context, ord Order, items []Item) (document.InvoiceData, Customer, error) {
	cust, err := FetchCustomer(ctx, s.db, ord.UserID)
	if err != nil {
		return document.InvoiceData{}, Customer{}, err
	}

	d := document.InvoiceData{
		Number:        document.InvoiceNumber(ord.ID),
		IssuedAt:      ord.UpdatedAt,
		CustomerName:  cust.Name(),
		CustomerEmail: cust.Email,
		PaymentMethod: ord.Provider,
		TransactionID: ord.ProviderID,
	}
	for _, it := range items {
		d.Items = append(d.Items, document.InvoiceItem{
			Description: it.CourseTitle,
			Quantity:    it.Quantity,
			UnitCents:   cart.Cents(it.Price),
		})
	}
	return d, cust, nil
}

func (s *Service) confirm(ctx context.Context, ord Order, items []Item) error {
	d, cust, err := s.Invoice(ctx, ord, items)
	if err != nil {
		return err
	}

	_, pdf, err := s.invoices.PutInvoice(ctx, d)
	if err != nil {
		return err
	}

	courses := make([]string, 0, len(items))
	for _, it := range items {
		courses = append(courses, it.CourseTitle)
	}

	return s.mailer.SendOrderConfirmation(ctx, cust.Email, email.Order{
		Number:  d.Number,
		Name:    cust.Name(),
		Courses: courses,
		Total:   document.Money(d.TotalCents()),
		Invoice: pdf,
	})
}

// ExpireStale expires the orders left pending for longer than maxAge.
func (s *Service) ExpireStale(ctx context.Context, maxAge time.Duration) (int64, error) {
	now := time.Now().UTC()
	n, err := ExpireStale(ctx, s.db, now.Add(-maxAge), now)
	if err != nil {
		return 0, err
	}
	s.obs.OrdersExpired(n)
	return n, nil
}
