package checkout

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/plutov/paypal/v4"
	"github.com/stripe/stripe-go/v74"
	stripecl "github.com/stripe/stripe-go/v74/client"
)

// Gateway opens hosted payment pages.
type Gateway interface {
	Name() string
	Create(ctx context.Context, req Request) (Session, error)
}

// =============================================================================

type Stripe struct {
	API      *stripecl.API
	Currency string
}

func (s Stripe) Name() string { return "stripe" }

func (s Stripe) Create(ctx context.Context, req Request) (Session, error) {
	li := make([]*stripe.CheckoutSessionLineItemParams, 0, len(req.Items))
	for _, it := range req.Items {
		li = append(li, &stripe.CheckoutSessionLineItemParams{
			Quantity: stripe.Int64(int64(it.Quantity)),

			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:    stripe.String(s.Currency),
				TaxBehavior: stripe.String("inclusive"),
				UnitAmount:  stripe.Int64(it.UnitCents()),

				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(it.CourseName),
					Metadata: map[string]string{
						"course_id": it.CourseID,
					},
				},
			},
		})
	}

	params := &stripe.CheckoutSessionParams{
		SuccessURL: stripe.String(req.SuccessURL),
		CancelURL:  stripe.String(req.CancelURL),
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems:  li,
	}
	if req.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(req.CustomerEmail)
	}
	params.Context = ctx

	sess, err := s.API.CheckoutSessions.New(params)
	if err != nil {
		return Session{}, fmt.Errorf("creating stripe session: %w", err)
	}
	return Session{ID: sess.ID, URL: sess.URL}, nil
}

// =============================================================================

type Paypal struct {
	Client   *paypal.Client
	Currency string
}

func (p Paypal) Name() string { return "paypal" }

func amount(cents int64) string {
	return fmt.Sprintf("%d.%02d", cents/100, cents%100)
}

func (p Paypal) Create(ctx context.Context, req Request) (Session, error) {
	currency := strings.ToUpper(p.Currency)

	items := make([]paypal.Item, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, paypal.Item{
			Quantity: strconv.Itoa(it.Quantity),
			Name:     it.CourseName,
			SKU:      it.CourseID,

			UnitAmount: &paypal.Money{
				Currency: currency,
				Value:    amount(it.UnitCents()),
			},
		})
	}

	tot := amount(req.TotalCents())
	units := []paypal.PurchaseUnitRequest{{
		Items: items,

		Amount: &paypal.PurchaseUnitAmount{
			Currency: currency,
			Value:    tot,

			Breakdown: &paypal.PurchaseUnitAmountBreakdown{ItemTotal: &paypal.Money{
				Currency: currency,
				Value:    tot,
			}},
		},
	}}

	app := &paypal.ApplicationContext{
		BrandName: "RaiseUP",
		ReturnURL: req.SuccessURL,
		CancelURL: req.CancelURL,
	}

	ord, err := p.Client.CreateOrder(ctx, "CAPTURE", units, nil, app)
	if err != nil {
		return Session{}, fmt.Errorf("creating paypal order: %w", err)
	}

	s := Session{ID: ord.ID}
	for _, l := range ord.Links {
		if l.Rel == "approve" {
			s.URL = l.Href
		}
	}
	return s, nil
}

// Capture collects the payment of an approved paypal order.
func (p Paypal) Capture(ctx context.Context, orderID string) error {
	resp, err := p.Client.CaptureOrder(ctx, orderID, paypal.CaptureOrderRequest{})
	if err != nil {
		return fmt.Errorf("capturing paypal order[%s]: %w", orderID, err)
	}
	if resp.Status != "COMPLETED" {
		return fmt.Errorf("captured order[%s] with status[%s] different from 'COMPLETED'", orderID, resp.Status)
	}
	return nil
}
