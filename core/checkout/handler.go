package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/irsalhamdi/raiseup/api/web"
	"github.com/irsalhamdi/raiseup/api/weberr"
	"github.com/irsalhamdi/raiseup/core/cart"
	"github.com/irsalhamdi/raiseup/core/claims"
	"github.com/irsalhamdi/raiseup/document"
	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/webhook"
)

// HandleCheckout sends the cart of the session to gw. The cart is kept
// until the buyer clears it from the success page.
func (s *Service) HandleCheckout(open cart.Opener, gw Gateway, successURL, cancelURL string) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		cust, err := FetchCustomer(ctx, s.db, clm.UserID)
		if err != nil {
			return err
		}

		req, err := FromCart(open(ctx).Items(), cust.Email, successURL, cancelURL)
		if err != nil {
			if errors.Is(err, ErrEmptyCart) {
				return weberr.Unprocessable(err)
			}
			return err
		}

		sess, err := s.Prepare(ctx, clm.UserID, gw, req)
		if err != nil {
			return weberr.NewError(err, "payment provider unavailable, please try again", http.StatusBadGateway)
		}
		return web.Respond(ctx, w, sess, http.StatusOK)
	}
}

// HandlePaypalCapture captures an approved PayPal order of the current user
// and fulfils it.
func (s *Service) HandlePaypalCapture(pp Paypal, open cart.Opener) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}
		providerID := web.Param(r, "id")

		ord, err := FetchByProviderID(ctx, s.db, providerID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return weberr.NotFound(err)
			}
			return err
		}
		if ord.UserID != clm.UserID {
			return weberr.Forbidden(fmt.Errorf("order[%s] belongs to another user", ord.ID))
		}

		if err := pp.Capture(ctx, providerID); err != nil {
			return weberr.NewError(err, "payment could not be captured", http.StatusBadGateway)
		}

		if _, _, err := s.Fulfil(ctx, providerID); err != nil {
			if errors.Is(err, ErrNotFound) {
				return weberr.NotFound(err)
			}
			return fmt.Errorf("the order was payed but its fulfillment failed: %w", err)
		}

		if err := open(ctx).Clear(); err != nil {
			s.log.WithError(err).Warn("clearing cart after capture")
		}
		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}
}

func (s *Service) HandleStripeWebhook(secret string) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		b, err := io.ReadAll(r.Body)
		if err != nil {
			return weberr.BadRequest(fmt.Errorf("cannot read the request body: %w", err))
		}

		sig := r.Header.Get("Stripe-Signature")
		if sig == "" {
			return weberr.BadRequest(errors.New("received stripe event is not signed"))
		}

		event, err := webhook.ConstructEvent(b, sig, secret)
		if err != nil {
			return weberr.BadRequest(fmt.Errorf("cannot construct stripe event: %w", err))
		}

		if event.Type != "checkout.session.completed" {
			return web.Respond(ctx, w, nil, http.StatusNoContent)
		}

		var session stripe.CheckoutSession
		if err = json.Unmarshal(event.Data.Raw, &session); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode stripe event: %w", err))
		}

		if session.Mode != stripe.CheckoutSessionModePayment {
			return web.Respond(ctx, w, nil, http.StatusNoContent)
		}

		if _, _, err := s.Fulfil(ctx, session.ID); err != nil {
			if errors.Is(err, ErrNotFound) {
				return weberr.NotFound(err)
			}
			return fmt.Errorf("the order was payed but its fulfillment failed: %w", err)
		}
		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}
}

func (s *Service) HandleListOrders() web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		ords, err := ListByUser(ctx, s.db, clm.UserID)
		if err != nil {
			return err
		}
		return web.Respond(ctx, w, ords, http.StatusOK)
	}
}

// HandleInvoice renders the invoice of a fulfilled order for its buyer or an
// admin.
func (s *Service) HandleInvoice() web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		id := web.Param(r, "id")
		ord, err := Fetch(ctx, s.db, id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return weberr.NotFound(err, weberr.WithField("order", id))
			}
			return err
		}
		if ord.UserID != clm.UserID && !claims.IsAdmin(ctx) {
			return weberr.Forbidden(fmt.Errorf("order[%s] belongs to another user", id))
		}
		if ord.Status != Success {
			return weberr.Unprocessable(fmt.Errorf("order[%s] is %s", id, ord.Status))
		}

		items, err := FetchItems(ctx, s.db, ord.ID)
		if err != nil {
			return err
		}

		d, _, err := s.Invoice(ctx, ord, items)
		if err != nil {
			return err
		}

		pdf, err := document.Invoice(d)
		if err != nil {
			return err
		}
		return web.RespondBytes(w, "application/pdf", "invoice-"+d.Number+".pdf", pdf)
	}
}
