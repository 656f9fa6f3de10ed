package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/gorilla/mux"
	"github.com/irsalhamdi/raiseup/api/weberr"
	"github.com/irsalhamdi/raiseup/core/cart"
	"github.com/plutov/paypal/v4"
	"github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v74"
	stripecl "github.com/stripe/stripe-go/v74/client"
	"github.com/stripe/stripe-go/v74/webhook"
	mock "github.com/stripe/stripe-mock/param"
)

func discard() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func sampleRequest() Request {
	return Request{
		Items: []LineItem{
			{CourseID: "c1", CourseName: "Go for beginners", Price: 99.99, Quantity: 1},
			{CourseID: "c2", CourseName: "Advanced SQL", Price: 49.5, Quantity: 2},
		},
		CustomerEmail: "jane@example.com",
		SuccessURL:    "https://raiseup.test/success",
		CancelURL:     "https://raiseup.test/cart",
	}
}

func TestFromCart(t *testing.T) {
	if _, err := FromCart(nil, "", "", ""); !errors.Is(err, ErrEmptyCart) {
		t.Fatalf("expected ErrEmptyCart, got %v", err)
	}

	items := []cart.Item{
		{ID: "c1", Title: "Go for beginners", Price: 99.99, Quantity: 1},
		{ID: "c2", Title: "Advanced SQL", Price: 49.5, Quantity: 2},
	}
	got, err := FromCart(items, "jane@example.com", "https://raiseup.test/success", "https://raiseup.test/cart")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(sampleRequest(), got); diff != "" {
		t.Fatalf("request mismatch (-want +got):\n%s", diff)
	}
	if got.TotalCents() != 19899 {
		t.Fatalf("expected 19899 cents, got %d", got.TotalCents())
	}
}

func TestAmount(t *testing.T) {
	tests := map[int64]string{
		0:     "0.00",
		5:     "0.05",
		4950:  "49.50",
		19899: "198.99",
	}
	for cents, want := range tests {
		if got := amount(cents); got != want {
			t.Errorf("amount(%d): expected %s, got %s", cents, want, got)
		}
	}
}

// =============================================================================

// lines flattens the line_items form parameter, which the parser may return
// either as a list or as an index keyed map.
func lines(v interface{}) []map[string]interface{} {
	var out []map[string]interface{}
	switch vv := v.(type) {
	case []interface{}:
		for _, li := range vv {
			out = append(out, li.(map[string]interface{}))
		}
	case map[string]interface{}:
		for i := 0; i < len(vv); i++ {
			out = append(out, vv[fmt.Sprint(i)].(map[string]interface{}))
		}
	}
	return out
}

func TestStripeCreate(t *testing.T) {
	var got []string

	r := mux.NewRouter()
	r.HandleFunc("/v1/checkout/sessions", func(w http.ResponseWriter, r *http.Request) {
		params, err := mock.ParseParams(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		for _, li := range lines(params["line_items"]) {
			pd := li["price_data"].(map[string]interface{})
			got = append(got, fmt.Sprintf("%s x %s", pd["unit_amount"], li["quantity"]))
		}
		if params["customer_email"] != "jane@example.com" || params["mode"] != "payment" {
			http.Error(w, "unexpected session params", http.StatusBadRequest)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"cs_test_1","object":"checkout.session","url":"https://checkout.stripe.test/cs_test_1"}`)
	}).Methods(http.MethodPost)

	srv := httptest.NewServer(r)
	defer srv.Close()

	b := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		URL:               stripe.String(srv.URL),
		MaxNetworkRetries: stripe.Int64(0),
		LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelNull},
	})
	api := &stripecl.API{}
	api.Init("sk_test_123", &stripe.Backends{API: b, Connect: b, Uploads: b})

	gw := Stripe{API: api, Currency: "usd"}
	sess, err := gw.Create(context.Background(), sampleRequest())
	if err != nil {
		t.Fatal(err)
	}

	want := Session{ID: "cs_test_1", URL: "https://checkout.stripe.test/cs_test_1"}
	if diff := cmp.Diff(want, sess); diff != "" {
		t.Fatalf("session mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"9999 x 1", "4950 x 2"}, got); diff != "" {
		t.Fatalf("line items mismatch (-want +got):\n%s", diff)
	}
}

type paypalFake struct {
	mu       sync.Mutex
	units    []paypal.PurchaseUnitRequest
	captures int
}

func (f *paypalFake) captured() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.captures
}

func newPaypal(t *testing.T, captureStatus string) (Paypal, *paypalFake) {
	t.Helper()
	fake := &paypalFake{}

	r := mux.NewRouter()
	r.HandleFunc("/v1/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"A21AA","token_type":"Bearer","expires_in":32400}`)
	}).Methods(http.MethodPost)
	r.HandleFunc("/v2/checkout/orders", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Units []paypal.PurchaseUnitRequest `json:"purchase_units"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		fake.mu.Lock()
		fake.units = body.Units
		fake.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"PP-1","status":"CREATED","links":[
			{"href":"https://paypal.test/self","rel":"self","method":"GET"},
			{"href":"https://paypal.test/approve/PP-1","rel":"approve","method":"GET"}]}`)
	}).Methods(http.MethodPost)
	r.HandleFunc("/v2/checkout/orders/{id}/capture", func(w http.ResponseWriter, r *http.Request) {
		fake.mu.Lock()
		fake.captures++
		fake.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"id":%q,"status":%q}`, mux.Vars(r)["id"], captureStatus)
	}).Methods(http.MethodPost)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	c, err := paypal.NewClient("client", "secret", srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	return Paypal{Client: c, Currency: "usd"}, fake
}

func TestPaypalCreate(t *testing.T) {
	gw, fake := newPaypal(t, "COMPLETED")

	sess, err := gw.Create(context.Background(), sampleRequest())
	if err != nil {
		t.Fatal(err)
	}

	want := Session{ID: "PP-1", URL: "https://paypal.test/approve/PP-1"}
	if diff := cmp.Diff(want, sess); diff != "" {
		t.Fatalf("session mismatch (-want +got):\n%s", diff)
	}

	if len(fake.units) != 1 {
		t.Fatalf("expected one purchase unit, got %d", len(fake.units))
	}
	u := fake.units[0]
	if u.Amount.Value != "198.99" || u.Amount.Currency != "USD" {
		t.Fatalf("unexpected amount %s %s", u.Amount.Value, u.Amount.Currency)
	}
	if len(u.Items) != 2 || u.Items[1].Quantity != "2" || u.Items[1].UnitAmount.Value != "49.50" {
		t.Fatalf("unexpected items %+v", u.Items)
	}
}

func TestPaypalCapture(t *testing.T) {
	gw, _ := newPaypal(t, "COMPLETED")
	if err := gw.Capture(context.Background(), "PP-1"); err != nil {
		t.Fatal(err)
	}

	gw, _ = newPaypal(t, "PAYER_ACTION_REQUIRED")
	if err := gw.Capture(context.Background(), "PP-1"); err == nil {
		t.Fatal("expected an incomplete capture to fail")
	}
}

// =============================================================================

func TestStripeWebhookSignature(t *testing.T) {
	const secret = "whsec_test"

	s := NewService(Config{Log: discard()})
	h := s.HandleStripeWebhook(secret)

	payload := []byte(fmt.Sprintf(`{"id":"evt_1","object":"event","api_version":%q,"type":"customer.created","data":{"object":{}}}`, stripe.APIVersion))

	call := func(sig string) (int, *httptest.ResponseRecorder) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", strings.NewReader(string(payload)))
		if sig != "" {
			r.Header.Set("Stripe-Signature", sig)
		}
		return weberr.Status(h(r.Context(), w, r)), w
	}

	if code, _ := call(""); code != http.StatusBadRequest {
		t.Fatalf("unsigned event: expected 400, got %d", code)
	}

	forged := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    "whsec_other",
		Timestamp: time.Now(),
	})
	if code, _ := call(forged.Header); code != http.StatusBadRequest {
		t.Fatalf("forged event: expected 400, got %d", code)
	}

	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    secret,
		Timestamp: time.Now(),
	})
	code, w := call(signed.Header)
	if code != http.StatusOK || w.Code != http.StatusNoContent {
		t.Fatalf("ignored event: expected 204, got %d/%d", code, w.Code)
	}
}
