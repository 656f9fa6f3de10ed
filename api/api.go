package api

import (
	"context"
	"net/http"

	"github.com/alexedwards/scs/v2"
	"github.com/gorilla/mux"
	"github.com/irsalhamdi/raiseup/api/middleware"
	"github.com/irsalhamdi/raiseup/api/web"
	"github.com/irsalhamdi/raiseup/blob"
	"github.com/irsalhamdi/raiseup/config"
	"github.com/irsalhamdi/raiseup/core/auth"
	"github.com/irsalhamdi/raiseup/core/blog"
	"github.com/irsalhamdi/raiseup/core/cart"
	"github.com/irsalhamdi/raiseup/core/category"
	"github.com/irsalhamdi/raiseup/core/checkout"
	"github.com/irsalhamdi/raiseup/core/course"
	"github.com/irsalhamdi/raiseup/core/enrollment"
	"github.com/irsalhamdi/raiseup/core/lesson"
	"github.com/irsalhamdi/raiseup/core/report"
	"github.com/irsalhamdi/raiseup/core/user"
	"github.com/irsalhamdi/raiseup/document"
	"github.com/irsalhamdi/raiseup/fetch"
	"github.com/irsalhamdi/raiseup/i18n"
	"github.com/irsalhamdi/raiseup/metrics"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

type APIConfig struct {
	CorsOrigin string
	Log        logrus.FieldLogger
	DB         *sqlx.DB
	Session    *scs.SessionManager
	Cache      *fetch.Cache
	Metrics    *metrics.Metrics
	Auth       *auth.Service
	Cart       cart.Opener
	Catalog    *i18n.Catalog
	Locale     i18n.Opener
	Bucket     blob.Bucket
	Documents  *document.Store
	Checkout   *checkout.Service
	Stripe     checkout.Stripe
	Paypal     *checkout.Paypal
	StripeCfg  config.Stripe
	PaypalCfg  config.Paypal
	Renderer   *blog.Renderer
}

type api struct {
	*mux.Router
	mw  []web.Middleware
	log logrus.FieldLogger
}

func APIMux(cfg APIConfig) http.Handler {
	a := &api{
		Router: mux.NewRouter(),
		log:    cfg.Log,
	}

	a.mw = append(a.mw, auth.LoadAndSave(cfg.Session))
	a.mw = append(a.mw, middleware.RequestID())
	a.mw = append(a.mw, middleware.Logger(cfg.Log))
	a.mw = append(a.mw, middleware.Metrics(cfg.Metrics))
	a.mw = append(a.mw, middleware.Errors(cfg.Log))
	a.mw = append(a.mw, middleware.Panics())

	if cfg.CorsOrigin != "" {
		a.mw = append(a.mw, middleware.Cors(cfg.CorsOrigin))

		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			w.WriteHeader(http.StatusNoContent)
			return nil
		}

		a.Handle(http.MethodOptions, "/{path:.*}", h)
	}

	db, cache := cfg.DB, cfg.Cache
	authen := cfg.Auth.Authenticate()
	identify := cfg.Auth.Identify()
	admin := cfg.Auth.Admin()
	instructor := cfg.Auth.Instructor()

	a.Handle(http.MethodPost, "/auth/signup", cfg.Auth.HandleSignup())
	a.Handle(http.MethodPost, "/auth/login", cfg.Auth.HandleLogin())
	a.Handle(http.MethodPost, "/auth/logout", cfg.Auth.HandleLogout())
	a.Handle(http.MethodPost, "/auth/reset-password", cfg.Auth.HandleResetPassword())
	a.Handle(http.MethodPut, "/auth/password", cfg.Auth.HandleUpdatePassword())
	a.Handle(http.MethodPost, "/auth/refresh", cfg.Auth.HandleRefresh())
	a.Handle(http.MethodGet, "/auth/oauth-login/{provider}", cfg.Auth.HandleOauthLogin())
	a.Handle(http.MethodGet, "/auth/oauth-callback/{provider}", cfg.Auth.HandleOauthCallback())

	a.Handle(http.MethodGet, "/users/current", cfg.Auth.HandleShowCurrent(), authen)
	a.Handle(http.MethodGet, "/admin/users", user.HandleList(db, cache), admin)
	a.Handle(http.MethodPut, "/admin/users/{id}/role", user.HandleUpdateRole(db, cache), admin)
	a.Handle(http.MethodDelete, "/admin/users/{id}", user.HandleDelete(db, cache), admin)

	a.Handle(http.MethodGet, "/cart", cart.HandleShow(cfg.Cart))
	a.Handle(http.MethodDelete, "/cart", cart.HandleClear(cfg.Cart))
	a.Handle(http.MethodPut, "/cart/items", cart.HandleAddItem(cfg.Cart, course.CartLookup(db)))
	a.Handle(http.MethodPatch, "/cart/items/{course_id}", cart.HandleUpdateItem(cfg.Cart))
	a.Handle(http.MethodDelete, "/cart/items/{course_id}", cart.HandleDeleteItem(cfg.Cart))

	a.Handle(http.MethodGet, "/categories", category.HandleList(db, cache))
	a.Handle(http.MethodPost, "/categories", category.HandleCreate(db, cache), admin)

	a.Handle(http.MethodGet, "/courses", course.HandleList(db, cache))
	a.Handle(http.MethodGet, "/courses/all", course.HandleListAll(db, cache), instructor)
	a.Handle(http.MethodGet, "/courses/{course_id}/lessons", lesson.HandleList(db), identify)
	a.Handle(http.MethodGet, "/courses/{id}", course.HandleShow(db))
	a.Handle(http.MethodPost, "/courses", course.HandleCreate(db, cache), instructor)
	a.Handle(http.MethodPut, "/courses/{id}", course.HandleUpdate(db, cache), instructor)

	a.Handle(http.MethodGet, "/lessons/{id}", lesson.HandleShow(db), identify)
	a.Handle(http.MethodPost, "/lessons", lesson.HandleCreate(db), instructor)
	a.Handle(http.MethodPut, "/lessons/{id}", lesson.HandleUpdate(db), instructor)
	a.Handle(http.MethodPost, "/lessons/{id}/complete", lesson.HandleComplete(db, cache, cfg.Documents), authen)

	a.Handle(http.MethodGet, "/dashboard", enrollment.HandleDashboard(db, cache), authen)
	a.Handle(http.MethodGet, "/admin/enrollments", enrollment.HandleListAll(db, cache), admin)
	a.Handle(http.MethodPost, "/enrollments/{id}/certificate", cfg.Documents.HandleIssue(), authen)
	a.Handle(http.MethodGet, "/enrollments/{id}/certificate", cfg.Documents.HandleDownload(), authen)

	a.Handle(http.MethodGet, "/admin/reports", report.HandleShow(cfg.Log, report.DBSources(db, cache)), admin)

	a.Handle(http.MethodGet, "/blog/posts", blog.HandleList(db, cache, cfg.Renderer))
	a.Handle(http.MethodGet, "/blog/posts/{slug}", blog.HandleShow(db, cfg.Renderer))
	a.Handle(http.MethodGet, "/blog/tags", blog.HandleTags(db, cache))
	a.Handle(http.MethodPost, "/blog/posts", blog.HandleCreate(db, cache, cfg.Renderer), admin)
	a.Handle(http.MethodPost, "/blog/tags", blog.HandleCreateTag(db, cache), admin)

	ck := cfg.Checkout
	a.Handle(http.MethodPost, "/checkout/stripe", ck.HandleCheckout(cfg.Cart, cfg.Stripe, cfg.StripeCfg.SuccessURL, cfg.StripeCfg.CancelURL), authen)
	a.Handle(http.MethodPost, "/webhooks/stripe", ck.HandleStripeWebhook(cfg.StripeCfg.WebhookSecret))
	if cfg.Paypal != nil {
		a.Handle(http.MethodPost, "/checkout/paypal", ck.HandleCheckout(cfg.Cart, *cfg.Paypal, cfg.PaypalCfg.ReturnURL, cfg.PaypalCfg.CancelURL), authen)
		a.Handle(http.MethodPost, "/checkout/paypal/{id}/capture", ck.HandlePaypalCapture(*cfg.Paypal, cfg.Cart), authen)
	}
	a.Handle(http.MethodGet, "/orders", ck.HandleListOrders(), authen)
	a.Handle(http.MethodGet, "/orders/{id}/invoice", ck.HandleInvoice(), authen)

	a.Handle(http.MethodGet, "/objects/{bucket}/{file}", blob.HandleServe(cfg.Bucket))

	a.Handle(http.MethodGet, "/i18n/locale", i18n.HandleShow(cfg.Catalog, cfg.Locale))
	a.Handle(http.MethodPut, "/i18n/locale", i18n.HandleUpdate(cfg.Catalog, cfg.Locale))

	return a.Router
}

func (a *api) Handle(method string, path string, handler web.Handler, mw ...web.Middleware) {
	handler = web.WrapMiddleware(mw, handler)
	handler = web.WrapMiddleware(a.mw, handler)

	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if err := handler(ctx, w, r); err != nil {
			a.log.WithFields(logrus.Fields{
				"req_id":  middleware.ContextRequestID(ctx),
				"message": err,
			}).Error("ERROR")
		}
	})

	a.Router.Handle(path, h).Methods(method)
}
