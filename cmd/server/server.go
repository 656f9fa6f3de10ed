package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/mail"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/ardanlabs/conf/v3"
	"github.com/irsalhamdi/raiseup/api"
	"github.com/irsalhamdi/raiseup/api/background"
	"github.com/irsalhamdi/raiseup/blob"
	"github.com/irsalhamdi/raiseup/config"
	"github.com/irsalhamdi/raiseup/core/auth"
	"github.com/irsalhamdi/raiseup/core/blog"
	"github.com/irsalhamdi/raiseup/core/cart"
	"github.com/irsalhamdi/raiseup/core/checkout"
	"github.com/irsalhamdi/raiseup/core/profile"
	"github.com/irsalhamdi/raiseup/database"
	"github.com/irsalhamdi/raiseup/document"
	"github.com/irsalhamdi/raiseup/email"
	"github.com/irsalhamdi/raiseup/fetch"
	"github.com/irsalhamdi/raiseup/i18n"
	"github.com/irsalhamdi/raiseup/jobs"
	"github.com/irsalhamdi/raiseup/kv"
	"github.com/irsalhamdi/raiseup/metrics"
	"github.com/irsalhamdi/raiseup/rate"
	"github.com/plutov/paypal/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	stripecl "github.com/stripe/stripe-go/v74/client"
)

func main() {
	log := logrus.New()
	log.SetOutput(os.Stdout)

	if err := Run(log); err != nil {
		log.Error(err)
		os.Exit(1)
	}
}

func Run(logger *logrus.Logger) error {
	logger.Infof("starting server")
	defer logger.Info("shutdown complete")

	const prefix = "RAISEUP"
	var cfg config.Config
	help, err := conf.Parse(prefix, &cfg)
	if err != nil {
		if errors.Is(err, conf.ErrHelpWanted) {
			fmt.Println(help)
			return nil
		}
		return fmt.Errorf("parsing config: %w", err)
	}

	out, err := conf.String(&cfg)
	if err != nil {
		return fmt.Errorf("generating config for output: %w", err)
	}
	logger.Infof("startup config:\n%s", out)

	lw := logger.Writer()
	defer lw.Close()
	errLog := log.New(lw, "", 0)

	// =========================================================================
	// Storage

	db, err := database.Open(cfg.DB)
	if err != nil {
		return fmt.Errorf("failed to open db connection: %w", err)
	}
	defer db.Close()

	if cfg.DB.Migrate {
		if err := database.Migrate(database.URL(cfg.DB)); err != nil {
			return fmt.Errorf("failed to migrate the database: %w", err)
		}
	}

	bucket, err := blob.NewFS(cfg.Storage.Dir, cfg.Storage.PublicURL)
	if err != nil {
		return fmt.Errorf("failed to open the object storage: %w", err)
	}

	sessionManager := scs.New()
	sessionManager.Lifetime = cfg.Session.Lifetime
	sessionManager.Cookie.Name = cfg.Session.CookieName
	sessionManager.Cookie.Secure = cfg.Session.Secure
	sessionManager.Cookie.SameSite = http.SameSiteLaxMode
	if cfg.Storage.LocalStore != "" {
		local, err := kv.NewFile(cfg.Storage.LocalStore)
		if err != nil {
			return fmt.Errorf("failed to open the session storage: %w", err)
		}
		sessionManager.Store = kv.NewSessionStore(local)
	}

	// =========================================================================
	// Observability

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	mtr := metrics.New(reg)

	cache := fetch.New(logger, cfg.Cache.TTL, cfg.Cache.CleanupInterval, mtr)

	// =========================================================================
	// Outbound services

	from := mail.Address{Name: cfg.Email.FromName, Address: cfg.Email.Address}
	var transport email.Transport = email.SMTP{
		Host:     cfg.Email.Host,
		Port:     cfg.Email.Port,
		Username: cfg.Email.Address,
		Password: cfg.Email.Password,
	}
	if cfg.Email.SendgridKey != "" {
		transport = email.Sendgrid{Key: cfg.Email.SendgridKey}
	}
	mailer := email.New(from, transport)

	bg := background.New(logger)

	strp := &stripecl.API{}
	strp.Init(cfg.Stripe.APISecret, nil)

	var pp *checkout.Paypal
	if cfg.Paypal.Enabled {
		c, err := paypal.NewClient(cfg.Paypal.ClientID, cfg.Paypal.Secret, cfg.Paypal.URL)
		if err != nil {
			return fmt.Errorf("failed to build the paypal client: %w", err)
		}
		if _, err = c.GetAccessToken(context.TODO()); err != nil {
			return fmt.Errorf("failed to get the first paypal access token: %w", err)
		}
		pp = &checkout.Paypal{Client: c, Currency: cfg.Stripe.Currency}
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Oauth.DiscoveryTimeout)
	defer cancel()
	google := cfg.Oauth.Google
	oauthProvs, err := auth.MakeProviders(ctx, []auth.ProviderConfig{
		{Name: "google", Client: google.Client, Secret: google.Secret, URL: google.URL, RedirectURL: google.RedirectURL},
	})
	if err != nil {
		return fmt.Errorf("failed to discover oauth providers: %w", err)
	}

	// =========================================================================
	// Domain services

	provider := auth.NewSQLProvider(logger, db, mailer, bg, auth.SQLConfig{
		SessionLifetime: cfg.Session.Lifetime,
		ResetTimeout:    cfg.Auth.ResetTimeout,
		ResetURL:        cfg.Email.ResetURL,
		WelcomeURL:      cfg.Email.AppURL + "/courses",
	})
	profiles := profile.Store{DB: db}

	limiter := rate.NewLimiter(cfg.Auth.LoginBurst, cfg.Auth.LoginInterval, time.Duration(cfg.Auth.LimiterExpiryMin)*time.Minute)
	defer limiter.Stop()

	authSvc := auth.NewService(auth.ServiceConfig{
		Log:              logger,
		Session:          sessionManager,
		Backend:          provider,
		Resolver:         auth.NewResolver(logger, profiles, profiles, mtr),
		Throttle:         limiter,
		Oauth:            oauthProvs,
		LoginRedirectURL: cfg.Oauth.LoginRedirectURL,
	})

	catalog, err := i18n.NewCatalog(cfg.I18n.DefaultLocale)
	if err != nil {
		return fmt.Errorf("failed to load translations: %w", err)
	}
	sessionStorage := func(ctx context.Context) kv.Storage {
		return kv.NewSession(ctx, sessionManager)
	}

	docs := document.NewStore(logger, db, bucket, mailer, bg)

	checkoutSvc := checkout.NewService(checkout.Config{
		Log:      logger,
		DB:       db,
		Cache:    cache,
		Invoices: docs,
		Mailer:   mailer,
		Runner:   bg,
		Observer: mtr,
	})

	// =========================================================================
	// Scheduled jobs

	sched := jobs.New(logger, cfg.Jobs.Timeout)
	tasks := []jobs.Task{
		{
			Name: "order-expiry",
			Spec: cfg.Jobs.OrderExpirySpec,
			Run: func(ctx context.Context) (int64, error) {
				return checkoutSvc.ExpireStale(ctx, cfg.Jobs.OrderMaxAge)
			},
		},
		{
			Name: "session-purge",
			Spec: cfg.Jobs.SessionPurgeSpec,
			Run:  provider.PurgeExpired,
		},
	}
	for _, t := range tasks {
		if err := sched.Add(t); err != nil {
			return err
		}
	}
	sched.Start()

	// =========================================================================
	// HTTP

	mux := api.APIMux(api.APIConfig{
		CorsOrigin: cfg.Cors.Origin,
		Log:        logger,
		DB:         db,
		Session:    sessionManager,
		Cache:      cache,
		Metrics:    mtr,
		Auth:       authSvc,
		Cart:       cart.SessionOpener(logger, sessionManager),
		Catalog:    catalog,
		Locale:     catalog.SessionOpener(sessionStorage),
		Bucket:     bucket,
		Documents:  docs,
		Checkout:   checkoutSvc,
		Stripe:     checkout.Stripe{API: strp, Currency: cfg.Stripe.Currency},
		Paypal:     pp,
		StripeCfg:  cfg.Stripe,
		PaypalCfg:  cfg.Paypal,
		Renderer:   blog.NewRenderer(),
	})

	debugMux := api.DebugMux(logger, db, metrics.Handler(reg))

	api := http.Server{
		Handler:      mux,
		Addr:         cfg.Web.Address,
		ReadTimeout:  cfg.Web.ReadTimeout,
		WriteTimeout: cfg.Web.WriteTimeout,
		IdleTimeout:  cfg.Web.IdleTimeout,
		ErrorLog:     errLog,
	}

	debug := http.Server{
		Handler:  debugMux,
		Addr:     cfg.Web.MetricsAddress,
		ErrorLog: errLog,
	}

	serverErrors := make(chan error, 1)

	go func() {
		logger.Infof("starting debug server at %s", debug.Addr)
		if err := debug.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Error("debug server stopped")
		}
	}()

	go func() {
		logger.Infof("starting api router at %s", api.Addr)
		serverErrors <- api.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		logger.Infof("shutting down: signal %s", sig)

		ctx, cancel := context.WithTimeout(context.Background(), cfg.Web.ShutdownTimeout)
		defer cancel()

		if err := api.Shutdown(ctx); err != nil {
			api.Close()
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		debug.Shutdown(ctx)

		if err := sched.Stop(ctx); err != nil {
			logger.WithError(err).Warn("scheduled jobs did not finish")
		}

		if err := bg.Shutdown(ctx); err != nil {
			return fmt.Errorf("could not complete all background tasks: %w", err)
		}
	}
	return nil
}
