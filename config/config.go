package config

import "time"

type Config struct {
	Web     Web
	Cors    Cors
	DB      DB
	Session Session
	Auth    Auth
	Email   Email
	Paypal  Paypal
	Stripe  Stripe
	Oauth   Oauth
	Storage Storage
	Cache   Cache
	Jobs    Jobs
	I18n    I18n
}

type Web struct {
	Address         string        `conf:"default:0.0.0.0:8000"`
	MetricsAddress  string        `conf:"default:0.0.0.0:9100"`
	ReadTimeout     time.Duration `conf:"default:5s"`
	WriteTimeout    time.Duration `conf:"default:10s"`
	IdleTimeout     time.Duration `conf:"default:120s"`
	ShutdownTimeout time.Duration `conf:"default:20s"`
}

type Cors struct {
	Origin string
}

type DB struct {
	User         string `conf:"default:postgres"`
	Password     string `conf:"default:postgres,mask"`
	Host         string `conf:"default:localhost:5432"`
	Name         string `conf:"default:raiseup"`
	MaxIdleConns int    `conf:"default:0"`
	MaxOpenConns int    `conf:"default:0"`
	DisableTLS   bool   `conf:"default:true"`
	Migrate      bool   `conf:"default:true"`
}

type Session struct {
	Lifetime   time.Duration `conf:"default:24h"`
	CookieName string        `conf:"default:raiseup_session"`
	Secure     bool          `conf:"default:false"`
}

type Auth struct {
	ResetTimeout     time.Duration `conf:"default:1h"`
	LoginBurst       int           `conf:"default:5"`
	LoginInterval    time.Duration `conf:"default:1m"`
	LimiterExpiryMin int           `conf:"default:30"`
}

type Email struct {
	Address     string `conf:"default:noreply@raiseup.com"`
	FromName    string `conf:"default:RaiseUP"`
	Password    string `conf:"default:,mask"`
	Host        string `conf:"default:localhost"`
	Port        int    `conf:"default:1025"`
	SendgridKey string `conf:"default:,mask"`
	ResetURL    string `conf:"default:http://localhost:3000/reset-password"`
	AppURL      string `conf:"default:http://localhost:3000"`
}

type Paypal struct {
	Enabled   bool   `conf:"default:false"`
	ClientID  string `conf:"default:,mask"`
	Secret    string `conf:"default:,mask"`
	URL       string `conf:"default:https://api-m.sandbox.paypal.com"`
	ReturnURL string `conf:"default:http://localhost:3000/checkout/paypal"`
	CancelURL string `conf:"default:http://localhost:3000/cart"`
}

type Stripe struct {
	APISecret     string `conf:"default:,mask"`
	WebhookSecret string `conf:"default:,mask"`
	SuccessURL    string `conf:"default:http://localhost:3000/checkout/success"`
	CancelURL     string `conf:"default:http://localhost:3000/cart"`
	Currency      string `conf:"default:usd"`
}

type Oauth struct {
	DiscoveryTimeout time.Duration `conf:"default:10s"`
	LoginRedirectURL string        `conf:"default:http://localhost:3000/dashboard"`
	Google           OauthProvider
}

type OauthProvider struct {
	Client      string
	Secret      string `conf:"mask"`
	URL         string `conf:"default:https://accounts.google.com"`
	RedirectURL string
}

type Storage struct {
	Dir        string `conf:"default:./data/objects"`
	PublicURL  string `conf:"default:http://localhost:8000/objects"`
	LocalStore string `conf:"default:./data/local"`
}

type Cache struct {
	TTL             time.Duration `conf:"default:5m"`
	CleanupInterval time.Duration `conf:"default:10m"`
}

type Jobs struct {
	OrderExpirySpec  string        `conf:"default:@every 15m"`
	OrderMaxAge      time.Duration `conf:"default:24h"`
	SessionPurgeSpec string        `conf:"default:@hourly"`
	Timeout          time.Duration `conf:"default:5m"`
}

type I18n struct {
	DefaultLocale string `conf:"default:en"`
}
