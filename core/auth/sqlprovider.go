package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/irsalhamdi/raiseup/core/claims"
	"github.com/irsalhamdi/raiseup/core/profile"
	"github.com/irsalhamdi/raiseup/database"
	"github.com/irsalhamdi/raiseup/random"
	"github.com/irsalhamdi/raiseup/validate"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

const tokenBytes = 32

// Mailer delivers the account emails.
type Mailer interface {
	SendPasswordReset(ctx context.Context, to string, name string, link string) error
	SendWelcome(ctx context.Context, to string, name string, link string) error
}

// Runner runs a task off the request path.
type Runner interface {
	Run(fn func())
}

type SQLConfig struct {
	SessionLifetime time.Duration
	ResetTimeout    time.Duration
	ResetURL        string
	WelcomeURL      string
}

// SQLProvider implements Provider on the auth_* tables. New accounts get a
// profile row and a student grant in the same transaction.
type SQLProvider struct {
	Broadcaster

	log    logrus.FieldLogger
	db     *sqlx.DB
	mailer Mailer
	bg     Runner
	cfg    SQLConfig
	now    func() time.Time
}

func NewSQLProvider(log logrus.FieldLogger, db *sqlx.DB, mailer Mailer, bg Runner, cfg SQLConfig) *SQLProvider {
	return &SQLProvider{
		log:    log,
		db:     db,
		mailer: mailer,
		bg:     bg,
		cfg:    cfg,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

type userRow struct {
	ID           string    `db:"user_id"`
	Email        string    `db:"email"`
	PasswordHash []byte    `db:"password_hash"`
	Provider     string    `db:"provider"`
	FirstName    *string   `db:"first_name"`
	LastName     *string   `db:"last_name"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

func (r userRow) principal() Principal {
	p := Principal{ID: r.ID, Email: r.Email, Provider: r.Provider, CreatedAt: r.CreatedAt}
	if r.FirstName != nil {
		p.Metadata.FirstName = *r.FirstName
	}
	if r.LastName != nil {
		p.Metadata.LastName = *r.LastName
	}
	return p
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (p *SQLProvider) SignUp(ctx context.Context, email, password string, meta Metadata) (*Session, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	row := userRow{
		ID:           validate.GenerateID(),
		Email:        normalizeEmail(email),
		PasswordHash: hash,
		Provider:     "email",
		FirstName:    nonEmpty(meta.FirstName),
		LastName:     nonEmpty(meta.LastName),
	}

	if err := p.createUser(ctx, row); err != nil {
		return nil, err
	}

	pr := row.principalAt(p.now())
	p.bg.Run(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := p.mailer.SendWelcome(ctx, pr.Email, pr.Metadata.FirstName, p.cfg.WelcomeURL); err != nil {
			p.log.WithError(err).WithField("user_id", pr.ID).Error("sending welcome email")
		}
	})

	return p.startSession(ctx, pr)
}

func (r userRow) principalAt(t time.Time) Principal {
	r.CreatedAt = t
	return r.principal()
}

func (p *SQLProvider) createUser(ctx context.Context, row userRow) error {
	now := p.now()
	row.CreatedAt = now
	row.UpdatedAt = now

	return database.Transaction(ctx, p.db, func(tx sqlx.ExtContext) error {
		const q = `
		INSERT INTO auth_users
			(user_id, email, password_hash, provider, first_name, last_name, created_at, updated_at)
		VALUES
			(:user_id, :email, :password_hash, :provider, :first_name, :last_name, :created_at, :updated_at)`

		if err := database.NamedExecContext(ctx, tx, q, row); err != nil {
			if errors.Is(err, database.ErrDBDuplicatedEntry) {
				return ErrEmailTaken
			}
			return fmt.Errorf("inserting user: %w", err)
		}

		prof := profile.Profile{
			ID:        row.ID,
			FirstName: row.FirstName,
			LastName:  row.LastName,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := profile.Create(ctx, tx, prof); err != nil {
			return err
		}
		return profile.AddGrant(ctx, tx, row.ID, claims.RoleStudent)
	})
}

func (p *SQLProvider) fetchByEmail(ctx context.Context, email string) (userRow, error) {
	const q = `
	SELECT
		user_id, email, password_hash, provider, first_name, last_name, created_at, updated_at
	FROM
		auth_users
	WHERE
		email = $1`

	var row userRow
	if err := database.GetContext(ctx, p.db, &row, q, normalizeEmail(email)); err != nil {
		return userRow{}, err
	}
	return row, nil
}

func (p *SQLProvider) SignIn(ctx context.Context, email, password string) (*Session, error) {
	row, err := p.fetchByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, database.ErrDBNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("fetching user: %w", err)
	}

	if len(row.PasswordHash) == 0 {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(row.PasswordHash, []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return p.startSession(ctx, row.principal())
}

// SignInExternal signs in a user vouched for by an identity provider,
// creating the account on first use.
func (p *SQLProvider) SignInExternal(ctx context.Context, provider, email string, meta Metadata) (*Session, error) {
	row, err := p.fetchByEmail(ctx, email)
	switch {
	case errors.Is(err, database.ErrDBNotFound):
		row = userRow{
			ID:        validate.GenerateID(),
			Email:     normalizeEmail(email),
			Provider:  provider,
			FirstName: nonEmpty(meta.FirstName),
			LastName:  nonEmpty(meta.LastName),
		}
		if err := p.createUser(ctx, row); err != nil {
			return nil, err
		}
		row.CreatedAt = p.now()
	case err != nil:
		return nil, fmt.Errorf("fetching user: %w", err)
	}

	return p.startSession(ctx, row.principal())
}

func (p *SQLProvider) startSession(ctx context.Context, pr Principal) (*Session, error) {
	plain, hash, err := random.Token(tokenBytes)
	if err != nil {
		return nil, fmt.Errorf("generating session token: %w", err)
	}

	now := p.now()
	expires := now.Add(p.cfg.SessionLifetime)

	const q = `
	INSERT INTO auth_sessions
		(token_hash, user_id, created_at, expires_at)
	VALUES
		($1, $2, $3, $4)`

	if _, err := p.db.ExecContext(ctx, q, hash, pr.ID, now, expires); err != nil {
		return nil, fmt.Errorf("storing session: %w", err)
	}

	s := &Session{Token: plain, Principal: pr, ExpiresAt: expires}
	p.Emit(EventSignedIn, s)
	return s, nil
}

func (p *SQLProvider) CurrentPrincipal(ctx context.Context, token string) (Principal, error) {
	const q = `
	SELECT
		u.user_id, u.email, u.password_hash, u.provider, u.first_name, u.last_name, u.created_at, u.updated_at
	FROM
		auth_sessions AS s
	JOIN
		auth_users AS u ON u.user_id = s.user_id
	WHERE
		s.token_hash = $1 AND s.expires_at > $2`

	var row userRow
	if err := database.GetContext(ctx, p.db, &row, q, random.Hash(token), p.now()); err != nil {
		if errors.Is(err, database.ErrDBNotFound) {
			return Principal{}, ErrSessionNotFound
		}
		return Principal{}, fmt.Errorf("fetching session: %w", err)
	}
	return row.principal(), nil
}

// Refresh extends a live session and announces it.
func (p *SQLProvider) Refresh(ctx context.Context, token string) (*Session, error) {
	pr, err := p.CurrentPrincipal(ctx, token)
	if err != nil {
		return nil, err
	}

	expires := p.now().Add(p.cfg.SessionLifetime)
	const q = `UPDATE auth_sessions SET expires_at = $2 WHERE token_hash = $1`
	if _, err := p.db.ExecContext(ctx, q, random.Hash(token), expires); err != nil {
		return nil, fmt.Errorf("extending session: %w", err)
	}

	s := &Session{Token: token, Principal: pr, ExpiresAt: expires}
	p.Emit(EventTokenRefreshed, s)
	return s, nil
}

func (p *SQLProvider) SignOut(ctx context.Context, token string) error {
	pr, err := p.CurrentPrincipal(ctx, token)
	if err != nil && !errors.Is(err, ErrSessionNotFound) {
		return err
	}

	if _, err := p.db.ExecContext(ctx, `DELETE FROM auth_sessions WHERE token_hash = $1`, random.Hash(token)); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}

	p.Emit(EventSignedOut, &Session{Token: token, Principal: pr})
	return nil
}

// ResetPassword mails a reset link. Unknown addresses succeed silently so
// the endpoint cannot be used to enumerate accounts.
func (p *SQLProvider) ResetPassword(ctx context.Context, email string) error {
	row, err := p.fetchByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, database.ErrDBNotFound) {
			return nil
		}
		return fmt.Errorf("fetching user: %w", err)
	}

	plain, hash, err := random.Token(tokenBytes)
	if err != nil {
		return fmt.Errorf("generating reset token: %w", err)
	}

	const q = `
	INSERT INTO password_resets
		(token_hash, user_id, expires_at)
	VALUES
		($1, $2, $3)`

	if _, err := p.db.ExecContext(ctx, q, hash, row.ID, p.now().Add(p.cfg.ResetTimeout)); err != nil {
		return fmt.Errorf("storing reset token: %w", err)
	}

	pr := row.principal()
	link := p.cfg.ResetURL + "?token=" + plain
	p.bg.Run(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := p.mailer.SendPasswordReset(ctx, pr.Email, pr.Metadata.FirstName, link); err != nil {
			p.log.WithError(err).WithField("user_id", pr.ID).Error("sending password reset email")
		}
	})

	p.Emit(EventPasswordRecovery, &Session{Principal: pr})
	return nil
}

// UpdatePassword consumes a reset token. Every open session of the user is
// closed.
func (p *SQLProvider) UpdatePassword(ctx context.Context, resetToken, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}

	var userID string
	err = database.Transaction(ctx, p.db, func(tx sqlx.ExtContext) error {
		const q = `
		DELETE FROM password_resets
		WHERE token_hash = $1 AND expires_at > $2
		RETURNING user_id`

		if err := database.GetContext(ctx, tx, &userID, q, random.Hash(resetToken), p.now()); err != nil {
			if errors.Is(err, database.ErrDBNotFound) {
				return ErrInvalidResetToken
			}
			return fmt.Errorf("consuming reset token: %w", err)
		}

		const up = `UPDATE auth_users SET password_hash = $2, updated_at = $3 WHERE user_id = $1`
		if _, err := tx.ExecContext(ctx, up, userID, hash, p.now()); err != nil {
			return fmt.Errorf("updating password: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM auth_sessions WHERE user_id = $1`, userID); err != nil {
			return fmt.Errorf("closing sessions: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	p.Emit(EventUserUpdated, &Session{Principal: Principal{ID: userID}})
	return nil
}

// PurgeExpired deletes expired sessions and reset tokens.
func (p *SQLProvider) PurgeExpired(ctx context.Context) (int64, error) {
	now := p.now()
	n, err := database.ExecContext(ctx, p.db, `DELETE FROM auth_sessions WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("purging sessions: %w", err)
	}
	m, err := database.ExecContext(ctx, p.db, `DELETE FROM password_resets WHERE expires_at <= $1`, now)
	if err != nil {
		return n, fmt.Errorf("purging reset tokens: %w", err)
	}
	return n + m, nil
}
