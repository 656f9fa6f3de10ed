package document

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/irsalhamdi/raiseup/blob"
	"github.com/irsalhamdi/raiseup/database"
	"github.com/irsalhamdi/raiseup/email"
	"github.com/irsalhamdi/raiseup/random"
	"github.com/irsalhamdi/raiseup/validate"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

var (
	ErrNotFound     = errors.New("certificate not found")
	ErrNotCompleted = errors.New("course not completed yet")
)

type Mailer interface {
	SendCertificate(ctx context.Context, to string, c email.Certificate) error
}

// Runner runs a task outside of the request.
type Runner interface {
	Run(fn func())
}

// Record is an issued certificate.
type Record struct {
	ID           string    `json:"id" db:"id"`
	EnrollmentID string    `json:"enrollmentId" db:"enrollment_id"`
	Number       string    `json:"certificateNumber" db:"certificate_number"`
	PDFURL       string    `json:"pdfUrl" db:"pdf_url"`
	IssuedDate   time.Time `json:"issuedDate" db:"issued_date"`
}

// Name is the object name of the certificate in the certificates bucket.
func (c Record) Name() string {
	return "certificates/certificate-" + c.Number + ".pdf"
}

// completion is what a certificate is printed from.
type completion struct {
	EnrollmentID        string     `db:"enrollment_id"`
	UserID              string     `db:"user_id"`
	Status              string     `db:"status"`
	StudentEmail        string     `db:"student_email"`
	StudentFirstName    *string    `db:"student_first_name"`
	StudentLastName     *string    `db:"student_last_name"`
	CourseTitle         string     `db:"course_title"`
	DurationHours       *int       `db:"duration_hours"`
	InstructorFirstName *string    `db:"instructor_first_name"`
	InstructorLastName  *string    `db:"instructor_last_name"`
	CompletedAt         *time.Time `db:"completed_at"`
}

func join(fallback string, names ...*string) string {
	var parts []string
	for _, n := range names {
		if n != nil && *n != "" {
			parts = append(parts, *n)
		}
	}
	if len(parts) == 0 {
		return fallback
	}
	return strings.Join(parts, " ")
}

func (c completion) data(number string, now time.Time) CertificateData {
	d := CertificateData{
		Number:         number,
		StudentName:    join(c.StudentEmail, c.StudentFirstName, c.StudentLastName),
		CourseTitle:    c.CourseTitle,
		CompletedAt:    now,
		InstructorName: join("RaiseUP Instructor", c.InstructorFirstName, c.InstructorLastName),
	}
	if c.DurationHours != nil {
		d.DurationHours = *c.DurationHours
	}
	if c.CompletedAt != nil {
		d.CompletedAt = *c.CompletedAt
	}
	return d
}

type Store struct {
	log    logrus.FieldLogger
	db     *sqlx.DB
	bucket blob.Bucket
	mailer Mailer
	bg     Runner
}

func NewStore(log logrus.FieldLogger, db *sqlx.DB, bucket blob.Bucket, mailer Mailer, bg Runner) *Store {
	return &Store{log: log, db: db, bucket: bucket, mailer: mailer, bg: bg}
}

func fetchCertificate(ctx context.Context, db sqlx.ExtContext, enrollmentID string) (Record, error) {
	const q = `
	SELECT
		id, enrollment_id, certificate_number, pdf_url, issued_date
	FROM
		certificates
	WHERE
		enrollment_id = $1
	ORDER BY
		issued_date DESC
	LIMIT 1`

	var c Record
	if err := database.GetContext(ctx, db, &c, q, enrollmentID); err != nil {
		if errors.Is(err, database.ErrDBNotFound) {
			return Record{}, ErrNotFound
		}
		return Record{}, fmt.Errorf("selecting certificate of enrollment[%s]: %w", enrollmentID, err)
	}
	return c, nil
}

func fetchCompletion(ctx context.Context, db sqlx.ExtContext, enrollmentID string) (completion, error) {
	const q = `
	SELECT
		e.id AS enrollment_id, e.user_id, e.status,
		u.email AS student_email,
		sp.first_name AS student_first_name, sp.last_name AS student_last_name,
		c.title AS course_title, c.duration_hours,
		ip.first_name AS instructor_first_name, ip.last_name AS instructor_last_name,
		(SELECT MAX(lp.completed_at) FROM lesson_progress AS lp
			JOIN lessons AS l ON l.id = lp.lesson_id
			WHERE l.course_id = e.course_id AND lp.user_id = e.user_id) AS completed_at
	FROM
		enrollments AS e
	JOIN
		auth_users AS u ON u.user_id = e.user_id
	JOIN
		courses AS c ON c.id = e.course_id
	LEFT JOIN
		profiles AS sp ON sp.id = e.user_id
	LEFT JOIN
		profiles AS ip ON ip.id = c.instructor_id
	WHERE
		e.id = $1`

	var c completion
	if err := database.GetContext(ctx, db, &c, q, enrollmentID); err != nil {
		if errors.Is(err, database.ErrDBNotFound) {
			return completion{}, ErrNotFound
		}
		return completion{}, fmt.Errorf("selecting enrollment[%s]: %w", enrollmentID, err)
	}
	return c, nil
}

// Owner returns the user an enrollment belongs to.
func (s *Store) Owner(ctx context.Context, enrollmentID string) (string, error) {
	c, err := fetchCompletion(ctx, s.db, enrollmentID)
	if err != nil {
		return "", err
	}
	return c.UserID, nil
}

// Issue returns the certificate of a completed enrollment, generating,
// uploading and recording it the first time.
func (s *Store) Issue(ctx context.Context, enrollmentID string) (Record, error) {
	existing, err := fetchCertificate(ctx, s.db, enrollmentID)
	switch {
	case err == nil:
		return existing, nil
	case !errors.Is(err, ErrNotFound):
		return Record{}, err
	}

	comp, err := fetchCompletion(ctx, s.db, enrollmentID)
	if err != nil {
		return Record{}, err
	}
	if comp.Status != "completed" {
		return Record{}, ErrNotCompleted
	}

	code, err := random.Code(10)
	if err != nil {
		return Record{}, err
	}

	now := time.Now().UTC()
	cert := Record{
		ID:           validate.GenerateID(),
		EnrollmentID: enrollmentID,
		Number:       "RU-" + code,
		IssuedDate:   now,
	}

	data := comp.data(cert.Number, now)
	pdf, err := Certificate(data)
	if err != nil {
		return Record{}, err
	}

	cert.PDFURL, err = s.bucket.Put(ctx, cert.Name(), bytes.NewReader(pdf))
	if err != nil {
		return Record{}, fmt.Errorf("uploading certificate %s: %w", cert.Number, err)
	}

	const q = `
	INSERT INTO certificates
		(id, enrollment_id, certificate_number, pdf_url, issued_date)
	VALUES
		(:id, :enrollment_id, :certificate_number, :pdf_url, :issued_date)`

	if err := database.NamedExecContext(ctx, s.db, q, cert); err != nil {
		return Record{}, fmt.Errorf("inserting certificate %s: %w", cert.Number, err)
	}

	s.log.WithFields(logrus.Fields{
		"enrollment":  enrollmentID,
		"certificate": cert.Number,
	}).Info("certificate issued")

	if s.mailer != nil {
		msg := email.Certificate{Number: cert.Number, Name: data.StudentName, Course: data.CourseTitle, Link: cert.PDFURL, PDF: pdf}
		to := comp.StudentEmail
		s.bg.Run(func() {
			if err := s.mailer.SendCertificate(context.Background(), to, msg); err != nil {
				s.log.WithError(err).WithField("certificate", msg.Number).Error("sending certificate")
			}
		})
	}
	return cert, nil
}

// Certify issues the certificate in the background so the request that
// completed the course does not wait for the PDF.
func (s *Store) Certify(ctx context.Context, enrollmentID string) {
	s.bg.Run(func() {
		if _, err := s.Issue(context.Background(), enrollmentID); err != nil {
			s.log.WithError(err).WithField("enrollment", enrollmentID).Error("issuing certificate")
		}
	})
}

// Fetch returns the recorded certificate of an enrollment.
func (s *Store) Fetch(ctx context.Context, enrollmentID string) (Record, error) {
	return fetchCertificate(ctx, s.db, enrollmentID)
}

// PutInvoice renders the invoice and stores it in the invoices bucket.
func (s *Store) PutInvoice(ctx context.Context, d InvoiceData) (string, []byte, error) {
	pdf, err := Invoice(d)
	if err != nil {
		return "", nil, err
	}

	u, err := s.bucket.Put(ctx, "invoices/invoice-"+d.Number+".pdf", bytes.NewReader(pdf))
	if err != nil {
		return "", nil, fmt.Errorf("uploading invoice %s: %w", d.Number, err)
	}
	return u, pdf, nil
}
