package enrollment

import (
	"context"
	"errors"
	"fmt"

	"github.com/irsalhamdi/raiseup/database"
	"github.com/jmoiron/sqlx"
)

var ErrNotFound = errors.New("enrollment not found")

// ListAll returns every enrollment, newest first.
func ListAll(ctx context.Context, db sqlx.ExtContext) ([]Detail, error) {
	const q = `
	SELECT
		e.id, e.user_id, e.course_id, e.status, e.progress, e.amount_paid, e.enrolled_at,
		p.first_name AS student_first_name, p.last_name AS student_last_name,
		u.email AS student_email, c.title AS course_title
	FROM
		enrollments AS e
	JOIN
		auth_users AS u ON u.user_id = e.user_id
	JOIN
		courses AS c ON c.id = e.course_id
	LEFT JOIN
		profiles AS p ON p.id = e.user_id
	ORDER BY
		e.enrolled_at DESC`

	ds := []Detail{}
	if err := database.SelectContext(ctx, db, &ds, q); err != nil {
		return nil, fmt.Errorf("selecting enrollments: %w", err)
	}
	return ds, nil
}

// ListByUser returns the dashboard rows of a student with their lesson
// counts and the first lesson not completed yet.
func ListByUser(ctx context.Context, db sqlx.ExtContext, userID string) ([]DashboardItem, error) {
	const q = `
	SELECT
		e.id, e.user_id, e.course_id, e.status, e.progress, e.amount_paid, e.enrolled_at,
		c.title AS course_title, c.slug AS course_slug, c.image_url AS course_image_url,
		(SELECT COUNT(*) FROM lessons AS l WHERE l.course_id = e.course_id) AS total_lessons,
		(SELECT COUNT(*) FROM lessons AS l
			JOIN lesson_progress AS lp ON lp.lesson_id = l.id AND lp.user_id = e.user_id
			WHERE l.course_id = e.course_id) AS completed_lessons,
		(SELECT l.title FROM lessons AS l
			WHERE l.course_id = e.course_id
			AND NOT EXISTS (SELECT 1 FROM lesson_progress AS lp WHERE lp.lesson_id = l.id AND lp.user_id = e.user_id)
			ORDER BY l.position LIMIT 1) AS next_lesson,
		(SELECT ce.pdf_url FROM certificates AS ce WHERE ce.enrollment_id = e.id
			ORDER BY ce.issued_date DESC LIMIT 1) AS certificate_url
	FROM
		enrollments AS e
	JOIN
		courses AS c ON c.id = e.course_id
	WHERE
		e.user_id = $1
	ORDER BY
		e.enrolled_at DESC`

	items := []DashboardItem{}
	if err := database.SelectContext(ctx, db, &items, q, userID); err != nil {
		return nil, fmt.Errorf("selecting enrollments of user[%s]: %w", userID, err)
	}
	return items, nil
}

func Fetch(ctx context.Context, db sqlx.ExtContext, id string) (Enrollment, error) {
	const q = `
	SELECT
		id, user_id, course_id, status, progress, amount_paid, enrolled_at
	FROM
		enrollments
	WHERE
		id = $1`

	var e Enrollment
	if err := database.GetContext(ctx, db, &e, q, id); err != nil {
		if errors.Is(err, database.ErrDBNotFound) {
			return Enrollment{}, ErrNotFound
		}
		return Enrollment{}, fmt.Errorf("selecting enrollment[%s]: %w", id, err)
	}
	return e, nil
}

func FetchByCourse(ctx context.Context, db sqlx.ExtContext, userID, courseID string) (Enrollment, error) {
	const q = `
	SELECT
		id, user_id, course_id, status, progress, amount_paid, enrolled_at
	FROM
		enrollments
	WHERE
		user_id = $1 AND course_id = $2`

	var e Enrollment
	if err := database.GetContext(ctx, db, &e, q, userID, courseID); err != nil {
		if errors.Is(err, database.ErrDBNotFound) {
			return Enrollment{}, ErrNotFound
		}
		return Enrollment{}, fmt.Errorf("selecting enrollment of user[%s] in course[%s]: %w", userID, courseID, err)
	}
	return e, nil
}

// Create enrolls a user. Enrolling twice in the same course keeps the first
// enrollment and reports false.
func Create(ctx context.Context, db sqlx.ExtContext, e Enrollment) (bool, error) {
	const q = `
	INSERT INTO enrollments
		(id, user_id, course_id, status, progress, amount_paid, enrolled_at)
	VALUES
		(:id, :user_id, :course_id, :status, :progress, :amount_paid, :enrolled_at)
	ON CONFLICT (user_id, course_id) DO NOTHING`

	err := database.NamedExecContext(ctx, db, q, e)
	switch {
	case errors.Is(err, database.ErrDBNotFound):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("enrolling user[%s] in course[%s]: %w", e.UserID, e.CourseID, err)
	}
	return true, nil
}

// SetProgress stores the completion percentage and completes the enrollment
// at 100.
func SetProgress(ctx context.Context, db sqlx.ExtContext, id string, progress int) error {
	const q = `
	UPDATE enrollments SET
		progress = $2,
		status = CASE WHEN $2 >= 100 THEN 'completed' ELSE 'active' END
	WHERE
		id = $1`

	n, err := database.ExecContext(ctx, db, q, id, progress)
	if err != nil {
		return fmt.Errorf("updating progress of enrollment[%s]: %w", id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
