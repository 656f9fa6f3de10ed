package lesson

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/irsalhamdi/raiseup/core/enrollment"
	"github.com/irsalhamdi/raiseup/database"
	"github.com/jmoiron/sqlx"
)

var (
	ErrNotFound     = errors.New("lesson not found")
	ErrPositionUsed = errors.New("another lesson already has this position")
)

const columns = `id, course_id, position, title, description, is_free, video_url, duration_minutes, created_at, updated_at`

func ListByCourse(ctx context.Context, db sqlx.ExtContext, courseID string) ([]Lesson, error) {
	q := `SELECT ` + columns + ` FROM lessons WHERE course_id = $1 ORDER BY position`

	ls := []Lesson{}
	if err := database.SelectContext(ctx, db, &ls, q, courseID); err != nil {
		return nil, fmt.Errorf("selecting lessons of course[%s]: %w", courseID, err)
	}
	return ls, nil
}

func Fetch(ctx context.Context, db sqlx.ExtContext, id string) (Lesson, error) {
	q := `SELECT ` + columns + ` FROM lessons WHERE id = $1`

	var l Lesson
	if err := database.GetContext(ctx, db, &l, q, id); err != nil {
		if errors.Is(err, database.ErrDBNotFound) {
			return Lesson{}, ErrNotFound
		}
		return Lesson{}, fmt.Errorf("selecting lesson[%s]: %w", id, err)
	}
	return l, nil
}

func Create(ctx context.Context, db sqlx.ExtContext, l Lesson) error {
	const q = `
	INSERT INTO lessons
		(id, course_id, position, title, description, is_free, video_url, duration_minutes, created_at, updated_at)
	VALUES
		(:id, :course_id, :position, :title, :description, :is_free, :video_url, :duration_minutes, :created_at, :updated_at)`

	if err := database.NamedExecContext(ctx, db, q, l); err != nil {
		if errors.Is(err, database.ErrDBDuplicatedEntry) {
			return ErrPositionUsed
		}
		return fmt.Errorf("inserting lesson: %w", err)
	}
	return nil
}

func Update(ctx context.Context, db sqlx.ExtContext, l Lesson) error {
	const q = `
	UPDATE lessons SET
		position = :position,
		title = :title,
		description = :description,
		is_free = :is_free,
		video_url = :video_url,
		duration_minutes = :duration_minutes,
		updated_at = :updated_at
	WHERE
		id = :id`

	if err := database.NamedExecContext(ctx, db, q, l); err != nil {
		switch {
		case errors.Is(err, database.ErrDBNotFound):
			return ErrNotFound
		case errors.Is(err, database.ErrDBDuplicatedEntry):
			return ErrPositionUsed
		}
		return fmt.Errorf("updating lesson[%s]: %w", l.ID, err)
	}
	return nil
}

// Complete records that the user finished the lesson and brings the
// enrollment progress up to date. Completing a lesson twice is harmless.
func Complete(ctx context.Context, db *sqlx.DB, e enrollment.Enrollment, lessonID string, now time.Time) (Progress, error) {
	p := Progress{EnrollmentID: e.ID, CourseID: e.CourseID}

	err := database.Transaction(ctx, db, func(tx sqlx.ExtContext) error {
		const ins = `
		INSERT INTO lesson_progress
			(lesson_id, user_id, completed_at)
		VALUES
			($1, $2, $3)
		ON CONFLICT DO NOTHING`

		if _, err := tx.ExecContext(ctx, ins, lessonID, e.UserID, now); err != nil {
			return fmt.Errorf("recording lesson[%s] completion: %w", lessonID, err)
		}

		const count = `
		SELECT
			COUNT(*) AS total,
			COUNT(lp.lesson_id) AS completed
		FROM
			lessons AS l
		LEFT JOIN
			lesson_progress AS lp ON lp.lesson_id = l.id AND lp.user_id = $2
		WHERE
			l.course_id = $1`

		var row struct {
			Total     int `db:"total"`
			Completed int `db:"completed"`
		}
		if err := database.GetContext(ctx, tx, &row, count, e.CourseID, e.UserID); err != nil {
			return fmt.Errorf("counting completed lessons: %w", err)
		}

		p.Total = row.Total
		p.Completed = row.Completed
		p.Percent = enrollment.ProgressOf(row.Completed, row.Total)

		return enrollment.SetProgress(ctx, tx, e.ID, p.Percent)
	})
	if err != nil {
		return Progress{}, err
	}
	return p, nil
}
