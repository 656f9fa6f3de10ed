package enrollment

import (
	"strings"
	"time"
)

type Status string

const (
	Active    Status = "active"
	Completed Status = "completed"
)

type Enrollment struct {
	ID         string    `json:"id" db:"id"`
	UserID     string    `json:"userId" db:"user_id"`
	CourseID   string    `json:"courseId" db:"course_id"`
	Status     Status    `json:"status" db:"status"`
	Progress   int       `json:"progress" db:"progress"`
	AmountPaid *float64  `json:"amountPaid" db:"amount_paid"`
	EnrolledAt time.Time `json:"enrolledAt" db:"enrolled_at"`
}

// Paid is the amount paid, zero when it was never recorded.
func (e Enrollment) Paid() float64 {
	if e.AmountPaid == nil {
		return 0
	}
	return *e.AmountPaid
}

// Detail is an enrollment as the admin dashboard lists it.
type Detail struct {
	Enrollment
	StudentFirstName *string `json:"-" db:"student_first_name"`
	StudentLastName  *string `json:"-" db:"student_last_name"`
	StudentEmail     string  `json:"studentEmail" db:"student_email"`
	CourseTitle      string  `json:"courseTitle" db:"course_title"`
}

// StudentName joins the profile names, falling back to the email.
func (d Detail) StudentName() string {
	var parts []string
	for _, p := range []*string{d.StudentFirstName, d.StudentLastName} {
		if p != nil && *p != "" {
			parts = append(parts, *p)
		}
	}
	if len(parts) == 0 {
		return d.StudentEmail
	}
	return strings.Join(parts, " ")
}

// DashboardItem is one course on the student dashboard.
type DashboardItem struct {
	Enrollment
	CourseTitle      string  `json:"courseTitle" db:"course_title"`
	CourseSlug       string  `json:"courseSlug" db:"course_slug"`
	CourseImageURL   *string `json:"courseImageUrl" db:"course_image_url"`
	TotalLessons     int     `json:"totalLessons" db:"total_lessons"`
	CompletedLessons int     `json:"completedLessons" db:"completed_lessons"`
	NextLesson       *string `json:"nextLesson" db:"next_lesson"`
	CertificateURL   *string `json:"certificateUrl" db:"certificate_url"`
}

// Dashboard sums up the student dashboard.
type Dashboard struct {
	Courses          []DashboardItem `json:"courses"`
	InProgress       int             `json:"inProgress"`
	Completed        int             `json:"completed"`
	LessonsFinished  int             `json:"lessonsFinished"`
	CertificateCount int             `json:"certificates"`
}

func Summarize(items []DashboardItem) Dashboard {
	d := Dashboard{Courses: items}
	for _, it := range items {
		if it.Status == Completed {
			d.Completed++
		} else {
			d.InProgress++
		}
		d.LessonsFinished += it.CompletedLessons
		if it.CertificateURL != nil {
			d.CertificateCount++
		}
	}
	return d
}

// ProgressOf is the completion percentage of a course.
func ProgressOf(completed, total int) int {
	if total <= 0 {
		return 0
	}
	if completed >= total {
		return 100
	}
	return completed * 100 / total
}
