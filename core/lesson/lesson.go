package lesson

import "time"

type Lesson struct {
	ID              string    `json:"id" db:"id"`
	CourseID        string    `json:"courseId" db:"course_id"`
	Position        int       `json:"position" db:"position"`
	Title           string    `json:"title" db:"title"`
	Description     *string   `json:"description" db:"description"`
	Free            bool      `json:"free" db:"is_free"`
	VideoURL        *string   `json:"videoUrl,omitempty" db:"video_url"`
	DurationMinutes *int      `json:"durationMinutes" db:"duration_minutes"`
	CreatedAt       time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt       time.Time `json:"updatedAt" db:"updated_at"`
}

// Preview hides the video of lessons that are not free.
func (l Lesson) Preview() Lesson {
	if !l.Free {
		l.VideoURL = nil
	}
	return l
}

type LessonNew struct {
	CourseID        string  `json:"courseId" validate:"required,uuid4"`
	Position        int     `json:"position" validate:"gte=0"`
	Title           string  `json:"title" validate:"required,max=200"`
	Description     *string `json:"description"`
	Free            bool    `json:"free"`
	VideoURL        *string `json:"videoUrl" validate:"omitempty,url"`
	DurationMinutes *int    `json:"durationMinutes" validate:"omitempty,gte=0"`
}

type LessonUp struct {
	Position        *int    `json:"position" validate:"omitempty,gte=0"`
	Title           *string `json:"title" validate:"omitempty,max=200"`
	Description     *string `json:"description"`
	Free            *bool   `json:"free"`
	VideoURL        *string `json:"videoUrl" validate:"omitempty,url"`
	DurationMinutes *int    `json:"durationMinutes" validate:"omitempty,gte=0"`
}

func (up LessonUp) Apply(l *Lesson) {
	if up.Position != nil {
		l.Position = *up.Position
	}
	if up.Title != nil {
		l.Title = *up.Title
	}
	if up.Description != nil {
		l.Description = up.Description
	}
	if up.Free != nil {
		l.Free = *up.Free
	}
	if up.VideoURL != nil {
		l.VideoURL = up.VideoURL
	}
	if up.DurationMinutes != nil {
		l.DurationMinutes = up.DurationMinutes
	}
}

// Progress is the state of a course for one student after a lesson was
// completed.
type Progress struct {
	EnrollmentID string `json:"enrollmentId"`
	CourseID     string `json:"courseId"`
	Completed    int    `json:"completedLessons"`
	Total        int    `json:"totalLessons"`
	Percent      int    `json:"progress"`
}

func (p Progress) Done() bool { return p.Percent >= 100 }
