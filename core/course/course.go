package course

import "time"

type Course struct {
	ID            string    `json:"id" db:"id"`
	Title         string    `json:"title" db:"title"`
	Slug          string    `json:"slug" db:"slug"`
	Description   *string   `json:"description" db:"description"`
	Price         float64   `json:"price" db:"price"`
	ImageURL      *string   `json:"imageUrl" db:"image_url"`
	DurationHours *int      `json:"durationHours" db:"duration_hours"`
	IsPublished   bool      `json:"isPublished" db:"is_published"`
	CategoryID    *string   `json:"categoryId" db:"category_id"`
	InstructorID  *string   `json:"instructorId" db:"instructor_id"`
	CreatedAt     time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt     time.Time `json:"updatedAt" db:"updated_at"`
}

// Listing is a course as the catalog shows it, with the names of its
// category and instructor.
type Listing struct {
	Course
	CategoryName        *string `json:"categoryName" db:"category_name"`
	CategorySlug        *string `json:"categorySlug" db:"category_slug"`
	InstructorFirstName *string `json:"instructorFirstName" db:"instructor_first_name"`
	InstructorLastName  *string `json:"instructorLastName" db:"instructor_last_name"`
}

// InstructorName falls back to a generic label when the instructor has no
// profile names.
func (l Listing) InstructorName() string {
	var first, last string
	if l.InstructorFirstName != nil {
		first = *l.InstructorFirstName
	}
	if l.InstructorLastName != nil {
		last = *l.InstructorLastName
	}
	switch {
	case first != "" && last != "":
		return first + " " + last
	case first != "":
		return first
	case last != "":
		return last
	}
	return "RaiseUP Instructor"
}

type CourseNew struct {
	Title         string  `json:"title" validate:"required,max=200"`
	Description   *string `json:"description"`
	Price         float64 `json:"price" validate:"gte=0,lte=100000"`
	ImageURL      *string `json:"imageUrl" validate:"omitempty,url"`
	DurationHours *int    `json:"durationHours" validate:"omitempty,gte=0"`
	IsPublished   bool    `json:"isPublished"`
	CategoryID    *string `json:"categoryId" validate:"omitempty,uuid4"`
}

type CourseUp struct {
	Title         *string  `json:"title" validate:"omitempty,max=200"`
	Description   *string  `json:"description"`
	Price         *float64 `json:"price" validate:"omitempty,gte=0,lte=100000"`
	ImageURL      *string  `json:"imageUrl" validate:"omitempty,url"`
	DurationHours *int     `json:"durationHours" validate:"omitempty,gte=0"`
	IsPublished   *bool    `json:"isPublished"`
	CategoryID    *string  `json:"categoryId" validate:"omitempty,uuid4"`
}

// Apply copies the fields set in up onto c.
func (up CourseUp) Apply(c *Course) {
	if up.Title != nil {
		c.Title = *up.Title
	}
	if up.Description != nil {
		c.Description = up.Description
	}
	if up.Price != nil {
		c.Price = *up.Price
	}
	if up.ImageURL != nil {
		c.ImageURL = up.ImageURL
	}
	if up.DurationHours != nil {
		c.DurationHours = up.DurationHours
	}
	if up.IsPublished != nil {
		c.IsPublished = *up.IsPublished
	}
	if up.CategoryID != nil {
		c.CategoryID = up.CategoryID
	}
}
