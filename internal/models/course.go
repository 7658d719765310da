package models

import "time"

// DefaultCourseCredits is assumed whenever a course has no credit weight
// recorded; GPA arithmetic depends on this fallback.
const DefaultCourseCredits = 3

// Course is a unit of study offered in a given semester. Courses are not
// mutated once enrollments reference them.
type Course struct {
	ID          string    `db:"id" json:"id"`
	Code        string    `db:"code" json:"code"`
	Title       string    `db:"title" json:"title"`
	Description string    `db:"description" json:"description,omitempty"`
	Credits     int       `db:"credits" json:"credits"`
	Instructor  string    `db:"instructor" json:"instructor,omitempty"`
	Schedule    string    `db:"schedule" json:"schedule,omitempty"`
	Room        string    `db:"room" json:"room,omitempty"`
	Semester    int       `db:"semester" json:"semester"`
	Department  string    `db:"department" json:"department,omitempty"`
	Active      bool      `db:"active" json:"active"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// CreditWeight returns the credits used for GPA weighting, defaulting when
// the course has none recorded.
func (c *Course) CreditWeight() int {
	if c == nil || c.Credits <= 0 {
		return DefaultCourseCredits
	}
	return c.Credits
}

// CourseFilter provides filters for listing courses.
type CourseFilter struct {
	Semester   int
	Department string
	Active     *bool
	Page       int
	PageSize   int
}
