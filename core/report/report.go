// Package report folds the enrollment, course and user collections into the
// figures of the admin dashboard.
package report

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/irsalhamdi/raiseup/core/claims"
	"github.com/irsalhamdi/raiseup/core/course"
	"github.com/irsalhamdi/raiseup/core/enrollment"
	"github.com/irsalhamdi/raiseup/core/user"
)

type Summary struct {
	TotalRevenue     float64 `json:"totalRevenue"`
	TotalEnrollments int     `json:"totalEnrollments"`
	TotalCourses     int     `json:"totalCourses"`
	PublishedCourses int     `json:"publishedCourses"`
	TotalUsers       int     `json:"totalUsers"`
	AdminUsers       int     `json:"adminUsers"`
}

// Aggregate is recomputed on every call. Enrollments without an amount
// count as free.
func Aggregate(es []enrollment.Enrollment, cs []course.Course, us []user.User) Summary {
	var s Summary

	var cents int64
	for _, e := range es {
		cents += toCents(e.Paid())
	}
	s.TotalRevenue = float64(cents) / 100
	s.TotalEnrollments = len(es)

	s.TotalCourses = len(cs)
	for _, c := range cs {
		if c.IsPublished {
			s.PublishedCourses++
		}
	}

	s.TotalUsers = len(us)
	for _, u := range us {
		if u.Role == claims.RoleAdmin {
			s.AdminUsers++
		}
	}
	return s
}

func toCents(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

type Month struct {
	Month       string  `json:"month"`
	Revenue     float64 `json:"revenue"`
	Enrollments int     `json:"enrollments"`
}

// Monthly returns the revenue and enrollment count of the last n calendar
// months, oldest first, the month of now included.
func Monthly(es []enrollment.Enrollment, now time.Time, n int) []Month {
	if n <= 0 {
		return []Month{}
	}

	now = now.UTC()
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -(n - 1), 0)

	months := make([]Month, n)
	cents := make([]int64, n)
	for i := range months {
		months[i].Month = first.AddDate(0, i, 0).Format("2006-01")
	}

	for _, e := range es {
		at := e.EnrolledAt.UTC()
		i := (at.Year()-first.Year())*12 + int(at.Month()) - int(first.Month())
		if i < 0 || i >= n {
			continue
		}
		months[i].Enrollments++
		cents[i] += toCents(e.Paid())
	}

	for i := range months {
		months[i].Revenue = float64(cents[i]) / 100
	}
	return months
}

// MonthlyGrowth is the revenue growth of the month of now over the previous
// month, as a percentage rounded to one decimal. It is 0 when the previous
// month earned nothing.
func MonthlyGrowth(es []enrollment.Enrollment, now time.Time) float64 {
	ms := Monthly(es, now, 2)
	prev, cur := ms[0].Revenue, ms[1].Revenue
	if prev == 0 {
		return 0
	}
	return math.Round((cur-prev)/prev*1000) / 10
}

// Sources load the collections a report is built from.
type Sources struct {
	Enrollments func(ctx context.Context) ([]enrollment.Enrollment, error)
	Courses     func(ctx context.Context) ([]course.Course, error)
	Users       func(ctx context.Context) ([]user.User, error)
}

type Report struct {
	Summary       Summary  `json:"summary"`
	MonthlyGrowth float64  `json:"monthlyGrowth"`
	Monthly       []Month  `json:"monthly"`
	Errors        []string `json:"errors,omitempty"`
}

// Build loads the sources concurrently. A source that fails contributes
// nothing and its error is listed in the report; the others are still
// folded.
func Build(ctx context.Context, src Sources, now time.Time, months int) Report {
	var (
		wg   sync.WaitGroup
		es   []enrollment.Enrollment
		cs   []course.Course
		us   []user.User
		errs [3]error
	)

	wg.Add(3)
	go func() {
		defer wg.Done()
		es, errs[0] = src.Enrollments(ctx)
	}()
	go func() {
		defer wg.Done()
		cs, errs[1] = src.Courses(ctx)
	}()
	go func() {
		defer wg.Done()
		us, errs[2] = src.Users(ctx)
	}()
	wg.Wait()

	r := Report{}
	names := [3]string{"enrollments", "courses", "users"}
	for i, err := range errs {
		if err != nil {
			r.Errors = append(r.Errors, names[i]+": "+err.Error())
		}
	}
	if errs[0] != nil {
		es = nil
	}
	if errs[1] != nil {
		cs = nil
	}
	if errs[2] != nil {
		us = nil
	}

	r.Summary = Aggregate(es, cs, us)
	r.MonthlyGrowth = MonthlyGrowth(es, now)
	r.Monthly = Monthly(es, now, months)
	return r
}
