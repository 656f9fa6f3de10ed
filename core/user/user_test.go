package user

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/irsalhamdi/raiseup/core/claims"
	"github.com/irsalhamdi/raiseup/core/profile"
	"github.com/lib/pq"
)

func strp(s string) *string { return &s }

func TestFromListed(t *testing.T) {
	tests := []struct {
		name   string
		grants pq.StringArray
		want   claims.Role
	}{
		{"no grants", pq.StringArray{}, claims.RoleStudent},
		{"instructor", pq.StringArray{"student", "instructor"}, claims.RoleInstructor},
		{"admin wins", pq.StringArray{"instructor", "admin", "student"}, claims.RoleAdmin},
		{"unknown grant", pq.StringArray{"owner"}, claims.RoleStudent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := profile.Listed{
				Profile: profile.Profile{ID: "u1", Role: strp("admin")},
				Email:   "jane@example.com",
				Grants:  tt.grants,
			}

			got := FromListed(l)
			if got.Role != tt.want {
				t.Fatalf("expected role %s, got %s", tt.want, got.Role)
			}
		})
	}
}

func TestFromListedCopiesProfile(t *testing.T) {
	l := profile.Listed{
		Profile: profile.Profile{ID: "u1", FirstName: strp("Jane"), LastName: strp("Smith")},
		Email:   "jane@example.com",
	}

	want := User{ID: "u1", Email: "jane@example.com", FirstName: strp("Jane"), LastName: strp("Smith"), Role: claims.RoleStudent}
	if diff := cmp.Diff(want, FromListed(l)); diff != "" {
		t.Fatalf("user mismatch (-want +got):\n%s", diff)
	}
}

func TestName(t *testing.T) {
	u := User{Email: "jane@example.com", FirstName: strp("Jane")}
	if got := u.Name(); got != "Jane" {
		t.Fatalf("unexpected name %q", got)
	}

	u.FirstName = nil
	if got := u.Name(); got != "jane@example.com" {
		t.Fatalf("expected the email fallback, got %q", got)
	}
}
