package claims

import (
	"context"
	"testing"
)

func TestEffective(t *testing.T) {
	tests := []struct {
		name   string
		grants []Role
		exp    Role
	}{
		{"instructor and admin", []Role{RoleInstructor, RoleAdmin}, RoleAdmin},
		{"instructor only", []Role{RoleInstructor}, RoleInstructor},
		{"no grants", nil, RoleStudent},
		{"student only", []Role{RoleStudent}, RoleStudent},
		{"unknown ignored", []Role{"owner", RoleInstructor}, RoleInstructor},
		{"order independent", []Role{RoleAdmin, RoleStudent, RoleInstructor}, RoleAdmin},
	}

	for _, tt := range tests {
		if got := Effective(tt.grants); got != tt.exp {
			t.Fatalf("%s: expected %s, got %s", tt.name, tt.exp, got)
		}
	}
}

func TestAtLeast(t *testing.T) {
	if !RoleAdmin.AtLeast(RoleInstructor) {
		t.Fatal("admin must satisfy instructor")
	}
	if RoleStudent.AtLeast(RoleInstructor) {
		t.Fatal("student must not satisfy instructor")
	}
	if Role("owner").AtLeast(RoleStudent) {
		t.Fatal("unknown roles must not satisfy anything")
	}
}

func TestContext(t *testing.T) {
	ctx := context.Background()
	if _, err := Get(ctx); err == nil {
		t.Fatal("expected an error without claims")
	}

	ctx = Set(ctx, Claims{UserID: "u1", Role: RoleAdmin})
	if !IsAdmin(ctx) || !IsUser(ctx, "u1") || IsUser(ctx, "u2") {
		t.Fatal("claims not read back from context")
	}
}
