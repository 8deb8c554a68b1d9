package auth

import (
	"errors"
	"testing"
	"time"
)

func TestAccessTokenRoundTrip(t *testing.T) {
	token, err := NewAccessToken("secret", "issuer", time.Minute, Claims{
		UserID:   "user-1",
		UserType: "teacher",
		Email:    "t@example.local",
	})
	if err != nil {
		t.Fatalf("token error: %v", err)
	}

	claims, err := ParseToken("secret", "issuer", token)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if claims.UserID != "user-1" || claims.UserType != "teacher" || claims.Email != "t@example.local" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestParseTokenRejectsWrongIssuerAndSecret(t *testing.T) {
	token, err := NewAccessToken("secret", "issuer", time.Minute, Claims{UserID: "user-1", UserType: "student"})
	if err != nil {
		t.Fatalf("token error: %v", err)
	}
	if _, err := ParseToken("secret", "other-issuer", token); err == nil {
		t.Fatalf("expected issuer mismatch to fail")
	}
	if _, err := ParseToken("other-secret", "issuer", token); err == nil {
		t.Fatalf("expected signature mismatch to fail")
	}
}

func TestParseTokenExpired(t *testing.T) {
	token, err := NewAccessToken("secret", "issuer", -time.Minute, Claims{UserID: "user-1", UserType: "student"})
	if err != nil {
		t.Fatalf("token error: %v", err)
	}
	if _, err := ParseToken("secret", "issuer", token); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestCapabilityTable(t *testing.T) {
	cases := []struct {
		role Role
		cap  Capability
		want bool
	}{
		{RoleStudent, CapClassJoin, true},
		{RoleStudent, CapClassCreate, false},
		{RoleStudent, CapExerciseAuthor, false},
		{RoleTeacher, CapExerciseAuthor, true},
		{RoleTeacher, CapClassJoin, false},
		{RoleTeacher, CapExerciseSubmit, false},
		{RoleAdmin, CapOverrideOwner, true},
		{Role("guest"), CapClassRead, false},
	}
	for _, tc := range cases {
		if got := Allowed(tc.role, tc.cap); got != tc.want {
			t.Fatalf("Allowed(%s, %s) = %v, want %v", tc.role, tc.cap, got, tc.want)
		}
	}
}

func TestActorOwns(t *testing.T) {
	teacher := Actor{ProfileID: "p1", Role: RoleTeacher}
	if !teacher.Owns("p1") || teacher.Owns("p2") {
		t.Fatalf("teacher ownership mismatch")
	}
	admin := Actor{ProfileID: "p9", Role: RoleAdmin}
	if !admin.Owns("p1") {
		t.Fatalf("admin should own any resource")
	}
	anonymous := Actor{Role: RoleTeacher}
	if anonymous.Owns("") {
		t.Fatalf("actor without profile must not own anything")
	}
}
