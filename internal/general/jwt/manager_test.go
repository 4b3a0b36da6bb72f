package jwt

import (
	"errors"
	"testing"
	"time"

	"campuscart/internal/domain/user"
)

func TestIssueAndParseRoundtrip(t *testing.T) {
	mgr := NewManager("test-secret", time.Hour)

	signed, claims, err := mgr.IssueUserToken("driver-1", user.RoleDriver)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if claims.Subject != "driver-1" || claims.Role != user.RoleDriver {
		t.Errorf("claims = %+v", claims)
	}

	_, parsed, err := mgr.ParseAndValidate(signed)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if parsed.Subject != "driver-1" || parsed.Role != user.RoleDriver {
		t.Errorf("parsed claims = %+v", parsed)
	}
}

func TestParseRejectsWrongSecret(t *testing.T) {
	signed, _, err := NewManager("secret-a", time.Hour).IssueUserToken("u-1", user.RoleRider)
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := NewManager("secret-b", time.Hour).ParseAndValidate(signed); err == nil {
		t.Fatal("token signed with another secret accepted")
	}
}

func TestParseRejectsExpired(t *testing.T) {
	mgr := NewManager("test-secret", -time.Minute)
	signed, _, err := mgr.IssueUserToken("u-1", user.RoleRider)
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := mgr.ParseAndValidate(signed); err == nil {
		t.Fatal("expired token accepted")
	}
}

func TestIssueRejectsInvalidRole(t *testing.T) {
	mgr := NewManager("test-secret", time.Hour)
	if _, _, err := mgr.IssueUserToken("u-1", user.Role("admin")); err == nil {
		t.Fatal("invalid role accepted")
	}
}

func TestRoleAllowed(t *testing.T) {
	claims := NewUserClaims("u-1", user.RoleDriver, time.Hour)

	if err := RoleAllowed(claims, user.RoleDriver, user.RoleDispatcher); err != nil {
		t.Errorf("driver refused: %v", err)
	}
	if err := RoleAllowed(claims, user.RoleRider); !errors.Is(err, ErrRoleForbidden) {
		t.Errorf("err = %v, want ErrRoleForbidden", err)
	}
	// empty list admits any authenticated user
	if err := RoleAllowed(claims); err != nil {
		t.Errorf("open route refused: %v", err)
	}
}

func TestValidateWSAuth(t *testing.T) {
	mgr := NewManager("test-secret", time.Hour)
	signed, _, err := mgr.IssueUserToken("driver-1", user.RoleDriver)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		frame   string
		wantErr error
	}{
		{"valid frame", `{"type":"auth","token":"Bearer ` + signed + `"}`, nil},
		{"not json", `hello`, ErrBadAuthMsg},
		{"wrong type", `{"type":"ping","token":"Bearer x"}`, ErrBadAuthMsg},
		{"missing bearer wrap", `{"type":"auth","token":"` + signed + `"}`, ErrBadTokenWrap},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := ValidateWSAuth([]byte(tt.frame), mgr, user.RoleDriver)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if res.Claims.Subject != "driver-1" {
				t.Errorf("subject = %s", res.Claims.Subject)
			}
		})
	}

	if _, err := ValidateWSAuth([]byte(`{"type":"auth","token":"Bearer `+signed+`"}`), mgr, user.RoleRider); !errors.Is(err, ErrRoleForbidden) {
		t.Errorf("driver admitted to rider-only socket: %v", err)
	}
}
