package auth_test

import (
	"testing"
	"time"

	"github.com/campuslive/campuslive/internal/auth"
	"github.com/campuslive/campuslive/internal/models"
)

const secret = "test-secret"

func TestTokenRoundTrip(t *testing.T) {
	token, err := auth.GenerateToken(7, "Ana Ionescu", models.RoleLecturer, secret, time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}

	claims, err := auth.ParseToken(token, secret)
	if err != nil {
		t.Fatalf("ParseToken failed: %v", err)
	}

	id := claims.Identity()
	if id.ID != 7 || id.Name != "Ana Ionescu" || id.Role != models.RoleLecturer {
		t.Errorf("identity = %+v, want {7 Ana Ionescu lecturer}", id)
	}
}

func TestParseTokenRejectsWrongSecret(t *testing.T) {
	token, err := auth.GenerateToken(7, "ana", models.RoleStudent, secret, time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}
	if _, err := auth.ParseToken(token, "some-other-secret"); err == nil {
		t.Error("token verified under a different secret")
	}
}

func TestParseTokenRejectsExpired(t *testing.T) {
	token, err := auth.GenerateToken(7, "ana", models.RoleStudent, secret, -time.Minute)
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}
	if _, err := auth.ParseToken(token, secret); err == nil {
		t.Error("expired token accepted")
	}
}

func TestParseTokenRejectsMissingUserID(t *testing.T) {
	token, err := auth.GenerateToken(0, "nobody", models.RoleStudent, secret, time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}
	if _, err := auth.ParseToken(token, secret); err == nil {
		t.Error("token without a usable user id accepted")
	}
}

func TestParseTokenRejectsGarbage(t *testing.T) {
	if _, err := auth.ParseToken("not.a.jwt", secret); err == nil {
		t.Error("garbage token accepted")
	}
}
