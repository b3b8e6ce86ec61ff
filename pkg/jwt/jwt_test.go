package jwt

import (
	"testing"
	"time"
)

func TestGenerateValidate(t *testing.T) {
	m := NewManager("test-secret", time.Hour)

	token, err := m.Generate("client-1", RoleClient)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	claims, err := m.Validate(token)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if claims.ActorID != "client-1" || claims.Role != RoleClient {
		t.Errorf("claims = %+v", claims)
	}
}

func TestValidateRejectsWrongSecret(t *testing.T) {
	token, _ := NewManager("secret-a", time.Hour).Generate("client-1", RoleClient)
	if _, err := NewManager("secret-b", time.Hour).Validate(token); err == nil {
		t.Fatal("token accepted under a different secret")
	}
}

func TestValidateRejectsExpired(t *testing.T) {
	m := NewManager("test-secret", -time.Minute)
	token, _ := m.Generate("client-1", RoleClient)
	if _, err := m.Validate(token); err == nil {
		t.Fatal("expired token accepted")
	}
}

func TestValidateRejectsUnknownRole(t *testing.T) {
	m := NewManager("test-secret", time.Hour)
	token, _ := m.Generate("client-1", "superuser")
	if _, err := m.Validate(token); err == nil {
		t.Fatal("unknown role accepted")
	}
}

func TestValidateRejectsGarbage(t *testing.T) {
	m := NewManager("test-secret", time.Hour)
	for _, in := range []string{"", "not.a.token", "aaaa.bbbb.cccc"} {
		if _, err := m.Validate(in); err == nil {
			t.Errorf("Validate(%q): expected error", in)
		}
	}
}
