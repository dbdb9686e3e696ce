package backend

import "testing"

func TestNewAuthNone(t *testing.T) {
	auth, err := NewAuth("none", "", "", "")
	if err != nil || auth.Type != AuthNone {
		t.Fatalf("got %+v, %v", auth, err)
	}
}

func TestNewAuthBasicRequiresCredentials(t *testing.T) {
	if _, err := NewAuth("basic", "", "", ""); err == nil {
		t.Fatal("expected error for missing basic auth credentials")
	}
	auth, err := NewAuth("basic", "user", "pass", "")
	if err != nil || auth.Type != AuthBasic {
		t.Fatalf("got %+v, %v", auth, err)
	}
}

func TestNewAuthBearerRequiresToken(t *testing.T) {
	if _, err := NewAuth("bearer", "", "", ""); err == nil {
		t.Fatal("expected error for missing bearer token")
	}
	auth, err := NewAuth("bearer", "", "", "tok")
	if err != nil || auth.Type != AuthBearer {
		t.Fatalf("got %+v, %v", auth, err)
	}
}

func TestNewAuthRejectsUnsupportedType(t *testing.T) {
	if _, err := NewAuth("oauth", "", "", ""); err == nil {
		t.Fatal("expected error for unsupported auth type")
	}
}
