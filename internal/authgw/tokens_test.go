package authgw

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func signedToken(t *testing.T, sub string, exp time.Time) string {
	t.Helper()

	claims := jwt.MapClaims{"sub": sub}
	if !exp.IsZero() {
		claims["exp"] = exp.Unix()
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("upstream-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func TestInspect_JWTClaims(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	token := Inspect(signedToken(t, "pat@example.com", exp))

	if token.Subject != "pat@example.com" {
		t.Errorf("Subject = %q", token.Subject)
	}
	if !token.ExpiresAt.Equal(exp) {
		t.Errorf("ExpiresAt = %v, want %v", token.ExpiresAt, exp)
	}
	if !token.Valid() {
		t.Error("unexpired token reported invalid")
	}
}

func TestInspect_OpaqueToken(t *testing.T) {
	token := Inspect("not-a-jwt")

	if token.Raw != "not-a-jwt" {
		t.Errorf("Raw = %q", token.Raw)
	}
	if token.Subject != "" || !token.ExpiresAt.IsZero() {
		t.Errorf("opaque token grew claims: %+v", token)
	}
	if !token.Valid() {
		t.Error("opaque token without exp should be treated as valid")
	}
}

func TestToken_Expired(t *testing.T) {
	token := Inspect(signedToken(t, "pat@example.com", time.Now().Add(-time.Minute)))
	if token.Valid() {
		t.Error("expired token reported valid")
	}
}

func TestStore_RoundTripAndClear(t *testing.T) {
	store := NewStore()

	if _, ok := store.Patient(); ok {
		t.Fatal("empty store returned a patient token")
	}

	store.SetPatient(&LoginResult{
		Token: signedToken(t, "pat@example.com", time.Now().Add(time.Hour)),
		Email: "pat@example.com",
		Phone: "555-0100",
	})
	store.SetHospital(&LoginResult{
		Token: "opaque-hospital-token",
		Email: "er@citygeneral.example",
	})

	patient, ok := store.Patient()
	if !ok || patient.Email != "pat@example.com" || patient.Phone != "555-0100" {
		t.Errorf("patient token = %+v, ok = %v", patient, ok)
	}
	hospital, ok := store.Hospital()
	if !ok || hospital.Raw != "opaque-hospital-token" {
		t.Errorf("hospital token = %+v, ok = %v", hospital, ok)
	}

	store.Clear()
	if _, ok := store.Patient(); ok {
		t.Error("Clear left the patient token")
	}
	if _, ok := store.Hospital(); ok {
		t.Error("Clear left the hospital token")
	}
}

func TestStore_ExpiredTokenNotReturned(t *testing.T) {
	store := NewStore()
	store.SetPatient(&LoginResult{
		Token: signedToken(t, "pat@example.com", time.Now().Add(-time.Minute)),
		Email: "pat@example.com",
	})

	if _, ok := store.Patient(); ok {
		t.Error("expired token returned from the store")
	}
}
