package utils

import (
	"testing"
	"time"
)

func TestValidateAndParseJWTToken_RoundTrip(t *testing.T) {
	minted, err := GenerateJWTToken("vaultsync-test", 42, time.Hour, "sign-key")
	if err != nil {
		t.Fatalf("unexpected error minting token: %v", err)
	}

	parsed, err := ValidateAndParseJWTToken(minted.SignedString, "sign-key", "vaultsync-test")
	if err != nil {
		t.Fatalf("unexpected error parsing token: %v", err)
	}

	if parsed.UserID != 42 {
		t.Errorf("UserID = %d, want 42", parsed.UserID)
	}

	// The claim accessors must work on the parsed token as well as the
	// cached field.
	userID, err := parsed.GetUserID()
	if err != nil {
		t.Fatalf("unexpected error reading subject claim: %v", err)
	}
	if userID != 42 {
		t.Errorf("subject claim user id = %d, want 42", userID)
	}
}

func TestValidateAndParseJWTToken_WrongKey(t *testing.T) {
	minted, err := GenerateJWTToken("vaultsync-test", 42, time.Hour, "sign-key")
	if err != nil {
		t.Fatalf("unexpected error minting token: %v", err)
	}

	if _, err = ValidateAndParseJWTToken(minted.SignedString, "other-key", "vaultsync-test"); err == nil {
		t.Fatal("expected a signature validation error")
	}
}

func TestValidateAndParseJWTToken_WrongIssuer(t *testing.T) {
	minted, err := GenerateJWTToken("someone-else", 42, time.Hour, "sign-key")
	if err != nil {
		t.Fatalf("unexpected error minting token: %v", err)
	}

	if _, err = ValidateAndParseJWTToken(minted.SignedString, "sign-key", "vaultsync-test"); err == nil {
		t.Fatal("expected an issuer validation error")
	}
}
