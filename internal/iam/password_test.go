package iam

import "testing"

func TestVerifyPassword(t *testing.T) {
	hash, err := HashPassword("correct horse")
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}
	if !VerifyPassword(hash, "correct horse") {
		t.Fatal("expected match for correct password")
	}
	if VerifyPassword(hash, "wrong horse") {
		t.Fatal("expected mismatch for wrong password")
	}
	if VerifyPassword("", "anything") {
		t.Fatal("expected mismatch for empty hash")
	}
}

func TestHashPasswordRejectsEmpty(t *testing.T) {
	if _, err := HashPassword(""); err == nil {
		t.Fatal("expected error for empty password")
	}
}
