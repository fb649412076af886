package security

import (
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestHasher_HashAndCompare(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)
	hash, err := h.Hash([]byte("correct horse battery staple"))
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if err := h.Compare(hash, []byte("correct horse battery staple")); err != nil {
		t.Errorf("Compare matching: %v", err)
	}
	if err := h.Compare(hash, []byte("wrong password")); err == nil {
		t.Error("Compare mismatched: want error, got nil")
	}
}

func TestHasher_CostClamped(t *testing.T) {
	if h := NewHasher(0); h.Cost != bcrypt.DefaultCost {
		t.Errorf("cost 0: got %d, want default %d", h.Cost, bcrypt.DefaultCost)
	}
	if h := NewHasher(99); h.Cost != bcrypt.MaxCost {
		t.Errorf("cost 99: got %d, want max %d", h.Cost, bcrypt.MaxCost)
	}
}

func TestHasher_CompareDummy(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)
	if err := h.CompareDummy([]byte("anything")); err != bcrypt.ErrMismatchedHashAndPassword {
		t.Errorf("CompareDummy: want ErrMismatchedHashAndPassword, got %v", err)
	}
}
