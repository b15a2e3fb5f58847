package idempotency

import (
	"strings"
	"testing"
)

func TestGenerateKey_Deterministic(t *testing.T) {
	a := GenerateKey("msg-123")
	b := GenerateKey("msg-123")
	if a != b {
		t.Errorf("same source must yield the same key: %s vs %s", a, b)
	}
}

func TestGenerateKey_DistinctSources(t *testing.T) {
	if GenerateKey("msg-123") == GenerateKey("msg-124") {
		t.Error("different sources must yield different keys")
	}
}

func TestGenerateKey_Format(t *testing.T) {
	key := GenerateKey("SM1234567890")
	if !strings.HasPrefix(key, "idem_") {
		t.Errorf("expected idem_ prefix, got %s", key)
	}
	if len(key) != len("idem_")+32 {
		t.Errorf("expected 32 hex chars after the prefix, got %s", key)
	}
}
