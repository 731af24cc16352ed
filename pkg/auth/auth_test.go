package auth

import (
	"net/http"
	"strings"
	"testing"

	"github.com/saturnines/unraid-connect/pkg/errors"
)

// Helper functions for tests
func assertHeader(t *testing.T, req *http.Request, header, expected string) {
	t.Helper()
	if value := req.Header.Get(header); value != expected {
		t.Errorf("Expected %s header '%s', got '%s'", header, expected, value)
	}
}

func TestAPIKeyAuth(t *testing.T) {
	t.Run("DefaultHeader", func(t *testing.T) {
		auth := NewAPIKeyAuth("test-api-key")
		req, _ := http.NewRequest("POST", "http://tower.local/graphql", nil)

		if err := auth.ApplyAuth(req); err != nil {
			t.Fatalf("ApplyAuth failed: %v", err)
		}

		assertHeader(t, req, "x-api-key", "test-api-key")
	})

	t.Run("CustomHeader", func(t *testing.T) {
		auth := &APIKeyAuth{HeaderName: "X-Custom-Key", Value: "k"}
		req, _ := http.NewRequest("POST", "http://tower.local/graphql", nil)

		if err := auth.ApplyAuth(req); err != nil {
			t.Fatalf("ApplyAuth failed: %v", err)
		}

		assertHeader(t, req, "X-Custom-Key", "k")
	})

	t.Run("EmptyHeaderNameFallsBack", func(t *testing.T) {
		auth := &APIKeyAuth{Value: "k"}
		req, _ := http.NewRequest("POST", "http://tower.local/graphql", nil)

		if err := auth.ApplyAuth(req); err != nil {
			t.Fatalf("ApplyAuth failed: %v", err)
		}

		assertHeader(t, req, DefaultAPIKeyHeader, "k")
	})

	t.Run("MissingValue", func(t *testing.T) {
		auth := NewAPIKeyAuth("")
		req, _ := http.NewRequest("POST", "http://tower.local/graphql", nil)

		err := auth.ApplyAuth(req)
		if !errors.Is(err, errors.ErrAuthentication) {
			t.Fatalf("Expected authentication error, got %v", err)
		}
	})

	t.Run("StringMethodRedactsKey", func(t *testing.T) {
		str := NewAPIKeyAuth("super-secret").String()
		if strings.Contains(str, "super-secret") {
			t.Errorf("String() should not contain the key, got: %s", str)
		}
		if !strings.Contains(str, DefaultAPIKeyHeader) {
			t.Errorf("String() should contain header name, got: %s", str)
		}
	})
}
