package ws

import (
	"net/http/httptest"
	"testing"
)

// TestGatekeeper 测试握手鉴权
func TestGatekeeper(t *testing.T) {
	t.Run("ValidKey", func(t *testing.T) {
		g := NewGatekeeper("secret")
		r := httptest.NewRequest("GET", "/ws/room/alpha", nil)
		r.Header.Set("x-api-key", "secret")

		if err := g.Authorize(r); err != nil {
			t.Errorf("expected authorization, got %v", err)
		}
	})

	t.Run("WrongKey", func(t *testing.T) {
		g := NewGatekeeper("secret")
		r := httptest.NewRequest("GET", "/ws", nil)
		r.Header.Set("x-api-key", "guess")

		if err := g.Authorize(r); err != ErrUnauthorized {
			t.Errorf("expected ErrUnauthorized, got %v", err)
		}
	})

	t.Run("MissingHeader", func(t *testing.T) {
		g := NewGatekeeper("secret")
		r := httptest.NewRequest("GET", "/ws", nil)

		if err := g.Authorize(r); err != ErrUnauthorized {
			t.Errorf("expected ErrUnauthorized, got %v", err)
		}
	})

	t.Run("UnconfiguredKeyFailsClosed", func(t *testing.T) {
		g := NewGatekeeper("")
		r := httptest.NewRequest("GET", "/ws", nil)
		r.Header.Set("x-api-key", "")

		if err := g.Authorize(r); err != ErrUnauthorized {
			t.Errorf("expected ErrUnauthorized for unconfigured key, got %v", err)
		}

		// 偶然匹配空串也必须拒绝
		r.Header.Set("x-api-key", "anything")
		if err := g.Authorize(r); err != ErrUnauthorized {
			t.Errorf("expected ErrUnauthorized, got %v", err)
		}
	})
}
