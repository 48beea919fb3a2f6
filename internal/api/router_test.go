package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/tokmz/datafeed/internal/nft"
	"github.com/tokmz/datafeed/pkg/logger"
)

// stubFinder 可编程的查询桩
type stubFinder struct {
	doc nft.Document
	err error
}

func (f *stubFinder) FindByChainIDAndAddress(context.Context, string, string, []string) (nft.Document, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.doc, nil
}

func newTestRouter(finder nft.Finder) http.Handler {
	return NewRouter(RouterConfig{APIKey: "secret"}, finder, logger.Nop())
}

func doRequest(t *testing.T, h http.Handler, path, apiKey string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if apiKey != "" {
		req.Header.Set("x-api-key", apiKey)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode body %s: %v", rec.Body.String(), err)
	}
	return resp
}

// TestPublicRoutes 测试公开路由
func TestPublicRoutes(t *testing.T) {
	r := newTestRouter(&stubFinder{})

	t.Run("Welcome", func(t *testing.T) {
		rec := doRequest(t, r, "/", "")
		if rec.Code != http.StatusOK {
			t.Errorf("expected 200, got %d", rec.Code)
		}
		if rec.Body.String() != "Welcome to the NFT datafeed" {
			t.Errorf("unexpected body %q", rec.Body.String())
		}
	})

	t.Run("HealthCheck", func(t *testing.T) {
		rec := doRequest(t, r, "/api/health-check", "")
		if rec.Code != http.StatusOK || rec.Body.String() != "OK" {
			t.Errorf("unexpected response %d %q", rec.Code, rec.Body.String())
		}
	})

	t.Run("UnknownRoute", func(t *testing.T) {
		rec := doRequest(t, r, "/api/v2/unknown", "")
		if rec.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", rec.Code)
		}
		resp := decodeResponse(t, rec)
		if resp.Success || resp.Message != "Api not found" {
			t.Errorf("unexpected envelope %+v", resp)
		}
	})
}

// TestAPIKeyAuth 测试接口鉴权
func TestAPIKeyAuth(t *testing.T) {
	r := newTestRouter(&stubFinder{doc: nft.Document{"name": "Azuki"}})

	t.Run("MissingKey", func(t *testing.T) {
		rec := doRequest(t, r, "/api/v1/nft/1/0xabc", "")
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("expected 401, got %d", rec.Code)
		}
		resp := decodeResponse(t, rec)
		if resp.Success || resp.Message != "Invalid API KEY" {
			t.Errorf("unexpected envelope %+v", resp)
		}
	})

	t.Run("WrongKey", func(t *testing.T) {
		rec := doRequest(t, r, "/api/v1/nft/1/0xabc", "guess")
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("expected 401, got %d", rec.Code)
		}
	})

	t.Run("ValidKey", func(t *testing.T) {
		rec := doRequest(t, r, "/api/v1/nft/1/0xabc", "secret")
		if rec.Code != http.StatusOK {
			t.Errorf("expected 200, got %d", rec.Code)
		}
	})
}

// TestNFTHandler 测试集合查询处理器
func TestNFTHandler(t *testing.T) {
	t.Run("GetCollection", func(t *testing.T) {
		r := newTestRouter(&stubFinder{doc: nft.Document{"name": "Azuki", "description": "avatars"}})
		rec := doRequest(t, r, "/api/v1/nft/1/0xabc", "secret")

		resp := decodeResponse(t, rec)
		if !resp.Success {
			t.Fatalf("expected success, got %+v", resp)
		}
		data, ok := resp.Data.(map[string]any)
		if !ok || data["name"] != "Azuki" {
			t.Errorf("unexpected data %v", resp.Data)
		}
	})

	t.Run("GetMetric", func(t *testing.T) {
		r := newTestRouter(&stubFinder{doc: nft.Document{"marketcap": 1000.0}})
		rec := doRequest(t, r, "/api/v1/nft/1/0xabc/metrics/marketcap", "secret")

		resp := decodeResponse(t, rec)
		if !resp.Success {
			t.Fatalf("expected success, got %+v", resp)
		}
		data, ok := resp.Data.(map[string]any)
		if !ok || data["metric_name"] != "marketcap" || data["value"] != 1000.0 {
			t.Errorf("unexpected data %v", resp.Data)
		}
	})

	t.Run("InvalidMetric", func(t *testing.T) {
		r := newTestRouter(&stubFinder{})
		rec := doRequest(t, r, "/api/v1/nft/1/0xabc/metrics/volume", "secret")

		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
		resp := decodeResponse(t, rec)
		if resp.Success || resp.Message != "Invalid metric_name" {
			t.Errorf("unexpected envelope %+v", resp)
		}
	})

	t.Run("NotFound", func(t *testing.T) {
		r := newTestRouter(&stubFinder{err: nft.ErrNotFound})
		rec := doRequest(t, r, "/api/v1/nft/1/0xmissing", "secret")

		if rec.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", rec.Code)
		}
		resp := decodeResponse(t, rec)
		if resp.Success || resp.Message != "No data found" {
			t.Errorf("unexpected envelope %+v", resp)
		}
	})

	t.Run("StoreFailure", func(t *testing.T) {
		r := newTestRouter(&stubFinder{err: errors.New("connection refused")})
		rec := doRequest(t, r, "/api/v1/nft/1/0xabc", "secret")

		if rec.Code != http.StatusInternalServerError {
			t.Errorf("expected 500, got %d", rec.Code)
		}
		resp := decodeResponse(t, rec)
		if resp.Success || resp.Message != "Internal server error" {
			t.Errorf("unexpected envelope %+v", resp)
		}
	})
}
