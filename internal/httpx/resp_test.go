package httpx

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func performRequest(handler gin.HandlerFunc) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	handler(c)
	return w
}

func TestOK(t *testing.T) {
	w := performRequest(func(c *gin.Context) {
		OK(c, map[string]int{"total": 3})
	})

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}

	var resp Response
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Code != CodeSuccess {
		t.Errorf("code = %d, want %d", resp.Code, CodeSuccess)
	}
	if resp.Message != "success" {
		t.Errorf("message = %q", resp.Message)
	}
}

func TestFailErr(t *testing.T) {
	w := performRequest(func(c *gin.Context) {
		FailErr(c, ErrUpstreamError("Invalid API Credentials", nil))
	})

	if w.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", w.Code)
	}

	var resp Response
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Code != CodeUpstreamError {
		t.Errorf("code = %d, want %d", resp.Code, CodeUpstreamError)
	}
	if resp.Message != "Invalid API Credentials" {
		t.Errorf("message = %q", resp.Message)
	}
	if resp.Data != nil {
		t.Errorf("data = %v, want nil", resp.Data)
	}
}
