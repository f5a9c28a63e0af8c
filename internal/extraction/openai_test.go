package extraction

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func chatBody(content string) string {
	b, _ := json.Marshal(map[string]any{
		"choices": []map[string]any{
			{"message": map[string]string{"content": content}},
		},
	})
	return string(b)
}

func testClient(t *testing.T, retries int, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := NewClient("test-key", "gpt-4o", 5*time.Second, retries)
	c.endpoint = srv.URL
	c.backoff = time.Millisecond
	return c
}

func TestExtractTotal(t *testing.T) {
	c := testClient(t, 0, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("auth header = %q", got)
		}
		w.Write([]byte(chatBody(`{"total": 7500.50, "currency": "MXN", "confidence_score": 9}`)))
	})

	res, err := c.ExtractTotal(context.Background(), []byte("jpeg-bytes"))
	if err != nil {
		t.Fatal(err)
	}
	if res.Amount == nil || *res.Amount != 7500.50 {
		t.Errorf("amount = %v, want 7500.50", res.Amount)
	}
	if res.Confidence != 9 {
		t.Errorf("confidence = %v, want 9", res.Confidence)
	}
}

func TestExtractTotalNullIsSuccess(t *testing.T) {
	calls := 0
	c := testClient(t, 3, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write([]byte(chatBody(`{"total": null, "currency": "MXN", "confidence_score": 2}`)))
	})

	res, err := c.ExtractTotal(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.Amount != nil {
		t.Errorf("amount = %v, want nil", *res.Amount)
	}
	// A well-formed negative result must not be retried.
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestExtractTotalUnwrapsFencedJSON(t *testing.T) {
	c := testClient(t, 0, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(chatBody("```json\n{\"total\": 12000}\n```")))
	})

	res, err := c.ExtractTotal(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.Amount == nil || *res.Amount != 12000 {
		t.Errorf("amount = %v, want 12000", res.Amount)
	}
}

func TestExtractTotalRetriesTransient(t *testing.T) {
	calls := 0
	c := testClient(t, 2, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(chatBody(`{"total": 8000}`)))
	})

	res, err := c.ExtractTotal(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
	if res.Amount == nil || *res.Amount != 8000 {
		t.Errorf("amount = %v, want 8000", res.Amount)
	}
}

func TestExtractTotalGivesUpAfterRetries(t *testing.T) {
	calls := 0
	c := testClient(t, 1, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := c.ExtractTotal(context.Background(), nil)
	if err == nil {
		t.Fatal("want error after exhausted retries")
	}
	if !IsTransient(err) {
		t.Errorf("err = %v, want transient", err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestExtractTotalPermanentNotRetried(t *testing.T) {
	calls := 0
	c := testClient(t, 3, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := c.ExtractTotal(context.Background(), nil)
	if err == nil {
		t.Fatal("want error")
	}
	if IsTransient(err) {
		t.Errorf("err = %v, want permanent", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}
