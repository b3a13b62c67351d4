package httpc

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestPostJSONDeliversPayload(t *testing.T) {
	var got map[string]string
	var contentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		contentType = r.Header.Get("Content-Type")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
	}))
	defer srv.Close()

	if err := PostJSON(srv.URL, map[string]string{"key": "value"}); err != nil {
		t.Fatalf("PostJSON() error: %v", err)
	}
	if contentType != "application/json" {
		t.Errorf("content type = %q", contentType)
	}
	if got["key"] != "value" {
		t.Errorf("body = %v", got)
	}
}

func TestPostJSONRejectsNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	err := PostJSON(srv.URL, map[string]string{})
	if err == nil {
		t.Fatal("PostJSON() accepted a 500 response")
	}
	if !strings.Contains(err.Error(), "500") {
		t.Errorf("error = %q, want the status surfaced", err)
	}
}

func TestPostJSONRejectsUnmarshalablePayload(t *testing.T) {
	if err := PostJSON("http://localhost:0", make(chan int)); err == nil {
		t.Fatal("PostJSON() accepted an unmarshalable payload")
	}
}
