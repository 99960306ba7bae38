package generation

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestHTTPGenerator_Generate(t *testing.T) {
	wantImage := []byte("png-bytes")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		var req generateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatal(err)
		}
		if req.Prompt != "a person surfing" {
			t.Errorf("prompt = %q", req.Prompt)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("auth header = %q", got)
		}
		_ = json.NewEncoder(w).Encode(generateResponse{
			Image: base64.StdEncoding.EncodeToString(wantImage),
		})
	}))
	defer srv.Close()

	g := NewHTTPGenerator(srv.URL, "tok", 5*time.Second)
	out, err := g.Generate(context.Background(), "a person surfing")
	if err != nil {
		t.Fatal(err)
	}
	if out.Unsafe {
		t.Error("unexpected unsafe flag")
	}
	if string(out.Image) != string(wantImage) {
		t.Errorf("image = %q", out.Image)
	}
}

func TestHTTPGenerator_UnsafeFlag(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(generateResponse{NSFWDetected: true})
	}))
	defer srv.Close()

	g := NewHTTPGenerator(srv.URL, "", 5*time.Second)
	out, err := g.Generate(context.Background(), "anything")
	if err != nil {
		t.Fatal(err)
	}
	if !out.Unsafe {
		t.Error("expected unsafe flag")
	}
	if out.Image != nil {
		t.Error("unsafe output should carry no image")
	}
}

func TestHTTPGenerator_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model loading", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	g := NewHTTPGenerator(srv.URL, "", 5*time.Second)
	if _, err := g.Generate(context.Background(), "x"); err == nil {
		t.Fatal("expected error on 503")
	}
}

func TestMockGenerator_DeterministicAndCounted(t *testing.T) {
	g := NewMockGenerator()
	a, err := g.Generate(context.Background(), "a person surfing")
	if err != nil {
		t.Fatal(err)
	}
	b, err := g.Generate(context.Background(), "a person surfing")
	if err != nil {
		t.Fatal(err)
	}
	if string(a.Image) != string(b.Image) {
		t.Error("mock generator should be deterministic")
	}
	if g.Calls() != 2 {
		t.Errorf("Calls = %d, want 2", g.Calls())
	}
}

func TestMockGenerator_UnsafeMarker(t *testing.T) {
	g := NewMockGenerator()
	out, err := g.Generate(context.Background(), "unsafe: something")
	if err != nil {
		t.Fatal(err)
	}
	if !out.Unsafe {
		t.Error("expected unsafe flag for marked prompt")
	}
}
