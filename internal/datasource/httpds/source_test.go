package httpds

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"ordersetl/internal/datasource"
)

func TestSourceOpen(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/orders.csv", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "order_id\n1\n")
	})
	mux.HandleFunc("/gone.csv", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusGone)
	})
	mux.HandleFunc("/secret.csv", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	ctx := context.Background()
	client := fastClient(0)

	src := NewSource(client, srv.URL+"/orders.csv")
	if src.Name() != srv.URL+"/orders.csv" {
		t.Fatalf("Name() = %q", src.Name())
	}
	rc, err := src.Open(ctx)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	body, err := io.ReadAll(rc)
	rc.Close()
	if err != nil || string(body) != "order_id\n1\n" {
		t.Fatalf("body = %q, err = %v", body, err)
	}

	for _, path := range []string{"/missing.csv", "/gone.csv"} {
		_, err := NewSource(client, srv.URL+path).Open(ctx)
		var se *StatusError
		if !errors.Is(err, datasource.ErrMissing) || !errors.As(err, &se) {
			t.Fatalf("%s: err = %v, want ErrMissing wrapping *StatusError", path, err)
		}
	}

	_, err = NewSource(client, srv.URL+"/secret.csv").Open(ctx)
	var se *StatusError
	if !errors.As(err, &se) || se.Code != http.StatusForbidden {
		t.Fatalf("forbidden: err = %v", err)
	}
	if errors.Is(err, datasource.ErrMissing) {
		t.Fatalf("forbidden must not count as missing: %v", err)
	}
}

func TestIsURL(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]bool{
		"https://example.com/orders.csv": true,
		"HTTP://example.com/a":           true,
		"data/raw/orders.csv":            false,
		"/abs/users.csv":                 false,
		"ftp://host/x":                   false,
	} {
		if got := IsURL(in); got != want {
			t.Errorf("IsURL(%q) = %v, want %v", in, got, want)
		}
	}
}
