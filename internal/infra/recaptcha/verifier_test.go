package recaptcha

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestVerifierPostsSecretAndToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		success := r.PostForm.Get("secret") == "s3cret" && r.PostForm.Get("response") == "good"
		w.Header().Set("Content-Type", "application/json")
		if success {
			w.Write([]byte(`{"success":true,"hostname":"localhost"}`))
			return
		}
		w.Write([]byte(`{"success":false,"error-codes":["invalid-input-response"]}`))
	}))
	defer srv.Close()

	v := NewVerifier(true, "s3cret", srv.URL)

	ok, err := v.Verify(context.Background(), "good")
	if err != nil || !ok {
		t.Fatalf("expected valid token, got %v (err=%v)", ok, err)
	}
	ok, err = v.Verify(context.Background(), "bad")
	if err != nil || ok {
		t.Fatalf("expected rejected token, got %v (err=%v)", ok, err)
	}
}

func TestVerifierRejectsEmptyTokenWithoutCalling(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	ok, err := NewVerifier(true, "s3cret", srv.URL).Verify(context.Background(), "")
	if err != nil || ok || called {
		t.Fatalf("expected local rejection, got ok=%v err=%v called=%v", ok, err, called)
	}
}

func TestVerifierReportsUpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	if _, err := NewVerifier(true, "s3cret", srv.URL).Verify(context.Background(), "tok"); err == nil {
		t.Fatalf("expected error on non-200 response")
	}
}

func TestDisabledVerifierAcceptsAnything(t *testing.T) {
	ok, err := NewVerifier(false, "", "").Verify(context.Background(), "")
	if err != nil || !ok {
		t.Fatalf("expected disabled verifier to pass, got %v (err=%v)", ok, err)
	}
}
