package vendors

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/giantswarm/mcp-backoffice/internal/testutil"
)

func TestClampStatus(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   int
	}{
		{"bad request passes through", 400, 400},
		{"unauthorized passes through", 401, 401},
		{"forbidden passes through", 403, 403},
		{"not found passes through", 404, 404},
		{"too many requests passes through", 429, 429},
		{"server error passes through", 500, 500},
		{"bad gateway passes through", 502, 502},
		{"service unavailable passes through", 503, 503},
		{"teapot clamps to 400", 418, 400},
		{"redirect clamps to 400", 302, 400},
		{"gateway timeout clamps to 400", 504, 400},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			testutil.AssertEqual(t, ClampStatus(tt.status), tt.want)
		})
	}
}

func TestPostTokenFormSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		testutil.AssertEqual(t, r.Method, http.MethodPost)
		testutil.AssertEqual(t, r.Header.Get("Content-Type"), "application/x-www-form-urlencoded")
		testutil.AssertNoError(t, r.ParseForm())
		testutil.AssertEqual(t, r.PostFormValue("grant_type"), "authorization_code")

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "new-access",
			"token_type":    "bearer",
			"expires_in":    3600,
			"refresh_token": "new-refresh",
			"scope":         "read write",
		})
	}))
	defer srv.Close()

	form := url.Values{"grant_type": {"authorization_code"}, "code": {"abc"}}
	tok, err := PostTokenForm(context.Background(), srv.Client(), srv.URL, form, nil, "authorization_code")
	testutil.AssertNoError(t, err)

	testutil.AssertEqual(t, tok.AccessToken, "new-access")
	testutil.AssertEqual(t, tok.RefreshToken, "new-refresh")
	testutil.AssertFalse(t, tok.Expiry.IsZero(), "expiry should be set from expires_in")
	scope, _ := tok.Extra("scope").(string)
	testutil.AssertEqual(t, scope, "read write")
}

func TestPostTokenFormBasicAuth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		testutil.AssertTrue(t, ok, "expected basic auth")
		testutil.AssertEqual(t, user, "client-id")
		testutil.AssertEqual(t, pass, "client-secret")
		_ = json.NewEncoder(w).Encode(map[string]any{"access_token": "a"})
	}))
	defer srv.Close()

	auth := &BasicAuth{Username: "client-id", Password: "client-secret"}
	_, err := PostTokenForm(context.Background(), srv.Client(), srv.URL, url.Values{}, auth, "refresh_token")
	testutil.AssertNoError(t, err)
}

func TestPostTokenFormJSONErrorPassesThrough(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"invalid_client","error_description":"bad secret"}`))
	}))
	defer srv.Close()

	_, err := PostTokenForm(context.Background(), srv.Client(), srv.URL, url.Values{}, nil, "refresh_token")
	testutil.AssertError(t, err)

	var oauthErr *OAuthError
	if !errors.As(err, &oauthErr) {
		t.Fatalf("expected *OAuthError, got %T", err)
	}
	testutil.AssertEqual(t, oauthErr.Status, http.StatusUnauthorized)
	testutil.AssertEqual(t, oauthErr.GrantType, "refresh_token")
	testutil.AssertStringContains(t, string(oauthErr.Body), "invalid_client")
	testutil.AssertStringContains(t, string(oauthErr.Body), "bad secret")
}

func TestPostTokenFormNonJSONErrorIsWrapped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream exploded"))
	}))
	defer srv.Close()

	_, err := PostTokenForm(context.Background(), srv.Client(), srv.URL, url.Values{}, nil, "authorization_code")
	testutil.AssertError(t, err)

	var oauthErr *OAuthError
	if !errors.As(err, &oauthErr) {
		t.Fatalf("expected *OAuthError, got %T", err)
	}
	testutil.AssertEqual(t, oauthErr.Status, http.StatusBadGateway)
	testutil.AssertTrue(t, json.Valid(oauthErr.Body), "wrapped body must be valid JSON")
	testutil.AssertStringContains(t, string(oauthErr.Body), "upstream exploded")
}

func TestPostTokenFormUnexpectedStatusClamps(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte(`{"error":"odd"}`))
	}))
	defer srv.Close()

	_, err := PostTokenForm(context.Background(), srv.Client(), srv.URL, url.Values{}, nil, "authorization_code")

	var oauthErr *OAuthError
	if !errors.As(err, &oauthErr) {
		t.Fatalf("expected *OAuthError, got %T", err)
	}
	testutil.AssertEqual(t, oauthErr.Status, http.StatusBadRequest)
}

func TestPostTokenFormMissingAccessToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"token_type":"bearer"}`))
	}))
	defer srv.Close()

	_, err := PostTokenForm(context.Background(), srv.Client(), srv.URL, url.Values{}, nil, "authorization_code")
	testutil.AssertError(t, err)
}
