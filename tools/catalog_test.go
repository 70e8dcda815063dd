package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/giantswarm/mcp-backoffice/services/msgraph"
	"github.com/giantswarm/mcp-backoffice/services/quickbooks"
	"github.com/giantswarm/mcp-backoffice/session"
	"github.com/giantswarm/mcp-backoffice/upstream"
)

type staticRefresher struct{}

func (staticRefresher) RefreshAccessToken(context.Context, string, string) (*oauth2.Token, error) {
	return nil, fmt.Errorf("refresh not expected in this test")
}

func sessionContext() context.Context {
	return session.NewContext(context.Background(), session.New("access", "refresh"))
}

func newQuickBooksBridge(t *testing.T, handler http.HandlerFunc) *Bridge {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	executor, err := upstream.New(upstream.Config{Vendor: "quickbooks", Refresher: staticRefresher{}})
	require.NoError(t, err)
	svc, err := quickbooks.New(quickbooks.Config{Executor: executor, RealmID: "12345", BaseURL: srv.URL})
	require.NoError(t, err)

	b := NewBridge(Config{})
	require.NoError(t, b.Register(QuickBooksCatalog(svc)...))
	return b
}

func newMicrosoftBridge(t *testing.T, handler http.HandlerFunc) *Bridge {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	executor, err := upstream.New(upstream.Config{Vendor: "microsoft", Refresher: staticRefresher{}})
	require.NoError(t, err)
	svc, err := msgraph.New(msgraph.Config{Executor: executor, BaseURL: srv.URL})
	require.NoError(t, err)

	b := NewBridge(Config{})
	require.NoError(t, b.Register(MicrosoftCatalog(svc)...))
	return b
}

func TestGetInvoicesEndToEnd(t *testing.T) {
	b := newQuickBooksBridge(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Query().Get("query"), "ORDERBY DueDate DESC")
		_, _ = w.Write([]byte(`{
			"QueryResponse": {
				"Invoice": [
					{"Id": "301", "DocNumber": "2001", "DueDate": "2026-12-01", "TotalAmt": 500, "Balance": 500},
					{"Id": "302", "DocNumber": "2000", "DueDate": "2026-10-15", "TotalAmt": 120, "Balance": 0}
				]
			},
			"time": "t"
		}`))
	})

	result := b.Invoke(sessionContext(), "getInvoices", map[string]any{
		"page":     0.0,
		"pageSize": 10.0,
	})
	require.False(t, result.IsError, "invocation should succeed: %v", result.Content)

	text := resultText(t, result)
	assert.Contains(t, text, "Found 2 invoices")

	_, jsonPart, found := cutEnvelope(text)
	require.True(t, found)

	var rows []map[string]any
	require.NoError(t, json.Unmarshal([]byte(jsonPart), &rows))
	require.Len(t, rows, 2)
	// Due-date-descending vendor order preserved, invoices only.
	assert.Equal(t, "301", rows[0]["Id"])
	assert.Equal(t, "302", rows[1]["Id"])
	for _, row := range rows {
		assert.Contains(t, row, "DocNumber")
		assert.NotContains(t, row, "DisplayName")
	}
}

func TestGetInvoicesWithoutSessionFails(t *testing.T) {
	b := newQuickBooksBridge(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no upstream call expected without a session")
	})

	result := b.Invoke(context.Background(), "getInvoices", map[string]any{})
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "no session credential")
}

func TestGetCompanyInfoEndToEnd(t *testing.T) {
	b := newQuickBooksBridge(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"CompanyInfo": {"Id": "1", "CompanyName": "Sandbox Co"}, "time": "t"}`))
	})

	result := b.Invoke(sessionContext(), "getCompanyInfo", nil)
	require.False(t, result.IsError)
	assert.Contains(t, resultText(t, result), "Sandbox Co")
}

func TestCreateCalendarEventMapsArguments(t *testing.T) {
	var draft msgraph.EventDraft
	b := newMicrosoftBridge(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/me/events", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&draft))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "ev-1",
			"subject": draft.Subject,
			"start":   draft.Start,
			"end":     draft.End,
		})
	})

	result := b.Invoke(sessionContext(), "createCalendarEvent", map[string]any{
		"subject":   "design review",
		"startDate": "2026-09-02T14:00:00",
		"endDate":   "2026-09-02T15:00:00",
		"location":  "Room 4",
		"attendees": []any{"a@example.com", "b@example.com"},
	})
	require.False(t, result.IsError, "invocation should succeed: %v", result.Content)

	assert.Equal(t, "design review", draft.Subject)
	assert.Equal(t, "2026-09-02T14:00:00", draft.Start.DateTime)
	assert.Equal(t, "UTC", draft.Start.TimeZone)
	// The default reminder applies when the caller does not set one.
	assert.Equal(t, 15, draft.ReminderMinutesBeforeStart)
	assert.True(t, draft.IsReminderOn)
	require.NotNil(t, draft.Location)
	assert.Equal(t, "Room 4", draft.Location.DisplayName)
	require.Len(t, draft.Attendees, 2)
	assert.Equal(t, "a@example.com", draft.Attendees[0].EmailAddress.Address)
}

func TestDeleteCalendarEventEndToEnd(t *testing.T) {
	b := newMicrosoftBridge(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodDelete, r.Method)
		w.WriteHeader(http.StatusNoContent)
	})

	result := b.Invoke(sessionContext(), "deleteCalendarEvent", map[string]any{"eventId": "ev-9"})
	require.False(t, result.IsError)
	assert.Contains(t, resultText(t, result), "Deleted event ev-9")
}

func TestUpstreamFailureBecomesToolError(t *testing.T) {
	b := newMicrosoftBridge(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	result := b.Invoke(sessionContext(), "getCalendarEvent", map[string]any{"eventId": "missing"})
	require.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "404")
}

func TestCatalogNamesAreUnique(t *testing.T) {
	executor, err := upstream.New(upstream.Config{Vendor: "x", Refresher: staticRefresher{}})
	require.NoError(t, err)
	qb, err := quickbooks.New(quickbooks.Config{Executor: executor, RealmID: "1"})
	require.NoError(t, err)
	ms, err := msgraph.New(msgraph.Config{Executor: executor})
	require.NoError(t, err)

	seen := map[string]bool{}
	for _, def := range append(QuickBooksCatalog(qb), MicrosoftCatalog(ms)...) {
		assert.False(t, seen[def.Name], "duplicate tool name %s", def.Name)
		seen[def.Name] = true
	}
	assert.Len(t, seen, 8)
}
