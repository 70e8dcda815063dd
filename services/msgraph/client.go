// Package msgraph reads and writes the signed-in user's calendar through the
// Microsoft Graph API. List reads follow Graph's @odata.nextLink cursor until
// the collection is exhausted; every payload is validated before it leaves
// the service.
package msgraph

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/giantswarm/mcp-backoffice/session"
	"github.com/giantswarm/mcp-backoffice/upstream"
)

// DefaultBaseURL is the Microsoft Graph v1.0 endpoint.
const DefaultBaseURL = "https://graph.microsoft.com/v1.0"

// Service reads and writes calendar events for the signed-in user.
type Service struct {
	executor *upstream.Executor
	baseURL  string
	logger   *slog.Logger
}

// Config holds Graph service configuration.
type Config struct {
	// Executor issues the authenticated API calls.
	Executor *upstream.Executor

	// BaseURL overrides the Graph endpoint (default: v1.0 production).
	BaseURL string

	// Logger for structured logging (optional).
	Logger *slog.Logger
}

// New creates a Graph service.
func New(cfg Config) (*Service, error) {
	if cfg.Executor == nil {
		return nil, fmt.Errorf("executor is required")
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		executor: cfg.Executor,
		baseURL:  baseURL,
		logger:   logger,
	}, nil
}

// collectionEnvelope is the wrapper Graph puts around every collection page.
type collectionEnvelope struct {
	Context  string            `json:"@odata.context"`
	Count    int               `json:"@odata.count"`
	NextLink string            `json:"@odata.nextLink"`
	Value    []json.RawMessage `json:"value"`
}

// CalendarEvents returns every event between start and end (ISO 8601
// date-times), following pagination eagerly into one ordered slice.
func (s *Service) CalendarEvents(ctx context.Context, cred *session.Credential, start, end string) ([]Event, error) {
	if start == "" || end == "" {
		return nil, fmt.Errorf("start and end dates are required")
	}

	initial := fmt.Sprintf("%s/me/calendarView?startDateTime=%s&endDateTime=%s&$orderby=start/dateTime",
		s.baseURL, url.QueryEscape(start), url.QueryEscape(end))

	events, err := upstream.FetchAll(ctx, s.executor, cred, initial, parseEventPage)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("Fetched calendar events", "start", start, "end", end, "count", len(events))
	return events, nil
}

// parseEventPage decodes one calendarView page.
func parseEventPage(body []byte) (upstream.Page[Event], error) {
	var env collectionEnvelope
	if err := upstream.DecodeStrict(body, "event collection envelope", &env); err != nil {
		return upstream.Page[Event]{}, err
	}

	events := make([]Event, 0, len(env.Value))
	for _, raw := range env.Value {
		var ev Event
		if err := upstream.Decode(raw, "event", &ev); err != nil {
			return upstream.Page[Event]{}, err
		}
		events = append(events, ev)
	}
	return upstream.Page[Event]{Rows: events, NextLink: env.NextLink}, nil
}

// CreateEvent creates a calendar event and returns the stored copy.
func (s *Service) CreateEvent(ctx context.Context, cred *session.Credential, draft *EventDraft) (*Event, error) {
	if err := draft.Validate(); err != nil {
		return nil, &upstream.ValidationError{Resource: "event draft", Err: err}
	}

	payload, err := json.Marshal(draft)
	if err != nil {
		return nil, fmt.Errorf("failed to encode event draft: %w", err)
	}

	body, err := s.executor.Do(ctx, &upstream.Request{
		Method: http.MethodPost,
		URL:    s.baseURL + "/me/events",
		Body:   payload,
	}, cred)
	if err != nil {
		return nil, err
	}

	var ev Event
	if err := upstream.Decode(body, "event", &ev); err != nil {
		return nil, err
	}

	s.logger.Info("Created calendar event", "event_id", ev.ID, "subject", ev.Subject)
	return &ev, nil
}

// Event returns one event by ID.
func (s *Service) Event(ctx context.Context, cred *session.Credential, eventID string) (*Event, error) {
	if eventID == "" {
		return nil, fmt.Errorf("event ID is required")
	}

	body, err := s.executor.Get(ctx, s.eventURL(eventID), cred)
	if err != nil {
		return nil, err
	}

	var ev Event
	if err := upstream.Decode(body, "event", &ev); err != nil {
		return nil, err
	}
	return &ev, nil
}

// UpdateEvent applies a partial update and returns the stored copy.
func (s *Service) UpdateEvent(ctx context.Context, cred *session.Credential, eventID string, patch *EventPatch) (*Event, error) {
	if eventID == "" {
		return nil, fmt.Errorf("event ID is required")
	}
	if patch == nil || patch.IsZero() {
		return nil, &upstream.ValidationError{Resource: "event patch", Err: fmt.Errorf("no fields to update")}
	}

	payload, err := json.Marshal(patch)
	if err != nil {
		return nil, fmt.Errorf("failed to encode event patch: %w", err)
	}

	body, err := s.executor.Do(ctx, &upstream.Request{
		Method: http.MethodPatch,
		URL:    s.eventURL(eventID),
		Body:   payload,
	}, cred)
	if err != nil {
		return nil, err
	}

	var ev Event
	if err := upstream.Decode(body, "event", &ev); err != nil {
		return nil, err
	}

	s.logger.Info("Updated calendar event", "event_id", ev.ID)
	return &ev, nil
}

// DeleteEvent removes one event by ID.
func (s *Service) DeleteEvent(ctx context.Context, cred *session.Credential, eventID string) error {
	if eventID == "" {
		return fmt.Errorf("event ID is required")
	}

	_, err := s.executor.Do(ctx, &upstream.Request{
		Method: http.MethodDelete,
		URL:    s.eventURL(eventID),
	}, cred)
	if err != nil {
		return err
	}

	s.logger.Info("Deleted calendar event", "event_id", eventID)
	return nil
}

func (s *Service) eventURL(eventID string) string {
	return s.baseURL + "/me/events/" + url.PathEscape(eventID)
}
