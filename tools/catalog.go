package tools

import (
	"context"
	"fmt"

	"github.com/giantswarm/mcp-backoffice/services/msgraph"
	"github.com/giantswarm/mcp-backoffice/services/quickbooks"
	"github.com/giantswarm/mcp-backoffice/session"
)

// graphTimeZone is the time zone stamped on event times the agent supplies.
const graphTimeZone = "UTC"

// QuickBooksCatalog returns the tool definitions backed by the QuickBooks
// service.
func QuickBooksCatalog(svc *quickbooks.Service) []Definition {
	return []Definition{
		{
			Name:        "getCompanyInfo",
			Description: "Get the company profile of the connected QuickBooks account",
			Handler: func(ctx context.Context, args map[string]any) (*Result, error) {
				cred, err := credential(ctx)
				if err != nil {
					return nil, err
				}
				info, err := svc.CompanyInfo(ctx, cred)
				if err != nil {
					return nil, err
				}
				return &Result{
					Summary: fmt.Sprintf("Company information for %s", info.CompanyName),
					Payload: info,
				}, nil
			},
		},
		{
			Name:        "getInvoices",
			Description: "List invoices sorted by due date descending",
			Params: []Param{
				{Name: "page", Description: "Zero-based page number", Type: TypeInteger, Default: 0},
				{Name: "pageSize", Description: "Number of invoices per page", Type: TypeInteger, Default: 10},
			},
			Handler: func(ctx context.Context, args map[string]any) (*Result, error) {
				cred, err := credential(ctx)
				if err != nil {
					return nil, err
				}
				invoices, err := svc.Invoices(ctx, cred, intArg(args, "page"), intArg(args, "pageSize"))
				if err != nil {
					return nil, err
				}
				return &Result{
					Summary: fmt.Sprintf("Found %d invoices", len(invoices)),
					Payload: invoices,
				}, nil
			},
		},
		{
			Name:        "getCustomers",
			Description: "List customers sorted by display name",
			Params: []Param{
				{Name: "page", Description: "Zero-based page number", Type: TypeInteger, Default: 0},
				{Name: "pageSize", Description: "Number of customers per page", Type: TypeInteger, Default: 10},
			},
			Handler: func(ctx context.Context, args map[string]any) (*Result, error) {
				cred, err := credential(ctx)
				if err != nil {
					return nil, err
				}
				customers, err := svc.Customers(ctx, cred, intArg(args, "page"), intArg(args, "pageSize"))
				if err != nil {
					return nil, err
				}
				return &Result{
					Summary: fmt.Sprintf("Found %d customers", len(customers)),
					Payload: customers,
				}, nil
			},
		},
	}
}

// MicrosoftCatalog returns the tool definitions backed by the Graph calendar
// service.
func MicrosoftCatalog(svc *msgraph.Service) []Definition {
	return []Definition{
		{
			Name:        "getUserCalendarEvents",
			Description: "List the user's calendar events between two dates",
			Params: []Param{
				{Name: "startDate", Description: "Range start (ISO 8601 date-time)", Type: TypeString, Required: true},
				{Name: "endDate", Description: "Range end (ISO 8601 date-time)", Type: TypeString, Required: true},
			},
			Handler: func(ctx context.Context, args map[string]any) (*Result, error) {
				cred, err := credential(ctx)
				if err != nil {
					return nil, err
				}
				events, err := svc.CalendarEvents(ctx, cred, stringArg(args, "startDate"), stringArg(args, "endDate"))
				if err != nil {
					return nil, err
				}
				return &Result{
					Summary: fmt.Sprintf("Found %d calendar events", len(events)),
					Payload: events,
				}, nil
			},
		},
		{
			Name:        "createCalendarEvent",
			Description: "Create a calendar event with a reminder",
			Params: []Param{
				{Name: "subject", Description: "Event subject", Type: TypeString, Required: true},
				{Name: "startDate", Description: "Event start (ISO 8601 date-time)", Type: TypeString, Required: true},
				{Name: "endDate", Description: "Event end (ISO 8601 date-time)", Type: TypeString, Required: true},
				{Name: "reminderMinutesBeforeStart", Description: "Reminder lead time in minutes", Type: TypeInteger, Default: 15},
				{Name: "body", Description: "Event body text", Type: TypeString},
				{Name: "location", Description: "Event location", Type: TypeString},
				{Name: "isAllDay", Description: "Whether the event spans whole days", Type: TypeBoolean, Default: false},
				{Name: "categories", Description: "Category labels", Type: TypeArray, Items: map[string]any{"type": "string"}},
				{Name: "attendees", Description: "Attendee email addresses", Type: TypeArray, Items: map[string]any{"type": "string"}},
			},
			Handler: func(ctx context.Context, args map[string]any) (*Result, error) {
				cred, err := credential(ctx)
				if err != nil {
					return nil, err
				}

				draft := &msgraph.EventDraft{
					Subject:                    stringArg(args, "subject"),
					Start:                      graphTime(stringArg(args, "startDate")),
					End:                        graphTime(stringArg(args, "endDate")),
					ReminderMinutesBeforeStart: intArg(args, "reminderMinutesBeforeStart"),
					IsReminderOn:               true,
					IsAllDay:                   boolArg(args, "isAllDay"),
					Categories:                 stringSliceArg(args, "categories"),
					Attendees:                  attendeesArg(args),
				}
				if body := stringArg(args, "body"); body != "" {
					draft.Body = &msgraph.ItemBody{ContentType: "text", Content: body}
				}
				if location := stringArg(args, "location"); location != "" {
					draft.Location = &msgraph.Location{DisplayName: location}
				}

				event, err := svc.CreateEvent(ctx, cred, draft)
				if err != nil {
					return nil, err
				}
				return &Result{
					Summary: fmt.Sprintf("Created event %q", event.Subject),
					Payload: event,
				}, nil
			},
		},
		{
			Name:        "getCalendarEvent",
			Description: "Get one calendar event by ID",
			Params: []Param{
				{Name: "eventId", Description: "Event identifier", Type: TypeString, Required: true},
			},
			Handler: func(ctx context.Context, args map[string]any) (*Result, error) {
				cred, err := credential(ctx)
				if err != nil {
					return nil, err
				}
				event, err := svc.Event(ctx, cred, stringArg(args, "eventId"))
				if err != nil {
					return nil, err
				}
				return &Result{
					Summary: fmt.Sprintf("Event %q", event.Subject),
					Payload: event,
				}, nil
			},
		},
		{
			Name:        "updateCalendarEvent",
			Description: "Update fields of an existing calendar event",
			Params: []Param{
				{Name: "eventId", Description: "Event identifier", Type: TypeString, Required: true},
				{Name: "subject", Description: "New subject", Type: TypeString},
				{Name: "startDate", Description: "New start (ISO 8601 date-time)", Type: TypeString},
				{Name: "endDate", Description: "New end (ISO 8601 date-time)", Type: TypeString},
				{Name: "reminderMinutesBeforeStart", Description: "New reminder lead time in minutes", Type: TypeInteger},
				{Name: "body", Description: "New body text", Type: TypeString},
				{Name: "location", Description: "New location", Type: TypeString},
				{Name: "isAllDay", Description: "Whether the event spans whole days", Type: TypeBoolean},
				{Name: "categories", Description: "New category labels", Type: TypeArray, Items: map[string]any{"type": "string"}},
				{Name: "attendees", Description: "New attendee email addresses", Type: TypeArray, Items: map[string]any{"type": "string"}},
			},
			Handler: func(ctx context.Context, args map[string]any) (*Result, error) {
				cred, err := credential(ctx)
				if err != nil {
					return nil, err
				}

				patch := &msgraph.EventPatch{}
				if v, ok := args["subject"].(string); ok {
					patch.Subject = &v
				}
				if v, ok := args["startDate"].(string); ok {
					patch.Start = graphTime(v)
				}
				if v, ok := args["endDate"].(string); ok {
					patch.End = graphTime(v)
				}
				if v, ok := args["reminderMinutesBeforeStart"].(int); ok {
					patch.ReminderMinutesBeforeStart = &v
				}
				if v, ok := args["body"].(string); ok {
					patch.Body = &msgraph.ItemBody{ContentType: "text", Content: v}
				}
				if v, ok := args["location"].(string); ok {
					patch.Location = &msgraph.Location{DisplayName: v}
				}
				if v, ok := args["isAllDay"].(bool); ok {
					patch.IsAllDay = &v
				}
				if _, ok := args["categories"]; ok {
					patch.Categories = stringSliceArg(args, "categories")
				}
				if _, ok := args["attendees"]; ok {
					patch.Attendees = attendeesArg(args)
				}

				event, err := svc.UpdateEvent(ctx, cred, stringArg(args, "eventId"), patch)
				if err != nil {
					return nil, err
				}
				return &Result{
					Summary: fmt.Sprintf("Updated event %q", event.Subject),
					Payload: event,
				}, nil
			},
		},
		{
			Name:        "deleteCalendarEvent",
			Description: "Delete a calendar event by ID",
			Params: []Param{
				{Name: "eventId", Description: "Event identifier", Type: TypeString, Required: true},
			},
			Handler: func(ctx context.Context, args map[string]any) (*Result, error) {
				cred, err := credential(ctx)
				if err != nil {
					return nil, err
				}
				eventID := stringArg(args, "eventId")
				if err := svc.DeleteEvent(ctx, cred, eventID); err != nil {
					return nil, err
				}
				return &Result{
					Summary: fmt.Sprintf("Deleted event %s", eventID),
				}, nil
			},
		},
	}
}

// credential pulls the session credential the inbound boundary attached.
func credential(ctx context.Context) (*session.Credential, error) {
	cred, ok := session.FromContext(ctx)
	if !ok {
		return nil, fmt.Errorf("no session credential in request context")
	}
	return cred, nil
}

func stringArg(args map[string]any, name string) string {
	v, _ := args[name].(string)
	return v
}

func intArg(args map[string]any, name string) int {
	v, _ := args[name].(int)
	return v
}

func boolArg(args map[string]any, name string) bool {
	v, _ := args[name].(bool)
	return v
}

func stringSliceArg(args map[string]any, name string) []string {
	raw, ok := args[name].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// attendeesArg converts attendee email addresses into Graph attendee objects.
func attendeesArg(args map[string]any) []msgraph.Attendee {
	addresses := stringSliceArg(args, "attendees")
	if len(addresses) == 0 {
		return nil
	}
	attendees := make([]msgraph.Attendee, 0, len(addresses))
	for _, addr := range addresses {
		attendees = append(attendees, msgraph.Attendee{
			Type:         "required",
			EmailAddress: msgraph.EmailAddress{Address: addr},
		})
	}
	return attendees
}

// graphTime wraps an ISO 8601 date-time for the Graph API.
func graphTime(dateTime string) *msgraph.DateTimeTimeZone {
	return &msgraph.DateTimeTimeZone{DateTime: dateTime, TimeZone: graphTimeZone}
}
