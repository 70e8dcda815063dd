package msgraph

import "fmt"

// DateTimeTimeZone is the Graph representation of a wall-clock instant.
type DateTimeTimeZone struct {
	DateTime string `json:"dateTime"`
	TimeZone string `json:"timeZone"`
}

// EmailAddress is a Graph name/address pair.
type EmailAddress struct {
	Name    string `json:"name,omitempty"`
	Address string `json:"address"`
}

// Attendee is one event attendee with its response status.
type Attendee struct {
	Type         string          `json:"type,omitempty"`
	Status       *ResponseStatus `json:"status,omitempty"`
	EmailAddress EmailAddress    `json:"emailAddress"`
}

// ResponseStatus is an attendee's reply to the invitation.
type ResponseStatus struct {
	Response string `json:"response,omitempty"`
	Time     string `json:"time,omitempty"`
}

// Location is an event location.
type Location struct {
	DisplayName string `json:"displayName,omitempty"`
}

// ItemBody is an event body with its content type.
type ItemBody struct {
	ContentType string `json:"contentType,omitempty"`
	Content     string `json:"content,omitempty"`
}

// Recipient wraps an email address as Graph does for organizers.
type Recipient struct {
	EmailAddress EmailAddress `json:"emailAddress"`
}

// Event is one calendar event of the signed-in user.
type Event struct {
	ID                         string            `json:"id"`
	Subject                    string            `json:"subject"`
	BodyPreview                string            `json:"bodyPreview,omitempty"`
	Body                       *ItemBody         `json:"body,omitempty"`
	Start                      *DateTimeTimeZone `json:"start"`
	End                        *DateTimeTimeZone `json:"end"`
	IsAllDay                   bool              `json:"isAllDay,omitempty"`
	IsCancelled                bool              `json:"isCancelled,omitempty"`
	IsReminderOn               bool              `json:"isReminderOn,omitempty"`
	ReminderMinutesBeforeStart int               `json:"reminderMinutesBeforeStart,omitempty"`
	Location                   *Location         `json:"location,omitempty"`
	Attendees                  []Attendee        `json:"attendees,omitempty"`
	Categories                 []string          `json:"categories,omitempty"`
	Organizer                  *Recipient        `json:"organizer,omitempty"`
	WebLink                    string            `json:"webLink,omitempty"`
}

// Validate checks the required Event fields.
func (e *Event) Validate() error {
	if e.ID == "" {
		return fmt.Errorf("missing id")
	}
	if e.Start == nil || e.Start.DateTime == "" {
		return fmt.Errorf("missing start")
	}
	if e.End == nil || e.End.DateTime == "" {
		return fmt.Errorf("missing end")
	}
	return nil
}

// EventDraft is the payload for creating a calendar event.
type EventDraft struct {
	Subject                    string            `json:"subject"`
	Start                      *DateTimeTimeZone `json:"start"`
	End                        *DateTimeTimeZone `json:"end"`
	ReminderMinutesBeforeStart int               `json:"reminderMinutesBeforeStart"`
	IsReminderOn               bool              `json:"isReminderOn"`
	Body                       *ItemBody         `json:"body,omitempty"`
	Location                   *Location         `json:"location,omitempty"`
	IsAllDay                   bool              `json:"isAllDay,omitempty"`
	Categories                 []string          `json:"categories,omitempty"`
	Attendees                  []Attendee        `json:"attendees,omitempty"`
}

// Validate checks the required EventDraft fields before the draft is sent.
func (d *EventDraft) Validate() error {
	if d.Subject == "" {
		return fmt.Errorf("missing subject")
	}
	if d.Start == nil || d.Start.DateTime == "" {
		return fmt.Errorf("missing start")
	}
	if d.End == nil || d.End.DateTime == "" {
		return fmt.Errorf("missing end")
	}
	return nil
}

// EventPatch carries the fields of a partial event update. Nil fields are
// omitted from the request so Graph leaves them untouched.
type EventPatch struct {
	Subject                    *string           `json:"subject,omitempty"`
	Start                      *DateTimeTimeZone `json:"start,omitempty"`
	End                        *DateTimeTimeZone `json:"end,omitempty"`
	ReminderMinutesBeforeStart *int              `json:"reminderMinutesBeforeStart,omitempty"`
	Body                       *ItemBody         `json:"body,omitempty"`
	Location                   *Location         `json:"location,omitempty"`
	IsAllDay                   *bool             `json:"isAllDay,omitempty"`
	Categories                 []string          `json:"categories,omitempty"`
	Attendees                  []Attendee        `json:"attendees,omitempty"`
}

// IsZero reports whether the patch carries no changes.
func (p *EventPatch) IsZero() bool {
	return p.Subject == nil && p.Start == nil && p.End == nil &&
		p.ReminderMinutesBeforeStart == nil && p.Body == nil &&
		p.Location == nil && p.IsAllDay == nil &&
		p.Categories == nil && p.Attendees == nil
}
