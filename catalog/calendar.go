package catalog

import (
	"context"
	"net/mail"
	"strings"
	"time"

	"github.com/ggoodman/mcp-gateway/integration"
	"github.com/ggoodman/mcp-gateway/mcp"
	"github.com/ggoodman/mcp-gateway/mcpservice"
	"github.com/ggoodman/mcp-gateway/sessions"
)

const eventCollectionURI = "calendar://events"

func (c *catalog) eventRoute() mcpservice.ResourceRoute {
	return mcpservice.ResourceRoute{
		Template: mcp.ResourceTemplate{
			URITemplate: eventCollectionURI + "/{id}",
			Name:        "calendar-resource",
			Title:       "Calendar event",
			Description: "A single event from the primary calendar.",
			MimeType:    mimeJSON,
		},
		Collection: &mcp.Resource{
			URI:         eventCollectionURI,
			Name:        "events",
			Title:       "Upcoming events",
			Description: "Upcoming events on the primary calendar ordered by start time.",
			MimeType:    mimeJSON,
		},
		Read: func(ctx context.Context, s sessions.Session, uri string, vars map[string]string) ([]mcp.ResourceContents, error) {
			cal, err := c.calendar(s)
			if err != nil {
				return nil, err
			}
			var out any
			if id := vars["id"]; id != "" {
				err = c.call(ctx, integration.Calendar, "GetEvent", func(ctx context.Context) error {
					ev, err := cal.GetEvent(ctx, id)
					out = ev
					return err
				})
			} else {
				err = c.call(ctx, integration.Calendar, "ListEvents", func(ctx context.Context) error {
					evs, err := cal.ListEvents(ctx)
					out = nonNil(evs)
					return err
				})
			}
			if err != nil {
				return nil, err
			}
			return jsonContents(uri, out)
		},
	}
}

type createMeetingArgs struct {
	Summary     string   `json:"summary" jsonschema:"description=Meeting title"`
	Description string   `json:"description,omitempty"`
	Start       string   `json:"start" jsonschema:"description=Start time in RFC 3339 format,format=date-time"`
	End         string   `json:"end" jsonschema:"description=End time in RFC 3339 format; must be after start,format=date-time"`
	Attendees   []string `json:"attendees,omitempty" jsonschema:"description=Attendee e-mail addresses"`
}

func (c *catalog) createMeeting() mcpservice.StaticTool {
	return mcpservice.NewTool[createMeetingArgs]("create-meeting",
		func(ctx context.Context, s sessions.Session, w mcpservice.ToolResponseWriter, r *mcpservice.ToolRequest[createMeetingArgs]) error {
			if _, err := credential[integration.CalendarCredentials](s, integration.Calendar); err != nil {
				return err
			}
			draft, err := meetingDraft(r.Args())
			if err != nil {
				return err
			}
			cal, err := c.calendar(s)
			if err != nil {
				return err
			}

			var ev *integration.Event
			err = c.call(ctx, integration.Calendar, "CreateEvent", func(ctx context.Context) error {
				ev, err = cal.CreateEvent(ctx, draft)
				return err
			})
			if err != nil {
				return err
			}
			if err := w.SetStructured(ev); err != nil {
				return err
			}
			return w.AppendJSON(ev)
		},
		mcpservice.WithToolTitle("Create meeting"),
		mcpservice.WithToolDescription("Create an event on the primary Google Calendar with a Meet link and invite the attendees."),
		mcpservice.WithToolAnnotations(mcp.ToolAnnotations{OpenWorldHint: true}),
		mcpservice.WithToolOutput[integration.Event](),
	)
}

// meetingDraft validates the arguments before any adapter is built.
func meetingDraft(a createMeetingArgs) (integration.EventDraft, error) {
	d := integration.EventDraft{
		Summary:     strings.TrimSpace(a.Summary),
		Description: a.Description,
	}
	if d.Summary == "" {
		return d, integration.Validationf(integration.Calendar, "summary is required")
	}
	var err error
	if d.Start, err = time.Parse(time.RFC3339, strings.TrimSpace(a.Start)); err != nil {
		return d, integration.Validationf(integration.Calendar, "start %q is not an RFC 3339 time", a.Start)
	}
	if d.End, err = time.Parse(time.RFC3339, strings.TrimSpace(a.End)); err != nil {
		return d, integration.Validationf(integration.Calendar, "end %q is not an RFC 3339 time", a.End)
	}
	if !d.End.After(d.Start) {
		return d, integration.Validationf(integration.Calendar, "end must be after start")
	}
	for _, raw := range a.Attendees {
		addr, err := mail.ParseAddress(strings.TrimSpace(raw))
		if err != nil {
			return d, integration.Validationf(integration.Calendar, "attendee %q is not a valid e-mail address", raw)
		}
		d.Attendees = append(d.Attendees, addr.Address)
	}
	return d, nil
}
