// Package gcal reads busy time from a worker's Google Calendar.
package gcal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gcalendar "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"dispatch-service/internal/calendar"
)

// PrimaryCalendar is the calendar id of the account owner's own calendar.
const PrimaryCalendar = "primary"

const pageSize = 250

// ErrInvalidToken is returned for a token that is not an oauth2 token JSON.
var ErrInvalidToken = errors.New("invalid google token")

// OAuth is the OAuth2 client of the Google Calendar integration.
type OAuth struct {
	cfg *oauth2.Config
}

// NewOAuth returns nil unless all three settings are present.
func NewOAuth(clientID, clientSecret, redirectURL string) *OAuth {
	if clientID == "" || clientSecret == "" || redirectURL == "" {
		return nil
	}
	return NewOAuthConfig(&oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Scopes:       []string{gcalendar.CalendarReadonlyScope},
		Endpoint:     google.Endpoint,
	})
}

// NewOAuthConfig wraps an existing oauth2 config.
func NewOAuthConfig(cfg *oauth2.Config) *OAuth {
	return &OAuth{cfg: cfg}
}

// AuthURL is where the worker grants read access to their calendar.
func (o *OAuth) AuthURL(state string) string {
	return o.cfg.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// Exchange trades an authorization code for a token.
func (o *OAuth) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	tok, err := o.cfg.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange authorization code: %w", err)
	}
	return tok, nil
}

// Source opens calendarID with tok. The token refreshes itself as needed.
func (o *OAuth) Source(ctx context.Context, tok *oauth2.Token, calendarID string) (*Source, error) {
	return NewSource(ctx, calendarID, option.WithHTTPClient(o.cfg.Client(ctx, tok)))
}

// ParseToken decodes the JSON form of an oauth2 token.
func ParseToken(s string) (*oauth2.Token, error) {
	var tok oauth2.Token
	if err := json.Unmarshal([]byte(s), &tok); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if tok.AccessToken == "" && tok.RefreshToken == "" {
		return nil, fmt.Errorf("%w: no access or refresh token", ErrInvalidToken)
	}
	return &tok, nil
}

// Source lists the timed, opaque events of one calendar.
type Source struct {
	svc        *gcalendar.Service
	calendarID string
}

func NewSource(ctx context.Context, calendarID string, opts ...option.ClientOption) (*Source, error) {
	svc, err := gcalendar.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create calendar service: %w", err)
	}
	if calendarID == "" {
		calendarID = PrimaryCalendar
	}
	return &Source{svc: svc, calendarID: calendarID}, nil
}

// Busy returns the events starting in [from, to) that block the worker's time.
func (s *Source) Busy(ctx context.Context, from, to time.Time) ([]calendar.Commitment, error) {
	call := s.svc.Events.List(s.calendarID).
		SingleEvents(true).
		OrderBy("startTime").
		MaxResults(pageSize).
		TimeMin(from.Format(time.RFC3339)).
		TimeMax(to.Format(time.RFC3339))

	var out []calendar.Commitment
	err := call.Pages(ctx, func(page *gcalendar.Events) error {
		for _, e := range page.Items {
			if c, ok := EventToCommitment(e); ok {
				out = append(out, c)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list events of calendar %s: %w", s.calendarID, err)
	}
	return out, nil
}

// EventToCommitment converts a timed event. All-day, cancelled and
// transparent ("show as available") events do not block time.
func EventToCommitment(e *gcalendar.Event) (calendar.Commitment, bool) {
	if e == nil || e.Status == "cancelled" || e.Transparency == "transparent" {
		return calendar.Commitment{}, false
	}
	if e.Start == nil || e.End == nil || e.Start.DateTime == "" || e.End.DateTime == "" {
		return calendar.Commitment{}, false
	}
	start, err := time.Parse(time.RFC3339, e.Start.DateTime)
	if err != nil {
		return calendar.Commitment{}, false
	}
	end, err := time.Parse(time.RFC3339, e.End.DateTime)
	if err != nil || !start.Before(end) {
		return calendar.Commitment{}, false
	}
	return calendar.Commitment{Ref: e.Id, Start: start, End: end}, true
}
