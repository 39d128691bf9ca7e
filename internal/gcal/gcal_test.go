package gcal_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gcalendar "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"dispatch-service/internal/gcal"
)

const firstPage = `{
  "items": [
    {"id": "dentist", "status": "confirmed",
     "start": {"dateTime": "2026-06-01T13:00:00Z"}, "end": {"dateTime": "2026-06-01T14:00:00Z"}},
    {"id": "holiday", "status": "confirmed",
     "start": {"date": "2026-06-02"}, "end": {"date": "2026-06-03"}},
    {"id": "focus", "status": "confirmed", "transparency": "transparent",
     "start": {"dateTime": "2026-06-03T09:00:00Z"}, "end": {"dateTime": "2026-06-03T10:00:00Z"}}
  ],
  "nextPageToken": "p2"
}`

const secondPage = `{
  "items": [
    {"id": "gym", "status": "confirmed",
     "start": {"dateTime": "2026-06-04T18:00:00+02:00"}, "end": {"dateTime": "2026-06-04T19:30:00+02:00"}},
    {"id": "dropped", "status": "cancelled",
     "start": {"dateTime": "2026-06-05T09:00:00Z"}, "end": {"dateTime": "2026-06-05T10:00:00Z"}}
  ]
}`

func TestSource_Busy(t *testing.T) {
	var queries []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/calendars/primary/events"), r.URL.Path)
		queries = append(queries, r.URL.RawQuery)
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("pageToken") == "p2" {
			_, _ = w.Write([]byte(secondPage))
			return
		}
		_, _ = w.Write([]byte(firstPage))
	}))
	defer srv.Close()

	src, err := gcal.NewSource(context.Background(), "",
		option.WithEndpoint(srv.URL+"/"), option.WithHTTPClient(srv.Client()))
	require.NoError(t, err)

	from := time.Date(2026, time.June, 1, 0, 0, 0, 0, time.UTC)
	busy, err := src.Busy(context.Background(), from, from.AddDate(0, 1, 0))
	require.NoError(t, err)

	require.Len(t, busy, 2)
	assert.Equal(t, "dentist", busy[0].Ref)
	assert.True(t, busy[0].Start.Equal(time.Date(2026, time.June, 1, 13, 0, 0, 0, time.UTC)))
	assert.Equal(t, "gym", busy[1].Ref)
	assert.Equal(t, 90*time.Minute, busy[1].End.Sub(busy[1].Start))

	require.Len(t, queries, 2)
	assert.Contains(t, queries[0], "singleEvents=true")
	assert.Contains(t, queries[0], "timeMin=2026-06-01T00%3A00%3A00Z")
}

func TestSource_BusyProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error": {"code": 401, "message": "invalid credentials"}}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	src, err := gcal.NewSource(context.Background(), "work",
		option.WithEndpoint(srv.URL+"/"), option.WithHTTPClient(srv.Client()))
	require.NoError(t, err)

	_, err = src.Busy(context.Background(), time.Now(), time.Now().Add(time.Hour))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "calendar work")
}

func TestEventToCommitment(t *testing.T) {
	tests := []struct {
		name string
		ev   *gcalendar.Event
		ok   bool
	}{
		{"nil", nil, false},
		{"timed", &gcalendar.Event{Id: "a",
			Start: &gcalendar.EventDateTime{DateTime: "2026-06-01T10:00:00Z"},
			End:   &gcalendar.EventDateTime{DateTime: "2026-06-01T11:00:00Z"}}, true},
		{"all day", &gcalendar.Event{Id: "b",
			Start: &gcalendar.EventDateTime{Date: "2026-06-01"},
			End:   &gcalendar.EventDateTime{Date: "2026-06-02"}}, false},
		{"backwards", &gcalendar.Event{Id: "c",
			Start: &gcalendar.EventDateTime{DateTime: "2026-06-01T11:00:00Z"},
			End:   &gcalendar.EventDateTime{DateTime: "2026-06-01T10:00:00Z"}}, false},
		{"garbled", &gcalendar.Event{Id: "d",
			Start: &gcalendar.EventDateTime{DateTime: "tomorrow"},
			End:   &gcalendar.EventDateTime{DateTime: "2026-06-01T10:00:00Z"}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, ok := gcal.EventToCommitment(tt.ev)
			assert.Equal(t, tt.ok, ok)
			if ok {
				assert.Equal(t, tt.ev.Id, c.Ref)
			}
		})
	}
}

func TestParseToken(t *testing.T) {
	tok, err := gcal.ParseToken(`{"access_token":"ya29","token_type":"Bearer","refresh_token":"1//r"}`)
	require.NoError(t, err)
	assert.Equal(t, "ya29", tok.AccessToken)

	_, err = gcal.ParseToken(`not json`)
	assert.ErrorIs(t, err, gcal.ErrInvalidToken)
	_, err = gcal.ParseToken(`{}`)
	assert.ErrorIs(t, err, gcal.ErrInvalidToken)
}

func TestNewOAuth(t *testing.T) {
	assert.Nil(t, gcal.NewOAuth("id", "", "https://dispatch.example/oauth2callback"))

	o := gcal.NewOAuth("id", "secret", "https://dispatch.example/oauth2callback")
	require.NotNil(t, o)
	u := o.AuthURL("w1")
	assert.Contains(t, u, "accounts.google.com")
	assert.Contains(t, u, "state=w1")
	assert.Contains(t, u, "access_type=offline")
}
