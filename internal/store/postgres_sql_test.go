package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"dispatch-service/internal/domain"
)

func TestJobFilterSQL(t *testing.T) {
	from := time.Date(2026, time.June, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)

	tests := []struct {
		name  string
		f     JobFilter
		where string
		args  []any
	}{
		{"none", JobFilter{}, "", nil},
		{"worker", JobFilter{WorkerID: "w1"}, " WHERE worker_id=$1", []any{"w1"}},
		{
			"everything",
			JobFilter{ClientID: "c1", Statuses: []domain.Status{domain.StatusAccepted, domain.StatusInProgress}, StartFrom: from, StartTo: to},
			" WHERE client_id=$1 AND status = ANY($2) AND start_time >= $3 AND start_time < $4",
			[]any{"c1", []string{"accepted", "in_progress"}, from, to},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			where, args := jobFilterSQL(tt.f)
			assert.Equal(t, tt.where, where)
			assert.Equal(t, tt.args, args)
		})
	}
}

func TestEncodeSchedule_EmptyWorker(t *testing.T) {
	tmpl, cal, busy, err := encodeSchedule(domain.Worker{})
	assert.NoError(t, err)
	assert.Equal(t, "[]", string(cal))
	assert.Equal(t, "[]", string(busy))
	assert.Contains(t, string(tmpl), `"weekday":6`)
	assert.Equal(t, []int64{}, categoryIDs(nil))
}
