package repository

import (
	"context"
	"encoding/json"
	"os"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/jmehdipour/lead-intake/internal/model"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/go-sql-driver/mysql"
)

func sampleLead() model.Lead {
	at := time.Date(2026, 4, 2, 15, 0, 0, 0, time.UTC)
	in := model.Inquiry{
		Name:         "Jane Doe",
		Company:      "Acme",
		Email:        "jane@acme.com",
		FreightModes: []string{"LTL", "FTL"},
		Message:      "call me",
	}
	return model.NewLead("01JQX0000000000000000000AA", in, "203.0.113.5", model.EmailSent, "op-1", at)
}

func longLead() model.Lead {
	l := sampleLead()
	l.ID = "01JQX0000000000000000000AB"
	in := model.Inquiry{
		Name:         strings.Repeat("n", 300),
		Company:      strings.Repeat("ü", 400),
		Email:        strings.Repeat("e", 330) + "@acme.com",
		Phone:        strings.Repeat("1", 100),
		FreightModes: []string{strings.Repeat("m", 300), strings.Repeat("x", 300)},
		Message:      "call me",
	}
	return model.NewLead(l.ID, in, "203.0.113.5", model.EmailSent, "op-2", l.CreatedAt)
}

func TestNewLeadFitsColumns(t *testing.T) {
	l := longLead()

	assert.Equal(t, model.MaxNameLen, utf8.RuneCountInString(l.Name))
	assert.Equal(t, strings.Repeat("ü", model.MaxNameLen), l.Company)
	assert.Equal(t, model.MaxEmailLen, utf8.RuneCountInString(l.Email))
	assert.Len(t, l.Phone, model.MaxPhoneLen)
	assert.Len(t, l.FreightModes, model.MaxFreightModesLen)
	assert.Equal(t, "call me", l.Message)

	short := sampleLead()
	assert.Equal(t, "Jane Doe", short.Name)
	assert.Equal(t, "LTL, FTL", short.FreightModes)
}

func TestOutboxEventFor(t *testing.T) {
	l := sampleLead()

	ev, err := OutboxEventFor(l, []string{"LTL", "FTL"}, "")
	require.NoError(t, err)

	assert.Equal(t, LeadAggregate, ev.Aggregate)
	assert.Equal(t, l.ID, ev.AggregateID)
	assert.Equal(t, l.CreatedAt, ev.CreatedAt)

	var got model.LeadEvent
	require.NoError(t, json.Unmarshal(ev.Payload, &got))
	assert.Equal(t, []string{"LTL", "FTL"}, got.Modes)
	assert.Equal(t, model.EmailSent, got.EmailStatus)
	assert.NotContains(t, string(ev.Payload), "call me")
	assert.NotContains(t, string(ev.Payload), "203.0.113.5")
}

func TestClampPage(t *testing.T) {
	tests := []struct {
		limit, offset         int
		wantLimit, wantOffset int
	}{
		{0, 0, DefaultListLimit, 0},
		{-3, -1, DefaultListLimit, 0},
		{10, 20, 10, 20},
		{MaxListLimit, 0, MaxListLimit, 0},
		{MaxListLimit + 1, 5, DefaultListLimit, 5},
	}
	for _, tt := range tests {
		l, o := ClampPage(tt.limit, tt.offset)
		assert.Equal(t, tt.wantLimit, l)
		assert.Equal(t, tt.wantOffset, o)
	}
}

func TestListQuery(t *testing.T) {
	q, args := listQuery("", 50, 0)
	assert.NotContains(t, q, "WHERE")
	assert.Equal(t, []any{50, 0}, args)

	q, args = listQuery("LTL", 10, 30)
	assert.Contains(t, q, "has(freight_modes, ?)")
	assert.Equal(t, []any{"LTL", 10, 30}, args)
}

// TestLeadRecorderMySQL needs a migrated database, e.g.
// LEADGW_TEST_MYSQL_DSN="root:root@tcp(127.0.0.1:3306)/leadgw?parseTime=true".
func TestLeadRecorderMySQL(t *testing.T) {
	dsn := os.Getenv("LEADGW_TEST_MYSQL_DSN")
	if dsn == "" {
		t.Skip("LEADGW_TEST_MYSQL_DSN not set")
	}

	db, err := sqlx.Connect("mysql", dsn)
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	l := sampleLead()
	_, _ = db.ExecContext(ctx, "DELETE FROM outbox WHERE aggregate_id = ?", l.ID)
	_, _ = db.ExecContext(ctx, "DELETE FROM leads WHERE id = ?", l.ID)

	rec := NewLeadRecorder(db, NewLeadsRepository(db), NewOutboxRepository(db), "")
	require.NoError(t, rec.Record(ctx, l, []string{"LTL", "FTL"}))

	var got model.Lead
	require.NoError(t, db.GetContext(ctx, &got, "SELECT * FROM leads WHERE id = ?", l.ID))
	assert.Equal(t, "LTL, FTL", got.FreightModes)
	assert.Equal(t, model.EmailSent, got.EmailStatus)

	var topic string
	require.NoError(t, db.GetContext(ctx, &topic, "SELECT topic FROM outbox WHERE aggregate_id = ?", l.ID))
	assert.Equal(t, LeadsKafkaTopic, topic)

	long := longLead()
	_, _ = db.ExecContext(ctx, "DELETE FROM outbox WHERE aggregate_id = ?", long.ID)
	_, _ = db.ExecContext(ctx, "DELETE FROM leads WHERE id = ?", long.ID)
	require.NoError(t, rec.Record(ctx, long, nil))

	// duplicate id rolls back both rows
	assert.Error(t, rec.Record(ctx, l, nil))
	var n int
	require.NoError(t, db.GetContext(ctx, &n, "SELECT COUNT(*) FROM outbox WHERE aggregate_id = ?", l.ID))
	assert.Equal(t, 1, n)
}
