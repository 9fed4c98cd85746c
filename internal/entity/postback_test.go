package entity

import (
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var fixedNow = time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)

func TestParsePostbackReservedAndExtraFields(t *testing.T) {
	values := url.Values{
		"type":       {"qualified_lead"},
		"sub_id":     {"ira-guide_CLK-ab12cd"},
		"lead_id":    {"lead-42"},
		"ip":         {"203.0.113.9"},
		"user_agent": {"Mozilla/5.0"},
		"location":   {"Austin, TX"},
		"state":      {"TX"},
		"amount":     {"50000"},
		"blank":      {""},
	}

	p := ParsePostback(values, fixedNow)

	assert.Equal(t, EventQualifiedLead, p.Type)
	assert.Equal(t, "qualified_lead", p.RawType)
	assert.Equal(t, SubID{Source: "ira-guide", ClickID: "CLK-ab12cd"}, p.SubID)
	assert.Equal(t, "lead-42", p.LeadID)
	assert.Equal(t, "203.0.113.9", p.IP)
	assert.Equal(t, "Mozilla/5.0", p.UserAgent)
	assert.Equal(t, "Austin, TX", p.Location)
	assert.Equal(t, fixedNow, p.Timestamp)
	assert.Equal(t, Fields{{Key: "amount", Value: "50000"}, {Key: "state", Value: "TX"}}, p.Extra)
}

func TestParsePostbackUnknownType(t *testing.T) {
	p := ParsePostback(url.Values{"type": {"chargeback"}}, fixedNow)

	assert.Equal(t, EventUnknown, p.Type)
	assert.Equal(t, "chargeback", p.RawType)
}

func TestParsePostbackInternalTypesAreUnknown(t *testing.T) {
	p := ParsePostback(url.Values{"type": {"affiliate_click"}}, fixedNow)
	assert.Equal(t, EventUnknown, p.Type)
}

func TestParsePostbackTimestamp(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want time.Time
	}{
		{"rfc3339", "2026-01-02T03:04:05Z", time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)},
		{"rfc3339 offset", "2026-01-02T03:04:05-05:00", time.Date(2026, 1, 2, 8, 4, 5, 0, time.UTC)},
		{"fractional", "2026-01-02T03:04:05.250Z", time.Date(2026, 1, 2, 3, 4, 5, 250000000, time.UTC)},
		{"unix", "1767323045", time.Unix(1767323045, 0).UTC()},
		{"garbage", "yesterday", fixedNow},
		{"missing", "", fixedNow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := ParsePostback(url.Values{"timestamp": {tt.raw}}, fixedNow)
			assert.True(t, tt.want.Equal(p.Timestamp), "got %s", p.Timestamp)
			assert.Equal(t, time.UTC, p.Timestamp.Location())
		})
	}
}

func TestParsePostbackKeepsUnparseableTimestamp(t *testing.T) {
	p := ParsePostback(url.Values{
		"timestamp": {"14/03/2026 19:30"},
		"amount":    {"50000"},
		"zip":       {"10001"},
	}, fixedNow)

	assert.True(t, fixedNow.Equal(p.Timestamp))
	assert.Equal(t, Fields{
		{Key: "amount", Value: "50000"},
		{Key: RawTimestampKey, Value: "14/03/2026 19:30"},
		{Key: "zip", Value: "10001"},
	}, p.Extra)

	parsed := ParsePostback(url.Values{"timestamp": {"1767323045"}}, fixedNow)
	_, kept := parsed.Extra.Get(RawTimestampKey)
	assert.False(t, kept)
}

func TestEventTypeLeadStatus(t *testing.T) {
	status, ok := EventQualifiedLead.LeadStatus()
	assert.True(t, ok)
	assert.Equal(t, LeadStatusQualified, status)

	status, ok = EventTradeComplete.LeadStatus()
	assert.True(t, ok)
	assert.Equal(t, LeadStatusConverted, status)

	_, ok = EventLeadCapture.LeadStatus()
	assert.False(t, ok)

	_, ok = EventUnknown.LeadStatus()
	assert.False(t, ok)
}

func TestParseLeadStatus(t *testing.T) {
	s, err := ParseLeadStatus("sent_to_augusta")
	assert.NoError(t, err)
	assert.Equal(t, LeadStatusSentToAugusta, s)

	_, err = ParseLeadStatus("archived")
	assert.Error(t, err)
}
