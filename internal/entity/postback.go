package entity

import (
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

type EventType string

const (
	EventLeadCapture   EventType = "lead_capture"
	EventQualifiedLead EventType = "qualified_lead"
	EventTradeComplete EventType = "trade_complete"

	// Internal events raised by this service rather than by the partner.
	EventAffiliateClick EventType = "affiliate_click"
	EventLeadForm       EventType = "lead_form"

	EventUnknown EventType = "unknown"
)

func (t EventType) IsPartnerEvent() bool {
	switch t {
	case EventLeadCapture, EventQualifiedLead, EventTradeComplete:
		return true
	}
	return false
}

func (t EventType) Known() bool {
	return t.IsPartnerEvent() || t == EventAffiliateClick || t == EventLeadForm
}

// LeadStatus maps partner milestones onto the lead lifecycle. lead_capture on
// its own does not move the status.
func (t EventType) LeadStatus() (LeadStatus, bool) {
	switch t {
	case EventQualifiedLead:
		return LeadStatusQualified, true
	case EventTradeComplete:
		return LeadStatusConverted, true
	}
	return "", false
}

// ParseEventType accepts only partner events; internal event names coming in
// through a postback are treated as unknown.
func ParseEventType(raw string) EventType {
	t := EventType(strings.ToLower(strings.TrimSpace(raw)))
	if t.IsPartnerEvent() {
		return t
	}
	return EventUnknown
}

type Field struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Fields is the ordered open map of extension fields forwarded verbatim into
// notifications.
type Fields []Field

func (f Fields) Get(key string) (string, bool) {
	for _, kv := range f {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return "", false
}

func (f Fields) With(key, value string) Fields {
	if value == "" {
		return f
	}
	return append(f, Field{Key: key, Value: value})
}

// Postback is a partner milestone callback. Reserved keys land in typed
// fields; everything else is kept in Extra.
type Postback struct {
	Type      EventType `json:"type"`
	RawType   string    `json:"raw_type,omitempty"`
	SubID     SubID     `json:"sub_id"`
	LeadID    string    `json:"lead_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	IP        string    `json:"ip,omitempty"`
	UserAgent string    `json:"user_agent,omitempty"`
	Location  string    `json:"location,omitempty"`
	Extra     Fields    `json:"extra,omitempty"`
}

// RawTimestampKey carries a partner timestamp that could not be parsed.
const RawTimestampKey = "timestamp_raw"

// ParsePostback builds a Postback from flat key/values. The first value of
// each key wins. Timestamps that are missing or unparseable become now; an
// unparseable one is kept under RawTimestampKey.
func ParsePostback(values url.Values, now time.Time) Postback {
	p := Postback{Type: EventUnknown}

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var rawTimestamp string
	for _, key := range keys {
		vals := values[key]
		if len(vals) == 0 {
			continue
		}
		value := strings.TrimSpace(vals[0])
		if value == "" {
			continue
		}

		switch strings.ToLower(key) {
		case "type":
			p.RawType = value
			p.Type = ParseEventType(value)
		case "sub_id":
			p.SubID = ParseSubID(value)
		case "lead_id":
			p.LeadID = value
		case "timestamp":
			rawTimestamp = value
		case "ip":
			p.IP = value
		case "user_agent":
			p.UserAgent = value
		case "location":
			p.Location = value
		default:
			p.Extra = append(p.Extra, Field{Key: key, Value: value})
		}
	}

	ts, ok := parseTimestamp(rawTimestamp)
	if !ok {
		ts = now
		if rawTimestamp != "" {
			p.Extra = p.Extra.With(RawTimestampKey, rawTimestamp)
			sort.SliceStable(p.Extra, func(i, j int) bool { return p.Extra[i].Key < p.Extra[j].Key })
		}
	}
	p.Timestamp = ts.UTC()
	return p
}

func parseTimestamp(raw string) (time.Time, bool) {
	if raw == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return t, true
	}
	if secs, err := strconv.ParseInt(raw, 10, 64); err == nil && secs > 0 {
		return time.Unix(secs, 0), true
	}
	return time.Time{}, false
}
