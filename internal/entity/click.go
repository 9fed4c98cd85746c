package entity

import (
	"crypto/rand"
	"math/big"
	"strings"
)

const (
	ClickIDPrefix  = "CLK-"
	ClickIDLength  = 6
	SubIDDelimiter = "_" + ClickIDPrefix

	DefaultCompany = "Augusta Precious Metals"
)

const clickIDAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// NewClickID mints a short correlation token such as "CLK-9f3a2b".
// Collisions are possible and acceptable for attribution.
func NewClickID() string {
	var b strings.Builder
	b.Grow(len(ClickIDPrefix) + ClickIDLength)
	b.WriteString(ClickIDPrefix)

	max := big.NewInt(int64(len(clickIDAlphabet)))
	for i := 0; i < ClickIDLength; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand does not fail on supported platforms
			panic(err)
		}
		b.WriteByte(clickIDAlphabet[n.Int64()])
	}
	return b.String()
}

// SubID is the structured form of the affiliate sub-id. On the wire it is
// "{source}_CLK-xxxxxx", or just "{source}" when no click id is attached.
type SubID struct {
	Source  string `json:"source"`
	ClickID string `json:"click_id,omitempty"`
}

func (s SubID) String() string {
	if s.ClickID == "" {
		return s.Source
	}
	return s.Source + "_" + s.ClickID
}

func (s SubID) IsZero() bool {
	return s.Source == "" && s.ClickID == ""
}

// ParseSubID splits a wire sub-id on the first "_CLK-". Values without the
// delimiter are treated as a bare source.
func ParseSubID(raw string) SubID {
	raw = strings.TrimSpace(raw)
	idx := strings.Index(raw, SubIDDelimiter)
	if idx < 0 {
		return SubID{Source: raw}
	}
	return SubID{
		Source:  raw[:idx],
		ClickID: ClickIDPrefix + raw[idx+len(SubIDDelimiter):],
	}
}

type TrafficType string

const (
	TrafficPaid    TrafficType = "paid"
	TrafficOrganic TrafficType = "organic"
)

// ParseTrafficType defaults anything unrecognised to paid.
func ParseTrafficType(raw string) TrafficType {
	if TrafficType(strings.ToLower(strings.TrimSpace(raw))) == TrafficOrganic {
		return TrafficOrganic
	}
	return TrafficPaid
}

type ClickEvent struct {
	ClickID     string      `json:"click_id"`
	Source      string      `json:"source"`
	Company     string      `json:"company"`
	Traffic     TrafficType `json:"traffic"`
	Destination string      `json:"destination_url"`
}

func (c ClickEvent) SubID() SubID {
	return SubID{Source: c.Source, ClickID: c.ClickID}
}
