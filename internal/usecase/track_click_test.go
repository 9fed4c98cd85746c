package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/richdadretirement/leadrelay/internal/entity"
)

func newTrackClick(outbox *recordingOutbox, allowed ...string) *TrackClickUseCase {
	uc := NewTrackClickUseCase(outbox, "https://richdadretirement.com/", "", allowed, time.Second)
	uc.Now = fixedClock
	return uc
}

func TestTrackClickRedirectsToDecodedURL(t *testing.T) {
	destinations := []string{
		"https://learn.augustapreciousmetals.com/ira?sub_id=blog_CLK-abc123",
		"https://partner.example.com/offer?aff=rdr&utm_source=x&sub_id=guide_CLK-9f3a2b#apply",
		"http://plain.example.com/",
		"https://partner.example.com/path%20with%20space?q=a%2Bb",
		" https://partner.example.com/offer?sub_id=blog_CLK-abc123\t",
	}

	for _, dest := range destinations {
		outbox := &recordingOutbox{}
		out := newTrackClick(outbox).Execute(context.Background(), TrackClickInput{URL: dest, Source: "blog"})

		assert.Equal(t, dest, out.RedirectURL)
		require.NotNil(t, out.Event)
		assert.Equal(t, dest, out.Event.Destination)
		assert.Len(t, outbox.All(), 1, dest)
	}
}

func TestTrackClickFallsBackOnBadDestination(t *testing.T) {
	cases := map[string]string{
		"missing":      "",
		"relative":     "/ira",
		"javascript":   "javascript:alert(1)",
		"no host":      "https://",
		"unparseable":  "http://[::1",
		"only spaces":  "   ",
		"mailto":       "mailto:someone@example.com",
		"data scheme":  "data:text/html,hi",
		"ftp":          "ftp://files.example.com/a",
		"schemeless":   "example.com/offer",
		"double slash": "//evil.example.com",
	}

	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			outbox := &recordingOutbox{}
			out := newTrackClick(outbox).Execute(context.Background(), TrackClickInput{URL: raw})

			assert.Equal(t, "https://richdadretirement.com/", out.RedirectURL)
			assert.Nil(t, out.Event)
			assert.Empty(t, outbox.All())
		})
	}
}

func TestTrackClickHostAllowlist(t *testing.T) {
	outbox := &recordingOutbox{}
	uc := newTrackClick(outbox, "augustapreciousmetals.com")

	ok := uc.Execute(context.Background(), TrackClickInput{URL: "https://learn.AugustaPreciousMetals.com/ira"})
	assert.Equal(t, "https://learn.AugustaPreciousMetals.com/ira", ok.RedirectURL)

	blocked := uc.Execute(context.Background(), TrackClickInput{URL: "https://augustapreciousmetals.com.evil.example/ira"})
	assert.Equal(t, "https://richdadretirement.com/", blocked.RedirectURL)

	assert.Len(t, outbox.All(), 1)
}

func TestTrackClickBuildsNotification(t *testing.T) {
	outbox := &recordingOutbox{}
	dest := "https://learn.augustapreciousmetals.com/ira?sub_id=blog_CLK-abc123"

	out := newTrackClick(outbox).Execute(context.Background(), TrackClickInput{
		URL:     dest,
		Source:  "blog",
		Traffic: "organic",
		ClickID: "CLK-abc123",
	})

	require.NotNil(t, out.Event)
	assert.Equal(t, entity.DefaultCompany, out.Event.Company)
	assert.Equal(t, entity.TrafficOrganic, out.Event.Traffic)

	sent := outbox.All()
	require.Len(t, sent, 1)
	n := sent[0]
	assert.Equal(t, entity.EventAffiliateClick, n.Type)
	assert.Equal(t, entity.SubID{Source: "blog", ClickID: "CLK-abc123"}, n.SubID)
	assert.Equal(t, fixedNow, n.OccurredAt)
	dv, _ := n.Fields.Get("destination")
	assert.Equal(t, dest, dv)
}

func TestTrackClickTakesClickIDFromDestination(t *testing.T) {
	outbox := &recordingOutbox{}

	out := newTrackClick(outbox).Execute(context.Background(), TrackClickInput{
		URL: "https://a.example.com/?sub_id=quiz_CLK-q1w2e3",
	})

	require.NotNil(t, out.Event)
	assert.Equal(t, "CLK-q1w2e3", out.Event.ClickID)
	assert.Equal(t, "quiz", out.Event.Source)
	assert.Equal(t, entity.TrafficPaid, out.Event.Traffic)
}

func TestTrackClickIgnoresEnqueueFailure(t *testing.T) {
	outbox := &recordingOutbox{err: errors.New("queue full")}
	dest := "https://a.example.com/offer"

	out := newTrackClick(outbox).Execute(context.Background(), TrackClickInput{URL: dest})

	assert.Equal(t, dest, out.RedirectURL)
}

func TestTrackClickRefreshFiresAgain(t *testing.T) {
	outbox := &recordingOutbox{}
	uc := newTrackClick(outbox)
	in := TrackClickInput{URL: "https://a.example.com/offer", ClickID: "CLK-abc123"}

	uc.Execute(context.Background(), in)
	uc.Execute(context.Background(), in)

	assert.Len(t, outbox.All(), 2)
}
