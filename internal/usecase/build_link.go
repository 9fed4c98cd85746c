package usecase

import (
	"net/url"
	"strings"

	"github.com/richdadretirement/leadrelay/internal/entity"
)

const DefaultTrackPath = "/track"

type BuildLinkInput struct {
	Destination string `json:"destination" validate:"required,http_url,max=2048"`
	Source      string `json:"source" validate:"required,max=100"`
	Company     string `json:"company" validate:"max=200"`
	Traffic     string `json:"traffic"`
}

type BuildLinkOutput struct {
	TrackingURL string `json:"tracking_url"`
	Destination string `json:"destination"`
	ClickID     string `json:"click_id"`
	SubID       string `json:"sub_id"`
}

// BuildLinkUseCase mints a click id and builds the tracking URL for one
// rendered link instance.
type BuildLinkUseCase struct {
	TrackPath      string
	DefaultCompany string
	NewClickID     func() string
}

func NewBuildLinkUseCase(trackPath, defaultCompany string) *BuildLinkUseCase {
	if trackPath == "" {
		trackPath = DefaultTrackPath
	}
	if defaultCompany == "" {
		defaultCompany = entity.DefaultCompany
	}
	return &BuildLinkUseCase{
		TrackPath:      trackPath,
		DefaultCompany: defaultCompany,
		NewClickID:     entity.NewClickID,
	}
}

func (uc *BuildLinkUseCase) Execute(input BuildLinkInput) (*BuildLinkOutput, error) {
	input.Destination = strings.TrimSpace(input.Destination)
	input.Source = strings.TrimSpace(input.Source)
	if err := validateStruct(input); err != nil {
		return nil, err
	}

	company := strings.TrimSpace(input.Company)
	if company == "" {
		company = uc.DefaultCompany
	}
	traffic := entity.ParseTrafficType(input.Traffic)

	clickID := uc.NewClickID()
	subID := entity.SubID{Source: input.Source, ClickID: clickID}.String()

	destination, err := WithSubID(input.Destination, subID)
	if err != nil {
		return nil, &DomainError{Code: "VALIDATION_ERROR", Message: "destination: must be an absolute http(s) URL"}
	}

	// Parameter order is kept stable for readability of logged links.
	var b strings.Builder
	b.WriteString(uc.TrackPath)
	b.WriteString("?url=")
	b.WriteString(url.QueryEscape(destination))
	b.WriteString("&source=")
	b.WriteString(url.QueryEscape(input.Source))
	b.WriteString("&company=")
	b.WriteString(url.QueryEscape(company))
	b.WriteString("&traffic=")
	b.WriteString(string(traffic))
	b.WriteString("&click_id=")
	b.WriteString(url.QueryEscape(clickID))

	return &BuildLinkOutput{
		TrackingURL: b.String(),
		Destination: destination,
		ClickID:     clickID,
		SubID:       subID,
	}, nil
}

// WithSubID sets the sub_id query parameter on rawURL, replacing any existing
// one and keeping the other parameters and the fragment as they were.
func WithSubID(rawURL, subID string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}

	var kept []string
	if u.RawQuery != "" {
		for _, part := range strings.Split(u.RawQuery, "&") {
			key := part
			if i := strings.IndexByte(part, '='); i >= 0 {
				key = part[:i]
			}
			if k, err := url.QueryUnescape(key); err == nil && k == "sub_id" {
				continue
			}
			if part != "" {
				kept = append(kept, part)
			}
		}
	}
	kept = append(kept, "sub_id="+url.QueryEscape(subID))
	u.RawQuery = strings.Join(kept, "&")
	u.ForceQuery = false

	return u.String(), nil
}
