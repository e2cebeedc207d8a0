package scraper

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

// Listing types for SiteDescriptor.ListingType.
const (
	ListingHTML = "html"
	ListingFeed = "feed"
)

// SiteDescriptor identifies one scrape target and how to extract articles
// from it. Descriptors are supplied by the caller and never mutated.
type SiteDescriptor struct {
	HeadlineURL     string           `json:"headlineUrl"`
	URLHTMLTag      string           `json:"urlHtmlTag,omitempty"`
	HeadlineCount   int              `json:"headlineCount,omitempty"` // 0 = take all discovered
	Channel         string           `json:"channel,omitempty"`
	ListingType     string           `json:"listingType,omitempty"` // "html" (default) or "feed"
	ContentHTMLTags ContentSelectors `json:"contentHtmlTags"`
	WebhookURL      string           `json:"webhookUrl,omitempty"`

	// Extra holds JSON keys this package does not know about. They are kept
	// so results can echo the descriptor back exactly as it was sent.
	Extra map[string]json.RawMessage `json:"-"`
}

// ContentSelectors holds one strategy chain per logical article field.
type ContentSelectors struct {
	Title       Strategies `json:"title"`
	PublishDate Strategies `json:"publishDate"`
	Author      Strategies `json:"author"`
	Publisher   Strategies `json:"publisher"`
	Image       Strategies `json:"image"`
	ImageAlt    Strategies `json:"imageAlt"`
	NewsContent Strategies `json:"newsContent"`
}

// IsFeed reports whether the listing page is an RSS/Atom feed.
func (d *SiteDescriptor) IsFeed() bool {
	return strings.EqualFold(d.ListingType, ListingFeed)
}

// Origin returns scheme://host of the listing URL, used to resolve relative
// image URLs.
func (d *SiteDescriptor) Origin() string {
	u, err := url.Parse(d.HeadlineURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}

// Validate checks that the descriptor carries enough to be scraped.
func (d *SiteDescriptor) Validate() error {
	u, err := url.Parse(d.HeadlineURL)
	if err != nil {
		return fmt.Errorf("invalid headlineUrl: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("headlineUrl must use http or https scheme")
	}
	if d.HeadlineCount < 0 {
		return fmt.Errorf("headlineCount must not be negative")
	}
	switch strings.ToLower(d.ListingType) {
	case "", ListingHTML:
		if d.URLHTMLTag == "" {
			return fmt.Errorf("urlHtmlTag is required for html listings")
		}
	case ListingFeed:
	default:
		return fmt.Errorf("unknown listingType %q", d.ListingType)
	}
	return nil
}

// descriptorFields is an alias without methods so json can encode and decode
// the known fields without recursing into SiteDescriptor's own methods.
type descriptorFields SiteDescriptor

// knownDescriptorKeys lists the JSON keys owned by SiteDescriptor.
var knownDescriptorKeys = map[string]bool{
	"headlineUrl":     true,
	"urlHtmlTag":      true,
	"headlineCount":   true,
	"channel":         true,
	"listingType":     true,
	"contentHtmlTags": true,
	"webhookUrl":      true,
}

// UnmarshalJSON decodes the known fields and stashes everything else in
// Extra.
func (d *SiteDescriptor) UnmarshalJSON(data []byte) error {
	var fields descriptorFields
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}

	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}
	for key, raw := range all {
		if knownDescriptorKeys[key] {
			continue
		}
		if fields.Extra == nil {
			fields.Extra = make(map[string]json.RawMessage)
		}
		fields.Extra[key] = raw
	}

	*d = SiteDescriptor(fields)
	return nil
}

// MarshalJSON encodes the known fields followed by any preserved extra keys.
func (d SiteDescriptor) MarshalJSON() ([]byte, error) {
	m, err := d.Fields()
	if err != nil {
		return nil, err
	}
	return json.Marshal(m)
}

// Fields returns the descriptor as a JSON object map, extra keys included.
// Known keys win over extra keys with the same name.
func (d SiteDescriptor) Fields() (map[string]json.RawMessage, error) {
	data, err := json.Marshal(descriptorFields(d))
	if err != nil {
		return nil, err
	}

	m := make(map[string]json.RawMessage, len(knownDescriptorKeys)+len(d.Extra))
	for key, raw := range d.Extra {
		m[key] = raw
	}

	var known map[string]json.RawMessage
	if err := json.Unmarshal(data, &known); err != nil {
		return nil, err
	}
	for key, raw := range known {
		m[key] = raw
	}

	return m, nil
}

// Extraction modes for SelectorSpec.Mode.
const (
	ModeText       = "text"
	ModeAttribute  = "attribute"
	ModeSrcsetLast = "srcset-last"
)

// SelectorSpec is one strategy in a fallback chain: a CSS selector and how
// to turn the matched element into a string.
type SelectorSpec struct {
	Selector string `json:"selector"`
	Mode     string `json:"mode,omitempty"` // defaults to "text"
	Attr     string `json:"attr,omitempty"` // attribute name for "attribute" and "srcset-last"
}

// Text returns a text-mode strategy.
func Text(selector string) SelectorSpec {
	return SelectorSpec{Selector: selector, Mode: ModeText}
}

// Attribute returns an attribute-mode strategy.
func Attribute(selector, attr string) SelectorSpec {
	return SelectorSpec{Selector: selector, Mode: ModeAttribute, Attr: attr}
}

// SrcsetLast returns a strategy that picks the last candidate of a srcset.
func SrcsetLast(selector string) SelectorSpec {
	return SelectorSpec{Selector: selector, Mode: ModeSrcsetLast, Attr: "srcset"}
}

// EffectiveMode returns the mode with the default applied.
func (s SelectorSpec) EffectiveMode() string {
	if s.Mode == "" {
		return ModeText
	}
	return s.Mode
}

// Strategies is an ordered fallback chain for one field. In JSON it is
// either a bare selector string, expanded to the field's default chain, or
// an explicit array of SelectorSpec objects.
type Strategies struct {
	Selector string
	Specs    []SelectorSpec
}

// Selector returns a Strategies configured with a bare selector.
func Selector(selector string) Strategies {
	return Strategies{Selector: selector}
}

// Chain returns a Strategies configured with an explicit chain.
func Chain(specs ...SelectorSpec) Strategies {
	return Strategies{Specs: specs}
}

// IsZero reports whether nothing is configured.
func (s Strategies) IsZero() bool {
	return s.Selector == "" && len(s.Specs) == 0
}

// Expand returns the chain to evaluate. An explicit chain is returned as
// is; a bare selector is expanded by defaults.
func (s Strategies) Expand(defaults func(selector string) []SelectorSpec) []SelectorSpec {
	if len(s.Specs) > 0 {
		return s.Specs
	}
	if s.Selector == "" {
		return nil
	}
	return defaults(s.Selector)
}

// MarshalJSON encodes the form the strategies were configured in.
func (s Strategies) MarshalJSON() ([]byte, error) {
	if len(s.Specs) > 0 {
		return json.Marshal(s.Specs)
	}
	if s.Selector != "" {
		return json.Marshal(s.Selector)
	}
	return []byte("null"), nil
}

// UnmarshalJSON accepts a string, an array of strings or SelectorSpec
// objects, a single SelectorSpec object, or null.
func (s *Strategies) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	*s = Strategies{}

	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}

	switch data[0] {
	case '"':
		return json.Unmarshal(data, &s.Selector)
	case '{':
		var spec SelectorSpec
		if err := json.Unmarshal(data, &spec); err != nil {
			return err
		}
		s.Specs = []SelectorSpec{spec}
		return nil
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(data, &items); err != nil {
			return err
		}
		for _, item := range items {
			var spec SelectorSpec
			if len(item) > 0 && item[0] == '"' {
				if err := json.Unmarshal(item, &spec.Selector); err != nil {
					return err
				}
			} else if err := json.Unmarshal(item, &spec); err != nil {
				return err
			}
			if spec.Selector != "" {
				s.Specs = append(s.Specs, spec)
			}
		}
		return nil
	}

	return fmt.Errorf("selector strategies must be a string or an array, got %s", string(data))
}

// Default chain builders, one per field.

func textChain(selector string) []SelectorSpec {
	return []SelectorSpec{Text(selector)}
}

func dateChain(selector string) []SelectorSpec {
	return []SelectorSpec{Attribute(selector, "datetime"), Text(selector)}
}

func imageChain(selector string) []SelectorSpec {
	return []SelectorSpec{
		Attribute(selector, "src"),
		SrcsetLast(selector),
		Attribute(selector, "data-src"),
	}
}

func altChain(selector string) []SelectorSpec {
	return []SelectorSpec{Attribute(selector, "alt")}
}

// TitleChain returns the headline strategies.
func (c ContentSelectors) TitleChain() []SelectorSpec { return c.Title.Expand(textChain) }

// PublishDateChain returns the publish date strategies.
func (c ContentSelectors) PublishDateChain() []SelectorSpec { return c.PublishDate.Expand(dateChain) }

// AuthorChain returns the author strategies.
func (c ContentSelectors) AuthorChain() []SelectorSpec { return c.Author.Expand(textChain) }

// PublisherChain returns the publisher strategies.
func (c ContentSelectors) PublisherChain() []SelectorSpec { return c.Publisher.Expand(textChain) }

// ImageChain returns the image URL strategies.
func (c ContentSelectors) ImageChain() []SelectorSpec { return c.Image.Expand(imageChain) }

// ImageAltChain returns the image alt text strategies.
func (c ContentSelectors) ImageAltChain() []SelectorSpec { return c.ImageAlt.Expand(altChain) }

// ContentChain returns the body content strategies.
func (c ContentSelectors) ContentChain() []SelectorSpec { return c.NewsContent.Expand(textChain) }
