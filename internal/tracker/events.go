package tracker

import (
	"context"
	"encoding/json"
	"maps"
)

func with(metadata map[string]any, kv ...any) map[string]any {
	out := make(map[string]any, len(metadata)+len(kv)/2)
	maps.Copy(out, metadata)
	for i := 0; i+1 < len(kv); i += 2 {
		out[kv[i].(string)] = kv[i+1]
	}
	return out
}

// Event is a typed interaction not yet bound to a page. The constructors
// below fix the element and metadata shape of each kind, so every caller
// reports the same fields.
type Event struct {
	Kind     EventKind
	Element  string
	Metadata map[string]any
}

func PageVisit(metadata map[string]any) Event {
	return Event{Kind: KindPageVisit, Metadata: metadata}
}

func ButtonClick(button string, metadata map[string]any) Event {
	return Event{Kind: KindButtonClick, Element: button, Metadata: metadata}
}

func FormSubmission(form string, metadata map[string]any) Event {
	return Event{Kind: KindFormSubmission, Element: form, Metadata: metadata}
}

func LinkClick(link, href string) Event {
	return Event{Kind: KindLinkClick, Element: link, Metadata: with(nil, "href", href)}
}

func ScrollDepth(depth int) Event {
	return Event{Kind: KindScrollDepth, Metadata: with(nil, "scrollDepth", depth)}
}

func TimeSpent(seconds int) Event {
	return Event{Kind: KindTimeSpent, Metadata: with(nil, "timeSpent", seconds)}
}

func ResumeDownload(metadata map[string]any) Event {
	return Event{Kind: KindResumeDownload, Element: "resume", Metadata: metadata}
}

func ProjectView(project string) Event {
	return Event{Kind: KindProjectView, Element: project, Metadata: with(nil, "projectName", project)}
}

func SocialMediaClick(platform, url string) Event {
	return Event{Kind: KindSocialClick, Element: platform, Metadata: with(nil, "platform", platform, "targetUrl", url)}
}

func SkillView(skill string) Event {
	return Event{Kind: KindSkillView, Element: skill, Metadata: with(nil, "skillName", skill)}
}

// ContactFormInteraction describes a contact form step such as focus, submit
// or error. action overrides any "action" key in metadata.
func ContactFormInteraction(action string, metadata map[string]any) Event {
	return Event{Kind: KindContactForm, Element: "contact_form", Metadata: with(metadata, "action", action)}
}

// TrackEvent sends e as an interaction on page.
func (c *Client) TrackEvent(ctx context.Context, page string, e Event) (json.RawMessage, error) {
	return c.Track(ctx, e.Kind, page, e.Element, e.Metadata)
}

// TrackPageVisit records that page was opened.
func (c *Client) TrackPageVisit(ctx context.Context, page string, metadata map[string]any) (json.RawMessage, error) {
	return c.TrackEvent(ctx, page, PageVisit(metadata))
}

// TrackButtonClick records a click on the named button.
func (c *Client) TrackButtonClick(ctx context.Context, page, button string, metadata map[string]any) (json.RawMessage, error) {
	return c.TrackEvent(ctx, page, ButtonClick(button, metadata))
}

// TrackFormSubmission records a form submit.
func (c *Client) TrackFormSubmission(ctx context.Context, page, form string, metadata map[string]any) (json.RawMessage, error) {
	return c.TrackEvent(ctx, page, FormSubmission(form, metadata))
}

// TrackLinkClick records a followed link.
func (c *Client) TrackLinkClick(ctx context.Context, page, link, href string) (json.RawMessage, error) {
	return c.TrackEvent(ctx, page, LinkClick(link, href))
}

// TrackScrollDepth records that the visitor reached depth percent of page.
func (c *Client) TrackScrollDepth(ctx context.Context, page string, depth int) (json.RawMessage, error) {
	return c.TrackEvent(ctx, page, ScrollDepth(depth))
}

// TrackTimeSpent records the number of seconds the visitor stayed on page.
func (c *Client) TrackTimeSpent(ctx context.Context, page string, seconds int) (json.RawMessage, error) {
	return c.TrackEvent(ctx, page, TimeSpent(seconds))
}

// TrackResumeDownload records a resume download.
func (c *Client) TrackResumeDownload(ctx context.Context, page string, metadata map[string]any) (json.RawMessage, error) {
	return c.TrackEvent(ctx, page, ResumeDownload(metadata))
}

// TrackProjectView records that a project card was opened.
func (c *Client) TrackProjectView(ctx context.Context, page, project string) (json.RawMessage, error) {
	return c.TrackEvent(ctx, page, ProjectView(project))
}

// TrackSocialMediaClick records a click through to a social profile.
func (c *Client) TrackSocialMediaClick(ctx context.Context, page, platform, url string) (json.RawMessage, error) {
	return c.TrackEvent(ctx, page, SocialMediaClick(platform, url))
}

// TrackSkillView records that a skill was inspected.
func (c *Client) TrackSkillView(ctx context.Context, page, skill string) (json.RawMessage, error) {
	return c.TrackEvent(ctx, page, SkillView(skill))
}

// TrackContactFormInteraction records a contact form step.
func (c *Client) TrackContactFormInteraction(ctx context.Context, page, action string, metadata map[string]any) (json.RawMessage, error) {
	return c.TrackEvent(ctx, page, ContactFormInteraction(action, metadata))
}
