// Package i18n localizes user-facing labels: leave types, summary captions
// and the keywords that mark substitute holidays.
package i18n

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"

	"github.com/warp/hours-ledger/worklog"
)

//go:embed locales/*.json
var localeFS embed.FS

const substituteKeywordID = "holiday.substitute_keyword"

type ctxKey struct{}

// Translator holds the parsed locale bundle.
type Translator struct {
	bundle        *i18n.Bundle
	defaultLocale string
	tags          []language.Tag
	matcher       language.Matcher
}

// New loads all embedded locale files. defaultLocale is used when a request
// carries no usable locale; it falls back to English when empty.
func New(defaultLocale string) (*Translator, error) {
	if defaultLocale == "" {
		defaultLocale = "en"
	}
	def, err := language.Parse(defaultLocale)
	if err != nil {
		return nil, fmt.Errorf("i18n: default locale %q: %w", defaultLocale, err)
	}

	bundle := i18n.NewBundle(language.English)
	bundle.RegisterUnmarshalFunc("json", json.Unmarshal)

	entries, err := localeFS.ReadDir("locales")
	if err != nil {
		return nil, fmt.Errorf("i18n: read locales dir: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		data, err := localeFS.ReadFile("locales/" + e.Name())
		if err != nil {
			return nil, fmt.Errorf("i18n: read %s: %w", e.Name(), err)
		}
		if _, err := bundle.ParseMessageFileBytes(data, e.Name()); err != nil {
			return nil, fmt.Errorf("i18n: parse %s: %w", e.Name(), err)
		}
	}

	// The default locale goes first so the matcher falls back to it.
	tags := []language.Tag{def}
	for _, t := range bundle.LanguageTags() {
		if t != def {
			tags = append(tags, t)
		}
	}

	return &Translator{
		bundle:        bundle,
		defaultLocale: def.String(),
		tags:          tags,
		matcher:       language.NewMatcher(tags),
	}, nil
}

// WithLocale returns a new context carrying the given locale string (e.g. "ko", "en").
func WithLocale(ctx context.Context, locale string) context.Context {
	return context.WithValue(ctx, ctxKey{}, locale)
}

// Locale returns the locale carried by ctx, or the default.
func (t *Translator) Locale(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKey{}).(string); ok && v != "" {
		return v
	}
	return t.defaultLocale
}

// Match picks the best supported locale for an Accept-Language header.
func (t *Translator) Match(acceptLanguage string) string {
	if acceptLanguage == "" {
		return t.defaultLocale
	}
	desired, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(desired) == 0 {
		return t.defaultLocale
	}
	_, idx, conf := t.matcher.Match(desired...)
	if conf == language.No {
		return t.defaultLocale
	}
	return t.tags[idx].String()
}

// T translates a message ID using the locale from the context. Unknown IDs
// are returned unchanged.
func (t *Translator) T(ctx context.Context, messageID string, templateData ...map[string]any) string {
	l := i18n.NewLocalizer(t.bundle, t.Locale(ctx), t.defaultLocale)

	cfg := &i18n.LocalizeConfig{MessageID: messageID}
	if len(templateData) > 0 && templateData[0] != nil {
		cfg.TemplateData = templateData[0]
	}

	msg, err := l.Localize(cfg)
	if err != nil {
		return messageID
	}
	return msg
}

// LeaveLabel returns the display name of a leave type.
func (t *Translator) LeaveLabel(ctx context.Context, lt worklog.LeaveType) string {
	return t.T(ctx, "leave."+string(lt.Normalize()))
}

// SubstituteKeywords returns the substitute-holiday keyword of every loaded
// locale, for holiday.Options.SubstituteKeywords.
func (t *Translator) SubstituteKeywords() []string {
	seen := make(map[string]bool)
	var out []string
	for _, tag := range t.bundle.LanguageTags() {
		l := i18n.NewLocalizer(t.bundle, tag.String())
		kw, err := l.Localize(&i18n.LocalizeConfig{MessageID: substituteKeywordID})
		if err != nil || kw == "" || seen[kw] {
			continue
		}
		seen[kw] = true
		out = append(out, kw)
	}
	return out
}
