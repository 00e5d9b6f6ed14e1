// Package i18n localizes API messages, upcoming labels and calendar summaries.
package i18n

import (
	"embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	goi18n "github.com/nicksnyder/go-i18n/v2/i18n"
	"github.com/tartampluch/rappel-anniv/internal/config"
	"golang.org/x/text/language"
)

//go:embed locales/*.json
var localeFS embed.FS

// Translator resolves message keys for the languages shipped in locales/.
// It is safe for concurrent use once built.
type Translator struct {
	bundle    *goi18n.Bundle
	matcher   language.Matcher
	languages []string
	fallback  string
}

// New loads every embedded locale. defaultLang is used when a request does
// not name a supported language.
func New(defaultLang string) (*Translator, error) {
	bundle := goi18n.NewBundle(language.English)
	bundle.RegisterUnmarshalFunc("json", json.Unmarshal)

	entries, err := localeFS.ReadDir("locales")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", config.ErrLocalesAccess, err)
	}

	var detectedLangs []string

	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasPrefix(name, "active.") || !strings.HasSuffix(name, ".json") {
			slog.Debug(config.MsgLocaleSkip,
				config.LogKeyComponent, config.CompI18n,
				config.LogKeyFile, name,
			)
			continue
		}

		langCode := strings.TrimSuffix(strings.TrimPrefix(name, "active."), ".json")
		if langCode == "" {
			slog.Warn(config.MsgLocaleBadName,
				config.LogKeyComponent, config.CompI18n,
				config.LogKeyFile, name,
			)
			continue
		}

		if _, err := bundle.LoadMessageFileFS(localeFS, "locales/"+name); err != nil {
			return nil, fmt.Errorf("%s %s: %w", config.ErrLocaleLoad, name, err)
		}
		slog.Debug(config.MsgLocaleLoaded,
			config.LogKeyComponent, config.CompI18n,
			config.LogKeyLang, langCode,
			config.LogKeyFile, name,
		)
		detectedLangs = append(detectedLangs, langCode)
	}

	fallback := config.DefaultLanguage
	if slices.Contains(detectedLangs, defaultLang) {
		fallback = defaultLang
	}

	// The matcher answers with its first tag when nothing fits, so the
	// fallback goes first.
	ordered := []string{fallback}
	for _, code := range detectedLangs {
		if code != fallback {
			ordered = append(ordered, code)
		}
	}
	tags := make([]language.Tag, len(ordered))
	for i, code := range ordered {
		tags[i] = language.Make(code)
	}

	return &Translator{
		bundle:    bundle,
		matcher:   language.NewMatcher(tags),
		languages: ordered,
		fallback:  fallback,
	}, nil
}

// Languages returns the codes of the loaded locales, fallback first.
func (t *Translator) Languages() []string {
	return append([]string(nil), t.languages...)
}

// Match picks the best supported language for an Accept-Language header or
// a bare language code.
func (t *Translator) Match(preference string) string {
	if preference == "" {
		return t.fallback
	}
	tags, _, err := language.ParseAcceptLanguage(preference)
	if err != nil || len(tags) == 0 {
		return t.fallback
	}
	_, index, confidence := t.matcher.Match(tags...)
	if confidence == language.No || index < 0 || index >= len(t.languages) {
		return t.fallback
	}
	return t.languages[index]
}

// Msg translates key into lang. Unknown keys are returned unchanged.
func (t *Translator) Msg(lang, key string) string {
	return t.localize(lang, &goi18n.LocalizeConfig{MessageID: key})
}

// MsgWith translates a key whose message is a template.
func (t *Translator) MsgWith(lang, key string, data map[string]any) string {
	return t.localize(lang, &goi18n.LocalizeConfig{MessageID: key, TemplateData: data})
}

func (t *Translator) localize(lang string, lc *goi18n.LocalizeConfig) string {
	localizer := goi18n.NewLocalizer(t.bundle, lang, t.fallback)
	msg, err := localizer.Localize(lc)
	if err != nil {
		slog.Debug(config.MsgTransMissing,
			config.LogKeyComponent, config.CompI18n,
			config.LogKeyKey, lc.MessageID,
			config.LogKeyError, err,
		)
		return lc.MessageID
	}
	return msg
}

// DaysLabel renders how far away an occurrence is ("today", "tomorrow",
// "in 5 days").
func (t *Translator) DaysLabel(lang string, days int) string {
	switch days {
	case 0:
		return t.Msg(lang, config.TKeyLabelToday)
	case 1:
		return t.Msg(lang, config.TKeyLabelTomorrow)
	default:
		return t.localize(lang, &goi18n.LocalizeConfig{
			MessageID:    config.TKeyLabelInDays,
			PluralCount:  days,
			TemplateData: map[string]any{"Count": days},
		})
	}
}

// SummaryFormatter returns a closure that localizes calendar event summaries.
func (t *Translator) SummaryFormatter(lang string) func(name string, age int, yearKnown bool) string {
	return func(name string, age int, yearKnown bool) string {
		data := map[string]any{"Name": name, "Age": age}
		switch {
		case !yearKnown:
			return t.MsgWith(lang, config.TKeyEvtSummary, data)
		case age == 0:
			return t.MsgWith(lang, config.TKeyEvtSummaryBirth, data)
		default:
			return t.MsgWith(lang, config.TKeyEvtSummaryAge, data)
		}
	}
}
