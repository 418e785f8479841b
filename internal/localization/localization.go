// Package localization provides the interface labels of the front-ends in
// the viewer's display language. Translations are JSON files named after
// the language code (e.g. "en.json") holding a flat key/value object.
package localization

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"path"
	"strings"
	"sync"

	"linguachat/client/internal/livechannel"
	"linguachat/client/internal/models"
)

// FallbackLanguage is used for keys missing in the requested language and
// for the original-text display mode.
const FallbackLanguage = "en"

// Label keys.
const (
	StatusIdle         = "status.idle"
	StatusConnecting   = "status.connecting"
	StatusOpen         = "status.open"
	StatusDisconnected = "status.disconnected"
	StatusLoading      = "status.loading"
	ErrorSendFailed    = "error.send_failed"
	ErrorNotOpen       = "error.not_open"
	ErrorEmptyMessage  = "error.empty_message"
	ComposerHint       = "composer.placeholder"
	LanguageLabel      = "banner.language"
	UnknownSender      = "sender.unknown"
)

// Localizer manages the translations for the application.
type Localizer struct {
	translations map[string]map[string]string
	mu           sync.RWMutex
}

// NewLocalizer loads every *.json file at the root of fsys.
func NewLocalizer(fsys fs.FS) (*Localizer, error) {
	l := &Localizer{
		translations: make(map[string]map[string]string),
	}

	files, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to read localization directory: %w", err)
	}

	for _, file := range files {
		if file.IsDir() || path.Ext(file.Name()) != ".json" {
			continue
		}

		lang := strings.TrimSuffix(file.Name(), ".json")
		data, err := fs.ReadFile(fsys, file.Name())
		if err != nil {
			return nil, fmt.Errorf("failed to read localization file %s: %w", file.Name(), err)
		}

		var translations map[string]string
		if err := json.Unmarshal(data, &translations); err != nil {
			return nil, fmt.Errorf("failed to parse localization file %s: %w", file.Name(), err)
		}

		l.translations[lang] = translations
	}

	return l, nil
}

// Languages returns the language codes that have a translation file.
func (l *Localizer) Languages() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	langs := make([]string, 0, len(l.translations))
	for lang := range l.translations {
		langs = append(langs, lang)
	}
	return langs
}

// GetString returns the localized string for a given key and language.
// If the language or the key is not found, it returns the key itself as a fallback.
func (l *Localizer) GetString(lang, key string) string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if langTranslations, ok := l.translations[lang]; ok {
		if value, ok := langTranslations[key]; ok {
			return value
		}
	}

	if lang != FallbackLanguage {
		if fallback, ok := l.translations[FallbackLanguage]; ok {
			if value, ok := fallback[key]; ok {
				return value
			}
		}
	}

	return key
}

// Label returns key in the display language. The original-text mode uses
// the fallback language.
func (l *Localizer) Label(lang models.Language, key string) string {
	if !lang.Translates() {
		return l.GetString(FallbackLanguage, key)
	}
	return l.GetString(string(lang), key)
}

// ConnectionKey returns the status label key of a live channel state.
func ConnectionKey(state livechannel.State) string {
	switch state {
	case livechannel.StateConnecting:
		return StatusConnecting
	case livechannel.StateOpen:
		return StatusOpen
	case livechannel.StateClosed:
		return StatusDisconnected
	default:
		return StatusIdle
	}
}
