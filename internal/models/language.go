package models

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// Language is a display language code.
type Language string

// LanguageOriginal is the sentinel for "show the original text".
const LanguageOriginal Language = "original"

// ErrUnsupportedLanguage is returned for codes outside SupportedLanguages.
var ErrUnsupportedLanguage = errors.New("unsupported display language")

// SupportedLanguages lists the display languages offered to the viewer.
var SupportedLanguages = []Language{
	LanguageOriginal, "en", "es", "fr", "de", "da", "it", "ru", "zh", "ar", "ja",
}

// ParseLanguage normalises and validates a language code. The empty string
// maps to LanguageOriginal.
func ParseLanguage(code string) (Language, error) {
	code = strings.ToLower(strings.TrimSpace(code))
	if code == "" {
		return LanguageOriginal, nil
	}
	lang := Language(code)
	if !slices.Contains(SupportedLanguages, lang) {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedLanguage, code)
	}
	return lang, nil
}

// Translates reports whether messages need translated content in this
// language.
func (l Language) Translates() bool {
	return l != "" && l != LanguageOriginal
}
