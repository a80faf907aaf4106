package tts

import "strings"

// DefaultVoice is used for languages with no mapping.
var DefaultVoice = VoiceConfig{LanguageCode: "en-US", Name: "en-US-Standard-C"}

// VoiceMap maps display language names or tags to voices.
type VoiceMap struct {
	voices   map[string]VoiceConfig
	fallback VoiceConfig
}

// NewVoiceMap creates a voice map. Keys are matched case-insensitively. A
// zero fallback selects DefaultVoice.
func NewVoiceMap(voices map[string]VoiceConfig, fallback VoiceConfig) *VoiceMap {
	if fallback == (VoiceConfig{}) {
		fallback = DefaultVoice
	}
	m := &VoiceMap{voices: make(map[string]VoiceConfig, len(voices)), fallback: fallback}
	for k, v := range voices {
		m.voices[normalizeLanguage(k)] = v
	}
	return m
}

// DefaultVoiceMap returns the built-in language table.
func DefaultVoiceMap() *VoiceMap {
	return NewVoiceMap(map[string]VoiceConfig{
		"english":    DefaultVoice,
		"en":         DefaultVoice,
		"spanish":    {LanguageCode: "es-ES", Name: "es-ES-Standard-A"},
		"es":         {LanguageCode: "es-ES", Name: "es-ES-Standard-A"},
		"french":     {LanguageCode: "fr-FR", Name: "fr-FR-Standard-A"},
		"fr":         {LanguageCode: "fr-FR", Name: "fr-FR-Standard-A"},
		"german":     {LanguageCode: "de-DE", Name: "de-DE-Standard-A"},
		"de":         {LanguageCode: "de-DE", Name: "de-DE-Standard-A"},
		"italian":    {LanguageCode: "it-IT", Name: "it-IT-Standard-A"},
		"it":         {LanguageCode: "it-IT", Name: "it-IT-Standard-A"},
		"portuguese": {LanguageCode: "pt-PT", Name: "pt-PT-Standard-A"},
		"pt":         {LanguageCode: "pt-PT", Name: "pt-PT-Standard-A"},
		"pt-br":      {LanguageCode: "pt-BR", Name: "pt-BR-Standard-A"},
		"japanese":   {LanguageCode: "ja-JP", Name: "ja-JP-Standard-A"},
		"ja":         {LanguageCode: "ja-JP", Name: "ja-JP-Standard-A"},
	}, DefaultVoice)
}

// Resolve returns the voice for language. Tags with a region fall back to
// their base language before the default voice.
func (m *VoiceMap) Resolve(language string) VoiceConfig {
	key := normalizeLanguage(language)
	if key == "" {
		return m.fallback
	}
	if v, ok := m.voices[key]; ok {
		return v
	}
	if base, _, found := strings.Cut(key, "-"); found {
		if v, ok := m.voices[base]; ok {
			return v
		}
	}
	return m.fallback
}

// Fallback returns the voice used for unmapped languages.
func (m *VoiceMap) Fallback() VoiceConfig {
	return m.fallback
}

func normalizeLanguage(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "_", "-")
}
