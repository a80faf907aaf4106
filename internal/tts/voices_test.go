package tts

import "testing"

func TestVoiceMap_Resolve(t *testing.T) {
	m := DefaultVoiceMap()

	tests := []struct {
		language string
		want     string
	}{
		{"Spanish", "es-ES"},
		{"spanish", "es-ES"},
		{" French ", "fr-FR"},
		{"de", "de-DE"},
		{"pt-BR", "pt-BR"},
		{"pt_BR", "pt-BR"},
		{"es-MX", "es-ES"},
		{"Klingon", DefaultVoice.LanguageCode},
		{"", DefaultVoice.LanguageCode},
	}

	for _, tt := range tests {
		t.Run(tt.language, func(t *testing.T) {
			got := m.Resolve(tt.language)
			if got.LanguageCode != tt.want {
				t.Errorf("Resolve(%q) = %s, want %s", tt.language, got.LanguageCode, tt.want)
			}
		})
	}
}

func TestNewVoiceMap_Fallback(t *testing.T) {
	m := NewVoiceMap(nil, VoiceConfig{})
	if m.Fallback() != DefaultVoice {
		t.Errorf("expected DefaultVoice fallback, got %+v", m.Fallback())
	}

	custom := VoiceConfig{LanguageCode: "en-GB", Name: "en-GB-Standard-A"}
	m = NewVoiceMap(map[string]VoiceConfig{"EN": custom}, custom)
	if got := m.Resolve("en-AU"); got != custom {
		t.Errorf("Resolve(en-AU) = %+v, want %+v", got, custom)
	}
}
