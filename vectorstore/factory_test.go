package vectorstore

import "testing"

func TestParseBackend(t *testing.T) {
	if _, err := ParseBackend("PGVECTOR"); err != nil {
		t.Errorf("ParseBackend(PGVECTOR) error = %v", err)
	}
	if _, err := ParseBackend("CHROMA"); err == nil {
		t.Error("expected error for unknown backend")
	}
}

func TestParseDistanceMethod(t *testing.T) {
	for _, ok := range []string{"cosine", "dot"} {
		if _, err := ParseDistanceMethod(ok); err != nil {
			t.Errorf("ParseDistanceMethod(%s) error = %v", ok, err)
		}
	}
	if _, err := ParseDistanceMethod("euclidean"); err == nil {
		t.Error("expected error for unknown distance method")
	}
}

func TestParseLanguage(t *testing.T) {
	tests := []struct {
		in   string
		want Language
	}{
		{"en", LanguageEnglish},
		{"english", LanguageEnglish},
		{"ar", LanguageArabic},
		{"de", LanguageGerman},
		{"fr", LanguageFrench},
		{"xx", LanguageEnglish},
		{"", LanguageEnglish},
	}
	for _, tt := range tests {
		if got := ParseLanguage(tt.in); got != tt.want {
			t.Errorf("ParseLanguage(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}
