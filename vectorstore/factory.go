package vectorstore

import (
	"fmt"
)

// Backend identifies a vector store implementation.
type Backend string

const (
	BackendPGVector Backend = "PGVECTOR"
)

// ParseBackend validates a configured backend key. Unknown keys fail at
// startup rather than at first use.
func ParseBackend(key string) (Backend, error) {
	switch Backend(key) {
	case BackendPGVector:
		return BackendPGVector, nil
	default:
		return "", fmt.Errorf("unknown vector db backend %q", key)
	}
}

// ParseDistanceMethod validates a configured distance method.
func ParseDistanceMethod(key string) (DistanceMethod, error) {
	switch DistanceMethod(key) {
	case DistanceCosine, DistanceDot:
		return DistanceMethod(key), nil
	default:
		return "", fmt.Errorf("unknown distance method %q", key)
	}
}

// ParseLanguage maps a configured language tag to a tokenizer language.
// Short ISO codes from PRIMARY_LANG are accepted alongside full names;
// anything unrecognised falls back to English.
func ParseLanguage(key string) Language {
	switch key {
	case "en", "english":
		return LanguageEnglish
	case "ar", "arabic":
		return LanguageArabic
	case "de", "german":
		return LanguageGerman
	case "fr", "french":
		return LanguageFrench
	default:
		return LanguageEnglish
	}
}
