package config

import (
	"strings"
	"testing"
)

func TestValidatorRequireNonEmpty(t *testing.T) {
	tests := []struct {
		name      string
		value     string
		wantError bool
	}{
		{
			name:      "non-empty value",
			value:     "valid",
			wantError: false,
		},
		{
			name:      "empty value",
			value:     "",
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewValidator()
			v.RequireNonEmpty("test_field", tt.value)
			hasError := v.HasErrors()
			if hasError != tt.wantError {
				t.Errorf("HasErrors() = %v, want %v", hasError, tt.wantError)
			}
		})
	}
}

func TestValidatorRequirePositive(t *testing.T) {
	tests := []struct {
		name      string
		value     int
		wantError bool
	}{
		{
			name:      "positive value",
			value:     10,
			wantError: false,
		},
		{
			name:      "zero value",
			value:     0,
			wantError: true,
		},
		{
			name:      "negative value",
			value:     -5,
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewValidator()
			v.RequirePositive("test_field", tt.value)
			if v.HasErrors() != tt.wantError {
				t.Errorf("HasErrors() = %v, want %v", v.HasErrors(), tt.wantError)
			}
		})
	}
}

func TestValidatorValidateFloatRange(t *testing.T) {
	tests := []struct {
		name      string
		value     float64
		wantError bool
	}{
		{
			name:      "at lower bound",
			value:     0.0,
			wantError: false,
		},
		{
			name:      "at upper bound",
			value:     2.0,
			wantError: false,
		},
		{
			name:      "below range",
			value:     -0.1,
			wantError: true,
		},
		{
			name:      "above range",
			value:     2.1,
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewValidator()
			v.ValidateFloatRange("test_field", tt.value, 0.0, 2.0)
			if v.HasErrors() != tt.wantError {
				t.Errorf("HasErrors() = %v, want %v", v.HasErrors(), tt.wantError)
			}
		})
	}
}

func TestValidatorValidatePort(t *testing.T) {
	tests := []struct {
		name      string
		port      int
		wantError bool
	}{
		{
			name:      "valid port",
			port:      5432,
			wantError: false,
		},
		{
			name:      "port zero",
			port:      0,
			wantError: true,
		},
		{
			name:      "port too large",
			port:      70000,
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewValidator()
			v.ValidatePort("test_field", tt.port)
			if v.HasErrors() != tt.wantError {
				t.Errorf("HasErrors() = %v, want %v", v.HasErrors(), tt.wantError)
			}
		})
	}
}

func TestValidatorValidateOneOf(t *testing.T) {
	tests := []struct {
		name      string
		value     string
		wantError bool
	}{
		{
			name:      "allowed value",
			value:     "PGVECTOR",
			wantError: false,
		},
		{
			name:      "unknown value",
			value:     "CHROMA",
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewValidator()
			v.ValidateOneOf("test_field", tt.value, "PGVECTOR")
			if v.HasErrors() != tt.wantError {
				t.Errorf("HasErrors() = %v, want %v", v.HasErrors(), tt.wantError)
			}
		})
	}
}

func TestValidatorRequireNonEmptyList(t *testing.T) {
	v := NewValidator()
	v.RequireNonEmptyList("test_field", []string{"text/plain"})
	if v.HasErrors() {
		t.Errorf("expected no error for non-empty list, got %v", v.Errors())
	}

	v = NewValidator()
	v.RequireNonEmptyList("test_field", nil)
	if !v.HasErrors() {
		t.Error("expected error for empty list")
	}
}

func TestValidatorCollectsEveryError(t *testing.T) {
	v := NewValidator()
	v.RequireNonEmpty("APP_NAME", "")
	v.RequirePositive("FILE_MAX_SIZE", 0)
	v.ValidatePort("POSTGRES_PORT", 70000)
	v.ValidateOneOf("VECTOR_DB_BACKEND", "CHROMA", "PGVECTOR")

	if got := len(v.Errors()); got != 4 {
		t.Fatalf("expected 4 errors, got %d: %v", got, v.Errors())
	}

	err := v.Error()
	if err == nil {
		t.Fatal("expected combined error")
	}
	for _, field := range []string{"APP_NAME", "FILE_MAX_SIZE", "POSTGRES_PORT", "VECTOR_DB_BACKEND"} {
		if !strings.Contains(err.Error(), field) {
			t.Errorf("combined error missing field %s", field)
		}
	}
}
