package signal

import (
	"net/http"
	"testing"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		sig  Signal
		want int
	}{
		{FileValidatedSuccess, http.StatusOK},
		{FileUploadSuccess, http.StatusOK},
		{FileProcessingCompleted, http.StatusOK},
		{IndexingCompleted, http.StatusOK},
		{SearchCompleted, http.StatusOK},
		{AnswerGenerationCompleted, http.StatusOK},
		{EvaluationCompleted, http.StatusOK},
		{FileTypeNotSupported, http.StatusBadRequest},
		{FileSizeExceeded, http.StatusBadRequest},
		{FileNotFound, http.StatusBadRequest},
		{NoFilesToProcess, http.StatusBadRequest},
		{ProjectNotFound, http.StatusBadRequest},
		{FileUploadFailed, http.StatusInternalServerError},
		{FileReadFailed, http.StatusInternalServerError},
		{ProcessingFailed, http.StatusInternalServerError},
		{IndexingFailed, http.StatusInternalServerError},
		{FetchingCollectionInfoFailed, http.StatusInternalServerError},
		{SearchFailed, http.StatusInternalServerError},
		{AnswerGenerationFailed, http.StatusInternalServerError},
		{EvaluationFailed, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.sig), func(t *testing.T) {
			if got := HTTPStatus(tt.sig); got != tt.want {
				t.Errorf("HTTPStatus(%s) = %d, want %d", tt.sig, got, tt.want)
			}
		})
	}
}
