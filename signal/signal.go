package signal

import "net/http"

// Signal is a closed enum of machine-readable outcomes returned by the
// controllers and translated to HTTP responses by the server layer.
type Signal string

const (
	FileValidatedSuccess             Signal = "file_validate_successfully"
	FileTypeNotSupported             Signal = "file_type_not_supported"
	FileSizeExceeded                 Signal = "file_size_exceeded"
	FileUploadSuccess                Signal = "file_upload_success"
	FileUploadFailed                 Signal = "file_upload_failed"
	FileProcessingStarted            Signal = "file_processing_started"
	FileProcessingCompleted          Signal = "file_processing_completed"
	FileNotFound                     Signal = "file_not_found"
	FileReadFailed                   Signal = "file_read_failed"
	NoFilesToProcess                 Signal = "no_files_to_process"
	ProcessingFailed                 Signal = "processing_failed"
	ProjectNotFound                  Signal = "project_not_found"
	IndexingFailed                   Signal = "indexing_failed"
	IndexingCompleted                Signal = "indexing_completed"
	FetchingCollectionInfoFailed     Signal = "fetching_collection_info_failed"
	FetchingCollectionInfoCompleted  Signal = "fetching_collection_info_completed"
	SearchFailed                     Signal = "search_failed"
	SearchCompleted                  Signal = "search_completed"
	AnswerGenerationFailed           Signal = "answer_generation_failed"
	AnswerGenerationCompleted        Signal = "answer_generation_completed"
	EvaluationCompleted              Signal = "evaluation_completed"
	EvaluationFailed                 Signal = "evaluation_failed"
)

// HTTPStatus maps a signal to the HTTP status code the server layer should
// respond with. Validation and lookup failures are client errors; storage
// and provider failures are server errors.
func HTTPStatus(s Signal) int {
	switch s {
	case FileTypeNotSupported, FileSizeExceeded, FileNotFound,
		NoFilesToProcess, ProjectNotFound:
		return http.StatusBadRequest
	case FileUploadFailed, FileReadFailed, ProcessingFailed,
		IndexingFailed, FetchingCollectionInfoFailed,
		SearchFailed, AnswerGenerationFailed, EvaluationFailed:
		return http.StatusInternalServerError
	default:
		return http.StatusOK
	}
}
