package dto

// CurriculumFragmentDTO is one pre-chunked piece of teaching material.
type CurriculumFragmentDTO struct {
	Content  string                 `json:"content" validate:"required,min=1"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// IngestCurriculumRequest indexes a batch of fragments for one
// level/subject pair.
type IngestCurriculumRequest struct {
	Source    string                  `json:"source" validate:"required"`
	Subject   string                  `json:"subject" validate:"required"`
	Level     string                  `json:"level" validate:"required"`
	Fragments []CurriculumFragmentDTO `json:"fragments" validate:"required,min=1,dive"`
}

// IngestCurriculumResponse reports how many fragments were indexed.
type IngestCurriculumResponse struct {
	Indexed int `json:"indexed"`
}
