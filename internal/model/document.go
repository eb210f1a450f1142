package model

import (
	"encoding/json"
	"time"
)

type IndexStatus string

const (
	IndexPending    IndexStatus = "Pending"
	IndexProcessing IndexStatus = "Processing"
	IndexIndexed    IndexStatus = "Indexed"
	IndexFailed     IndexStatus = "Failed"
)

// ContentType classifies what kind of payload a chunk carries.
type ContentType string

const (
	ContentText     ContentType = "text"
	ContentPDFText  ContentType = "pdf_text"
	ContentPDFImage ContentType = "pdf_image"
	ContentImage    ContentType = "image"
	ContentMultimodal ContentType = "multimodal"
)

// Document represents an ingested source file.
type Document struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	SourcePath  string          `json:"sourcePath"`
	MimeType    string          `json:"mimeType"`
	SizeBytes   int             `json:"sizeBytes"`
	Checksum    *string         `json:"checksum,omitempty"`
	IndexStatus IndexStatus     `json:"indexStatus"`
	ChunkCount  int             `json:"chunkCount"`
	Metadata    json.RawMessage `json:"metadata,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// Chunk is a retrievable unit of a document: a span of text (and,
// for multimodal content, an associated image) with its embedding.
type Chunk struct {
	ID          string          `json:"id"`
	DocumentID  string          `json:"documentId"`
	ChunkIndex  int             `json:"chunkIndex"`
	PageStart   *int            `json:"pageStart,omitempty"`
	PageEnd     *int            `json:"pageEnd,omitempty"`
	Section     string          `json:"section,omitempty"`
	Text        string          `json:"text"`
	IsOCR       bool            `json:"isOcr"`
	IsFigure    bool            `json:"isFigure"`
	ContentType ContentType     `json:"contentType"`
	ImagePath   *string         `json:"imagePath,omitempty"`
	ContentHash string          `json:"contentHash"`
	Embedding   []float32       `json:"-"`
	Metadata    json.RawMessage `json:"metadata,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// AllowedMimeTypes lists the source formats the ingestion pipeline accepts.
// Decoding any of these into text/images is an external collaborator's job.
var AllowedMimeTypes = map[string]bool{
	"application/pdf": true,
	"text/plain":      true,
	"image/png":       true,
	"image/jpeg":      true,
}

// MaxFileSizeBytes is the maximum source file size accepted at ingest.
const MaxFileSizeBytes = 50 * 1024 * 1024
