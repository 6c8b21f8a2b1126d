// Package oracle talks to the extraction service that reads unstructured
// document content. Two transports exist: the signed HTTP backend and a
// direct Gemini client. Both return free-form text; everything structural is
// recovered downstream.
package oracle

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ContentBlock is one ordered element of an extraction request: instruction
// text, an inline image, or an inline PDF.
type ContentBlock struct {
	Type     string
	Text     string
	MIMEType string
	Filename string
	Data     []byte
}

// Request is one oracle call: the content blocks plus model parameters and
// audit labels.
type Request struct {
	Blocks         []ContentBlock
	Model          string
	MaxOutputToks  int
	Task           string
	ClientID       string
	SourceFilename string
}

// Oracle extracts text from document content. A call either returns text or
// fails the whole document unit.
type Oracle interface {
	Extract(ctx context.Context, req Request) (string, error)
}

// TextBlock builds an instruction block.
func TextBlock(text string) ContentBlock {
	return ContentBlock{Type: "input_text", Text: text}
}

var imageMIMETypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
}

// Supported reports whether the file extension can be attached to a request.
func Supported(ext string) bool {
	ext = strings.ToLower(ext)
	if ext == ".pdf" {
		return true
	}
	_, ok := imageMIMETypes[ext]
	return ok
}

// FileBlocks reads a source document into attachment blocks. Unsupported
// extensions are a per-unit error.
func FileBlocks(path string) ([]ContentBlock, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if !Supported(ext) {
		return nil, fmt.Errorf("FileBlocks: unsupported file type %q", ext)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("FileBlocks: %w", err)
	}
	name := filepath.Base(path)
	if ext == ".pdf" {
		return []ContentBlock{{
			Type:     "input_file",
			MIMEType: "application/pdf",
			Filename: name,
			Data:     data,
		}}, nil
	}
	return []ContentBlock{{
		Type:     "input_image",
		MIMEType: imageMIMETypes[ext],
		Filename: name,
		Data:     data,
	}}, nil
}

// SourceFilename returns the first attachment filename in the block list.
func SourceFilename(blocks []ContentBlock) string {
	for _, b := range blocks {
		if b.Filename != "" {
			return b.Filename
		}
	}
	return ""
}
