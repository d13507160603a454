package api

import (
	"context"
	"fmt"
	"mime"
	"path/filepath"

	"github.com/conalog/patch-cli/internal/validation"
)

// Upload stores a file on a plant. The form carries a "name" field and the
// file under "filename".
func (s FilesService) Upload(ctx context.Context, plantID, name, filename string, content []byte) (*FileUpload, error) {
	if err := validation.RejectCRLF(name, "name"); err != nil {
		return nil, err
	}
	if filename == "" {
		return nil, fmt.Errorf("filename is required")
	}
	contentType := mime.TypeByExtension(filepath.Ext(filename))

	path := "api/v3/plants/" + EncodeSegment(plantID) + "/files"
	files := []FilePart{{
		FieldName:   "filename",
		Filename:    filename,
		ContentType: contentType,
		Content:     content,
	}}
	var result FileUpload
	if err := s.PostMultipart(ctx, path, map[string]string{"name": name}, files, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
