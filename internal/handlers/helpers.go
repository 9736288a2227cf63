package handlers

import (
	"fmt"
	"mime"
	"mime/multipart"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/sketchcode/backend/internal/services"
)

func parseUUID(value string) (uuid.UUID, error) {
	return uuid.Parse(strings.TrimSpace(value))
}

// imageUploadFromForm opens a multipart file header and wraps it for
// the blob store. The prefix namespaces the object (usually the owning
// user's id). Callers must close the returned stream.
func imageUploadFromForm(fileHeader *multipart.FileHeader, prefix string) (*services.ImageUpload, multipart.File, error) {
	stream, err := fileHeader.Open()
	if err != nil {
		return nil, nil, err
	}

	filename := filepath.Base(strings.TrimSpace(fileHeader.Filename))
	if filename == "" {
		stream.Close()
		return nil, nil, fmt.Errorf("invalid filename")
	}

	contentType := fileHeader.Header.Get("Content-Type")
	if contentType == "" {
		contentType = mime.TypeByExtension(filepath.Ext(filename))
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	upload := &services.ImageUpload{
		Reader:      stream,
		Size:        fileHeader.Size,
		ContentType: contentType,
		ObjectName:  fmt.Sprintf("%s/%s/%s", prefix, uuid.New().String(), filename),
	}

	return upload, stream, nil
}
