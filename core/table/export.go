package table

import (
	"strings"
	"time"
)

const exportTimeLayout = "20060102-150405"

// Export is a downloadable bulk export of a resource.
type Export struct {
	Filename    string
	ContentType string
	Content     []byte
}

// ExportFilename returns `<resource>-<timestamp>.<ext>` with a UTC timestamp.
func ExportFilename(resource, ext string, at time.Time) string {
	return resource + "-" + at.UTC().Format(exportTimeLayout) + "." + strings.TrimPrefix(ext, ".")
}

// ContentTypeFor returns the content type of an export extension.
func ContentTypeFor(ext string) string {
	switch strings.TrimPrefix(strings.ToLower(ext), ".") {
	case "zip":
		return "application/zip"
	case "csv":
		return "text/csv; charset=utf-8"
	default:
		return "application/octet-stream"
	}
}

// NewExport builds an Export named after resource.
func NewExport(resource, ext string, content []byte, at time.Time) Export {
	return Export{
		Filename:    ExportFilename(resource, ext, at),
		ContentType: ContentTypeFor(ext),
		Content:     content,
	}
}
