package category

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetCategory(t *testing.T) {
	tests := []struct {
		name     string
		fileName string
		mimeType string
		want     Category
	}{
		{name: "PDF by mime", fileName: "report", mimeType: "application/pdf", want: PDF},
		{name: "PDF by extension", fileName: "report.PDF", mimeType: "application/octet-stream", want: PDF},
		{name: "Image", fileName: "file.jpg", want: Image},
		{name: "Image mime with params", fileName: "blob", mimeType: "image/png; charset=binary", want: Image},
		{name: "Document", fileName: "file.docx", want: Document},
		{name: "Text mime", fileName: "notes", mimeType: "text/plain; charset=utf-8", want: Document},
		{name: "Video", fileName: "file.mp4", want: Video},
		{name: "Audio", fileName: "song", mimeType: "audio/mpeg", want: Audio},
		{name: "Archive", fileName: "file.zip", want: Archive},
		{name: "Other", fileName: "file", want: Other},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GetCategory(tt.fileName, tt.mimeType))
		})
	}
}

func TestParse(t *testing.T) {
	for _, s := range []string{"image", "PDF", " document ", "video", "audio"} {
		_, ok := Parse(s)
		assert.True(t, ok, s)
	}
	for _, s := range []string{"archive", "other", "folder", ""} {
		_, ok := Parse(s)
		assert.False(t, ok, s)
	}
}

func TestPreviewKind(t *testing.T) {
	assert.Equal(t, PreviewImage, PreviewKind("a.bin", "image/webp"))
	assert.Equal(t, PreviewPDF, PreviewKind("report.pdf", ""))
	assert.Equal(t, PreviewText, PreviewKind("x", "text/markdown"))
	assert.Equal(t, PreviewText, PreviewKind("config.yaml", "application/octet-stream"))
	assert.Equal(t, PreviewOther, PreviewKind("movie.mkv", "video/x-matroska"))
}
