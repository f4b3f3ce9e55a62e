package category

import (
	"mime"
	"path/filepath"
	"slices"
	"strings"
)

type Category string

const (
	Image    Category = "image"
	PDF      Category = "pdf"
	Document Category = "document"
	Video    Category = "video"
	Audio    Category = "audio"
	Archive  Category = "archive"
	Other    Category = "other"
)

// Preview kinds understood by the viewer.
const (
	PreviewImage = "image"
	PreviewPDF   = "pdf"
	PreviewText  = "text"
	PreviewOther = "other"
)

var (
	documentExtensions = []string{"doc", "docx", "ppt", "pptx", "pps", "ppsx", "odt", "ods", "odp", "xls", "xlsx", "csv", "txt", "md", "rtf", "json", "xml", "html", "htm"}
	imageExtensions    = []string{"jpg", "jpeg", "png", "gif", "bmp", "svg", "webp", "heic", "tiff", "ico"}
	videoExtensions    = []string{"mp4", "webm", "mov", "avi", "m4v", "flv", "wmv", "mkv", "mpg", "mpeg", "m2v", "mpv"}
	audioExtensions    = []string{"mp3", "wav", "ogg", "m4a", "flac", "aac", "wma", "aiff", "ape", "alac", "opus", "pcm"}
	archiveExtensions  = []string{"zip", "rar", "tar", "gz", "7z", "iso", "dmg", "pkg", "bz2", "xz"}
	textExtensions     = []string{"txt", "md", "csv", "json", "xml", "log", "yaml", "yml", "toml", "ini"}

	documentMimes = []string{
		"application/msword",
		"application/rtf",
		"application/json",
		"application/xml",
		"application/vnd.oasis.opendocument.text",
		"application/vnd.oasis.opendocument.spreadsheet",
		"application/vnd.oasis.opendocument.presentation",
	}
	archiveMimes = []string{
		"application/zip",
		"application/gzip",
		"application/x-tar",
		"application/x-7z-compressed",
		"application/vnd.rar",
		"application/x-rar-compressed",
	}
)

// Searchable lists the categories accepted by the type filter.
var Searchable = []Category{Image, PDF, Document, Video, Audio}

// GetCategory derives the coarse type from the MIME type, falling back to the
// file extension when the MIME type is generic or missing.
func GetCategory(fileName, mimeType string) Category {
	if c := fromMime(baseMime(mimeType)); c != Other {
		return c
	}
	return fromExtension(ext(fileName))
}

// Parse accepts only the categories usable as a search filter.
func Parse(s string) (Category, bool) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	return c, slices.Contains(Searchable, c)
}

// PreviewKind reports how a viewer should render the file.
func PreviewKind(fileName, mimeType string) string {
	mt := baseMime(mimeType)
	switch {
	case strings.HasPrefix(mt, "image/"):
		return PreviewImage
	case mt == "application/pdf":
		return PreviewPDF
	case strings.HasPrefix(mt, "text/"), mt == "application/json", mt == "application/xml":
		return PreviewText
	}
	e := ext(fileName)
	switch {
	case slices.Contains(imageExtensions, e):
		return PreviewImage
	case e == "pdf":
		return PreviewPDF
	case slices.Contains(textExtensions, e):
		return PreviewText
	}
	return PreviewOther
}

func fromMime(mt string) Category {
	switch {
	case mt == "":
		return Other
	case mt == "application/pdf":
		return PDF
	case strings.HasPrefix(mt, "image/"):
		return Image
	case strings.HasPrefix(mt, "video/"):
		return Video
	case strings.HasPrefix(mt, "audio/"):
		return Audio
	case strings.HasPrefix(mt, "text/"),
		strings.HasPrefix(mt, "application/vnd.openxmlformats-officedocument."),
		strings.HasPrefix(mt, "application/vnd.ms-"),
		slices.Contains(documentMimes, mt):
		return Document
	case slices.Contains(archiveMimes, mt):
		return Archive
	}
	return Other
}

func fromExtension(e string) Category {
	switch {
	case e == "pdf":
		return PDF
	case slices.Contains(documentExtensions, e):
		return Document
	case slices.Contains(imageExtensions, e):
		return Image
	case slices.Contains(videoExtensions, e):
		return Video
	case slices.Contains(audioExtensions, e):
		return Audio
	case slices.Contains(archiveExtensions, e):
		return Archive
	}
	return Other
}

func baseMime(mimeType string) string {
	if mimeType == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(mimeType))
	}
	return mt
}

func ext(fileName string) string {
	e := filepath.Ext(fileName)
	if e == "" {
		return ""
	}
	return strings.ToLower(e[1:])
}
