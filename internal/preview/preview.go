// Package preview decides how a file can be previewed from its MIME type and
// name, and fills in MIME types from file extensions.
package preview

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
)

// Kind is the preview mode of a file.
type Kind string

const (
	KindImage  Kind = "image"
	KindVideo  Kind = "video"
	KindAudio  Kind = "audio"
	KindText   Kind = "text"
	KindPDF    Kind = "pdf"
	KindOffice Kind = "office"
	KindNone   Kind = "none"
)

// Info is the preview description returned to clients.
type Info struct {
	Type     Kind   `json:"type"`
	MimeType string `json:"mime_type"`
	FileName string `json:"file_name"`
	URL      string `json:"url,omitempty"`
	Editable bool   `json:"editable"`
}

// Classify picks the preview kind. An empty MIME type is derived from the
// extension first.
func Classify(mimeType, name string) Kind {
	ext := strings.ToLower(filepath.Ext(name))
	if mimeType == "" {
		mimeType = MimeFromExt(ext)
	}
	mimeType = strings.ToLower(mimeType)

	switch {
	case strings.HasPrefix(mimeType, "image/"):
		return KindImage
	case strings.HasPrefix(mimeType, "video/"):
		return KindVideo
	case strings.HasPrefix(mimeType, "audio/"):
		return KindAudio
	case isTextFile(mimeType) || ext == ".txt" || ext == ".md":
		return KindText
	case isOfficeDocument(ext):
		return KindOffice
	case ext == ".pdf" || mimeType == "application/pdf":
		return KindPDF
	}
	return KindNone
}

// Describe builds the preview answer for a file whose content is reachable
// at contentURL. kkFileViewBase, when set, is used for kinds the browser
// cannot render itself.
func Describe(mimeType, name, contentURL, kkFileViewBase string) Info {
	if mimeType == "" {
		mimeType = MimeFromExt(strings.ToLower(filepath.Ext(name)))
	}
	info := Info{Type: Classify(mimeType, name), MimeType: mimeType, FileName: name}
	if contentURL == "" {
		return info
	}

	switch info.Type {
	case KindText:
		info.URL = contentURL
		info.Editable = true
	case KindOffice:
		info.URL = officePreviewURL(contentURL)
		info.Editable = true
	case KindPDF:
		info.URL = pdfPreviewURL(contentURL)
	case KindNone:
		if kkFileViewBase != "" {
			info.URL = kkFileViewURL(kkFileViewBase, contentURL)
		} else {
			info.URL = contentURL
		}
	default:
		info.URL = contentURL
	}
	return info
}

// isTextFile checks if MIME type is a text file
func isTextFile(mimeType string) bool {
	textTypes := []string{
		"text/",
		"application/json",
		"application/xml",
		"application/javascript",
		"application/x-sh",
		"application/x-bash",
	}

	for _, t := range textTypes {
		if strings.HasPrefix(mimeType, t) {
			return true
		}
	}
	return false
}

func isOfficeDocument(ext string) bool {
	switch ext {
	case ".doc", ".docx", ".xls", ".xlsx", ".ppt", ".pptx":
		return true
	default:
		return false
	}
}

var extTypes = map[string]string{
	".txt":  "text/plain",
	".md":   "text/markdown",
	".json": "application/json",
	".xml":  "application/xml",
	".html": "text/html",
	".css":  "text/css",
	".js":   "application/javascript",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
	".svg":  "image/svg+xml",
	".pdf":  "application/pdf",
	".mp4":  "video/mp4",
	".mov":  "video/quicktime",
	".webm": "video/webm",
	".mp3":  "audio/mpeg",
	".wav":  "audio/wav",
	".flac": "audio/flac",
	".zip":  "application/zip",
	".doc":  "application/msword",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".xls":  "application/vnd.ms-excel",
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	".ppt":  "application/vnd.ms-powerpoint",
	".pptx": "application/vnd.openxmlformats-officedocument.presentationml.presentation",
}

// MimeFromExt maps a file extension (with dot) to a MIME type, defaulting
// to application/octet-stream.
func MimeFromExt(ext string) string {
	if mt, ok := extTypes[strings.ToLower(ext)]; ok {
		return mt
	}
	return "application/octet-stream"
}

// kkFileView format: <base>/onlinePreview?url=<base64 file url>
func kkFileViewURL(base, fileURL string) string {
	encodedURL := base64.URLEncoding.EncodeToString([]byte(fileURL))
	return fmt.Sprintf("%s/onlinePreview?url=%s", strings.TrimRight(base, "/"), encodedURL)
}

func officePreviewURL(fileURL string) string {
	return "https://view.officeapps.live.com/op/view.aspx?src=" + url.QueryEscape(fileURL)
}

func pdfPreviewURL(fileURL string) string {
	return "/pdfjs/web/viewer.html?file=" + url.QueryEscape(fileURL)
}
