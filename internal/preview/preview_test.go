package preview

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		mime, name string
		want       Kind
	}{
		{"image/png", "a.png", KindImage},
		{"", "photo.JPG", KindImage},
		{"video/mp4", "clip", KindVideo},
		{"audio/mpeg", "song.mp3", KindAudio},
		{"text/plain; charset=utf-8", "notes", KindText},
		{"application/octet-stream", "readme.md", KindText},
		{"application/json", "data.json", KindText},
		{"", "budget.xlsx", KindOffice},
		{"application/pdf", "report", KindPDF},
		{"", "report.pdf", KindPDF},
		{"application/zip", "bundle.zip", KindNone},
		{"", "unknown.bin", KindNone},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Classify(tt.mime, tt.name), "%s %s", tt.mime, tt.name)
	}
}

func TestMimeFromExt(t *testing.T) {
	assert.Equal(t, "image/jpeg", MimeFromExt(".JPEG"))
	assert.Equal(t, "application/octet-stream", MimeFromExt(".nope"))
	assert.Equal(t, "application/octet-stream", MimeFromExt(""))
}

func TestDescribe(t *testing.T) {
	const src = "http://blobs/a/b"

	info := Describe("", "report.pdf", src, "")
	assert.Equal(t, KindPDF, info.Type)
	assert.Equal(t, "application/pdf", info.MimeType)
	assert.True(t, strings.HasPrefix(info.URL, "/pdfjs/web/viewer.html?file="))

	info = Describe("", "deck.pptx", src, "")
	assert.Equal(t, KindOffice, info.Type)
	assert.True(t, info.Editable)
	assert.Contains(t, info.URL, "officeapps")

	info = Describe("application/zip", "x.zip", src, "http://kk:8012/")
	assert.True(t, strings.HasPrefix(info.URL, "http://kk:8012/onlinePreview?url="))

	info = Describe("application/zip", "x.zip", src, "")
	assert.Equal(t, src, info.URL)

	info = Describe("image/png", "a.png", "", "")
	assert.Empty(t, info.URL)
	assert.Equal(t, KindImage, info.Type)
}
