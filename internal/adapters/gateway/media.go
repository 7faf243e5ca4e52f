package gateway

import (
	"bytes"
	"io"
	"math/rand"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"facebook-action/internal/core/domain"
)

const (
	downloadChunkSize = 1024
	storagePrefix     = "fb/"
	filenameLength    = 10
	filenameAlphabet  = "abcdefghijklmnopqrstuvwxyz0123456789"
)

// Allow-list per category; anything else is "unknown"
var mimeCategories = []struct {
	fileType string
	types    []string
}{
	{domain.FileTypeImage, []string{"image/jpeg", "image/png", "image/gif", "image/webp"}},
	{domain.FileTypeDocument, []string{"application/pdf", "text/plain"}},
	{domain.FileTypeAudio, []string{"audio/mpeg", "audio/wav"}},
	{domain.FileTypeVideo, []string{"video/mp4", "video/quicktime"}},
}

// Extensions the builtin mime table may not know on minimal systems
var extensionTypes = map[string]string{
	".txt":  "text/plain",
	".mp3":  "audio/mpeg",
	".wav":  "audio/wav",
	".mp4":  "video/mp4",
	".mov":  "video/quicktime",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
	".pdf":  "application/pdf",
}

// MimeSource selects where the MIME type comes from
// Priority: FilePath, then URL (HEAD probe), then MimeType
type MimeSource struct {
	FilePath string
	URL      string
	MimeType string
}

// ClassifyMime maps a MIME type to its file category
func ClassifyMime(mimeType string) domain.MimeClassification {
	for _, category := range mimeCategories {
		for _, t := range category.types {
			if t == mimeType {
				return domain.MimeClassification{FileType: category.fileType, Mime: mimeType}
			}
		}
	}
	return domain.MimeClassification{FileType: domain.FileTypeUnknown, Mime: mimeType}
}

// GetMimeType detects and classifies a MIME type
// Returns nil only when the URL probe fails at the transport level
func (c *FacebookClient) GetMimeType(src MimeSource) *domain.MimeClassification {
	var detected string

	switch {
	case src.FilePath != "":
		detected = typeByExtension(src.FilePath)
	case src.URL != "":
		contentType, err := c.probeContentType(src.URL)
		if err != nil {
			c.logger.Warn("MIME probe failed", "url", src.URL, "error", err)
			return nil
		}
		detected = baseMediaType(contentType)
	default:
		detected = baseMediaType(src.MimeType)
	}

	result := ClassifyMime(detected)
	return &result
}

// DownloadFile fetches a remote file into storage and returns its public URL
// ok is false when the type has no known extension or any step fails
func (c *FacebookClient) DownloadFile(fileURL string) (publicURL string, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("Download panicked", "url", fileURL, "panic", r)
			publicURL, ok = "", false
		}
	}()

	if c.storage == nil {
		c.logger.Error("Download requested without file storage", "url", fileURL)
		return "", false
	}

	contentType, err := c.probeContentType(fileURL)
	if err != nil {
		c.logger.Warn("Download probe failed", "url", fileURL, "error", err)
		return "", false
	}
	extension := extensionFor(baseMediaType(contentType))
	if extension == "" {
		c.logger.Debug("No extension for content type, skipping download", "url", fileURL, "content_type", contentType)
		return "", false
	}

	outputPath := storagePrefix + randomName(filenameLength) + extension

	resp, err := c.httpClient.Get(fileURL)
	if err != nil {
		c.logger.Warn("Download failed", "url", fileURL, "error", err)
		return "", false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("Download returned non-200", "url", fileURL, "status_code", resp.StatusCode)
		return "", false
	}

	var buf bytes.Buffer
	chunk := make([]byte, downloadChunkSize)
	for {
		n, err := resp.Body.Read(chunk)
		if n > 0 {
			buf.Write(chunk[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			c.logger.Warn("Download interrupted", "url", fileURL, "error", err)
			return "", false
		}
	}

	if err := c.storage.Save(outputPath, buf.Bytes()); err != nil {
		c.logger.Error("Failed to store downloaded file", "path", outputPath, "error", err)
		return "", false
	}

	c.logger.Info("File downloaded", "path", outputPath, "size", buf.Len())
	return c.storage.PublicURL(outputPath), true
}

func (c *FacebookClient) probeContentType(target string) (string, error) {
	resp, err := c.httpClient.Head(target)
	if err != nil {
		return "", err
	}
	resp.Body.Close()
	return resp.Header.Get("Content-Type"), nil
}

func typeByExtension(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == "" {
		return ""
	}
	if t, ok := extensionTypes[ext]; ok {
		return t
	}
	return baseMediaType(mime.TypeByExtension(ext))
}

// baseMediaType drops parameters such as "; charset=utf-8"
func baseMediaType(contentType string) string {
	contentType = strings.TrimSpace(contentType)
	if contentType == "" {
		return ""
	}
	if mediaType, _, err := mime.ParseMediaType(contentType); err == nil {
		return mediaType
	}
	return strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
}

func extensionFor(mediaType string) string {
	if mediaType == "" {
		return ""
	}
	m := mimetype.Lookup(mediaType)
	if m == nil {
		return ""
	}
	return m.Extension()
}

func randomName(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = filenameAlphabet[rand.Intn(len(filenameAlphabet))]
	}
	return string(b)
}
