package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"facebook-action/internal/core/domain"
)

// MockFileStorage mocks the FileStorage port
type MockFileStorage struct {
	mock.Mock
}

func (m *MockFileStorage) Save(path string, data []byte) error {
	args := m.Called(path, data)
	return args.Error(0)
}

func (m *MockFileStorage) PublicURL(path string) string {
	args := m.Called(path)
	return args.String(0)
}

// ============================================================================
// MIME classification
// ============================================================================

func TestGetMimeType_ExplicitMime(t *testing.T) {
	client := offlineClient()

	assert.Equal(t, &domain.MimeClassification{FileType: "image", Mime: "image/png"}, client.GetMimeType(MimeSource{MimeType: "image/png"}))
	assert.Equal(t, &domain.MimeClassification{FileType: "unknown", Mime: "application/zip"}, client.GetMimeType(MimeSource{MimeType: "application/zip"}))
	assert.Equal(t, &domain.MimeClassification{FileType: "unknown", Mime: ""}, client.GetMimeType(MimeSource{}))
}

func TestGetMimeType_UndetectedMimeEncodesAsNull(t *testing.T) {
	raw, err := json.Marshal(offlineClient().GetMimeType(MimeSource{FilePath: "no-extension"}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"file_type":"unknown","mime":null}`, string(raw))

	raw, err = json.Marshal(ClassifyMime("image/png"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"file_type":"image","mime":"image/png"}`, string(raw))
}

func TestGetMimeType_FilePathTakesPriority(t *testing.T) {
	client := offlineClient()

	cases := map[string]domain.MimeClassification{
		"/tmp/report.pdf": {FileType: "document", Mime: "application/pdf"},
		"notes.TXT":       {FileType: "document", Mime: "text/plain"},
		"song.mp3":        {FileType: "audio", Mime: "audio/mpeg"},
		"clip.mov":        {FileType: "video", Mime: "video/quicktime"},
		"photo.jpeg":      {FileType: "image", Mime: "image/jpeg"},
		"no-extension":    {FileType: "unknown", Mime: ""},
	}
	for path, want := range cases {
		got := client.GetMimeType(MimeSource{FilePath: path, URL: "http://127.0.0.1:1/ignored", MimeType: "video/mp4"})
		require.NotNil(t, got, path)
		assert.Equal(t, want, *got, path)
	}
}

func TestGetMimeType_URLProbe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodHead, r.Method)
		w.Header().Set("Content-Type", "audio/wav; charset=binary")
	}))
	defer srv.Close()

	got := offlineClient().GetMimeType(MimeSource{URL: srv.URL + "/a", MimeType: "image/png"})

	assert.Equal(t, &domain.MimeClassification{FileType: "audio", Mime: "audio/wav"}, got)
}

func TestGetMimeType_URLProbeFailureIsNil(t *testing.T) {
	assert.Nil(t, offlineClient().GetMimeType(MimeSource{URL: "http://127.0.0.1:1/unreachable"}))
}

// ============================================================================
// Download
// ============================================================================

var storedPath = regexp.MustCompile(`^fb/[a-z0-9]{10}\.png$`)

func TestDownloadFile_StoresBodyAndReturnsPublicURL(t *testing.T) {
	content := strings.Repeat("x", 4096+17)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		if r.Method == http.MethodGet {
			w.Write([]byte(content))
		}
	}))
	defer srv.Close()

	storage := new(MockFileStorage)
	storage.On("Save", mock.MatchedBy(storedPath.MatchString), []byte(content)).Return(nil)
	storage.On("PublicURL", mock.MatchedBy(storedPath.MatchString)).Return("https://files.example/stored.png")

	client := NewFacebookClient(testConfig(srv.URL), WithStorage(storage))
	publicURL, ok := client.DownloadFile(srv.URL + "/image")

	assert.True(t, ok)
	assert.Equal(t, "https://files.example/stored.png", publicURL)
	storage.AssertExpectations(t)
}

func TestDownloadFile_UnknownTypeSkipsDownload(t *testing.T) {
	var gets int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			gets++
		}
		w.Header().Set("Content-Type", "application/x-made-up")
	}))
	defer srv.Close()

	storage := new(MockFileStorage)
	client := NewFacebookClient(testConfig(srv.URL), WithStorage(storage))

	publicURL, ok := client.DownloadFile(srv.URL)

	assert.False(t, ok)
	assert.Empty(t, publicURL)
	assert.Zero(t, gets)
	storage.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestDownloadFile_NonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		if r.Method == http.MethodGet {
			w.WriteHeader(http.StatusForbidden)
		}
	}))
	defer srv.Close()

	storage := new(MockFileStorage)
	client := NewFacebookClient(testConfig(srv.URL), WithStorage(storage))

	_, ok := client.DownloadFile(srv.URL)

	assert.False(t, ok)
	storage.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestDownloadFile_StorageFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write([]byte("png"))
	}))
	defer srv.Close()

	storage := new(MockFileStorage)
	storage.On("Save", mock.Anything, mock.Anything).Return(errors.New("disk full"))
	client := NewFacebookClient(testConfig(srv.URL), WithStorage(storage))

	publicURL, ok := client.DownloadFile(srv.URL)

	assert.False(t, ok)
	assert.Empty(t, publicURL)
	storage.AssertNotCalled(t, "PublicURL", mock.Anything)
}

func TestDownloadFile_WithoutStorage(t *testing.T) {
	_, ok := offlineClient().DownloadFile("http://127.0.0.1:1/x.png")
	assert.False(t, ok)
}

func TestRandomName(t *testing.T) {
	name := randomName(filenameLength)
	assert.Regexp(t, `^[a-z0-9]{10}$`, name)
}
