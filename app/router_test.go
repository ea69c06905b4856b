package app

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"bitwise74/file-api/db"
	"bitwise74/file-api/internal"
	"bitwise74/file-api/internal/access"
	"bitwise74/file-api/internal/blob/local"
	"bitwise74/file-api/internal/catalog"
	"bitwise74/file-api/internal/model"
	"bitwise74/file-api/internal/repository"
	"bitwise74/file-api/internal/service"
	"bitwise74/file-api/pkg/validators"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var testSecret = []byte("test-secret")

func init() {
	gin.SetMode(gin.TestMode)
}

type testServer struct {
	router *gin.Engine
	deps   *internal.Deps
	root   string
}

// newTestServer builds a router over sqlite and a temporary local store.
// opts adjust the router options before the routes are built.
func newTestServer(t *testing.T, opts ...func(*Options)) *testServer {
	t.Helper()

	conn, err := db.New("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := conn.DB(); err == nil {
			sqlDB.Close()
		}
	})

	root := t.TempDir()
	s, err := local.New(root, "https://cdn.example.com/media")
	require.NoError(t, err)

	c := catalog.New(repository.NewFiles(conn))

	u := service.NewUploader(&validators.Policy{
		HardLimitMB: 1,
		MaxWidth:    200,
		MaxHeight:   200,
	}, c, s, service.Defaults{Description: "A file was uploaded"})
	u.Log = zap.NewNop()

	d := &internal.Deps{
		DB:             conn,
		Catalog:        c,
		Store:          s,
		Uploader:       u,
		Retriever:      service.NewRetriever(c, s, access.OwnerOnly),
		Policy:         access.OwnerOnly,
		MaxUploadBytes: validators.BytesPerMB,
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	o := Options{
		JWTSecret:       testSecret,
		CORS:            []string{"http://localhost:3000"},
		RateLimit:       1000,
		MaxRequestBytes: 2 * validators.BytesPerMB,
		Metrics:         true,
	}
	for _, opt := range opts {
		opt(&o)
	}

	return &testServer{
		router: Routes(ctx, d, o),
		deps: d,
		root: root,
	}
}

func token(t *testing.T, userID, username string) string {
	t.Helper()

	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id":  userID,
		"username": username,
		"exp":      time.Now().Add(time.Hour).Unix(),
	}).SignedString(testSecret)
	require.NoError(t, err)

	return s
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))))

	return buf.Bytes()
}

// do sends a request as the given user. An empty user sends no token.
func (s *testServer) do(t *testing.T, user, method, target string, body io.Reader, header http.Header) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, target, body)
	for k, v := range header {
		req.Header[k] = v
	}
	if user != "" {
		req.Header.Set("Authorization", "Bearer "+token(t, "id-"+user, user))
	}

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	return w
}

func (s *testServer) upload(t *testing.T, user, filename string, content []byte, fields map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	fw, err := mw.CreateFormFile("upload_file", filename)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)

	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())

	return s.do(t, user, http.MethodPost, "/api/files/upload", &buf, http.Header{
		"Content-Type": {mw.FormDataContentType()},
	})
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()

	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())

	return out
}

type uploadResponse struct {
	UploadKey string `json:"upload_key"`
	FileID    string `json:"file_id"`
}

func TestHeartbeat(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, "", http.MethodHead, "/api/heartbeat", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	sqlDB, err := s.deps.DB.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	w = s.do(t, "", http.MethodHead, "/api/heartbeat", nil, nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestCORS(t *testing.T) {
	preflight := func(t *testing.T, s *testServer) *httptest.ResponseRecorder {
		return s.do(t, "", http.MethodOptions, "/api/files", nil, http.Header{
			"Origin":                        {"http://localhost:3000"},
			"Access-Control-Request-Method": {http.MethodGet},
		})
	}

	w := preflight(t, newTestServer(t))
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))

	t.Run("no origins", func(t *testing.T) {
		var s *testServer
		require.NotPanics(t, func() {
			s = newTestServer(t, func(o *Options) { o.CORS = nil })
		})

		w := preflight(t, s)
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))

		w = s.do(t, "", http.MethodHead, "/api/heartbeat", nil, nil)
		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestMimeLookup(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, "", http.MethodGet, "/api/mimes/photo.JPG", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"extension":"JPG","mimeType":"image/jpeg"}`, w.Body.String())

	w = s.do(t, "", http.MethodGet, "/api/mimes/archive.xyz", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUploadAndRead(t *testing.T) {
	s := newTestServer(t)
	content := pngBytes(t, 100, 100)

	w := s.upload(t, "alice", "holiday.png", content, map[string]string{"file_type": "image/png"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	res := decode[uploadResponse](t, w)
	assert.True(t, strings.HasPrefix(res.UploadKey, "alice/"))
	assert.NotEmpty(t, res.FileID)

	t.Run("record", func(t *testing.T) {
		w := s.do(t, "alice", http.MethodGet, "/api/files/"+res.FileID, nil, nil)
		require.Equal(t, http.StatusOK, w.Code)

		f := decode[model.File](t, w)
		assert.Equal(t, "holiday.png uploaded", f.Title)
		assert.Equal(t, "A file was uploaded", f.Description)
		assert.Equal(t, "holiday.png", f.OriginName)
		assert.Equal(t, res.UploadKey, f.Location)
		assert.Equal(t, model.StatusActive, f.Status)
		require.NotNil(t, f.MetaData)
		assert.Equal(t, int64(len(content)), f.MetaData.FilesizeInBytes)
		assert.Equal(t, 100, f.MetaData.Width)

		_, err := os.Stat(filepath.Join(s.root, filepath.FromSlash(res.UploadKey)))
		assert.NoError(t, err)
	})

	t.Run("serve", func(t *testing.T) {
		w := s.do(t, "alice", http.MethodGet, "/api/files/"+res.FileID+"/serve", nil, nil)
		require.Equal(t, http.StatusOK, w.Code)

		assert.Equal(t, content, w.Body.Bytes())
		assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
		assert.Equal(t, "attachment; filename=holiday.png", w.Header().Get("Content-Disposition"))
	})

	t.Run("download", func(t *testing.T) {
		body := `{"file_id":"` + res.FileID + `"}`
		w := s.do(t, "alice", http.MethodPost, "/api/files/download", strings.NewReader(body), http.Header{
			"Content-Type": {"application/json"},
		})
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, content, w.Body.Bytes())
	})

	t.Run("download with allow list", func(t *testing.T) {
		body := `{"file_id":"` + res.FileID + `","allowed_types":["application/pdf"]}`
		w := s.do(t, "alice", http.MethodPost, "/api/files/download", strings.NewReader(body), http.Header{
			"Content-Type": {"application/json"},
		})
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("url", func(t *testing.T) {
		w := s.do(t, "alice", http.MethodGet, "/api/files/"+res.FileID+"/url", nil, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "https://cdn.example.com/media/"+res.UploadKey, decode[map[string]string](t, w)["url"])
	})

	t.Run("other users can't see it", func(t *testing.T) {
		for _, target := range []string{"/api/files/" + res.FileID, "/api/files/" + res.FileID + "/serve"} {
			w := s.do(t, "bob", http.MethodGet, target, nil, nil)
			assert.Equal(t, http.StatusNotFound, w.Code, target)
		}

		w := s.do(t, "bob", http.MethodGet, "/api/files/"+res.FileID+"/owns", nil, nil)
		assert.Equal(t, http.StatusForbidden, w.Code)

		w = s.do(t, "alice", http.MethodGet, "/api/files/"+res.FileID+"/owns", nil, nil)
		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestUploadRawBody(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, "alice", http.MethodPost, "/api/files/upload?filename=notes.txt", strings.NewReader("hello"), http.Header{
		"Content-Type": {"text/plain"},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	res := decode[uploadResponse](t, w)

	f, err := s.deps.Catalog.Get(context.Background(), res.FileID)
	require.NoError(t, err)
	assert.Equal(t, "notes.txt", f.OriginName)
	assert.Equal(t, int64(5), f.MetaData.FilesizeInBytes)

	t.Run("filename header", func(t *testing.T) {
		w := s.do(t, "alice", http.MethodPost, "/api/files/upload", strings.NewReader("a,b"), http.Header{
			"X-Filename": {"data.csv"},
		})
		assert.Equal(t, http.StatusCreated, w.Code)
	})

	t.Run("username can't escape its namespace", func(t *testing.T) {
		w := s.do(t, "", http.MethodPost, "/api/files/upload?filename=notes.txt", strings.NewReader("hello"), http.Header{
			"Authorization": {"Bearer " + token(t, "id-mallory", "mallory/../alice")},
		})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

		res := decode[uploadResponse](t, w)
		assert.True(t, strings.HasPrefix(res.UploadKey, "id-mallory/"), res.UploadKey)
	})

	t.Run("huge soft limit", func(t *testing.T) {
		w := s.do(t, "alice", http.MethodPost, "/api/files/upload?filename=notes.txt&size_soft_limit_mb=9223372036855", strings.NewReader("hello"), nil)
		assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	})

	t.Run("no filename", func(t *testing.T) {
		w := s.do(t, "alice", http.MethodPost, "/api/files/upload", strings.NewReader("hello"), nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestUploadRejected(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name     string
		filename string
		content  []byte
		fields   map[string]string
		code     int
	}{
		{"type mismatch", "pic.png", pngBytes(t, 10, 10), map[string]string{"file_type": "image/jpeg"}, http.StatusBadRequest},
		{"unknown extension", "archive.xyz", []byte("data"), nil, http.StatusBadRequest},
		{"soft limit", "notes.txt", []byte("hello"), map[string]string{"size_soft_limit_mb": "0"}, http.StatusRequestEntityTooLarge},
		{"bad soft limit", "notes.txt", []byte("hello"), map[string]string{"size_soft_limit_mb": "lots"}, http.StatusBadRequest},
		{"hard limit", "big.txt", bytes.Repeat([]byte("a"), validators.BytesPerMB+1), nil, http.StatusRequestEntityTooLarge},
		{"dimensions", "wide.png", pngBytes(t, 201, 10), nil, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.upload(t, "alice", tt.filename, tt.content, tt.fields)
			assert.Equal(t, tt.code, w.Code, w.Body.String())
			assert.Contains(t, w.Body.String(), "requestID")
		})
	}

	t.Run("nothing was stored", func(t *testing.T) {
		files, err := s.deps.Catalog.List(context.Background(), catalog.ListFilter{})
		require.NoError(t, err)
		assert.Empty(t, files)
	})

	t.Run("unauthenticated", func(t *testing.T) {
		w := s.upload(t, "", "notes.txt", []byte("hello"), nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("body over the request limit", func(t *testing.T) {
		w := s.do(t, "alice", http.MethodPost, "/api/files/upload?filename=big.txt", bytes.NewReader(make([]byte, 3*validators.BytesPerMB)), nil)
		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	})
}

func TestListEditDelete(t *testing.T) {
	s := newTestServer(t)

	var ids []string
	for _, name := range []string{"first.txt", "second.txt", "third.txt"} {
		w := s.upload(t, "alice", name, []byte(name), nil)
		require.Equal(t, http.StatusCreated, w.Code)
		ids = append(ids, decode[uploadResponse](t, w).FileID)

		// keep creation times apart so the newest first order is stable
		time.Sleep(2 * time.Millisecond)
	}

	w := s.upload(t, "bob", "bob.txt", []byte("bob"), nil)
	require.Equal(t, http.StatusCreated, w.Code)

	list := func(t *testing.T, query string) []model.File {
		w := s.do(t, "alice", http.MethodGet, "/api/files"+query, nil, nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		return decode[[]model.File](t, w)
	}

	names := func(files []model.File) []string {
		out := make([]string, 0, len(files))
		for _, f := range files {
			out = append(out, f.OriginName)
		}
		return out
	}

	t.Run("list", func(t *testing.T) {
		assert.Equal(t, []string{"third.txt", "second.txt", "first.txt"}, names(list(t, "")))
		assert.Equal(t, []string{"second.txt"}, names(list(t, "?query=SECOND")))
		assert.Equal(t, []string{"second.txt"}, names(list(t, "?limit=1&page=1")))

		w := s.do(t, "alice", http.MethodGet, "/api/files?status=gone", nil, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("page bounds", func(t *testing.T) {
		assert.Empty(t, list(t, "?limit=2&page=1000"))

		w := s.do(t, "alice", http.MethodGet, "/api/files?limit=2&page=4611686018427387904", nil, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
	})

	t.Run("edit", func(t *testing.T) {
		w := s.do(t, "alice", http.MethodPatch, "/api/files/"+ids[0], strings.NewReader(`{"title":"Renamed"}`), http.Header{
			"Content-Type": {"application/json"},
		})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		f := decode[model.File](t, w)
		assert.Equal(t, "Renamed", f.Title)
		assert.Equal(t, "A file was uploaded", f.Description)
		assert.True(t, f.ModifiedAt.After(f.CreatedAt))

		w = s.do(t, "alice", http.MethodPut, "/api/files/"+ids[0], strings.NewReader(`{}`), http.Header{
			"Content-Type": {"application/json"},
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)

		w = s.do(t, "alice", http.MethodPatch, "/api/files/"+ids[0], strings.NewReader(`{"status":"archived"}`), http.Header{
			"Content-Type": {"application/json"},
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)

		w = s.do(t, "bob", http.MethodPatch, "/api/files/"+ids[0], strings.NewReader(`{"title":"Mine"}`), http.Header{
			"Content-Type": {"application/json"},
		})
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("delete", func(t *testing.T) {
		w := s.do(t, "alice", http.MethodDelete, "/api/files/"+ids[1], nil, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, model.StatusDeactivated, decode[model.File](t, w).Status)

		// idempotent
		w = s.do(t, "alice", http.MethodDelete, "/api/files/"+ids[1], nil, nil)
		assert.Equal(t, http.StatusOK, w.Code)

		assert.Equal(t, []string{"second.txt"}, names(list(t, "?status=deactivated")))
		assert.Equal(t, []string{"third.txt", "first.txt"}, names(list(t, "?status=active")))

		w = s.do(t, "alice", http.MethodPatch, "/api/files/"+ids[1], strings.NewReader(`{"status":"active"}`), http.Header{
			"Content-Type": {"application/json"},
		})
		assert.Equal(t, http.StatusConflict, w.Code)

		w = s.do(t, "alice", http.MethodDelete, "/api/files/missing", nil, nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t)

	w := s.upload(t, "alice", "notes.txt", []byte("hello"), nil)
	require.Equal(t, http.StatusCreated, w.Code)

	w = s.do(t, "", http.MethodGet, "/metrics", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "http_requests_total")
	assert.Contains(t, w.Body.String(), "file_uploads_total")
}
