package api_test

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blobgate/blobgate/pkg/blobgate"
	"github.com/blobgate/blobgate/pkg/blobgate/api"
	"github.com/blobgate/blobgate/pkg/blobgate/filetype"
	"github.com/blobgate/blobgate/pkg/blobgate/repo/memory"
	memorystorage "github.com/blobgate/blobgate/pkg/blobgate/storage/memory"
)

const csvBody = "name,amount,date\na,1,x\nb,2,y\nc,3,z\n"

func setupServer(t *testing.T) *httptest.Server {
	t.Helper()

	repo := memory.New()
	repo.Seed(
		blobgate.Channel{Alias: "mobile"},
		blobgate.Operation{Alias: "utility-payment"},
		blobgate.Bucket{Name: "mobile-payments"},
	)

	svc, err := blobgate.New(
		blobgate.WithRepository(repo),
		blobgate.WithObjectStore(memorystorage.New()),
		blobgate.WithTypeInspector(filetype.NewInspector()),
	)
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Mount("/files", api.NewFilesHandler(svc, nil).Routes())

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func multipartBody(t *testing.T, fieldName, fileName, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(fieldName, fileName)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestUploadAndDownload(t *testing.T) {
	srv := setupServer(t)

	body, contentType := multipartBody(t, "file", "payments.csv", csvBody)
	resp, err := http.Post(srv.URL+"/files/mobile/utility-payment", contentType, body)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var uploaded api.UploadResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&uploaded))
	assert.Equal(t, "mobile-payments", uploaded.Bucket)
	assert.Equal(t, "text/csv", uploaded.ContentType)
	assert.Equal(t, int64(len(csvBody)), uploaded.Size)

	t.Run("download by document id", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/files/" + uploaded.DocumentID)
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "text/csv", resp.Header.Get("Content-Type"))

		data, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.Equal(t, csvBody, string(data))
	})

	t.Run("download by address", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/files/" + uploaded.Bucket + "/" + uploaded.ObjectKey)
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		data, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.Equal(t, csvBody, string(data))
	})
}

func TestUploadErrors(t *testing.T) {
	srv := setupServer(t)

	t.Run("missing file part", func(t *testing.T) {
		body, contentType := multipartBody(t, "wrong", "x.csv", csvBody)
		resp, err := http.Post(srv.URL+"/files/mobile/utility-payment", contentType, body)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("unknown route", func(t *testing.T) {
		body, contentType := multipartBody(t, "file", "x.csv", csvBody)
		resp, err := http.Post(srv.URL+"/files/nope/nope", contentType, body)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("unrecognized content type", func(t *testing.T) {
		body, contentType := multipartBody(t, "file", "tool.bin", "\x00\x01\x02\x03\x04")
		resp, err := http.Post(srv.URL+"/files/mobile/utility-payment", contentType, body)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusUnsupportedMediaType, resp.StatusCode)
	})
}

func TestDownloadErrors(t *testing.T) {
	srv := setupServer(t)

	t.Run("bad document id", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/files/not-a-uuid")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("unknown document", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/files/00000000-0000-0000-0000-000000000001")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("unknown address", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/files/some-bucket/some-key.pdf")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}
