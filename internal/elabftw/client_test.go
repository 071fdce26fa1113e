package elabftw

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient(ClientConfig{
		HostURL: srv.URL + "/api/v2",
		APIKey:  "3-secret",
		Timeout: 5 * time.Second,
	})
	require.NoError(t, err)
	return c
}

func TestNewClientValidation(t *testing.T) {
	_, err := NewClient(ClientConfig{APIKey: "k"})
	assert.Error(t, err)

	_, err = NewClient(ClientConfig{HostURL: "https://elab.example.org/api/v2"})
	assert.Error(t, err)

	c, err := NewClient(ClientConfig{HostURL: "https://elab.example.org/api/v2/", APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, "https://elab.example.org/api/v2/experiments", c.endpoint("experiments"))
}

func TestCreateEntity(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v2/experiments", r.URL.Path)
		assert.Equal(t, "3-secret", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req CreateEntityRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "PCR optimization", req.Title)
		assert.Equal(t, []string{"chemistry", "imported from rspace"}, req.Tags)

		w.Header().Set("Location", "/api/v2/experiments/42")
		w.WriteHeader(http.StatusCreated)
	})

	id, err := c.CreateEntity(context.Background(), TypeExperiments, CreateEntityRequest{
		Title: "PCR optimization",
		Tags:  []string{"chemistry", "imported from rspace"},
	})
	require.NoError(t, err)
	assert.Equal(t, 42, id)
}

func TestCreateEntityTemplatePath(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v2/experiments_templates", r.URL.Path)
		w.Header().Set("Location", "/api/v2/experiments_templates/7")
		w.WriteHeader(http.StatusCreated)
	})

	id, err := c.CreateEntity(context.Background(), TypeExperimentsTemplates, CreateEntityRequest{Title: "t"})
	require.NoError(t, err)
	assert.Equal(t, 7, id)
}

func TestCreateEntityAPIError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"code": 400, "message": "Bad Request", "description": "title is required"}`)
	})

	_, err := c.CreateEntity(context.Background(), TypeExperiments, CreateEntityRequest{})
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Contains(t, apiErr.Message, "title is required")
}

func TestCreateEntityMissingLocation(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	})

	_, err := c.CreateEntity(context.Background(), TypeExperiments, CreateEntityRequest{Title: "x"})
	assert.ErrorIs(t, err, ErrMissingLocation)
}

func TestPatchEntity(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "/api/v2/experiments/42", r.URL.Path)

		var req PatchEntityRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "<p>hello</p>", req.Body)

		w.WriteHeader(http.StatusOK)
	})

	err := c.PatchEntity(context.Background(), TypeExperiments, 42, PatchEntityRequest{Body: "<p>hello</p>"})
	assert.NoError(t, err)
}

func TestUpload(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v2/experiments/42/uploads", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))

		assert.Equal(t, "gel photo", r.FormValue("comment"))

		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		assert.Equal(t, "gel.png", header.Filename)
		assert.Equal(t, "image/png", header.Header.Get("Content-Type"))

		content, err := io.ReadAll(file)
		require.NoError(t, err)
		assert.Equal(t, "png-bytes", string(content))

		w.Header().Set("Location", "/api/v2/experiments/42/uploads/9")
		w.WriteHeader(http.StatusCreated)
	})

	id, err := c.Upload(context.Background(), TypeExperiments, 42, "gel.png", "gel photo", strings.NewReader("png-bytes"))
	require.NoError(t, err)
	assert.Equal(t, 9, id)
}

func TestUploadWithoutComment(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Empty(t, r.FormValue("comment"))
		w.Header().Set("Location", "/api/v2/experiments/1/uploads/2")
		w.WriteHeader(http.StatusCreated)
	})

	_, err := c.Upload(context.Background(), TypeExperiments, 1, "notes.bin", "", strings.NewReader("x"))
	assert.NoError(t, err)
}

func TestReadUpload(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/v2/experiments/42/uploads/9", r.URL.Path)
		_, _ = io.WriteString(w, `{"id": 9, "real_name": "gel.png", "long_name": "ab/cdef123.png"}`)
	})

	up, err := c.ReadUpload(context.Background(), TypeExperiments, 42, 9)
	require.NoError(t, err)
	assert.Equal(t, 9, up.ID)
	assert.Equal(t, "gel.png", up.RealName)
	assert.Equal(t, "ab/cdef123.png", up.LongName)
}

func TestCurrentUser(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v2/users/me", r.URL.Path)
		_, _ = io.WriteString(w, `{"userid": 3, "fullname": "Ada Lovelace", "email": "ada@example.org"}`)
	})

	u, err := c.CurrentUser(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, u.UserID)
	assert.Equal(t, "Ada Lovelace", u.Fullname)
}

func TestCurrentUserUnauthorized(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"message": "Unauthorized"}`)
	})

	_, err := c.CurrentUser(context.Background())
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
}
