package assets

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpload(t *testing.T) {
	var gotMethod, gotPath, gotType string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
	}))
	defer srv.Close()

	err := New(srv.URL + "/").Upload(context.Background(), "map", "Kobra_7.map", []byte("DATA"))
	require.NoError(t, err)

	assert.Equal(t, http.MethodPut, gotMethod)
	assert.Equal(t, "/map/Kobra_7.map", gotPath)
	assert.Equal(t, "application/octet-stream", gotType)
	assert.Equal(t, []byte("DATA"), gotBody)
}

func TestUpload_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "disk full", http.StatusInsufficientStorage)
	}))
	defer srv.Close()

	err := New(srv.URL).Upload(context.Background(), "map", "Kobra_7.map", []byte("DATA"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}

func TestDelete_ToleratesNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	assert.NoError(t, New(srv.URL).Delete(context.Background(), "Kobra_7.map"))
}

func TestDelete_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer srv.Close()

	assert.Error(t, New(srv.URL).Delete(context.Background(), "Kobra_7.map"))
}
