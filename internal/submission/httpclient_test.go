package submission

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPClient_Upload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/uploads", r.URL.Path)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "data:audio/wav;base64,AA==", body["data"])

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"url":"http://media/audio/x.wav"}`))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, time.Second)
	got, err := c.Upload(context.Background(), "data:audio/wav;base64,AA==")
	require.NoError(t, err)
	assert.Equal(t, "http://media/audio/x.wav", got)
}

func TestHTTPClient_UploadError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusRequestEntityTooLarge)
		_, _ = w.Write([]byte(`{"error":"upload too large"}`))
	}))
	defer srv.Close()

	_, err := NewHTTPClient(srv.URL, time.Second).Upload(context.Background(), "data:a;base64,AA==")
	var serr *StatusError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, http.StatusRequestEntityTooLarge, serr.Status)
	assert.Equal(t, "upload too large", serr.Body)
}

func TestHTTPClient_AttachAndDelete(t *testing.T) {
	var calls []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, r.Method+" "+r.URL.Path)
		if r.Method == http.MethodPut {
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "http://media/a.wav", body["audioUrl"])
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, time.Second)
	require.NoError(t, c.AttachAudio(context.Background(), "l1", "http://media/a.wav"))
	require.NoError(t, c.DeleteAudio(context.Background(), "l1"))
	assert.Equal(t, []string{"PUT /lessons/l1/audio", "DELETE /lessons/l1/audio"}, calls)
}

func TestHTTPClient_DeleteNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"lesson not found"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	err := NewHTTPClient(srv.URL, time.Second).DeleteAudio(context.Background(), "nope")
	var serr *StatusError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, http.StatusNotFound, serr.Status)
}
