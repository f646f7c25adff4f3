package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
)

func TestMarkRead_PostsToReadEndpoint(t *testing.T) {
	var gotMethod, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	api := NewAPI(srv.URL)
	convID := uuid.New()
	if err := api.MarkRead(context.Background(), convID, nil); err != nil {
		t.Fatalf("MarkRead: %v", err)
	}

	if gotMethod != http.MethodPost {
		t.Errorf("method = %s, want POST", gotMethod)
	}
	if want := "/api/v1/conversations/" + convID.String() + "/read"; gotPath != want {
		t.Errorf("path = %s, want %s", gotPath, want)
	}
}

func TestSendMedia_CaptionTravelsAsContentField(t *testing.T) {
	var gotCaption string
	var gotFiles int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			t.Errorf("ParseMultipartForm: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		gotCaption = r.FormValue("content")
		gotFiles = len(r.MultipartForm.File["files"])
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	api := NewAPI(srv.URL)
	files := []MediaFile{{Name: "photo.png", MimeType: "image/png", Bytes: []byte("png")}}
	if _, err := api.SendMedia(context.Background(), uuid.New(), files, "look at this"); err != nil {
		t.Fatalf("SendMedia: %v", err)
	}

	if gotCaption != "look at this" {
		t.Errorf("caption field = %q, want %q", gotCaption, "look at this")
	}
	if gotFiles != 1 {
		t.Errorf("files in form = %d, want 1", gotFiles)
	}
}
