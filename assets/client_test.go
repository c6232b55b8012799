package assets

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"chartchat/model"
)

var testParams = model.StudyParams{
	ChartType:   model.ChartViolinPlot,
	Dataset:     model.DatasetSimple,
	Modality:    model.ModalityTactile,
	ContentType: model.ContentInstructions,
}

func TestDatasetCSVPath(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte("species,value\nA,1\n"))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, time.Second)
	csv, err := client.DatasetCSV(context.Background(), testParams)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if csv != "species,value\nA,1\n" {
		t.Errorf("unexpected body: %q", csv)
	}
	if gotPath != "/data/violin-plot_simple.csv" {
		t.Errorf("unexpected path: %q", gotPath)
	}
}

func TestViewerContentPaths(t *testing.T) {
	tests := []struct {
		name        string
		contentType model.ContentType
		wantPath    string
	}{
		{"instructions mode", model.ContentInstructions, "/instructions/violin-plot_instructions_tactile.md"},
		{"alt-text mode", model.ContentAltText, "/alt-text/violin-plot_simple.md"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotPath string
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotPath = r.URL.Path
				w.Write([]byte("# Instructions"))
			}))
			defer srv.Close()

			params := testParams
			params.ContentType = tt.contentType

			client := NewClient(srv.URL, time.Second)
			if _, err := client.ViewerContent(context.Background(), params); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if gotPath != tt.wantPath {
				t.Errorf("path: got %q, want %q", gotPath, tt.wantPath)
			}
		})
	}
}

func TestFetchErrorOnBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, time.Second)
	_, err := client.DatasetCSV(context.Background(), testParams)
	if err == nil {
		t.Fatal("expected error for 404 response")
	}

	var fetchErr *FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("expected *FetchError, got %T", err)
	}
	if fetchErr.StatusCode != http.StatusNotFound {
		t.Errorf("status: got %d, want %d", fetchErr.StatusCode, http.StatusNotFound)
	}
}

func TestFetchErrorOnUnreachableServer(t *testing.T) {
	client := NewClient("http://127.0.0.1:1", 200*time.Millisecond)
	_, err := client.DatasetCSV(context.Background(), testParams)
	if err == nil {
		t.Fatal("expected error for unreachable server")
	}
	var fetchErr *FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("expected *FetchError, got %T", err)
	}
}
