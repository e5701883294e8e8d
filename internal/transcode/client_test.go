package transcode_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"vidpress/internal/transcode"
)

func TestRequestOptimizeReturnsAck(t *testing.T) {
	var gotAuth, gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if body["storage_key"] != "videos/clip.mp4" {
			t.Errorf("storage_key = %q", body["storage_key"])
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"stream_asset_id": "stream-9",
			"accepted":        true,
		})
	}))
	defer server.Close()

	client, err := transcode.New(transcode.Config{
		BaseURL:    server.URL,
		APIKey:     "secret",
		HTTPClient: server.Client(),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ack, err := client.RequestOptimize(context.Background(), "videos/clip.mp4", "video/mp4")
	if err != nil {
		t.Fatalf("RequestOptimize: %v", err)
	}
	if ack.StreamAssetID != "stream-9" || !ack.Accepted {
		t.Fatalf("ack = %+v", ack)
	}
	if gotAuth != "Bearer secret" {
		t.Fatalf("authorization = %q", gotAuth)
	}
	if gotPath != "/v1/optimize" {
		t.Fatalf("path = %q", gotPath)
	}
}

func TestRequestOptimizeRejectsMissingAssetID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"accepted": true})
	}))
	defer server.Close()

	client, err := transcode.New(transcode.Config{BaseURL: server.URL, HTTPClient: server.Client()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := client.RequestOptimize(context.Background(), "k", "video/mp4"); err == nil {
		t.Fatal("expected error for response missing stream asset id")
	}
}

func TestSetThumbnailTimestampSurfacesServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "asset not found", http.StatusNotFound)
	}))
	defer server.Close()

	client, err := transcode.New(transcode.Config{BaseURL: server.URL, HTTPClient: server.Client()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := client.SetThumbnailTimestamp(context.Background(), "stream-9", 12.5); err == nil {
		t.Fatal("expected error from 404 response")
	}
}

func TestResolvePlaybackURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/assets/stream-9/playback" {
			t.Errorf("path = %q", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(map[string]string{
			"playback_url": "https://cdn.example/stream-9/master.m3u8",
		})
	}))
	defer server.Close()

	client, err := transcode.New(transcode.Config{BaseURL: server.URL, HTTPClient: server.Client()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	got, err := client.ResolvePlaybackURL(context.Background(), "stream-9")
	if err != nil {
		t.Fatalf("ResolvePlaybackURL: %v", err)
	}
	if got != "https://cdn.example/stream-9/master.m3u8" {
		t.Fatalf("url = %q", got)
	}
}

func TestDefaultThumbnailURL(t *testing.T) {
	client, err := transcode.New(transcode.Config{BaseURL: "https://vod.example.com/"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	got := client.DefaultThumbnailURL("stream-9")
	want := "https://vod.example.com/v1/assets/stream-9/thumbnail.jpg"
	if got != want {
		t.Fatalf("DefaultThumbnailURL = %q, want %q", got, want)
	}
}

func TestNewValidatesBaseURL(t *testing.T) {
	if _, err := transcode.New(transcode.Config{}); err == nil {
		t.Fatal("expected error for empty base URL")
	}
	if _, err := transcode.New(transcode.Config{BaseURL: "not a url"}); err == nil {
		t.Fatal("expected error for malformed base URL")
	}
}
