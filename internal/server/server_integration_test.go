package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/ayusman/roadpilot/internal/logger"
	"github.com/ayusman/roadpilot/internal/store"
)

func TestAPI_SessionWorkflow(t *testing.T) {
	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	defer s.Close()

	sess := &store.Session{Mode: "drive", Source: "YouTube.mp4", SpeedLimit: 40}
	if err := s.Sessions().Create(sess); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	for i := 1; i <= 3; i++ {
		if err := s.Frames().Add(&store.Frame{SessionID: sess.ID, Seq: i, Speed: 40, SpeedLimit: 40}); err != nil {
			t.Fatalf("Add() error = %v", err)
		}
	}

	srv := New(Config{Store: s, Logger: logger.Discard()})
	ts := httptest.NewServer(srv)
	defer ts.Close()

	client := ts.Client()

	// 1. List sessions
	resp, err := client.Get(ts.URL + "/api/sessions")
	if err != nil {
		t.Fatalf("GET /api/sessions error = %v", err)
	}
	var listed struct {
		Sessions []struct {
			ID     string `json:"id"`
			Frames int    `json:"frames"`
		} `json:"sessions"`
	}
	json.NewDecoder(resp.Body).Decode(&listed)
	resp.Body.Close()

	if len(listed.Sessions) != 1 || listed.Sessions[0].Frames != 3 {
		t.Fatalf("listed = %+v", listed)
	}

	// 2. Frames
	resp, _ = client.Get(ts.URL + "/api/sessions/" + sess.ID + "/frames")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET frames status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	var frames struct {
		Frames []struct {
			Seq   int `json:"seq"`
			Speed int `json:"speed"`
		} `json:"frames"`
	}
	json.NewDecoder(resp.Body).Decode(&frames)
	resp.Body.Close()
	if len(frames.Frames) != 3 || frames.Frames[2].Seq != 3 {
		t.Errorf("frames = %+v", frames.Frames)
	}

	// 3. Delete
	req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/api/sessions/"+sess.ID, nil)
	resp, _ = client.Do(req)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("DELETE status = %d, want %d", resp.StatusCode, http.StatusNoContent)
	}
	resp.Body.Close()

	// 4. Verify deleted
	resp, _ = client.Get(ts.URL + "/api/sessions/" + sess.ID)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("GET after delete status = %d, want %d", resp.StatusCode, http.StatusNotFound)
	}
	resp.Body.Close()
}

func TestServer_Run(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := l.Addr().String()
	l.Close()

	frames := NewFrameBuffer()
	frames.PublishJPEG([]byte("jpeg"))
	srv := New(Config{Frames: frames, Hub: NewStateHub(logger.Discard()), Logger: logger.Discard()})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx, addr) }()

	var resp *http.Response
	for i := 0; i < 50; i++ {
		resp, err = http.Get("http://" + addr + "/api/health")
		if err == nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("server never came up: %v", err)
	}
	resp.Body.Close()

	// An open stream must not hold up shutdown.
	stream, err := http.Get("http://" + addr + "/api/stream")
	if err != nil {
		t.Fatalf("GET stream error = %v", err)
	}
	defer stream.Body.Close()

	cancel()

	select {
	case err := <-done:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			t.Errorf("Run() error = %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}
}
