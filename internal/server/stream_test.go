package server

import (
	"bufio"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"gocv.io/x/gocv"
)

func TestFrameBuffer_PublishJPEG(t *testing.T) {
	b := NewFrameBuffer()

	data, seq, next := b.Latest()
	if data != nil || seq != 0 {
		t.Fatalf("new buffer = (%v, %d), want empty", data, seq)
	}

	src := []byte{0xff, 0xd8, 0x01}
	b.PublishJPEG(src)
	src[2] = 0x02

	select {
	case <-next:
	default:
		t.Fatal("publish should wake waiters")
	}

	data, seq, _ = b.Latest()
	if seq != 1 {
		t.Errorf("seq = %d, want 1", seq)
	}
	if string(data) != "\xff\xd8\x01" {
		t.Errorf("buffer should keep its own copy, got %x", data)
	}
}

func TestFrameBuffer_Publish(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	b := NewFrameBuffer()

	empty := gocv.NewMat()
	defer empty.Close()
	if err := b.Publish(&empty); err == nil {
		t.Error("Publish(empty) should fail")
	}

	frame := gocv.NewMatWithSize(48, 64, gocv.MatTypeCV8UC3)
	defer frame.Close()
	if err := b.Publish(&frame); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	data, _, _ := b.Latest()
	if len(data) < 2 || data[0] != 0xff || data[1] != 0xd8 {
		t.Errorf("published data is not a JPEG")
	}
}

func TestStreamHandler(t *testing.T) {
	frames := NewFrameBuffer()
	ts := httptest.NewServer(NewStreamHandler(frames, 0))
	defer ts.Close()

	frames.PublishJPEG([]byte("first"))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL, nil)
	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("GET stream error = %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "multipart/x-mixed-replace; boundary=frame" {
		t.Errorf("Content-Type = %q", ct)
	}

	r := bufio.NewReader(resp.Body)
	part := readPart(t, r)
	if part != "first" {
		t.Errorf("part = %q, want %q", part, "first")
	}

	frames.PublishJPEG([]byte("second"))
	if part := readPart(t, r); part != "second" {
		t.Errorf("part = %q, want %q", part, "second")
	}
}

func TestStreamHandler_MethodNotAllowed(t *testing.T) {
	h := NewStreamHandler(NewFrameBuffer(), 0)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/stream", nil))

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected status %d, got %d", http.StatusMethodNotAllowed, rec.Code)
	}
}

func readPart(t *testing.T, r *bufio.Reader) string {
	t.Helper()

	var length int
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			t.Fatalf("reading part header: %v", err)
		}
		line = strings.TrimRight(line, "\r\n")
		if strings.HasPrefix(line, "Content-Length: ") {
			n, err := strconv.Atoi(strings.TrimPrefix(line, "Content-Length: "))
			if err != nil {
				t.Fatalf("bad Content-Length: %v", err)
			}
			length = n
		}
		if line == "" && length > 0 {
			break
		}
	}

	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		t.Fatalf("reading part body: %v", err)
	}
	return string(body)
}
