package core_test

import (
	"context"
	"encoding/hex"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/b5/squiggle/core"
)

func serveCollection(t *testing.T) (string, [32]byte) {
	t.Helper()
	store, err := core.NewLocalBlobStore(t.TempDir())
	if err != nil {
		t.Fatalf("new local blob store: %v", err)
	}
	fileHash, err := store.Put(context.Background(), []byte("0123456789"))
	if err != nil {
		t.Fatalf("put file: %v", err)
	}
	coll := core.Collection{{Name: "data.bin", Hash: fileHash}}
	collHash, err := core.PutCollection(context.Background(), store, coll)
	if err != nil {
		t.Fatalf("put collection: %v", err)
	}

	router := chi.NewRouter()
	core.NewRangeBlobServer(store, newTestLogger()).Routes(router)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv.URL, collHash
}

func TestRangeBlobServerServesWholeFileWithoutRangeHeader(t *testing.T) {
	base, collHash := serveCollection(t)

	resp, err := http.Get(base + "/" + hex.EncodeToString(collHash[:]) + "/data.bin")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if string(body) != "0123456789" {
		t.Fatalf("body = %q", body)
	}
}

func TestRangeBlobServerServesPartialContent(t *testing.T) {
	base, collHash := serveCollection(t)

	req, err := http.NewRequest(http.MethodGet, base+"/"+hex.EncodeToString(collHash[:])+"/data.bin", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Range", "bytes=2-5")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusPartialContent {
		t.Fatalf("status = %d, want 206", resp.StatusCode)
	}
	if got := resp.Header.Get("Content-Range"); got != "bytes 2-5/10" {
		t.Fatalf("Content-Range = %q", got)
	}
	body, _ := io.ReadAll(resp.Body)
	if string(body) != "2345" {
		t.Fatalf("body = %q, want %q", body, "2345")
	}
}

func TestRangeBlobServerRejectsUnsatisfiableRange(t *testing.T) {
	base, collHash := serveCollection(t)

	req, err := http.NewRequest(http.MethodGet, base+"/"+hex.EncodeToString(collHash[:])+"/data.bin", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Range", "bytes=50-60")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusRequestedRangeNotSatisfiable {
		t.Fatalf("status = %d, want 416", resp.StatusCode)
	}
	if got := resp.Header.Get("Content-Range"); got != "bytes */10" {
		t.Fatalf("Content-Range = %q", got)
	}
}

func TestRangeBlobServerUnknownFileIs404(t *testing.T) {
	base, collHash := serveCollection(t)

	resp, err := http.Get(base + "/" + hex.EncodeToString(collHash[:]) + "/missing.bin")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

