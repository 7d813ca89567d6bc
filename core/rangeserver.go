package core

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
)

// RangeBlobServer is the HTTP gateway that serves blobs by range to
// browsers, with an exact byte-range contract so partial media playback
// and resumable downloads work against it directly.
type RangeBlobServer struct {
	blobs BlobStore
	log   *logrus.Entry
}

func NewRangeBlobServer(blobs BlobStore, log *logrus.Logger) *RangeBlobServer {
	return &RangeBlobServer{blobs: blobs, log: log.WithField("component", "rangeserver")}
}

// Routes mounts GET /{collectionHash}/{path...} on r.
func (s *RangeBlobServer) Routes(r chi.Router) {
	r.Get("/{collectionHash}/*", s.serveFile)
}

func (s *RangeBlobServer) serveFile(w http.ResponseWriter, r *http.Request) {
	collHashHex := chi.URLParam(r, "collectionHash")
	path := strings.TrimPrefix(chi.URLParam(r, "*"), "/")

	collHash, err := decodeHashHex(collHashHex)
	if err != nil {
		http.Error(w, "invalid collection hash", http.StatusBadRequest)
		return
	}
	coll, err := FetchCollection(r.Context(), s.blobs, collHash)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	fileHash, ok := coll.Lookup(path)
	if !ok {
		http.NotFound(w, r)
		return
	}
	size, err := s.blobs.Size(r.Context(), fileHash)
	if err != nil {
		http.Error(w, "size lookup failed", http.StatusInternalServerError)
		return
	}

	start, end, partial, err := parseRange(r.Header.Get("Range"), size)
	if err != nil {
		w.Header().Set("Content-Range", "bytes */"+strconv.FormatInt(size, 10))
		http.Error(w, err.Error(), http.StatusRequestedRangeNotSatisfiable)
		return
	}

	var data []byte
	if partial {
		data, err = s.blobs.GetRange(r.Context(), fileHash, start, end-start+1)
	} else {
		data, err = s.blobs.Get(r.Context(), fileHash)
	}
	if err != nil {
		http.Error(w, "fetch failed", http.StatusInternalServerError)
		return
	}

	if active != nil {
		active.BlobBytesServed.Add(float64(len(data)))
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Accept-Ranges", "bytes")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	if partial {
		w.Header().Set("Content-Range", "bytes "+strconv.FormatInt(start, 10)+"-"+strconv.FormatInt(end, 10)+"/"+strconv.FormatInt(size, 10))
		w.WriteHeader(http.StatusPartialContent)
	}
	w.Write(data)
}

// parseRange supports a single "bytes=start-end" range. Absence of a Range
// header serves the whole file.
func parseRange(header string, size int64) (start, end int64, partial bool, err error) {
	if header == "" {
		return 0, size - 1, false, nil
	}
	spec := strings.TrimPrefix(header, "bytes=")
	parts := strings.SplitN(spec, "-", 2)
	if len(parts) != 2 {
		return 0, 0, false, NewError(ErrValidation, "malformed range header %q", header)
	}
	start, err1 := strconv.ParseInt(parts[0], 10, 64)
	end, err2 := strconv.ParseInt(parts[1], 10, 64)
	if err1 != nil || err2 != nil || start > end || end >= size {
		return 0, 0, false, NewError(ErrValidation, "unsatisfiable range %q for size %d", header, size)
	}
	return start, end, true, nil
}
