package httpapi

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"breeze/internal/engine"
	"breeze/internal/metrics"
)

func (s *Server) handleNew(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		http.Error(w, "missing required query parameter: name", http.StatusBadRequest)
		return
	}

	if s.uploadKey != "" && r.URL.Query().Get("key") != s.uploadKey {
		http.Error(w, "invalid or missing upload key", http.StatusForbidden)
		return
	}

	var lifetime *time.Duration
	if lastfor := r.URL.Query().Get("lastfor"); lastfor != "" {
		secs, err := strconv.ParseInt(lastfor, 10, 64)
		if err != nil || secs < 0 {
			http.Error(w, "invalid lastfor parameter", http.StatusBadRequest)
			return
		}
		d := time.Duration(secs) * time.Second
		lifetime = &d
	}

	keepExif, _ := strconv.ParseBool(r.URL.Query().Get("keepexif"))

	ext := deriveExt(name)

	result, err := s.engine.Process(ext, r.ContentLength, r.Body, lifetime, keepExif)
	if err != nil {
		s.errorLogger.Printf("upload %q failed: %v", name, err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	switch result.Kind {
	case engine.ProcessUploadTooLarge:
		http.Error(w, "upload too large", http.StatusRequestEntityTooLarge)
	case engine.ProcessTemporaryUploadTooLarge:
		http.Error(w, "temporary upload too large for the cache", http.StatusRequestEntityTooLarge)
	case engine.ProcessTemporaryUploadLifetimeTooLong:
		http.Error(w, "requested lifetime exceeds the configured maximum", http.StatusBadRequest)
	case engine.ProcessSuccess:
		metrics.Uploads.Inc()
		body := result.URL
		if result.DeletionURL != "" {
			body = result.URL + "\n" + result.DeletionURL
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprintln(w, body)
	}
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	rangeHeader := r.Header.Get("Range")

	result, err := s.engine.Get(name, rangeHeader)
	if err != nil {
		s.errorLogger.Printf("get %q failed: %v", name, err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	switch result.Kind {
	case engine.GetNotFound:
		metrics.CacheMisses.Inc()
		http.Error(w, "not found", http.StatusNotFound)
		return
	case engine.GetRangeNotSatisfiable:
		http.Error(w, "range not satisfiable", http.StatusRequestedRangeNotSatisfiable)
		return
	}

	metrics.CacheHits.Inc()

	w.Header().Set("Accept-Ranges", "bytes")
	w.Header().Del("Content-Type")

	partial := rangeHeader != ""

	switch data := result.Data.(type) {
	case engine.CacheData:
		w.Header().Set("Content-Length", strconv.Itoa(len(data.Bytes)))
		if partial {
			w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", result.Start, result.End, result.FullLen))
			w.WriteHeader(http.StatusPartialContent)
		}
		w.Write(data.Bytes)

	case engine.DiskData:
		defer data.Reader.Close()
		w.Header().Set("Content-Length", strconv.FormatInt(data.Len, 10))
		if partial {
			w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", result.Start, result.End, result.FullLen))
			w.WriteHeader(http.StatusPartialContent)
		}
		io.Copy(w, data.Reader)
	}
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	name := q.Get("name")
	if name == "" {
		http.Error(w, "missing required query parameter: name", http.StatusBadRequest)
		return
	}

	result := s.verifier.Verify(s.engine, name, q.Get("hash"), q.Get("hmac"))
	if result.Code == http.StatusOK {
		s.engine.DecrementUploadCount()
		metrics.Deletions.Inc()
	}

	w.WriteHeader(result.Code)
	fmt.Fprintln(w, result.Message)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprint(w, s.engine.Motd(s.version))
}

func (s *Server) handleRobots(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprint(w, "User-Agent: *\nDisallow: /p/*\nAllow: /\n")
}
