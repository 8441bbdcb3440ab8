// Package engine orchestrates upload ingestion, retrieval, removal, and
// deletion-hash lookup across the cache and disk tiers. It is the
// collaborator-facing core the HTTP layer drives.
package engine

import (
	"crypto/rand"
	"fmt"
	"io"
	"net/url"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"breeze/internal/cache"
	"breeze/internal/diskstore"
	"breeze/internal/exifstrip"
	"breeze/internal/hashsum"
	"breeze/internal/rangeio"
)

// Logger is designed to be satisfied by log.Logger.
type Logger interface {
	Printf(format string, v ...interface{})
}

// Error is a structured error carrying the HTTP status it should surface as.
type Error struct {
	Code int
	Text string
}

func (e *Error) Error() string { return e.Text }

func internalErr(err error) *Error {
	return &Error{Code: 500, Text: err.Error()}
}

// Config is the Engine's immutable configuration, assembled from the TOML
// config file.
type Config struct {
	BaseURL         string
	UploadKey       string
	DeletionSecret  string
	MaxUploadLen    *int64 // nil means unlimited
	MaxTempLifetime time.Duration
	MaxStripLen     int64
	Motd            string
}

const savedNameLen = 6
const savedNameAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Engine is the storage orchestrator: cache + disk + deletion capability
// minting.
type Engine struct {
	cfg    Config
	cache  *cache.Cache
	disk   *diskstore.Disk
	logger Logger

	uplCount    atomic.Int64
	deletionKey []byte // nil disables deletion
}

// New constructs an Engine, seeding its permanent-upload counter by
// counting the files already present on disk.
func New(cfg Config, c *cache.Cache, d *diskstore.Disk, logger Logger) (*Engine, error) {
	e := &Engine{cfg: cfg, cache: c, disk: d, logger: logger}

	n, err := d.Count()
	if err != nil {
		return nil, fmt.Errorf("counting existing uploads: %w", err)
	}
	e.uplCount.Store(int64(n))

	if cfg.DeletionSecret != "" {
		e.deletionKey = []byte(cfg.DeletionSecret)
	}

	return e, nil
}

// DeletionEnabled reports whether this Engine was configured with a
// deletion secret.
func (e *Engine) DeletionEnabled() bool { return e.deletionKey != nil }

// UploadCount returns the current advisory count of permanent uploads.
func (e *Engine) UploadCount() int64 { return e.uplCount.Load() }

// UploadData is the payload half of a GetResult: either an in-memory slice
// or a length-limited disk stream positioned at the start of the range.
type UploadData interface {
	isUploadData()
}

// CacheData is the in-memory branch of UploadData.
type CacheData struct {
	Bytes []byte
}

func (CacheData) isUploadData() {}

// DiskData is the on-disk branch of UploadData: a reader bounded to Len
// bytes, already seeked to the range's start.
type DiskData struct {
	Reader io.ReadCloser
	Len    int64
}

func (DiskData) isUploadData() {}

// GetKind identifies which branch of GetResult is populated.
type GetKind int

const (
	GetSuccess GetKind = iota
	GetNotFound
	GetRangeNotSatisfiable
)

// GetResult is the outcome of Engine.Get.
type GetResult struct {
	Kind    GetKind
	FullLen int64
	Start   int64
	End     int64
	Data    UploadData
}

type limitedReadCloser struct {
	io.Reader
	io.Closer
}

// Get resolves name (optionally scoped to rangeHeader) against the cache,
// falling back to disk on a miss. A disk hit small enough to satisfy
// WillUse is read fully into memory and cached for subsequent reads.
func (e *Engine) Get(name, rangeHeader string) (GetResult, error) {
	if payload, ok := e.cache.Get(name); ok {
		r, ok := rangeio.Resolve(rangeHeader, int64(len(payload)))
		if !ok {
			return GetResult{Kind: GetRangeNotSatisfiable}, nil
		}
		return GetResult{
			Kind:    GetSuccess,
			FullLen: int64(len(payload)),
			Start:   r.Start,
			End:     r.End,
			Data:    CacheData{Bytes: payload[r.Start : r.End+1]},
		}, nil
	}

	f, err := e.disk.Open(name)
	if err != nil {
		return GetResult{}, internalErr(err)
	}
	if f == nil {
		return GetResult{Kind: GetNotFound}, nil
	}

	fullLen, err := e.disk.Len(f)
	if err != nil {
		f.Close()
		return GetResult{}, internalErr(err)
	}

	if e.cache.WillUse(fullLen) {
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return GetResult{}, internalErr(err)
		}
		e.cache.Add(name, data)

		r, ok := rangeio.Resolve(rangeHeader, int64(len(data)))
		if !ok {
			return GetResult{Kind: GetRangeNotSatisfiable}, nil
		}
		return GetResult{
			Kind:    GetSuccess,
			FullLen: int64(len(data)),
			Start:   r.Start,
			End:     r.End,
			Data:    CacheData{Bytes: data[r.Start : r.End+1]},
		}, nil
	}

	r, ok := rangeio.Resolve(rangeHeader, fullLen)
	if !ok {
		f.Close()
		return GetResult{Kind: GetRangeNotSatisfiable}, nil
	}

	if _, err := f.Seek(r.Start, io.SeekStart); err != nil {
		f.Close()
		return GetResult{}, internalErr(err)
	}

	return GetResult{
		Kind:    GetSuccess,
		FullLen: fullLen,
		Start:   r.Start,
		End:     r.End,
		Data:    DiskData{Reader: limitedReadCloser{io.LimitReader(f, r.End-r.Start+1), f}, Len: r.End - r.Start + 1},
	}, nil
}

// Save streams stream into the cache buffer, the disk writer, and the
// deletion-hash sample in parallel, per-chunk, honoring the coalesce-and-
// strip rule for eligible images. It returns the deletion-hash sample and
// the observed upload length.
func (e *Engine) Save(name, ext string, providedLen int64, useCache bool, stream io.Reader, lifetime *time.Duration, keepExif bool) (sample []byte, observedLen int64, err error) {
	var buf []byte
	if useCache {
		if providedLen > 0 {
			buf = make([]byte, 0, providedLen)
		} else {
			buf = make([]byte, 0)
		}
	}

	var sink *diskstore.ChunkSink
	permanent := lifetime == nil
	if permanent {
		sink = e.disk.StartSave(name)
	}

	coalesce := useCache && exifstrip.Eligible(useCache, ext, keepExif, providedLen, e.cfg.MaxStripLen)

	sampleAcc := hashsum.NewSample()
	chunk := make([]byte, 32*1024)

	for {
		n, rerr := stream.Read(chunk)
		if n > 0 {
			data := chunk[:n]

			if !coalesce && sink != nil {
				cp := make([]byte, n)
				copy(cp, data)
				sink.Send(cp)
			}

			sampleAcc.Append(data)
			observedLen += int64(n)

			if useCache {
				if len(buf)+n > cap(buf) {
					// The client's declared Content-Length undershot the
					// actual body. Drop the cache buffer and let disk
					// writing (already happening in parallel, or about to
					// start now if we were still coalescing) carry the
					// rest.
					if coalesce && sink != nil {
						flushed := make([]byte, len(buf))
						copy(flushed, buf)
						sink.Send(flushed)
						cp := make([]byte, n)
						copy(cp, data)
						sink.Send(cp)
						coalesce = false
					}
					buf = nil
					useCache = false
				} else {
					buf = append(buf, data...)
				}
			}
		}

		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			if sink != nil {
				sink.Close()
			}
			return sampleAcc.Bytes(), observedLen, fmt.Errorf("reading upload body: %w", rerr)
		}
	}

	if coalesce {
		stripped := exifstrip.Strip(e.logger, buf)
		if sink != nil {
			sink.Send(stripped)
		}
		buf = stripped
	}

	if sink != nil {
		sink.Close()
	}

	if useCache {
		if lifetime != nil {
			e.cache.AddWithLifetime(name, buf, *lifetime, false)
		} else {
			e.cache.Add(name, buf)
		}
	}

	return sampleAcc.Bytes(), observedLen, nil
}

// ProcessKind identifies the outcome of Process.
type ProcessKind int

const (
	ProcessSuccess ProcessKind = iota
	ProcessUploadTooLarge
	ProcessTemporaryUploadTooLarge
	ProcessTemporaryUploadLifetimeTooLong
)

// ProcessResult is the outcome of Engine.Process.
type ProcessResult struct {
	Kind        ProcessKind
	URL         string
	DeletionURL string
}

// Process runs the full admission-and-save pipeline for a new upload: size
// and lifetime checks, saved-name minting, Save, deletion-URL construction,
// and upload-count bookkeeping.
func (e *Engine) Process(ext string, providedLen int64, stream io.Reader, lifetime *time.Duration, keepExif bool) (ProcessResult, error) {
	if e.cfg.MaxUploadLen != nil && providedLen > *e.cfg.MaxUploadLen {
		return ProcessResult{Kind: ProcessUploadTooLarge}, nil
	}

	useCache := e.cache.WillUse(providedLen)

	if lifetime != nil && !useCache {
		return ProcessResult{Kind: ProcessTemporaryUploadTooLarge}, nil
	}
	if lifetime != nil && *lifetime > e.cfg.MaxTempLifetime {
		return ProcessResult{Kind: ProcessTemporaryUploadLifetimeTooLong}, nil
	}

	name, err := e.genSavedName(ext)
	if err != nil {
		return ProcessResult{}, err
	}

	sample, observedLen, err := e.Save(name, ext, providedLen, useCache, stream, lifetime, keepExif)
	if err != nil {
		e.cleanup(name)
		return ProcessResult{}, err
	}

	result := ProcessResult{Kind: ProcessSuccess, URL: e.cfg.BaseURL + "/p/" + name}

	if e.deletionKey != nil {
		hash := hashsum.Calculate(uint64(observedLen), sample)
		result.DeletionURL = e.buildDeletionURL(name, hash)
	}

	e.uplCount.Add(1)
	return result, nil
}

// cleanup removes a partially-written upload from both tiers concurrently.
func (e *Engine) cleanup(name string) {
	var g errgroup.Group
	g.Go(func() error {
		e.cache.Remove(name)
		return nil
	})
	g.Go(func() error {
		return e.disk.Remove(name)
	})
	if err := g.Wait(); err != nil {
		e.logger.Printf("engine: failed to clean up partial upload %q: %v", name, err)
	}
}

func (e *Engine) genSavedName(ext string) (string, error) {
	for {
		suffix, err := randomAlphanumeric(savedNameLen)
		if err != nil {
			return "", internalErr(err)
		}
		candidate := suffix
		if ext != "" {
			candidate = suffix + "." + ext
		}
		if !e.Has(candidate) {
			return candidate, nil
		}
	}
}

func randomAlphanumeric(n int) (string, error) {
	raw := make([]byte, n)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	out := make([]byte, n)
	for i, b := range raw {
		out[i] = savedNameAlphabet[int(b)%len(savedNameAlphabet)]
	}
	return string(out), nil
}

// Has reports whether name exists in the cache or on disk.
func (e *Engine) Has(name string) bool {
	if e.cache.Has(name) {
		return true
	}
	f, err := e.disk.Open(name)
	if err != nil {
		return false
	}
	if f == nil {
		return false
	}
	f.Close()
	return true
}

// Remove deletes name from both tiers unconditionally.
func (e *Engine) Remove(name string) error {
	e.cache.Remove(name)
	if err := e.disk.Remove(name); err != nil {
		return fmt.Errorf("removing %q from disk: %w", name, err)
	}
	return nil
}

// DecrementUploadCount is called by the deletion handler after a successful
// removal of a permanent upload.
func (e *Engine) DecrementUploadCount() { e.uplCount.Add(-1) }

// GetHash implements the HashRemover contract consumed by the deletion
// token verifier: it returns the deletion hash for name, sourced from
// whichever tier currently holds it.
func (e *Engine) GetHash(name string) (hashsum.Hash, bool, error) {
	if payload, ok := e.cache.Get(name); ok {
		n := hashsum.SampleLen(int64(len(payload)))
		return hashsum.Calculate(uint64(len(payload)), payload[:n]), true, nil
	}

	f, err := e.disk.Open(name)
	if err != nil {
		return hashsum.Hash{}, false, err
	}
	if f == nil {
		return hashsum.Hash{}, false, nil
	}
	defer f.Close()

	size, err := e.disk.Len(f)
	if err != nil {
		return hashsum.Hash{}, false, err
	}

	sample, err := io.ReadAll(io.LimitReader(f, hashsum.SampleWantedBytes))
	if err != nil {
		return hashsum.Hash{}, false, err
	}

	return hashsum.Calculate(uint64(size), sample), true, nil
}

func (e *Engine) buildDeletionURL(name string, hash hashsum.Hash) string {
	hashB64 := base64URL(hash[:])

	mac := newHMAC(e.deletionKey)
	mac.Write([]byte(name))
	mac.Write(hash[:])
	sig := mac.Sum(nil)

	return fmt.Sprintf("%s/del?name=%s&hash=%s&hmac=%s",
		e.cfg.BaseURL, url.QueryEscape(name), hashB64, base64URL(sig))
}

// Motd substitutes the index-page placeholders into the configured MOTD.
func (e *Engine) Motd(version string) string {
	return substitute(e.cfg.Motd, version, e.UploadCount())
}
