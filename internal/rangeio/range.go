// Package rangeio resolves an HTTP Range request header against a known
// content length.
//
// The stdlib parser that backs http.ServeContent is unexported, so a single
// "bytes=start-end" range is parsed by hand here; this server only ever
// needs to satisfy the first range of a request.
package rangeio

import (
	"strconv"
	"strings"
)

// Range is an inclusive byte range.
type Range struct {
	Start, End int64
}

// Resolve parses header (the raw value of a Range request header, or "" if
// absent) against fullLen. With no header, it returns the whole entity. It
// reports false if the range is not satisfiable: end beyond the last valid
// byte, or start after end.
func Resolve(header string, fullLen int64) (Range, bool) {
	if header == "" {
		return Range{0, fullLen - 1}, true
	}

	spec, ok := strings.CutPrefix(header, "bytes=")
	if !ok {
		return Range{}, false
	}

	// Only the first range in a (possibly multi-range) request is honored.
	spec = strings.TrimSpace(strings.Split(spec, ",")[0])

	parts := strings.SplitN(spec, "-", 2)
	if len(parts) != 2 {
		return Range{}, false
	}

	startStr, endStr := strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])

	var start, end int64
	var err error

	switch {
	case startStr == "" && endStr == "":
		return Range{}, false

	case startStr == "":
		// Suffix range: last N bytes.
		var n int64
		n, err = strconv.ParseInt(endStr, 10, 64)
		if err != nil || n < 0 {
			return Range{}, false
		}
		if n > fullLen {
			n = fullLen
		}
		start = fullLen - n
		end = fullLen - 1

	case endStr == "":
		start, err = strconv.ParseInt(startStr, 10, 64)
		if err != nil || start < 0 {
			return Range{}, false
		}
		end = fullLen - 1

	default:
		start, err = strconv.ParseInt(startStr, 10, 64)
		if err != nil || start < 0 {
			return Range{}, false
		}
		end, err = strconv.ParseInt(endStr, 10, 64)
		if err != nil {
			return Range{}, false
		}
	}

	if end > fullLen-1 || start > end {
		return Range{}, false
	}

	return Range{Start: start, End: end}, true
}
