package httpapi

import (
	"path"
	"strings"
)

var compoundExts = map[string]bool{
	"gz":  true,
	"xz":  true,
	"bz2": true,
	"lz4": true,
	"zst": true,
}

// deriveExt extracts the saved-name extension from an original filename,
// preserving compound suffixes like "tar.gz": if the final extension is a
// known compression format and the stem carries a further extension of at
// most 4 characters, the two are joined as "secondext.firstext".
func deriveExt(name string) string {
	base := path.Base(name)
	ext := strings.TrimPrefix(path.Ext(base), ".")
	if ext == "" {
		return ""
	}

	if compoundExts[strings.ToLower(ext)] {
		stem := strings.TrimSuffix(base, "."+ext)
		secondExt := strings.TrimPrefix(path.Ext(stem), ".")
		if secondExt != "" && len(secondExt) <= 4 {
			return secondExt + "." + ext
		}
	}

	return ext
}
