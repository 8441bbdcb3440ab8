package engine

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"hash"
	"strconv"
	"strings"
)

func base64URL(b []byte) string {
	return base64.RawURLEncoding.EncodeToString(b)
}

func newHMAC(key []byte) hash.Hash {
	return hmac.New(sha256.New, key)
}

func substitute(motd, version string, uplCount int64) string {
	r := strings.NewReplacer(
		"%version%", version,
		"%uplcount%", strconv.FormatInt(uplCount, 10),
	)
	return r.Replace(motd)
}
