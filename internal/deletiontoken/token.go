// Package deletiontoken constructs and verifies the HMAC-tagged capability
// URLs that authorize deleting an upload.
package deletiontoken

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"

	"breeze/internal/hashsum"
)

// HashRemover is the slice of Engine that deletion verification needs.
type HashRemover interface {
	GetHash(name string) (hashsum.Hash, bool, error)
	Remove(name string) error
}

// Verifier holds the HMAC key used to mint and check deletion capability
// tokens. A nil *Verifier means deletion is disabled.
type Verifier struct {
	key []byte
}

// New returns a Verifier for secret, or nil if secret is empty (deletion
// disabled).
func New(secret string) *Verifier {
	if secret == "" {
		return nil
	}
	return &Verifier{key: []byte(secret)}
}

// Result is the outcome of a deletion request.
type Result struct {
	Code    int
	Message string
}

// Verify implements spec step 1-6: decode, check the HMAC, compare the
// provided hash against the upload's actual deletion hash, then remove the
// upload on a match.
func (v *Verifier) Verify(hr HashRemover, name, hashParam, hmacParam string) Result {
	if v == nil {
		return Result{Code: 409, Message: "deletion is disabled"}
	}

	hashBytes, err := base64.RawURLEncoding.DecodeString(hashParam)
	if err != nil {
		return Result{Code: 400, Message: "malformed hash parameter"}
	}
	hmacBytes, err := base64.RawURLEncoding.DecodeString(hmacParam)
	if err != nil {
		return Result{Code: 400, Message: "malformed hmac parameter"}
	}
	if len(hashBytes) != 16 {
		return Result{Code: 400, Message: "hash parameter must decode to 16 bytes"}
	}

	mac := hmac.New(sha256.New, v.key)
	mac.Write([]byte(name))
	mac.Write(hashBytes)
	expected := mac.Sum(nil)

	if !hmac.Equal(expected, hmacBytes) {
		return Result{Code: 400, Message: "hmac does not match"}
	}

	var provided hashsum.Hash
	copy(provided[:], hashBytes)

	actual, ok, err := hr.GetHash(name)
	if err != nil {
		return Result{Code: 500, Message: "internal error computing hash"}
	}
	if !ok {
		return Result{Code: 404, Message: "upload not found"}
	}
	if provided != actual {
		return Result{Code: 400, Message: "hash does not match current upload content"}
	}

	if err := hr.Remove(name); err != nil {
		return Result{Code: 500, Message: "internal error removing upload"}
	}

	return Result{Code: 200, Message: "Deleted successfully"}
}
