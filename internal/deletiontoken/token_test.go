package deletiontoken

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"testing"

	"breeze/internal/hashsum"
)

type fakeHashRemover struct {
	hash      hashsum.Hash
	found     bool
	hashErr   error
	removeErr error
	removed   bool
}

func (f *fakeHashRemover) GetHash(name string) (hashsum.Hash, bool, error) {
	return f.hash, f.found, f.hashErr
}

func (f *fakeHashRemover) Remove(name string) error {
	f.removed = true
	return f.removeErr
}

func sign(key []byte, name string, hash hashsum.Hash) (hashB64, hmacB64 string) {
	hashB64 = base64.RawURLEncoding.EncodeToString(hash[:])
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(name))
	mac.Write(hash[:])
	hmacB64 = base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
	return
}

func TestNewReturnsNilForEmptySecret(t *testing.T) {
	if v := New(""); v != nil {
		t.Fatal("expected a nil Verifier for an empty secret")
	}
}

func TestVerifyNilVerifierIsDisabled(t *testing.T) {
	var v *Verifier
	result := v.Verify(&fakeHashRemover{}, "name", "h", "m")
	if result.Code != 409 {
		t.Fatalf("Code = %d, want 409", result.Code)
	}
}

func TestVerifySuccess(t *testing.T) {
	key := []byte("secret")
	v := New(string(key))

	hash := hashsum.Calculate(11, []byte("hello world"))
	hr := &fakeHashRemover{hash: hash, found: true}

	hashB64, hmacB64 := sign(key, "myfile.png", hash)

	result := v.Verify(hr, "myfile.png", hashB64, hmacB64)
	if result.Code != 200 {
		t.Fatalf("Code = %d, want 200: %s", result.Code, result.Message)
	}
	if !hr.removed {
		t.Fatal("expected Remove to have been called on success")
	}
}

func TestVerifyMalformedHash(t *testing.T) {
	v := New("secret")
	result := v.Verify(&fakeHashRemover{}, "name", "not-base64!!!", "also-bad!!!")
	if result.Code != 400 {
		t.Fatalf("Code = %d, want 400", result.Code)
	}
}

func TestVerifyWrongHashLength(t *testing.T) {
	v := New("secret")
	short := base64.RawURLEncoding.EncodeToString([]byte("tooshort"))
	result := v.Verify(&fakeHashRemover{}, "name", short, short)
	if result.Code != 400 {
		t.Fatalf("Code = %d, want 400 for a hash that doesn't decode to 16 bytes", result.Code)
	}
}

func TestVerifyTamperedHMAC(t *testing.T) {
	key := []byte("secret")
	v := New(string(key))

	hash := hashsum.Calculate(11, []byte("hello world"))
	hashB64, _ := sign(key, "myfile.png", hash)

	tamperedHMAC := base64.RawURLEncoding.EncodeToString(make([]byte, 32))

	result := v.Verify(&fakeHashRemover{hash: hash, found: true}, "myfile.png", hashB64, tamperedHMAC)
	if result.Code != 400 {
		t.Fatalf("Code = %d, want 400 for a tampered hmac", result.Code)
	}
}

func TestVerifyWrongKeySignature(t *testing.T) {
	hash := hashsum.Calculate(11, []byte("hello world"))
	hashB64, hmacB64 := sign([]byte("other-key"), "myfile.png", hash)

	v := New("secret")
	result := v.Verify(&fakeHashRemover{hash: hash, found: true}, "myfile.png", hashB64, hmacB64)
	if result.Code != 400 {
		t.Fatalf("Code = %d, want 400 when signed with the wrong key", result.Code)
	}
}

func TestVerifyNotFound(t *testing.T) {
	key := []byte("secret")
	v := New(string(key))

	hash := hashsum.Calculate(11, []byte("hello world"))
	hashB64, hmacB64 := sign(key, "myfile.png", hash)

	hr := &fakeHashRemover{found: false}
	result := v.Verify(hr, "myfile.png", hashB64, hmacB64)
	if result.Code != 404 {
		t.Fatalf("Code = %d, want 404", result.Code)
	}
}

func TestVerifyContentChangedSinceURLWasMinted(t *testing.T) {
	key := []byte("secret")
	v := New(string(key))

	originalHash := hashsum.Calculate(11, []byte("hello world"))
	hashB64, hmacB64 := sign(key, "myfile.png", originalHash)

	currentHash := hashsum.Calculate(99, []byte("different content"))
	hr := &fakeHashRemover{hash: currentHash, found: true}

	result := v.Verify(hr, "myfile.png", hashB64, hmacB64)
	if result.Code != 400 {
		t.Fatalf("Code = %d, want 400 when the stored content no longer matches the capability", result.Code)
	}
}

func TestVerifyHashLookupError(t *testing.T) {
	key := []byte("secret")
	v := New(string(key))

	hash := hashsum.Calculate(11, []byte("hello world"))
	hashB64, hmacB64 := sign(key, "myfile.png", hash)

	hr := &fakeHashRemover{hashErr: errors.New("disk error")}
	result := v.Verify(hr, "myfile.png", hashB64, hmacB64)
	if result.Code != 500 {
		t.Fatalf("Code = %d, want 500", result.Code)
	}
}

func TestVerifyRemoveError(t *testing.T) {
	key := []byte("secret")
	v := New(string(key))

	hash := hashsum.Calculate(11, []byte("hello world"))
	hashB64, hmacB64 := sign(key, "myfile.png", hash)

	hr := &fakeHashRemover{hash: hash, found: true, removeErr: errors.New("disk error")}
	result := v.Verify(hr, "myfile.png", hashB64, hmacB64)
	if result.Code != 500 {
		t.Fatalf("Code = %d, want 500", result.Code)
	}
}
