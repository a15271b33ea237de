package blobstore

import (
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"io"
)

// HashingReader считает размер и SHA-256 прочитанных данных.
type HashingReader struct {
	r    io.Reader
	h    hash.Hash
	size int64
}

// NewHashingReader оборачивает r.
func NewHashingReader(r io.Reader) *HashingReader {
	h := sha256.New()
	return &HashingReader{r: io.TeeReader(r, h), h: h}
}

func (hr *HashingReader) Read(p []byte) (int, error) {
	n, err := hr.r.Read(p)
	hr.size += int64(n)
	return n, err
}

// Size возвращает количество прочитанных байт.
func (hr *HashingReader) Size() int64 {
	return hr.size
}

// Checksum возвращает SHA-256 прочитанных данных (hex).
func (hr *HashingReader) Checksum() string {
	return hex.EncodeToString(hr.h.Sum(nil))
}
