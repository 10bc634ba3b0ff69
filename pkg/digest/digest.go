// Package digest computes content fingerprints for files.
//
// A fingerprint is the uppercase hex encoding of a 256-bit digest of the
// full byte content. Content is streamed through the hash in fixed-size
// chunks so arbitrarily large files never need to fit in memory.
package digest

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
	"strings"

	"github.com/zeebo/blake3"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/sha3"
)

// ChunkSize is the read buffer size used by Reader and File.
const ChunkSize = 1024

// HexLen is the length of every encoded fingerprint.
const HexLen = 64

// Algorithm names a 256-bit hash function.
type Algorithm string

const (
	SHA256  Algorithm = "sha256"
	BLAKE2b Algorithm = "blake2b"
	SHA3    Algorithm = "sha3"
	BLAKE3  Algorithm = "blake3"
)

// Default is used when no algorithm is configured.
const Default = SHA256

// Algorithms lists every supported algorithm in display order.
var Algorithms = []Algorithm{SHA256, BLAKE2b, SHA3, BLAKE3}

// ParseAlgorithm resolves a configured name. The empty string maps to Default.
func ParseAlgorithm(name string) (Algorithm, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return Default, nil
	}
	for _, alg := range Algorithms {
		if string(alg) == name {
			return alg, nil
		}
	}
	return "", fmt.Errorf("unknown digest algorithm %q", name)
}

func (a Algorithm) newHash() (hash.Hash, error) {
	switch a {
	case "", SHA256:
		return sha256.New(), nil
	case BLAKE2b:
		return blake2b.New256(nil)
	case SHA3:
		return sha3.New256(), nil
	case BLAKE3:
		return blake3.New(), nil
	default:
		return nil, fmt.Errorf("unknown digest algorithm %q", string(a))
	}
}

// Reader hashes r until EOF using a ChunkSize buffer.
func Reader(r io.Reader, alg Algorithm) (string, error) {
	return ReaderBuffer(r, alg, make([]byte, ChunkSize))
}

// ReaderBuffer hashes r until EOF, reading into buf. The result does not
// depend on len(buf). On a read error no digest is returned.
func ReaderBuffer(r io.Reader, alg Algorithm, buf []byte) (string, error) {
	if len(buf) == 0 {
		return "", fmt.Errorf("digest: empty read buffer")
	}
	h, err := alg.newHash()
	if err != nil {
		return "", err
	}
	for {
		n, err := r.Read(buf)
		if n > 0 {
			h.Write(buf[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
	}
	return Encode(h.Sum(nil)), nil
}

// File hashes the content of the file at path.
func File(path string, alg Algorithm) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	sum, err := Reader(f, alg)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return sum, nil
}

// Encode renders a raw digest as uppercase hex.
func Encode(sum []byte) string {
	return strings.ToUpper(hex.EncodeToString(sum))
}

// Valid reports whether s looks like an encoded fingerprint.
func Valid(s string) bool {
	if len(s) != HexLen {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'A' || c > 'F') {
			return false
		}
	}
	return true
}
