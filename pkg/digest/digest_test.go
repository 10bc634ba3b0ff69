package digest

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"testing/iotest"

	"github.com/zeebo/blake3"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/sha3"
)

func TestReaderKnownVectors(t *testing.T) {
	tests := []struct {
		name string
		data string
		want string
	}{
		{"empty", "", "E3B0C44298FC1C149AFBF4C8996FB92427AE41E4649B934CA495991B7852B855"},
		{"hello", "hello", "2CF24DBA5FB0A30E26E83B2AC5B9E29E1B161E5C1FA7425E73043362938B9824"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Reader(bytes.NewReader([]byte(tt.data)), SHA256)
			if err != nil {
				t.Fatalf("Reader: %v", err)
			}
			if got != tt.want {
				t.Fatalf("Reader(%q) = %s, want %s", tt.data, got, tt.want)
			}
		})
	}
}

func TestReaderMatchesOneShotSums(t *testing.T) {
	data := bytes.Repeat([]byte("fingerprint me\n"), 500)

	sha := sha256.Sum256(data)
	b2 := blake2b.Sum256(data)
	s3 := sha3.Sum256(data)
	b3 := blake3.Sum256(data)

	want := map[Algorithm]string{
		SHA256:  Encode(sha[:]),
		BLAKE2b: Encode(b2[:]),
		SHA3:    Encode(s3[:]),
		BLAKE3:  Encode(b3[:]),
	}
	for _, alg := range Algorithms {
		got, err := Reader(bytes.NewReader(data), alg)
		if err != nil {
			t.Fatalf("Reader(%s): %v", alg, err)
		}
		if got != want[alg] {
			t.Fatalf("Reader(%s) = %s, want %s", alg, got, want[alg])
		}
		if !Valid(got) {
			t.Fatalf("Reader(%s) produced invalid fingerprint %q", alg, got)
		}
	}
}

func TestDigestIndependentOfChunkSize(t *testing.T) {
	data := bytes.Repeat([]byte{0x00, 0x01, 0xfe, 0xff, 'x'}, 3001)

	want, err := Reader(bytes.NewReader(data), SHA256)
	if err != nil {
		t.Fatalf("Reader: %v", err)
	}

	for _, size := range []int{1, 7, 512, ChunkSize, 4096, len(data) + 1} {
		got, err := ReaderBuffer(bytes.NewReader(data), SHA256, make([]byte, size))
		if err != nil {
			t.Fatalf("ReaderBuffer(size=%d): %v", size, err)
		}
		if got != want {
			t.Fatalf("ReaderBuffer(size=%d) = %s, want %s", size, got, want)
		}
	}

	got, err := Reader(iotest.OneByteReader(bytes.NewReader(data)), SHA256)
	if err != nil {
		t.Fatalf("Reader(OneByteReader): %v", err)
	}
	if got != want {
		t.Fatalf("Reader(OneByteReader) = %s, want %s", got, want)
	}
}

func TestReaderPropagatesReadError(t *testing.T) {
	boom := errors.New("boom")
	r := io.MultiReader(bytes.NewReader(bytes.Repeat([]byte("a"), 4*ChunkSize)), iotest.ErrReader(boom))

	got, err := Reader(r, SHA256)
	if !errors.Is(err, boom) {
		t.Fatalf("Reader error = %v, want %v", err, boom)
	}
	if got != "" {
		t.Fatalf("Reader returned partial digest %q", got)
	}
}

func TestFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	if err := os.WriteFile(path, []byte("hello"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	got, err := File(path, SHA256)
	if err != nil {
		t.Fatalf("File: %v", err)
	}
	if got != "2CF24DBA5FB0A30E26E83B2AC5B9E29E1B161E5C1FA7425E73043362938B9824" {
		t.Fatalf("File = %s", got)
	}

	if _, err := File(filepath.Join(dir, "missing"), SHA256); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("File(missing) error = %v, want ErrNotExist", err)
	}
}

func TestParseAlgorithm(t *testing.T) {
	tests := []struct {
		in      string
		want    Algorithm
		wantErr bool
	}{
		{"", SHA256, false},
		{"sha256", SHA256, false},
		{" BLAKE3 ", BLAKE3, false},
		{"blake2b", BLAKE2b, false},
		{"sha3", SHA3, false},
		{"md5", "", true},
	}
	for _, tt := range tests {
		got, err := ParseAlgorithm(tt.in)
		if (err != nil) != tt.wantErr {
			t.Fatalf("ParseAlgorithm(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Fatalf("ParseAlgorithm(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestValid(t *testing.T) {
	ok := "2CF24DBA5FB0A30E26E83B2AC5B9E29E1B161E5C1FA7425E73043362938B9824"
	if !Valid(ok) {
		t.Fatalf("Valid(%q) = false", ok)
	}
	for _, bad := range []string{"", "abc", ok[:63], ok + "0", "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"} {
		if Valid(bad) {
			t.Fatalf("Valid(%q) = true", bad)
		}
	}
}
