package shaders

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/cockroachdb/errors"
)

func spirv(words ...uint32) []byte {
	b := make([]byte, 4*len(words))
	for i, w := range words {
		binary.LittleEndian.PutUint32(b[i*4:], w)
	}
	return b
}

func TestLoadBytecodeMissing(t *testing.T) {
	b, err := LoadBytecode(filepath.Join(t.TempDir(), "missing.spv"))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(b) != 0 {
		t.Errorf("expected empty buffer, got %d bytes", len(b))
	}
}

func TestLoadPair(t *testing.T) {
	dir := t.TempDir()
	vert := filepath.Join(dir, "a_vert.spv")
	frag := filepath.Join(dir, "a_frag.spv")
	if err := os.WriteFile(vert, spirv(SPIRVMagic, 1), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(frag, spirv(SPIRVMagic, 2, 3), 0o644); err != nil {
		t.Fatal(err)
	}

	pair, err := LoadPair(vert, frag)
	if err != nil {
		t.Fatalf("LoadPair: %v", err)
	}
	if len(pair.Vertex) != 8 || len(pair.Fragment) != 12 {
		t.Errorf("unexpected sizes %d, %d", len(pair.Vertex), len(pair.Fragment))
	}
}

func TestLoadPairReadError(t *testing.T) {
	// a directory cannot be read as a file
	_, err := LoadPair(t.TempDir(), filepath.Join(t.TempDir(), "missing.spv"))
	if err == nil {
		t.Fatal("expected a read error")
	}
}

func TestToCode(t *testing.T) {
	code, err := ToCode(spirv(SPIRVMagic, 0x00010000, 42))
	if err != nil {
		t.Fatalf("ToCode: %v", err)
	}
	if len(code) != 3 || code[0] != SPIRVMagic || code[2] != 42 {
		t.Errorf("unexpected words %v", code)
	}
}

func TestToCodeRejects(t *testing.T) {
	cases := map[string][]byte{
		"empty":     {},
		"unaligned": {0x03, 0x02, 0x23},
		"magic":     spirv(0xdeadbeef, 1),
	}

	for name, b := range cases {
		_, err := ToCode(b)
		if !errors.Is(err, ErrInvalidBytecode) {
			t.Errorf("%s: expected ErrInvalidBytecode, got %v", name, err)
		}
	}
}

func TestTriangleIsValidSPIRV(t *testing.T) {
	pair := Triangle()

	for name, b := range map[string][]byte{"vertex": pair.Vertex, "fragment": pair.Fragment} {
		code, err := ToCode(b)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if len(code) < 5 || code[1] != 0x00010000 {
			t.Errorf("%s: expected a SPIR-V 1.0 header, got %v", name, code[:min(len(code), 5)])
		}
	}

	// callers get their own copy
	pair.Vertex[0] = 0
	if Triangle().Vertex[0] == 0 {
		t.Errorf("Triangle shares the embedded bytes")
	}
}
