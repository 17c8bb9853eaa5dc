// Package shaders loads SPIR-V bytecode from disk.
//
// The GLSL sources next to this file are compiled with `go generate` into the
// .spv files embedded as the built-in triangle shader.
package shaders

//go:generate glslc triangle.vert -o triangle_vert.spv
//go:generate glslc triangle.frag -o triangle_frag.spv

import (
	_ "embed"
	"encoding/binary"
	"io/fs"
	"os"

	"github.com/cockroachdb/errors"
	"golang.org/x/sync/errgroup"
)

// SPIRVMagic is the first word of every SPIR-V module.
const SPIRVMagic uint32 = 0x07230203

var ErrInvalidBytecode = errors.New("invalid SPIR-V bytecode")

// LoadBytecode reads a whole file. A missing file yields an empty buffer and
// no error; other read failures are returned.
func LoadBytecode(path string) ([]byte, error) {
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return []byte{}, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "read shader %s", path)
	}
	return b, nil
}

// Pair is the bytecode of a vertex and a fragment stage.
type Pair struct {
	Vertex   []byte
	Fragment []byte
}

//go:embed triangle_vert.spv
var triangleVertex []byte

//go:embed triangle_frag.spv
var triangleFragment []byte

// Triangle returns the built-in shader: position and color in, color out.
func Triangle() Pair {
	return Pair{
		Vertex:   append([]byte{}, triangleVertex...),
		Fragment: append([]byte{}, triangleFragment...),
	}
}

// LoadPair reads both stages concurrently.
func LoadPair(vertexPath, fragmentPath string) (Pair, error) {
	var pair Pair
	var group errgroup.Group

	group.Go(func() error {
		var err error
		pair.Vertex, err = LoadBytecode(vertexPath)
		return err
	})
	group.Go(func() error {
		var err error
		pair.Fragment, err = LoadBytecode(fragmentPath)
		return err
	})

	if err := group.Wait(); err != nil {
		return Pair{}, err
	}
	return pair, nil
}

// ToCode converts little-endian SPIR-V bytes into the word stream a shader
// module is created from.
func ToCode(b []byte) ([]uint32, error) {
	if len(b) == 0 {
		return nil, errors.Wrap(ErrInvalidBytecode, "empty bytecode")
	}
	if len(b)%4 != 0 {
		return nil, errors.Wrapf(ErrInvalidBytecode, "length %d is not a multiple of 4", len(b))
	}

	byteCode := make([]uint32, len(b)/4)
	for i := range byteCode {
		byteCode[i] = binary.LittleEndian.Uint32(b[i*4:])
	}

	if byteCode[0] != SPIRVMagic {
		return nil, errors.Wrapf(ErrInvalidBytecode, "bad magic %#08x", byteCode[0])
	}
	return byteCode, nil
}
