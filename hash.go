package shaderjit

import (
	"encoding/binary"

	"github.com/zeebo/xxh3"
)

// HashCode returns the program hash of guest shader code: XXH3-64 over the
// little-endian code words.
func HashCode(code []uint32) uint64 {
	buf := make([]byte, 4*len(code))
	for i, w := range code {
		binary.LittleEndian.PutUint32(buf[4*i:], w)
	}
	return xxh3.Hash(buf)
}
