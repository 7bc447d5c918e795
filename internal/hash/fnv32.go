package hash

import (
	"hash"
	"hash/fnv"
)

func newFNV32a() hash.Hash32 {
	return fnv.New32a()
}
