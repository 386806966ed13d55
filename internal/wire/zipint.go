package wire

import "encoding/binary"

// zipPair and unzipPair pack a (big, little) uint64 pair into the
// smallest byte string that can hold both, the same variable-width
// scheme _examples/drpcorg-chotki/rdx/zipint.go uses to pack a
// replica-src id together with the value it carries (there ZipUint64Pair,
// here reused to pack the (client, counter) pairs that make up an OpID
// column so a run of ids from the same client compresses well).
func byteLen(v uint64) int {
	switch {
	case v == 0:
		return 0
	case v < 1<<8:
		return 1
	case v < 1<<16:
		return 2
	case v < 1<<32:
		return 4
	default:
		return 8
	}
}

func putUint(dst []byte, v uint64, n int) {
	switch n {
	case 1:
		dst[0] = byte(v)
	case 2:
		binary.LittleEndian.PutUint16(dst, uint16(v))
	case 4:
		binary.LittleEndian.PutUint32(dst, uint32(v))
	case 8:
		binary.LittleEndian.PutUint64(dst, v)
	}
}

func getUint(src []byte, n int) uint64 {
	switch n {
	case 1:
		return uint64(src[0])
	case 2:
		return uint64(binary.LittleEndian.Uint16(src))
	case 4:
		return uint64(binary.LittleEndian.Uint32(src))
	case 8:
		return binary.LittleEndian.Uint64(src)
	}
	return 0
}

// zipPair packs (big, lil) as [lenTag, big-bytes, lil-bytes]. lenTag's
// high nibble is big's byte length code (0,1,2,4,8 -> 0..4), low nibble
// is lil's.
func zipPair(big, lil uint64) []byte {
	bn, ln := byteLen(big), byteLen(lil)
	tag := byte(lenCode(bn)<<4 | lenCode(ln))
	out := make([]byte, 1+bn+ln)
	out[0] = tag
	putUint(out[1:1+bn], big, bn)
	putUint(out[1+bn:1+bn+ln], lil, ln)
	return out
}

func unzipPair(buf []byte) (big, lil uint64) {
	if len(buf) == 0 {
		return 0, 0
	}
	tag := buf[0]
	bn, ln := codeLen(tag>>4), codeLen(tag&0xf)
	big = getUint(buf[1:1+bn], bn)
	lil = getUint(buf[1+bn:1+bn+ln], ln)
	return
}

func lenCode(n int) int {
	switch n {
	case 0:
		return 0
	case 1:
		return 1
	case 2:
		return 2
	case 4:
		return 3
	default:
		return 4
	}
}

func codeLen(c byte) int {
	switch c {
	case 0:
		return 0
	case 1:
		return 1
	case 2:
		return 2
	case 3:
		return 4
	default:
		return 8
	}
}

func zipPairLen(buf []byte) int {
	if len(buf) == 0 {
		return 0
	}
	tag := buf[0]
	bn, ln := codeLen(tag>>4), codeLen(tag&0xf)
	return 1 + bn + ln
}
