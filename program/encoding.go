package program

import (
	"crypto/sha256"
	"encoding/binary"

	"github.com/weisyn/smart-account-sdk-go/types"
)

// Discriminator 指令判别符 sha256("global:" + name)[:8]
func Discriminator(name string) [8]byte {
	return prefixHash("global:" + name)
}

// AccountDiscriminator 账户判别符 sha256("account:" + name)[:8]
func AccountDiscriminator(name string) [8]byte {
	return prefixHash("account:" + name)
}

func prefixHash(s string) [8]byte {
	sum := sha256.Sum256([]byte(s))
	var out [8]byte
	copy(out[:], sum[:8])
	return out
}

// writer 小端 borsh 风格写入器
type writer struct {
	buf []byte
}

func newWriter(disc [8]byte, sizeHint int) *writer {
	w := &writer{buf: make([]byte, 0, 8+sizeHint)}
	w.buf = append(w.buf, disc[:]...)
	return w
}

func (w *writer) u8(v uint8) *writer {
	w.buf = append(w.buf, v)
	return w
}

func (w *writer) u16(v uint16) *writer {
	w.buf = binary.LittleEndian.AppendUint16(w.buf, v)
	return w
}

func (w *writer) u32(v uint32) *writer {
	w.buf = binary.LittleEndian.AppendUint32(w.buf, v)
	return w
}

func (w *writer) u64(v uint64) *writer {
	w.buf = binary.LittleEndian.AppendUint64(w.buf, v)
	return w
}

func (w *writer) raw(b []byte) *writer {
	w.buf = append(w.buf, b...)
	return w
}

// bytes vec<u8>
func (w *writer) bytes(b []byte) *writer {
	return w.u32(uint32(len(b))).raw(b)
}

func (w *writer) optionAddress(a *types.Address) *writer {
	if a == nil {
		return w.u8(0)
	}
	return w.u8(1).raw(a[:])
}

func (w *writer) hashes(hs []types.Hash) *writer {
	w.u32(uint32(len(hs)))
	for _, h := range hs {
		w.raw(h[:])
	}
	return w
}

// reader 与 writer 对称的解码器
type reader struct {
	buf []byte
	off int
	err error
}

func (r *reader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if r.off+n > len(r.buf) {
		r.err = types.NewError(types.KindInvalidState, "account data truncated", nil)
		return nil
	}
	out := r.buf[r.off : r.off+n]
	r.off += n
	return out
}

func (r *reader) u8() uint8 {
	b := r.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (r *reader) u64() uint64 {
	b := r.take(8)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}

func (r *reader) u32() uint32 {
	b := r.take(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

func (r *reader) address() types.Address {
	var a types.Address
	copy(a[:], r.take(types.AddressLength))
	return a
}
