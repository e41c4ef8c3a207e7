package message

import "fmt"

// AppendLength 紧凑 u16 长度编码（每字节 7 位，最高位为续位）
func AppendLength(buf []byte, n int) []byte {
	v := uint16(n)
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v == 0 {
			return append(buf, b)
		}
		buf = append(buf, b|0x80)
	}
}

// DecodeLength 解码紧凑 u16 长度，返回值与消耗的字节数
func DecodeLength(buf []byte) (int, int, error) {
	var v int
	for i := 0; i < 3; i++ {
		if i >= len(buf) {
			return 0, 0, fmt.Errorf("compact-u16: unexpected end of input")
		}
		b := buf[i]
		v |= int(b&0x7f) << (7 * i)
		if b&0x80 == 0 {
			if v > 0xffff {
				return 0, 0, fmt.Errorf("compact-u16: value overflows u16")
			}
			return v, i + 1, nil
		}
	}
	return 0, 0, fmt.Errorf("compact-u16: too many bytes")
}
