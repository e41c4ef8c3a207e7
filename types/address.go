package types

import (
	"bytes"
	"fmt"

	"github.com/btcsuite/btcutil/base58"
)

// AddressLength 地址长度（ed25519 公钥或程序派生地址）
const AddressLength = 32

// Address 32 字节账户地址
//
// 使用值类型作为 map 键，避免字符串化地址带来的额外开销和键冲突
type Address [AddressLength]byte

// ZeroAddress 全零地址（同时也是 System 程序 ID）
var ZeroAddress Address

// ParseAddress 解析 Base58 编码地址
//
// **注意**：
// - Base58 不带校验和（与账本地址格式一致）
// - 解码后必须恰好 32 字节
func ParseAddress(s string) (Address, error) {
	var addr Address
	if s == "" {
		return addr, fmt.Errorf("empty address")
	}
	decoded := base58.Decode(s)
	if len(decoded) != AddressLength {
		return addr, fmt.Errorf("invalid address length: expected %d bytes after Base58 decode, got %d", AddressLength, len(decoded))
	}
	copy(addr[:], decoded)
	return addr, nil
}

// MustParseAddress 解析地址，失败时 panic（仅用于常量）
func MustParseAddress(s string) Address {
	addr, err := ParseAddress(s)
	if err != nil {
		panic(fmt.Sprintf("invalid address %q: %v", s, err))
	}
	return addr
}

// AddressFromBytes 从字节切片构造地址
func AddressFromBytes(b []byte) (Address, error) {
	var addr Address
	if len(b) != AddressLength {
		return addr, fmt.Errorf("invalid address length: expected %d bytes, got %d", AddressLength, len(b))
	}
	copy(addr[:], b)
	return addr, nil
}

// String 返回 Base58 编码
func (a Address) String() string {
	return base58.Encode(a[:])
}

// Bytes 返回地址字节副本
func (a Address) Bytes() []byte {
	out := make([]byte, AddressLength)
	copy(out, a[:])
	return out
}

// IsZero 是否为全零地址
func (a Address) IsZero() bool {
	return a == ZeroAddress
}

// Compare 按字节序比较
func (a Address) Compare(b Address) int {
	return bytes.Compare(a[:], b[:])
}

// MarshalText 实现 encoding.TextMarshaler（JSON/YAML 中使用 Base58）
func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText 实现 encoding.TextUnmarshaler
func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := ParseAddress(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// Hash 32 字节摘要（意图哈希、Merkle 根、区块哈希）
type Hash [32]byte

// String 返回 Base58 编码（与账本区块哈希表示一致）
func (h Hash) String() string {
	return base58.Encode(h[:])
}

// ParseHash 解析 Base58 编码哈希
func ParseHash(s string) (Hash, error) {
	addr, err := ParseAddress(s)
	if err != nil {
		return Hash{}, fmt.Errorf("invalid hash: %w", err)
	}
	return Hash(addr), nil
}
