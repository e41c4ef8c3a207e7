package wallet

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"
	"time"

	"github.com/btcsuite/btcutil/base58"

	"github.com/weisyn/smart-account-sdk-go/types"
)

// CompressedPublicKeyLength P-256 压缩公钥长度
const CompressedPublicKeyLength = 33

// SignatureLength r||s 签名长度
const SignatureLength = 64

// Credential 挑战签名凭证（设备通行密钥）
//
// 引擎通过 Secp256r1 预编译校验签名，因此凭证必须是 P-256 密钥。
type Credential interface {
	// PublicKey 33 字节压缩公钥
	PublicKey() []byte

	// SignMessage 对 sha256(message) 签名，返回 64 字节低 S 的 r||s
	SignMessage(message []byte) ([]byte, error)
}

// Signer 交易签名者（费用支付方）
type Signer interface {
	// Address 公钥即地址
	Address() types.Address

	// Sign 对序列化消息签名（ed25519，64 字节）
	Sign(message []byte) ([]byte, error)
}

// PasskeyCredential 本地 P-256 通行密钥（用于测试、脚本与托管设备）
type PasskeyCredential struct {
	privateKey *ecdsa.PrivateKey
	publicKey  []byte
	createdAt  time.Time
}

// NewPasskeyCredential 生成新的通行密钥
func NewPasskeyCredential() (*PasskeyCredential, error) {
	privateKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate p256 key: %w", err)
	}
	return newPasskey(privateKey), nil
}

// NewPasskeyCredentialFromHex 从 32 字节私钥标量（hex）恢复通行密钥
func NewPasskeyCredentialFromHex(privateKeyHex string) (*PasskeyCredential, error) {
	raw, err := hex.DecodeString(hexRemovePrefix(privateKeyHex))
	if err != nil {
		return nil, fmt.Errorf("decode private key: %w", err)
	}
	return NewPasskeyCredentialFromBytes(raw)
}

// NewPasskeyCredentialFromBytes 从私钥标量恢复通行密钥
func NewPasskeyCredentialFromBytes(raw []byte) (*PasskeyCredential, error) {
	if len(raw) != 32 {
		return nil, fmt.Errorf("invalid private key length: expected 32 bytes, got %d", len(raw))
	}

	curve := elliptic.P256()
	d := new(big.Int).SetBytes(raw)
	if d.Sign() == 0 || d.Cmp(curve.Params().N) >= 0 {
		return nil, fmt.Errorf("private key scalar out of range")
	}

	privateKey := &ecdsa.PrivateKey{D: d}
	privateKey.PublicKey.Curve = curve
	privateKey.PublicKey.X, privateKey.PublicKey.Y = curve.ScalarBaseMult(raw)
	return newPasskey(privateKey), nil
}

func newPasskey(privateKey *ecdsa.PrivateKey) *PasskeyCredential {
	return &PasskeyCredential{
		privateKey: privateKey,
		publicKey:  elliptic.MarshalCompressed(elliptic.P256(), privateKey.X, privateKey.Y),
		createdAt:  time.Now(),
	}
}

// PublicKey 压缩公钥
func (c *PasskeyCredential) PublicKey() []byte {
	out := make([]byte, len(c.publicKey))
	copy(out, c.publicKey)
	return out
}

// SignMessage 对 sha256(message) 签名
func (c *PasskeyCredential) SignMessage(message []byte) ([]byte, error) {
	hash := sha256.Sum256(message)
	return c.SignHash(hash[:])
}

// SignHash 签名给定哈希，S 规范化到曲线阶的低半区
func (c *PasskeyCredential) SignHash(hash []byte) ([]byte, error) {
	r, s, err := ecdsa.Sign(rand.Reader, c.privateKey, hash)
	if err != nil {
		return nil, fmt.Errorf("ecdsa sign: %w", err)
	}

	n := c.privateKey.Curve.Params().N
	halfN := new(big.Int).Rsh(n, 1)
	if s.Cmp(halfN) > 0 {
		s = new(big.Int).Sub(n, s)
	}

	// r || s，各自补齐到 32 字节
	signature := make([]byte, SignatureLength)
	r.FillBytes(signature[:32])
	s.FillBytes(signature[32:])
	return signature, nil
}

// PrivateKeyBytes 32 字节私钥标量（谨慎使用）
func (c *PasskeyCredential) PrivateKeyBytes() []byte {
	out := make([]byte, 32)
	c.privateKey.D.FillBytes(out)
	return out
}

// VerifySignature 使用压缩公钥校验 r||s 签名（对 sha256(message)）
func VerifySignature(publicKey, message, signature []byte) bool {
	if len(publicKey) != CompressedPublicKeyLength || len(signature) != SignatureLength {
		return false
	}
	curve := elliptic.P256()
	x, y := elliptic.UnmarshalCompressed(curve, publicKey)
	if x == nil {
		return false
	}
	hash := sha256.Sum256(message)
	r := new(big.Int).SetBytes(signature[:32])
	s := new(big.Int).SetBytes(signature[32:])
	return ecdsa.Verify(&ecdsa.PublicKey{Curve: curve, X: x, Y: y}, hash[:], r, s)
}

// IsLowS 判断签名 S 是否位于低半区
func IsLowS(signature []byte) bool {
	if len(signature) != SignatureLength {
		return false
	}
	s := new(big.Int).SetBytes(signature[32:])
	halfN := new(big.Int).Rsh(elliptic.P256().Params().N, 1)
	return s.Cmp(halfN) <= 0
}

// FeePayer ed25519 费用支付方
type FeePayer struct {
	privateKey ed25519.PrivateKey
	address    types.Address
}

// NewFeePayer 生成新的费用支付方
func NewFeePayer() (*FeePayer, error) {
	_, privateKey, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate ed25519 key: %w", err)
	}
	return newFeePayer(privateKey), nil
}

// NewFeePayerFromSeed 从 32 字节种子恢复
func NewFeePayerFromSeed(seed []byte) (*FeePayer, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("invalid seed length: expected %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	return newFeePayer(ed25519.NewKeyFromSeed(seed)), nil
}

// NewFeePayerFromBase58 从 base58 编码的 64 字节私钥恢复（常见钱包导出格式）
func NewFeePayerFromBase58(s string) (*FeePayer, error) {
	raw := base58.Decode(s)
	switch len(raw) {
	case ed25519.PrivateKeySize:
		return newFeePayer(ed25519.PrivateKey(raw)), nil
	case ed25519.SeedSize:
		return NewFeePayerFromSeed(raw)
	default:
		return nil, fmt.Errorf("invalid fee payer key length: %d", len(raw))
	}
}

func newFeePayer(privateKey ed25519.PrivateKey) *FeePayer {
	var addr types.Address
	copy(addr[:], privateKey.Public().(ed25519.PublicKey))
	return &FeePayer{privateKey: privateKey, address: addr}
}

// Address 支付方地址
func (f *FeePayer) Address() types.Address {
	return f.address
}

// Sign 签名消息
func (f *FeePayer) Sign(message []byte) ([]byte, error) {
	return ed25519.Sign(f.privateKey, message), nil
}

// Seed 32 字节种子（谨慎使用）
func (f *FeePayer) Seed() []byte {
	return f.privateKey.Seed()
}

// hexRemovePrefix 移除十六进制字符串的0x前缀
func hexRemovePrefix(hexStr string) string {
	if len(hexStr) >= 2 && hexStr[:2] == "0x" {
		return hexStr[2:]
	}
	return hexStr
}
