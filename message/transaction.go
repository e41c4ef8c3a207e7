package message

import (
	"encoding/base64"
	"fmt"

	"github.com/btcsuite/btcutil/base58"

	"github.com/weisyn/smart-account-sdk-go/types"
	"github.com/weisyn/smart-account-sdk-go/wallet"
)

// PacketDataSize 网络包中序列化交易的上限
const PacketDataSize = 1232

// SignatureLength ed25519 签名长度
const SignatureLength = 64

// Signature 交易签名
type Signature [SignatureLength]byte

func (s Signature) String() string {
	return base58.Encode(s[:])
}

// IsZero 未签名占位
func (s Signature) IsZero() bool {
	return s == Signature{}
}

// Transaction 签名交易
type Transaction struct {
	Signatures []Signature
	Message    *Message
}

// NewTransaction 为消息创建空签名交易
func NewTransaction(msg *Message) *Transaction {
	return &Transaction{
		Signatures: make([]Signature, msg.Header.NumRequiredSignatures),
		Message:    msg,
	}
}

// Sign 使用签名者填充对应位置的签名
func (tx *Transaction) Sign(signers ...wallet.Signer) error {
	payload := tx.Message.Serialize()
	required := tx.Message.Signers()

	for _, s := range signers {
		pos := -1
		for i, a := range required {
			if a == s.Address() {
				pos = i
				break
			}
		}
		if pos < 0 {
			return fmt.Errorf("signer %s is not required by the message", s.Address())
		}
		sig, err := s.Sign(payload)
		if err != nil {
			return fmt.Errorf("sign with %s: %w", s.Address(), err)
		}
		if len(sig) != SignatureLength {
			return fmt.Errorf("signer %s returned %d-byte signature", s.Address(), len(sig))
		}
		copy(tx.Signatures[pos][:], sig)
	}
	return nil
}

// MissingSigners 尚未签名的必需签名者
func (tx *Transaction) MissingSigners() []types.Address {
	var missing []types.Address
	for i, a := range tx.Message.Signers() {
		if tx.Signatures[i].IsZero() {
			missing = append(missing, a)
		}
	}
	return missing
}

// Serialize 序列化交易；超过网络包大小时返回 TransactionTooLarge
func (tx *Transaction) Serialize() ([]byte, error) {
	msg := tx.Message.Serialize()
	buf := make([]byte, 0, 3+len(tx.Signatures)*SignatureLength+len(msg))
	buf = AppendLength(buf, len(tx.Signatures))
	for _, s := range tx.Signatures {
		buf = append(buf, s[:]...)
	}
	buf = append(buf, msg...)

	if len(buf) > PacketDataSize {
		return nil, types.NewError(types.KindTransactionTooLarge,
			fmt.Sprintf("transaction is %d bytes, limit is %d", len(buf), PacketDataSize), nil)
	}
	return buf, nil
}

// SerializeBase64 base64 编码的序列化交易（RPC 提交格式）
func (tx *Transaction) SerializeBase64() (string, error) {
	raw, err := tx.Serialize()
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// DecodeTransaction 解析序列化交易
func DecodeTransaction(data []byte) (*Transaction, error) {
	n, used, err := DecodeLength(data)
	if err != nil {
		return nil, err
	}
	off := used
	if off+n*SignatureLength > len(data) {
		return nil, fmt.Errorf("transaction truncated in signatures")
	}
	tx := &Transaction{Signatures: make([]Signature, n)}
	for i := range tx.Signatures {
		copy(tx.Signatures[i][:], data[off:off+SignatureLength])
		off += SignatureLength
	}

	msg, consumed, err := Decode(data[off:])
	if err != nil {
		return nil, err
	}
	if off+consumed != len(data) {
		return nil, fmt.Errorf("trailing %d bytes after message", len(data)-off-consumed)
	}
	tx.Message = msg
	return tx, nil
}

// DecodeTransactionBase64 解析 base64 交易
func DecodeTransactionBase64(s string) (*Transaction, error) {
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decode base64: %w", err)
	}
	return DecodeTransaction(raw)
}
