package challenge

import (
	"bytes"
	"fmt"

	"github.com/weisyn/smart-account-sdk-go/intent"
	"github.com/weisyn/smart-account-sdk-go/types"
	"github.com/weisyn/smart-account-sdk-go/wallet"
)

// Mode 摘要模式
type Mode int

const (
	// ModeHashed 对意图规范字节做 keccak256
	ModeHashed Mode = iota
	// ModeRaw 输入已是 32 字节摘要（如 Merkle 根）
	ModeRaw
)

func (m Mode) String() string {
	switch m {
	case ModeHashed:
		return "hashed"
	case ModeRaw:
		return "raw"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// Signed 签名结果
type Signed struct {
	Digest            types.Hash
	Message           []byte
	Signature         []byte
	AuthenticatorData []byte
	ClientDataJSON    []byte
	PublicKey         []byte
}

// Signer 挑战签名器
type Signer struct {
	credential wallet.Credential
	envelope   Envelope
}

// NewSigner 创建签名器，信封固定为引擎接受的默认信封
func NewSigner(credential wallet.Credential) *Signer {
	return &Signer{credential: credential, envelope: DefaultEnvelope()}
}

// PublicKey 凭证公钥（未设置凭证时为 nil）
func (s *Signer) PublicKey() []byte {
	if s.credential == nil {
		return nil
	}
	return s.credential.PublicKey()
}

// Envelope 当前信封
func (s *Signer) Envelope() Envelope {
	return s.envelope
}

// Digest 按模式计算摘要
func Digest(input []byte, mode Mode) (types.Hash, error) {
	switch mode {
	case ModeHashed:
		return intent.Hash(input), nil
	case ModeRaw:
		var d types.Hash
		if len(input) != len(d) {
			return d, types.NewEncodingError("raw digest must be 32 bytes, got %d", len(input))
		}
		copy(d[:], input)
		return d, nil
	default:
		return types.Hash{}, types.NewEncodingError("unknown digest mode %d", int(mode))
	}
}

// Sign 对输入计算摘要、构造信封并签名
func (s *Signer) Sign(input []byte, mode Mode) (*Signed, error) {
	digest, err := Digest(input, mode)
	if err != nil {
		return nil, err
	}
	return s.SignDigest(digest)
}

// SignDigest 对给定摘要签名
func (s *Signer) SignDigest(digest types.Hash) (*Signed, error) {
	if s == nil || s.credential == nil {
		return nil, types.NewError(types.KindChallengeSigning, "no credential available", nil)
	}

	clientDataJSON, err := s.envelope.ClientDataJSON(digest)
	if err != nil {
		return nil, types.NewError(types.KindChallengeSigning, "build client data", err)
	}
	authData := s.envelope.AuthenticatorData()
	message := Message(authData, clientDataJSON)

	signature, err := s.credential.SignMessage(message)
	if err != nil {
		return nil, types.NewError(types.KindChallengeSigning, "credential refused to sign", err)
	}
	if len(signature) != wallet.SignatureLength {
		return nil, types.NewError(types.KindChallengeSigning,
			fmt.Sprintf("credential returned %d-byte signature", len(signature)), nil)
	}

	return &Signed{
		Digest:            digest,
		Message:           message,
		Signature:         signature,
		AuthenticatorData: authData,
		ClientDataJSON:    clientDataJSON,
		PublicKey:         s.credential.PublicKey(),
	}, nil
}

// Verify 本地校验签名结果：消息结构、挑战摘要与签名
func Verify(signed *Signed) error {
	if signed == nil {
		return fmt.Errorf("nil signed challenge")
	}
	if !bytes.Equal(Message(signed.AuthenticatorData, signed.ClientDataJSON), signed.Message) {
		return fmt.Errorf("message does not match envelope")
	}
	challenge, err := ChallengeFromClientData(signed.ClientDataJSON)
	if err != nil {
		return err
	}
	if challenge != signed.Digest {
		return fmt.Errorf("challenge %x does not match digest %s", challenge, signed.Digest)
	}
	if !wallet.VerifySignature(signed.PublicKey, signed.Message, signed.Signature) {
		return fmt.Errorf("signature verification failed")
	}
	return nil
}
