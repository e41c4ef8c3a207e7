// Package challenge 构造通行密钥挑战信封并签名
//
// 信封模仿 WebAuthn 断言：clientDataJSON 携带 base64url 编码的摘要，
// authenticatorData 携带 RP ID 哈希、标志位与计数器，
// 被签名的消息为 authenticatorData ++ sha256(clientDataJSON)。
package challenge

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
)

const (
	// ClientDataType 断言类型
	ClientDataType = "webauthn.get"
	// DefaultOrigin 签名应用来源
	DefaultOrigin = "android:apk-key-hash:sGIB5LhPlgLSDwmGx7gVb0R_2MhP6CCm63nD5ZzUfqk"
	// DefaultAndroidPackageName 签名应用包名
	DefaultAndroidPackageName = "app.vaultengine.wallet"
	// DefaultRPID 依赖方 ID
	DefaultRPID = "vaultengine.app"
	// DefaultFlags 用户在场 | 用户已验证
	DefaultFlags byte = 0x05
	// DefaultCounter 签名计数器
	DefaultCounter uint32 = 0
)

// Envelope 信封参数
type Envelope struct {
	Origin             string
	AndroidPackageName string
	RPID               string
	Flags              byte
	Counter            uint32
}

// DefaultEnvelope 引擎接受的默认信封
func DefaultEnvelope() Envelope {
	return Envelope{
		Origin:             DefaultOrigin,
		AndroidPackageName: DefaultAndroidPackageName,
		RPID:               DefaultRPID,
		Flags:              DefaultFlags,
		Counter:            DefaultCounter,
	}
}

// clientData 字段顺序即序列化顺序，不可调整
type clientData struct {
	Type               string `json:"type"`
	Challenge          string `json:"challenge"`
	Origin             string `json:"origin"`
	CrossOrigin        bool   `json:"crossOrigin"`
	AndroidPackageName string `json:"androidPackageName"`
}

// ClientDataJSON 生成客户端数据 JSON
func (e Envelope) ClientDataJSON(digest [32]byte) ([]byte, error) {
	data, err := json.Marshal(clientData{
		Type:               ClientDataType,
		Challenge:          base64.RawURLEncoding.EncodeToString(digest[:]),
		Origin:             e.Origin,
		CrossOrigin:        false,
		AndroidPackageName: e.AndroidPackageName,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal client data: %w", err)
	}
	return data, nil
}

// AuthenticatorData sha256(rpId) ++ flags ++ BE32(counter)
func (e Envelope) AuthenticatorData() []byte {
	rpHash := sha256.Sum256([]byte(e.RPID))
	out := make([]byte, 0, 37)
	out = append(out, rpHash[:]...)
	out = append(out, e.Flags)
	return binary.BigEndian.AppendUint32(out, e.Counter)
}

// Message authenticatorData ++ sha256(clientDataJSON)
func Message(authenticatorData, clientDataJSON []byte) []byte {
	clientHash := sha256.Sum256(clientDataJSON)
	out := make([]byte, 0, len(authenticatorData)+len(clientHash))
	out = append(out, authenticatorData...)
	return append(out, clientHash[:]...)
}

// ChallengeFromClientData 从客户端数据 JSON 取回摘要
func ChallengeFromClientData(clientDataJSON []byte) ([32]byte, error) {
	var out [32]byte
	var cd clientData
	if err := json.Unmarshal(clientDataJSON, &cd); err != nil {
		return out, fmt.Errorf("parse client data: %w", err)
	}
	raw, err := base64.RawURLEncoding.DecodeString(cd.Challenge)
	if err != nil {
		return out, fmt.Errorf("decode challenge: %w", err)
	}
	if len(raw) != len(out) {
		return out, fmt.Errorf("challenge is %d bytes, expected 32", len(raw))
	}
	copy(out[:], raw)
	return out, nil
}
