package intent

import (
	"encoding/binary"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/weisyn/smart-account-sdk-go/types"
)

// DefaultMaxPayloadSize 单步载荷默认上限（字节）
const DefaultMaxPayloadSize = 1024

// Encoder 意图规范字节编码器
//
// **布局**（冻结契约，不可重排、填充或优化）：
//
//	LE64(nonce) ++ LE64(feeAmount) ++ presence ++ [32 字节资产 ID]
//	++ 对每个前置步骤、再对每个操作步骤：
//	   payload ++ targetId
//	   ++ [signer, writable, targetId]（目标程序作为伪账户）
//	   ++ 对每个账户引用：[signer, writable, address]
type Encoder struct {
	VaultAddress   types.Address
	VaultWritable  bool
	MaxPayloadSize int
}

// NewEncoder 创建编码器（金库可写，默认载荷上限）
func NewEncoder(vault types.Address) *Encoder {
	return &Encoder{
		VaultAddress:   vault,
		VaultWritable:  true,
		MaxPayloadSize: DefaultMaxPayloadSize,
	}
}

// Encoded 编码结果
type Encoded struct {
	Bytes       []byte          // 规范字节
	Preamble    []OperationStep // 使用合并裁决重建的前置步骤
	Steps       []OperationStep // 使用合并裁决重建的操作步骤
	Permissions *PermissionSet  // 合并权限表
}

// Hash 规范字节的 keccak256 摘要
func (e *Encoded) Hash() types.Hash {
	return Hash(e.Bytes)
}

// Hash 计算意图摘要 keccak256(intentBytes)
func Hash(intentBytes []byte) types.Hash {
	var h types.Hash
	copy(h[:], ethcrypto.Keccak256(intentBytes))
	return h
}

// headerSize 规范字节头部长度（不含资产 ID）
const headerSize = 8 + 8 + 1

// ParseHeader 从规范字节解析 nonce、费用金额与费用资产
func ParseHeader(b []byte) (*Intent, error) {
	if len(b) < headerSize {
		return nil, types.NewEncodingError("intent bytes too short: %d", len(b))
	}
	in := &Intent{
		Nonce:     binary.LittleEndian.Uint64(b[0:8]),
		FeeAmount: binary.LittleEndian.Uint64(b[8:16]),
	}
	switch b[16] {
	case 0:
	case 1:
		if len(b) < headerSize+len(types.Address{}) {
			return nil, types.NewEncodingError("intent bytes truncated in fee asset: %d", len(b))
		}
		var asset types.Address
		copy(asset[:], b[headerSize:])
		in.FeeAsset = &asset
	default:
		return nil, types.NewEncodingError("invalid fee asset presence flag %d", b[16])
	}
	return in, nil
}

// Encode 编码意图
func (enc *Encoder) Encode(in *Intent) (*Encoded, error) {
	if in == nil || len(in.Steps) == 0 {
		return nil, types.NewEncodingError("intent has no operation steps")
	}
	if enc.VaultAddress.IsZero() {
		return nil, types.NewEncodingError("vault address is not configured")
	}

	all := make([]OperationStep, 0, len(in.Preamble)+len(in.Steps))
	all = append(all, in.Preamble...)
	all = append(all, in.Steps...)

	if err := enc.validate(all); err != nil {
		return nil, err
	}

	resolver := &Resolver{VaultAddress: enc.VaultAddress, VaultWritable: enc.VaultWritable}
	perms, resolved, err := resolver.Resolve(all)
	if err != nil {
		return nil, err
	}

	buf := make([]byte, 0, encodedSize(in, resolved))
	buf = binary.LittleEndian.AppendUint64(buf, in.Nonce)
	buf = binary.LittleEndian.AppendUint64(buf, in.FeeAmount)
	if in.FeeAsset != nil {
		buf = append(buf, 1)
		buf = append(buf, in.FeeAsset[:]...)
	} else {
		buf = append(buf, 0)
	}

	for _, step := range resolved {
		buf = append(buf, step.Payload...)
		buf = append(buf, step.TargetID[:]...)

		target, _ := perms.Lookup(step.TargetID)
		buf = appendAccount(buf, target.IsSigner, target.IsWritable, step.TargetID)

		for _, ref := range step.Accounts {
			buf = appendAccount(buf, ref.IsSigner, ref.IsWritable, ref.Address)
		}
	}

	return &Encoded{
		Bytes:       buf,
		Preamble:    resolved[:len(in.Preamble)],
		Steps:       resolved[len(in.Preamble):],
		Permissions: perms,
	}, nil
}

// validate 校验载荷大小与地址格式
func (enc *Encoder) validate(steps []OperationStep) error {
	maxPayload := enc.MaxPayloadSize
	if maxPayload <= 0 {
		maxPayload = DefaultMaxPayloadSize
	}

	for i, step := range steps {
		if len(step.Payload) > maxPayload {
			return types.NewEncodingError("step %d payload is %d bytes, exceeds maximum %d", i, len(step.Payload), maxPayload)
		}
		for j, ref := range step.Accounts {
			// 全零地址是 System 程序，不可能签名或被写入
			if ref.Address.IsZero() && (ref.IsSigner || ref.IsWritable) {
				return types.NewEncodingError("step %d account %d: zero address cannot be signer or writable", i, j)
			}
		}
	}
	return nil
}

func appendAccount(buf []byte, signer, writable bool, addr types.Address) []byte {
	buf = append(buf, boolByte(signer), boolByte(writable))
	return append(buf, addr[:]...)
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

func encodedSize(in *Intent, steps []OperationStep) int {
	size := 8 + 8 + 1
	if in.FeeAsset != nil {
		size += types.AddressLength
	}
	for _, step := range steps {
		size += len(step.Payload) + types.AddressLength + (1+len(step.Accounts))*(2+types.AddressLength)
	}
	return size
}
