package program

import (
	"encoding/binary"
	"fmt"

	"github.com/weisyn/smart-account-sdk-go/types"
)

const (
	secp256r1HeaderSize = 16
	secp256r1PubkeySize = 33
	secp256r1SigSize    = 64
	secp256r1CurrentIx  = 0xFFFF
)

// Secp256r1Verify 构造 Secp256r1 预编译校验指令（单签名，数据内联）
func Secp256r1Verify(publicKey, signature, message []byte) (types.Instruction, error) {
	if len(publicKey) != secp256r1PubkeySize {
		return types.Instruction{}, types.NewEncodingError("secp256r1 public key must be %d bytes, got %d", secp256r1PubkeySize, len(publicKey))
	}
	if len(signature) != secp256r1SigSize {
		return types.Instruction{}, types.NewEncodingError("secp256r1 signature must be %d bytes, got %d", secp256r1SigSize, len(signature))
	}
	if len(message) > 0xFFFF {
		return types.Instruction{}, types.NewEncodingError("secp256r1 message too long: %d", len(message))
	}

	pubkeyOffset := secp256r1HeaderSize
	sigOffset := pubkeyOffset + secp256r1PubkeySize
	msgOffset := sigOffset + secp256r1SigSize

	data := make([]byte, 0, msgOffset+len(message))
	data = append(data, 1, 0)
	for _, v := range []int{sigOffset, secp256r1CurrentIx, pubkeyOffset, secp256r1CurrentIx, msgOffset, len(message), secp256r1CurrentIx} {
		data = binary.LittleEndian.AppendUint16(data, uint16(v))
	}
	data = append(data, publicKey...)
	data = append(data, signature...)
	data = append(data, message...)

	return types.Instruction{ProgramID: Secp256r1ProgramID, Data: data}, nil
}

// Secp256r1Payload 预编译指令中的公钥、签名与消息
type Secp256r1Payload struct {
	PublicKey []byte
	Signature []byte
	Message   []byte
}

// ParseSecp256r1 解析单签名预编译指令数据
func ParseSecp256r1(data []byte) (*Secp256r1Payload, error) {
	if len(data) < secp256r1HeaderSize || data[0] != 1 {
		return nil, fmt.Errorf("not a single-signature secp256r1 instruction")
	}
	u16 := func(i int) int { return int(binary.LittleEndian.Uint16(data[2+2*i:])) }
	sigOff, pubOff, msgOff, msgSize := u16(0), u16(2), u16(4), u16(5)
	if pubOff+secp256r1PubkeySize > len(data) || sigOff+secp256r1SigSize > len(data) || msgOff+msgSize > len(data) {
		return nil, fmt.Errorf("secp256r1 offsets out of range")
	}
	return &Secp256r1Payload{
		PublicKey: data[pubOff : pubOff+secp256r1PubkeySize],
		Signature: data[sigOff : sigOff+secp256r1SigSize],
		Message:   data[msgOff : msgOff+msgSize],
	}, nil
}

// SystemTransfer System 程序转账
func SystemTransfer(from, to types.Address, lamports uint64) types.Instruction {
	data := binary.LittleEndian.AppendUint32(nil, 2)
	data = binary.LittleEndian.AppendUint64(data, lamports)
	return types.Instruction{
		ProgramID: SystemProgramID,
		Accounts: []types.AccountMeta{
			types.NewAccountMeta(from, true, true),
			types.NewAccountMeta(to, false, true),
		},
		Data: data,
	}
}

// SetComputeUnitLimit 计算单元上限
func SetComputeUnitLimit(units uint32) types.Instruction {
	data := binary.LittleEndian.AppendUint32([]byte{2}, units)
	return types.Instruction{ProgramID: ComputeBudgetProgramID, Data: data}
}

// SetComputeUnitPrice 计算单元价格（micro-lamports）
func SetComputeUnitPrice(microLamports uint64) types.Instruction {
	data := binary.LittleEndian.AppendUint64([]byte{3}, microLamports)
	return types.Instruction{ProgramID: ComputeBudgetProgramID, Data: data}
}

// CreateLookupTable 构造创建查找表指令，返回指令与表地址
func CreateLookupTable(authority, payer types.Address, recentSlot uint64) (types.Instruction, types.Address, error) {
	table, bump, err := FindProgramAddress([][]byte{authority[:], binary.LittleEndian.AppendUint64(nil, recentSlot)}, AddressLookupTableID)
	if err != nil {
		return types.Instruction{}, types.Address{}, err
	}

	data := binary.LittleEndian.AppendUint32(nil, 0)
	data = binary.LittleEndian.AppendUint64(data, recentSlot)
	data = append(data, bump)

	return types.Instruction{
		ProgramID: AddressLookupTableID,
		Accounts: []types.AccountMeta{
			types.NewAccountMeta(table, false, true),
			types.NewAccountMeta(authority, true, false),
			types.NewAccountMeta(payer, true, true),
			types.NewAccountMeta(SystemProgramID, false, false),
		},
		Data: data,
	}, table, nil
}

// ExtendLookupTable 构造扩展查找表指令
func ExtendLookupTable(table, authority, payer types.Address, addresses []types.Address) types.Instruction {
	data := binary.LittleEndian.AppendUint32(nil, 2)
	data = binary.LittleEndian.AppendUint64(data, uint64(len(addresses)))
	for _, a := range addresses {
		data = append(data, a[:]...)
	}
	return types.Instruction{
		ProgramID: AddressLookupTableID,
		Accounts: []types.AccountMeta{
			types.NewAccountMeta(table, false, true),
			types.NewAccountMeta(authority, true, false),
			types.NewAccountMeta(payer, true, true),
			types.NewAccountMeta(SystemProgramID, false, false),
		},
		Data: data,
	}
}
