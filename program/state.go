package program

import (
	"bytes"
	"fmt"

	"github.com/weisyn/smart-account-sdk-go/types"
)

// SmartAccountState 状态账户
type SmartAccountState struct {
	Nonce     uint64
	VaultBump uint8
	PublicKey [33]byte
}

// DecodeSmartAccountState 解码状态账户数据
func DecodeSmartAccountState(data []byte) (*SmartAccountState, error) {
	r, err := checkDisc(data, AccountSmartAccountState)
	if err != nil {
		return nil, err
	}
	var st SmartAccountState
	st.Nonce = r.u64()
	st.VaultBump = r.u8()
	copy(st.PublicKey[:], r.take(len(st.PublicKey)))
	if r.err != nil {
		return nil, r.err
	}
	return &st, nil
}

// OptimisticValidationWindow 乐观验证记录
type OptimisticValidationWindow struct {
	TargetHash types.Hash
	MaxSlot    uint64
	FeePayer   types.Address
	Executed   bool
}

// DecodeOptimisticValidation 解码乐观验证记录
func DecodeOptimisticValidation(data []byte) (*OptimisticValidationWindow, error) {
	r, err := checkDisc(data, AccountOptimisticValidation)
	if err != nil {
		return nil, err
	}
	var w OptimisticValidationWindow
	copy(w.TargetHash[:], r.take(32))
	w.MaxSlot = r.u64()
	w.FeePayer = r.address()
	w.Executed = r.u8() != 0
	if r.err != nil {
		return nil, r.err
	}
	return &w, nil
}

// EncodeOptimisticValidation 编码乐观验证记录（用于测试与模拟账本）
func EncodeOptimisticValidation(w *OptimisticValidationWindow) []byte {
	out := newWriter(AccountDiscriminator(AccountOptimisticValidation), 73)
	out.raw(w.TargetHash[:]).u64(w.MaxSlot).raw(w.FeePayer[:])
	if w.Executed {
		out.u8(1)
	} else {
		out.u8(0)
	}
	return out.buf
}

// EncodeSmartAccountState 编码状态账户（用于测试与模拟账本）
func EncodeSmartAccountState(st *SmartAccountState) []byte {
	out := newWriter(AccountDiscriminator(AccountSmartAccountState), 42)
	out.u64(st.Nonce).u8(st.VaultBump).raw(st.PublicKey[:])
	return out.buf
}

// CheckExecutable 本地预检：窗口未过期、未执行且目标哈希一致
//
// 检查顺序与引擎一致：过期、已执行、哈希不符。
func (w *OptimisticValidationWindow) CheckExecutable(currentSlot uint64, hash types.Hash) error {
	if currentSlot > w.MaxSlot {
		return types.NewError(types.KindOptimisticWindowExpired,
			fmt.Sprintf("current slot %d is past max slot %d", currentSlot, w.MaxSlot), nil)
	}
	if w.Executed {
		return types.NewError(types.KindOptimisticWindowConsumed, "optimistic validation already executed", nil)
	}
	if w.TargetHash != hash {
		return types.NewError(types.KindHashMismatch,
			fmt.Sprintf("operations hash %s does not match pinned target %s", hash, w.TargetHash), nil)
	}
	return nil
}

func checkDisc(data []byte, name string) (*reader, error) {
	disc := AccountDiscriminator(name)
	if len(data) < len(disc) || !bytes.Equal(data[:len(disc)], disc[:]) {
		return nil, types.NewError(types.KindInvalidState, fmt.Sprintf("account data is not a %s", name), nil)
	}
	return &reader{buf: data, off: len(disc)}, nil
}
