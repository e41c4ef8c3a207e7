package message

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/weisyn/smart-account-sdk-go/types"
)

// lookupTableMetaSize 查找表账户头部长度，其后为 32 字节地址数组
const lookupTableMetaSize = 56

// LookupTable 已加载的地址查找表
type LookupTable struct {
	Address                    types.Address
	DeactivationSlot           uint64
	LastExtendedSlot           uint64
	LastExtendedSlotStartIndex uint8
	Authority                  *types.Address
	Addresses                  []types.Address
}

// IsActive 表未被停用
func (t *LookupTable) IsActive() bool {
	return t.DeactivationSlot == math.MaxUint64
}

// IsUsableAt 在给定槽位可用于压缩：未停用，且最后一次扩展已经生效
func (t *LookupTable) IsUsableAt(slot uint64) bool {
	return t.IsActive() && slot > t.LastExtendedSlot
}

// Index 地址在表中的位置
func (t *LookupTable) Index(addr types.Address) (uint8, bool) {
	for i, a := range t.Addresses {
		if i > math.MaxUint8 {
			break
		}
		if a == addr {
			return uint8(i), true
		}
	}
	return 0, false
}

// DecodeLookupTable 解码查找表账户数据
func DecodeLookupTable(address types.Address, data []byte) (*LookupTable, error) {
	if len(data) < lookupTableMetaSize {
		return nil, types.NewError(types.KindInvalidState, fmt.Sprintf("lookup table data is %d bytes", len(data)), nil)
	}
	if binary.LittleEndian.Uint32(data[0:4]) != 1 {
		return nil, types.NewError(types.KindInvalidState, "account is not an initialized lookup table", nil)
	}
	if (len(data)-lookupTableMetaSize)%types.AddressLength != 0 {
		return nil, types.NewError(types.KindInvalidState, "lookup table address list is misaligned", nil)
	}

	t := &LookupTable{
		Address:                    address,
		DeactivationSlot:           binary.LittleEndian.Uint64(data[4:12]),
		LastExtendedSlot:           binary.LittleEndian.Uint64(data[12:20]),
		LastExtendedSlotStartIndex: data[20],
	}
	if data[21] == 1 {
		var auth types.Address
		copy(auth[:], data[22:54])
		t.Authority = &auth
	}

	for off := lookupTableMetaSize; off < len(data); off += types.AddressLength {
		var a types.Address
		copy(a[:], data[off:off+types.AddressLength])
		t.Addresses = append(t.Addresses, a)
	}
	return t, nil
}

// EncodeLookupTable 编码查找表账户数据（用于测试与模拟账本）
func EncodeLookupTable(t *LookupTable) []byte {
	data := make([]byte, lookupTableMetaSize, lookupTableMetaSize+len(t.Addresses)*types.AddressLength)
	binary.LittleEndian.PutUint32(data[0:4], 1)
	binary.LittleEndian.PutUint64(data[4:12], t.DeactivationSlot)
	binary.LittleEndian.PutUint64(data[12:20], t.LastExtendedSlot)
	data[20] = t.LastExtendedSlotStartIndex
	if t.Authority != nil {
		data[21] = 1
		copy(data[22:54], t.Authority[:])
	}
	for _, a := range t.Addresses {
		data = append(data, a[:]...)
	}
	return data
}
