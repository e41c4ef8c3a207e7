// Package message 编译、序列化与解析账本交易消息
//
// 无查找表时生成 legacy 消息；提供查找表时生成 v0 消息，
// 将非签名、非程序账户替换为表内索引以压缩体积。
package message

import (
	"fmt"

	"github.com/weisyn/smart-account-sdk-go/types"
)

// Version 消息版本
type Version int

const (
	// VersionLegacy 无版本前缀
	VersionLegacy Version = -1
	// Version0 带地址查找表
	Version0 Version = 0
)

const versionPrefix = 0x80

// MaxAccountKeys 单条消息可寻址的账户上限
const MaxAccountKeys = 256

// Header 消息头
type Header struct {
	NumRequiredSignatures       uint8
	NumReadonlySignedAccounts   uint8
	NumReadonlyUnsignedAccounts uint8
}

// CompiledInstruction 以账户索引表示的指令
type CompiledInstruction struct {
	ProgramIDIndex uint8
	Accounts       []uint8
	Data           []byte
}

// AddressTableLookup v0 消息中的查找表引用
type AddressTableLookup struct {
	TableAddress    types.Address
	WritableIndexes []uint8
	ReadonlyIndexes []uint8
}

// Message 已编译消息
type Message struct {
	Version             Version
	Header              Header
	AccountKeys         []types.Address
	RecentBlockhash     types.Hash
	Instructions        []CompiledInstruction
	AddressTableLookups []AddressTableLookup
}

// CompileInput 编译输入
type CompileInput struct {
	Payer           types.Address
	Instructions    []types.Instruction
	RecentBlockhash types.Hash
	Tables          []*LookupTable
}

type keyMeta struct {
	signer   bool
	writable bool
	invoked  bool
}

// Compile 编译消息
func Compile(in CompileInput) (*Message, error) {
	if in.Payer.IsZero() {
		return nil, types.NewEncodingError("fee payer is not set")
	}

	order := []types.Address{in.Payer}
	metas := map[types.Address]*keyMeta{in.Payer: {signer: true, writable: true}}
	touch := func(a types.Address) *keyMeta {
		m, ok := metas[a]
		if !ok {
			m = &keyMeta{}
			metas[a] = m
			order = append(order, a)
		}
		return m
	}

	for _, ix := range in.Instructions {
		touch(ix.ProgramID).invoked = true
		for _, acc := range ix.Accounts {
			m := touch(acc.Address)
			m.signer = m.signer || acc.IsSigner
			m.writable = m.writable || acc.IsWritable
		}
	}

	msg := &Message{Version: VersionLegacy, RecentBlockhash: in.RecentBlockhash}

	// 从查找表中提取可压缩的账户
	var loadedWritable, loadedReadonly []types.Address
	extracted := map[types.Address]bool{}
	if len(in.Tables) > 0 {
		msg.Version = Version0
		for _, table := range in.Tables {
			lookup := AddressTableLookup{TableAddress: table.Address}
			for _, a := range order {
				m := metas[a]
				if m.signer || m.invoked || extracted[a] {
					continue
				}
				idx, ok := table.Index(a)
				if !ok {
					continue
				}
				extracted[a] = true
				if m.writable {
					lookup.WritableIndexes = append(lookup.WritableIndexes, idx)
					loadedWritable = append(loadedWritable, a)
				} else {
					lookup.ReadonlyIndexes = append(lookup.ReadonlyIndexes, idx)
					loadedReadonly = append(loadedReadonly, a)
				}
			}
			if len(lookup.WritableIndexes)+len(lookup.ReadonlyIndexes) > 0 {
				msg.AddressTableLookups = append(msg.AddressTableLookups, lookup)
			}
		}
	}

	var writableSigners, readonlySigners, writableUnsigned, readonlyUnsigned []types.Address
	for _, a := range order {
		if extracted[a] {
			continue
		}
		m := metas[a]
		switch {
		case m.signer && m.writable:
			writableSigners = append(writableSigners, a)
		case m.signer:
			readonlySigners = append(readonlySigners, a)
		case m.writable:
			writableUnsigned = append(writableUnsigned, a)
		default:
			readonlyUnsigned = append(readonlyUnsigned, a)
		}
	}

	keys := make([]types.Address, 0, len(order)-len(extracted))
	keys = append(keys, writableSigners...)
	keys = append(keys, readonlySigners...)
	keys = append(keys, writableUnsigned...)
	keys = append(keys, readonlyUnsigned...)

	total := len(keys) + len(loadedWritable) + len(loadedReadonly)
	if total > MaxAccountKeys {
		return nil, types.NewEncodingError("message references %d accounts, maximum is %d", total, MaxAccountKeys)
	}

	msg.AccountKeys = keys
	msg.Header = Header{
		NumRequiredSignatures:       uint8(len(writableSigners) + len(readonlySigners)),
		NumReadonlySignedAccounts:   uint8(len(readonlySigners)),
		NumReadonlyUnsignedAccounts: uint8(len(readonlyUnsigned)),
	}

	index := make(map[types.Address]uint8, total)
	all := make([]types.Address, 0, total)
	all = append(all, keys...)
	all = append(all, loadedWritable...)
	all = append(all, loadedReadonly...)
	for i, a := range all {
		index[a] = uint8(i)
	}

	msg.Instructions = make([]CompiledInstruction, len(in.Instructions))
	for i, ix := range in.Instructions {
		ci := CompiledInstruction{
			ProgramIDIndex: index[ix.ProgramID],
			Accounts:       make([]uint8, len(ix.Accounts)),
			Data:           ix.Data,
		}
		for j, acc := range ix.Accounts {
			ci.Accounts[j] = index[acc.Address]
		}
		msg.Instructions[i] = ci
	}

	return msg, nil
}

// Signers 需要签名的账户
func (m *Message) Signers() []types.Address {
	return m.AccountKeys[:m.Header.NumRequiredSignatures]
}

// IsWritableStatic 静态账户是否可写
func (m *Message) IsWritableStatic(i int) bool {
	h := m.Header
	n := len(m.AccountKeys)
	if i < int(h.NumRequiredSignatures) {
		return i < int(h.NumRequiredSignatures-h.NumReadonlySignedAccounts)
	}
	return i < n-int(h.NumReadonlyUnsignedAccounts)
}

// Serialize 序列化消息
func (m *Message) Serialize() []byte {
	buf := make([]byte, 0, 256)
	if m.Version == Version0 {
		buf = append(buf, versionPrefix)
	}
	buf = append(buf, m.Header.NumRequiredSignatures, m.Header.NumReadonlySignedAccounts, m.Header.NumReadonlyUnsignedAccounts)

	buf = AppendLength(buf, len(m.AccountKeys))
	for _, k := range m.AccountKeys {
		buf = append(buf, k[:]...)
	}
	buf = append(buf, m.RecentBlockhash[:]...)

	buf = AppendLength(buf, len(m.Instructions))
	for _, ix := range m.Instructions {
		buf = append(buf, ix.ProgramIDIndex)
		buf = AppendLength(buf, len(ix.Accounts))
		buf = append(buf, ix.Accounts...)
		buf = AppendLength(buf, len(ix.Data))
		buf = append(buf, ix.Data...)
	}

	if m.Version == Version0 {
		buf = AppendLength(buf, len(m.AddressTableLookups))
		for _, l := range m.AddressTableLookups {
			buf = append(buf, l.TableAddress[:]...)
			buf = AppendLength(buf, len(l.WritableIndexes))
			buf = append(buf, l.WritableIndexes...)
			buf = AppendLength(buf, len(l.ReadonlyIndexes))
			buf = append(buf, l.ReadonlyIndexes...)
		}
	}
	return buf
}

type decoder struct {
	buf []byte
	off int
}

func (d *decoder) length() (int, error) {
	n, used, err := DecodeLength(d.buf[d.off:])
	if err != nil {
		return 0, err
	}
	d.off += used
	return n, nil
}

func (d *decoder) bytes(n int) ([]byte, error) {
	if d.off+n > len(d.buf) {
		return nil, fmt.Errorf("message truncated at offset %d", d.off)
	}
	out := d.buf[d.off : d.off+n]
	d.off += n
	return out, nil
}

func (d *decoder) shortBytes() ([]byte, error) {
	n, err := d.length()
	if err != nil {
		return nil, err
	}
	return d.bytes(n)
}

func (d *decoder) address() (types.Address, error) {
	var a types.Address
	b, err := d.bytes(types.AddressLength)
	if err != nil {
		return a, err
	}
	copy(a[:], b)
	return a, nil
}

// Decode 解析序列化消息，返回消息与消耗的字节数
func Decode(data []byte) (*Message, int, error) {
	d := &decoder{buf: data}
	msg := &Message{Version: VersionLegacy}

	if len(data) == 0 {
		return nil, 0, fmt.Errorf("empty message")
	}
	if data[0]&versionPrefix != 0 {
		if v := data[0] &^ versionPrefix; v != 0 {
			return nil, 0, fmt.Errorf("unsupported message version %d", v)
		}
		msg.Version = Version0
		d.off++
	}

	header, err := d.bytes(3)
	if err != nil {
		return nil, 0, err
	}
	msg.Header = Header{header[0], header[1], header[2]}

	n, err := d.length()
	if err != nil {
		return nil, 0, err
	}
	msg.AccountKeys = make([]types.Address, n)
	for i := range msg.AccountKeys {
		if msg.AccountKeys[i], err = d.address(); err != nil {
			return nil, 0, err
		}
	}

	bh, err := d.address()
	if err != nil {
		return nil, 0, err
	}
	msg.RecentBlockhash = types.Hash(bh)

	if n, err = d.length(); err != nil {
		return nil, 0, err
	}
	msg.Instructions = make([]CompiledInstruction, n)
	for i := range msg.Instructions {
		pid, err := d.bytes(1)
		if err != nil {
			return nil, 0, err
		}
		accounts, err := d.shortBytes()
		if err != nil {
			return nil, 0, err
		}
		payload, err := d.shortBytes()
		if err != nil {
			return nil, 0, err
		}
		msg.Instructions[i] = CompiledInstruction{ProgramIDIndex: pid[0], Accounts: accounts, Data: payload}
	}

	if msg.Version == Version0 {
		if n, err = d.length(); err != nil {
			return nil, 0, err
		}
		for i := 0; i < n; i++ {
			var l AddressTableLookup
			if l.TableAddress, err = d.address(); err != nil {
				return nil, 0, err
			}
			if l.WritableIndexes, err = d.shortBytes(); err != nil {
				return nil, 0, err
			}
			if l.ReadonlyIndexes, err = d.shortBytes(); err != nil {
				return nil, 0, err
			}
			msg.AddressTableLookups = append(msg.AddressTableLookups, l)
		}
	}

	return msg, d.off, nil
}

// ResolveAccounts 使用已加载的查找表还原完整账户列表（静态 + 可写加载 + 只读加载）
func (m *Message) ResolveAccounts(tables map[types.Address]*LookupTable) ([]types.Address, error) {
	out := append([]types.Address{}, m.AccountKeys...)
	var writable, readonly []types.Address
	for _, l := range m.AddressTableLookups {
		table, ok := tables[l.TableAddress]
		if !ok {
			return nil, fmt.Errorf("lookup table %s not provided", l.TableAddress)
		}
		for _, idx := range l.WritableIndexes {
			if int(idx) >= len(table.Addresses) {
				return nil, fmt.Errorf("lookup index %d out of range for table %s", idx, l.TableAddress)
			}
			writable = append(writable, table.Addresses[idx])
		}
		for _, idx := range l.ReadonlyIndexes {
			if int(idx) >= len(table.Addresses) {
				return nil, fmt.Errorf("lookup index %d out of range for table %s", idx, l.TableAddress)
			}
			readonly = append(readonly, table.Addresses[idx])
		}
	}
	out = append(out, writable...)
	return append(out, readonly...), nil
}
