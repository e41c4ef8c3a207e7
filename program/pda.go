package program

import (
	"crypto/sha256"
	"fmt"
	"strings"

	"filippo.io/edwards25519"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/weisyn/smart-account-sdk-go/types"
)

const (
	maxSeeds      = 16
	maxSeedLength = 32
	pdaMarker     = "ProgramDerivedAddress"
)

// ErrNoViableBump 没有可用的 bump（概率上不会发生）
var ErrNoViableBump = fmt.Errorf("unable to find a viable program address bump seed")

// CreateProgramAddress 由种子（已含 bump）计算程序派生地址
//
// 结果落在 ed25519 曲线上时返回错误。
func CreateProgramAddress(seeds [][]byte, programID types.Address) (types.Address, error) {
	var addr types.Address
	if len(seeds) > maxSeeds {
		return addr, types.NewEncodingError("too many seeds: %d > %d", len(seeds), maxSeeds)
	}

	h := sha256.New()
	for i, seed := range seeds {
		if len(seed) > maxSeedLength {
			return addr, types.NewEncodingError("seed %d is %d bytes, maximum is %d", i, len(seed), maxSeedLength)
		}
		h.Write(seed)
	}
	h.Write(programID[:])
	h.Write([]byte(pdaMarker))
	copy(addr[:], h.Sum(nil))

	if IsOnCurve(addr) {
		return types.Address{}, fmt.Errorf("derived address is on the ed25519 curve")
	}
	return addr, nil
}

// FindProgramAddress 从 255 开始递减寻找第一个离曲线的 bump
func FindProgramAddress(seeds [][]byte, programID types.Address) (types.Address, uint8, error) {
	withBump := make([][]byte, len(seeds)+1)
	copy(withBump, seeds)
	for bump := 255; bump >= 0; bump-- {
		withBump[len(seeds)] = []byte{byte(bump)}
		addr, err := CreateProgramAddress(withBump, programID)
		if err == nil {
			return addr, uint8(bump), nil
		}
		if types.KindOf(err) == types.KindEncoding {
			return types.Address{}, 0, err
		}
	}
	return types.Address{}, 0, ErrNoViableBump
}

// IsOnCurve 判断 32 字节是否为合法的 ed25519 点编码
func IsOnCurve(b types.Address) bool {
	_, err := new(edwards25519.Point).SetBytes(b[:])
	return err == nil
}

// Derived 派生地址及其 bump
type Derived struct {
	Address types.Address
	Bump    uint8
}

// Deriver 带缓存的派生地址计算器
type Deriver struct {
	programID types.Address
	cache     *lru.Cache[string, Derived]
}

// DefaultDeriverCacheSize 默认缓存条目数
const DefaultDeriverCacheSize = 1024

// NewDeriver 创建派生器；cacheSize <= 0 时使用默认值
func NewDeriver(programID types.Address, cacheSize int) *Deriver {
	if cacheSize <= 0 {
		cacheSize = DefaultDeriverCacheSize
	}
	cache, err := lru.New[string, Derived](cacheSize)
	if err != nil {
		// 仅在 size <= 0 时出错
		panic(err)
	}
	return &Deriver{programID: programID, cache: cache}
}

// ProgramID 引擎程序 ID
func (d *Deriver) ProgramID() types.Address {
	return d.programID
}

func (d *Deriver) derive(prefix string, accountID []byte) (Derived, error) {
	if len(accountID) == 0 || len(accountID) > MaxAccountIDLength {
		return Derived{}, types.NewEncodingError("account id must be 1..%d bytes, got %d", MaxAccountIDLength, len(accountID))
	}

	var key strings.Builder
	key.WriteString(prefix)
	key.WriteByte(0)
	key.Write(accountID)
	if v, ok := d.cache.Get(key.String()); ok {
		return v, nil
	}

	addr, bump, err := FindProgramAddress([][]byte{[]byte(prefix), accountID}, d.programID)
	if err != nil {
		return Derived{}, err
	}
	v := Derived{Address: addr, Bump: bump}
	d.cache.Add(key.String(), v)
	return v, nil
}

// Vault 金库地址
func (d *Deriver) Vault(accountID []byte) (Derived, error) {
	return d.derive(SeedVault, accountID)
}

// State 状态账户地址
func (d *Deriver) State(accountID []byte) (Derived, error) {
	return d.derive(SeedState, accountID)
}

// Config 智能账户配置地址
func (d *Deriver) Config(accountID []byte) (Derived, error) {
	return d.derive(SeedConfig, accountID)
}

// Optimistic 乐观验证记录地址
func (d *Deriver) Optimistic(accountID []byte) (Derived, error) {
	return d.derive(SeedOptimistic, accountID)
}

// Accounts 智能账户的全部派生地址
type Accounts struct {
	Vault      Derived
	State      Derived
	Config     Derived
	Optimistic Derived
}

// All 一次性派生全部地址
func (d *Deriver) All(accountID []byte) (*Accounts, error) {
	var out Accounts
	var err error
	if out.Vault, err = d.Vault(accountID); err != nil {
		return nil, err
	}
	if out.State, err = d.State(accountID); err != nil {
		return nil, err
	}
	if out.Config, err = d.Config(accountID); err != nil {
		return nil, err
	}
	if out.Optimistic, err = d.Optimistic(accountID); err != nil {
		return nil, err
	}
	return &out, nil
}
