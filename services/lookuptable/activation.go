package lookuptable

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/weisyn/smart-account-sdk-go/message"
	"github.com/weisyn/smart-account-sdk-go/types"
)

const (
	defaultActivationTimeout = 20 * time.Second
	defaultPollInterval      = 400 * time.Millisecond
	defaultMaxPollAttempts   = 50
)

// nextSlotFunc 阻塞直到得到下一个观测槽位
type nextSlotFunc func() (uint64, error)

// waitActive 有界等待，直到当前槽位大于表的最后扩展槽位
//
// 同时受 ActivationTimeout 与 MaxPollAttempts 约束，先到者生效
func (s *lookupTableService) waitActive(ctx context.Context, table types.Address) (*message.LookupTable, error) {
	timeout := s.config.LookupTable.ActivationTimeout
	if timeout <= 0 {
		timeout = defaultActivationTimeout
	}
	maxAttempts := s.config.LookupTable.MaxPollAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxPollAttempts
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	next := s.slotSource(ctx)

	var loaded *message.LookupTable
	for attempt := 0; ; attempt++ {
		if attempt >= maxAttempts {
			return nil, compressionFailure(table, fmt.Errorf("not active after %d slot observations", attempt))
		}
		slot, err := next()
		if err != nil {
			return nil, compressionFailure(table, err)
		}

		if loaded == nil || !loaded.IsActive() {
			tables, err := s.load(ctx, []types.Address{table})
			switch {
			case err == nil:
				loaded = tables[0]
			case ctx.Err() != nil:
				return nil, compressionFailure(table, ctx.Err())
			default:
				// 表账户尚未落账，下一个槽位重试
				s.logger.Debug("lookup table not readable yet", "table", table.String(), "error", err)
				continue
			}
		}

		if loaded.IsUsableAt(slot) {
			s.logger.Debug("lookup table active", "table", table.String(), "slot", slot, "addresses", len(loaded.Addresses))
			return loaded, nil
		}
		if !loaded.IsActive() {
			return nil, compressionFailure(table, errors.New("lookup table is deactivated"))
		}
	}
}

// slotSource 优先使用槽位订阅，不可用时回退到轮询
func (s *lookupTableService) slotSource(ctx context.Context) nextSlotFunc {
	if s.config.LookupTable.UseSubscription {
		slots, err := s.client.SubscribeSlots(ctx)
		if err == nil {
			return func() (uint64, error) {
				select {
				case <-ctx.Done():
					return 0, ctx.Err()
				case slot, ok := <-slots:
					if !ok {
						return 0, errors.New("slot subscription closed")
					}
					return slot, nil
				}
			}
		}
		s.logger.Warn("slot subscription unavailable, polling instead", "error", err)
	}

	interval := s.config.LookupTable.PollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}
	first := true
	return func() (uint64, error) {
		if !first {
			timer := time.NewTimer(interval)
			select {
			case <-ctx.Done():
				timer.Stop()
				return 0, ctx.Err()
			case <-timer.C:
			}
		}
		first = false
		return s.client.GetSlot(ctx)
	}
}

func compressionFailure(table types.Address, cause error) error {
	return types.NewError(types.KindCompression, fmt.Sprintf("lookup table %s did not become active", table), cause)
}
