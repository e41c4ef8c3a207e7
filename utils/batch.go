// Package utils 提供并发与分批辅助函数
package utils

import (
	"context"
	"fmt"
	"sync"

	"github.com/hashicorp/go-multierror"
)

// ItemError 单个输入项的失败
type ItemError struct {
	Index int
	Err   error
}

func (e *ItemError) Error() string {
	return fmt.Sprintf("item %d: %v", e.Index, e.Err)
}

func (e *ItemError) Unwrap() error {
	return e.Err
}

// ParallelExecute 并行执行多个操作，限制并发数量
//
// 结果与输入一一对应；任一项失败时返回聚合了全部失败项的 *multierror.Error，
// 成功项的结果仍然保留在返回的切片中。
//
// 示例：
//
//	infos, err := ParallelExecute(ctx, chunks, func(ctx context.Context, chunk []types.Address) ([]*client.AccountInfo, error) {
//	    return ledger.GetMultipleAccounts(ctx, chunk)
//	}, 4)
func ParallelExecute[T any, R any](
	ctx context.Context,
	items []T,
	executeFn func(ctx context.Context, item T) (R, error),
	concurrency int,
) ([]R, error) {
	if concurrency <= 0 {
		concurrency = 5
	}

	results := make([]R, len(items))
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		merged *multierror.Error
	)
	sem := make(chan struct{}, concurrency)

	for i, item := range items {
		wg.Add(1)
		go func(index int, it T) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				mu.Lock()
				merged = multierror.Append(merged, &ItemError{Index: index, Err: ctx.Err()})
				mu.Unlock()
				return
			}
			defer func() { <-sem }()

			result, err := executeFn(ctx, it)
			if err != nil {
				mu.Lock()
				merged = multierror.Append(merged, &ItemError{Index: index, Err: err})
				mu.Unlock()
				return
			}
			results[index] = result
		}(i, item)
	}

	wg.Wait()
	return results, merged.ErrorOrNil()
}

// BatchArray 将数组按 batchSize 分批
func BatchArray[T any](array []T, batchSize int) [][]T {
	if batchSize <= 0 {
		batchSize = len(array)
	}
	batches := make([][]T, 0, (len(array)+max(batchSize, 1)-1)/max(batchSize, 1))
	for i := 0; i < len(array); i += batchSize {
		end := min(i+batchSize, len(array))
		batches = append(batches, array[i:end])
	}
	return batches
}
