package util

// EachChunk 按 size 切分 items 并依次交给 fn，遇到错误立即返回。
// size 不大于 0 时整体作为一批；chunk 与 items 共享底层数组，不做拷贝。
func EachChunk[T any](items []T, size int, fn func(chunk []T) error) error {
	if len(items) == 0 {
		return nil
	}
	if size <= 0 || size > len(items) {
		size = len(items)
	}
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		if err := fn(items[start:end:end]); err != nil {
			return err
		}
	}
	return nil
}
