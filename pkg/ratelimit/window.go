package ratelimit

import "time"

// Window 滚动窗口频率闸门（交易所 20 ops/s 硬限制用）。
//
// 语义与令牌桶不同：交易所按“尾随 1 秒内的操作数”判定违规，
// 令牌桶的平滑补充在窗口边界附近会给出错误答案，所以这里精确记录
// 每次放行的时间戳。容量天然有界（= Limit），用环形数组存储。
//
// 非并发安全：只允许交易主循环单写调用。被拒绝不是错误，
// 是调用方必须遵守的正常控制信号——越限的代价是整场断线。
type Window struct {
	interval time.Duration
	limit    int

	stamps []time.Time // ring buffer, len == limit
	head   int         // index of oldest admitted stamp
	count  int         // admitted stamps still inside the ring
}

// NewWindow 创建滚动窗口。limit <= 0 或 interval <= 0 视为配置错误，
// 这里不做兜底：上限是交易所注入的硬约束，必须显式给出。
func NewWindow(interval time.Duration, limit int) *Window {
	return &Window{
		interval: interval,
		limit:    limit,
		stamps:   make([]time.Time, limit),
	}
}

// evict 丢掉已经滑出 [now-interval, now] 的时间戳。
// 边界取闭区间：恰好在 now-interval 上的操作仍然计数。
func (w *Window) evict(now time.Time) {
	cutoff := now.Add(-w.interval)
	for w.count > 0 && w.stamps[w.head].Before(cutoff) {
		w.head = (w.head + 1) % w.limit
		w.count--
	}
}

// Admit 判定此刻能否再发一个操作；放行则记录时间戳。
// 必须用单调不减的 now 调用（交易循环内取同一时钟）。
func (w *Window) Admit(now time.Time) bool {
	w.evict(now)
	if w.count >= w.limit {
		return false
	}
	w.stamps[(w.head+w.count)%w.limit] = now
	w.count++
	return true
}

// Budget 返回当前还能放行的操作数（收盘撤单时用来决定撤到哪为止）。
func (w *Window) Budget(now time.Time) int {
	w.evict(now)
	return w.limit - w.count
}

// InWindow 返回窗口内已放行的操作数（状态页展示用）。
func (w *Window) InWindow(now time.Time) int {
	w.evict(now)
	return w.count
}
