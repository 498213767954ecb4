package circuitbreaker

// window 记录最近 size 次调用的结果（环形缓冲）。
type window struct {
	outcomes []bool // true 表示失败
	next     int
	calls    int
	failures int
}

func newWindow(size int) *window {
	return &window{outcomes: make([]bool, size)}
}

func (w *window) record(failed bool) {
	if w.calls == len(w.outcomes) {
		// 窗口已满，淘汰最旧的结果
		if w.outcomes[w.next] {
			w.failures--
		}
	} else {
		w.calls++
	}
	w.outcomes[w.next] = failed
	if failed {
		w.failures++
	}
	w.next = (w.next + 1) % len(w.outcomes)
}

func (w *window) reset() {
	for i := range w.outcomes {
		w.outcomes[i] = false
	}
	w.next = 0
	w.calls = 0
	w.failures = 0
}
