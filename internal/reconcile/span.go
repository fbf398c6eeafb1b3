package reconcile

import "fmt"

// blockSpan is an inclusive range of block numbers.
type blockSpan struct {
	from uint64
	to   uint64
}

// splitSpan cuts [from, to] into consecutive spans of at most width blocks,
// sized to stay under RPC provider log-query limits.
func splitSpan(from, to, width uint64) ([]blockSpan, error) {
	if width == 0 {
		return nil, fmt.Errorf("span width must be positive")
	}
	if to < from {
		return nil, fmt.Errorf("span end %d before start %d", to, from)
	}

	spans := make([]blockSpan, 0, (to-from)/width+1)
	for start := from; start <= to; start += width {
		end := start + width - 1
		if end > to {
			end = to
		}
		spans = append(spans, blockSpan{from: start, to: end})
		if end == to {
			break
		}
	}
	return spans, nil
}
