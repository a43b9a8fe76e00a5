package llc

import "fmt"

// Stats accumulates the processor-side access counters. Snoops do not
// count.
type Stats struct {
	Reads  uint64
	Writes uint64
	Hits   uint64
	Misses uint64
}

// HitRatio returns hits/(hits+misses). ok is false when no access has been
// counted yet.
func (s Stats) HitRatio() (ratio float64, ok bool) {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0, false
	}

	return float64(s.Hits) / float64(total), true
}

// Reset zeroes all counters.
func (s *Stats) Reset() {
	*s = Stats{}
}

// Report formats the statistics block printed on the normal sink.
func (s Stats) Report() string {
	ratioStr := "n/a"
	if ratio, ok := s.HitRatio(); ok {
		ratioStr = fmt.Sprintf("%.5f", ratio)
	}

	return fmt.Sprintf(`----------------------------------
          Cache Statistics
----------------------------------
  Number of cache reads:  %d
  Number of cache writes: %d
  Number of cache hits:   %d
  Number of cache misses: %d
  Cache hit ratio:        %s
----------------------------------`,
		s.Reads, s.Writes, s.Hits, s.Misses, ratioStr)
}
