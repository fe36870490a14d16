package bench

// Summary aggregates the collapsed values of one registry.
// An empty summary has Count 0 and zero Min and Max.
type Summary struct {
	Count int64 `json:"count" yaml:"count"`
	Sum   int64 `json:"sum" yaml:"sum"`
	Min   int64 `json:"min" yaml:"min"`
	Max   int64 `json:"max" yaml:"max"`
}

// Mean returns Sum/Count, or 0 for an empty summary.
func (s Summary) Mean() float64 {
	if s.Count == 0 {
		return 0
	}
	return float64(s.Sum) / float64(s.Count)
}

func (s *Summary) add(v int64) {
	if s.Count == 0 || v < s.Min {
		s.Min = v
	}
	if s.Count == 0 || v > s.Max {
		s.Max = v
	}
	s.Count++
	s.Sum += v
}

// Summarize aggregates values.
func Summarize(values ...int64) Summary {
	var s Summary
	for _, v := range values {
		s.add(v)
	}
	return s
}
