package watchstore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// Tier rollup.
func TestTierRollupTwelveSeconds(t *testing.T) {
	s := New()
	start := time.Unix(1_700_000_000, 0)

	for sec := 0; sec < 12; sec++ {
		for i := 0; i < 10; i++ {
			ts := start.Add(time.Duration(sec)*time.Second + time.Duration(i)*100*time.Millisecond)
			s.Set(Sample{Name: "cpu", Value: float64(sec) + 0.5, Numeric: true, Timestamp: ts})
		}
	}
	// one more sample in the 13th second to force the 12th second bucket closed.
	s.Set(Sample{Name: "cpu", Value: 99, Numeric: true, Timestamp: start.Add(12 * time.Second)})

	secBuckets := s.GetHistory("cpu", time.Time{}, time.Time{}, ResolutionSecond)
	require.Len(t, secBuckets, 12)
	for i, b := range secBuckets {
		require.Equal(t, 10, b.Count)
		require.InDelta(t, float64(i)+0.5, b.Avg, 1e-9)
	}

	w := s.watches["cpu"]
	openMinute, ok := w.agg.openMinuteBucket()
	require.True(t, ok)
	require.Equal(t, 120, openMinute.Count)
}

func TestCurrentIsLatestByTimestamp(t *testing.T) {
	s := New()
	now := time.Now()
	s.Set(Sample{Name: "w", Value: 1, Numeric: true, Timestamp: now})
	s.Set(Sample{Name: "w", Value: 2, Numeric: true, Timestamp: now.Add(-time.Minute)})

	cur, ok := s.Current("w")
	require.True(t, ok)
	require.Equal(t, float64(1), cur.Value, "a sample with an earlier producer timestamp must not win")
}

func TestNonNumericCountsOccurrences(t *testing.T) {
	s := New()
	now := time.Now()
	s.Set(Sample{Name: "state", Raw: "running", Timestamp: now})
	s.Set(Sample{Name: "state", Raw: "running", Timestamp: now.Add(time.Second)})
	s.Set(Sample{Name: "state", Raw: "stopped", Timestamp: now.Add(2 * time.Second)})

	raw := s.GetHistory("state", time.Time{}, time.Time{}, ResolutionRaw)
	require.Len(t, raw, 3)
	require.Equal(t, float64(1), raw[0].Avg)
	require.Equal(t, float64(2), raw[1].Avg)
	require.Equal(t, float64(1), raw[2].Avg)
}

func TestClearHistoryKeepsCurrent(t *testing.T) {
	s := New()
	now := time.Now()
	s.Set(Sample{Name: "w", Value: 5, Numeric: true, Timestamp: now})
	s.ClearHistory("w")

	cur, ok := s.Current("w")
	require.True(t, ok)
	require.Equal(t, float64(5), cur.Value)

	hist := s.GetHistory("w", time.Time{}, time.Time{}, ResolutionRaw)
	require.Empty(t, hist)
}

func TestBucketMonotonicityInvariant(t *testing.T) {
	s := New()
	start := time.Unix(1_700_000_000, 0)
	for sec := 0; sec < 5; sec++ {
		s.Set(Sample{Name: "w", Value: float64(sec), Numeric: true, Timestamp: start.Add(time.Duration(sec) * time.Second)})
	}
	s.Set(Sample{Name: "w", Value: 0, Numeric: true, Timestamp: start.Add(5 * time.Second)})

	buckets := s.GetHistory("w", time.Time{}, time.Time{}, ResolutionSecond)
	var prev time.Time
	for _, b := range buckets {
		require.True(t, b.BucketStart.After(prev) || prev.IsZero())
		require.GreaterOrEqual(t, b.Count, 1)
		require.LessOrEqual(t, b.Min, b.Avg)
		require.LessOrEqual(t, b.Avg, b.Max)
		prev = b.BucketStart
	}
}
