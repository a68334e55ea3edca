package series

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Day is the rollup bucket width in seconds.
const Day int64 = 86400

// DayFloor rounds a unix timestamp down to 00:00 UTC of its day.
func DayFloor(ts int64) int64 {
	return ts - ((ts%Day)+Day)%Day
}

// Point is one timestamped set of metric values.
type Point struct {
	Timestamp int64
	Values    map[string]float64
}

// DailyBucket accumulates the net of each metric over one UTC day.
// It encodes as {"startTimestamp", "endTimestamp", "<metric>Net", ...}.
type DailyBucket struct {
	StartTimestamp int64
	EndTimestamp   int64
	Net            map[string]float64
}

func newBucket(start int64, metrics []string) DailyBucket {
	b := DailyBucket{StartTimestamp: start, EndTimestamp: start + Day - 1, Net: make(map[string]float64, len(metrics))}
	for _, m := range metrics {
		b.Net[m] = 0
	}
	return b
}

func (b DailyBucket) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(b.Net)+2)
	for k, v := range b.Net {
		m[k+"Net"] = v
	}
	m["startTimestamp"] = b.StartTimestamp
	m["endTimestamp"] = b.EndTimestamp
	return json.Marshal(m)
}

func (b *DailyBucket) UnmarshalJSON(raw []byte) error {
	var m map[string]json.Number
	if err := json.Unmarshal(raw, &m); err != nil {
		return err
	}
	*b = DailyBucket{Net: map[string]float64{}}
	for k, v := range m {
		switch k {
		case "startTimestamp":
			n, err := v.Int64()
			if err != nil {
				return err
			}
			b.StartTimestamp = n
		case "endTimestamp":
			n, err := v.Int64()
			if err != nil {
				return err
			}
			b.EndTimestamp = n
		default:
			if len(k) > 3 && k[len(k)-3:] == "Net" {
				f, err := v.Float64()
				if err != nil {
					return err
				}
				b.Net[k[:len(k)-3]] = f
			}
		}
	}
	return nil
}

// Rollup folds ascending points into day buckets. With zeroFill, days without
// points between two active days are emitted as zero buckets; without it only
// days holding at least one point appear. Out-of-order input is an error.
func Rollup(points []Point, zeroFill bool) ([]DailyBucket, error) {
	metrics := metricNames(points)
	var out []DailyBucket
	for i, p := range points {
		if i > 0 && p.Timestamp < points[i-1].Timestamp {
			return nil, fmt.Errorf("rollup input out of order at %d: %d after %d", i, p.Timestamp, points[i-1].Timestamp)
		}
		if n := len(out); n > 0 && p.Timestamp <= out[n-1].EndTimestamp {
			for k, v := range p.Values {
				out[n-1].Net[k] += v
			}
			continue
		}
		day := DayFloor(p.Timestamp)
		if zeroFill {
			for n := len(out); n > 0 && out[n-1].StartTimestamp+Day < day; n = len(out) {
				out = append(out, newBucket(out[n-1].StartTimestamp+Day, metrics))
			}
		}
		b := newBucket(day, metrics)
		for k, v := range p.Values {
			b.Net[k] += v
		}
		out = append(out, b)
	}
	return out, nil
}

func metricNames(points []Point) []string {
	seen := map[string]struct{}{}
	for _, p := range points {
		for k := range p.Values {
			seen[k] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
