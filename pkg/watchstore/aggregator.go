package watchstore

import "time"

// openBucket accumulates samples for the currently-open window of one tier
// before it is flushed.
type openBucket struct {
	key           int64
	sum, min, max float64
	count         int
}

func (o *openBucket) add(v float64) {
	if o.count == 0 {
		o.min, o.max = v, v
	} else {
		if v < o.min {
			o.min = v
		}
		if v > o.max {
			o.max = v
		}
	}
	o.sum += v
	o.count++
}

// addRollup folds an already-averaged contribution (avg·count) from the
// tier below: sum += avg*count, min, max, count += count.
func (o *openBucket) addRollup(avg, min, max float64, count int) {
	if o.count == 0 {
		o.min, o.max = min, max
	} else {
		if min < o.min {
			o.min = min
		}
		if max > o.max {
			o.max = max
		}
	}
	o.sum += avg * float64(count)
	o.count += count
}

func (o openBucket) bucket(start time.Time) Bucket {
	avg := 0.0
	if o.count > 0 {
		avg = o.sum / float64(o.count)
	}
	return Bucket{BucketStart: start, Avg: avg, Min: o.min, Max: o.max, Count: o.count}
}

// aggregator holds the three open buckets (second/minute/hour) for a single
// watch name.
type aggregator struct {
	sec, min, hour              openBucket
	secValid, minValid, hrValid bool

	secTier, minTier, hourTier *ringTier
}

func newAggregator() *aggregator {
	return &aggregator{
		secTier:  newRingTier(SecondCapacity),
		minTier:  newRingTier(MinuteCapacity),
		hourTier: newRingTier(HourCapacity),
	}
}

// feed folds one numeric sample at ts into the second/minute/hour tiers.
func (a *aggregator) feed(v float64, ts time.Time) {
	secKey := ts.UnixMilli() / 1000
	if !a.secValid {
		a.sec = openBucket{key: secKey}
		a.secValid = true
	} else if secKey != a.sec.key {
		a.flushSecond(secKey)
	}
	a.sec.add(v)
}

func (a *aggregator) flushSecond(newKey int64) {
	if a.sec.count > 0 {
		b := a.sec.bucket(time.UnixMilli(a.sec.key * 1000))
		a.secTier.push(b)
		a.feedMinute(b.Avg, b.Min, b.Max, b.Count, a.sec.key)
	}
	a.sec = openBucket{key: newKey}
}

func (a *aggregator) feedMinute(avg, min, max float64, count int, secKey int64) {
	minKey := secKey / 60
	if !a.minValid {
		a.min = openBucket{key: minKey}
		a.minValid = true
	} else if minKey != a.min.key {
		a.flushMinute(minKey)
	}
	a.min.addRollup(avg, min, max, count)
}

func (a *aggregator) flushMinute(newKey int64) {
	if a.min.count > 0 {
		b := a.min.bucket(time.Unix(a.min.key*60, 0))
		a.minTier.push(b)
		a.feedHour(b.Avg, b.Min, b.Max, b.Count, a.min.key)
	}
	a.min = openBucket{key: newKey}
}

func (a *aggregator) feedHour(avg, min, max float64, count int, minKey int64) {
	hourKey := minKey / 60
	if !a.hrValid {
		a.hour = openBucket{key: hourKey}
		a.hrValid = true
	} else if hourKey != a.hour.key {
		a.flushHour(hourKey)
	}
	a.hour.addRollup(avg, min, max, count)
}

func (a *aggregator) flushHour(newKey int64) {
	if a.hour.count > 0 {
		b := a.hour.bucket(time.Unix(a.hour.key*3600, 0))
		a.hourTier.push(b)
	}
	a.hour = openBucket{key: newKey}
}

// openMinuteBucket exposes the minute tier's still-open bucket. It covers
// only the second buckets already flushed into it; the currently-open
// second bucket is not part of the minute rollup until it closes.
func (a *aggregator) openMinuteBucket() (Bucket, bool) {
	if !a.minValid || a.min.count == 0 {
		return Bucket{}, false
	}
	return a.min.bucket(time.Unix(a.min.key*60, 0)), true
}

func (a *aggregator) reset() {
	*a = *newAggregator()
}
