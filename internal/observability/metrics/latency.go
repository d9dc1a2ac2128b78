package metrics

import (
	"math"
	"sort"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

const handleLatencyName = "clinic_conversation_handle_seconds"

// LatencySnapshot summarises the message handling histogram.
type LatencySnapshot struct {
	Total int64   `json:"total"`
	P50Ms float64 `json:"p50_ms"`
	P95Ms float64 `json:"p95_ms"`
}

// HandleLatency reads the handling histogram from gatherer, summed over
// routes. A missing or empty histogram yields the zero snapshot.
func HandleLatency(gatherer prometheus.Gatherer) LatencySnapshot {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	mfs, err := gatherer.Gather()
	if err != nil {
		return LatencySnapshot{}
	}
	var family *dto.MetricFamily
	for _, mf := range mfs {
		if mf != nil && mf.GetName() == handleLatencyName {
			family = mf
			break
		}
	}
	if family == nil {
		return LatencySnapshot{}
	}

	cumulativeByUpper := map[float64]uint64{}
	var sampleCount uint64
	for _, metric := range family.Metric {
		h := metric.GetHistogram()
		if h == nil {
			continue
		}
		sampleCount += h.GetSampleCount()
		for _, b := range h.Bucket {
			cumulativeByUpper[b.GetUpperBound()] += b.GetCumulativeCount()
		}
	}
	if sampleCount == 0 || len(cumulativeByUpper) == 0 {
		return LatencySnapshot{}
	}

	uppers := make([]float64, 0, len(cumulativeByUpper))
	for upper := range cumulativeByUpper {
		uppers = append(uppers, upper)
	}
	sort.Float64s(uppers)

	return LatencySnapshot{
		Total: int64(sampleCount),
		P50Ms: histogramQuantile(0.50, sampleCount, uppers, cumulativeByUpper) * 1000,
		P95Ms: histogramQuantile(0.95, sampleCount, uppers, cumulativeByUpper) * 1000,
	}
}

// histogramQuantile interpolates linearly inside the bucket holding the
// q-th sample.
func histogramQuantile(q float64, total uint64, uppers []float64, cumulativeByUpper map[float64]uint64) float64 {
	target := q * float64(total)
	var prevUpper, prevCum float64
	for _, upper := range uppers {
		cum := float64(cumulativeByUpper[upper])
		if cum < target {
			prevUpper = upper
			prevCum = cum
			continue
		}
		if math.IsInf(upper, 1) {
			return prevUpper
		}
		bucketCount := cum - prevCum
		if bucketCount <= 0 {
			return upper
		}
		fraction := (target - prevCum) / bucketCount
		return prevUpper + fraction*(upper-prevUpper)
	}
	return prevUpper
}
