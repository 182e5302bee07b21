package metrics

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Aggregator collects per-seed metric values keyed by output column and
// metric name, and summarizes them with mean and population standard
// deviation across seeds.
type Aggregator struct {
	series map[string]map[string][]float64
	// outputs preserves insertion order for stable summaries
	outputs []string
}

func NewAggregator() *Aggregator {
	return &Aggregator{series: make(map[string]map[string][]float64)}
}

// Add appends one seed's value for an (output, metric) pair.
func (a *Aggregator) Add(output, metric string, value float64) {
	byMetric, ok := a.series[output]
	if !ok {
		byMetric = make(map[string][]float64)
		a.series[output] = byMetric
		a.outputs = append(a.outputs, output)
	}
	byMetric[metric] = append(byMetric[metric], value)
}

// Series returns all recorded values for an (output, metric) pair.
func (a *Aggregator) Series(output, metric string) []float64 {
	return a.series[output][metric]
}

// Outputs returns output names in first-seen order.
func (a *Aggregator) Outputs() []string {
	return append([]string(nil), a.outputs...)
}

// Empty reports whether nothing has been recorded.
func (a *Aggregator) Empty() bool {
	return len(a.series) == 0
}

// round4 matches the 4-digit display rounding of reported metrics.
func round4(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}

// Summarize flattens the aggregator into summary entries:
//
//	{output}_all_{metric}  per-seed values
//	{output}_avg_{metric}  mean across seeds
//	{output}_std_{metric}  population standard deviation across seeds
//	{output}_avg_{metric}_disp  "mean +- std" rounded to 4 digits
func (a *Aggregator) Summarize() map[string]any {
	out := make(map[string]any)
	for _, output := range a.outputs {
		byMetric := a.series[output]
		names := make([]string, 0, len(byMetric))
		for name := range byMetric {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, metric := range names {
			values := byMetric[metric]
			avg := stat.Mean(values, nil)
			std := stat.PopStdDev(values, nil)

			out[fmt.Sprintf("%s_all_%s", output, metric)] = append([]float64(nil), values...)
			out[fmt.Sprintf("%s_avg_%s", output, metric)] = avg
			out[fmt.Sprintf("%s_std_%s", output, metric)] = std
			out[fmt.Sprintf("%s_avg_%s_disp", output, metric)] = fmt.Sprintf("%v +- %v", round4(avg), round4(std))
		}
	}
	return out
}
