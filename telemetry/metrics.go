package telemetry

import (
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Units follow the case-sensitive UCUM abbreviations.
const (
	unitDimensionless = "1"
	unitMilliseconds  = "ms"
)

var defaultMillisecondsBoundaries = []float64{
	0, 1, 2, 5, 10, 20, 50, 100, 200, 500, 1000, 2000, 5000, 10000, 30000, 60000,
}

// Views shapes the pkg/latency histogram into stage buckets and derives a
// completed count per stage and status.
func Views(pkg string) []sdkmetric.View {
	return []sdkmetric.View{
		func(inst sdkmetric.Instrument) (sdkmetric.Stream, bool) {
			if inst.Kind != sdkmetric.InstrumentKindHistogram || inst.Name != pkg+"/latency" {
				return sdkmetric.Stream{}, false
			}
			return sdkmetric.Stream{
				Name:        inst.Name,
				Description: "Distribution of boot stage latency.",
				Aggregation: sdkmetric.AggregationExplicitBucketHistogram{
					Boundaries: defaultMillisecondsBoundaries,
				},
				AttributeFilter: func(kv attribute.KeyValue) bool {
					return kv.Key == AttrPackageKey || kv.Key == AttrStageKey
				},
			}, true
		},

		func(inst sdkmetric.Instrument) (sdkmetric.Stream, bool) {
			if inst.Kind != sdkmetric.InstrumentKindHistogram || inst.Name != pkg+"/latency" {
				return sdkmetric.Stream{}, false
			}
			return sdkmetric.Stream{
				Name:        strings.Replace(inst.Name, "/latency", "/completed_stages", 1),
				Description: "Count of boot stages by stage and status.",
				Aggregation: sdkmetric.DefaultAggregationSelector(sdkmetric.InstrumentKindCounter),
				AttributeFilter: func(kv attribute.KeyValue) bool {
					return kv.Key == AttrStageKey || kv.Key == AttrStatusKey
				},
			}, true
		},
	}
}

// LatencyMeasure returns the pkg/latency histogram.
func LatencyMeasure(pkg string) metric.Float64Histogram {
	pkgMeter := otel.Meter(pkg, metric.WithInstrumentationAttributes(AttrPackageKey.String(pkg)))

	m, err := pkgMeter.Float64Histogram(
		pkg+"/latency",
		metric.WithDescription("Latency distribution of boot stages"),
		metric.WithUnit(unitMilliseconds),
	)
	if err != nil {
		// only invalid instrument names fail here
		panic(fmt.Sprintf("pkg=%q: %v", pkg, err))
	}
	return m
}

// DimensionlessMeasure creates a plain counter named pkg+meterName.
func DimensionlessMeasure(pkg string, meterName string, description string) metric.Int64Counter {
	pkgMeter := otel.Meter(pkg, metric.WithInstrumentationAttributes(AttrPackageKey.String(pkg)))

	m, err := pkgMeter.Int64Counter(
		pkg+meterName,
		metric.WithDescription(description),
		metric.WithUnit(unitDimensionless),
	)
	if err != nil {
		panic(fmt.Sprintf("pkg=%q meter=%q: %v", pkg, meterName, err))
	}
	return m
}
