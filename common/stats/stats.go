// Package stats provides a minimal metrics interface backed by go-metrics.
// A StatsReceiver can be passed down a call tree and scoped at each level,
// so library code records instruments without knowing how they are rendered.
package stats

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/rcrowley/go-metrics"
)

// Stats users can either reference this global receiver or construct their own.
var CurrentStatsReceiver StatsReceiver = NilStatsReceiver()

// StatsReceiver is a registry wrapper for metrics collected about the
// runtime behavior of an application.
//
// Hierarchical names are stored using a '/' path separator. Variadic name
// elements have '/' characters in their names replaced by "_SLASH_" before
// they are used internally, instead of failing, because instrument names are
// sometimes dynamically generated.
type StatsReceiver interface {
	// Return a stats receiver that will automatically namespace elements with
	// the given scope args.
	//
	//   statsReceiver.Scope("foo", "bar").Counter("baz")  // is equivalent to
	//   statsReceiver.Counter("foo", "bar", "baz")
	//
	Scope(scope ...string) StatsReceiver

	// Provides an event counter.
	Counter(name ...string) Counter

	// Add a gauge, which holds an int64 value that can be set arbitrarily.
	Gauge(name ...string) Gauge

	// Provides a latency instrument that records callsite durations.
	Latency(name ...string) Latency

	// Construct a JSON string by marshaling the registry.
	Render() []byte
}

type Counter interface {
	Count() int64
	Inc(int64)
}

type Gauge interface {
	Update(int64)
	Value() int64
}

// Latency records the duration between Time() and Stop().
type Latency interface {
	Time() Latency
	Stop()
	Count() int64
}

// DefaultStatsReceiver returns a receiver over a fresh go-metrics registry.
func DefaultStatsReceiver() StatsReceiver {
	return &defaultStatsReceiver{registry: metrics.NewRegistry()}
}

type defaultStatsReceiver struct {
	registry metrics.Registry
	scope    []string
}

func (s *defaultStatsReceiver) Scope(scope ...string) StatsReceiver {
	return &defaultStatsReceiver{s.registry, s.scoped(scope...)}
}

func (s *defaultStatsReceiver) Counter(name ...string) Counter {
	return s.registry.GetOrRegister(s.scopedName(name...), metrics.NewCounter).(metrics.Counter)
}

func (s *defaultStatsReceiver) Gauge(name ...string) Gauge {
	return s.registry.GetOrRegister(s.scopedName(name...), metrics.NewGauge).(metrics.Gauge)
}

func (s *defaultStatsReceiver) Latency(name ...string) Latency {
	timer := s.registry.GetOrRegister(s.scopedName(name...), metrics.NewTimer).(metrics.Timer)
	return &latency{timer: timer}
}

func (s *defaultStatsReceiver) Render() []byte {
	viz := map[string]interface{}{}
	s.registry.Each(func(name string, i interface{}) {
		switch m := i.(type) {
		case metrics.Counter:
			viz[name] = m.Count()
		case metrics.Gauge:
			viz[name] = m.Value()
		case metrics.Timer:
			viz[name] = map[string]interface{}{
				"count":   m.Count(),
				"mean_ns": int64(m.Mean()),
				"max_ns":  m.Max(),
			}
		}
	})
	b, err := json.Marshal(viz)
	if err != nil {
		return []byte("{}")
	}
	return b
}

func (s *defaultStatsReceiver) scoped(scope ...string) []string {
	for i, s := range scope {
		scope[i] = strings.Replace(s, "/", "_SLASH_", -1)
	}
	return append(s.scope[:len(s.scope):len(s.scope)], scope...)
}

func (s *defaultStatsReceiver) scopedName(name ...string) string {
	return strings.Join(s.scoped(name...), "/")
}

type latency struct {
	timer metrics.Timer
	start time.Time
}

func (l *latency) Time() Latency {
	l.start = time.Now()
	return l
}

func (l *latency) Stop() {
	l.timer.UpdateSince(l.start)
}

func (l *latency) Count() int64 {
	return l.timer.Count()
}

// NilStatsReceiver discards all stats, for callers that don't care to plumb
// a real receiver through.
func NilStatsReceiver() StatsReceiver {
	return nilStatsReceiver{}
}

type nilStatsReceiver struct{}

func (s nilStatsReceiver) Scope(scope ...string) StatsReceiver { return s }
func (s nilStatsReceiver) Counter(name ...string) Counter      { return nilCounter{} }
func (s nilStatsReceiver) Gauge(name ...string) Gauge          { return nilGauge{} }
func (s nilStatsReceiver) Latency(name ...string) Latency      { return &nilLatency{} }
func (s nilStatsReceiver) Render() []byte                      { return []byte("{}") }

type nilCounter struct{}

func (c nilCounter) Count() int64 { return 0 }
func (c nilCounter) Inc(int64)    {}

type nilGauge struct{}

func (g nilGauge) Update(int64) {}
func (g nilGauge) Value() int64 { return 0 }

type nilLatency struct{}

func (l *nilLatency) Time() Latency { return l }
func (l *nilLatency) Stop()         {}
func (l *nilLatency) Count() int64  { return 0 }
