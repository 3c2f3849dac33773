package metrics

import (
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

// Snapshot is a gathered view of a registry, indexed by family name, for use in tests.
type Snapshot struct {
	t        require.TestingT
	families map[string]*dto.MetricFamily
}

// Gather collects every family registered with g. Gathering errors fail the test.
func Gather(t require.TestingT, g prometheus.Gatherer) *Snapshot {
	fams, err := g.Gather()
	require.NoError(t, err, "must gather metrics")
	s := &Snapshot{t: t, families: make(map[string]*dto.MetricFamily, len(fams))}
	for _, f := range fams {
		s.families[f.GetName()] = f
	}
	return s
}

// Names lists the gathered family names in sorted order.
func (s *Snapshot) Names() []string {
	out := make([]string, 0, len(s.families))
	for name := range s.families {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Sample returns the single series of family name carrying all the given label values.
// The test fails when the family is missing or the labels match zero or several series.
func (s *Snapshot) Sample(name string, labels map[string]string) *dto.Metric {
	fam, ok := s.families[name]
	require.Truef(s.t, ok, "no metric family %q, have %s", name, strings.Join(s.Names(), ", "))
	var found *dto.Metric
	for _, m := range fam.GetMetric() {
		if !matches(m, labels) {
			continue
		}
		require.Nilf(s.t, found, "labels %v match more than one series of %q", labels, name)
		found = m
	}
	require.NotNilf(s.t, found, "no series of %q with labels %v", name, labels)
	return found
}

// Value reads a counter or gauge sample.
func (s *Snapshot) Value(name string, labels map[string]string) float64 {
	m := s.Sample(name, labels)
	switch {
	case m.GetCounter() != nil:
		return m.GetCounter().GetValue()
	case m.GetGauge() != nil:
		return m.GetGauge().GetValue()
	case m.GetUntyped() != nil:
		return m.GetUntyped().GetValue()
	}
	require.FailNowf(s.t, "not a scalar metric", "%q is neither counter nor gauge", name)
	return 0
}

func matches(m *dto.Metric, labels map[string]string) bool {
	for k, v := range labels {
		hit := false
		for _, lp := range m.GetLabel() {
			if lp.GetName() == k && lp.GetValue() == v {
				hit = true
				break
			}
		}
		if !hit {
			return false
		}
	}
	return true
}
