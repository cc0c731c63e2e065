package analyzer

import (
	"sort"

	"github.com/xeoh/GCTool/pkg/parser"
)

var phaseRank = func() map[string]int {
	m := make(map[string]int, len(ConcurrentPhaseOrder))
	for i, phase := range ConcurrentPhaseOrder {
		m[phase] = i
	}
	return m
}()

// concurrentAggregator counts CMS_CONCURRENT events by phase.
type concurrentAggregator struct {
	counts map[string]int
}

func newConcurrentAggregator() *concurrentAggregator {
	return &concurrentAggregator{counts: make(map[string]int)}
}

func (a *concurrentAggregator) Accepts(ev *parser.GcEvent) bool {
	return ev.Category == parser.CMSConcurrent
}

func (a *concurrentAggregator) Add(ev parser.GcEvent) {
	a.counts[ev.TypeDetail]++
}

func (a *concurrentAggregator) Reset() {
	a.counts = make(map[string]int)
}

// build orders phases by ConcurrentPhaseOrder. Phases missing from that
// list follow the known ones, sorted by name.
func (a *concurrentAggregator) build() []ConcurrentStat {
	result := make([]ConcurrentStat, 0, len(a.counts))
	for phase, n := range a.counts {
		result = append(result, ConcurrentStat{TypeDetail: phase, Count: n})
	}

	sort.Slice(result, func(i, j int) bool {
		ri, iok := phaseRank[result[i].TypeDetail]
		rj, jok := phaseRank[result[j].TypeDetail]
		switch {
		case iok && jok:
			return ri < rj
		case iok != jok:
			return iok
		default:
			return result[i].TypeDetail < result[j].TypeDetail
		}
	})
	return result
}
