package parser

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func parseText(t *testing.T, p *Parser, text string) []GcEvent {
	t.Helper()
	events, err := p.ParseLines(context.Background(), SplitLines(text))
	require.NoError(t, err)
	return events
}

func TestParser_MinorGC(t *testing.T) {
	log := "<writer thread='11779'/>\n" +
		minorGCLine + "\n" +
		"126.487: [GC (Allocation Failure) 126.487: [ParNew: 30720K-&gt;3392K(30720K), 0.0110704 secs] 86126K-&gt;61977K(99008K), 0.0113176 secs] [Times: user=0.02 sys=0.00, real=0.01 secs]\n"

	events := parseText(t, New(), log)
	require.Len(t, events, 2)

	assert.Equal(t, MinorGC, events[0].Category)
	assert.Equal(t, 11779, events[0].Thread)
	assert.Equal(t, int64(126426), events[0].Timestamp)
	assert.InDelta(t, 0.0131301, events[0].PauseTime, 1e-9)
	assert.Equal(t, int64(126487), events[1].Timestamp)
}

func TestParser_ConcurrentModeFailure(t *testing.T) {
	log := `<writer thread='11779'/>
126.426: [GC (Allocation Failure) 126.426: [ParNew: 30720K-&gt;3392K(30720K), 0.0128764 secs] 83156K-&gt;58798K(99008K), 0.0131301 secs] [Times: user=0.02 sys=0.00, real=0.01 secs]
126.487: [GC (Allocation Failure) 126.487: [ParNew: 30720K-&gt;3392K(30720K), 0.0110704 secs] 86126K-&gt;61977K(99008K), 0.0113176 secs] [Times: user=0.02 sys=0.00, real=0.01 secs]
126.554: [GC (Allocation Failure) 126.554: [ParNew: 30720K-&gt;3392K(30720K), 0.0141218 secs] 89305K-&gt;65368K(99008K), 0.0144143 secs] [Times: user=0.02 sys=0.00, real=0.01 secs]
126.619: [GC (Allocation Failure) 126.619: [ParNew: 30720K-&gt;3391K(30720K), 0.0120420 secs] 92696K-&gt;67456K(99008K), 0.0122437 secs] [Times: user=0.02 sys=0.00, real=0.01 secs]
126.679: [GC (Allocation Failure) 126.679: [ParNew: 30719K-&gt;3391K(30720K), 0.0127160 secs] 94784K-&gt;69858K(99008K), 0.0129960 secs] [Times: user=0.02 sys=0.00, real=0.02 secs]
126.743: [GC (Allocation Failure) 126.743: [ParNew: 30719K-&gt;30719K(30720K), 0.0000574 secs]126.743: [CMS
<writer thread='11267'/>
126.757: [CMS-concurrent-mark: 0.304/0.377 secs] [Times: user=1.08 sys=0.13, real=0.38 secs]
<writer thread='11779'/>
 (concurrent mode failure): 66466K-&gt;45817K(68288K), 0.2277434 secs] 97186K-&gt;45817K(99008K), [Metaspace: 60953K-&gt;60953K(1105920K)], 0.2280550 secs] [Times: user=0.23 sys=0.00, real=0.22 secs]
127.029: [GC (Allocation Failure) 127.030: [ParNew: 27319K-&gt;3391K(30720K), 0.0117355 secs] 73136K-&gt;51371K(99008K), 0.0119592 secs] [Times: user=0.02 sys=0.00, real=0.01 secs]`

	p := New()
	events := parseText(t, p, log)
	require.Len(t, events, 8)

	mark := events[5]
	assert.Equal(t, CMSConcurrent, mark.Category)
	assert.Equal(t, 11267, mark.Thread)
	assert.InDelta(t, 0.304, mark.CMSCPUTime, 1e-9)
	assert.InDelta(t, 0.377, mark.CMSWallTime, 1e-9)

	full := events[6]
	assert.Equal(t, FullGC, full.Category)
	assert.Equal(t, 11779, full.Thread)
	assert.Equal(t, int64(126743), full.Timestamp)
	assert.InDelta(t, 0.2280550, full.PauseTime, 1e-9)
	assert.InDelta(t, 0.23, full.UserTime, 1e-9)
	assert.InDelta(t, 0.22, full.RealTime, 1e-9)
	assert.Equal(t, "GC (Allocation Failure); ParNew; CMS (concurrent mode failure); Metaspace", full.TypeDetail)

	assert.Equal(t, MinorGC, events[7].Category)

	stats := p.Stats()
	assert.Equal(t, 12, stats.LinesRead)
	assert.Equal(t, 3, stats.WriterSwitches)
	assert.Equal(t, 1, stats.FragmentsStored)
	assert.Equal(t, 1, stats.FragmentsJoined)
	assert.Equal(t, 8, stats.EventsParsed)
	assert.Zero(t, stats.LinesDropped)
	assert.Zero(t, stats.DanglingFragments)
}

func TestParser_FullGCFragment(t *testing.T) {
	log := `<writer thread='11779'/>
55.780: [Full GC (Allocation Failure) 55.780: [CMS
<writer thread='11267'/>
55.799: [CMS-concurrent-mark: 0.113/0.158 secs] [Times: user=0.66 sys=0.08, real=0.15 secs]
<writer thread='11779'/>
 (concurrent mode failure): 64750K-&gt;45276K(68288K), 0.1975301 secs] 95470K-&gt;45276K(99008K), [Metaspace: 61093K-&gt;61093K(1107968K)], 0.1979402 secs] [Times: user=0.19 sys=0.00, real=0.20 secs]
` + remarkLine + `
<writer thread='11267'/>
127.835: [CMS-concurrent-sweep-start]`

	events := parseText(t, New(), log)
	require.Len(t, events, 4)

	assert.Equal(t, "CMS-concurrent-mark", events[0].TypeDetail)
	assert.Equal(t, "Full GC (Allocation Failure); CMS (concurrent mode failure); Metaspace", events[1].TypeDetail)
	assert.Equal(t, FullGC, events[1].Category)
	assert.Equal(t, "GC (CMS Final Remark); YG occupancy; Rescan (parallel); weak refs processing; "+
		"class unloading; scrub symbol table; scrub string table; 1 CMS-remark", events[2].TypeDetail)
	assert.InDelta(t, 0.0015528, events[2].RefTime, 1e-9)
	assert.Equal(t, "CMS-concurrent-sweep-start", events[3].TypeDetail)
}

func TestParser_ConcurrentReset(t *testing.T) {
	log := "<writer thread='11267'/>\n" +
		"25.969: [CMS-concurrent-reset-start]\n" +
		"25.969: [CMS-concurrent-reset: 0.000/0.000 secs] [Times: user=0.01 sys=0.00, real=0.00 secs]"

	events := parseText(t, New(), log)
	require.Len(t, events, 2)
	for _, ev := range events {
		assert.Equal(t, CMSConcurrent, ev.Category)
		assert.Equal(t, 11267, ev.Thread)
	}
	assert.Zero(t, events[1].CMSCPUTime)
	assert.Zero(t, events[1].CMSWallTime)
	assert.Zero(t, events[1].RealTime)
	assert.InDelta(t, 0.01, events[1].UserTime, 1e-9)
}

func TestParser_ReassemblyIdempotent(t *testing.T) {
	head := "126.743: [GC (Allocation Failure) 126.743: [ParNew: 30719K-&gt;30719K(30720K), 0.0000574 secs]126.743: [CMS"
	tail := " (concurrent mode failure): 66466K-&gt;45817K(68288K), 0.2277434 secs] 97186K-&gt;45817K(99008K), [Metaspace: 60953K-&gt;60953K(1105920K)], 0.2280550 secs] [Times: user=0.23 sys=0.00, real=0.22 secs]"

	split := parseText(t, New(), "<writer thread='1'/>\n"+head+"\n"+tail)
	joined := parseText(t, New(), "<writer thread='1'/>\n"+head+tail)

	require.Len(t, split, 1)
	assert.Equal(t, joined, split)
}

func TestParser_DropsUnparseableLines(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	p := New(WithLogger(zap.New(core)), WithDropSamples(1))

	log := "<hotspot_log version='160 1'>\n" +
		"<writer thread='not-a-number'/>\n" +
		minorGCLine + "\n" +
		"some unrelated output"

	events := parseText(t, p, log)
	require.Len(t, events, 1)
	assert.Equal(t, UnknownThread, events[0].Thread)

	stats := p.Stats()
	assert.Equal(t, 3, stats.LinesDropped)
	assert.Equal(t, 1, stats.BadThreadIDs)
	require.Len(t, stats.DroppedSamples, 1)
	assert.Equal(t, 1, stats.DroppedSamples[0].LineNum)
	assert.Equal(t, "no grammar match", stats.DroppedSamples[0].Reason)

	dropped := logs.FilterMessage("Dropped log line").All()
	require.Len(t, dropped, 3)
	assert.Equal(t, "invalid writer thread id", dropped[1].ContextMap()["reason"])
}

func TestParser_DanglingFragment(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	p := New(WithLogger(zap.New(core)))

	events := parseText(t, p, "<writer thread='5'/>\n55.780: [Full GC (Allocation Failure) 55.780: [CMS")
	assert.Empty(t, events)
	assert.NotNil(t, events)
	assert.Equal(t, 1, p.Stats().DanglingFragments)
	assert.Equal(t, 1, logs.FilterMessage("Fragment never completed").Len())
}

func TestParser_ParseLineClassificationError(t *testing.T) {
	// A bare sub-event block matches the grammar but never starts a report.
	line := "1.000: [ParNew: 30720K-&gt;3392K(30720K), 0.0128764 secs] [Times: user=0.02 sys=0.00, real=0.01 secs]"

	_, err := New().ParseLines(context.Background(), []string{line})
	var ce *ClassificationError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "ParNew", ce.Type)
}

func TestParser_ParseFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gc.log")
	content := "<writer thread='11779'/>\r\n" + minorGCLine + "\r\n" + initMarkLine + "\r\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	events, err := New().ParseFile(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, CMSInitMark, events[1].Category)
}

func TestParser_ParseFileMissing(t *testing.T) {
	events, err := New().ParseFile(context.Background(), filepath.Join(t.TempDir(), "missing.log"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInput))
	assert.NotNil(t, events)
	assert.Empty(t, events)
}

type failingSource struct{ n int }

func (s *failingSource) Next(ctx context.Context) (string, error) {
	s.n++
	if s.n > 1 {
		return "", errors.New("disk on fire")
	}
	return minorGCLine, nil
}

func (s *failingSource) Close() error { return nil }

func TestParser_ReadError(t *testing.T) {
	events, err := New().Parse(context.Background(), &failingSource{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInput))
	assert.Contains(t, err.Error(), "disk on fire")
	assert.Empty(t, events)
}

func TestParser_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New().ParseLines(ctx, []string{minorGCLine})
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestParser_CategoriesAlwaysValid(t *testing.T) {
	log := strings.Join([]string{minorGCLine, fullGCLine, remarkLine, initMarkLine, sweepLine}, "\n")
	for _, ev := range parseText(t, New(), log) {
		assert.True(t, ev.Category.Valid(), "event %+v", ev)
	}
}

func TestSliceSource(t *testing.T) {
	src := NewSliceSource([]string{"a", "b"})
	ctx := context.Background()

	for _, want := range []string{"a", "b"} {
		got, err := src.Next(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := src.Next(ctx)
	assert.Equal(t, io.EOF, err)
	assert.NoError(t, src.Close())
}

func TestSplitLines(t *testing.T) {
	assert.Nil(t, SplitLines(""))
	assert.Equal(t, []string{"a", "b"}, SplitLines("a\r\nb\n"))
	assert.Equal(t, []string{"a", "", "b"}, SplitLines("a\n\nb"))
}
