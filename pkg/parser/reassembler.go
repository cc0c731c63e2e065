package parser

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
)

var (
	writerThreadRe = regexp.MustCompile(`^<writer thread='([^']*)'/>$`)
	fragmentRe     = regexp.MustCompile(`GC.*\[CMS$`)
)

// ThreadIDError reports a writer announcement whose id is not an integer.
type ThreadIDError struct {
	Value string
	Err   error
}

func (e *ThreadIDError) Error() string {
	return fmt.Sprintf("invalid writer thread id %q: %v", e.Value, e.Err)
}

func (e *ThreadIDError) Unwrap() error { return e.Err }

// Reassembler rejoins event lines that were split by output from another
// writer thread. It keeps at most one pending fragment per thread.
// A Reassembler is not safe for concurrent use.
type Reassembler struct {
	current int
	pending map[int]string
}

// NewReassembler returns a Reassembler with no current thread.
func NewReassembler() *Reassembler {
	return &Reassembler{
		current: UnknownThread,
		pending: make(map[int]string),
	}
}

// Feed classifies one input line. For a writer announcement it switches the
// current thread; a bad id switches to UnknownThread and returns a
// *ThreadIDError alongside the line. For an incomplete event it stores the
// fragment. Any other line is returned as a candidate, prefixed by the
// current thread's pending fragment if there is one.
func (r *Reassembler) Feed(line string) (RawLine, error) {
	if m := writerThreadRe.FindStringSubmatch(line); m != nil {
		id, err := strconv.Atoi(m[1])
		if err != nil {
			r.current = UnknownThread
			return RawLine{Kind: LineWriterThread, Text: line, Thread: UnknownThread},
				&ThreadIDError{Value: m[1], Err: err}
		}
		r.current = id
		return RawLine{Kind: LineWriterThread, Text: line, Thread: id}, nil
	}

	if fragmentRe.MatchString(line) {
		r.pending[r.current] = line
		return RawLine{Kind: LineFragment, Text: line, Thread: r.current}, nil
	}

	if head, ok := r.pending[r.current]; ok {
		delete(r.pending, r.current)
		return RawLine{Kind: LineCandidate, Text: head + line, Thread: r.current, Joined: true}, nil
	}

	return RawLine{Kind: LineCandidate, Text: line, Thread: r.current}, nil
}

// Current returns the thread id the next line is attributed to.
func (r *Reassembler) Current() int {
	return r.current
}

// Pending returns the threads that still hold a fragment, in ascending order.
func (r *Reassembler) Pending() []int {
	threads := make([]int, 0, len(r.pending))
	for id := range r.pending {
		threads = append(threads, id)
	}
	sort.Ints(threads)
	return threads
}

// Fragment returns the fragment held for thread, if any.
func (r *Reassembler) Fragment(thread int) (string, bool) {
	s, ok := r.pending[thread]
	return s, ok
}
