package parser

import (
	"fmt"
	"strings"
)

const concurrentPrefix = "CMS-concurrent-"

// eventTypes is the closed set of bracketed block names the grammar
// recognizes. Order matters: a name that is a prefix of another must come
// after it. Classify relies on this set, so the two are tested together.
var eventTypes = []string{
	"GC",
	"ParNew",
	"CMS",
	"Full GC",
	"Metaspace",
	"1 CMS-initial-mark",
	"YG occupancy",
	"Rescan (parallel)",
	"weak refs processing",
	"class unloading",
	"scrub symbol table",
	"scrub string table",
	"1 CMS-remark",
}

// EventTypes returns a copy of the block names the grammar recognizes.
func EventTypes() []string {
	return append([]string(nil), eventTypes...)
}

// ClassificationError is returned when a parsed event has no category.
// It means the grammar and Classify disagree and should abort the run.
type ClassificationError struct {
	Type   string
	Detail string
}

func (e *ClassificationError) Error() string {
	return fmt.Sprintf("cannot classify event type %q (detail %q)", e.Type, e.Detail)
}

// escalation is the child sequence of a young collection that fell back
// to a full CMS collection.
var escalation = []string{"ParNew", "CMS"}

// Classify maps a parsed event tree to its category.
func Classify(root *Node) (Category, error) {
	switch {
	case strings.HasPrefix(root.Type, concurrentPrefix):
		return CMSConcurrent, nil
	case root.Type == "Full GC":
		return FullGC, nil
	case root.Type == "GC":
		switch root.Detail {
		case "CMS Initial Mark":
			return CMSInitMark, nil
		case "CMS Final Remark":
			return CMSFinalRemark, nil
		}
		if containsRun(root.ChildTypes(), escalation) {
			return FullGC, nil
		}
		return MinorGC, nil
	}
	return 0, &ClassificationError{Type: root.Type, Detail: root.Detail}
}

// containsRun reports whether sub occurs as a contiguous run inside s.
func containsRun(s, sub []string) bool {
	for i := 0; i+len(sub) <= len(s); i++ {
		match := true
		for j := range sub {
			if s[i+j] != sub[j] {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}
