// Package parser reconstructs garbage-collection events from verbose CMS
// collector logs.
package parser

import (
	"fmt"
)

// Category is the canonical classification of a GC event.
type Category int

const (
	FullGC Category = iota + 1
	MinorGC
	CMSInitMark
	CMSFinalRemark
	CMSConcurrent
)

var categoryNames = map[Category]string{
	FullGC:         "FULL_GC",
	MinorGC:        "MINOR_GC",
	CMSInitMark:    "CMS_INIT_MARK",
	CMSFinalRemark: "CMS_FINAL_REMARK",
	CMSConcurrent:  "CMS_CONCURRENT",
}

// Categories lists every category in declaration order.
var Categories = []Category{FullGC, MinorGC, CMSInitMark, CMSFinalRemark, CMSConcurrent}

func (c Category) String() string {
	if name, ok := categoryNames[c]; ok {
		return name
	}
	return fmt.Sprintf("Category(%d)", int(c))
}

// Valid reports whether c is one of the five known categories.
func (c Category) Valid() bool {
	_, ok := categoryNames[c]
	return ok
}

// MarshalText encodes the category by its canonical name.
func (c Category) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("invalid category %d", int(c))
	}
	return []byte(categoryNames[c]), nil
}

// UnmarshalText decodes a canonical category name.
func (c *Category) UnmarshalText(text []byte) error {
	cat, err := ParseCategory(string(text))
	if err != nil {
		return err
	}
	*c = cat
	return nil
}

// ParseCategory looks up a category by its canonical name.
func ParseCategory(name string) (Category, error) {
	for c, n := range categoryNames {
		if n == name {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown category %q", name)
}

// UnknownThread is the thread id used when a writer announcement cannot be parsed.
const UnknownThread = -1

// GcEvent is one reconstructed, classified log line.
// It is built once by the parser and never modified afterwards.
type GcEvent struct {
	// Thread is the writer thread that logged the event.
	Thread int `json:"thread"`

	// Timestamp is the JVM uptime in milliseconds.
	Timestamp int64 `json:"timestamp"`

	Category Category `json:"log_type"`

	// PauseTime is the elapsed time of the outermost event in seconds.
	PauseTime float64 `json:"pause_time"`

	UserTime float64 `json:"user_time"`
	SysTime  float64 `json:"sys_time"`
	RealTime float64 `json:"real_time"`

	// CMSCPUTime and CMSWallTime are only set for CMS_CONCURRENT events.
	CMSCPUTime  float64 `json:"cms_cpu_time"`
	CMSWallTime float64 `json:"cms_wall_time"`

	// RefTime is the weak reference processing time of a CMS_FINAL_REMARK.
	RefTime float64 `json:"ref_time,omitempty"`

	// TypeDetail joins the "type (detail)" of every node in the event.
	TypeDetail string `json:"type_detail"`
}

// LineKind tells how the reassembler handled an input line.
type LineKind int

const (
	// LineWriterThread announces the writer thread of the following lines.
	LineWriterThread LineKind = iota
	// LineFragment is an incomplete event held back until its tail arrives.
	LineFragment
	// LineCandidate is a complete line that should be handed to the grammar.
	LineCandidate
)

// RawLine is a single input line after reassembly.
type RawLine struct {
	Kind LineKind

	// Text is the candidate event text, with any held fragment prepended.
	Text string

	// Thread is the writer thread current when the line was read.
	Thread int

	// Joined is set when Text was rebuilt from a held fragment.
	Joined bool
}
