package detector

import "regexp"

// Format names reported by the detector.
const (
	FormatVMLog    = "HotSpot VM log"
	FormatCMSGCLog = "CMS gc log"
	FormatUnified  = "Unified JVM logging"
	FormatG1       = "G1 gc log"
	FormatParallel = "Parallel gc log"
	FormatSerial   = "Serial gc log"
)

// LogFormat describes a GC log layout the detector can recognize.
type LogFormat struct {
	Name        string         // Human-readable name
	Description string         // How the JVM produces this layout
	Pattern     *regexp.Regexp // Compiled regex (set during init)
	PatternStr  string         // Pattern string a line must contain
	Supported   bool           // True if the parser understands this layout
	Hint        string         // Advice shown when the layout is unsupported
}

// DefaultFormats returns the built-in GC log layouts to detect.
// Formats are ordered by preference when confidences tie.
func DefaultFormats() []*LogFormat {
	formats := []*LogFormat{
		{
			Name:        FormatVMLog,
			Description: "XML-escaped VM output (-XX:+LogVMOutput) with per-thread writer markers",
			PatternStr:  `^<writer thread='\d+'/>$|^<hotspot_log|-&gt;`,
			Supported:   true,
		},
		{
			Name:        FormatCMSGCLog,
			Description: "Plain -XX:+PrintGCDetails output from the CMS collector",
			PatternStr:  `\[(ParNew|CMS|CMS-concurrent-[a-z-]+|GC \(CMS [A-Za-z ]+\)|1 CMS-[a-z-]+)[:\] ]`,
			Supported:   true,
		},
		{
			Name:        FormatUnified,
			Description: "JDK 9+ unified logging (-Xlog:gc*)",
			PatternStr:  `^\[[^\]]+\](\[[^\]]+\])*\[(info|debug|trace|warning)\s*\]\[gc`,
			Hint: "Unified logging output is not supported. " +
				"Run the JVM with -XX:+UseConcMarkSweepGC -XX:+PrintGCDetails -XX:+PrintGCTimeStamps instead",
		},
		{
			Name:        FormatG1,
			Description: "Garbage-First collector output",
			PatternStr:  `G1 Evacuation Pause|\[GC pause \(|garbage-first heap`,
			Hint:        "Only the CMS collector is supported. Run the JVM with -XX:+UseConcMarkSweepGC",
		},
		{
			Name:        FormatParallel,
			Description: "Parallel collector output",
			PatternStr:  `\[(PSYoungGen|ParOldGen|PSOldGen):`,
			Hint:        "Only the CMS collector is supported. Run the JVM with -XX:+UseConcMarkSweepGC",
		},
		{
			Name:        FormatSerial,
			Description: "Serial collector output",
			PatternStr:  `\[(DefNew|Tenured):`,
			Hint:        "Only the CMS collector is supported. Run the JVM with -XX:+UseConcMarkSweepGC",
		},
	}

	// Compile all patterns
	for _, f := range formats {
		f.Pattern = regexp.MustCompile(f.PatternStr)
	}

	return formats
}
