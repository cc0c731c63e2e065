// GCTool - CMS garbage collector log analyzer
//
// GCTool reconstructs GC events from CMS logs, including events split across
// lines by concurrent writer threads, and reports pause statistics with
// confidence intervals and outlier pauses.
package main

import (
	"os"

	"github.com/xeoh/GCTool/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
