// Command docsort files scanned PDFs under template-driven names built
// from matching spreadsheet rows.
package main

import (
	"os"
)

func main() {
	if err := Execute(); err != nil {
		os.Exit(1)
	}
}
