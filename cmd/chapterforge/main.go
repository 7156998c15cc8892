// chapterforge turns long-form audio into chapter-ready prose through a
// durable, resumable stage pipeline.
package main

import (
	"os"

	"github.com/mlcook/chapterforge/cmd/chapterforge/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
