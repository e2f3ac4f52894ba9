package main

import (
	"fmt"
	"log"
	"os"

	"github.com/ipfs-shipyard/DNAcutter/internal/segmenter"
	"github.com/ipfs-shipyard/DNAcutter/internal/segmenter/util"
)

func main() {

	inStat, statErr := os.Stdin.Stat()
	if statErr != nil {
		log.Fatalf("unexpected error stat()ing stdIN: %s", statErr)
	}

	// Parse CLI and initialize everything
	// On error it will log.Fatal() on its own
	sgm := segmenter.NewFromArgv(os.Args)

	if 0 != (inStat.Mode() & os.ModeCharDevice) {
		// do not try to optimize a TTY
		fmt.Fprint(
			os.Stderr,
			"------\nYou seem to be feeding a sequence straight from a terminal, an odd choice...\nNevertheless will proceed to read until EOF ( Ctrl+D )\n------\n",
		)
	} else {
		for _, opt := range util.ReadOptimizations {
			if err := opt.Action(os.Stdin, inStat); err != nil && err != os.ErrInvalid {
				log.Printf("Failed to apply read optimization hint '%s' to stdIN: %s\n", opt.Name, err)
			}
		}
	}

	var profileStop func()
	// starts profiler if available
	if util.ProfileStartStop != nil {
		profileStop = util.ProfileStartStop()
	}
	processErr := sgm.ProcessReader(
		os.Stdin,
		nil,
	)
	sgm.Destroy()
	if profileStop != nil {
		profileStop()
	}
	if util.IsBrokenPipe(processErr) {
		log.Fatalf("Output consumer went away before the end of STDIN: %s", processErr)
	} else if processErr != nil {
		log.Fatalf("Unexpected error processing STDIN: %s", processErr)
	}

	sgm.OutputSummary()
}
