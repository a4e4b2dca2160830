// Command triage runs a series of analyser builds against one file and
// reports the builds at which the result changed.
package main

import (
	"log"
	"os"
)

func main() {
	log.SetFlags(0)
	log.SetPrefix("triage: ")

	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		log.Fatal(err)
	}
}
