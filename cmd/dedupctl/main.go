// dedupctl analyzes a query set file offline and prints what to remove from
// each subcluster.
package main

import (
	"os"

	"github.com/Adithya-Monish-Kumar-K/querydedup/cmd/dedupctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
