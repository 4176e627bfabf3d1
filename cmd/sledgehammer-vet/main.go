// Command sledgehammer-vet reports misplaced or malformed
// //sledgehammer:trace markers.
//
// Usage:
//
//	sledgehammer-vet ./...
//	go vet -vettool=$(which sledgehammer-vet) ./...
package main

import (
	"golang.org/x/tools/go/analysis/singlechecker"

	"github.com/kolkov/sledgehammer/cmd/sledgehammer/markercheck"
)

func main() {
	singlechecker.Main(markercheck.Analyzer)
}
