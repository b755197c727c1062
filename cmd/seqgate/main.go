// Command seqgate serves a rate-limited HTTP gateway to the NCBI nucleotide
// database.
package main

import "github.com/seqgate/seqgate/cmd/seqgate/cmd"

func main() {
	cmd.Execute()
}
