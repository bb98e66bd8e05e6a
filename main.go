// Command agentjudge runs LLM-judged tests against a conversational GTD assistant.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/codalotl/agentjudge/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		if !errors.Is(err, cli.ErrTestsFailed) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}
