// Command assess evaluates one symptom report from the command line and
// prints the recommendation.
//
//	assess -fever 101.2 -cough moderate -fatigue severe -body-aches -activity high
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/nyashahama/fitcheck-backend/internal/assess"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run returns the process exit code: 0 on success, 2 on invalid input, 1 on
// any other failure.
func run(args []string, stdout, stderr io.Writer) int {
	opts, err := ParseArgs(args, stderr)
	if err != nil {
		fmt.Fprintln(stderr, "assess:", err)
		if errors.Is(err, errUsage) {
			return 2
		}
		return 1
	}

	rec := assess.Evaluate(opts.Report, opts.Signal())

	if opts.JSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(rec); err != nil {
			fmt.Fprintln(stderr, "assess:", err)
			return 1
		}
		return 0
	}

	fmt.Fprintf(stdout, "%s (%s, score %.1f)\n%s\n", rec.Recommendation, rec.Severity, rec.Score, rec.Explanation)
	return 0
}
