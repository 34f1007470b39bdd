package cmd

import (
	"context"
	"fmt"
	"strings"
)

// Expand evaluates macro invocations in text from arguments, a file, or
// stdin, and prints the expanded document.
type Expand struct {
	Text   []string `arg:"" help:"Text to expand"                    name:"text" optional:""`
	Source string   `       help:"Input file or '-' for stdin"                               short:"f"`
	Env    string   `       help:"Environment configuration (YAML)"                          short:"e" type:"existingfile"`
}

// Run executes the expand command.
func (e *Expand) Run(_ context.Context) error {
	input := strings.Join(e.Text, " ")

	if input == "" {
		source := e.Source
		if source == "" {
			source = stdinSource
		}

		var err error

		input, err = readSource(source)
		if err != nil {
			return err
		}
	}

	sess, err := newSession(e.Env)
	if err != nil {
		return err
	}

	fmt.Println(sess.evaluate(input))

	return nil
}
