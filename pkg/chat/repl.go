// Package chat runs the interactive read-eval-print loop of the client.
package chat

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rcliao/teeny-mcp/pkg/chaterr"
)

const prompt = "Query: "

// Turner answers one user query.
type Turner interface {
	Run(ctx context.Context, query string) (string, error)
}

// REPL reads one query per line and prints each turn's outcome.
type REPL struct {
	in    io.Reader
	out   io.Writer
	turns Turner
}

// NewREPL creates a REPL reading from in and writing to out.
func NewREPL(in io.Reader, out io.Writer, turns Turner) *REPL {
	return &REPL{in: in, out: out, turns: turns}
}

type line struct {
	text string
	err  error
}

// Run loops until the user quits, input ends or ctx is done. Turn errors
// are printed and the loop continues, except for a fatal session error,
// which is returned.
func (r *REPL) Run(ctx context.Context) error {
	fmt.Fprintln(r.out, "\nMCP Client Started!")
	fmt.Fprintln(r.out, "Type your queries or 'quit/q' to exit.")

	done := make(chan struct{})
	defer close(done)
	lines := readLines(r.in, done)

	for {
		fmt.Fprint(r.out, prompt)
		var l line
		select {
		case <-ctx.Done():
			fmt.Fprintln(r.out)
			return nil
		case l = <-lines:
		}

		query := strings.TrimSpace(l.text)
		if l.err != nil && query == "" {
			if !errors.Is(l.err, io.EOF) {
				return fmt.Errorf("read input: %w", l.err)
			}
			fmt.Fprintln(r.out)
			return nil
		}
		switch strings.ToLower(query) {
		case "quit", "q":
			return nil
		case "":
			continue
		}

		result, err := r.turns.Run(ctx, query)
		switch {
		case err == nil:
			fmt.Fprintln(r.out, "\n"+result)
		case ctx.Err() != nil:
			fmt.Fprintln(r.out)
			return nil
		default:
			fmt.Fprintf(r.out, "\nError: %v\n", err)
			if chaterr.IsFatal(err) {
				return err
			}
		}
		if l.err != nil {
			return nil
		}
	}
}

// readLines feeds lines from in until it fails or done is closed.
func readLines(in io.Reader, done <-chan struct{}) <-chan line {
	out := make(chan line)
	go func() {
		br := bufio.NewReader(in)
		for {
			text, err := br.ReadString('\n')
			select {
			case out <- line{text: text, err: err}:
			case <-done:
				return
			}
			if err != nil {
				return
			}
		}
	}()
	return out
}
