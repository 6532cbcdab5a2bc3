package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
)

// Shell is the command surface the interactive shell dispatches to. *App
// satisfies it; tests use a stub.
type Shell interface {
	LoggedIn(ctx context.Context) bool
	Login(ctx context.Context) error
	Logout(ctx context.Context) error
	Status(ctx context.Context) error
	Whoami(ctx context.Context) error
	List(ctx context.Context) error
	Connect(ctx context.Context, selector string) error
	Reload(ctx context.Context) error
}

var _ Shell = (*App)(nil)

const (
	helpLoggedOut = "Available commands: login, status, help, exit"
	helpLoggedIn  = "Available commands: (l)ist, (c)onnect <n|label>, reload, status, whoami, logout, help, exit"
)

// RunREPL reads commands from scanner until EOF, "exit" or ctx is done.
// Cancelling ctx ends the loop even while it waits for input.
//
// The first word of each line selects the command; the rest is its
// argument. Handler errors are printed and the loop carries on.
func RunREPL(ctx context.Context, sh Shell, prompt func() string, scanner *bufio.Scanner, out io.Writer) {
	lines := newLineReader(scanner)
	for {
		if ctx.Err() != nil {
			return
		}
		fmt.Fprint(out, prompt())
		line, ok := lines.next(ctx)
		if !ok {
			fmt.Fprintln(out)
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd, arg := parts[0], strings.Join(parts[1:], " ")

		var err error
		switch cmd {
		case "help", "?":
			if sh.LoggedIn(ctx) {
				fmt.Fprintln(out, helpLoggedIn)
			} else {
				fmt.Fprintln(out, helpLoggedOut)
			}

		case "login":
			err = sh.Login(ctx)

		case "logout":
			err = sh.Logout(ctx)

		case "status":
			err = sh.Status(ctx)

		case "whoami":
			err = sh.Whoami(ctx)

		case "l", "ls", "list":
			err = sh.List(ctx)

		case "c", "connect", "ssh":
			if arg == "" {
				fmt.Fprintln(out, "Usage: connect <n|label>")
				continue
			}
			err = sh.Connect(ctx, arg)

		case "reload":
			err = sh.Reload(ctx)

		case "exit", "quit", "q":
			fmt.Fprintln(out, "Bye!")
			return

		default:
			fmt.Fprintln(out, "Unknown command:", cmd)
		}

		if err != nil {
			fmt.Fprintln(out, "Error:", err)
		}
	}
}

// lineReader scans one line per request in a goroutine. Nothing is read
// ahead, so a child process such as ssh owns stdin while a command runs.
type lineReader struct {
	scanner *bufio.Scanner
	results chan scanResult
	pending bool
}

type scanResult struct {
	line string
	ok   bool
}

func newLineReader(scanner *bufio.Scanner) *lineReader {
	return &lineReader{scanner: scanner, results: make(chan scanResult, 1)}
}

// next returns the next line, or false on EOF or when ctx is done. A read
// abandoned by ctx stays pending and is picked up by the following call.
func (r *lineReader) next(ctx context.Context) (string, bool) {
	if !r.pending {
		r.pending = true
		go func() {
			ok := r.scanner.Scan()
			r.results <- scanResult{line: r.scanner.Text(), ok: ok}
		}()
	}
	select {
	case res := <-r.results:
		r.pending = false
		return res.line, res.ok
	case <-ctx.Done():
		return "", false
	}
}
