package repl

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/peterh/liner"
)

const (
	pggateHistory = ".pggate_history"
)

type lineReader struct {
	line *liner.State
	r    *strings.Reader
}

func (lr *lineReader) ReadRune() (r rune, size int, err error) {
	for {
		if lr.r == nil {
			s, err := lr.line.Prompt("pggate: ")
			if err == liner.ErrPromptAborted {
				continue
			} else if err != nil {
				return 0, 0, err
			}
			lr.line.AppendHistory(s)
			lr.r = strings.NewReader(s + "\n")
		}

		r, sz, err := lr.r.ReadRune()
		if err == io.EOF {
			lr.r = nil
		} else if err != nil {
			return 0, 0, err
		} else {
			return r, sz, nil
		}
	}
}

// Interact runs commands typed at the console until end of input.
func (r *Repl) Interact(ctx context.Context) {
	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	if f, err := os.Open(pggateHistory); err == nil {
		line.ReadHistory(f)
		f.Close()
	}

	r.Run(ctx, &lineReader{line: line}, "console")

	if f, err := os.Create(pggateHistory); err != nil {
		fmt.Fprintf(os.Stderr, "pggate: error writing history file, %s: %s", pggateHistory, err)
	} else {
		line.WriteHistory(f)
		f.Close()
	}
}
