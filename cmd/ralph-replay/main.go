// Command ralph-replay steps interactively through a recorded session
// file: n advances one record, f dumps the rest, q quits.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/chzyer/readline"
	"github.com/steveyegge/ralph/internal/session"
)

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintln(os.Stderr, "usage: ralph-replay <session.jsonl>")
		os.Exit(1)
	}

	records, err := session.ReadRecords(os.Args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "ralph-replay: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("%d records loaded\n", len(records))

	rl, err := readline.New("replay> ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "ralph-replay: %v\n", err)
		os.Exit(1)
	}
	defer rl.Close()

	pos := 0
	for {
		line, err := rl.Readline()
		if err != nil {
			return
		}
		switch strings.TrimSpace(line) {
		case "n", "next", "":
			if pos >= len(records) {
				fmt.Println("end of session")
				continue
			}
			printRecord(records[pos])
			pos++
		case "f", "fast":
			for ; pos < len(records); pos++ {
				printRecord(records[pos])
			}
		case "q", "quit":
			return
		default:
			fmt.Println("commands: n(ext), f(ast), q(uit)")
		}
	}
}

func printRecord(r session.Record) {
	switch r.Kind {
	case session.RecordEvent:
		fmt.Printf("%8dms  [%s] %s\n", r.OffsetMs, r.Event.Topic, r.Event.Payload)
	case session.RecordUx:
		if r.Ux.TerminalWrite != nil {
			raw, err := r.Ux.TerminalWrite.DecodeBytes()
			if err != nil {
				fmt.Printf("%8dms  <bad terminal write: %v>\n", r.OffsetMs, err)
				return
			}
			os.Stdout.Write(raw)
			return
		}
		fmt.Printf("%8dms  <%s>\n", r.OffsetMs, r.Ux.Kind)
	}
}
