package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/peterh/liner"

	"github.com/driftlock/vecstore/pkg/vecstore"
)

// REPL is the interactive command loop, in the style of the pack's other
// file-backed-store CLIs: a liner prompt with history and completion over a
// small fixed command set.
type REPL struct {
	store     *vecstore.Store
	dimension uint32
	liner     *liner.State
}

func historyFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	return filepath.Join(home, ".vecstore_history")
}

var replCommands = []string{
	"put", "get", "del", "delete", "search", "stats", "help", "exit", "quit", "q",
}

func (r *REPL) completer(line string) []string {
	var completions []string

	lower := strings.ToLower(line)
	for _, cmd := range replCommands {
		if strings.HasPrefix(cmd, lower) {
			completions = append(completions, cmd)
		}
	}

	return completions
}

// Run starts the REPL loop. It returns on an exit/quit/q command, EOF
// (Ctrl-D), Ctrl-C, or an unrecoverable input error.
func (r *REPL) Run() error {
	r.liner = liner.NewLiner()
	defer r.liner.Close()

	r.liner.SetCtrlCAborts(true)
	r.liner.SetCompleter(r.completer)

	if f, err := os.Open(historyFile()); err == nil {
		r.liner.ReadHistory(f)
		f.Close()
	}

	fmt.Printf("vecstore - dimension=%d\n", r.dimension)
	fmt.Println("Type 'help' for available commands.")
	fmt.Println()

	for {
		line, err := r.liner.Prompt("vecstore> ")
		if err != nil {
			if errIsPromptAborted(err) || err == io.EOF {
				fmt.Println("\nBye!")
				r.saveHistory()

				return nil
			}

			return fmt.Errorf("reading input: %w", err)
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		r.liner.AppendHistory(line)

		cmd, rest := splitCommand(line)

		switch strings.ToLower(cmd) {
		case "exit", "quit", "q":
			fmt.Println("Bye!")
			r.saveHistory()

			return nil

		case "help", "?":
			r.printHelp()

		case "put":
			r.cmdPut(rest)

		case "get":
			r.cmdGet(rest)

		case "del", "delete":
			r.cmdDelete(rest)

		case "search":
			r.cmdSearch(rest)

		case "stats":
			r.cmdStats()

		default:
			fmt.Printf("Unknown command: %s (type 'help' for commands)\n", cmd)
		}
	}
}

func errIsPromptAborted(err error) bool {
	return err == liner.ErrPromptAborted
}

func splitCommand(line string) (cmd, rest string) {
	cmd, rest, _ = strings.Cut(line, " ")
	return cmd, strings.TrimSpace(rest)
}

func (r *REPL) saveHistory() {
	path := historyFile()
	if path == "" {
		return
	}

	f, err := os.Create(path)
	if err != nil {
		return
	}
	defer f.Close()

	r.liner.WriteHistory(f)
}

func (r *REPL) printHelp() {
	fmt.Println("Commands:")
	fmt.Println("  put <key> <v1> <v2> ... [-- <json value>]   Insert or overwrite a key")
	fmt.Println("  get <key>                                   Retrieve a key's vector and value")
	fmt.Println("  del <key>                                   Delete a key")
	fmt.Println("  search <k> <v1> <v2> ...                    Find the k nearest keys")
	fmt.Println("  stats                                        Show store statistics")
	fmt.Println("  help                                         Show this help")
	fmt.Println("  exit / quit / q                              Exit")
}

func (r *REPL) cmdPut(args string) {
	fields := strings.Fields(args)
	if len(fields) < 1+int(r.dimension) {
		fmt.Printf("Usage: put <key> %s [-- <json value>]\n", strings.Repeat("<v> ", int(r.dimension)))
		return
	}

	key := fields[0]

	vec, err := parseVector(fields[1:1+int(r.dimension)], r.dimension)
	if err != nil {
		fmt.Printf("Error parsing vector: %v\n", err)
		return
	}

	value := extractJSONValue(args)

	id, err := r.store.Put(key, vec, value)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}

	fmt.Printf("OK: put %q (id=%d)\n", key, id)
}

// extractJSONValue returns the raw text following a literal "--" token, if
// present, as the record's opaque value.
func extractJSONValue(args string) []byte {
	_, rest, found := strings.Cut(args, "-- ")
	if !found {
		return nil
	}

	return []byte(strings.TrimSpace(rest))
}

func (r *REPL) cmdGet(args string) {
	fields := strings.Fields(args)
	if len(fields) != 1 {
		fmt.Println("Usage: get <key>")
		return
	}

	vec, value, err := r.store.Get(fields[0])
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}

	fmt.Printf("Vector: %s\n", formatVector(vec))

	if len(value) > 0 {
		fmt.Printf("Value:  %s\n", value)
	} else {
		fmt.Println("Value:  (none)")
	}
}

func (r *REPL) cmdDelete(args string) {
	fields := strings.Fields(args)
	if len(fields) != 1 {
		fmt.Println("Usage: del <key>")
		return
	}

	existed, err := r.store.Delete(fields[0])
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}

	if existed {
		fmt.Printf("OK: deleted %q\n", fields[0])
	} else {
		fmt.Printf("OK: %q did not exist\n", fields[0])
	}
}

func (r *REPL) cmdSearch(args string) {
	fields := strings.Fields(args)
	if len(fields) < 1 {
		fmt.Println("Usage: search <k> <v1> <v2> ...")
		return
	}

	k, err := strconv.ParseUint(fields[0], 10, 32)
	if err != nil {
		fmt.Printf("Error parsing k: %v\n", err)
		return
	}

	if len(fields)-1 != int(r.dimension) {
		fmt.Printf("Expected %d vector components, got %d\n", r.dimension, len(fields)-1)
		return
	}

	query, err := parseVector(fields[1:], r.dimension)
	if err != nil {
		fmt.Printf("Error parsing vector: %v\n", err)
		return
	}

	results, err := r.store.Search(query, uint32(k))
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}

	if len(results) == 0 {
		fmt.Println("(no results)")
		return
	}

	for i, hit := range results {
		fmt.Printf("%3d. %-20s score=%.6f\n", i+1, hit.Key, hit.Score)
	}
}

func (r *REPL) cmdStats() {
	stats := r.store.Stats()

	fmt.Printf("Live entries:  %d\n", stats.LiveCount)
	fmt.Printf("Slot count:    %d\n", stats.SlotCount)
	fmt.Printf("Free slots:    %d\n", stats.FreeCount)
	fmt.Printf("Dead ratio:    %.4f\n", stats.DeadRatio)
	fmt.Printf("Generation:    %d\n", stats.Generation)

	slog.Debug("vecstore: stats", "live", stats.LiveCount, "slots", stats.SlotCount, "dead_ratio", stats.DeadRatio)
}

func parseVector(fields []string, dimension uint32) ([]float32, error) {
	if uint32(len(fields)) != dimension {
		return nil, errVectorDimension
	}

	vec := make([]float32, len(fields))

	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 32)
		if err != nil {
			return nil, err
		}

		vec[i] = float32(v)
	}

	return vec, nil
}

func formatVector(vec []float32) string {
	parts := make([]string, len(vec))
	for i, v := range vec {
		parts[i] = strconv.FormatFloat(float64(v), 'g', -1, 32)
	}

	return strings.Join(parts, " ")
}
