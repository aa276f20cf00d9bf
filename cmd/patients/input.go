package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"github.com/JonMunkholm/patients/internal/core"
)

// parseSets turns repeated "Field=value" flags into a record. The value may
// contain '='; only the first one splits.
func parseSets(sets []string) (core.RawRecord, error) {
	raw := make(core.RawRecord, len(sets))
	for _, s := range sets {
		name, value, ok := strings.Cut(s, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid --set %q: want Field=value", s)
		}
		if _, dup := raw[name]; dup {
			return nil, fmt.Errorf("field %q set more than once", name)
		}
		raw[name] = value
	}
	return raw, nil
}

// readRecordFile reads one JSON object from path. Numbers keep their text.
func readRecordFile(path string) (core.RawRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return decodeRecord(f)
}

func decodeRecord(r io.Reader) (core.RawRecord, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var raw core.RawRecord
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	if raw == nil {
		return nil, fmt.Errorf("decode record: want a JSON object")
	}
	return raw, nil
}

// recordInput builds a record from --json, then overlays --set pairs.
func recordInput(jsonPath string, sets []string) (core.RawRecord, error) {
	raw := core.RawRecord{}
	if jsonPath != "" {
		fromFile, err := readRecordFile(jsonPath)
		if err != nil {
			return nil, err
		}
		raw = fromFile
	}

	fromFlags, err := parseSets(sets)
	if err != nil {
		return nil, err
	}
	for k, v := range fromFlags {
		raw[k] = v
	}
	return raw, nil
}

// stdinIsTerminal reports whether a person can answer a prompt.
func stdinIsTerminal() bool {
	fd := os.Stdin.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// confirm asks question on w and reads the answer from r. Only "y" or
// "yes" confirm; anything else, including EOF, declines.
func confirm(r io.Reader, w io.Writer, question string) bool {
	fmt.Fprintf(w, "%s [y/N]: ", question)
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}
