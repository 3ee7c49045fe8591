package main

// ---------------------------------------------------------------------------
// cmd_scan.go: check a payload against the signature sets offline
// ---------------------------------------------------------------------------

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/Tanner253/ExtraHop-TakeHomeAssesment/internal/modules/signature"
)

// scanResult is the JSON shape printed by `scan --json`.
type scanResult struct {
	Input      string          `json:"input"`
	Categories []string        `json:"categories"`
	Hits       []signature.Hit `json:"hits"`
}

func scanPayload(m *signature.Matcher, input string) scanResult {
	found := m.Match(input)
	res := scanResult{
		Input:      input,
		Categories: []string{},
		Hits:       m.Explain(input),
	}
	for _, c := range found.List() {
		res.Categories = append(res.Categories, c.String())
	}
	if res.Hits == nil {
		res.Hits = []signature.Hit{}
	}
	return res
}

func cmdScan(args []string) {
	fs := flag.NewFlagSet("scan", flag.ExitOnError)
	inputFile := fs.String("input", "", "Read payload from file (- for stdin)")
	format := fs.String("format", "table", "Output format: table, json")
	jsonOut := fs.Bool("json", false, "Output as JSON")
	fail := fs.Bool("fail", false, "Exit with status 2 when any pattern matches")
	fs.Parse(args)

	if *jsonOut {
		*format = "json"
	}

	payload, err := readPayload(fs.Args(), *inputFile, os.Stdin)
	if err != nil {
		errorf("%v", err)
	}

	res := scanPayload(signature.New(), payload)

	if parseFormat(*format) == FormatJSON {
		if err := writeJSONOut(os.Stdout, res); err != nil {
			errorf("encoding result: %v", err)
		}
	} else {
		printScan(os.Stdout, res)
	}

	if *fail && len(res.Categories) > 0 {
		os.Exit(2)
	}
}

// readPayload takes the payload from positional args, a file, or stdin.
func readPayload(positional []string, inputFile string, stdin *os.File) (string, error) {
	if len(positional) > 0 {
		return strings.Join(positional, " "), nil
	}

	var r io.Reader
	switch inputFile {
	case "":
		if isTTY(stdin) {
			return "", fmt.Errorf("no payload given: pass it as an argument, with --input, or on stdin")
		}
		r = stdin
	case "-":
		r = stdin
	default:
		f, err := os.Open(inputFile)
		if err != nil {
			return "", fmt.Errorf("opening %s: %w", inputFile, err)
		}
		defer f.Close()
		r = f
	}

	data, err := io.ReadAll(io.LimitReader(r, 10<<20))
	if err != nil {
		return "", fmt.Errorf("reading payload: %w", err)
	}
	return strings.TrimRight(string(data), "\r\n"), nil
}

func printScan(w io.Writer, res scanResult) {
	if len(res.Categories) == 0 {
		fmt.Fprintf(w, "%s No signatures matched.\n", green("✓"))
		return
	}
	fmt.Fprintf(w, "%s Matched: %s\n\n", red("✗"), strings.Join(res.Categories, ", "))
	tbl := NewTable(w, "CATEGORY", "FAMILY", "PATTERN", "MATCHED")
	for _, h := range res.Hits {
		tbl.AddRow(h.CategoryTag, h.Category.Label(), h.PatternName, truncateCell(h.MatchedText, 60))
	}
	tbl.Render()
}
