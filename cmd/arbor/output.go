package main

import (
	"encoding/json"
	"fmt"

	"arbor/internal/history"
	"arbor/internal/query"
	"arbor/internal/report"
	"arbor/internal/watch"
)

func printMatches(matches []query.Match, asJSON bool) error {
	if asJSON {
		doc := struct {
			Count   int           `json:"count"`
			Matches []query.Match `json:"matches"`
		}{Count: len(matches), Matches: matches}
		data, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}

	if len(matches) == 0 {
		fmt.Println("no matches")
		return nil
	}
	for i, m := range matches {
		fmt.Printf("match %d (pattern %d)\n", i, m.PatternIndex)
		for _, c := range m.Captures {
			fmt.Printf("  @%s %s [%d:%d-%d:%d] %q\n",
				c.Name, c.Kind,
				c.Start.Row, c.Start.Column, c.End.Row, c.End.Column,
				c.Text)
		}
	}
	return nil
}

func printWatchResult(result watch.Result) {
	switch {
	case result.Err != nil:
		fmt.Printf("%s: %v\n", result.Path, result.Err)
	case result.Removed:
		fmt.Printf("%s: removed\n", result.Path)
	case result.Kind == history.RunFallback:
		fmt.Printf("%s (%s, heuristic): %d spans\n", result.Path, result.Language, len(result.Spans))
	case result.Kind == history.RunReparse:
		fmt.Printf("%s (%s): %d nodes\n", result.Path, result.Language, result.Tree.Len())
		if len(result.Ops) > 0 {
			fmt.Print(report.RenderOps(result.Ops))
		}
	default:
		fmt.Printf("%s (%s): %d nodes\n", result.Path, result.Language, result.Tree.Len())
	}
}
