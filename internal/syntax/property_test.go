package syntax

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"arbor/internal/language"
)

const propertyBase = `{"users": [{"name": "ada", "age": 36}, {"name": "alan", "ok": true}], "n": 12}`

// Random single-range mutations of a JSON document: the incremental
// reparse must always match a from-scratch parse, valid syntax or not.
func TestIncrementalEquivalenceProperty(t *testing.T) {
	reg, err := language.NewRegistry()
	require.NoError(t, err)
	engine := NewEngine(reg)

	rapid.Check(t, func(rt *rapid.T) {
		oldSrc := []byte(propertyBase)

		start := rapid.IntRange(0, len(oldSrc)).Draw(rt, "start")
		end := rapid.IntRange(start, len(oldSrc)).Draw(rt, "end")
		replacement := rapid.StringMatching(`[a-z0-9:,"\[\]{} ]{0,12}`).Draw(rt, "replacement")

		newSrc := append([]byte(nil), oldSrc[:start]...)
		newSrc = append(newSrc, replacement...)
		newSrc = append(newSrc, oldSrc[end:]...)

		h, err := engine.Parse(context.Background(), oldSrc, language.JSON)
		if err != nil {
			rt.Fatalf("full parse failed: %v", err)
		}
		defer h.Close()

		edit := ComputeEdit(oldSrc, newSrc)
		if string(edit.Apply(oldSrc)) != string(newSrc) {
			rt.Fatalf("edit does not reproduce new source")
		}
		if err := h.Reparse(context.Background(), edit); err != nil {
			rt.Fatalf("incremental parse failed: %v", err)
		}

		full, err := engine.Parse(context.Background(), newSrc, language.JSON)
		if err != nil {
			rt.Fatalf("full parse of edited source failed: %v", err)
		}
		defer full.Close()

		if !Equal(h.Snapshot(), full.Snapshot()) {
			rt.Fatalf("incremental tree differs from full parse for %q", newSrc)
		}
	})
}

// Any input, however broken, yields a tree covering the full range whose
// leaves (plus gaps) reconstruct the source exactly.
func TestRoundTripProperty(t *testing.T) {
	reg, err := language.NewRegistry()
	require.NoError(t, err)
	engine := NewEngine(reg)

	rapid.Check(t, func(rt *rapid.T) {
		src := []byte(rapid.StringMatching(`[a-z0-9:,"\[\]{}\n ]{0,64}`).Draw(rt, "src"))

		h, err := engine.Parse(context.Background(), src, language.JSON)
		if err != nil {
			rt.Fatalf("parse failed: %v", err)
		}
		defer h.Close()

		tree := h.Snapshot()
		if got := tree.Reconstruct(); string(got) != string(src) {
			rt.Fatalf("reconstruct mismatch: %q != %q", got, src)
		}
		if root := tree.Root(); root != nil && root.EndByte != uint32(len(src)) {
			rt.Fatalf("root span [%d,%d) does not cover input of length %d",
				root.StartByte, root.EndByte, len(src))
		}
	})
}
