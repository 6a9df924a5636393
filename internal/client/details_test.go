package client

import (
	"testing"

	"github.com/nao1215/clientmap/internal/clientmap"
)

func TestDetailPanel(t *testing.T) {
	t.Parallel()

	var p DetailPanel
	if _, ok := p.Current(); ok {
		t.Fatal("zero panel must be empty")
	}

	n := clientmap.Node{ID: 3, URL: "https://app.test/a"}
	p.Show(n)
	if got, ok := p.Current(); !ok || got.ID != 3 {
		t.Errorf("Current() = %+v, %v", got, ok)
	}

	if p.clearIf(func(shown clientmap.Node) bool { return shown.ID == 4 }) {
		t.Error("non-matching predicate must not clear")
	}
	if !p.clearIf(func(shown clientmap.Node) bool { return shown.ID == 3 }) {
		t.Error("matching predicate must clear")
	}
	if p.clearIf(func(clientmap.Node) bool { return true }) {
		t.Error("an empty panel has nothing to clear")
	}

	p.Show(n)
	p.Clear()
	if _, ok := p.Current(); ok {
		t.Error("Clear() must empty the panel")
	}
}
