package cypher

import (
	"strings"
	"testing"
)

func TestRenderFillsPlaceholders(t *testing.T) {
	q, err := Render("upsert_nodes.cql", map[string]string{"LabelPattern": ":Product:Mirrored"})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(q, "MERGE (n:Product:Mirrored {mirror_key: row.mirror_key})") {
		t.Fatalf("unexpected query:\n%s", q)
	}
}

func TestRenderMissingKeyFails(t *testing.T) {
	if _, err := Render("replace_rels.cql", map[string]string{}); err == nil {
		t.Fatalf("expected missing RelType to fail")
	}
	if _, err := Render("nope.cql", nil); err == nil {
		t.Fatalf("expected unknown template to fail")
	}
}

func TestStatementsDropsEmptyTail(t *testing.T) {
	stmts, err := Statements("init_schema.cql")
	if err != nil {
		t.Fatalf("statements: %v", err)
	}
	if len(stmts) != 3 {
		t.Fatalf("statements = %d", len(stmts))
	}
	for _, s := range stmts {
		if strings.HasSuffix(s, ";") || s != strings.TrimSpace(s) {
			t.Fatalf("statement not trimmed: %q", s)
		}
	}
}
