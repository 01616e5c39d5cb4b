package util

import (
	"errors"
	"testing"

	json "github.com/goccy/go-json"
)

func collect(items []int, size int) [][]int {
	var out [][]int
	_ = EachChunk(items, size, func(chunk []int) error {
		out = append(out, chunk)
		return nil
	})
	return out
}

func TestEachChunk(t *testing.T) {
	chunks := collect([]int{1, 2, 3, 4, 5}, 2)
	if len(chunks) != 3 || len(chunks[2]) != 1 || chunks[2][0] != 5 {
		t.Fatalf("chunks = %v", chunks)
	}
	if got := collect([]int{1, 2}, 0); len(got) != 1 || len(got[0]) != 2 {
		t.Fatalf("non-positive size should produce one chunk, got %v", got)
	}
	if got := collect(nil, 3); got != nil {
		t.Fatalf("empty input should not call fn, got %v", got)
	}
}

func TestEachChunkStopsOnError(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	err := EachChunk([]int{1, 2, 3, 4}, 1, func([]int) error {
		calls++
		if calls == 2 {
			return boom
		}
		return nil
	})
	if !errors.Is(err, boom) || calls != 2 {
		t.Fatalf("err=%v calls=%d", err, calls)
	}
}

func TestEachChunkAppendDoesNotClobberNextChunk(t *testing.T) {
	items := []int{1, 2, 3, 4}
	_ = EachChunk(items, 2, func(chunk []int) error {
		_ = append(chunk, 99)
		return nil
	})
	if items[2] != 3 {
		t.Fatalf("append leaked into items: %v", items)
	}
}

func TestFingerprintIsOrderIndependent(t *testing.T) {
	a := Fingerprint(map[string]any{"name": "p", "type": "BOGO"})
	b := Fingerprint(map[string]any{"type": "BOGO", "name": "p"})
	if a != b {
		t.Fatalf("fingerprint depends on iteration order")
	}
	if a == Fingerprint(map[string]any{"name": "q", "type": "BOGO"}) {
		t.Fatalf("different values should differ")
	}
}

func TestFingerprintSeparatesKeysFromValues(t *testing.T) {
	if Fingerprint(map[string]any{"ab": "c"}) == Fingerprint(map[string]any{"a": "bc"}) {
		t.Fatalf("key/value boundary is ambiguous")
	}
	if Fingerprint(map[string]any{"qty": json.Number("2")}) != Fingerprint(map[string]any{"qty": 2}) {
		t.Fatalf("numeric forms of the same value should match")
	}
	if Fingerprint(map[string]any{"qty": "2"}) == Fingerprint(map[string]any{"qty": 2}) {
		t.Fatalf("string and number should stay distinct")
	}
}
