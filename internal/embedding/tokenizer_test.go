package embedding

import "testing"

func TestSimpleTokenizer_Tokenize(t *testing.T) {
	tok := &SimpleTokenizer{}
	ids, attn := tok.Tokenize("A person surfing", 10)
	if len(ids) != 10 {
		t.Errorf("len(ids)=%d", len(ids))
	}
	if ids[0] != tokenBOS {
		t.Errorf("expected BOS %d, got %d", tokenBOS, ids[0])
	}
	if attn[0] != 1 {
		t.Error("attention[0] should be 1")
	}
	// Three words plus BOS, then EOS.
	if ids[4] != tokenEOS {
		t.Errorf("expected EOS at position 4, got %d", ids[4])
	}
}

func TestSimpleTokenizer_CaseInsensitive(t *testing.T) {
	tok := &SimpleTokenizer{}
	a, _ := tok.Tokenize("Surfing", 8)
	b, _ := tok.Tokenize("surfing", 8)
	if a[1] != b[1] {
		t.Errorf("expected case-insensitive token IDs, got %d vs %d", a[1], b[1])
	}
}

func TestSplitWords(t *testing.T) {
	words := SplitWords("  a  b  c  ")
	if len(words) != 3 {
		t.Errorf("expected 3 words, got %v", words)
	}
	if SplitWords("") != nil {
		t.Error("empty string should return nil")
	}
}

func TestHashString(t *testing.T) {
	h := HashString("abc")
	if h == 0 {
		t.Error("hash should be non-zero")
	}
	if HashString("abc") != HashString("abc") {
		t.Error("hash should be deterministic")
	}
}
