package embedding

import "testing"

func TestSimpleTokenizer(t *testing.T) {
	tok := &SimpleTokenizer{}
	ids, mask, types := tok.Tokenize("Customer ID: C1", 8)
	if len(ids) != 8 || len(mask) != 8 || len(types) != 8 {
		t.Fatalf("lengths = %d/%d/%d, want 8", len(ids), len(mask), len(types))
	}
	if ids[0] != clsTokenID {
		t.Errorf("ids[0] = %d, want CLS", ids[0])
	}
	if ids[4] != sepTokenID {
		t.Errorf("ids[4] = %d, want SEP", ids[4])
	}
	for i, want := range []int64{1, 1, 1, 1, 1, 0, 0, 0} {
		if mask[i] != want {
			t.Errorf("mask[%d] = %d, want %d", i, mask[i], want)
		}
	}
	if ids[1] != int64(TokenID("customer")) {
		t.Errorf("token ids are not case-insensitive")
	}
}

func TestSimpleTokenizer_Truncates(t *testing.T) {
	tok := &SimpleTokenizer{}
	ids, mask, _ := tok.Tokenize("a b c d e f g h i j", 4)
	if ids[0] != clsTokenID || ids[3] != sepTokenID {
		t.Errorf("ids = %v, want CLS ... SEP", ids)
	}
	for i, m := range mask {
		if m != 1 {
			t.Errorf("mask[%d] = %d, want 1", i, m)
		}
	}
}

func TestTokenID_Range(t *testing.T) {
	for _, w := range []string{"", "purchase", "ünïcödé", "12345"} {
		if id := TokenID(w); id >= vocabSize {
			t.Errorf("TokenID(%q) = %d, out of range", w, id)
		}
	}
}
