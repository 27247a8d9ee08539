package pypickle

import "testing"

func TestEncodeDecodeRoundTrip(t *testing.T) {
	index := map[string][]Entry{
		"script.rpyc":  {{Offset: 1234, Size: 5678, Prefix: ""}},
		"images/a.png": {{Offset: 99999, Size: 42, Prefix: ""}},
	}
	names := []string{"images/a.png", "script.rpyc"}

	data := EncodeIndex(names, index)
	got, err := DecodeIndex(data)
	if err != nil {
		t.Fatalf("DecodeIndex: %v", err)
	}

	for _, name := range names {
		want := index[name][0]
		entries := got[name]
		if len(entries) != 1 {
			t.Fatalf("%q: got %d entries, want 1", name, len(entries))
		}
		if entries[0] != want {
			t.Errorf("%q: got %+v, want %+v", name, entries[0], want)
		}
	}
}

func TestDecodeLargeOffset(t *testing.T) {
	index := map[string][]Entry{
		"big.bin": {{Offset: 1 << 40, Size: 1 << 35, Prefix: "x"}},
	}
	names := []string{"big.bin"}
	data := EncodeIndex(names, index)
	got, err := DecodeIndex(data)
	if err != nil {
		t.Fatalf("DecodeIndex: %v", err)
	}
	if got["big.bin"][0] != index["big.bin"][0] {
		t.Errorf("got %+v, want %+v", got["big.bin"][0], index["big.bin"][0])
	}
}
