// internal/symbols/translations_test.go
package symbols

import (
	"sort"
	"testing"
)

func TestNew_Validation(t *testing.T) {
	cases := []struct {
		name    string
		pairs   map[string]string
		wantErr bool
	}{
		{"empty", map[string]string{}, true},
		{"nil", nil, true},
		{"emptyOriginal", map[string]string{"": "feed"}, true},
		{"emptyStreamer", map[string]string{"SPY": ""}, true},
		{"duplicateStreamer", map[string]string{"SPY": ".X", "QQQ": ".X"}, true},
		{"ok", map[string]string{"SPY": "SPY{=feed}"}, false},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := New(c.pairs)
			if (err != nil) != c.wantErr {
				t.Errorf("New() error = %v; wantErr=%v", err, c.wantErr)
			}
		})
	}
}

func TestStreamerSymbols(t *testing.T) {
	tr, err := New(map[string]string{
		"SPY": "SPY{=5m}",
		"QQQ": "QQQ{=5m}",
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	got := tr.StreamerSymbols()
	sort.Strings(got)
	want := []string{"QQQ{=5m}", "SPY{=5m}"}
	if len(got) != len(want) {
		t.Fatalf("StreamerSymbols() = %v; want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("StreamerSymbols()[%d] = %q; want %q", i, got[i], want[i])
		}
	}
}

func TestLookups(t *testing.T) {
	tr, _ := New(map[string]string{"SPY": "SPY{=5m}"})

	if original, ok := tr.OriginalSymbol("SPY{=5m}"); !ok || original != "SPY" {
		t.Errorf("OriginalSymbol = %q, %v; want SPY, true", original, ok)
	}
	if _, ok := tr.OriginalSymbol("unknown"); ok {
		t.Error("OriginalSymbol(unknown) = ok; want miss")
	}
	if streamer, ok := tr.StreamerSymbol("SPY"); !ok || streamer != "SPY{=5m}" {
		t.Errorf("StreamerSymbol = %q, %v; want SPY{=5m}, true", streamer, ok)
	}
	if _, ok := tr.StreamerSymbol("unknown"); ok {
		t.Error("StreamerSymbol(unknown) = ok; want miss")
	}
}
