// internal/symbols/translations.go
package symbols

import "fmt"

// Translations maps caller-facing instrument symbols to feed-internal
// (streamer) symbols and back. The table is immutable after construction;
// building it from upstream reference data is the caller's concern.
type Translations struct {
	streamerByOriginal map[string]string
	originalByStreamer map[string]string
	streamerSymbols    []string
}

// New builds a Translations table from an original→streamer symbol map.
func New(pairs map[string]string) (*Translations, error) {
	if len(pairs) == 0 {
		return nil, fmt.Errorf("symbols: at least one symbol pair is required")
	}

	t := &Translations{
		streamerByOriginal: make(map[string]string, len(pairs)),
		originalByStreamer: make(map[string]string, len(pairs)),
		streamerSymbols:    make([]string, 0, len(pairs)),
	}
	for original, streamer := range pairs {
		if original == "" || streamer == "" {
			return nil, fmt.Errorf("symbols: empty symbol in pair %q -> %q", original, streamer)
		}
		if prev, ok := t.originalByStreamer[streamer]; ok {
			return nil, fmt.Errorf("symbols: streamer symbol %q mapped twice (%q and %q)", streamer, prev, original)
		}
		t.streamerByOriginal[original] = streamer
		t.originalByStreamer[streamer] = original
		t.streamerSymbols = append(t.streamerSymbols, streamer)
	}
	return t, nil
}

// StreamerSymbols returns the full set of feed-side symbols to subscribe.
func (t *Translations) StreamerSymbols() []string {
	out := make([]string, len(t.streamerSymbols))
	copy(out, t.streamerSymbols)
	return out
}

// OriginalSymbol resolves a feed symbol back to the caller-facing symbol.
func (t *Translations) OriginalSymbol(streamerSymbol string) (string, bool) {
	original, ok := t.originalByStreamer[streamerSymbol]
	return original, ok
}

// StreamerSymbol resolves a caller-facing symbol to its feed symbol.
func (t *Translations) StreamerSymbol(originalSymbol string) (string, bool) {
	streamer, ok := t.streamerByOriginal[originalSymbol]
	return streamer, ok
}
