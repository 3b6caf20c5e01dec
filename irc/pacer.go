package irc

import (
	"os"
	"strings"
	"time"
)

// maxFragmentLen is the largest chunk sent in a single PRIVMSG. Twitch
// truncates chat messages at 500 characters.
const maxFragmentLen = 500

// Fragment is one protocol-safe chunk of outbound text plus the delay to
// wait before writing it. Fragments are dispatched independently, each on
// its own scheduled send, so pacing is per-fragment rather than cumulative.
type Fragment struct {
	Text  string
	Delay time.Duration
}

// Pacer fragments long text and computes per-chunk delays so the bot stays
// under the host's message-rate limits while keeping perceived latency
// proportional to message length.
type Pacer struct {
	BaseDelay     time.Duration
	DelayPerChar  time.Duration
	MaxFragment   int
}

// NewPacerFromEnv builds a Pacer with operator overrides.
// Env knobs:
//
//	SEND_BASE_DELAY (default 1s)
//	SEND_DELAY_PER_CHAR (default 8ms)
func NewPacerFromEnv() *Pacer {
	p := &Pacer{BaseDelay: time.Second, DelayPerChar: 8 * time.Millisecond, MaxFragment: maxFragmentLen}
	if v := os.Getenv("SEND_BASE_DELAY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d >= 0 {
			p.BaseDelay = d
		}
	}
	if v := os.Getenv("SEND_DELAY_PER_CHAR"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d >= 0 {
			p.DelayPerChar = d
		}
	}
	return p
}

// Chunk splits text on paragraph boundaries first (two input paragraphs are
// never merged into one fragment), then wraps each paragraph into fragments
// no wider than MaxFragment without splitting words. Whitespace inside a
// fragment is preserved as written.
func (p *Pacer) Chunk(text string) []Fragment {
	width := p.MaxFragment
	if width <= 0 {
		width = maxFragmentLen
	}
	var out []Fragment
	for _, paragraph := range strings.Split(text, "\n") {
		if strings.TrimSpace(paragraph) == "" {
			continue
		}
		for _, frag := range wrap(paragraph, width) {
			out = append(out, Fragment{Text: frag, Delay: p.delayFor(frag)})
		}
	}
	return out
}

func (p *Pacer) delayFor(frag string) time.Duration {
	return p.BaseDelay + time.Duration(len(frag))*p.DelayPerChar
}

// wrap greedily packs words into lines of at most width runes, keeping the
// original inter-word whitespace where it fits. A single word longer than
// width becomes its own oversized fragment rather than being split.
func wrap(s string, width int) []string {
	if len(s) <= width {
		return []string{s}
	}
	var lines []string
	remaining := s
	for len(remaining) > width {
		cut := strings.LastIndexAny(remaining[:width+1], " \t")
		if cut <= 0 {
			// No break point inside the window: take the whole word.
			next := strings.IndexAny(remaining, " \t")
			if next < 0 {
				break
			}
			cut = next
		}
		lines = append(lines, remaining[:cut])
		remaining = strings.TrimLeft(remaining[cut:], " \t")
	}
	if remaining != "" {
		lines = append(lines, remaining)
	}
	return lines
}
