package dock

import "github.com/jesseduffield/gocui"

// specialKeyBytes maps gocui special keys to the byte sequences a terminal
// application expects on its input.
var specialKeyBytes = map[gocui.Key][]byte{
	gocui.KeyArrowUp:    []byte("\x1b[A"),
	gocui.KeyArrowDown:  []byte("\x1b[B"),
	gocui.KeyArrowRight: []byte("\x1b[C"),
	gocui.KeyArrowLeft:  []byte("\x1b[D"),
	gocui.KeyHome:       []byte("\x1b[H"),
	gocui.KeyEnd:        []byte("\x1b[F"),
	gocui.KeyPgup:       []byte("\x1b[5~"),
	gocui.KeyPgdn:       []byte("\x1b[6~"),
	gocui.KeyDelete:     []byte("\x1b[3~"),
	gocui.KeyInsert:     []byte("\x1b[2~"),
	gocui.KeyF1:         []byte("\x1bOP"),
	gocui.KeyF2:         []byte("\x1bOQ"),
	gocui.KeyF3:         []byte("\x1bOR"),
	gocui.KeyF4:         []byte("\x1bOS"),
	gocui.KeyBackspace2: []byte("\x7f"),
}

// keyBytes translates a gocui key event into the bytes to feed the session.
// ok=false means the event has no terminal representation.
func keyBytes(key gocui.Key, ch rune, mod gocui.Modifier) ([]byte, bool) {
	if ch != 0 && mod == gocui.ModNone {
		return []byte(string(ch)), true
	}
	if mod == gocui.ModAlt && ch != 0 {
		return append([]byte{0x1b}, []byte(string(ch))...), true
	}

	if seq, ok := specialKeyBytes[key]; ok {
		return seq, true
	}

	// Control keys and other C0 bytes pass through directly. This covers
	// enter (CR), tab, escape and every ctrl+letter combination.
	if key > 0 && key < 0x20 {
		return []byte{byte(key)}, true
	}
	if key == gocui.KeySpace {
		return []byte{' '}, true
	}

	return nil, false
}
