package ui

import (
	"errors"
	"fmt"
	"io"

	"LinkGrab/internal"

	"github.com/eiannone/keyboard"
)

var ErrCancelled = errors.New("selection cancelled")

// KeySource yields key presses.
type KeySource interface {
	GetKey() (rune, keyboard.Key, error)
}

// Selector is the part of the orchestrator the checklist drives.
type Selector interface {
	Checklist() []internal.ChecklistItem
	Toggle(i int) error
	ToggleAll()
	SelectionText() string
}

type terminalKeys struct{}

func (terminalKeys) GetKey() (rune, keyboard.Key, error) { return keyboard.GetKey() }

// OpenTerminalKeys puts the terminal in raw mode. Call the returned func to restore it.
func OpenTerminalKeys() (KeySource, func(), error) {
	if err := keyboard.Open(); err != nil {
		return nil, nil, err
	}
	return terminalKeys{}, func() { _ = keyboard.Close() }, nil
}

// RunChecklist lets the user pick candidates:
// up/down move, space toggles, 'a' toggles all, enter confirms, esc/q cancels.
func RunChecklist(w io.Writer, keys KeySource, sel Selector) error {
	cursor := 0
	for {
		items := sel.Checklist()
		draw(w, items, cursor, sel.SelectionText())

		ch, key, err := keys.GetKey()
		if err != nil {
			return fmt.Errorf("read key: %w", err)
		}
		switch {
		case key == keyboard.KeyArrowUp || ch == 'k':
			if cursor > 0 {
				cursor--
			}
		case key == keyboard.KeyArrowDown || ch == 'j':
			if cursor < len(items)-1 {
				cursor++
			}
		case key == keyboard.KeySpace || ch == ' ':
			if len(items) > 0 {
				_ = sel.Toggle(cursor)
			}
		case ch == 'a' || ch == 'A':
			sel.ToggleAll()
		case key == keyboard.KeyEnter:
			return nil
		case key == keyboard.KeyEsc || key == keyboard.KeyCtrlC || ch == 'q' || ch == 'Q':
			return ErrCancelled
		}
	}
}

func draw(w io.Writer, items []internal.ChecklistItem, cursor int, counter string) {
	fmt.Fprint(w, "\033[H\033[2J")
	fmt.Fprintln(w, "↑/↓ move, SPACE toggle, A toggle all, ENTER download, ESC/Q quit")
	fmt.Fprintln(w)
	for i, it := range items {
		pointer := " "
		if i == cursor {
			pointer = ">"
		}
		mark := " "
		if it.Checked {
			mark = "x"
		}
		fmt.Fprintf(w, "%s [%s] %s\n", pointer, mark, it.Label)
	}
	fmt.Fprintf(w, "\n%s\n", counter)
}
