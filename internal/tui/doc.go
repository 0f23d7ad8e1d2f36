// Package tui renders the running plant in a terminal: an interactive
// bubbletea [Dashboard] and a plain [LiveRenderer] observer.
package tui
