package main

import (
	"github.com/charmbracelet/lipgloss"
)

var styles = newPalette("#7D56F4", "#04B575", "#FF0000", "#FFA500", "#626262")

// palette is a simple stylesheet built with named [lipgloss.Style] fields
type palette struct {
	title lipgloss.Style
	ok    lipgloss.Style
	err   lipgloss.Style
	warn  lipgloss.Style
	help  lipgloss.Style
}

func newPalette(t, s, e, w, h string) *palette {
	return &palette{
		title: newBold(t),
		ok:    newBold(s),
		err:   newBold(e),
		warn:  newStyle(w),
		help:  newEm(h),
	}
}

func newStyle(fg string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(fg))
}

func newBold(fg string) lipgloss.Style {
	return newStyle(fg).Bold(true)
}

func newEm(fg string) lipgloss.Style {
	return newStyle(fg).Italic(true)
}

func (p *palette) Title(s string) string { return p.title.Render(s) }
func (p *palette) OK(s string) string    { return p.ok.Render(s) }
func (p *palette) Err(s string) string   { return p.err.Render(s) }
func (p *palette) Warn(s string) string  { return p.warn.Render(s) }
func (p *palette) Help(s string) string  { return p.help.Render(s) }

// syncState renders a list entry's dirty flag for tables.
func (p *palette) syncState(dirty bool) string {
	if dirty {
		return p.Warn("dirty")
	}
	return p.OK("clean")
}
