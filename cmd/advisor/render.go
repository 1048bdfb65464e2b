package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/soiladvisor/soiladvisor/internal/advisor"
	"github.com/soiladvisor/soiladvisor/internal/soil"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#4ade80"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#6b7280"))
	labelStyle = lipgloss.NewStyle().Width(16)
	valueStyle = lipgloss.NewStyle().Width(14).Align(lipgloss.Right).PaddingRight(2)
	errorStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#ef4444"))
	adviceBox  = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#1a3a24")).
			Padding(0, 1).
			Width(78)

	bandStyles = map[soil.Band]lipgloss.Style{
		soil.BandLow:      lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#f59e0b")),
		soil.BandModerate: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#4ade80")),
		soil.BandHigh:     lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#38bdf8")),
		soil.BandUnknown:  dimStyle,
	}
)

// renderReport formats a report for the terminal. Every property is listed;
// those the provider did not report are marked.
func renderReport(r *advisor.Report) string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Soil profile"))
	b.WriteString(dimStyle.Render(fmt.Sprintf("  %.4f, %.4f  (%s)", r.Coordinate.Latitude, r.Coordinate.Longitude, r.Provider)))
	b.WriteString("\n\n")

	for _, p := range soil.AllProperties() {
		b.WriteString(labelStyle.Render(p.Label()))

		c, ok := r.Profile.Get(p)
		if !ok {
			b.WriteString(valueStyle.Render("-"))
			b.WriteString(dimStyle.Render("not reported"))
			b.WriteString("\n")
			continue
		}

		b.WriteString(valueStyle.Render(displayValue(c)))
		b.WriteString(bandStyle(c.Band).Render(string(c.Band)))
		b.WriteString("\n")
	}

	switch {
	case r.HasRecommendation():
		b.WriteString("\n")
		b.WriteString(titleStyle.Render("Recommendation"))
		b.WriteString("\n")
		b.WriteString(adviceBox.Render(strings.TrimSpace(r.Recommendation)))
		b.WriteString("\n")
	case r.RecommendationError != "":
		b.WriteString("\n")
		b.WriteString(errorStyle.Render(r.RecommendationError))
		b.WriteString("\n")
	}

	return b.String()
}

func bandStyle(band soil.Band) lipgloss.Style {
	if s, ok := bandStyles[band]; ok {
		return s
	}
	return dimStyle
}

func displayValue(c soil.PropertyClassification) string {
	value := strings.Trim(c.Raw, `"`)
	if value == "" {
		value = fmt.Sprintf("%g", c.Value)
	}
	if unit := c.Property.Unit(); unit != "" {
		value += " " + unit
	}
	return value
}
