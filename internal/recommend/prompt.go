package recommend

import (
	_ "embed"
	"strconv"
	"strings"
	"text/template"

	"github.com/soiladvisor/soiladvisor/internal/soil"
)

//go:embed prompt.tmpl
var promptSource string

var promptTemplate = template.Must(template.New("prompt").
	Funcs(template.FuncMap{"inc": func(i int) int { return i + 1 }}).
	Parse(promptSource))

// notAvailable stands in for a property missing from the profile.
const notAvailable = "N/A"

// Fertilizer is one product the model may recommend.
type Fertilizer struct {
	Name    string
	Profile string
}

// Fertilizers lists the products offered to the model, in prompt order.
var Fertilizers = []Fertilizer{
	{Name: "Urea (46-0-0)", Profile: "High N, Low P, Low K"},
	{Name: "Ammonium Sulfate (21-0-0)", Profile: "High N, Low P, Low K"},
	{Name: "Single Super Phosphate", Profile: "Low N, Moderate P, Low K"},
	{Name: "Triple Super Phosphate", Profile: "Low N, High P, Low K"},
	{Name: "Muriate of Potash", Profile: "Low N, Low P, High K"},
	{Name: "Sulphate of Potash", Profile: "Low N, Low P, High K"},
	{Name: "Lime", Profile: "For raising soil pH"},
}

type promptData struct {
	Nutrients   []nutrientLine
	Guidelines  []guidelineLine
	Fertilizers []Fertilizer
}

type nutrientLine struct {
	Label string
	Value string
	Unit  string
	Band  string
}

type guidelineLine struct {
	Label string
	Low   string
	High  string
	Unit  string
}

// BuildPrompt renders the agronomic prompt for a classified profile. Every
// property is listed; those missing from the profile show as N/A.
func BuildPrompt(profile soil.Profile) string {
	data := promptData{Fertilizers: Fertilizers}

	for _, p := range soil.AllProperties() {
		line := nutrientLine{
			Label: p.Label(),
			Value: notAvailable,
			Unit:  p.Unit(),
			Band:  notAvailable,
		}
		if c, ok := profile.Get(p); ok {
			line.Value = displayValue(c)
			line.Band = string(c.Band)
		}
		data.Nutrients = append(data.Nutrients, line)

		t, _ := soil.ThresholdFor(p)
		data.Guidelines = append(data.Guidelines, guidelineLine{
			Label: p.Label(),
			Low:   formatFloat(t.Low),
			High:  formatFloat(t.High),
			Unit:  p.Unit(),
		})
	}

	var b strings.Builder
	// The template is parsed at init and only ranges over plain data.
	if err := promptTemplate.Execute(&b, data); err != nil {
		panic(err)
	}
	return b.String()
}

// displayValue prefers the provider's own rendering of the number.
func displayValue(c soil.PropertyClassification) string {
	if c.Raw != "" {
		return strings.Trim(c.Raw, `"`)
	}
	return formatFloat(c.Value)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
