package display

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"text/tabwriter"

	"github.com/wendizhou99-cell/Radar/pkg/radar"
)

//Renderer turns one processing result into a textual frame.
type Renderer interface {
	Name() string
	Extension() string
	Render(w io.Writer, result *radar.ProcessingResult) error
}

var renderers = map[string]func() Renderer{
	"text": func() Renderer { return textRenderer{} },
	"csv":  func() Renderer { return csvRenderer{} },
	"json": func() Renderer { return jsonRenderer{} },
}

//SupportedFormats lists the renderer names, sorted.
func SupportedFormats() []string {
	names := make([]string, 0, len(renderers))
	for name := range renderers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

//NewRenderer resolves a renderer by format name.
func NewRenderer(format string) (Renderer, error) {
	create, ok := renderers[format]
	if !ok {
		return nil, fmt.Errorf("display: unknown format %q (supported: %v): %w",
			format, SupportedFormats(), radar.ErrInvalidParameter)
	}
	return create(), nil
}

type textRenderer struct{}

func (textRenderer) Name() string      { return "text" }
func (textRenderer) Extension() string { return ".txt" }

func (textRenderer) Render(w io.Writer, result *radar.ProcessingResult) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "packet\t%d\n", result.SourcePacketID)
	fmt.Fprintf(tw, "processed at\t%s\n", result.ProcessingTime.Format("15:04:05.000"))
	fmt.Fprintf(tw, "duration\t%s\n", result.Statistics.ProcessingDuration)
	fmt.Fprintf(tw, "success\t%t\n", result.ProcessingSuccess)
	fmt.Fprintf(tw, "range bins\t%d\n", len(result.RangeProfile))
	fmt.Fprintf(tw, "doppler bins\t%d\n", len(result.DopplerSpectrum))
	fmt.Fprintf(tw, "beams\t%d\n", len(result.BeamformedData))
	fmt.Fprintln(tw)
	return tw.Flush()
}

type csvRenderer struct{}

func (csvRenderer) Name() string      { return "csv" }
func (csvRenderer) Extension() string { return ".csv" }

func (csvRenderer) Render(w io.Writer, result *radar.ProcessingResult) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"bin", "range", "doppler", "beamformed"}); err != nil {
		return err
	}
	for i := range result.RangeProfile {
		row := []string{
			strconv.Itoa(i),
			formatSample(result.RangeProfile, i),
			formatSample(result.DopplerSpectrum, i),
			formatSample(result.BeamformedData, i),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatSample(samples []float32, i int) string {
	if i >= len(samples) {
		return ""
	}
	return strconv.FormatFloat(float64(samples[i]), 'g', 6, 32)
}

type jsonRenderer struct{}

func (jsonRenderer) Name() string      { return "json" }
func (jsonRenderer) Extension() string { return ".json" }

func (jsonRenderer) Render(w io.Writer, result *radar.ProcessingResult) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
