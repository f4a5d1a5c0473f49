package backendservice

import (
	"bytes"
	"context"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	backenddto "github.com/Black-And-White-Club/arena-sync/app/modules/backend/dto"
	"github.com/Black-And-White-Club/arena-sync/internal/observability"
)

const maxChartBars = 12

var (
	chartBackground = drawing.ColorFromHex("1b1f24")
	chartText       = drawing.ColorFromHex("e6e6e6")
	chartBar        = drawing.ColorFromHex("d4a017")
)

// LeaderboardChart renders a room's top scores as a PNG bar chart.
func (s *BackendService) LeaderboardChart(ctx context.Context, roomID string) ([]byte, error) {
	return observability.WithTelemetry(ctx, s.tel, serviceName, "leaderboard_chart", func(ctx context.Context) ([]byte, error) {
		entries, err := s.Leaderboard(ctx, roomID)
		if err != nil {
			return nil, err
		}
		return ScoreChart(roomID, entries)
	})
}

// ScoreChart draws one bar per entry, in the given order.
func ScoreChart(roomID string, entries []backenddto.LeaderboardEntry) ([]byte, error) {
	if len(entries) > maxChartBars {
		entries = entries[:maxChartBars]
	}
	bars := make([]chart.Value, 0, len(entries))
	top := 0.0
	for _, e := range entries {
		label := e.Username
		if label == "" {
			label = e.WalletAddress
		}
		v := float64(e.Score)
		top = max(top, v)
		bars = append(bars, chart.Value{
			Label: label,
			Value: v,
			Style: chart.Style{FillColor: chartBar, StrokeColor: chartBar},
		})
	}
	if top == 0 {
		return renderNoScores()
	}

	graph := chart.BarChart{
		Title:      roomID,
		TitleStyle: chart.Style{FontColor: chartText},
		Width:      800,
		Height:     400,
		BarWidth:   40,
		Background: chart.Style{FillColor: chartBackground},
		Canvas:     chart.Style{FillColor: chartBackground},
		XAxis:      chart.Style{FontColor: chartText},
		YAxis: chart.YAxis{
			Name:  "Score",
			Style: chart.Style{FontColor: chartText},
			Range: &chart.ContinuousRange{Min: 0, Max: top},
		},
		Bars: bars,
	}

	buffer := bytes.NewBuffer([]byte{})
	if err := graph.Render(chart.PNG, buffer); err != nil {
		return nil, err
	}
	return buffer.Bytes(), nil
}

// renderNoScores draws an empty axis-less chart carrying a message.
func renderNoScores() ([]byte, error) {
	const msg = "No scores yet"
	graph := chart.BarChart{
		Width:      400,
		Height:     200,
		Background: chart.Style{FillColor: chartBackground},
		Canvas:     chart.Style{FillColor: chartBackground},
		XAxis:      chart.Hidden(),
		YAxis: chart.YAxis{
			Style: chart.Hidden(),
			Range: &chart.ContinuousRange{Min: 0, Max: 1},
		},
		Bars: []chart.Value{{Value: 0, Style: chart.Hidden()}},
		Elements: []chart.Renderable{
			func(r chart.Renderer, cb chart.Box, _ chart.Style) {
				r.SetFontColor(chartText)
				r.SetFontSize(12.0)
				tb := r.MeasureText(msg)
				r.Text(msg, cb.Left+(cb.Width()-tb.Width())/2, cb.Top+(cb.Height()+tb.Height())/2)
			},
		},
	}
	buffer := bytes.NewBuffer([]byte{})
	if err := graph.Render(chart.PNG, buffer); err != nil {
		return nil, err
	}
	return buffer.Bytes(), nil
}
