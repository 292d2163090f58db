package main

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/akmonengine/particle/actor"
	"github.com/akmonengine/particle/internal/scene"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"
)

const (
	canvasWidth  = 72
	canvasHeight = 22
	historySize  = 120
)

type TickMsg time.Time

// viewport is the side projection (x, y) drawn on the canvas.
type viewport struct {
	minX, maxX float64
	minY, maxY float64
}

func (v viewport) cell(x, y float64) (col, row int, ok bool) {
	col = int((x - v.minX) / (v.maxX - v.minX) * float64(canvasWidth-1))
	row = canvasHeight - 1 - int((y-v.minY)/(v.maxY-v.minY)*float64(canvasHeight-1))
	return col, row, col >= 0 && col < canvasWidth && row >= 0 && row < canvasHeight
}

type liveModel struct {
	name     string
	built    *scene.Built
	dt       float64
	view     viewport
	heights  []float64
	paused   bool
	parallel bool
	ccd      bool
}

func newLiveModel(name string) (liveModel, error) {
	s, err := loadScene(name)
	if err != nil {
		return liveModel{}, err
	}
	built, err := s.Build()
	if err != nil {
		return liveModel{}, err
	}
	return liveModel{
		name:     name,
		built:    built,
		dt:       1.0 / float64(frameRate),
		view:     fitViewport(built),
		heights:  make([]float64, 0, historySize),
		parallel: s.World.Parallel.Enabled,
		ccd:      s.World.CCD.Enabled,
	}, nil
}

// fitViewport frames the moving bodies at their initial positions. Static
// bodies are left out since a ground plate would dwarf the scene.
func fitViewport(built *scene.Built) viewport {
	v := viewport{minX: math.Inf(1), maxX: math.Inf(-1), minY: 0, maxY: math.Inf(-1)}
	for _, id := range built.World.BodyIDs() {
		body, _ := built.World.Body(id)
		if body.BodyType == actor.BodyTypeStatic {
			continue
		}
		p := body.Transform.Position
		v.minX = math.Min(v.minX, p.X())
		v.maxX = math.Max(v.maxX, p.X())
		v.minY = math.Min(v.minY, p.Y())
		v.maxY = math.Max(v.maxY, p.Y())
	}
	if math.IsInf(v.minX, 1) {
		return viewport{minX: -10, maxX: 10, minY: -1, maxY: 10}
	}
	v.minX -= 2
	v.maxX += 2
	v.minY -= 1
	v.maxY += 2
	return v
}

func (m liveModel) Init() tea.Cmd {
	return m.tick()
}

func (m liveModel) tick() tea.Cmd {
	return tea.Tick(time.Second/time.Duration(frameRate), func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

func (m liveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case " ":
			m.paused = !m.paused
		case "r":
			fresh, err := newLiveModel(m.name)
			if err != nil {
				return m, tea.Quit
			}
			fresh.paused = m.paused
			return fresh, nil
		case "p":
			m.parallel = !m.parallel
			m.built.World.SetParallelEnabled(m.parallel)
		case "c":
			m.ccd = !m.ccd
			m.built.World.SetCCDEnabled(m.ccd)
		}
	case TickMsg:
		if !m.paused {
			m.built.World.Step(m.dt)
			if position, ok := m.built.Tracked(); ok {
				if len(m.heights) == historySize {
					m.heights = append(m.heights[:0], m.heights[1:]...)
				}
				m.heights = append(m.heights, position.Y())
			}
		}
		return m, m.tick()
	}
	return m, nil
}

func (m liveModel) canvas() string {
	grid := make([][]byte, canvasHeight)
	for i := range grid {
		grid[i] = []byte(strings.Repeat(" ", canvasWidth))
	}

	if _, row, ok := m.view.cell(m.view.minX, 0); ok {
		for col := range grid[row] {
			grid[row][col] = '='
		}
	}

	world := m.built.World
	for _, id := range world.BodyIDs() {
		body, _ := world.Body(id)
		if body.BodyType == actor.BodyTypeStatic {
			continue
		}
		col, row, ok := m.view.cell(body.Transform.Position.X(), body.Transform.Position.Y())
		if !ok {
			continue
		}
		switch {
		case id == m.built.Track:
			grid[row][col] = '@'
		case body.IsSleeping:
			grid[row][col] = 'z'
		case body.BodyType == actor.BodyTypeKinematic:
			grid[row][col] = 'k'
		default:
			grid[row][col] = 'o'
		}
	}

	lines := make([]string, canvasHeight)
	for i, row := range grid {
		lines[i] = string(row)
	}
	return strings.Join(lines, "\n")
}

func (m liveModel) View() string {
	world := m.built.World
	profile := world.Profile()

	state := "running"
	if m.paused {
		state = "paused"
	}

	var panel strings.Builder
	panel.WriteString(headerStyle.Render(strings.ToUpper(m.name)) + "\n\n")
	panel.WriteString(field("State", state))
	panel.WriteString(field("Frame", fmt.Sprint(world.Frame())))
	panel.WriteString(field("Time", fmt.Sprintf("%.2fs", float64(world.Frame())*world.Config().TimeStep)))
	panel.WriteString(field("Bodies", fmt.Sprint(world.BodyCount())))
	panel.WriteString(field("Contacts", fmt.Sprint(profile.Counts.Contacts)))
	panel.WriteString(field("Islands", fmt.Sprint(profile.Counts.Islands)))
	panel.WriteString(field("Step", millis(profile.Timings.Total)))
	panel.WriteString(field("Parallel", fmt.Sprint(m.parallel)))
	panel.WriteString(field("CCD", fmt.Sprint(m.ccd)))
	panel.WriteString(field("Backend", world.BackendName()))
	if len(m.heights) > 1 {
		graph := asciigraph.Plot(m.heights,
			asciigraph.Height(6),
			asciigraph.Width(40),
			asciigraph.Caption("tracked height (m)"),
		)
		panel.WriteString(graphStyle.Render(graph))
	}

	canvas := borderStyle.Border(lipgloss.RoundedBorder()).Render(m.canvas())
	body := lipgloss.JoinHorizontal(lipgloss.Top, canvas, "  ", panel.String())
	help := dimStyle.Render("q quit · space pause · r reset · p parallel · c ccd")
	return body + "\n" + help + "\n"
}

func runLive(cmd *cobra.Command, args []string) error {
	if frameRate < 1 {
		return fmt.Errorf("fps must be positive, got %d", frameRate)
	}
	m, err := newLiveModel(args[0])
	if err != nil {
		return err
	}
	_, err = tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}
