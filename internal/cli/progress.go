// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/crewplan/internal/pipeline"
)

// =============================================================================
// PROGRESS REPORTER
// =============================================================================

// progressReporter shows stage progress while a pipeline runs.
type progressReporter interface {
	// Update receives runner progress events.
	Update(stage, total int, role string, phase pipeline.Phase)
	// Stop ends the display. It is safe to call more than once.
	Stop()
}

// newProgressReporter picks the spinner for interactive stderr, plain
// lines when the spinner is disabled, and nothing in JSON mode.
func newProgressReporter(w io.Writer, args Args, interactive bool) progressReporter {
	switch {
	case args.JSON:
		return nopProgress{}
	case args.NoSpinner || !interactive:
		return &lineProgress{w: w}
	default:
		return startSpinner(w)
	}
}

// lazyProgress starts its reporter on the first event, so a run rejected
// before its first stage never draws anything.
type lazyProgress struct {
	mu    sync.Mutex
	start func() progressReporter
	rep   progressReporter
}

func newLazyProgress(start func() progressReporter) *lazyProgress {
	return &lazyProgress{start: start}
}

func (p *lazyProgress) Update(stage, total int, role string, phase pipeline.Phase) {
	p.mu.Lock()
	if p.rep == nil {
		p.rep = p.start()
	}
	rep := p.rep
	p.mu.Unlock()
	rep.Update(stage, total, role, phase)
}

func (p *lazyProgress) Stop() {
	p.mu.Lock()
	rep := p.rep
	p.mu.Unlock()
	if rep != nil {
		rep.Stop()
	}
}

type nopProgress struct{}

func (nopProgress) Update(int, int, string, pipeline.Phase) {}
func (nopProgress) Stop()                                   {}

// lineProgress prints one line per stage transition.
type lineProgress struct {
	mu sync.Mutex
	w  io.Writer
}

func (p *lineProgress) Update(stage, total int, role string, phase pipeline.Phase) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, "[%d/%d] %s %s\n", stage, total, role, phase)
}

func (p *lineProgress) Stop() {}

// =============================================================================
// SPINNER (BUBBLETEA)
// =============================================================================

type stageMsg struct {
	stage, total int
	role         string
	phase        pipeline.Phase
}

type progressModel struct {
	spinner spinner.Model
	stage   stageMsg
	started time.Time
	done    []string
}

func newProgressModel() progressModel {
	s := spinner.New()
	s.Spinner = spinner.Spinner{
		Frames: []string{"|", "/", "-", "\\"},
		FPS:    time.Second / 10,
	}
	s.Style = PromptStyle
	return progressModel{spinner: s, started: time.Now()}
}

func (m progressModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case stageMsg:
		if msg.phase == pipeline.PhaseCompleted {
			m.done = append(m.done, fmt.Sprintf("%s %s", RenderConditional(SuccessStyle, "[OK]"), msg.role))
		}
		m.stage = msg
		return m, nil
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m progressModel) View() string {
	var out string
	for _, line := range m.done {
		out += line + "\n"
	}
	if m.stage.total == 0 {
		return out + m.spinner.View() + " Starting...\n"
	}
	if m.stage.phase == pipeline.PhaseCompleted && m.stage.stage == m.stage.total {
		return out
	}
	verb := "Working"
	if m.stage.phase == pipeline.PhaseRetrying {
		verb = "Retrying"
	}
	return out + fmt.Sprintf("%s %s: %s (stage %d/%d, %s)\n",
		m.spinner.View(), verb, m.stage.role, m.stage.stage, m.stage.total,
		RenderConditional(DimStyle, time.Since(m.started).Round(time.Second).String()))
}

// spinnerProgress drives a bubbletea program on w.
type spinnerProgress struct {
	program *tea.Program
	done    chan struct{}
	once    sync.Once
}

func startSpinner(w io.Writer) *spinnerProgress {
	sp := &spinnerProgress{
		// No input: Ctrl+C reaches the signal context that cancels the run.
		program: tea.NewProgram(newProgressModel(), tea.WithOutput(w), tea.WithInput(nil)),
		done:    make(chan struct{}),
	}
	go func() {
		defer close(sp.done)
		if _, err := sp.program.Run(); err != nil {
			log.Printf("progress: spinner stopped: %v", err)
		}
	}()
	return sp
}

func (sp *spinnerProgress) Update(stage, total int, role string, phase pipeline.Phase) {
	sp.program.Send(stageMsg{stage: stage, total: total, role: role, phase: phase})
}

func (sp *spinnerProgress) Stop() {
	sp.once.Do(func() {
		sp.program.Quit()
		<-sp.done
	})
}
