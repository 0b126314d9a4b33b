package ui

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/vvka-141/pgbulk/pkg/pgbulk"
)

// Progress shows what a running upsert is doing. It implements
// pgbulk.ProgressReporter, and in styled mode it is also the io.Writer log
// lines should go through so they print above the live status line.
type Progress interface {
	pgbulk.ProgressReporter
	io.Writer

	// Status replaces the activity shown before the upsert starts,
	// e.g. "Connecting to db.internal:5432".
	Status(msg string)

	// Stop removes the live status line. It is safe to call more than once.
	Stop()
}

// NewProgress returns a live spinner in ModeStyled and a silent reporter
// writing straight to out in ModePlain.
func NewProgress(mode Mode, out io.Writer, table, source string) Progress {
	if mode != ModeStyled {
		return plainProgress{out: out}
	}
	return startLiveProgress(out, table, source)
}

type plainProgress struct {
	out io.Writer
}

func (plainProgress) PhaseEntered(string, pgbulk.Phase) {}
func (plainProgress) RowsStaged(string, int64)          {}
func (plainProgress) Status(string)                     {}
func (plainProgress) Stop()                             {}

func (p plainProgress) Write(b []byte) (int, error) {
	return p.out.Write(b)
}

type liveProgress struct {
	program *tea.Program
	out     io.Writer
	rows    *atomic.Int64
	done    chan struct{}

	mu      sync.Mutex
	stopped bool
}

func startLiveProgress(out io.Writer, table, source string) *liveProgress {
	rows := new(atomic.Int64)
	p := &liveProgress{
		program: tea.NewProgram(newProgressModel(table, source, rows),
			tea.WithOutput(out),
			tea.WithInput(nil),
			tea.WithoutSignalHandler(),
		),
		out:  out,
		rows: rows,
		done: make(chan struct{}),
	}
	go func() {
		defer close(p.done)
		_, _ = p.program.Run()
	}()
	return p
}

func (p *liveProgress) PhaseEntered(_ string, phase pgbulk.Phase) {
	p.program.Send(phaseMsg(phase))
}

// RowsStaged runs once per row, so it only stores the count; the view reads
// it on the next spinner tick.
func (p *liveProgress) RowsStaged(_ string, n int64) {
	p.rows.Store(n)
}

func (p *liveProgress) Status(msg string) {
	p.program.Send(statusMsg(msg))
}

// Write prints above the status line while the program runs. Println blocks
// until the event loop takes the line, so once stopped lines go straight to out.
func (p *liveProgress) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped || p.exited() {
		return p.out.Write(b)
	}
	p.program.Println(strings.TrimRight(string(b), "\n"))
	return len(b), nil
}

func (p *liveProgress) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	p.mu.Unlock()

	p.program.Send(stopMsg{})
	<-p.done
}

func (p *liveProgress) exited() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

type (
	phaseMsg  pgbulk.Phase
	statusMsg string
	stopMsg   struct{}
)

type progressModel struct {
	spinner spinner.Model
	table   string
	source  string
	status  string
	phase   pgbulk.Phase
	rows    *atomic.Int64
	start   time.Time
	stopped bool
}

func newProgressModel(table, source string, rows *atomic.Int64) progressModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(colorPrimary)

	return progressModel{
		spinner: s,
		table:   table,
		source:  source,
		status:  "Starting",
		phase:   pgbulk.PhaseIdle,
		rows:    rows,
		start:   time.Now(),
	}
}

func (m progressModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case phaseMsg:
		m.phase = pgbulk.Phase(msg)
		return m, nil
	case statusMsg:
		m.status = string(msg)
		return m, nil
	case stopMsg:
		m.stopped = true
		return m, tea.Quit
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m progressModel) View() string {
	if m.stopped {
		return ""
	}
	elapsed := time.Since(m.start).Round(time.Second)
	return fmt.Sprintf("%s %s %s\n",
		m.spinner.View(),
		m.activity(),
		mutedStyle.Render(elapsed.String()))
}

// activity describes the work in progress during the current phase.
func (m progressModel) activity() string {
	switch m.phase {
	case pgbulk.PhaseIdle:
		return m.status
	case pgbulk.PhaseTransactionOpen:
		return fmt.Sprintf("Staging %s: %d rows from %s", m.table, m.rows.Load(), m.source)
	case pgbulk.PhaseStaged:
		return fmt.Sprintf("Merging %d rows into %s", m.rows.Load(), m.table)
	case pgbulk.PhaseMerged:
		return fmt.Sprintf("Committing %s", m.table)
	case pgbulk.PhaseCommitted:
		return successStyle.Render(symbolCheck + " Committed " + m.table)
	default:
		return errorStyle.Render(symbolCross + " Aborted " + m.table)
	}
}
