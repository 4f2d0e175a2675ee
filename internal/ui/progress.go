package ui

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// TransferMode is the side of a transfer the UI shows.
type TransferMode int

const (
	ModeSend TransferMode = iota
	ModeReceive
)

type (
	percentMsg  int
	stateMsg    string
	fileDoneMsg string
	finishMsg   struct{ err error }
)

type fileRow struct {
	name string
	size int64
	done bool
}

// transferModel is the bubbletea model behind TransferUI.
type transferModel struct {
	mode     TransferMode
	peer     string
	files    []fileRow
	total    int64
	percent  int
	state    string
	err      error
	finished bool
	quitting bool
	onCancel func()

	bar     progress.Model
	spinner spinner.Model
	start   time.Time
}

func newTransferModel(mode TransferMode, peer string, names []string, sizes []int64) *transferModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	m := &transferModel{
		mode:    mode,
		peer:    peer,
		files:   make([]fileRow, len(names)),
		state:   "Waiting for the channel to open...",
		spinner: s,
		start:   time.Now(),
		bar: progress.New(
			progress.WithGradient(progressStart, progressEnd),
			progress.WithWidth(40),
			progress.WithoutPercentage(),
		),
	}
	for i := range names {
		m.files[i] = fileRow{name: names[i], size: sizes[i]}
		m.total += sizes[i]
	}
	return m
}

func (m *transferModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m *transferModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			if m.onCancel != nil {
				m.onCancel()
			}
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.bar.Width = max(10, min(40, msg.Width-40))

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case percentMsg:
		if int(msg) > m.percent {
			m.percent = int(msg)
		}
		if m.percent > 0 {
			m.state = "Transferring"
		}
		if m.mode == ModeSend {
			sizes := make([]int64, len(m.files))
			for i, f := range m.files {
				sizes[i] = f.size
			}
			for i := range completedFiles(sizes, m.percent) {
				m.files[i].done = true
			}
		}

	case fileDoneMsg:
		for i := range m.files {
			if !m.files[i].done && m.files[i].name == string(msg) {
				m.files[i].done = true
				break
			}
		}

	case stateMsg:
		m.state = string(msg)

	case finishMsg:
		m.finished = true
		m.err = msg.err
		if msg.err == nil {
			m.percent = 100
			for i := range m.files {
				m.files[i].done = true
			}
		}
		return m, tea.Quit
	}

	return m, nil
}

func (m *transferModel) View() string {
	var b strings.Builder

	icon, verb := IconSend, "Sending to"
	if m.mode == ModeReceive {
		icon, verb = IconReceive, "Receiving from"
	}
	fmt.Fprintf(&b, "\n%s %s %s\n\n", icon, verb, BoldStyle.Render(m.peer))

	switch {
	case m.err != nil:
		fmt.Fprintf(&b, "%s %s\n\n", ErrorStyle.Render(IconError), ErrorStyle.Render(m.err.Error()))
	case m.finished:
		fmt.Fprintf(&b, "%s Done\n\n", SuccessStyle.Render(IconSuccess))
	default:
		fmt.Fprintf(&b, "%s %s\n\n", m.spinner.View(), m.state)
	}

	moved := m.total * int64(m.percent) / 100
	fmt.Fprintf(&b, "%s %3d%% %s %s\n\n",
		m.bar.ViewAs(float64(m.percent)/100),
		m.percent,
		MutedStyle.Render(fmt.Sprintf("(%s/%s)", FormatSize(moved), FormatSize(m.total))),
		MutedStyle.Render(FormatSpeed(speed(moved, time.Since(m.start)))),
	)

	for _, f := range m.files {
		var mark string
		style := lipgloss.NewStyle()
		switch {
		case f.done:
			mark, style = IconSuccess, SuccessStyle
		case m.err != nil:
			mark, style = IconError, MutedStyle
		default:
			mark = "○"
		}
		fmt.Fprintf(&b, "  %s %s %s\n", mark, style.Width(32).Render(Truncate(f.name, 30)), MutedStyle.Render(FormatSize(f.size)))
	}

	if !m.finished && !m.quitting {
		b.WriteString("\n" + MutedStyle.Render("Press q to cancel") + "\n")
	}
	return b.String()
}

// completedFiles returns how many leading files are fully covered by pct of
// the batch.
func completedFiles(sizes []int64, pct int) int {
	var total int64
	for _, s := range sizes {
		total += s
	}
	done := total * int64(pct) / 100
	if pct >= 100 {
		done = total
	}

	var cum int64
	for i, s := range sizes {
		cum += s
		if cum > done {
			return i
		}
	}
	return len(sizes)
}

// TransferUI runs the live transfer view in the terminal.
type TransferUI struct {
	program   *tea.Program
	model     *transferModel
	wg        sync.WaitGroup
	cancelled chan struct{}
	once      sync.Once
}

// NewTransferUI creates the view for one batch.
func NewTransferUI(mode TransferMode, peer string, names []string, sizes []int64, opts ...tea.ProgramOption) *TransferUI {
	ui := &TransferUI{
		model:     newTransferModel(mode, peer, names, sizes),
		cancelled: make(chan struct{}),
	}
	ui.model.onCancel = func() {
		ui.once.Do(func() { close(ui.cancelled) })
	}
	ui.program = tea.NewProgram(ui.model, opts...)
	return ui
}

// Start runs the program in the background.
func (ui *TransferUI) Start() {
	ui.wg.Add(1)
	go func() {
		defer ui.wg.Done()
		if _, err := ui.program.Run(); err != nil {
			PrintErrorf("UI error: %v", err)
		}
	}()
}

// Cancelled is closed when the user asks to abort.
func (ui *TransferUI) Cancelled() <-chan struct{} {
	return ui.cancelled
}

func (ui *TransferUI) SetPercent(pct int) {
	ui.program.Send(percentMsg(pct))
}

func (ui *TransferUI) SetState(state string) {
	ui.program.Send(stateMsg(state))
}

// MarkFile marks a received file as done.
func (ui *TransferUI) MarkFile(name string) {
	ui.program.Send(fileDoneMsg(name))
}

// Finish shows the outcome and waits for the program to exit.
func (ui *TransferUI) Finish(err error) {
	ui.program.Send(finishMsg{err: err})
	ui.wg.Wait()
}
