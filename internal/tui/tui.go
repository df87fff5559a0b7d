// Package tui provides a Bubble Tea terminal user interface for model-downloader.
//
// The program is the host loop of the download core: every tick it polls
// the notification pipeline, turns finished downloads into popups and
// refreshes the task snapshots it renders. It never blocks on network or
// disk I/O; key presses become actions handed to the router.
package tui

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"

	"github.com/handiism/model-downloader/internal/action"
	"github.com/handiism/model-downloader/internal/download"
	"github.com/handiism/model-downloader/internal/model"
	"github.com/handiism/model-downloader/internal/notify"
)

// TickInterval is how often the host loop polls for notifications.
const TickInterval = 100 * time.Millisecond

// popupLifetime is how long a notification stays on screen.
const popupLifetime = 6 * time.Second

// Catalog lists the files that can be downloaded.
type Catalog interface {
	Files() []model.FileID
	Lookup(id model.FileID) (*model.Model, *model.File, error)
}

// Registry exposes task snapshots to the UI.
type Registry interface {
	Snapshots() []download.Snapshot
	Clear(id model.FileID) error
}

// Dispatcher performs user actions.
type Dispatcher interface {
	Dispatch(a action.Action) error
}

// Poller yields the notifications published since the last poll.
type Poller interface {
	Poll() []notify.Notification
}

// History forgets recorded download attempts.
type History interface {
	Delete(instance uuid.UUID) error
}

// Deps are the collaborators of the UI.
type Deps struct {
	Catalog  Catalog
	Registry Registry
	Router   Dispatcher
	Pipeline Poller
	Logger   *slog.Logger

	// History is optional. When set, clearing a finished download also
	// removes its record.
	History History

	// DownloadsPath is shown in the header.
	DownloadsPath string
}

// popup is a rendered notification.
type popup struct {
	text    string
	failed  bool
	expires time.Time
}

// Model is the Bubble Tea model for the TUI.
type Model struct {
	deps Deps

	files  []model.FileID
	cursor int
	snaps  map[model.FileID]download.Snapshot
	popups []popup
	status string

	prompting bool
	textInput textinput.Model
	spinner   spinner.Model
	progress  progress.Model

	now    func() time.Time
	width  int
	height int
}

// NewModel creates a new TUI model.
func NewModel(deps Deps) Model {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	ti := textinput.New()
	ti.Placeholder = "author/model/file.gguf"
	ti.CharLimit = 500
	ti.Width = 60

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B"))

	prog := progress.New(progress.WithDefaultGradient())
	prog.Width = 30

	return Model{
		deps:      deps,
		files:     deps.Catalog.Files(),
		snaps:     make(map[model.FileID]download.Snapshot),
		textInput: ti,
		spinner:   sp,
		progress:  prog,
		now:       time.Now,
	}
}

// Init initializes the model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, tick())
}

// TickMsg drives the per-tick poll of the notification pipeline.
type TickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(TickInterval, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.progress.Width = msg.Width / 3
		if m.progress.Width > 40 {
			m.progress.Width = 40
		}
		if m.progress.Width < 10 {
			m.progress.Width = 10
		}
		return m, nil

	case tea.KeyMsg:
		if m.prompting {
			return m.updatePrompt(msg)
		}
		return m.updateKeys(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case TickMsg:
		m.poll()
		cmds = append(cmds, tick())
	}

	return m, tea.Batch(cmds...)
}

// poll drains the notification pipeline and refreshes snapshots.
// clear forgets a finished download in the registry and in the history.
func (m *Model) clear(id model.FileID) {
	snap, tracked := m.snaps[id]
	if err := m.deps.Registry.Clear(id); err != nil {
		if !errors.Is(err, download.ErrNotFound) {
			m.status = fmt.Sprintf("cannot clear %s: %v", id, err)
		}
		return
	}
	delete(m.snaps, id)
	if !tracked || m.deps.History == nil {
		return
	}
	if err := m.deps.History.Delete(snap.Instance); err != nil {
		m.deps.Logger.Warn("failed to delete download record", "file", id, "error", err)
		m.status = fmt.Sprintf("cleared %s but its record remains: %v", id, err)
	}
}

func (m *Model) poll() {
	now := m.now()

	for _, n := range m.deps.Pipeline.Poll() {
		switch n := n.(type) {
		case notify.DownloadedFile:
			m.popups = append(m.popups, popup{text: n.String(), expires: now.Add(popupLifetime)})
		case notify.DownloadErrored:
			m.popups = append(m.popups, popup{text: n.String(), failed: true, expires: now.Add(popupLifetime)})
		}
	}

	live := m.popups[:0]
	for _, p := range m.popups {
		if now.Before(p.expires) {
			live = append(live, p)
		}
	}
	m.popups = live

	clear(m.snaps)
	for _, s := range m.deps.Registry.Snapshots() {
		m.snaps[s.ID] = s
	}
}

func (m Model) updateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q", "esc":
		return m, tea.Quit

	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}

	case "down", "j":
		if m.cursor < len(m.files)-1 {
			m.cursor++
		}

	case "enter", "d":
		m.dispatch(func(id model.FileID) action.Action { return action.Download{File: id} })

	case "o":
		m.dispatch(func(id model.FileID) action.Action { return action.Play{File: id} })

	case "r":
		m.dispatch(func(id model.FileID) action.Action { return action.Resume{File: id} })

	case "p":
		m.dispatch(func(id model.FileID) action.Action { return action.Pause{File: id} })

	case "c":
		m.dispatch(func(id model.FileID) action.Action { return action.Cancel{File: id} })

	case "x":
		if id, ok := m.selected(); ok {
			m.clear(id)
		}

	case "g":
		m.prompting = true
		m.textInput.SetValue("")
		return m, m.textInput.Focus()
	}

	return m, nil
}

func (m Model) updatePrompt(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit

	case "esc":
		m.prompting = false
		m.textInput.Blur()
		return m, nil

	case "enter":
		m.prompting = false
		m.textInput.Blur()
		id, err := model.ParseFileID(m.textInput.Value())
		if err != nil {
			m.status = err.Error()
			return m, nil
		}
		m.run(action.Download{File: id})
		return m, nil
	}

	var cmd tea.Cmd
	m.textInput, cmd = m.textInput.Update(msg)
	return m, cmd
}

func (m *Model) selected() (model.FileID, bool) {
	if m.cursor < 0 || m.cursor >= len(m.files) {
		return model.FileID{}, false
	}
	return m.files[m.cursor], true
}

func (m *Model) dispatch(build func(model.FileID) action.Action) {
	if id, ok := m.selected(); ok {
		m.run(build(id))
	}
}

// run dispatches a and reports failures in the status line. Duplicate
// downloads are not worth reporting.
func (m *Model) run(a action.Action) {
	err := m.deps.Router.Dispatch(a)
	switch {
	case err == nil, errors.Is(err, download.ErrAlreadyInProgress):
		m.status = ""
	default:
		m.deps.Logger.Warn("action failed", "action", a, "error", err)
		m.status = fmt.Sprintf("%v: %v", a, err)
	}
}

// Run starts the TUI application and blocks until the user quits.
func Run(deps Deps) error {
	p := tea.NewProgram(NewModel(deps), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
