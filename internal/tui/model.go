// Package tui is the terminal front end. It renders one session and picks
// the upload, indexing or chat view from the session snapshot alone.
package tui

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"gwi.com/docqa/internal/core"
	"gwi.com/docqa/internal/params"
)

// SessionPort is the TUI-facing subset of a session.
type SessionPort interface {
	Subscribe() (<-chan core.Snapshot, func())
	Upload(ctx context.Context, name string, data io.Reader) error
	Post(ctx context.Context, ev core.Event) error
	Ask(ctx context.Context, question string) (core.Answer, error)
	UpdateParams(ctx context.Context, p params.Parameters) error
}

type snapshotMsg struct {
	snap core.Snapshot
	ok   bool
}

type droppedFileMsg string

type uploadedMsg struct{ err error }

type answerMsg struct {
	question string
	answer   core.Answer
	err      error
}

type paramsMsg struct {
	params params.Parameters
	err    error
}

type exchange struct {
	question string
	answer   core.Answer
}

// Model is the Bubble Tea model for one session.
type Model struct {
	session SessionPort
	updates <-chan core.Snapshot
	cancel  func()
	dropped <-chan string

	snap       core.Snapshot
	pathInput  textinput.Model
	queryInput textinput.Model
	viewport   viewport.Model
	spinner    spinner.Model

	history    []exchange
	status     string
	asking     bool
	showParams bool
	ready      bool
}

// New subscribes to session. dropped, when not nil, feeds file paths from a watched folder.
func New(session SessionPort, dropped <-chan string) Model {
	updates, cancel := session.Subscribe()

	pi := textinput.New()
	pi.Prompt = "file> "
	pi.Placeholder = "Path to a PDF and press Enter"
	pi.Focus()

	qi := textinput.New()
	qi.Prompt = "> "
	qi.Placeholder = "Ask a question, or /set name=value"
	qi.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return Model{
		session:    session,
		updates:    updates,
		cancel:     cancel,
		dropped:    dropped,
		pathInput:  pi,
		queryInput: qi,
		viewport:   viewport.New(0, 0),
		spinner:    sp,
		snap:       core.Snapshot{View: core.ViewUpload},
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick, waitForSnapshot(m.updates), waitForDrop(m.dropped))
}

func waitForSnapshot(updates <-chan core.Snapshot) tea.Cmd {
	return func() tea.Msg {
		snap, ok := <-updates
		return snapshotMsg{snap: snap, ok: ok}
	}
}

func waitForDrop(dropped <-chan string) tea.Cmd {
	if dropped == nil {
		return nil
	}
	return func() tea.Msg {
		path, ok := <-dropped
		if !ok {
			return nil
		}
		return droppedFileMsg(path)
	}
}

func uploadCmd(s SessionPort, path string) tea.Cmd {
	return func() tea.Msg {
		f, err := os.Open(path)
		if err != nil {
			return uploadedMsg{err: err}
		}
		defer f.Close()

		ctx := context.Background()
		if err := s.Upload(ctx, filepath.Base(path), f); err != nil {
			return uploadedMsg{err: err}
		}
		return uploadedMsg{err: s.Post(ctx, core.IndexRequested{})}
	}
}

func askCmd(s SessionPort, question string) tea.Cmd {
	return func() tea.Msg {
		ans, err := s.Ask(context.Background(), question)
		return answerMsg{question: question, answer: ans, err: err}
	}
}

func paramsCmd(s SessionPort, p params.Parameters) tea.Cmd {
	return func() tea.Msg {
		return paramsMsg{params: p, err: s.UpdateParams(context.Background(), p)}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		m.viewport.Width = max(20, msg.Width-2)
		m.viewport.Height = max(3, msg.Height-8)
		m.pathInput.Width = max(20, msg.Width-10)
		m.queryInput.Width = max(20, msg.Width-6)
		m.viewport.SetContent(m.renderHistory())
		return m, nil

	case snapshotMsg:
		if !msg.ok {
			m.status = "Session closed."
			return m, tea.Quit
		}
		m.snap = msg.snap
		return m, waitForSnapshot(m.updates)

	case droppedFileMsg:
		if m.snap.View != core.ViewUpload {
			return m, nil
		}
		m.status = "Picked up " + filepath.Base(string(msg))
		return m, uploadCmd(m.session, string(msg))

	case uploadedMsg:
		if msg.err != nil {
			m.status = "Upload failed: " + msg.err.Error()
			return m, waitForDrop(m.dropped)
		}
		m.status = ""
		return m, nil

	case answerMsg:
		m.asking = false
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
			return m, nil
		}
		m.status = msg.answer.Notice()
		m.history = append(m.history, exchange{question: msg.question, answer: msg.answer})
		m.viewport.SetContent(m.renderHistory())
		m.viewport.GotoBottom()
		return m, nil

	case paramsMsg:
		if msg.err != nil {
			m.status = "Parameters not changed: " + msg.err.Error()
		} else {
			m.status = "Parameters updated."
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyCtrlD:
			m.cancel()
			return m, tea.Quit
		case tea.KeyCtrlP:
			m.showParams = !m.showParams
			return m, nil
		case tea.KeyEnter:
			return m.submit()
		}
	}

	var cmd tea.Cmd
	switch m.snap.View {
	case core.ViewUpload:
		m.pathInput, cmd = m.pathInput.Update(msg)
	case core.ViewChat:
		m.queryInput, cmd = m.queryInput.Update(msg)
	default:
		m.viewport, cmd = m.viewport.Update(msg)
	}
	return m, cmd
}

func (m Model) submit() (tea.Model, tea.Cmd) {
	switch m.snap.View {
	case core.ViewUpload:
		path := strings.TrimSpace(m.pathInput.Value())
		if path == "" {
			return m, nil
		}
		m.pathInput.Reset()
		m.status = "Uploading " + filepath.Base(path)
		return m, uploadCmd(m.session, path)

	case core.ViewChat:
		text := strings.TrimSpace(m.queryInput.Value())
		if text == "" || m.asking {
			return m, nil
		}
		m.queryInput.Reset()
		if rest, ok := strings.CutPrefix(text, "/set "); ok {
			return m.setParams(rest)
		}
		m.asking = true
		m.status = "Thinking..."
		return m, askCmd(m.session, text)
	}
	return m, nil
}

// setParams parses "name=value name=value" and applies it to the current parameters.
func (m Model) setParams(assignments string) (tea.Model, tea.Cmd) {
	fields := make(map[string]any)
	for _, a := range strings.Fields(assignments) {
		name, value, ok := strings.Cut(a, "=")
		if !ok {
			m.status = fmt.Sprintf("Expected name=value, got %q", a)
			return m, nil
		}
		fields[name] = value
	}
	p, err := params.Apply(m.snap.Params, fields)
	if err == nil {
		err = params.Validate(p)
	}
	if err != nil {
		m.status = "Parameters not changed: " + err.Error()
		return m, nil
	}
	return m, paramsCmd(m.session, p)
}
