package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"gwi.com/docqa/internal/core"
	"gwi.com/docqa/internal/params"
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true)
	mutedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	statusStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	questionStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	boxStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	barFull       = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
)

const barWidth = 30

func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	var body string
	switch m.snap.View {
	case core.ViewUpload:
		body = m.uploadView()
	case core.ViewIndexing:
		body = m.indexingView()
	default:
		body = m.chatView()
	}
	if m.showParams {
		body = lipgloss.JoinHorizontal(lipgloss.Top, body, boxStyle.Render(renderParams(m.snap.Params)))
	}

	footer := mutedStyle.Render("ctrl+p parameters · ctrl+c quit")
	if m.status != "" {
		footer = statusStyle.Render(m.status) + "\n" + footer
	}
	return titleStyle.Render("Document QA") + "\n" + body + "\n" + footer
}

func (m Model) uploadView() string {
	return "Load a document to start asking questions.\n" + boxStyle.Render(m.pathInput.View())
}

func (m Model) indexingView() string {
	var b strings.Builder
	fmt.Fprintf(&b, "File: %s\n", m.snap.Filename)
	if m.snap.Stage == core.StageFailed {
		b.WriteString(errorStyle.Render("Indexing failed: "+m.snap.Error) + "\n")
	} else {
		fmt.Fprintf(&b, "%s %s\n", m.spinner.View(), stageLabel(m.snap.Stage))
	}
	b.WriteString(progressBar(m.snap.Progress))
	return b.String()
}

func (m Model) chatView() string {
	header := mutedStyle.Render(fmt.Sprintf("%s · %d chunks", m.snap.Filename, m.snap.Chunks))
	return header + "\n" + boxStyle.Render(m.viewport.View()) + "\n" + boxStyle.Render(m.queryInput.View())
}

func (m Model) renderHistory() string {
	if len(m.history) == 0 {
		return mutedStyle.Render("No questions yet.")
	}
	var b strings.Builder
	for i, ex := range m.history {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(questionStyle.Render("Q: "+ex.question) + "\n")
		b.WriteString(ex.answer.Display() + "\n")
		if ex.answer.OK() && len(ex.answer.Sources) > 0 {
			b.WriteString(mutedStyle.Render(sourcesLine(ex.answer.Sources)) + "\n")
		}
	}
	return b.String()
}

func sourcesLine(sources []core.ScoredChunk) string {
	pages := make([]string, 0, len(sources))
	for _, s := range sources {
		if p, ok := s.Metadata["page"]; ok {
			pages = append(pages, fmt.Sprint(p))
		}
	}
	if len(pages) == 0 {
		return fmt.Sprintf("%d sources", len(sources))
	}
	return "pages " + strings.Join(pages, ", ")
}

func stageLabel(s core.Stage) string {
	switch s {
	case core.StageLoading:
		return "Loading document"
	case core.StageChunking:
		return "Splitting into chunks"
	case core.StageIndexing:
		return "Embedding and storing"
	case core.StageDone:
		return "Done"
	}
	return "Waiting"
}

func progressBar(pct int) string {
	pct = min(max(pct, 0), 100)
	filled := barWidth * pct / 100
	return "[" + barFull.Render(strings.Repeat("█", filled)) + strings.Repeat("░", barWidth-filled) + fmt.Sprintf("] %d%%", pct)
}

func renderParams(p params.Parameters) string {
	rows := [][2]string{
		{"chunk_size", fmt.Sprint(p.ChunkSize)},
		{"chunk_overlap", fmt.Sprintf("%d%%", p.ChunkOverlap)},
		{"model", p.Model},
		{"temperature", fmt.Sprint(p.Temperature)},
		{"top_k", fmt.Sprint(p.TopK)},
		{"top_p", fmt.Sprint(p.TopP)},
		{"repetition_penalty", fmt.Sprint(p.RepetitionPenalty)},
		{"min_new_tokens", fmt.Sprint(p.MinNewTokens)},
		{"max_new_tokens", fmt.Sprint(p.MaxNewTokens)},
		{"chain_type", string(p.ChainType)},
		{"search_type", string(p.SearchType)},
		{"search_k", fmt.Sprint(p.SearchK)},
	}
	var b strings.Builder
	b.WriteString(titleStyle.Render("Parameters") + "\n")
	for _, r := range rows {
		fmt.Fprintf(&b, "%-19s %s\n", r[0], r[1])
	}
	return strings.TrimRight(b.String(), "\n")
}
