package main

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	"github.com/jwebster45206/vignette/internal/game"
	"github.com/jwebster45206/vignette/pkg/queue"
)

const (
	AgentName       = "Vignette"
	PlaceHolderText = "Type /start <description>, or reply to the scene..."
	consoleChatID   = int64(-1)
)

// sceneSource reads the active scene for the meta panel and reply anchoring.
type sceneSource interface {
	Scene(chatID int64) (game.SceneView, bool)
}

type enqueuer interface {
	Enqueue(req *queue.Request) error
}

// ConsoleUI is the BubbleTea model that runs the UI.
// https://github.com/charmbracelet/bubbletea
type ConsoleUI struct {
	chat     *localChat
	scenes   sceneSource
	requests enqueuer

	chatViewport viewport.Model
	metaViewport viewport.Model
	textarea     textarea.Model
	ready        bool
	width        int
	height       int

	entries   []entry
	reactions map[int]string
	players   map[string]int64
	player    string
	notice    string
	typing    bool

	showQuitModal bool
	progressTick  int
}

type progressTickMsg struct{}

var (
	chatPanelStyle = lipgloss.NewStyle().
			PaddingTop(2).
			PaddingBottom(1).
			PaddingLeft(3).
			PaddingRight(0)

	metaPanelStyle = lipgloss.NewStyle().
			PaddingTop(2).
			PaddingBottom(0).
			PaddingLeft(0).
			PaddingRight(2)

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")). // pink
			Bold(true)

	speakerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("212")). // purple
			Bold(true)

	narratorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("86")) // green

	userStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")) // teal

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")) // red

	imageStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")). // yellow
			Underline(true)

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")) // dark grey

	modalStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(1, 2).
			Background(lipgloss.Color("235")).
			Foreground(lipgloss.Color("255"))

	modalTitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true).
			Align(lipgloss.Center)

	separatorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")) // dark grey
)

func NewConsoleUI(chat *localChat, scenes sceneSource, requests enqueuer, player string) ConsoleUI {
	ta := textarea.New()
	ta.Placeholder = PlaceHolderText
	ta.Focus()
	ta.Prompt = promptStyle.Render(":: ")
	ta.CharLimit = 1000
	ta.SetWidth(50)
	ta.SetHeight(3)
	ta.ShowLineNumbers = false

	chatVp := viewport.New(50, 20)
	chatVp.MouseWheelEnabled = true

	metaVp := viewport.New(20, 20)

	return ConsoleUI{
		chat:         chat,
		scenes:       scenes,
		requests:     requests,
		textarea:     ta,
		chatViewport: chatVp,
		metaViewport: metaVp,
		reactions:    make(map[int]string),
		players:      map[string]int64{player: 1},
		player:       player,
	}
}

func (m ConsoleUI) Init() tea.Cmd {
	return textarea.Blink
}

func (m ConsoleUI) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.showQuitModal {
		return m.updateQuitModal(msg)
	}

	var (
		tiCmd tea.Cmd
		vpCmd tea.Cmd
		mvCmd tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.MouseMsg:
		m.chatViewport, vpCmd = m.chatViewport.Update(msg)
		m.metaViewport, mvCmd = m.metaViewport.Update(msg)
		return m, tea.Batch(vpCmd, mvCmd)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		chatWidth := int(float64(m.width)*0.75) - 4
		metaWidth := m.width - chatWidth - 6

		m.chatViewport.Width = chatWidth - 2
		m.chatViewport.Height = m.height - 7
		m.metaViewport.Width = metaWidth - 2
		m.metaViewport.Height = m.height - 4
		m.textarea.SetWidth(chatWidth - 4)
		m.ready = true
		m.refresh()

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.showQuitModal = true
			return m, nil
		case tea.KeyCtrlY:
			m.copyLatestNarration()
			m.refresh()
			return m, nil
		case tea.KeyEnter:
			input := strings.TrimSpace(m.textarea.Value())
			m.textarea.Reset()
			if input == "" {
				return m, nil
			}
			cmd := m.submit(input)
			m.refresh()
			return m, cmd
		}

	case entryMsg:
		m.entries = append(m.entries, msg.entry)
		if msg.entry.FromBot {
			m.typing = false
		}
		m.refresh()
		return m, nil

	case reactionMsg:
		m.reactions[msg.MessageID] = msg.Emoji
		m.refresh()
		return m, nil

	case typingMsg:
		if !m.typing {
			m.typing = true
			m.progressTick = 0
			m.refresh()
			return m, progressTick()
		}
		return m, nil

	case progressTickMsg:
		if m.typing {
			m.progressTick++
			m.refresh()
			return m, progressTick()
		}
	}

	m.textarea, tiCmd = m.textarea.Update(msg)
	m.chatViewport, vpCmd = m.chatViewport.Update(msg)
	m.metaViewport, mvCmd = m.metaViewport.Update(msg)

	return m, tea.Batch(tiCmd, vpCmd, mvCmd)
}

// submit turns one line of input into a game request, or handles it locally.
func (m *ConsoleUI) submit(input string) tea.Cmd {
	m.notice = ""

	if name, ok := strings.CutPrefix(input, "/as "); ok {
		name = strings.TrimSpace(name)
		if name == "" {
			m.notice = "Usage: /as <name>"
			return nil
		}
		if _, known := m.players[name]; !known {
			m.players[name] = int64(len(m.players) + 1)
		}
		m.player = name
		return nil
	}

	t, text, ok := parseInput(input)
	if !ok {
		m.notice = fmt.Sprintf("Unknown command %q", strings.Fields(input)[0])
		return nil
	}

	replyTo := 0
	if t == queue.RequestTypeReply {
		if scene, active := m.scenes.Scene(consoleChatID); active {
			replyTo = scene.MessageID
		}
	}

	posted := m.chat.post(m.player, input, replyTo)
	m.entries = append(m.entries, posted)

	req := queue.NewRequest(t, consoleChatID, posted.ID)
	req.ReplyToID = replyTo
	req.UserID = m.players[m.player]
	req.UserName = m.player
	req.Text = text

	if err := m.requests.Enqueue(req); err != nil {
		m.notice = "Request rejected: " + err.Error()
	}
	return nil
}

// parseInput maps console input onto the chat commands. Anything that is not a
// command is a reply to the active scene.
func parseInput(input string) (queue.RequestType, string, bool) {
	if !strings.HasPrefix(input, "/") {
		return queue.RequestTypeReply, input, true
	}

	cmd, args, _ := strings.Cut(input, " ")
	switch strings.ToLower(cmd) {
	case "/help":
		return queue.RequestTypeHelp, "", true
	case "/start":
		return queue.RequestTypeStart, strings.TrimSpace(args), true
	case "/end":
		return queue.RequestTypeEnd, "", true
	case "/reset":
		return queue.RequestTypeReset, "", true
	}
	return "", "", false
}

func (m *ConsoleUI) copyLatestNarration() {
	for i := len(m.entries) - 1; i >= 0; i-- {
		if e := m.entries[i]; e.FromBot && e.Text != "" {
			if err := clipboard.WriteAll(e.Text); err != nil {
				m.notice = "Copy failed: " + err.Error()
				return
			}
			m.notice = "Copied the latest narration to the clipboard."
			return
		}
	}
	m.notice = "Nothing to copy yet."
}

func (m *ConsoleUI) refresh() {
	if !m.ready {
		return
	}
	m.chatViewport.SetContent(m.renderTranscript())
	m.chatViewport.GotoBottom()
	m.metaViewport.SetContent(m.renderMetadata())
}

func (m ConsoleUI) renderTranscript() string {
	chatWidth := m.chatViewport.Width - 6
	if chatWidth < 20 {
		chatWidth = 20
	}

	var content strings.Builder
	content.WriteString(titleStyle.Render("VIGNETTE") + "\n\n")
	content.WriteString("A shared scene for everyone at the table. /help lists the commands.\n\n")
	content.WriteString(separatorStyle.Render(strings.Repeat("─", chatWidth-6)) + "\n\n")

	for _, e := range m.entries {
		if e.FromBot {
			content.WriteString(formatNarratorResponse(e, chatWidth))
		} else {
			line := userStyle.Render(e.Author+": ") + wordwrap.String(e.Text, chatWidth-len(e.Author)-2)
			if emoji, ok := m.reactions[e.ID]; ok {
				line += " " + emoji
			}
			content.WriteString(line)
		}
		content.WriteString("\n\n")
	}

	if m.typing {
		content.WriteString(m.renderProgressBar() + "\n")
	}
	if m.notice != "" {
		content.WriteString(errorStyle.Render(m.notice) + "\n")
	}
	return content.String()
}

func formatNarratorResponse(e entry, width int) string {
	prefix := AgentName + ": "
	var out strings.Builder
	out.WriteString(narratorStyle.Render(prefix))
	if e.ImageURL != "" {
		out.WriteString(imageStyle.Render("[image] "+e.ImageURL) + "\n")
	}

	for i, line := range strings.Split(wordwrap.String(e.Text, width-len(prefix)), "\n") {
		if i > 0 {
			out.WriteString("\n")
		}
		trimmed := strings.TrimSpace(line)
		if idx := strings.Index(trimmed, ":"); idx > 0 && idx <= 20 && len(strings.Fields(trimmed[:idx])) <= 2 {
			out.WriteString(speakerStyle.Render(trimmed[:idx+1]) + trimmed[idx+1:])
			continue
		}
		out.WriteString(line)
	}
	return out.String()
}

func (m ConsoleUI) renderMetadata() string {
	var content strings.Builder
	content.WriteString(titleStyle.Render("TABLE") + "\n\n")

	content.WriteString("Playing as:\n")
	content.WriteString(m.player + "\n\n")

	content.WriteString("Players:\n")
	for _, name := range slices.Sorted(maps.Keys(m.players)) {
		content.WriteString("• " + name + "\n")
	}
	content.WriteString("\n")

	scene, active := m.scenes.Scene(consoleChatID)
	if !active {
		content.WriteString("Scene:\nNone active\n")
	} else {
		content.WriteString(fmt.Sprintf("Scene #%d:\n", scene.MessageID))
		content.WriteString(fmt.Sprintf("%d action(s)\n", len(scene.Actions)))
		for _, a := range scene.Actions {
			status := "resolved"
			if a.Pending() {
				status = "pending"
			}
			content.WriteString(fmt.Sprintf("• %s (%s)\n", a.Name, status))
		}
	}

	content.WriteString("\n")
	content.WriteString("Commands:\n")
	content.WriteString("• /start <text>\n")
	content.WriteString("• /end, /reset, /help\n")
	content.WriteString("• /as <name>: switch player\n")
	content.WriteString("• Ctrl+Y: copy narration\n")
	content.WriteString("• Ctrl+C: Quit\n")

	return content.String()
}

func (m ConsoleUI) updateQuitModal(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case entryMsg, reactionMsg, typingMsg:
		// keep the transcript current behind the modal
		m.showQuitModal = false
		next, _ := m.Update(msg)
		updated := next.(ConsoleUI)
		updated.showQuitModal = true
		return updated, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc, tea.KeyEnter:
			return m, tea.Quit
		default:
			switch msg.String() {
			case "y", "Y":
				return m, tea.Quit
			case "n", "N":
				m.showQuitModal = false
				m.textarea.Focus()
				return m, textarea.Blink
			}
		}
	}

	return m, nil
}

func (m ConsoleUI) renderQuitModal() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	var content strings.Builder
	content.WriteString(modalTitleStyle.Render("Leave the table?"))
	content.WriteString("\n\n")
	content.WriteString("The active scene is kept only in memory and will be lost.")
	content.WriteString("\n\n")
	content.WriteString(promptStyle.Render("Press Y to quit, N to continue, or Ctrl+C to force quit"))

	modal := modalStyle.Width(50).Render(content.String())
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, modal, lipgloss.WithWhitespaceChars(" "))
}

func (m ConsoleUI) View() string {
	if m.showQuitModal {
		return m.renderQuitModal()
	}

	if !m.ready {
		return "\n  Initializing..."
	}

	chatWidth := int(float64(m.width)*0.75) - 4
	metaWidth := m.width - chatWidth - 6

	chatPanel := chatPanelStyle.Width(chatWidth).Height(m.height - 3).Render(
		lipgloss.JoinVertical(lipgloss.Left,
			m.chatViewport.View(),
			"",
			separatorStyle.Render(strings.Repeat("─", chatWidth-4)),
			m.textarea.View(),
		),
	)

	metaPanel := metaPanelStyle.Width(metaWidth).Height(m.height - 2).Render(
		m.metaViewport.View(),
	)

	return lipgloss.JoinHorizontal(lipgloss.Top, chatPanel, metaPanel)
}

// renderProgressBar animates while the storyteller is working
func (m ConsoleUI) renderProgressBar() string {
	usable := m.chatViewport.Width - 6
	if usable > 80 {
		usable = 80
	} else if usable < 10 {
		usable = 10
	}

	const totalFrames = 40
	frame := m.progressTick % totalFrames
	filled := (frame * usable) / totalFrames

	var bar strings.Builder
	for i := 0; i < usable; i++ {
		if i < filled {
			bar.WriteString("█")
		} else if i == filled && frame%4 < 2 {
			bar.WriteString("▓")
		} else {
			bar.WriteString("░")
		}
	}
	return separatorStyle.Render(bar.String())
}

func progressTick() tea.Cmd {
	return tea.Tick(time.Millisecond*200, func(time.Time) tea.Msg {
		return progressTickMsg{}
	})
}
