package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/okkerse/fieldlink/internal/agent"
	"github.com/okkerse/fieldlink/internal/persist"
	"github.com/okkerse/fieldlink/internal/radio"
	"github.com/okkerse/fieldlink/internal/signal"
	"github.com/okkerse/fieldlink/internal/unitcfg"
	"github.com/okkerse/fieldlink/internal/version"
	"github.com/okkerse/fieldlink/internal/wifi"
)

// refreshInterval is how often the dashboard polls the managers. The
// managers publish state through flag groups, not through the TUI, so
// the dashboard samples rather than subscribes.
const refreshInterval = 250 * time.Millisecond

// maxEvents bounds the transition log kept in memory.
const maxEvents = 64

// visibleEvents is how many log lines the dashboard shows.
const visibleEvents = 8

// tickMsg drives the periodic state refresh.
type tickMsg time.Time

// inputStage tracks the add-network entry flow.
type inputStage int

const (
	stageNone inputStage = iota
	stageSSID
	stagePassword
)

// dashboardKeyMap defines key bindings for the dashboard
type dashboardKeyMap struct {
	Station key.Binding
	Access  key.Binding
	Both    key.Binding
	Off     key.Binding
	Write   key.Binding
	Reload  key.Binding
	AddNet  key.Binding
	Drop    key.Binding
	Reboot  key.Binding
	Quit    key.Binding
}

// ShortHelp returns the condensed help line shown under the dashboard
func (k dashboardKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Station, k.Access, k.Off, k.AddNet, k.Quit}
}

// FullHelp returns the expanded help grid
func (k dashboardKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Station, k.Access, k.Both, k.Off},
		{k.Write, k.Reload, k.AddNet, k.Drop},
		{k.Reboot, k.Quit},
	}
}

func newDashboardKeyMap(withDrop bool) dashboardKeyMap {
	keys := dashboardKeyMap{
		Station: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "station"),
		),
		Access: key.NewBinding(
			key.WithKeys("a"),
			key.WithHelp("a", "access point"),
		),
		Both: key.NewBinding(
			key.WithKeys("b"),
			key.WithHelp("b", "ap+sta"),
		),
		Off: key.NewBinding(
			key.WithKeys("o"),
			key.WithHelp("o", "radio off"),
		),
		Write: key.NewBinding(
			key.WithKeys("w"),
			key.WithHelp("w", "save config"),
		),
		Reload: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "reload config"),
		),
		AddNet: key.NewBinding(
			key.WithKeys("n"),
			key.WithHelp("n", "add network"),
		),
		Drop: key.NewBinding(
			key.WithKeys("d"),
			key.WithHelp("d", "drop link"),
		),
		Reboot: key.NewBinding(
			key.WithKeys("R"),
			key.WithHelp("R", "reboot"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
	if !withDrop {
		keys.Drop.SetEnabled(false)
	}
	return keys
}

// event is one line of the transition log.
type event struct {
	at   time.Time
	text string
}

// Dashboard is an interactive status panel for a running agent. It polls
// the managers a few times a second, logs every observed transition, and
// maps keys onto the same state requests the firmware surfaces expose.
type Dashboard struct {
	agent *agent.Agent
	sim   *radio.Sim // nil when the radio is not a simulator

	keys  dashboardKeyMap
	help  help.Model
	input textinput.Model

	width  int
	height int

	stage       inputStage
	pendingSSID string
	notice      string

	events []event

	// Last sampled state, for transition detection between ticks.
	lastWifi    signal.Flags
	lastPersist signal.Flags
	lastLink    bool
}

// NewDashboard builds a dashboard for the given agent. The sim is
// optional; when present it enables the link-drop key so operators can
// exercise the retry and failover paths by hand.
func NewDashboard(a *agent.Agent, sim *radio.Sim) Dashboard {
	input := textinput.New()
	input.CharLimit = unitcfg.MaxPasswordLen
	input.Width = 40

	h := help.New()

	return Dashboard{
		agent:       a,
		sim:         sim,
		keys:        newDashboardKeyMap(sim != nil),
		help:        h,
		input:       input,
		lastWifi:    a.Wifi().State(),
		lastPersist: a.Persist().State(),
		lastLink:    a.Store().Connected(),
	}
}

// Init schedules the first refresh tick
func (m Dashboard) Init() tea.Cmd {
	return scheduleTick()
}

// scheduleTick returns a tea.Cmd that sends a tickMsg after the refresh
// interval.
func scheduleTick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update handles messages and updates the model
func (m Dashboard) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil

	case tickMsg:
		m.observeTransitions()
		return m, scheduleTick()

	case tea.KeyMsg:
		if m.stage != stageNone {
			return m.updateInput(msg)
		}
		return m.updateKeys(msg)
	}

	return m, nil
}

// updateKeys handles input in normal mode (no text entry in progress)
func (m Dashboard) updateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Station):
		m.request(wifi.RequestSTA)

	case key.Matches(msg, m.keys.Access):
		m.request(wifi.RequestAP)

	case key.Matches(msg, m.keys.Both):
		m.request(wifi.RequestAPSTA)

	case key.Matches(msg, m.keys.Off):
		m.request(wifi.RequestNone)

	case key.Matches(msg, m.keys.Write):
		if err := m.agent.Persist().RequestState(persist.RequestWrite); err != nil {
			m.notice = err.Error()
		} else {
			m.notice = "write requested"
		}

	case key.Matches(msg, m.keys.Reload):
		if err := m.agent.Persist().RequestState(persist.RequestRead); err != nil {
			m.notice = err.Error()
		} else {
			m.notice = "reload requested"
		}

	case key.Matches(msg, m.keys.AddNet):
		m.stage = stageSSID
		m.notice = ""
		m.input.Placeholder = "network name"
		m.input.EchoMode = textinput.EchoNormal
		m.input.CharLimit = unitcfg.MaxSSIDLen
		m.input.SetValue("")
		m.input.Focus()
		return m, textinput.Blink

	case key.Matches(msg, m.keys.Drop):
		if m.sim == nil {
			break
		}
		if m.sim.DropLink(radio.ReasonBeaconTimeout) {
			m.notice = "link dropped"
		} else {
			m.notice = "no station link to drop"
		}

	case key.Matches(msg, m.keys.Reboot):
		m.agent.RequestReboot()
		return m, tea.Quit
	}

	return m, nil
}

// updateInput handles the two-step SSID/password entry flow
func (m Dashboard) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.stage = stageNone
		m.pendingSSID = ""
		m.input.Blur()
		m.notice = "cancelled"
		return m, nil

	case "enter":
		value := strings.TrimSpace(m.input.Value())
		switch m.stage {
		case stageSSID:
			if err := unitcfg.ValidateSSID(value); err != nil {
				m.notice = err.Error()
				return m, nil
			}
			m.pendingSSID = value
			m.stage = stagePassword
			m.input.Placeholder = "password (blank for open network)"
			m.input.EchoMode = textinput.EchoPassword
			m.input.EchoCharacter = '•'
			m.input.CharLimit = unitcfg.MaxPasswordLen
			m.input.SetValue("")
			return m, nil

		case stagePassword:
			net := unitcfg.Network{SSID: m.pendingSSID, Password: m.input.Value()}
			m.stage = stageNone
			m.pendingSSID = ""
			m.input.Blur()
			m.addNetwork(net)
			return m, nil
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// request forwards a connectivity request and records the outcome
func (m *Dashboard) request(req signal.Flags) {
	if err := m.agent.Wifi().RequestState(req); err != nil {
		m.notice = err.Error()
		return
	}
	m.notice = wifi.RequestName(req) + " requested"
}

// addNetwork stores the credentials and asks for a flash write so the
// network survives a reboot.
func (m *Dashboard) addNetwork(net unitcfg.Network) {
	if err := unitcfg.ValidateNetwork(net); err != nil {
		m.notice = err.Error()
		return
	}

	cfg := m.agent.Store().Acquire()
	if i := cfg.FindNetwork(net.SSID); i >= 0 {
		cfg.Connectivity.Networks[i] = net
	} else if len(cfg.Connectivity.Networks) >= unitcfg.MaxNetworks {
		m.agent.Store().Release()
		m.notice = fmt.Sprintf("network list full (max %d)", unitcfg.MaxNetworks)
		return
	} else {
		cfg.Connectivity.Networks = append(cfg.Connectivity.Networks, net)
	}
	m.agent.Store().Release()

	if err := m.agent.Persist().RequestState(persist.RequestWrite); err != nil {
		m.notice = fmt.Sprintf("added %q, save failed: %v", net.SSID, err)
		return
	}
	m.notice = fmt.Sprintf("added %q, saving", net.SSID)
}

// observeTransitions samples the managers and appends a log line for
// every change since the previous tick.
func (m *Dashboard) observeTransitions() {
	now := time.Now()

	wifiState := m.agent.Wifi().State()
	if wifiState != m.lastWifi {
		m.logEvent(now, fmt.Sprintf("wifi %s → %s", wifi.StateName(m.lastWifi), wifi.StateName(wifiState)))
		m.lastWifi = wifiState
	}

	persistState := m.agent.Persist().State()
	if persistState != m.lastPersist {
		m.logEvent(now, fmt.Sprintf("persist %s → %s", persist.StateName(m.lastPersist), persist.StateName(persistState)))
		m.lastPersist = persistState
	}

	link := m.agent.Store().Connected()
	if link != m.lastLink {
		if link {
			m.logEvent(now, "station link up")
		} else {
			m.logEvent(now, "station link down")
		}
		m.lastLink = link
	}
}

func (m *Dashboard) logEvent(at time.Time, text string) {
	m.events = append(m.events, event{at: at, text: text})
	if len(m.events) > maxEvents {
		m.events = m.events[len(m.events)-maxEvents:]
	}
}

// View renders the dashboard
func (m Dashboard) View() string {
	sections := []string{
		m.renderHeader(),
		"",
		m.renderStatus(),
		"",
		m.renderConfig(),
		"",
		m.renderEvents(),
	}

	if m.stage != stageNone {
		prompt := "Network name:"
		if m.stage == stagePassword {
			prompt = fmt.Sprintf("Password for %q:", m.pendingSSID)
		}
		sections = append(sections, "", PromptStyle.Render(prompt)+" "+m.input.View())
	} else if m.notice != "" {
		sections = append(sections, "", NoticeStyle.Render(m.notice))
	}

	sections = append(sections, HelpStyle.Render(m.help.View(m.keys)))

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Dashboard) renderHeader() string {
	cfg := m.agent.Store().Snapshot()

	name := cfg.User.UnitName
	if name == "" {
		name = "unnamed unit"
	}

	meta := fmt.Sprintf("fieldlink %s", version.Full())
	if ann := m.agent.Announcer(); ann != nil {
		meta += " • boot " + ann.BootID()[:8]
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		"",
		HeaderTitleStyle.Render(strings.ToUpper(name)),
		HeaderMetaStyle.Render(meta),
	)
}

func (m Dashboard) renderStatus() string {
	wifiState := m.agent.Wifi().State()
	persistState := m.agent.Persist().State()
	link := m.agent.Store().Connected()

	linkMarker := LinkOffMarker + " no address"
	linkStyle := StateDownStyle
	if link {
		linkMarker = LinkUpMarker + " address acquired"
		linkStyle = StateUpStyle
	}

	lines := []string{
		SectionTitleStyle.Render("CONNECTIVITY"),
		FieldKeyStyle.Render("State:") + " " + wifiStateStyle(wifiState).Render(wifi.StateName(wifiState)),
		FieldKeyStyle.Render("Link:") + " " + linkStyle.Render(linkMarker),
		"",
		SectionTitleStyle.Render("PERSISTENCE"),
		FieldKeyStyle.Render("State:") + " " + persistStateStyle(persistState).Render(persist.StateName(persistState)),
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func (m Dashboard) renderConfig() string {
	cfg := m.agent.Store().Snapshot()

	networks := "none configured"
	if n := len(cfg.Connectivity.Networks); n > 0 {
		names := make([]string, n)
		for i, net := range cfg.Connectivity.Networks {
			names[i] = net.SSID
		}
		networks = strings.Join(names, ", ")
	}

	lines := []string{
		SectionTitleStyle.Render("CONFIGURATION"),
		FieldKeyStyle.Render("Networks:") + " " + FieldValueStyle.Render(networks),
		FieldKeyStyle.Render("OTA:") + " " + FieldValueStyle.Render(cfg.Connectivity.OTAURL),
		FieldKeyStyle.Render("Versions:") + " " + FieldValueStyle.Render(cfg.Connectivity.VersionURL),
		FieldKeyStyle.Render("Log level:") + " " + FieldValueStyle.Render(cfg.System.LogLevel.String()),
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func (m Dashboard) renderEvents() string {
	lines := []string{SectionTitleStyle.Render("EVENTS")}

	if len(m.events) == 0 {
		lines = append(lines, EventTimeStyle.Render("(no transitions yet)"))
		return lipgloss.JoinVertical(lipgloss.Left, lines...)
	}

	start := 0
	if len(m.events) > visibleEvents {
		start = len(m.events) - visibleEvents
	}
	for _, ev := range m.events[start:] {
		stamp := EventTimeStyle.Render(ev.at.Format("15:04:05"))
		lines = append(lines, stamp+"  "+EventTextStyle.Render(ev.text))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

// wifiStateStyle picks a color for the connectivity state: green when
// the unit is reachable, orange while a station is still associating,
// gray when the radio is down.
func wifiStateStyle(state signal.Flags) lipgloss.Style {
	switch {
	case state.Has(wifi.StateSTAGotIP | wifi.StateAP | wifi.StateAPSTA):
		return StateUpStyle
	case state.Has(wifi.StateSTA):
		return StateBusyStyle
	default:
		return StateDownStyle
	}
}

func persistStateStyle(state signal.Flags) lipgloss.Style {
	switch {
	case state.Has(persist.StateBusy):
		return StateBusyStyle
	case state.Has(persist.StateReady):
		return StateUpStyle
	default:
		return StateDownStyle
	}
}
