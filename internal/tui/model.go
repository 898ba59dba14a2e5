// Package tui is the interactive search screen.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/sahilm/fuzzy"

	"github.com/mmcdole/marquee/internal/domain"
	"github.com/mmcdole/marquee/internal/search"
	"github.com/mmcdole/marquee/internal/tui/styles"
)

// Searcher is the part of search.Session the screen drives
type Searcher interface {
	SetText(text string)
	SetFilters(f search.Query)
	LoadMore()
	Snapshot() search.State
}

// Favorites toggles the star on a result
type Favorites interface {
	ToggleFavorite(ctx context.Context, item domain.MediaItem) (bool, error)
	IsFavorite(key domain.ItemKey) (bool, error)
}

// Notifier wakes the screen when the session applies a result.
// Pass Notify as the session's onChange.
type Notifier chan struct{}

func NewNotifier() Notifier { return make(Notifier, 1) }

// Notify never blocks; pending wakeups coalesce
func (n Notifier) Notify() {
	select {
	case n <- struct{}{}:
	default:
	}
}

type stateChangedMsg struct{}

type favoriteToggledMsg struct {
	item domain.MediaItem
	on   bool
	err  error
}

var (
	typeCycle = []domain.MediaType{"", domain.MediaTypeMovie, domain.MediaTypeTV, domain.MediaTypePerson}
	sortCycle = []search.Sort{search.SortRelevance, search.SortPopularity, search.SortRating, search.SortReleaseDate, search.SortTitle}
)

// Model is the bubbletea model of the search screen
type Model struct {
	session   Searcher
	favorites Favorites
	changes   Notifier
	keys      KeyMap

	input   textinput.Model
	filters search.Query
	state   search.State
	favs    domain.KeySet

	cursor int
	offset int
	width  int
	height int
	status string
}

// New creates the screen. favorites may be nil.
func New(session Searcher, favorites Favorites, changes Notifier) Model {
	ti := textinput.New()
	ti.Placeholder = "Search movies, shows and people..."
	ti.Prompt = "/ "
	ti.PromptStyle = styles.PromptStyle
	ti.PlaceholderStyle = styles.PlaceholderStyle
	ti.CharLimit = 100
	ti.Width = 50
	ti.Focus()

	return Model{
		session:   session,
		favorites: favorites,
		changes:   changes,
		keys:      DefaultKeyMap(),
		input:     ti,
		filters:   search.Query{Sort: search.SortRelevance},
		state:     session.Snapshot(),
		favs:      domain.KeySet{},
	}
}

// Run starts the screen on the alternate screen buffer and blocks until it exits
func Run(session Searcher, favorites Favorites, changes Notifier) error {
	_, err := tea.NewProgram(New(session, favorites, changes), tea.WithAltScreen()).Run()
	return err
}

func waitForChange(ch Notifier) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		if _, ok := <-ch; !ok {
			return nil
		}
		return stateChangedMsg{}
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, waitForChange(m.changes))
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.input.Width = max(msg.Width-8, 10)
		m.clamp()
		return m, nil

	case stateChangedMsg:
		m.refresh()
		return m, waitForChange(m.changes)

	case favoriteToggledMsg:
		if msg.err != nil {
			m.status = styles.ErrorStyle.Render("favorite: " + msg.err.Error())
			return m, nil
		}
		if msg.on {
			m.favs.Add(msg.item.Key())
			m.status = styles.SuccessStyle.Render("Added " + msg.item.Title + " to favorites")
		} else {
			delete(m.favs, msg.item.Key())
			m.status = styles.DimStyle.Render("Removed " + msg.item.Title + " from favorites")
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
		m.clamp()
		return m, nil

	case key.Matches(msg, m.keys.Down):
		if m.cursor < m.count()-1 {
			m.cursor++
		} else {
			m.loadMore()
		}
		m.clamp()
		return m, nil

	case key.Matches(msg, m.keys.More):
		m.loadMore()
		return m, nil

	case key.Matches(msg, m.keys.Favorite):
		return m, m.toggleFavorite()

	case key.Matches(msg, m.keys.Type):
		m.filters.Type = next(typeCycle, m.filters.Type)
		m.applyFilters()
		return m, nil

	case key.Matches(msg, m.keys.Sort):
		m.filters.Sort = next(sortCycle, m.filters.Sort)
		m.applyFilters()
		return m, nil
	}

	before := m.input.Value()
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if m.input.Value() != before {
		m.session.SetText(m.input.Value())
		m.cursor, m.offset = 0, 0
		m.status = ""
		m.refresh()
	}
	return m, cmd
}

func next[T comparable](cycle []T, cur T) T {
	for i, v := range cycle {
		if v == cur {
			return cycle[(i+1)%len(cycle)]
		}
	}
	return cycle[0]
}

func (m *Model) applyFilters() {
	m.session.SetFilters(m.filters)
	m.cursor, m.offset = 0, 0
	m.refresh()
}

func (m *Model) loadMore() {
	if m.state.HasMore() && !m.state.Loading {
		m.session.LoadMore()
		m.refresh()
	}
}

func (m *Model) refresh() {
	m.state = m.session.Snapshot()
	if m.favorites != nil {
		for _, it := range m.state.Items {
			if ok, err := m.favorites.IsFavorite(it.Key()); err == nil && ok {
				m.favs.Add(it.Key())
			}
		}
	}
	m.clamp()
}

func (m Model) toggleFavorite() tea.Cmd {
	if m.favorites == nil || m.state.Mode == search.ModePeople || m.cursor >= len(m.state.Items) {
		return nil
	}
	item := m.state.Items[m.cursor]
	favorites := m.favorites
	return func() tea.Msg {
		on, err := favorites.ToggleFavorite(context.Background(), item)
		return favoriteToggledMsg{item: item, on: on, err: err}
	}
}

func (m Model) count() int {
	if m.state.Mode == search.ModePeople {
		return len(m.state.People)
	}
	return len(m.state.Items)
}

func (m Model) listHeight() int {
	if m.height == 0 {
		return 10
	}
	return max(m.height-9, 3)
}

func (m *Model) clamp() {
	n := m.count()
	if m.cursor >= n {
		m.cursor = max(n-1, 0)
	}
	h := m.listHeight()
	if m.cursor < m.offset {
		m.offset = m.cursor
	}
	if m.cursor >= m.offset+h {
		m.offset = m.cursor - h + 1
	}
}

// Selected returns the highlighted title, if any
func (m Model) Selected() (domain.MediaItem, bool) {
	if m.state.Mode == search.ModePeople || m.cursor >= len(m.state.Items) {
		return domain.MediaItem{}, false
	}
	return m.state.Items[m.cursor], true
}

func (m Model) View() string {
	width := m.width
	if width == 0 {
		width = 80
	}

	var b strings.Builder
	b.WriteString(styles.TitleStyle.Render("marquee"))
	b.WriteString("  ")
	b.WriteString(m.renderFilters())
	b.WriteString("\n")
	b.WriteString(styles.InputBoxStyle.Width(max(width-4, 10)).Render(m.input.View()))
	b.WriteString("\n")
	b.WriteString(m.renderStatus())
	b.WriteString("\n\n")
	b.WriteString(m.renderResults(width))
	b.WriteString("\n")
	b.WriteString(m.renderHelp())
	return b.String()
}

func (m Model) renderFilters() string {
	typ := "all"
	if m.filters.Type != "" {
		typ = string(m.filters.Type)
	}
	badges := []string{styles.BadgeStyle.Render(typ), styles.DimBadgeStyle.Render(string(m.filters.Sort))}
	return lipgloss.JoinHorizontal(lipgloss.Top, strings.Join(badges, " "))
}

func (m Model) renderStatus() string {
	st := m.state
	switch {
	case st.Error != "":
		return styles.ErrorStyle.Render("Search failed: " + st.Error)
	case m.status != "":
		return m.status
	case st.Mode == search.ModeEmpty:
		return styles.DimStyle.Render("Type to search")
	case st.Loading && m.count() == 0:
		return styles.DimStyle.Render("Searching...")
	}
	line := fmt.Sprintf("%d of %d results", m.count(), st.TotalResults)
	if st.LocalMatches > 0 {
		line += fmt.Sprintf(" (%d from your library)", st.LocalMatches)
	}
	if st.Loading {
		line += " loading..."
	} else if st.HasMore() {
		line += fmt.Sprintf(" page %d/%d", st.Page, st.TotalPages)
	}
	return styles.SubtitleStyle.Render(line)
}

func (m Model) renderResults(width int) string {
	n := m.count()
	if n == 0 {
		if m.state.Mode != search.ModeEmpty && !m.state.Loading && m.state.Error == "" {
			return styles.DimStyle.Render("No results")
		}
		return ""
	}

	titles := make([]string, n)
	if m.state.Mode == search.ModePeople {
		for i, p := range m.state.People {
			titles[i] = p.Name
		}
	} else {
		for i, it := range m.state.Items {
			titles[i] = it.Title
		}
	}
	matched := matchIndexes(m.state.Query.Text, titles)

	end := min(m.offset+m.listHeight(), n)
	lines := make([]string, 0, end-m.offset)
	for i := m.offset; i < end; i++ {
		selected := i == m.cursor
		var meta string
		mark := " "
		if m.state.Mode == search.ModePeople {
			meta = m.state.People[i].KnownForDepartment
		} else {
			it := m.state.Items[i]
			meta = describe(it)
			if m.favs.Has(it.Key()) {
				mark = styles.FavoriteMark
			}
		}
		titleWidth := max(width-lipgloss.Width(meta)-6, 10)
		title := styles.Truncate(titles[i], titleWidth)

		line := mark + " " + highlightMatches(title, matched[i], selected)
		gap := max(width-lipgloss.Width(line)-lipgloss.Width(meta)-2, 1)
		if selected {
			line += styles.SelectedItemStyle.Render(strings.Repeat(" ", gap) + meta)
		} else {
			line += strings.Repeat(" ", gap) + styles.DimStyle.Render(meta)
		}
		lines = append(lines, line)
	}
	if end < n || m.state.HasMore() {
		lines = append(lines, styles.DimStyle.Render("..."))
	}
	return strings.Join(lines, "\n")
}

func describe(it domain.MediaItem) string {
	parts := []string{string(it.MediaType)}
	if y := it.Year(); y > 0 {
		parts = append(parts, fmt.Sprint(y))
	}
	if r := it.Rating(); r > 0 {
		parts = append(parts, fmt.Sprintf("%.1f", r))
	}
	return strings.Join(parts, "  ")
}

func (m Model) renderHelp() string {
	parts := make([]string, 0, len(m.keys.help()))
	for _, k := range m.keys.help() {
		h := k.Help()
		parts = append(parts, styles.HelpKeyStyle.Render(h.Key)+" "+styles.HelpDescStyle.Render(h.Desc))
	}
	return strings.Join(parts, "  ")
}

// matchIndexes returns the fuzzy-matched rune positions per title
func matchIndexes(query string, titles []string) map[int][]int {
	out := make(map[int][]int)
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return out
	}
	lower := make([]string, len(titles))
	for i, t := range titles {
		lower[i] = strings.ToLower(t)
	}
	for _, match := range fuzzy.Find(query, lower) {
		out[match.Index] = match.MatchedIndexes
	}
	return out
}

// highlightMatches renders text with matched characters highlighted,
// batching consecutive runs of the same style
func highlightMatches(text string, matchedIndexes []int, selected bool) string {
	normal, hl := styles.NormalItemStyle, styles.MatchHighlightStyle
	if selected {
		normal, hl = styles.SelectedItemStyle, styles.MatchHighlightSelectedStyle
	}
	if len(matchedIndexes) == 0 {
		return normal.Render(text)
	}

	set := make(map[int]bool, len(matchedIndexes))
	for _, idx := range matchedIndexes {
		set[idx] = true
	}

	var b strings.Builder
	runes := []rune(text)
	for i := 0; i < len(runes); {
		isMatch := set[i]
		j := i + 1
		for j < len(runes) && set[j] == isMatch {
			j++
		}
		if isMatch {
			b.WriteString(hl.Render(string(runes[i:j])))
		} else {
			b.WriteString(normal.Render(string(runes[i:j])))
		}
		i = j
	}
	return b.String()
}
