// Package project finds and lets the user pick a gridlive project
// folder — one containing a gridlive.json.gz save file — as a
// bubbletea front-end screen shown before the main performance view.
package project

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// saveFileName must match storage's persisted document name; duplicated
// here rather than imported to keep this package free of a storage
// dependency for what's otherwise a pure filesystem scan.
const saveFileName = "gridlive.json.gz"

// Project is a found project folder.
type Project struct {
	Name     string
	Path     string
	Modified time.Time
}

// ProjectSelector is the bubbletea model for project selection.
type ProjectSelector struct {
	projects       []Project
	selectedIndex  int
	searchComplete bool
	searching      bool
	width          int
	height         int
}

type searchCompleteMsg struct {
	projects []Project
	err      error
}

func NewProjectSelector() *ProjectSelector {
	return &ProjectSelector{
		projects:  []Project{},
		searching: true,
	}
}

// SearchProjects searches common locations for gridlive project folders.
func SearchProjects() ([]Project, error) {
	var projects []Project
	searchPaths := getSearchPaths()

	log.Printf("project: searching for projects in: %v", searchPaths)

	for _, basePath := range searchPaths {
		projects = append(projects, searchInDirectory(basePath, 3)...)
	}

	sort.Slice(projects, func(i, j int) bool {
		return projects[i].Modified.After(projects[j].Modified)
	})

	projects = removeDuplicates(projects)

	log.Printf("project: found %d projects", len(projects))
	return projects, nil
}

func getSearchPaths() []string {
	var paths []string

	if cwd, err := os.Getwd(); err == nil {
		paths = append(paths, cwd)
	}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, home)
		paths = append(paths, filepath.Join(home, "Music"))
		paths = append(paths, filepath.Join(home, "Documents"))
		paths = append(paths, filepath.Join(home, "gridlive"))
		paths = append(paths, filepath.Join(home, "Desktop"))
	}

	return paths
}

func searchInDirectory(dir string, maxDepth int) []Project {
	if maxDepth <= 0 {
		return nil
	}

	var projects []Project

	dataFile := filepath.Join(dir, saveFileName)
	if stat, err := os.Stat(dataFile); err == nil && !stat.IsDir() {
		projects = append(projects, Project{
			Name:     filepath.Base(dir),
			Path:     dir,
			Modified: stat.ModTime(),
		})
		return projects // don't search subdirectories of a project
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return projects
	}

	for _, entry := range entries {
		if entry.IsDir() && !strings.HasPrefix(entry.Name(), ".") {
			subDir := filepath.Join(dir, entry.Name())
			projects = append(projects, searchInDirectory(subDir, maxDepth-1)...)
		}
	}

	return projects
}

func removeDuplicates(projects []Project) []Project {
	seen := make(map[string]bool)
	var result []Project

	for _, p := range projects {
		clean := filepath.Clean(p.Path)
		if !seen[clean] {
			seen[clean] = true
			p.Path = clean
			result = append(result, p)
		}
	}

	return result
}

func (ps *ProjectSelector) Init() tea.Cmd {
	return ps.searchForProjects()
}

func (ps *ProjectSelector) searchForProjects() tea.Cmd {
	return func() tea.Msg {
		projects, err := SearchProjects()
		return searchCompleteMsg{projects: projects, err: err}
	}
}

func (ps *ProjectSelector) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		ps.width = msg.Width
		ps.height = msg.Height

	case searchCompleteMsg:
		ps.searching = false
		ps.searchComplete = true
		if msg.err != nil {
			log.Printf("project: search error: %v", msg.err)
		} else {
			ps.projects = msg.projects
		}

	case tea.KeyMsg:
		if !ps.searchComplete {
			return ps, nil
		}

		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return ps, tea.Quit

		case "up", "k":
			if ps.selectedIndex > 0 {
				ps.selectedIndex--
			}

		case "down", "j":
			if ps.selectedIndex < len(ps.projects)-1 {
				ps.selectedIndex++
			}

		case "enter":
			if len(ps.projects) > 0 {
				selected := ps.projects[ps.selectedIndex]
				return &ProjectResult{SelectedProject: &selected}, tea.Quit
			}

		case "n":
			return &ProjectResult{SelectedProject: nil}, tea.Quit
		}
	}

	return ps, nil
}

func (ps *ProjectSelector) View() string {
	if ps.searching {
		return ps.renderSearching()
	}
	if !ps.searchComplete {
		return "Loading..."
	}
	return ps.renderProjectList()
}

func (ps *ProjectSelector) renderSearching() string {
	style := lipgloss.NewStyle().Padding(2).Foreground(lipgloss.Color("240"))
	return style.Render("searching for gridlive projects...")
}

func (ps *ProjectSelector) renderProjectList() string {
	var content strings.Builder

	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).Padding(0, 0, 1, 0)
	content.WriteString(titleStyle.Render("Select a gridlive project"))
	content.WriteString("\n")

	if len(ps.projects) == 0 {
		noProjectsStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Padding(1, 0)
		content.WriteString(noProjectsStyle.Render("No projects found."))
		content.WriteString("\n")
	} else {
		for i, p := range ps.projects {
			ps.renderProject(&content, p, i == ps.selectedIndex)
		}
	}

	instructionsStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Padding(1, 0, 0, 0)
	instructions := ""
	if len(ps.projects) > 0 {
		instructions += "up/down or k/j: navigate  *  enter: select  *  "
	}
	instructions += "n: new project  *  q/esc: quit"
	content.WriteString(instructionsStyle.Render(instructions))

	return lipgloss.NewStyle().Padding(1, 2).Render(content.String())
}

func (ps *ProjectSelector) renderProject(content *strings.Builder, p Project, selected bool) {
	var style lipgloss.Style
	if selected {
		style = lipgloss.NewStyle().Background(lipgloss.Color("7")).Foreground(lipgloss.Color("0")).Padding(0, 1)
	} else {
		style = lipgloss.NewStyle().Foreground(lipgloss.Color("15")).Padding(0, 1)
	}

	path := p.Path
	if len(path) > 60 {
		path = "..." + path[len(path)-57:]
	}

	content.WriteString(style.Render(fmt.Sprintf("  %-20s %s", p.Name, path)))
	content.WriteString("\n")

	if selected {
		timeStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Padding(0, 1)
		content.WriteString(timeStyle.Render(fmt.Sprintf("  Modified: %s", p.Modified.Format("2006-01-02 15:04"))))
		content.WriteString("\n")
	}
}

// ProjectResult is the outcome of the selector: a chosen project, "new
// project" (nil, no error), or cancellation.
type ProjectResult struct {
	SelectedProject *Project
	Cancelled       bool
}

func (pr *ProjectResult) Init() tea.Cmd                           { return nil }
func (pr *ProjectResult) Update(msg tea.Msg) (tea.Model, tea.Cmd) { return pr, nil }
func (pr *ProjectResult) View() string                            { return "" }

// RunProjectSelector runs the picker and returns the chosen project
// path, or ("", true) on cancellation.
func RunProjectSelector() (string, bool) {
	p := tea.NewProgram(NewProjectSelector(), tea.WithAltScreen())

	finalModel, err := p.Run()
	if err != nil {
		log.Printf("project: selector error: %v", err)
		return "", true
	}

	if result, ok := finalModel.(*ProjectResult); ok {
		if result.Cancelled {
			return "", true
		}
		if result.SelectedProject != nil {
			return result.SelectedProject.Path, false
		}
		return "", false // new project
	}

	return "", true
}
