// Copyright 2025 The Rivaas Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package wayfare

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/colorprofile"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	figure "github.com/common-nighthawk/go-figure"
	"golang.org/x/term"
)

// colorWriter returns a colorprofile.Writer tuned for the server's
// environment: production strips ANSI entirely, development downsamples to
// whatever the terminal actually supports.
func (s *Server) colorWriter(w io.Writer) *colorprofile.Writer {
	cpw := colorprofile.NewWriter(w, os.Environ())
	if s.cfg.environment == EnvProduction {
		cpw.Profile = colorprofile.NoTTY
	}
	return cpw
}

// printStartupBanner prints the §4.10 step 7 development banner: service
// name rendered as ASCII art, a categorized summary (address, environment,
// protocol, routes, plugins), and the discovered route table. Non-dev
// environments print a single plain log line instead.
func (s *Server) printStartupBanner(addr, protocol string) {
	if s.cfg.environment != EnvDevelopment {
		return
	}

	w := s.colorWriter(os.Stdout)

	name := figure.NewFigure("wayfare", "", false)
	lines := name.Slicify()

	gradient := []string{"12", "14", "10", "11"}
	var art strings.Builder
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			art.WriteString("\n")
			continue
		}
		for i, ch := range line {
			style := lipgloss.NewStyle().Foreground(lipgloss.Color(gradient[i%len(gradient)])).Bold(true)
			art.WriteString(style.Render(string(ch)))
		}
		art.WriteString("\n")
	}

	categoryStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Bold(true)
	labelStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Width(14)
	valueStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("15")).Bold(true)
	warnStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("208")).Bold(true)

	scheme := "http://"
	if protocol != "HTTP" {
		scheme = "https://"
	}
	displayAddr := addr
	if strings.HasPrefix(addr, ":") {
		displayAddr = "0.0.0.0" + addr
	}
	displayAddr = scheme + displayAddr

	var out strings.Builder
	out.WriteString(categoryStyle.Render("Server") + "\n")
	out.WriteString(labelStyle.Render("Address:") + "  " + valueStyle.Render(displayAddr) + "\n")
	out.WriteString(labelStyle.Render("Protocol:") + "  " + valueStyle.Render(protocol) + "\n")
	out.WriteString(labelStyle.Render("Environment:") + "  " + valueStyle.Render(string(s.cfg.environment)) + "\n")
	out.WriteString(labelStyle.Render("Routes dir:") + "  " + valueStyle.Render(s.cfg.routesDir) + "\n")

	routes := s.tree.List()
	out.WriteString(labelStyle.Render("Routes:") + "  " + valueStyle.Render(fmt.Sprintf("%d", len(routes))) + "\n")
	out.WriteString(labelStyle.Render("Plugins:") + "  " + valueStyle.Render(fmt.Sprintf("%d", len(s.pluginMgr.plugins))) + "\n")

	if conflicts := s.registry.Conflicts(); len(conflicts) > 0 {
		out.WriteString(labelStyle.Render("Conflicts:") + "  " + warnStyle.Render(fmt.Sprintf("%d (see logs)", len(conflicts))) + "\n")
	}

	fmt.Fprintln(w)
	fmt.Fprint(w, art.String())
	fmt.Fprintln(w)
	fmt.Fprint(w, out.String())
	fmt.Fprintln(w)

	if len(routes) > 0 {
		s.renderRoutesTable(w)
		fmt.Fprintln(w)
	}
}

// renderRoutesTable renders the discovered routes (C2's Tree.List) as a
// compact table, width-limited to the detected terminal width.
func (s *Server) renderRoutesTable(w io.Writer) {
	width := 80
	if fd := int(os.Stdout.Fd()); term.IsTerminal(fd) {
		if tw, _, err := term.GetSize(fd); err == nil && tw > 0 {
			width = tw
		}
	}

	methodColor := map[string]string{
		"GET": "10", "POST": "12", "PUT": "11",
		"DELETE": "9", "PATCH": "13", "HEAD": "14", "OPTIONS": "7",
	}

	rows := make([][]string, 0, len(s.tree.List()))
	for _, r := range s.tree.List() {
		method := string(r.Method)
		if color, ok := methodColor[method]; ok {
			method = lipgloss.NewStyle().Foreground(lipgloss.Color(color)).Bold(true).Render(method)
		}
		rows = append(rows, []string{method, r.Path})
	}

	t := table.New().
		Width(width).
		Headers("Method", "Path").
		Rows(rows...)
	fmt.Fprintln(w, t.Render())
}
