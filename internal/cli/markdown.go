// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
)

var (
	markdownRenderer     *glamour.TermRenderer
	markdownRendererOnce sync.Once
)

func renderer() *glamour.TermRenderer {
	markdownRendererOnce.Do(func() {
		r, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(min(GetTerminalWidth()-4, 100)),
		)
		if err == nil {
			markdownRenderer = r
		}
	})
	return markdownRenderer
}

// renderMarkdown renders content for the terminal. It returns content as is
// when no renderer is available or rendering fails.
func renderMarkdown(content string) string {
	r := renderer()
	if r == nil {
		return content
	}
	rendered, err := r.Render(content)
	if err != nil {
		return content
	}
	return rendered
}

// displayResponse writes an answer, rendered as markdown only when stdout is
// a terminal so piped output stays byte-exact.
func displayResponse(w io.Writer, response string, markdown bool) {
	if markdown && IsStdoutTTY() {
		fmt.Fprint(w, renderMarkdown(response))
		return
	}
	fmt.Fprint(w, response)
	if !strings.HasSuffix(response, "\n") {
		fmt.Fprintln(w)
	}
}
