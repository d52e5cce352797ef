// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// json_output.go - JSON output for scripting.

package cli

import (
	"encoding/json"
	"io"
	"os"
	"time"
)

// JSONResponse is the envelope every command prints in --json mode.
type JSONResponse struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data"`
	Error     *string     `json:"error"`
	Timestamp string      `json:"timestamp"`
	Command   string      `json:"command,omitempty"`
}

// NewJSONResponse creates a successful response.
func NewJSONResponse(command string, data interface{}) *JSONResponse {
	return &JSONResponse{
		Success:   true,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Command:   command,
	}
}

// NewJSONErrorResponse creates an error response.
func NewJSONErrorResponse(command string, err error) *JSONResponse {
	errStr := err.Error()
	return &JSONResponse{
		Success:   false,
		Error:     &errStr,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Command:   command,
	}
}

// Print writes the response to stdout.
func (r *JSONResponse) Print() error {
	return r.Write(os.Stdout)
}

// Write writes the indented response to w.
func (r *JSONResponse) Write(w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(r)
}

// =============================================================================
// COMMAND DATA
// =============================================================================

// VersionData is the data of "version --json".
type VersionData struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// AskData is the data of "ask --json".
type AskData struct {
	Query      string `json:"query"`
	Answer     string `json:"answer"`
	Source     string `json:"source"`
	Fallback   bool   `json:"fallback"`
	SessionID  string `json:"session_id"`
	DurationMs int64  `json:"duration_ms"`
}

// StatusData is the data of "status --json".
type StatusData struct {
	Gateway        string `json:"gateway"`
	Reachable      bool   `json:"reachable"`
	Online         bool   `json:"online"`
	CloudAvailable bool   `json:"cloud_available"`
	ForcedOffline  bool   `json:"forced_offline"`
	Mode           string `json:"mode"`
	AutoEnhance    bool   `json:"auto_enhance"`
	MaxMessages    int    `json:"max_messages"`
	Error          string `json:"error,omitempty"`
}
