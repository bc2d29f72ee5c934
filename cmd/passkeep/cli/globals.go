// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import "log/slog"

// GlobalParams are the flags every passkeep command accepts. Command
// parameter structs embed it.
type GlobalParams struct {
	Store      string `json:"-" flag:"store" desc:"password store directory (overrides PASSWORD_STORE_DIR and the config file)"`
	Config     string `json:"-" flag:"config" desc:"configuration file (overrides PASSKEEP_CONFIG)"`
	Verbose    bool   `json:"-" flag:"verbose,v" desc:"enable debug logging"`
	AllowDirty bool   `json:"-" flag:"allow-dirty" desc:"allow changing a store whose git repository has uncommitted changes"`
	NoSync     bool   `json:"-" flag:"no-sync" desc:"do not pull before or commit after changing the store"`
}

// LogLevel implements LogLevelProvider.
func (g *GlobalParams) LogLevel() slog.Level {
	if g.Verbose {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}
