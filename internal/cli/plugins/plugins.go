// Package plugins provides exec-based plugin support for gctool.
// Plugins are separate binaries named gctool-<command> that are discovered
// and executed when an unknown command is invoked.
//
// This follows the same pattern used by kubectl and git for plugins.
package plugins

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Prefix is prepended to a command name to form the plugin binary name.
const Prefix = "gctool-"

// EnvPluginDir names an extra directory searched before the defaults.
const EnvPluginDir = "GCTOOL_PLUGIN_DIR"

// ErrPluginNotFound is returned when no plugin binary can be located.
var ErrPluginNotFound = errors.New("plugin not found")

// Finder locates plugin binaries.
type Finder struct {
	// Dirs are searched in order.
	Dirs []string
	// SearchPath enables a final lookup in PATH.
	SearchPath bool
}

// DefaultFinder searches, in order:
//  1. $GCTOOL_PLUGIN_DIR
//  2. Same directory as the gctool binary
//  3. ~/.gctool/plugins/
//  4. Anywhere in PATH
func DefaultFinder() *Finder {
	f := &Finder{SearchPath: true}

	if dir := os.Getenv(EnvPluginDir); dir != "" {
		f.Dirs = append(f.Dirs, dir)
	}
	if execPath, err := os.Executable(); err == nil {
		f.Dirs = append(f.Dirs, filepath.Dir(execPath))
	}
	if homeDir, err := os.UserHomeDir(); err == nil {
		f.Dirs = append(f.Dirs, filepath.Join(homeDir, ".gctool", "plugins"))
	}
	return f
}

// Find returns the full path of the plugin binary for command.
func (f *Finder) Find(command string) (string, error) {
	if command == "" || strings.ContainsAny(command, `/\`) {
		return "", ErrPluginNotFound
	}
	pluginName := Prefix + command

	for _, dir := range f.Dirs {
		candidate := filepath.Join(dir, pluginName)
		if isExecutable(candidate) {
			return candidate, nil
		}
	}

	if f.SearchPath {
		if path, err := exec.LookPath(pluginName); err == nil {
			return path, nil
		}
	}

	return "", ErrPluginNotFound
}

// FindPlugin searches the default locations for gctool-<command>.
func FindPlugin(command string) (string, error) {
	return DefaultFinder().Find(command)
}

// Streams are the standard streams handed to a plugin.
type Streams struct {
	In  io.Reader
	Out io.Writer
	Err io.Writer
}

// StdStreams returns the process's own standard streams.
func StdStreams() Streams {
	return Streams{In: os.Stdin, Out: os.Stdout, Err: os.Stderr}
}

// Execute runs a plugin with the given arguments and returns its exit code.
// The plugin is killed if ctx is cancelled.
func Execute(ctx context.Context, pluginPath string, args []string, streams Streams) int {
	cmd := exec.CommandContext(ctx, pluginPath, args...)
	cmd.Stdin = streams.In
	cmd.Stdout = streams.Out
	cmd.Stderr = streams.Err

	err := cmd.Run()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() >= 0 {
			return exitErr.ExitCode()
		}
		fmt.Fprintf(streams.Err, "Error executing plugin: %v\n", err)
		return 1
	}

	return 0
}

// FormatNotFoundError returns a helpful error message when a plugin is not found.
func FormatNotFoundError(command string) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "unknown command %q for \"gctool\"\n", command)
	sb.WriteString("\nIf this is a plugin, install the binary as one of:\n")
	fmt.Fprintf(&sb, "  - %s/%s%s\n", "$"+EnvPluginDir, Prefix, command)
	fmt.Fprintf(&sb, "  - %s%s in the same directory as gctool\n", Prefix, command)
	fmt.Fprintf(&sb, "  - ~/.gctool/plugins/%s%s\n", Prefix, command)
	fmt.Fprintf(&sb, "  - %s%s anywhere in your PATH\n", Prefix, command)
	sb.WriteString("\nRun 'gctool --help' for usage.")

	return sb.String()
}

// isExecutable checks if a file exists and is executable.
func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}

	// Windows has no executable bit, so any mode bit set here is Unix
	if info.Mode().IsRegular() {
		return info.Mode()&0111 != 0
	}

	return false
}
