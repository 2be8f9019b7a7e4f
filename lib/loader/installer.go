package loader

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"text/template"
	"time"
)

// Installer makes a missing adapter package available to a ModuleGraph.
type Installer interface {
	// Install fetches pkg and places it into dir. It blocks until the package is installed.
	Install(ctx context.Context, pkg, dir string) error
}

// InstallerFunc adapts a function to the Installer interface.
type InstallerFunc func(ctx context.Context, pkg, dir string) error

func (f InstallerFunc) Install(ctx context.Context, pkg, dir string) error {
	return f(ctx, pkg, dir)
}

// packageNameRe restricts what may be rendered into a shell command.
var packageNameRe = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._~/@+-]*$`)

// CommandInstaller installs packages by running a shell command.
// Command is a text/template with the fields .Package, .Output and .Dir,
// where .Output is the path the PluginDir graph expects the package at.
type CommandInstaller struct {
	Command string
	Timeout time.Duration
}

// NewCommandInstaller creates a CommandInstaller. A zero timeout disables the timeout.
func NewCommandInstaller(command string, timeout time.Duration) *CommandInstaller {
	return &CommandInstaller{Command: command, Timeout: timeout}
}

type installParams struct {
	Package string
	Output  string
	Dir     string
}

// Render returns the command that would be run to install pkg into dir.
func (c *CommandInstaller) Render(pkg, dir string) (string, error) {
	if !packageNameRe.MatchString(pkg) {
		return "", fmt.Errorf("invalid package name %q", pkg)
	}

	tmpl, err := template.New("install").Option("missingkey=error").Parse(c.Command)
	if err != nil {
		return "", fmt.Errorf("invalid install command template: %w", err)
	}

	var buf bytes.Buffer
	err = tmpl.Execute(&buf, installParams{
		Package: pkg,
		Output:  PluginPath(dir, pkg),
		Dir:     dir,
	})
	if err != nil {
		return "", fmt.Errorf("could not render install command: %w", err)
	}
	return buf.String(), nil
}

// Install implements Installer.
func (c *CommandInstaller) Install(ctx context.Context, pkg, dir string) error {
	command, err := c.Render(pkg, dir)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("could not create modules directory %s: %w", dir, err)
	}

	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	log.Infof("installing %s: %s", pkg, command)

	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Dir = dir
	cmd.WaitDelay = time.Second
	out, err := cmd.CombinedOutput()
	if len(out) > 0 {
		log.Debugf("install output for %s:\n%s", pkg, out)
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
		return fmt.Errorf("install command for %s failed: %w: %s", pkg, err, strings.TrimSpace(string(out)))
	}
	return nil
}
