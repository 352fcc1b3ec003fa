package corpus

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-gradebook/pkg/docker"
)

// ExecCloner shells out to a local git binary.
type ExecCloner struct {
	Binary string
	Depth  int
	Logger zerolog.Logger
}

// Clone runs a shallow "git clone" into dest.
func (c ExecCloner) Clone(ctx context.Context, url, dest string) error {
	binary := c.Binary
	if binary == "" {
		binary = "git"
	}

	cmd := exec.CommandContext(ctx, binary, cloneArgs(url, dest, c.Depth)...)
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0")
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("git clone: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

// ContainerCloner runs git inside a throwaway container so untrusted
// repositories never touch the host git configuration.
type ContainerCloner struct {
	Runner   docker.Runner
	Image    string
	Depth    int
	Timeout  time.Duration
	MemoryMB int64
	Logger   zerolog.Logger
}

const containerMountTarget = "/workspace"

// Clone mounts the parent of dest into the container and clones into it.
func (c ContainerCloner) Clone(ctx context.Context, url, dest string) error {
	image := c.Image
	if image == "" {
		image = "alpine/git:latest"
	}

	parent, err := filepath.Abs(filepath.Dir(dest))
	if err != nil {
		return err
	}
	target := containerMountTarget + "/" + filepath.Base(dest)

	result, err := c.Runner.Run(ctx, docker.RunRequest{
		Image:          image,
		Args:           cloneArgs(url, target, c.Depth),
		Env:            []string{"GIT_TERMINAL_PROMPT=0", "HOME=/tmp"},
		User:           fmt.Sprintf("%d:%d", os.Getuid(), os.Getgid()),
		Workspace:      parent,
		MountTarget:    containerMountTarget,
		Timeout:        c.Timeout,
		MemoryLimitMB:  c.MemoryMB,
		NetworkEnabled: true,
	})
	if err != nil {
		return err
	}
	if result.ExitCode != 0 {
		return fmt.Errorf("git clone exited with %d: %s", result.ExitCode, strings.TrimSpace(result.Stderr))
	}

	c.Logger.Debug().Str("image", image).Dur("duration", result.Duration).Msg("repository cloned in container")
	return nil
}

func cloneArgs(url, dest string, depth int) []string {
	if depth <= 0 {
		depth = 1
	}
	return []string{"clone", "--depth", strconv.Itoa(depth), "--quiet", url, dest}
}
