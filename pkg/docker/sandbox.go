package docker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	runDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "gema",
		Subsystem: "sandbox",
		Name:      "run_duration_seconds",
		Help:      "Duration of sandboxed container runs",
		Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
	}, []string{"image"})

	runTimeouts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gema",
		Subsystem: "sandbox",
		Name:      "run_timeouts_total",
		Help:      "Number of sandboxed runs that hit their timeout",
	}, []string{"image"})

	runFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gema",
		Subsystem: "sandbox",
		Name:      "run_failures_total",
		Help:      "Number of sandboxed runs that could not be completed",
	}, []string{"image"})
)

// ErrRunTimedOut is returned when a container exceeds its timeout.
var ErrRunTimedOut = errors.New("sandbox run timed out")

// Runner executes a one-shot command inside a throwaway container.
type Runner interface {
	Run(ctx context.Context, req RunRequest) (RunResult, error)
}

// RunRequest describes a single container run. Workspace, when set, is bind
// mounted read-write at MountTarget.
type RunRequest struct {
	Image          string
	Args           []string
	Env            []string
	User           string
	Workspace      string
	MountTarget    string
	Timeout        time.Duration
	MemoryLimitMB  int64
	CPUShares      int64
	NetworkEnabled bool
}

// RunResult captures the output of a finished run.
type RunResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
	TimedOut bool
}

// Config groups sandbox defaults.
type Config struct {
	Host          string
	Timeout       time.Duration
	MemoryLimitMB int64
	CPUShares     int64
	MountTarget   string
	PullMissing   bool
	Logger        zerolog.Logger
}

// Sandbox runs containers through the Docker Engine API.
type Sandbox struct {
	client *client.Client
	cfg    Config
	tracer trace.Tracer
	logger zerolog.Logger
}

// NewSandbox connects to the Docker daemon described by cfg.
func NewSandbox(cfg Config) (*Sandbox, error) {
	opts := []client.Opt{client.FromEnv, client.WithAPIVersionNegotiation()}
	if cfg.Host != "" {
		opts = append(opts, client.WithHost(cfg.Host))
	}

	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, fmt.Errorf("create docker client: %w", err)
	}

	if cfg.MountTarget == "" {
		cfg.MountTarget = "/workspace"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}

	return &Sandbox{
		client: cli,
		cfg:    cfg,
		tracer: otel.Tracer("github.com/noah-isme/gema-gradebook/pkg/docker"),
		logger: cfg.Logger.With().Str("component", "docker_sandbox").Logger(),
	}, nil
}

// Run creates, starts and waits for a container, then removes it.
func (s *Sandbox) Run(parent context.Context, req RunRequest) (RunResult, error) {
	if req.Image == "" {
		return RunResult{}, errors.New("image is required")
	}

	ctx, span := s.tracer.Start(parent, "docker.sandbox.run", trace.WithAttributes(
		attribute.String("docker.image", req.Image),
	))
	defer span.End()

	fail := func(err error) error {
		runFailures.WithLabelValues(req.Image).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = s.cfg.Timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if s.cfg.PullMissing {
		if err := s.ensureImage(ctx, req.Image); err != nil {
			return RunResult{}, fail(err)
		}
	}

	target := req.MountTarget
	if target == "" {
		target = s.cfg.MountTarget
	}

	hostCfg := &container.HostConfig{
		NetworkMode: "none",
		Resources: container.Resources{
			Memory:    megabytes(firstPositive(req.MemoryLimitMB, s.cfg.MemoryLimitMB)),
			CPUShares: firstPositive(req.CPUShares, s.cfg.CPUShares),
		},
	}
	if req.NetworkEnabled {
		hostCfg.NetworkMode = "bridge"
	}
	if req.Workspace != "" {
		hostCfg.Mounts = []mount.Mount{{
			Type:   mount.TypeBind,
			Source: req.Workspace,
			Target: target,
		}}
	}

	containerCfg := &container.Config{
		Image:        req.Image,
		Cmd:          req.Args,
		Env:          req.Env,
		User:         req.User,
		WorkingDir:   target,
		AttachStdout: true,
		AttachStderr: true,
	}

	start := time.Now()
	created, err := s.client.ContainerCreate(ctx, containerCfg, hostCfg, nil, nil, "")
	if err != nil {
		return RunResult{}, fail(fmt.Errorf("container create: %w", err))
	}
	defer s.remove(created.ID)

	if err := s.client.ContainerStart(ctx, created.ID, container.StartOptions{}); err != nil {
		return RunResult{}, fail(fmt.Errorf("container start: %w", err))
	}

	result := RunResult{}
	statusCh, errCh := s.client.ContainerWait(ctx, created.ID, container.WaitConditionNotRunning)
	select {
	case status := <-statusCh:
		result.ExitCode = int(status.StatusCode)
	case err := <-errCh:
		if ctx.Err() == nil {
			return RunResult{}, fail(fmt.Errorf("container wait: %w", err))
		}
	case <-ctx.Done():
	}

	result.Duration = time.Since(start)
	runDuration.WithLabelValues(req.Image).Observe(result.Duration.Seconds())

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		result.TimedOut = true
		runTimeouts.WithLabelValues(req.Image).Inc()
		span.SetStatus(codes.Error, "sandbox run timed out")
		return result, fmt.Errorf("%w after %s", ErrRunTimedOut, timeout)
	}
	if err := parent.Err(); err != nil {
		return result, err
	}

	stdout, stderr, err := s.logs(parent, created.ID)
	if err != nil {
		s.logger.Warn().Err(err).Str("container_id", created.ID).Msg("failed to read container logs")
	}
	result.Stdout = stdout
	result.Stderr = stderr

	s.logger.Debug().
		Str("image", req.Image).
		Int("exit_code", result.ExitCode).
		Dur("duration", result.Duration).
		Msg("sandbox run finished")

	return result, nil
}

func (s *Sandbox) ensureImage(ctx context.Context, ref string) error {
	if _, _, err := s.client.ImageInspectWithRaw(ctx, ref); err == nil {
		return nil
	} else if !client.IsErrNotFound(err) {
		return fmt.Errorf("inspect image %s: %w", ref, err)
	}

	reader, err := s.client.ImagePull(ctx, ref, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("pull image %s: %w", ref, err)
	}
	defer reader.Close()

	if _, err := io.Copy(io.Discard, reader); err != nil {
		return fmt.Errorf("pull image %s: %w", ref, err)
	}
	s.logger.Info().Str("image", ref).Msg("sandbox image pulled")
	return nil
}

func (s *Sandbox) logs(ctx context.Context, id string) (string, string, error) {
	reader, err := s.client.ContainerLogs(ctx, id, container.LogsOptions{ShowStdout: true, ShowStderr: true})
	if err != nil {
		return "", "", err
	}
	defer reader.Close()

	var stdout, stderr bytes.Buffer
	if _, err := stdcopy.StdCopy(&stdout, &stderr, reader); err != nil {
		return "", "", err
	}
	return stdout.String(), stderr.String(), nil
}

func (s *Sandbox) remove(id string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.client.ContainerRemove(ctx, id, container.RemoveOptions{Force: true}); err != nil {
		s.logger.Error().Err(err).Str("container_id", id).Msg("failed to remove container")
	}
}

// Close releases the Docker client.
func (s *Sandbox) Close() error {
	if s.client == nil {
		return nil
	}
	return s.client.Close()
}

func firstPositive(values ...int64) int64 {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}
	return 0
}

func megabytes(mb int64) int64 {
	return mb * 1024 * 1024
}
