// Package collector gathers per-address network traffic from nfsen hosts
// over SSH.
package collector

import (
	"context"
	"errors"
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/pricing/backend/internal/infrastructure/config"
	"github.com/pricing/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

var (
	// ErrRemoteCommand is returned when a remote command fails or writes to stderr
	ErrRemoteCommand = errors.New("remote command failed")
	// ErrUnknownDataFormat is returned for nfdump output that cannot be parsed
	ErrUnknownDataFormat = errors.New("unknown data format")
	// ErrNotConfigured is returned when hosts, channels or class addresses are missing
	ErrNotConfigured = errors.New("collector not configured")
)

// CommandRunner runs shell commands on one remote host
type CommandRunner interface {
	Run(ctx context.Context, command string) (stdout, stderr []byte, err error)
	Close() error
}

// Dialer opens a CommandRunner to a host
type Dialer func(ctx context.Context, host config.CollectorHost) (CommandRunner, error)

// NfsenCollector sums the bytes sent and received by every accounted address
// across all hosts, channels and directions.
type NfsenCollector struct {
	cfg     config.CollectorConfig
	classes []*regexp.Regexp
	dial    Dialer
	logger  *zap.Logger
}

// Option configures a NfsenCollector
type Option func(*NfsenCollector)

// WithDialer replaces the SSH dialer
func WithDialer(d Dialer) Option {
	return func(c *NfsenCollector) {
		c.dial = d
	}
}

// NewNfsenCollector creates a collector from configuration
func NewNfsenCollector(cfg config.CollectorConfig, logger *zap.Logger, opts ...Option) (*NfsenCollector, error) {
	switch {
	case len(cfg.Hosts) == 0:
		return nil, fmt.Errorf("%w: no hosts", ErrNotConfigured)
	case len(cfg.Channels) == 0:
		return nil, fmt.Errorf("%w: no channels", ErrNotConfigured)
	case len(cfg.ClassAddresses) == 0:
		return nil, fmt.Errorf("%w: no class addresses", ErrNotConfigured)
	}

	classes := make([]*regexp.Regexp, 0, len(cfg.ClassAddresses))
	for _, expr := range cfg.ClassAddresses {
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("invalid class address %q: %w", expr, err)
		}
		classes = append(classes, re)
	}

	c := &NfsenCollector{
		cfg:     cfg,
		classes: classes,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.dial == nil {
		if cfg.KnownHostsFile == "" {
			logger.Warn("Collector host keys are not verified, set collector.known_hosts_file",
				zap.Int("hosts", len(cfg.Hosts)))
		}
		dial, err := SSHDialer(cfg.KnownHostsFile, cfg.ConnectTimeout)
		if err != nil {
			return nil, err
		}
		c.dial = dial
	}
	return c, nil
}

// Collect returns the bytes per address for day. Any failure on any host
// fails the whole day; no partial result is returned.
func (c *NfsenCollector) Collect(ctx context.Context, day time.Time) (map[string]int64, error) {
	ctx, span := telemetry.StartSpan(ctx, "collector.collect",
		telemetry.SpanAttrDay, day)
	defer span.End()

	usages := make(map[string]int64)
	for _, host := range c.cfg.Hosts {
		if err := c.collectHost(ctx, host, day, usages); err != nil {
			telemetry.RecordError(span, err)
			return nil, fmt.Errorf("collect from %s: %w", host.Address, err)
		}
	}
	telemetry.SetAttributes(span, "addresses", len(usages))
	return usages, nil
}

func (c *NfsenCollector) collectHost(ctx context.Context, host config.CollectorHost, day time.Time, usages map[string]int64) error {
	ctx, span := telemetry.StartSpan(ctx, "collector.host", telemetry.SpanAttrHost, host.Address)
	defer span.End()

	runner, err := c.dial(ctx, host)
	if err != nil {
		telemetry.RecordError(span, err)
		return err
	}
	defer func() {
		if cerr := runner.Close(); cerr != nil {
			c.logger.Debug("Failed to close collector session", zap.String("host", host.Address), zap.Error(cerr))
		}
	}()

	for _, channel := range c.cfg.Channels {
		files, err := c.listFiles(ctx, runner, channel, day)
		if err != nil {
			return err
		}
		if len(files) == 0 {
			c.logger.Warn("No capture files for channel",
				zap.String("host", host.Address),
				zap.String("channel", channel),
				zap.String("day", day.Format("2006-01-02")),
			)
			continue
		}
		for _, dir := range Directions {
			c.logger.Debug("Collecting network usage",
				zap.String("host", host.Address),
				zap.String("channel", channel),
				zap.String("direction", string(dir)),
			)
			if err := c.collectDirection(ctx, runner, channel, day, files, dir, usages); err != nil {
				return err
			}
		}
	}
	return nil
}

func (c *NfsenCollector) listFiles(ctx context.Context, runner CommandRunner, channel string, day time.Time) ([]string, error) {
	dir := path.Join(c.cfg.DataDir, channel, day.Format("2006/01/02")) + "/"
	out, err := c.run(ctx, runner, "ls "+dir)
	if err != nil {
		return nil, err
	}
	return parseListing(out), nil
}

func (c *NfsenCollector) collectDirection(ctx context.Context, runner CommandRunner, channel string, day time.Time, files []string, dir Direction, usages map[string]int64) error {
	out, err := c.run(ctx, runner, nfdumpCommand(c.cfg.DataDir, channel, day, files, dir))
	if err != nil {
		return err
	}

	for _, row := range nfdumpRecords(out) {
		cells, err := parseRecord(row)
		if err != nil {
			return err
		}
		address := recordAddress(cells, dir)
		if !c.accounted(address) {
			continue
		}
		n, err := parseBytes(cells[2])
		if err != nil {
			return err
		}
		usages[address] += n
	}
	return nil
}

func (c *NfsenCollector) accounted(address string) bool {
	for _, re := range c.classes {
		if re.MatchString(address) {
			return true
		}
	}
	return false
}

// run executes one command under the command timeout. Output on stderr is
// treated as a failure even when the command exits cleanly.
func (c *NfsenCollector) run(ctx context.Context, runner CommandRunner, command string) ([]byte, error) {
	if c.cfg.CommandTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.CommandTimeout)
		defer cancel()
	}

	stdout, stderr, err := runner.Run(ctx, command)
	if msg := strings.TrimSpace(string(stderr)); msg != "" {
		return nil, fmt.Errorf("%w: %s: %s", ErrRemoteCommand, command, msg)
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrRemoteCommand, command, ctx.Err())
		}
		return nil, fmt.Errorf("%w: %s: %w", ErrRemoteCommand, command, err)
	}
	return stdout, nil
}

// nfdumpCommand aggregates the day's capture files by address in one direction
func nfdumpCommand(dataDir, channel string, day time.Time, files []string, dir Direction) string {
	dayDir := day.Format("2006/01/02")
	return fmt.Sprintf(`nfdump -M %s  -T  -R %s/%s:%s/%s -a  -A %s -o "fmt:%%sa | %%da | %%byt"`,
		path.Join(dataDir, channel), dayDir, files[0], dayDir, files[len(files)-1], dir)
}
