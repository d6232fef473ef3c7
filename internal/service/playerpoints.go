package service

import (
	"context"
	"math"
	"net"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/gorcon/rcon"
	log "github.com/sirupsen/logrus"
)

const (
	DefaultPlayerPointsCommand = "playerpoints give {player} {amount}"
	DefaultRCONPort            = 25575
	DefaultRCONTimeout         = 8 * time.Second
)

// playerHandle matches Minecraft usernames. Only these reach the RCON
// command line.
var playerHandle = regexp.MustCompile(`^[A-Za-z0-9_]{3,16}$`)

func ValidPlayerHandle(name string) bool {
	return playerHandle.MatchString(name)
}

type GrantReason string

const (
	ReasonNotConfigured GrantReason = "NOT_CONFIGURED"
	ReasonNoPlayer      GrantReason = "NO_PLAYER"
	ReasonRCONError     GrantReason = "RCON_ERROR"
)

// GrantOutcome describes one in-game grant attempt. Failures are values,
// never errors: the caller decides whether to log them.
type GrantOutcome struct {
	OK       bool        `json:"ok"`
	Reason   GrantReason `json:"reason,omitempty"`
	Detail   string      `json:"detail,omitempty"`
	Command  string      `json:"command,omitempty"`
	Response string      `json:"response,omitempty"`
}

type RCONConfig struct {
	Host            string
	Port            int
	Password        string
	CommandTemplate string
	Timeout         time.Duration
}

func (c RCONConfig) configured() bool {
	return c.Host != "" && c.Password != ""
}

type rconConn interface {
	Execute(command string) (string, error)
	Close() error
}

type rconDialer func(address, password string, timeout time.Duration) (rconConn, error)

func dialRCON(address, password string, timeout time.Duration) (rconConn, error) {
	conn, err := rcon.Dial(address, password, rcon.SetDialTimeout(timeout), rcon.SetDeadline(timeout))
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// PlayerPointsClient grants in-game currency over a short-lived RCON
// session: one connection, one command, then close.
type PlayerPointsClient struct {
	cfg  RCONConfig
	dial rconDialer
}

func NewPlayerPointsClient(cfg RCONConfig) *PlayerPointsClient {
	if cfg.Port == 0 {
		cfg.Port = DefaultRCONPort
	}
	if cfg.CommandTemplate == "" {
		cfg.CommandTemplate = DefaultPlayerPointsCommand
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultRCONTimeout
	}
	return &PlayerPointsClient{cfg: cfg, dial: dialRCON}
}

// BuildCommand fills {player} and {amount} in the template. Negative or
// zero amounts become 0.
func BuildCommand(template, player string, amount int) string {
	amount = int(math.Max(0, float64(amount)))
	cmd := strings.Replace(template, "{player}", strings.TrimSpace(player), 1)
	return strings.Replace(cmd, "{amount}", strconv.Itoa(amount), 1)
}

func (c *PlayerPointsClient) Grant(ctx context.Context, player string, amount int) GrantOutcome {
	if !c.cfg.configured() {
		return GrantOutcome{Reason: ReasonNotConfigured, Detail: "RCON_HOST/RCON_PASSWORD not set"}
	}

	player = strings.TrimSpace(player)
	if player == "" {
		return GrantOutcome{Reason: ReasonNoPlayer, Detail: "minecraft username is empty"}
	}
	if !ValidPlayerHandle(player) {
		return GrantOutcome{Reason: ReasonNoPlayer, Detail: "invalid handle"}
	}

	cmd := BuildCommand(c.cfg.CommandTemplate, player, amount)

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	resp, err := c.execute(ctx, cmd)
	if err != nil {
		return GrantOutcome{Reason: ReasonRCONError, Detail: err.Error(), Command: cmd}
	}

	log.WithFields(log.Fields{"command": cmd, "response": resp}).Info("rcon command sent")
	return GrantOutcome{OK: true, Command: cmd, Response: resp}
}

func (c *PlayerPointsClient) execute(ctx context.Context, cmd string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	timeout := c.cfg.Timeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}

	addr := net.JoinHostPort(c.cfg.Host, strconv.Itoa(c.cfg.Port))
	conn, err := c.dial(addr, c.cfg.Password, timeout)
	if err != nil {
		return "", err
	}
	defer func() {
		if err := conn.Close(); err != nil {
			log.WithError(err).Debug("rcon close")
		}
	}()

	// Closing the connection unblocks Execute once the context is done.
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	resp, err := conn.Execute(cmd)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", err
	}
	return resp, nil
}
