// Package telegram hosts the MTProto driver: connection lifecycle and
// login flow, translation of raw updates onto the bus, and the outbound
// RPC adapter behind the neutral client interface.
package telegram

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gotd/td/session"
	gotdtelegram "github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/tg"
	"go.uber.org/zap"

	"gram/internal/bus"
	"gram/internal/status"
)

const defaultAuthTimeout = 3 * time.Minute

// Config holds the MTProto credentials and session location.
type Config struct {
	APIID       int
	APIHash     string
	Phone       string
	Code        string // empty means prompt on stdin
	Password    string // 2FA, optional
	SessionFile string
	AuthTimeout time.Duration
}

// Adapter owns the gotd client and its lifecycle.
type Adapter struct {
	cfg      Config
	client   *gotdtelegram.Client
	peers    *PeerCache
	mapper   *Mapper
	outbound *Outbound
	machine  *status.Machine
	logger   *zap.Logger
}

// New builds the adapter: session storage, gotd client, update mapper and
// outbound RPC wrapper.
func New(cfg Config, peers *PeerCache, b *bus.Bus, machine *status.Machine, logger *zap.Logger) (*Adapter, error) {
	if cfg.APIID <= 0 {
		return nil, fmt.Errorf("telegram: api_id must be > 0")
	}
	if strings.TrimSpace(cfg.APIHash) == "" {
		return nil, fmt.Errorf("telegram: api_hash is required")
	}
	if cfg.AuthTimeout <= 0 {
		cfg.AuthTimeout = defaultAuthTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	storage, err := newSessionStorage(cfg.SessionFile)
	if err != nil {
		return nil, err
	}

	mapper := NewMapper(peers, b, logger.Named("mapper"))
	client := gotdtelegram.NewClient(cfg.APIID, cfg.APIHash, gotdtelegram.Options{
		UpdateHandler:  mapper,
		SessionStorage: storage,
		Logger:         logger.Named("gotd"),
	})

	return &Adapter{
		cfg:      cfg,
		client:   client,
		peers:    peers,
		mapper:   mapper,
		outbound: NewOutbound(client.API(), peers, b, logger.Named("outbound")),
		machine:  machine,
		logger:   logger,
	}, nil
}

// Outbound returns the neutral client implementation.
func (a *Adapter) Outbound() *Outbound {
	return a.outbound
}

// Run connects, authenticates and serves updates until ctx is cancelled.
func (a *Adapter) Run(ctx context.Context) error {
	return a.client.Run(ctx, func(ctx context.Context) error {
		if err := a.authenticate(ctx); err != nil {
			_ = a.machine.Transition(status.Error)
			return err
		}
		_ = a.machine.Transition(status.Connecting)

		self, err := a.client.Self(ctx)
		if err != nil {
			_ = a.machine.Transition(status.Error)
			return fmt.Errorf("resolve self: %w", err)
		}
		a.mapper.SetSelf(self.ID)
		a.outbound.SetSelf(self.ID)
		a.peers.RememberUser(self)
		a.logger.Info("telegram connected", zap.Int64("user_id", self.ID))

		_ = a.machine.Transition(status.Syncing)
		if _, err := a.outbound.FetchChatList(ctx, 0, 0, 100); err != nil {
			a.logger.Warn("initial dialog fetch failed", zap.Error(err))
		}
		_ = a.machine.Transition(status.Ready)

		<-ctx.Done()
		return ctx.Err()
	})
}

// SelfID returns the authorized user's id, zero before login completes.
func (a *Adapter) SelfID() int64 {
	return a.outbound.selfID.Load()
}

func (a *Adapter) authenticate(ctx context.Context) error {
	authCtx, cancel := context.WithTimeout(ctx, a.cfg.AuthTimeout)
	defer cancel()

	stat, err := a.client.Auth().Status(authCtx)
	if err != nil {
		return fmt.Errorf("check auth status: %w", err)
	}
	if stat.Authorized {
		a.logger.Info("session restored", zap.String("session_file", a.cfg.SessionFile))
		return nil
	}

	_ = a.machine.Transition(status.AuthRequired)

	phone := strings.TrimSpace(a.cfg.Phone)
	if phone == "" {
		return fmt.Errorf("telegram phone number is required for login; set phone in config")
	}

	codeAuth := auth.CodeAuthenticatorFunc(func(_ context.Context, _ *tg.AuthSentCode) (string, error) {
		return loginCode(a.cfg.Code)
	})
	var authenticator auth.UserAuthenticator = auth.CodeOnly(phone, codeAuth)
	if password := strings.TrimSpace(a.cfg.Password); password != "" {
		authenticator = auth.Constant(phone, password, codeAuth)
	}

	if err := a.client.Auth().IfNecessary(authCtx, auth.NewFlow(authenticator, auth.SendCodeOptions{})); err != nil {
		return fmt.Errorf("authenticate user: %w", err)
	}
	a.logger.Info("logged in", zap.String("session_file", a.cfg.SessionFile))
	return nil
}

func newSessionStorage(path string) (*session.FileStorage, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("telegram: empty session file path")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve session file path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o700); err != nil {
		return nil, fmt.Errorf("create session directory: %w", err)
	}
	return &session.FileStorage{Path: abs}, nil
}

func loginCode(configured string) (string, error) {
	if code := strings.TrimSpace(configured); code != "" {
		return code, nil
	}
	info, err := os.Stdin.Stat()
	if err != nil {
		return "", fmt.Errorf("read stdin status: %w", err)
	}
	if info.Mode()&os.ModeCharDevice == 0 {
		return "", fmt.Errorf("login code is not configured and stdin is not interactive")
	}
	fmt.Fprint(os.Stdout, "Enter Telegram login code: ")
	code, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("read login code: %w", err)
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return "", fmt.Errorf("empty login code")
	}
	return code, nil
}
