// Package vault authenticates against HashiCorp Vault with AppRole and keeps
// the resulting token (and optional dynamic database lease) alive.
package vault

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/genesis/internal/server/credentials"
	"github.com/hashicorp/vault/api"
)

const defaultMount = "approle"

// Config describes how to log in.
type Config struct {
	// LoginURL is the full AppRole login URL, e.g.
	// https://vault.tld:8200/v1/auth/approle/login.
	LoginURL     string
	RoleID       string
	SecretID     string
	WrappedToken string
	// DatabasePath, when set, is read after login for dynamic database credentials.
	DatabasePath string
	Timeout      time.Duration
}

// ParseLoginURL splits an AppRole login URL into the Vault address and the
// auth mount. A URL without a /v1/auth/<mount>/login path uses the default
// "approle" mount.
func ParseLoginURL(raw string) (addr, mount string, err error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("parse vault url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", "", fmt.Errorf("vault url %q must be absolute", raw)
	}

	addr = u.Scheme + "://" + u.Host
	path := strings.Trim(u.Path, "/")
	if path == "" {
		return addr, defaultMount, nil
	}

	if !strings.HasPrefix(path, "v1/auth/") || !strings.HasSuffix(path, "/login") {
		return "", "", fmt.Errorf("vault url %q is not an auth login path", raw)
	}
	mount = strings.TrimSuffix(strings.TrimPrefix(path, "v1/auth/"), "/login")
	if mount == "" {
		return "", "", fmt.Errorf("vault url %q has no auth mount", raw)
	}
	return addr, mount, nil
}

// Authenticator logs in and renews leases with the Vault API client.
type Authenticator struct {
	client *api.Client
	mount  string
	cfg    Config
	now    func() time.Time

	mu        sync.Mutex
	unwrapped string
}

func New(cfg Config) (*Authenticator, error) {
	addr, mount, err := ParseLoginURL(cfg.LoginURL)
	if err != nil {
		return nil, err
	}

	config := api.DefaultConfig()
	config.Address = addr
	// retries are owned by the renewal coordinator
	config.MaxRetries = 0
	if cfg.Timeout > 0 {
		config.Timeout = cfg.Timeout
	}

	client, err := api.NewClient(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}
	client.ClearToken()

	return &Authenticator{client: client, mount: mount, cfg: cfg, now: time.Now}, nil
}

// Login performs AppRole login, unwrapping the secret id first when a
// wrapped token is configured.
func (a *Authenticator) Login(ctx context.Context) (*credentials.Lease, error) {
	secretID, err := a.secretID(ctx)
	if err != nil {
		return nil, err
	}

	issued := a.now()
	secret, err := a.client.Logical().WriteWithContext(ctx, fmt.Sprintf("auth/%s/login", a.mount), map[string]interface{}{
		"role_id":   a.cfg.RoleID,
		"secret_id": secretID,
	})
	if err != nil {
		return nil, fmt.Errorf("approle login failed: %w", err)
	}
	if secret == nil || secret.Auth == nil || secret.Auth.ClientToken == "" {
		return nil, errors.New("approle login returned no token")
	}
	a.client.SetToken(secret.Auth.ClientToken)

	lease := &credentials.Lease{
		Token:     secret.Auth.ClientToken,
		TTL:       seconds(secret.Auth.LeaseDuration),
		Renewable: secret.Auth.Renewable,
		IssuedAt:  issued,
	}

	if a.cfg.DatabasePath != "" {
		if err := a.readDatabaseCredential(ctx, lease); err != nil {
			return nil, err
		}
	}
	return lease, nil
}

// Renew extends the client token and the database lease, if any. A token
// that is not renewable is replaced by a fresh login.
func (a *Authenticator) Renew(ctx context.Context, prev *credentials.Lease) (*credentials.Lease, error) {
	if prev == nil || !prev.Renewable {
		return a.Login(ctx)
	}

	issued := a.now()
	secret, err := a.client.Auth().Token().RenewSelfWithContext(ctx, 0)
	if err != nil {
		return nil, fmt.Errorf("token renewal failed: %w", err)
	}
	if secret == nil || secret.Auth == nil {
		return nil, errors.New("token renewal returned no auth")
	}

	next := &credentials.Lease{
		Token:     prev.Token,
		TTL:       seconds(secret.Auth.LeaseDuration),
		Renewable: secret.Auth.Renewable,
		IssuedAt:  issued,
		LeaseID:   prev.LeaseID,
		Database:  prev.Database,
	}

	if prev.LeaseID != "" {
		ls, err := a.client.Sys().RenewWithContext(ctx, prev.LeaseID, 0)
		if err != nil {
			return nil, fmt.Errorf("database lease renewal failed: %w", err)
		}
		if ls == nil {
			return nil, errors.New("database lease renewal returned nothing")
		}
		next.TTL = minTTL(next.TTL, seconds(ls.LeaseDuration))
	}
	return next, nil
}

// secretID returns the configured secret id. A wrapping token is single-use,
// so it is unwrapped once and the result is kept for later logins.
func (a *Authenticator) secretID(ctx context.Context) (string, error) {
	if a.cfg.WrappedToken == "" {
		return a.cfg.SecretID, nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.unwrapped != "" {
		return a.unwrapped, nil
	}
	id, err := a.unwrapSecretID(ctx)
	if err != nil {
		return "", err
	}
	a.unwrapped = id
	return id, nil
}

func (a *Authenticator) unwrapSecretID(ctx context.Context) (string, error) {
	secret, err := a.client.Logical().UnwrapWithContext(ctx, a.cfg.WrappedToken)
	if err != nil {
		return "", fmt.Errorf("unwrap secret id failed: %w", err)
	}
	if secret == nil || secret.Data == nil {
		return "", errors.New("unwrap returned no data")
	}
	id, ok := secret.Data["secret_id"].(string)
	if !ok || id == "" {
		return "", errors.New("wrapped response carries no secret_id")
	}
	return id, nil
}

func (a *Authenticator) readDatabaseCredential(ctx context.Context, lease *credentials.Lease) error {
	secret, err := a.client.Logical().ReadWithContext(ctx, a.cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("read database credentials: %w", err)
	}
	if secret == nil || secret.Data == nil {
		return fmt.Errorf("no database credentials at %s", a.cfg.DatabasePath)
	}

	user, _ := secret.Data["username"].(string)
	pass, _ := secret.Data["password"].(string)
	if user == "" {
		return fmt.Errorf("database credentials at %s have no username", a.cfg.DatabasePath)
	}

	lease.Database = &credentials.DatabaseCredential{Username: user, Password: pass}
	lease.LeaseID = secret.LeaseID
	lease.TTL = minTTL(lease.TTL, seconds(secret.LeaseDuration))
	return nil
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

// minTTL returns the shorter of two TTLs, treating zero as "no expiry".
func minTTL(a, b time.Duration) time.Duration {
	switch {
	case a <= 0:
		return b
	case b <= 0:
		return a
	case b < a:
		return b
	default:
		return a
	}
}
