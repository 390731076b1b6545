package adapters

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/NordCoder/Trustwatch/internal/domain/trust"
)

// OpenAttestationName is the baseline adapter; its check can not be deleted.
const OpenAttestationName = "OpenAttestation"

type attestationReply struct {
	Host  string `json:"hostname"`
	Level string `json:"trust_lvl"`
}

// Attestation asks a remote attestation service for the trust level of a host.
type Attestation struct {
	log    *zap.Logger
	client *http.Client
	base   *url.URL
	ua     string
}

func NewAttestation(log *zap.Logger, client *http.Client, cfg AttestationConfig) (*Attestation, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, err
	}
	if base.Scheme == "" {
		base.Scheme = "http"
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Attestation{
		log:    log.With(zap.String("component", "adapter.attestation")),
		client: client,
		base:   base,
		ua:     cfg.UserAgent,
	}, nil
}

func (a *Attestation) endpoint(host string, c trust.Criteria) string {
	u := *a.base
	if c.Server != "" {
		u.Host = c.Server
		if c.Port > 0 {
			u.Host = net.JoinHostPort(c.Server, strconv.Itoa(c.Port))
		}
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/hosts/" + url.PathEscape(host) + "/trust"
	return u.String()
}

func (a *Attestation) IsTrusted(ctx context.Context, host string, c trust.Criteria) (bool, string) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.endpoint(host, c), nil)
	if err != nil {
		a.log.Warn("build request", zap.String("host", host), zap.Error(err))
		return false, trust.StatusError
	}
	req.Header.Set("Accept", "application/json")
	if a.ua != "" {
		req.Header.Set("User-Agent", a.ua)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return false, trust.StatusTimeout
		}
		a.log.Debug("attestation request failed", zap.String("host", host), zap.Error(err))
		return false, trust.StatusError
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		a.log.Debug("attestation non-2xx", zap.String("host", host), zap.Int("code", resp.StatusCode))
		return false, trust.StatusError
	}

	var reply attestationReply
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&reply); err != nil {
		a.log.Debug("attestation decode", zap.String("host", host), zap.Error(err))
		return false, trust.StatusError
	}

	lvl := trust.Level(strings.ToLower(strings.TrimSpace(reply.Level)))
	switch lvl {
	case trust.LevelTrusted, trust.LevelUntrusted, trust.LevelUnknown:
	default:
		return false, trust.StatusError
	}
	required := c.Required
	if required == "" {
		required = trust.LevelTrusted
	}
	return lvl == required, string(lvl)
}
