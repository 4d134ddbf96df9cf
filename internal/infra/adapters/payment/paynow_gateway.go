package payment

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"paynow-client/internal/domain"
	"paynow-client/internal/domain/ports/adapter"
	"paynow-client/internal/infra/metrics"
)

var _ adapter.PaymentTransport = (*PaynowGateway)(nil)

const maxReplyBytes = 1 << 20

// PaynowGateway posts form bodies to the Paynow interface over HTTP. It does
// not sign, parse or verify anything.
type PaynowGateway struct {
	base   *url.URL
	client *http.Client
	logger *zerolog.Logger
}

// NewPaynowGateway builds a transport rooted at baseURL, e.g.
// https://www.paynow.co.zw/interface/.
func NewPaynowGateway(baseURL string, timeout time.Duration, logger *zerolog.Logger) (*PaynowGateway, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, errors.New("paynow base url must be absolute")
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &PaynowGateway{
		base:   u,
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}, nil
}

func (g *PaynowGateway) Name() string { return "paynow" }

// resolve turns an endpoint into a URL. Absolute poll URLs must stay on the
// gateway host.
func (g *PaynowGateway) resolve(endpoint string) (target, label string, err error) {
	ref, err := url.Parse(endpoint)
	if err != nil {
		return "", "", fmt.Errorf("%w: bad endpoint", domain.ErrInvalidArgument)
	}
	if ref.IsAbs() {
		if !strings.EqualFold(ref.Host, g.base.Host) {
			return "", "", fmt.Errorf("%w: poll url host %q is not the gateway host", domain.ErrInvalidArgument, ref.Host)
		}
		return ref.String(), "poll", nil
	}
	return g.base.ResolveReference(ref).String(), strings.Trim(endpoint, "/"), nil
}

func (g *PaynowGateway) Post(ctx context.Context, endpoint string, form string) ([]byte, error) {
	target, label, err := g.resolve(endpoint)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, strings.NewReader(form))
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", domain.ErrTransport, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "text/plain")

	start := time.Now()
	resp, err := g.client.Do(req)
	if err != nil {
		metrics.ObserveGatewayCall(label, time.Since(start), false)
		g.logger.Warn().Err(err).Str("endpoint", label).Msg("paynow request failed")
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrTransport, label, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxReplyBytes))
	elapsed := time.Since(start)
	ok := err == nil && resp.StatusCode >= 200 && resp.StatusCode < 300
	metrics.ObserveGatewayCall(label, elapsed, ok)
	g.logger.Debug().
		Str("endpoint", label).
		Int("status", resp.StatusCode).
		Dur("duration", elapsed).
		Msg("paynow request")

	if err != nil {
		return nil, fmt.Errorf("%w: %s: read body: %v", domain.ErrTransport, label, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s returned HTTP %d", domain.ErrTransport, label, resp.StatusCode)
	}
	return body, nil
}
