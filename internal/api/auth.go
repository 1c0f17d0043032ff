package api

import (
	"context"
	"crypto/subtle"
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/frenetico9/Navalha.Digital/internal/config"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	apiKeyHeaderDefault   = "x-api-key"
	apiExtraHeaderDefault = "x-api-extra"
	clientKeyUnknown      = "unknown"
)

// Разрешения API-ключей
const (
	permReadAvailability  = "read:availability"
	permReadShops         = "read:shops"
	permWriteShops        = "write:shops"
	permReadClients       = "read:clients"
	permWriteClients      = "write:clients"
	permReadAppointments  = "read:appointments"
	permWriteAppointments = "write:appointments"
	permWriteReviews      = "write:reviews"
	permExportReports     = "export:reports"
	permReadHealth        = "read:health"
)

var (
	errMissingKey       = errors.New("missing api key headers")
	errInvalidKey       = errors.New("invalid api key")
	errInvalidExtra     = errors.New("invalid extra header")
	errPermissionDenied = errors.New("permission denied")
	errRateLimited      = errors.New("rate limit exceeded")
)

// keyring validates api key pairs and their permissions for both transports.
type keyring struct {
	cfg         config.APIAuthConfig
	keyHeader   string
	extraHeader string
	clients     map[string]config.APIClientKey
}

func newKeyring(cfg config.APIAuthConfig) *keyring {
	k := &keyring{
		cfg:         cfg,
		keyHeader:   headerOrDefault(cfg.HeaderAPIKey, apiKeyHeaderDefault),
		extraHeader: headerOrDefault(cfg.HeaderExtra, apiExtraHeaderDefault),
		clients:     make(map[string]config.APIClientKey, len(cfg.APIKeys)),
	}
	for _, c := range cfg.APIKeys {
		k.clients[c.Key] = c
	}
	return k
}

func headerOrDefault(h, def string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	if h == "" {
		return def
	}
	return h
}

// authenticate checks the key pair and that the client holds required.
// An empty permission list on a key means allow-all.
func (k *keyring) authenticate(apiKey, extra, required string) (config.APIClientKey, error) {
	if apiKey == "" || extra == "" {
		return config.APIClientKey{}, errMissingKey
	}
	client, ok := k.clients[apiKey]
	if !ok {
		return config.APIClientKey{}, errInvalidKey
	}
	if subtle.ConstantTimeCompare([]byte(client.Extra), []byte(extra)) != 1 {
		return config.APIClientKey{}, errInvalidExtra
	}
	if required == "" || len(client.Permissions) == 0 {
		return client, nil
	}
	for _, p := range client.Permissions {
		if strings.TrimSpace(p) == required {
			return client, nil
		}
	}
	return client, errPermissionDenied
}

// AuthInterceptor guards gRPC calls with the configured api keys and rate limit.
type AuthInterceptor struct {
	keys    *keyring
	limiter *rateLimiter
}

func NewAuthInterceptor(cfg *config.APIConfig) *AuthInterceptor {
	return &AuthInterceptor{
		keys:    newKeyring(cfg.Auth),
		limiter: newRateLimiter(cfg.RateLimit),
	}
}

func (a *AuthInterceptor) Unary() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if err := a.check(ctx, info.FullMethod); err != nil {
			return nil, err
		}
		return handler(ctx, req)
	}
}

func (a *AuthInterceptor) Stream() grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		if err := a.check(ss.Context(), info.FullMethod); err != nil {
			return err
		}
		return handler(srv, ss)
	}
}

func (a *AuthInterceptor) check(ctx context.Context, fullMethod string) error {
	if a.keys.cfg.Enabled {
		apiKey := first(metadataValues(ctx, a.keys.keyHeader))
		extra := first(metadataValues(ctx, a.keys.extraHeader))
		_, err := a.keys.authenticate(apiKey, extra, requiredPermission(fullMethod))
		switch {
		case errors.Is(err, errPermissionDenied):
			return status.Error(codes.PermissionDenied, err.Error())
		case err != nil:
			return status.Error(codes.Unauthenticated, err.Error())
		}
	}
	if !a.limiter.allow(a.clientKey(ctx)) {
		return status.Error(codes.ResourceExhausted, errRateLimited.Error())
	}
	return nil
}

func requiredPermission(fullMethod string) string {
	switch {
	case strings.HasPrefix(fullMethod, "/grpc.health.v1.Health/"):
		return permReadHealth
	default:
		return ""
	}
}

func (a *AuthInterceptor) clientKey(ctx context.Context) string {
	if apiKey := first(metadataValues(ctx, a.keys.keyHeader)); apiKey != "" {
		return apiKey
	}
	return peerAddr(ctx)
}

func first(vals []string) string {
	if len(vals) == 0 {
		return ""
	}
	return strings.TrimSpace(vals[0])
}

// HTTPAuth provides API-key auth and per-key rate limiting for HTTP routes.
type HTTPAuth struct {
	keys    *keyring
	limiter *rateLimiter
}

func NewHTTPAuth(cfg config.APIConfig) *HTTPAuth {
	return &HTTPAuth{
		keys:    newKeyring(cfg.Auth),
		limiter: newRateLimiter(cfg.RateLimit),
	}
}

// Require wraps a route that needs the given permission.
func (a *HTTPAuth) Require(permission string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.keys.cfg.Enabled {
			apiKey := strings.TrimSpace(r.Header.Get(a.keys.keyHeader))
			extra := strings.TrimSpace(r.Header.Get(a.keys.extraHeader))
			if _, err := a.keys.authenticate(apiKey, extra, permission); err != nil {
				code := http.StatusUnauthorized
				if errors.Is(err, errPermissionDenied) {
					code = http.StatusForbidden
				}
				writeError(w, code, err.Error())
				return
			}
		}

		if !a.limiter.allow(a.clientKey(r)) {
			writeError(w, http.StatusTooManyRequests, errRateLimited.Error())
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (a *HTTPAuth) clientKey(r *http.Request) string {
	if apiKey := strings.TrimSpace(r.Header.Get(a.keys.keyHeader)); apiKey != "" {
		return apiKey
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	return clientKeyUnknown
}
