package probe

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/jandubois/usagebar/internal/hostapi"
)

// IssueFunc sends an authenticated request using the given credential.
type IssueFunc func(ctx context.Context, credential string) (*hostapi.Response, error)

// RefreshFunc exchanges an expired credential for a fresh one. It must
// persist the new credential back to its original storage location
// (file, secret store, or probe-owned database) before returning, so
// the next invocation starts from fresh credentials.
type RefreshFunc func(ctx context.Context) (string, error)

// DoWithAuthRetry is the shared retry-on-auth sequence used by every
// probe that talks to an authenticated API:
//
//  1. Issue the request with the current credential.
//  2. A 401 or 403 response triggers refresh, exactly once.
//  3. Reissue the original request once with the refreshed credential.
//  4. Another 401/403, a refresh error, or an empty refreshed
//     credential ends the invocation with a re-authenticate failure.
//
// Network errors pass through untouched; non-auth statuses are the
// caller's to interpret. Concurrent invocations of the same probe may
// independently refresh; there is no cross-invocation locking.
func DoWithAuthRetry(ctx context.Context, provider, credential string, issue IssueFunc, refresh RefreshFunc) (*hostapi.Response, error) {
	resp, err := issue(ctx, credential)
	if err != nil {
		return nil, err
	}
	if !isAuthFailure(resp.Status) {
		return resp, nil
	}

	fresh, err := refresh(ctx)
	if err != nil {
		slog.Warn("credential refresh failed", "provider", provider, "error", err)
		return nil, reauthError(provider)
	}
	if strings.TrimSpace(fresh) == "" {
		slog.Warn("credential refresh returned no credential", "provider", provider)
		return nil, reauthError(provider)
	}

	resp, err = issue(ctx, fresh)
	if err != nil {
		return nil, err
	}
	if isAuthFailure(resp.Status) {
		return nil, reauthError(provider)
	}
	return resp, nil
}

func isAuthFailure(status int) bool {
	return status == http.StatusUnauthorized || status == http.StatusForbidden
}

func reauthError(provider string) error {
	return Errorf("credentials expired, re-authenticate %s", provider)
}
