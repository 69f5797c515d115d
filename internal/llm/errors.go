package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/triad3/irpf-import/internal/domain"
)

// QuotaCode is the error code OpenAI-compatible backends send when the
// account has run out of credits.
const QuotaCode = "insufficient_quota"

// Throttling replies routinely mention "quota" too, so only billing and
// credit wording counts.
var quotaMarkers = []string{
	QuotaCode,
	"billing",
	"credit",
}

// IsQuotaMessage reports whether an upstream error text points at exhausted
// credits or billing rather than short-term throttling.
func IsQuotaMessage(msg string) bool {
	m := strings.ToLower(msg)
	for _, marker := range quotaMarkers {
		if strings.Contains(m, marker) {
			return true
		}
	}
	return false
}

// ClassifyStatus maps an upstream HTTP status and error text to a classified error.
// A 429 is RateLimited unless the backend flagged it as exhausted quota.
// It returns nil for 2xx statuses.
func ClassifyStatus(backend string, status int, msg string, quota bool) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusTooManyRequests && quota:
		return domain.Errorf(domain.CodeQuotaExceeded, "%s: quota exceeded: %s", backend, msg)
	case status == http.StatusTooManyRequests:
		return domain.Errorf(domain.CodeRateLimited, "%s: rate limited: %s", backend, msg)
	case status == http.StatusPaymentRequired:
		return domain.Errorf(domain.CodeQuotaExceeded, "%s: payment required: %s", backend, msg)
	default:
		return domain.Errorf(domain.CodeUpstreamError, "%s: status %d: %s", backend, status, msg)
	}
}

// TransportError classifies a failure that happened before a status was received.
func TransportError(backend string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.NewError(domain.CodeUpstreamError, fmt.Sprintf("%s: request timed out", backend), err)
	}
	return domain.NewError(domain.CodeUpstreamError, fmt.Sprintf("%s: request failed", backend), err)
}
