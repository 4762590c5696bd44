package service

import (
	"context"
	"net/http"
	"strings"
	"time"

	"calendar-mirror/internal/domain"
)

// ChangeState is the outcome of a lightweight change probe.
type ChangeState int

const (
	// Changed means the remote calendar differs from what we last synced.
	Changed ChangeState = iota
	// Unchanged means the remote cache validators still match.
	Unchanged
	// Indeterminate means the probe itself failed and nothing is known.
	Indeterminate
)

func (s ChangeState) String() string {
	switch s {
	case Changed:
		return "changed"
	case Unchanged:
		return "unchanged"
	default:
		return "indeterminate"
	}
}

// ShouldFetch is the fail-open policy: a probe that could not determine
// anything resolves to Changed, because missing an update is worse than one
// extra fetch.
func ShouldFetch(state ChangeState) bool {
	return state != Unchanged
}

// Detection carries the probe outcome together with the validators the
// remote returned, so a skipped fetch can still refresh sync metadata.
type Detection struct {
	State        ChangeState
	Etag         string
	LastModified string
}

const probeTimeout = 10 * time.Second

// ChangeDetector decides whether a subscription needs a full refetch by
// issuing a HEAD request and comparing cache validators against the ones
// stored on the subscription.
type ChangeDetector struct {
	client *http.Client
}

func NewChangeDetector(client *http.Client) *ChangeDetector {
	if client == nil {
		client = &http.Client{Timeout: probeTimeout}
	}
	return &ChangeDetector{client: client}
}

func (d *ChangeDetector) Check(ctx context.Context, sub *domain.Subscription, url string) Detection {
	if sub.NeverSynced() {
		return Detection{State: Changed}
	}

	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return Detection{State: Indeterminate}
	}
	if sub.LastEtag != "" {
		req.Header.Set("If-None-Match", sub.LastEtag)
	}
	if sub.LastModified != "" {
		req.Header.Set("If-Modified-Since", sub.LastModified)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return Detection{State: Indeterminate}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified {
		return Detection{State: Unchanged, Etag: sub.LastEtag, LastModified: sub.LastModified}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Detection{State: Indeterminate}
	}

	etag := resp.Header.Get("ETag")
	lastModified := resp.Header.Get("Last-Modified")
	detection := Detection{Etag: etag, LastModified: lastModified}

	switch {
	case etag == "" && lastModified == "":
		// Provider offers no validators; we can never prove freshness.
		detection.State = Changed
	case etag != "" && etag == sub.LastEtag:
		detection.State = Unchanged
	case etag == "" && lastModified == sub.LastModified:
		detection.State = Unchanged
	default:
		detection.State = Changed
	}

	return detection
}

// NormalizeSubscriptionURL rewrites the webcal scheme many calendar apps
// publish to plain https.
func NormalizeSubscriptionURL(url string) string {
	if strings.HasPrefix(url, "webcal://") {
		return "https://" + strings.TrimPrefix(url, "webcal://")
	}
	return url
}
