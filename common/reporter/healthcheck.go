// SPDX-FileCopyrightText: 2022 Free Mobile
// SPDX-License-Identifier: AGPL-3.0-only

package reporter

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// HealthcheckStatus is the status of a component. Higher values are
// worse.
type HealthcheckStatus int

const (
	// HealthcheckOK means the component works as expected
	HealthcheckOK HealthcheckStatus = iota
	// HealthcheckWarning means the component works in a degraded way
	HealthcheckWarning
	// HealthcheckError means the component does not work
	HealthcheckError
)

var healthcheckStatusNames = [...]string{
	HealthcheckOK:      "ok",
	HealthcheckWarning: "warning",
	HealthcheckError:   "error",
}

func (hs HealthcheckStatus) String() string {
	if hs < 0 || int(hs) >= len(healthcheckStatusNames) {
		return "unknown"
	}
	return healthcheckStatusNames[hs]
}

// MarshalText turns a status into text.
func (hs HealthcheckStatus) MarshalText() ([]byte, error) {
	return []byte(hs.String()), nil
}

// HealthcheckResult is the outcome of a single healthcheck.
type HealthcheckResult struct {
	Status HealthcheckStatus `json:"status"`
	Reason string            `json:"reason"`
}

// MultipleHealthcheckResults is the outcome of all healthchecks. The
// global status is the worst one.
type MultipleHealthcheckResults struct {
	Status  HealthcheckStatus            `json:"status"`
	Details map[string]HealthcheckResult `json:"details,omitempty"`
}

// HealthcheckFunc checks the health of a component.
type HealthcheckFunc func(context.Context) HealthcheckResult

// RegisterHealthcheck registers a healthcheck. A previous healthcheck
// with the same name is replaced.
func (r *Reporter) RegisterHealthcheck(name string, hf HealthcheckFunc) {
	r.healthchecksLock.Lock()
	defer r.healthchecksLock.Unlock()
	r.healthchecks[name] = hf
}

// RunHealthchecks runs all healthchecks concurrently. A healthcheck
// still running when ctx is done is reported as an error.
func (r *Reporter) RunHealthchecks(ctx context.Context) MultipleHealthcheckResults {
	r.healthchecksLock.Lock()
	checks := make(map[string]HealthcheckFunc, len(r.healthchecks))
	for name, hf := range r.healthchecks {
		checks[name] = hf
	}
	r.healthchecksLock.Unlock()

	type answer struct {
		name   string
		result HealthcheckResult
	}
	answers := make(chan answer, len(checks))
	for name, hf := range checks {
		go func() {
			answers <- answer{name, hf(ctx)}
		}()
	}

	results := MultipleHealthcheckResults{
		Status:  HealthcheckOK,
		Details: make(map[string]HealthcheckResult, len(checks)),
	}
collect:
	for range checks {
		select {
		case a := <-answers:
			results.Details[a.name] = a.result
		case <-ctx.Done():
			break collect
		}
	}
	for name := range checks {
		if _, ok := results.Details[name]; !ok {
			results.Details[name] = HealthcheckResult{HealthcheckError, "timeout during check"}
		}
		if status := results.Details[name].Status; status > results.Status {
			results.Status = status
		}
	}
	return results
}

// HealthcheckHTTPHandler answers with the healthcheck results. The
// status code is 503 when a component is in error.
func (r *Reporter) HealthcheckHTTPHandler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()
	results := r.RunHealthchecks(ctx)
	code := http.StatusOK
	if results.Status == HealthcheckError {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, results)
}

// ChannelHealthcheckFunc is sent to a component, which calls it to
// report its status.
type ChannelHealthcheckFunc func(HealthcheckStatus, string)

// ChannelHealthcheck returns a healthcheck sending a
// ChannelHealthcheckFunc over contact. The component is alive if it
// receives it and calls it in time. ctx is the lifetime of the
// component: once done, the component is reported as dead.
func ChannelHealthcheck(ctx context.Context, contact chan<- ChannelHealthcheckFunc) HealthcheckFunc {
	return func(checkCtx context.Context) HealthcheckResult {
		answer := make(chan HealthcheckResult, 1)
		reply := func(status HealthcheckStatus, reason string) {
			select {
			case answer <- HealthcheckResult{status, reason}:
			default:
			}
		}
		interrupted := func() (HealthcheckResult, bool) {
			select {
			case <-ctx.Done():
				return HealthcheckResult{HealthcheckError, "dead"}, true
			case <-checkCtx.Done():
				return HealthcheckResult{HealthcheckError, "timeout"}, true
			default:
				return HealthcheckResult{}, false
			}
		}

		select {
		case contact <- reply:
		case <-ctx.Done():
		case <-checkCtx.Done():
		}
		if result, ok := interrupted(); ok {
			return result
		}
		select {
		case result := <-answer:
			return result
		case <-ctx.Done():
		case <-checkCtx.Done():
		}
		result, _ := interrupted()
		return result
	}
}
