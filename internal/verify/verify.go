// Package verify confirms the deployed service is actually reachable
// from the host after reboot: daemon process up, port forward in place,
// HTTP endpoint answering within a bounded budget.
//
// Verification failure is reported, never fatal: by this point the
// deployment itself is complete, the operator just cannot see the
// service yet.
package verify

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rayhunter-dev/installer/internal/config"
	"github.com/rayhunter-dev/installer/internal/device"
	"github.com/rayhunter-dev/installer/internal/errors"
	"github.com/rayhunter-dev/installer/internal/logging"
)

// daemonProcess is the process name to look for on the device.
const daemonProcess = "rayhunter-daemon"

// Verifier checks end-to-end reachability of the deployed service.
type Verifier struct {
	session *device.Session
	cfg     config.VerifyConfig
	log     *logging.Logger

	// probe is swappable for tests; the default issues an HTTP GET and
	// treats any response, whatever the status, as proof of life.
	probe func(ctx context.Context, url string) error
}

// New creates a Verifier for the given session.
func New(session *device.Session, cfg config.VerifyConfig, log *logging.Logger) *Verifier {
	return &Verifier{
		session: session,
		cfg:     cfg,
		log:     log.WithStage("verify"),
		probe:   httpProbe,
	}
}

// Verify ensures the daemon is running, the port forward exists, and the
// HTTP endpoint answers within the budget. On budget lapse it returns a
// VerifyError, which the CLI maps to its own exit status.
func (v *Verifier) Verify(ctx context.Context) error {
	dev := v.session.Device()

	if !v.session.ProcessRunning(ctx, daemonProcess) {
		v.log.Info("daemon not running, starting it", "unit", "rayhunter_daemon")
		if _, err := v.session.Root(ctx, dev.InitDir+"/rayhunter_daemon start"); err != nil {
			if errors.IsFatal(err) {
				return err
			}
			v.log.Warn("daemon start reported failure, probing anyway", "error", err.Error())
		}
	}

	if err := v.session.EnsureForward(ctx, v.cfg.Port); err != nil {
		if errors.IsFatal(err) {
			return err
		}
		return errors.NewVerifyError(v.cfg.Port, v.cfg.Budget, err)
	}

	url := fmt.Sprintf("http://localhost:%d/", v.cfg.Port)
	deadline := time.Now().Add(v.cfg.Budget)

	v.log.Info("probing service", "url", url, "budget", v.cfg.Budget.String())
	for {
		if err := v.probe(ctx, url); err == nil {
			v.log.Info("service reachable", "url", url)
			return nil
		}

		if time.Now().After(deadline) {
			return errors.NewVerifyError(v.cfg.Port, v.cfg.Budget, nil)
		}

		select {
		case <-ctx.Done():
			return errors.Wrap(errors.ErrCanceled, "probing service")
		case <-time.After(v.cfg.Interval):
		}
	}
}

// httpProbe issues one GET against the forwarded port. Reaching the
// server at all is success; status codes are the daemon's business.
func httpProbe(ctx context.Context, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}
