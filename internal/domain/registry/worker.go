package registry

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"vpntrack-server-go/internal/domain/eventbus"
	platformerrors "vpntrack-server-go/internal/platform/errors"
)

// Human-oriented responses delivered through the chat front-end.
const (
	msgNoApplication = "No application registered, so no reports available"
	msgNoAddress     = "No reported IP addresses for you"
)

// Worker is the single serialized consumer of the command queue and the
// only component that touches the store. One command runs to completion,
// including all store round-trips, before the next is dequeued; that
// discipline is what makes the read-modify-write protocol sequences
// atomic with respect to each other.
type Worker struct {
	store      *Store
	dispatcher *Dispatcher
	logger     *slog.Logger
}

func NewWorker(store *Store, dispatcher *Dispatcher, logger *slog.Logger) *Worker {
	return &Worker{
		store:      store,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// Run seeds the counter once, then drains the queue until the context
// ends. It returns only on cancellation or a fatal startup error; the
// caller treats any return as fatal to the process.
func (w *Worker) Run(ctx context.Context) error {
	if err := w.store.EnsureCounter(ctx); err != nil {
		return err
	}
	w.logger.Info("[WORKER] serving command queue")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case cmd := <-w.dispatcher.commands:
			w.logger.Debug("[WORKER] received command", "kind", cmd.Kind.String())
			switch cmd.Kind {
			case KindIssueCredential:
				w.issueCredential(ctx, cmd)
			case KindReportAddress:
				w.reportAddress(ctx, cmd)
			case KindQueryAddress:
				w.queryAddress(ctx, cmd)
			default:
				cmd.resolve(Result{OK: false, Text: "unsupported command"})
			}
		}
	}
}

// issueCredential returns the user's existing credential when one is
// stored, otherwise mints a new one and registers the application. The
// minted token is handed back even if the registration transaction
// fails; the failure is logged and published so operators can see it.
func (w *Worker) issueCredential(ctx context.Context, cmd Command) {
	userKey := UserKey(cmd.UserID)

	apps, err := w.store.Applications(ctx, userKey)
	if err != nil {
		w.logger.Error("[WORKER] application lookup failed", "err", err)
		cmd.resolve(Result{OK: false, Text: "storage failure"})
		return
	}

	var appKey string
	var appID uint64
	if len(apps) > 0 {
		appKey = apps[0]
		appID, err = appIDFromKey(appKey)
		if err != nil {
			// Stored data this protocol version cannot interpret. Fail
			// the request, not the process.
			w.logger.Error("[WORKER] corrupt application entry", "key", appKey, "err", err)
			cmd.resolve(Result{OK: false, Text: "storage failure"})
			return
		}
		w.logger.Debug("[WORKER] found registered application", "key", appKey)
	} else {
		appID, err = w.store.NextAppID(ctx)
		if err != nil {
			w.logger.Error("[WORKER] counter read failed", "err", err)
			cmd.resolve(Result{OK: false, Text: "storage failure"})
			return
		}
		appKey = AppKey(appID)
		w.logger.Debug("[WORKER] registering new application", "id", appID)
	}

	token, found, err := w.store.Token(ctx, appKey)
	if err != nil {
		w.logger.Error("[WORKER] token read failed", "err", err)
		cmd.resolve(Result{OK: false, Text: "storage failure"})
		return
	}
	if found {
		cmd.resolve(Result{OK: true, Text: token})
		return
	}

	token = GenerateToken(appID, cmd.UserID)
	if err := w.store.RegisterApp(ctx, appKey, userKey, token, cmd.UserID); err != nil {
		// Deliberate: the caller still gets the minted token. A crash
		// before a retried issue would hand out a token the store never
		// recorded, so the failure must stay visible.
		w.logger.Error("[WORKER] registration transaction failed", "err", err)
		eventbus.Publish(eventbus.EventTxFailed, eventbus.TxFailedData{
			UserID: cmd.UserID,
			AppID:  appID,
			Error:  err.Error(),
		})
	} else {
		eventbus.Publish(eventbus.EventCredentialIssued, eventbus.CredentialIssuedData{
			UserID: cmd.UserID,
			AppID:  appID,
		})
	}
	cmd.resolve(Result{OK: true, Text: token})
}

// reportAddress validates the presented credential against the stored
// token byte-for-byte and records the address on success. Failure
// replies never say which part of the credential was wrong.
func (w *Worker) reportAddress(ctx context.Context, cmd Command) {
	appID, err := ParseCredential(cmd.Credential)
	if err != nil {
		w.logger.Warn("[WORKER] credential rejected", "err", err)
		cmd.resolve(Result{OK: false, Text: "invalid credential"})
		return
	}

	appKey := AppKey(appID)
	exists, err := w.store.Exists(ctx, appKey)
	if err != nil {
		w.logger.Error("[WORKER] existence check failed", "err", err)
		cmd.resolve(Result{OK: false, Text: "storage failure"})
		return
	}
	if !exists {
		w.logger.Warn("[WORKER] report for unknown application", "id", appID)
		cmd.resolve(Result{OK: false, Text: "unknown application"})
		return
	}

	stored, found, err := w.store.Token(ctx, appKey)
	if err != nil {
		w.logger.Error("[WORKER] token read failed", "err", err)
		cmd.resolve(Result{OK: false, Text: "storage failure"})
		return
	}
	if !found || stored != cmd.Credential {
		w.logger.Warn("[WORKER] token mismatch", "id", appID)
		cmd.resolve(Result{OK: false, Text: "credential mismatch"})
		return
	}

	addr := cmd.Addr.String()
	if err := w.store.SetAddress(ctx, appKey, addr); err != nil {
		w.logger.Error("[WORKER] address write failed", "err", err)
		cmd.resolve(Result{OK: false, Text: "storage failure"})
		return
	}

	eventbus.Publish(eventbus.EventAddressReported, eventbus.AddressReportedData{
		AppID:   appID,
		Address: addr,
	})
	cmd.resolve(Result{OK: true, Text: "ok"})
}

// queryAddress answers with a human-oriented message; a user without an
// application or without a report gets a fixed message, not an error.
func (w *Worker) queryAddress(ctx context.Context, cmd Command) {
	apps, err := w.store.Applications(ctx, UserKey(cmd.UserID))
	if err != nil {
		w.logger.Error("[WORKER] application lookup failed", "err", err)
		cmd.resolve(Result{OK: false, Text: "storage failure"})
		return
	}
	if len(apps) == 0 {
		w.logger.Debug("[WORKER] no application registered", "user", cmd.UserID)
		cmd.resolve(Result{OK: true, Text: msgNoApplication})
		return
	}

	addr, found, err := w.store.Address(ctx, apps[0])
	if err != nil {
		w.logger.Error("[WORKER] address read failed", "err", err)
		cmd.resolve(Result{OK: false, Text: "storage failure"})
		return
	}
	if !found {
		cmd.resolve(Result{OK: true, Text: msgNoAddress})
		return
	}
	cmd.resolve(Result{OK: true, Text: "Your reported IP is `" + addr + "`"})
}

// appIDFromKey recovers the numeric application id from a stored set
// member such as "app:1000": the first ':'-separated segment that parses
// as an unsigned integer wins.
func appIDFromKey(key string) (uint64, error) {
	for _, part := range strings.Split(key, ":") {
		if id, err := strconv.ParseUint(part, 10, 64); err == nil {
			return id, nil
		}
	}
	return 0, platformerrors.New(
		platformerrors.KindCorrupt, "app_id_from_key",
		"no numeric segment in application key "+key)
}
