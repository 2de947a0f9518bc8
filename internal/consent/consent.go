// Package consent gates which launch configurations an untrusted caller may
// start.
//
// Approval state lives in an injected Store so it survives process restarts:
// set membership is the sole source of truth for "pre-approved", and absence
// means "ask", not "deny". The interactive prompt is an injected Prompter;
// dismissal, failure, or timeout all count as denial.
package consent

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"github.com/dapguard/dapguard/internal/audit"
)

// Storage keys.
const (
	keyApproved        = "approvedConfigurations"
	keyConsentRequired = "consentRequired"
)

// Decision is the outcome of one interactive consent prompt.
type Decision int

const (
	// Deny blocks the launch. Prompt dismissal and timeout map here.
	Deny Decision = iota
	// ApproveOnce permits this call only; nothing is persisted.
	ApproveOnce
	// ApproveAlways permits the call and persists the configuration name.
	ApproveAlways
)

// String returns the audit-log form of the decision.
func (d Decision) String() string {
	switch d {
	case ApproveOnce:
		return "approveOnce"
	case ApproveAlways:
		return "approveAlways"
	default:
		return "deny"
	}
}

// Prompter asks the user to approve launching a named configuration.
// Implementations must issue exactly one prompt per call and fail closed.
type Prompter interface {
	PromptConsent(ctx context.Context, configuration string) Decision
}

// PrompterFunc adapts a function to the Prompter interface.
type PrompterFunc func(ctx context.Context, configuration string) Decision

func (f PrompterFunc) PromptConsent(ctx context.Context, configuration string) Decision {
	return f(ctx, configuration)
}

// DenyAll is the fail-closed Prompter used when no interactive surface is
// available.
func DenyAll() Prompter {
	return PrompterFunc(func(context.Context, string) Decision { return Deny })
}

// Authority is the consent state machine. It is the only writer of the
// approved-configuration set.
type Authority struct {
	mu       sync.Mutex
	store    Store
	prompter Prompter
	log      *audit.Logger
}

// NewAuthority creates an Authority over the given store and prompter.
func NewAuthority(store Store, prompter Prompter, log *audit.Logger) *Authority {
	if prompter == nil {
		prompter = DenyAll()
	}
	if log == nil {
		log = audit.Nop()
	}
	return &Authority{store: store, prompter: prompter, log: log}
}

// ConsentRequired reports the global flag. Default is true; when false every
// configuration is treated as approved without prompting.
func (a *Authority) ConsentRequired() bool {
	v, ok := a.store.Get(keyConsentRequired)
	if !ok {
		return true
	}
	return v != "false"
}

// ConsentConfigured reports whether the flag has ever been persisted.
func (a *Authority) ConsentConfigured() bool {
	_, ok := a.store.Get(keyConsentRequired)
	return ok
}

// SetConsentRequired persists the global flag.
func (a *Authority) SetConsentRequired(required bool) error {
	v := "true"
	if !required {
		v = "false"
	}
	return a.store.Set(keyConsentRequired, v)
}

// CanUse authorizes starting the named configuration. Pre-approved names
// pass without a prompt; otherwise exactly one prompt is issued for this
// call. "Approve once" grants the current call only; the same name prompts
// again on the next call.
func (a *Authority) CanUse(ctx context.Context, name string) bool {
	if !a.ConsentRequired() {
		return true
	}
	if a.IsApproved(name) {
		return true
	}

	decision := a.prompter.PromptConsent(ctx, name)
	a.log.Consent(name, decision.String())

	switch decision {
	case ApproveAlways:
		if err := a.Approve(name); err != nil {
			a.log.Diag("persist approval", err)
		}
		return true
	case ApproveOnce:
		return true
	default:
		return false
	}
}

// IsApproved reports whether name is in the persisted approval set.
func (a *Authority) IsApproved(name string) bool {
	for _, n := range a.Approved() {
		if n == name {
			return true
		}
	}
	return false
}

// Approved returns the persisted approval set, sorted.
func (a *Authority) Approved() []string {
	raw, ok := a.store.Get(keyApproved)
	if !ok || raw == "" {
		return nil
	}
	var names []string
	if err := json.Unmarshal([]byte(raw), &names); err != nil {
		return nil
	}
	sort.Strings(names)
	return names
}

// Approve inserts name into the persisted set. Idempotent.
func (a *Authority) Approve(name string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	names := a.Approved()
	for _, n := range names {
		if n == name {
			return nil
		}
	}
	names = append(names, name)
	sort.Strings(names)
	return a.saveApproved(names)
}

// Revoke removes name from the persisted set. Idempotent.
func (a *Authority) Revoke(name string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	names := a.Approved()
	kept := names[:0]
	for _, n := range names {
		if n != name {
			kept = append(kept, n)
		}
	}
	if len(kept) == len(names) {
		return nil
	}
	return a.saveApproved(kept)
}

// Clear removes every approval.
func (a *Authority) Clear() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.store.Delete(keyApproved)
}

func (a *Authority) saveApproved(names []string) error {
	data, err := json.Marshal(names)
	if err != nil {
		return err
	}
	return a.store.Set(keyApproved, string(data))
}
