package consent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dapguard/dapguard/internal/audit"
)

// countingPrompter records how often it was asked and returns a fixed
// decision.
type countingPrompter struct {
	decision Decision
	calls    int
}

func (p *countingPrompter) PromptConsent(ctx context.Context, configuration string) Decision {
	p.calls++
	return p.decision
}

func newTestAuthority(t *testing.T, p Prompter) *Authority {
	t.Helper()
	return NewAuthority(NewMemoryStore(), p, audit.Nop())
}

// TestAuthority_CanUse_ExactlyOnePrompt verifies one unapproved launch
// triggers exactly one prompt.
func TestAuthority_CanUse_ExactlyOnePrompt(t *testing.T) {
	p := &countingPrompter{decision: ApproveOnce}
	a := newTestAuthority(t, p)

	assert.True(t, a.CanUse(context.Background(), "Launch Server"))
	assert.Equal(t, 1, p.calls)
}

// TestAuthority_CanUse_ApproveOnceDoesNotPersist verifies "approve once"
// grants only the current call.
func TestAuthority_CanUse_ApproveOnceDoesNotPersist(t *testing.T) {
	p := &countingPrompter{decision: ApproveOnce}
	a := newTestAuthority(t, p)

	assert.True(t, a.CanUse(context.Background(), "Launch Server"))
	assert.False(t, a.IsApproved("Launch Server"))

	// Same name prompts again on the next call.
	assert.True(t, a.CanUse(context.Background(), "Launch Server"))
	assert.Equal(t, 2, p.calls)
}

// TestAuthority_CanUse_ApproveAlwaysPersists verifies "approve always"
// persists the name and suppresses future prompts.
func TestAuthority_CanUse_ApproveAlwaysPersists(t *testing.T) {
	p := &countingPrompter{decision: ApproveAlways}
	a := newTestAuthority(t, p)

	assert.True(t, a.CanUse(context.Background(), "Launch Server"))
	assert.True(t, a.IsApproved("Launch Server"))

	assert.True(t, a.CanUse(context.Background(), "Launch Server"))
	assert.Equal(t, 1, p.calls, "pre-approved name must not prompt again")
}

// TestAuthority_CanUse_DenyLeavesSetUnchanged verifies a denial changes
// nothing.
func TestAuthority_CanUse_DenyLeavesSetUnchanged(t *testing.T) {
	p := &countingPrompter{decision: Deny}
	a := newTestAuthority(t, p)
	require.NoError(t, a.Approve("Other Config"))

	assert.False(t, a.CanUse(context.Background(), "Launch Server"))
	assert.Equal(t, []string{"Other Config"}, a.Approved())
}

// TestAuthority_ConsentNotRequired verifies disabling the global flag
// bypasses the prompter entirely.
func TestAuthority_ConsentNotRequired(t *testing.T) {
	p := &countingPrompter{decision: Deny}
	a := newTestAuthority(t, p)
	require.NoError(t, a.SetConsentRequired(false))

	assert.True(t, a.CanUse(context.Background(), "Launch Server"))
	assert.Equal(t, 0, p.calls)
}

func TestAuthority_ConsentRequired_Default(t *testing.T) {
	a := newTestAuthority(t, DenyAll())
	assert.True(t, a.ConsentRequired())
	assert.False(t, a.ConsentConfigured())
}

func TestAuthority_ApproveRevokeIdempotent(t *testing.T) {
	a := newTestAuthority(t, DenyAll())

	require.NoError(t, a.Approve("A"))
	require.NoError(t, a.Approve("A"))
	assert.Equal(t, []string{"A"}, a.Approved())

	require.NoError(t, a.Revoke("A"))
	require.NoError(t, a.Revoke("A"))
	assert.Empty(t, a.Approved())
}

func TestAuthority_Clear(t *testing.T) {
	a := newTestAuthority(t, DenyAll())
	require.NoError(t, a.Approve("A"))
	require.NoError(t, a.Approve("B"))

	require.NoError(t, a.Clear())
	assert.Empty(t, a.Approved())
}

func TestAuthority_ApprovedSorted(t *testing.T) {
	a := newTestAuthority(t, DenyAll())
	require.NoError(t, a.Approve("Zeta"))
	require.NoError(t, a.Approve("Alpha"))

	assert.Equal(t, []string{"Alpha", "Zeta"}, a.Approved())
}

// TestDenyAll verifies the fail-closed default.
func TestDenyAll(t *testing.T) {
	a := newTestAuthority(t, nil)
	assert.False(t, a.CanUse(context.Background(), "Launch Server"))
}
