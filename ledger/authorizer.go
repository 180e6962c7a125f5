package ledger

// Action names a privileged ledger capability. Authorization is checked
// per-action through the injected Authorizer, so tests and alternative
// identity schemes never depend on a specific address layout.
type Action string

const (
	ActionCreateInstrument    Action = "create_instrument"
	ActionManageWhitelist     Action = "manage_whitelist"
	ActionIssue               Action = "issue"
	ActionRedeem              Action = "redeem"
	ActionSetConversionStatus Action = "set_conversion_status"
	ActionSetInstrumentActive Action = "set_instrument_active"
	ActionDispatchOperation   Action = "dispatch_operation"
)

// Authorizer answers whether a caller identity may perform an action.
type Authorizer interface {
	Authorize(caller string, action Action) bool
}

// StaticAuthorizer is the config-backed Authorizer: a fixed issuer identity,
// a set of compliance identities, and the relay identities. The relay set
// holds both the current and, during rotation, the previous identity.
type StaticAuthorizer struct {
	grants map[Action]map[string]struct{}
}

// NewStaticAuthorizer builds the capability table used in production.
// The relay is granted exactly the actions its operation envelope can
// express, so the dispatcher path and the direct-call path run through the
// same per-action checks.
func NewStaticAuthorizer(issuer string, compliance []string, relayIdentities []string) *StaticAuthorizer {
	a := &StaticAuthorizer{grants: make(map[Action]map[string]struct{})}

	a.grant(issuer, ActionCreateInstrument, ActionIssue, ActionRedeem,
		ActionSetConversionStatus, ActionSetInstrumentActive)

	for _, c := range compliance {
		a.grant(c, ActionManageWhitelist)
	}

	for _, r := range relayIdentities {
		a.grant(r, ActionDispatchOperation, ActionIssue,
			ActionManageWhitelist, ActionSetConversionStatus)
	}

	return a
}

func (a *StaticAuthorizer) grant(caller string, actions ...Action) {
	if caller == "" {
		return
	}
	for _, act := range actions {
		if a.grants[act] == nil {
			a.grants[act] = make(map[string]struct{})
		}
		a.grants[act][caller] = struct{}{}
	}
}

// Authorize implements Authorizer.
func (a *StaticAuthorizer) Authorize(caller string, action Action) bool {
	callers, ok := a.grants[action]
	if !ok {
		return false
	}
	_, ok = callers[caller]
	return ok
}
