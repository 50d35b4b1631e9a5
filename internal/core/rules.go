package core

import "assetledger/pkg/domain"

type (
	// Rule aliases domain.Rule for callers that only import core.
	Rule = domain.Rule
	// RulesEngine aliases domain.RulesEngine.
	RulesEngine = domain.RulesEngine
	// Result aliases domain.Result.
	Result = domain.Result
)

// NewRulesEngine constructs an empty engine instance.
func NewRulesEngine() *RulesEngine {
	return domain.NewRulesEngine()
}

// NewDefaultRulesEngine builds a rules engine with the built-in lifecycle
// invariants. Every workflow commit is evaluated against these rules, so an
// invariant holds even when a caller bypasses the workflow preconditions.
func NewDefaultRulesEngine() *RulesEngine {
	engine := NewRulesEngine()
	engine.Register(LifecycleTransitionRule())
	engine.Register(SingleOpenAllocationRule())
	engine.Register(FinancialInvariantsRule())
	engine.Register(DisposalIntegrityRule())
	return engine
}

func blockingViolation(rule string, entity domain.EntityType, id, message string) domain.Violation {
	return domain.Violation{
		Rule:     rule,
		Severity: domain.SeverityBlock,
		Message:  message,
		Entity:   entity,
		EntityID: id,
	}
}
