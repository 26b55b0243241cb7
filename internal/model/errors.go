package model

import "errors"

var (
	ErrRuleTarget       = errors.New("rule needs exactly one of asset or fiat target")
	ErrRuleBand         = errors.New("rule band must satisfy minimum < optimal < maximum")
	ErrRuleChainMissing = errors.New("rule bound requires a matching action chain")
	ErrInvalidStatus    = errors.New("invalid status transition")
)
