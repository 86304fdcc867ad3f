package pool

import (
	"fmt"
	"math/big"
)

// InsufficientFundsError rejects a transaction whose sender cannot cover value,
// execution gas and the L1 data fee combined. Both sides of the comparison are
// carried for diagnostics.
type InsufficientFundsError struct {
	Available *big.Int
	Required  *big.Int
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds: available %s, required %s", e.Available, e.Required)
}
