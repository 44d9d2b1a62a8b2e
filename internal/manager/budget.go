package manager

import (
	"fmt"

	"companiond/internal/catalog"
)

const (
	// DefaultMaxTokens is the context window when a descriptor leaves it unset.
	DefaultMaxTokens = catalog.DefaultMaxTokens
	// DefaultReservedTokens keeps room for the reply.
	DefaultReservedTokens = 256
)

// Budget accounts the tokens of one conversation against the context window.
// Consumed never exceeds Max-Reserved; Consume rejects instead of overflowing.
type Budget struct {
	Max      int
	Reserved int
	Consumed int
}

// NewBudget returns an empty budget. Negative values are clamped to zero.
func NewBudget(maxTokens, reserved int) Budget {
	return Budget{Max: max(0, maxTokens), Reserved: max(0, reserved)}
}

func (b Budget) limit() int {
	return max(0, b.Max-b.Reserved)
}

// Remaining is the number of tokens that can still be consumed.
func (b Budget) Remaining() int {
	return max(0, b.limit()-b.Consumed)
}

// Consume charges n tokens or fails with ErrBudgetExhausted leaving the
// budget untouched.
func (b *Budget) Consume(n int) error {
	if n < 0 {
		return fmt.Errorf("%w: negative count %d", ErrBudgetExhausted, n)
	}
	if b.Consumed+n > b.limit() {
		return fmt.Errorf("%w: need %d, remaining %d", ErrBudgetExhausted, n, b.Remaining())
	}
	b.Consumed += n
	return nil
}

// Reset sets Consumed back to zero.
func (b *Budget) Reset() { b.Consumed = 0 }

// Estimate is the room left for a reply after a prompt of promptTokens.
func (b Budget) Estimate(promptTokens int) int {
	return max(0, b.Remaining()-promptTokens)
}
