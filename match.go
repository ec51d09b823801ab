package x402

import "fmt"

// FindMatchingRequirement returns the first requirement whose scheme and
// network match the payment payload. Callers that need a value rather
// than a pointer (most HTTP middleware) can dereference the result.
func FindMatchingRequirement(payment PaymentPayload, requirements []PaymentRequirement) (*PaymentRequirement, error) {
	for i := range requirements {
		if requirements[i].Scheme == payment.Scheme && requirements[i].Network == payment.Network {
			return &requirements[i], nil
		}
	}
	return nil, fmt.Errorf("%w: no requirement matches scheme=%q network=%q", ErrUnsupportedScheme, payment.Scheme, payment.Network)
}
