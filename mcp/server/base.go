package server

// SetVerifyOnly toggles verify-only mode on a running server, skipping
// settlement for every payable tool call made after this returns.
func (s *X402Server) SetVerifyOnly(verifyOnly bool) {
	s.config.VerifyOnly = verifyOnly
}
