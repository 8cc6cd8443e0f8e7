package server

// registerRoutes registers the OpenAI-compatible paths used by both
// benchmark targets plus a health probe.
func (s *Server) registerRoutes() {
	s.router.Get("/health", s.completions.HealthHandler)

	s.router.Post("/v1/chat/completions", s.completions.ServeHTTP)
	s.router.Post("/openai/v1/chat/completions", s.completions.ServeHTTP)
}
