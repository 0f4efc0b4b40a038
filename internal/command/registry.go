package command

// RegisterAll registers every user and admin command into h.
func RegisterAll(h *Handler, eng Engine) {
	// User commands (/ prefix)
	h.RegisterUser(NewSkills(eng))
	h.RegisterUser(NewUnlock(eng))
	h.RegisterUser(NewRespec(eng))
	h.RegisterUser(NewXP(eng))
	h.RegisterUser(NewActivate(eng))
	h.RegisterUser(&Help{h: h})

	// Admin commands (// prefix)
	h.RegisterAdmin(NewForceUnlock(eng))
	h.RegisterAdmin(NewGivePoints(eng))
	h.RegisterAdmin(NewXPRate(eng))
	h.RegisterAdmin(NewCooldownClear(eng))
	h.RegisterAdmin(NewNewCycle(eng))
	h.RegisterAdmin(NewResetPlayer(eng))
	h.RegisterAdmin(NewInspect(eng))
}

// NewDefault builds a handler with every command registered.
func NewDefault(eng Engine, access AccessResolver) *Handler {
	h := NewHandler(access)
	RegisterAll(h, eng)
	return h
}
