package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/udisondev/survivalskills/internal/engine"
	"github.com/udisondev/survivalskills/internal/game/cooldown"
	"github.com/udisondev/survivalskills/internal/game/progression"
	"github.com/udisondev/survivalskills/internal/game/xp"
	"github.com/udisondev/survivalskills/internal/model"
)

type skillRequest struct {
	Skill model.SkillID `json:"skill" binding:"required"`
}

type respecRequest struct {
	Tree string `json:"tree" binding:"required"` // tree name or "all"
}

type xpRequest struct {
	Amount      int64     `json:"amount" binding:"required"`
	Multipliers []float64 `json:"multipliers"`
}

type damageRequest struct {
	Target      model.EntityID `json:"target" binding:"required"`
	Base        float64        `json:"base"`
	HealthRatio *float64       `json:"health_ratio"`
}

type amountRequest struct {
	Amount int64 `json:"amount" binding:"required"`
}

type incomingRequest struct {
	Incoming float64 `json:"incoming"`
}

type pointsRequest struct {
	Points int32 `json:"points" binding:"required,gt=0"`
}

type rateRequest struct {
	Multiplier float64 `json:"multiplier" binding:"required"`
}

type commandRequest struct {
	Line string `json:"line" binding:"required"`
}

type adminCommandRequest struct {
	// Caller is the staff account whose access level gates the command.
	Caller model.PlayerID `json:"caller" binding:"required"`
	Line   string         `json:"line" binding:"required"`
}

// survivalRequest carries the base values to scale; absent fields are skipped.
type survivalRequest struct {
	Heal           *float64 `json:"heal"`
	HungerDrain    *float64 `json:"hunger_drain"`
	ReviveMs       *int64   `json:"revive_ms"`
	AttackInterval *int64   `json:"attack_interval_ms"`
}

func playerID(c *gin.Context) model.PlayerID {
	return model.PlayerID(c.Param("id"))
}

// bind decodes the JSON body or answers 400.
func bind(c *gin.Context, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return false
	}
	return true
}

// writeError maps engine errors to status codes.
func writeError(c *gin.Context, err error) {
	var ve *progression.ValidationError
	switch {
	case errors.As(err, &ve) && ve.Reason == progression.ReasonUnknownSkill:
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error(), "reason": ve.Reason})
	case errors.As(err, &ve):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error(), "reason": ve.Reason})
	case errors.Is(err, engine.ErrNotUnlocked), errors.Is(err, engine.ErrNotActivatable):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, progression.ErrUnavailable), errors.Is(err, xp.ErrUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	}
}

func (s *Server) listSkills(c *gin.Context) {
	if name := c.Query("tree"); name != "" {
		tree, err := model.ParseTree(name)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, s.eng.Catalog().Tree(tree))
		return
	}
	c.JSON(http.StatusOK, s.eng.Catalog().All())
}

func (s *Server) getSkill(c *gin.Context) {
	d, ok := s.eng.Catalog().Skill(model.SkillID(c.Param("skill")))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown skill"})
		return
	}
	c.JSON(http.StatusOK, d)
}

func (s *Server) getSnapshot(c *gin.Context) {
	c.JSON(http.StatusOK, s.eng.Snapshot(c.Request.Context(), playerID(c)))
}

func (s *Server) unlock(c *gin.Context) {
	var req skillRequest
	if !bind(c, &req) {
		return
	}
	ctx := c.Request.Context()
	if err := s.eng.Unlock(ctx, playerID(c), req.Skill); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.eng.Snapshot(ctx, playerID(c)))
}

func (s *Server) respec(c *gin.Context) {
	var req respecRequest
	if !bind(c, &req) {
		return
	}
	ctx := c.Request.Context()
	id := playerID(c)

	if strings.EqualFold(req.Tree, "all") {
		refund, err := s.eng.ResetAll(ctx, id)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"refund": refund})
		return
	}

	tree, err := model.ParseTree(req.Tree)
	if err != nil {
		writeError(c, err)
		return
	}
	refund, err := s.eng.ResetTree(ctx, id, tree)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"refund": refund})
}

func (s *Server) addXP(c *gin.Context) {
	var req xpRequest
	if !bind(c, &req) {
		return
	}
	points := s.eng.AddXP(c.Request.Context(), playerID(c), req.Amount, req.Multipliers...)
	c.JSON(http.StatusOK, gin.H{"points": points})
}

func (s *Server) activate(c *gin.Context) {
	var req skillRequest
	if !bind(c, &req) {
		return
	}
	res, err := s.eng.ActivateSkill(c.Request.Context(), playerID(c), req.Skill)
	if err != nil {
		writeError(c, err)
		return
	}
	status := http.StatusOK
	if res.Status == cooldown.Unavailable {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{
		"activated":         res.Activated(),
		"status":            res.Status.String(),
		"remaining_seconds": res.RemainingSeconds(),
	})
}

func (s *Server) damage(c *gin.Context) {
	var req damageRequest
	if !bind(c, &req) {
		return
	}
	ratio := 1.0
	if req.HealthRatio != nil {
		ratio = *req.HealthRatio
	}
	res := s.eng.ComputeDamage(c.Request.Context(), playerID(c), req.Target, req.Base, ratio, nil)
	c.JSON(http.StatusOK, res)
}

func (s *Server) gather(c *gin.Context) {
	var req amountRequest
	if !bind(c, &req) {
		return
	}
	ctx := c.Request.Context()
	id := playerID(c)
	amount, doubled := s.eng.ComputeGatherYield(ctx, id, req.Amount, nil)
	c.JSON(http.StatusOK, gin.H{
		"amount":    amount,
		"doubled":   doubled,
		"rare_find": s.eng.RollRareFind(ctx, id, nil),
	})
}

func (s *Server) mitigate(c *gin.Context) {
	var req incomingRequest
	if !bind(c, &req) {
		return
	}
	c.JSON(http.StatusOK, gin.H{"damage": s.eng.MitigateDamage(c.Request.Context(), playerID(c), req.Incoming)})
}

func (s *Server) survival(c *gin.Context) {
	var req survivalRequest
	if !bind(c, &req) {
		return
	}
	ctx := c.Request.Context()
	id := playerID(c)

	out := gin.H{
		"regen":     s.eng.Regen(ctx, id),
		"team_aura": s.eng.TeamAura(ctx, id),
	}
	if req.Heal != nil {
		out["heal"] = s.eng.HealAmount(ctx, id, *req.Heal)
	}
	if req.HungerDrain != nil {
		out["hunger_drain"] = s.eng.HungerDrain(ctx, id, *req.HungerDrain)
	}
	if req.ReviveMs != nil {
		out["revive_ms"] = s.eng.ReviveDuration(ctx, id, time.Duration(*req.ReviveMs)*time.Millisecond).Milliseconds()
	}
	if req.AttackInterval != nil {
		out["attack_interval_ms"] = s.eng.AttackInterval(ctx, id, time.Duration(*req.AttackInterval)*time.Millisecond).Milliseconds()
	}
	c.JSON(http.StatusOK, out)
}

// runCommand dispatches a player's chat command. Staff commands need the admin route.
func (s *Server) runCommand(c *gin.Context) {
	if s.cmds == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "commands disabled"})
		return
	}
	var req commandRequest
	if !bind(c, &req) {
		return
	}

	line := strings.TrimSpace(req.Line)
	switch {
	case strings.HasPrefix(line, "//"):
		slog.Warn("admin command over player api refused", "player", playerID(c), "remote", c.ClientIP())
		c.JSON(http.StatusForbidden, gin.H{"error": "admin commands require the admin api"})
	case strings.HasPrefix(line, "/"):
		reply, ok := s.cmds.HandleUserCommand(c.Request.Context(), playerID(c), line[1:])
		c.JSON(http.StatusOK, gin.H{"handled": ok, "reply": reply})
	default:
		c.JSON(http.StatusOK, gin.H{"handled": false, "reply": ""})
	}
}

// --- admin ---

func (s *Server) newCycle(c *gin.Context) {
	s.eng.NewCycle(c.Request.Context())
	slog.Info("new cycle started via api", "remote", c.ClientIP())
	c.Status(http.StatusNoContent)
}

func (s *Server) grantPoints(c *gin.Context) {
	var req pointsRequest
	if !bind(c, &req) {
		return
	}
	ctx := c.Request.Context()
	s.eng.GrantPoints(ctx, playerID(c), req.Points)
	c.JSON(http.StatusOK, s.eng.Snapshot(ctx, playerID(c)))
}

func (s *Server) forceUnlock(c *gin.Context) {
	var req skillRequest
	if !bind(c, &req) {
		return
	}
	ctx := c.Request.Context()
	if err := s.eng.ForceUnlock(ctx, playerID(c), req.Skill); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.eng.Snapshot(ctx, playerID(c)))
}

func (s *Server) setXPRate(c *gin.Context) {
	var req rateRequest
	if !bind(c, &req) {
		return
	}
	if err := s.eng.SetXPMultiplier(c.Request.Context(), playerID(c), req.Multiplier); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) resetPlayer(c *gin.Context) {
	refund, err := s.eng.ResetPlayer(c.Request.Context(), playerID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"refund": refund})
}

// runAdminCommand dispatches a staff command; the caller's access level still applies.
func (s *Server) runAdminCommand(c *gin.Context) {
	if s.cmds == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "commands disabled"})
		return
	}
	var req adminCommandRequest
	if !bind(c, &req) {
		return
	}
	reply, ok := s.cmds.Dispatch(c.Request.Context(), req.Caller, req.Line)
	c.JSON(http.StatusOK, gin.H{"handled": ok, "reply": reply})
}

func (s *Server) clearCooldown(c *gin.Context) {
	s.eng.ClearCooldown(c.Request.Context(), playerID(c), c.Param("ability"))
	c.Status(http.StatusNoContent)
}
