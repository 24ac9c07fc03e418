package funnelconfig

import (
	"fmt"
	"math"
	"time"
)

// ValidationError is a fatal configuration error. The process must not start
// with an invalid threshold set.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks all required constraints. Any failure aborts startup.
func Validate(cfg *Config) error {
	// === Meta ===
	if cfg.Meta.StrategyID == "" {
		return ValidationError{"meta.strategy_id", "required"}
	}
	if cfg.Meta.Timezone == "" {
		return ValidationError{"meta.timezone", "required"}
	}
	if _, err := time.LoadLocation(cfg.Meta.Timezone); err != nil {
		return ValidationError{"meta.timezone", err.Error()}
	}
	if err := validateHHMM(cfg.Meta.Session.Open); err != nil {
		return ValidationError{"meta.session.open", err.Error()}
	}
	if err := validateHHMM(cfg.Meta.Session.Close); err != nil {
		return ValidationError{"meta.session.close", err.Error()}
	}

	openTime, _ := time.Parse("15:04", cfg.Meta.Session.Open)
	closeTime, _ := time.Parse("15:04", cfg.Meta.Session.Close)
	if !openTime.Before(closeTime) {
		return ValidationError{"meta.session", "open must be before close"}
	}

	// === Monitor ===
	if cfg.Monitor.Cadence <= 0 {
		return ValidationError{"monitor.cadence", "must be > 0"}
	}
	if cfg.Monitor.CycleDeadline <= 0 {
		return ValidationError{"monitor.cycle_deadline", "must be > 0"}
	}
	if cfg.Monitor.CycleDeadline > cfg.Monitor.Cadence {
		return ValidationError{"monitor.cycle_deadline", "must not exceed cadence: passes never overlap"}
	}
	if cfg.Monitor.FetchWorkers < 1 {
		return ValidationError{"monitor.fetch_workers", "must be >= 1"}
	}

	// === Feature ===
	if cfg.Feature.MinHistoryDays < 1 {
		return ValidationError{"feature.min_history_days", "must be >= 1"}
	}
	if cfg.Feature.LookbackDays < cfg.Feature.MinHistoryDays {
		return ValidationError{"feature.lookback_days", "must be >= min_history_days"}
	}
	// 20-day net-flow sum needs at least 20 days of buffer
	if cfg.Feature.LookbackDays < 20 {
		return ValidationError{"feature.lookback_days", "must be >= 20"}
	}

	// === Risk ===
	if err := validateUnitRange(cfg.Risk.Weights.VolumeSpikeAfterOutflow, "risk.weights.volume_spike_after_outflow"); err != nil {
		return err
	}
	if err := validateUnitRange(cfg.Risk.Weights.RunupReversal, "risk.weights.runup_reversal"); err != nil {
		return err
	}
	if err := validateUnitRange(cfg.Risk.Weights.SpeculativeOrigin, "risk.weights.speculative_origin"); err != nil {
		return err
	}
	if math.Abs(cfg.Risk.Weights.Sum()-1.0) > 1e-6 {
		return ValidationError{"risk.weights", fmt.Sprintf("must sum to 1.0, got %.6f", cfg.Risk.Weights.Sum())}
	}
	if cfg.Risk.SpikeVolumeRatioMin <= 1.0 {
		return ValidationError{"risk.spike_volume_ratio_min", "must be > 1.0 (a spike exceeds the trailing average)"}
	}
	if cfg.Risk.OutflowTrendMax >= 0 {
		return ValidationError{"risk.outflow_trend_max", "must be < 0 (an outflow trend is negative)"}
	}
	if cfg.Risk.RunupReturnMin <= 0 {
		return ValidationError{"risk.runup_return_min", "must be > 0"}
	}
	if cfg.Risk.ReversalDrawdownMin <= 0 || cfg.Risk.ReversalDrawdownMin >= 1 {
		return ValidationError{"risk.reversal_drawdown_min", "must be in (0, 1)"}
	}
	if err := validateRequiredCut(cfg.Risk.Origin.FlipRatioMin, "risk.origin.flip_ratio_min"); err != nil {
		return err
	}
	if err := validateRequiredCut(cfg.Risk.Origin.PersistenceMin, "risk.origin.persistence_min"); err != nil {
		return err
	}
	if cfg.Risk.Origin.MinDays < 2 {
		return ValidationError{"risk.origin.min_days", "must be >= 2"}
	}

	// === Gates ===
	// The reject thresholds carve disjoint ranges: an instrument can never
	// satisfy Gate 1 and Gate 2 simultaneously.
	if cfg.Gates.FlowRatioMin <= 0 {
		return ValidationError{"gates.flow_ratio_min", "must be > 0"}
	}
	if cfg.Gates.FlowRatioMax <= cfg.Gates.FlowRatioMin {
		return ValidationError{"gates.flow_ratio_max", "must be > flow_ratio_min"}
	}
	if cfg.Gates.DivergenceRatioMax <= cfg.Gates.FlowRatioMin {
		return ValidationError{"gates.divergence_ratio_max", "must be > flow_ratio_min"}
	}
	if cfg.Gates.DivergenceRatioMax >= cfg.Gates.FlowRatioMax {
		return ValidationError{"gates.divergence_ratio_max", "must be < flow_ratio_max"}
	}
	if cfg.Gates.DivergenceUpDays < 2 {
		return ValidationError{"gates.divergence_up_days", "must be >= 2"}
	}
	if err := validateRequiredCut(cfg.Gates.BlockRiskMin, "gates.block_risk_min"); err != nil {
		return err
	}
	if err := validateRequiredCut(cfg.Gates.CandidateRiskMax, "gates.candidate_risk_max"); err != nil {
		return err
	}
	if cfg.Gates.CandidateRiskMax >= cfg.Gates.BlockRiskMin {
		return ValidationError{"gates.candidate_risk_max", "must be < block_risk_min"}
	}

	return nil
}

func validateHHMM(s string) error {
	if _, err := time.Parse("15:04", s); err != nil {
		return fmt.Errorf("must be HH:MM, got %q", s)
	}
	return nil
}

func validateUnitRange(v float64, field string) error {
	if v < 0 || v > 1 {
		return ValidationError{field, fmt.Sprintf("must be in [0, 1], got %v", v)}
	}
	return nil
}

// validateRequiredCut is for score cuts where zero is never a meaningful
// threshold. A key the YAML omits decodes to zero, so rejecting zero here
// is what makes a missing required threshold abort startup instead of
// silently disabling a gate.
func validateRequiredCut(v float64, field string) error {
	if v <= 0 || v > 1 {
		return ValidationError{field, fmt.Sprintf("must be in (0, 1], got %v (missing key?)", v)}
	}
	return nil
}
