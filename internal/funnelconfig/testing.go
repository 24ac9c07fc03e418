package funnelconfig

import "time"

// NewTestConfig returns a valid config with the documented reference
// thresholds. Shared by tests across packages so fixtures stay exact when
// production config changes.
func NewTestConfig() *Config {
	return &Config{
		Meta: Meta{
			StrategyID: "us_equity_tape_v1",
			Version:    "test",
			Timezone:   "America/New_York",
			Session: Session{
				Open:  "09:30",
				Close: "16:00",
			},
		},
		Monitor: Monitor{
			Cadence:       15 * time.Second,
			CycleDeadline: 10 * time.Second,
			FetchWorkers:  8,
		},
		Feature: Feature{
			MinHistoryDays: 5,
			LookbackDays:   20,
		},
		Risk: Risk{
			Weights: RiskWeights{
				VolumeSpikeAfterOutflow: 0.45,
				RunupReversal:           0.35,
				SpeculativeOrigin:       0.20,
			},
			Origin: Origin{
				FlipRatioMin:   0.5,
				PersistenceMin: 0.7,
				MinDays:        5,
			},
			SpikeVolumeRatioMin: 3.0,
			OutflowTrendMax:     -1.0,
			RunupReturnMin:      0.12,
			ReversalDrawdownMin: 0.05,
		},
		Gates: Gates{
			FlowRatioMin:       0.005,
			FlowRatioMax:       0.05,
			BlockRiskMin:       0.40,
			DivergenceUpDays:   3,
			DivergenceRatioMax: 0.01,
			CandidateRiskMax:   0.25,
		},
	}
}
