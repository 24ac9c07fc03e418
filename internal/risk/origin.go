package risk

import (
	"github.com/jaekwon-dev/tapewatch/internal/contracts"
	"github.com/jaekwon-dev/tapewatch/internal/funnelconfig"
)

// classifyOrigin labels the shape of a daily net-flow series. Frequent sign
// flips read as short-horizon speculative money; persistent same-sign flow
// reads as long-horizon accumulation. Anything else, including a series too
// short to judge, is indeterminate.
func classifyOrigin(flows []float64, cfg funnelconfig.Origin) contracts.CapitalOrigin {
	signed := nonZeroSigns(flows)
	if len(signed) < cfg.MinDays {
		return contracts.OriginIndeterminate
	}

	if flipRatio(signed) >= cfg.FlipRatioMin {
		return contracts.OriginSpeculative
	}
	if persistence(signed) >= cfg.PersistenceMin {
		return contracts.OriginAccumulative
	}
	return contracts.OriginIndeterminate
}

// nonZeroSigns reduces the series to +1/-1 per active day. Zero-flow days
// carry no directional information and are skipped.
func nonZeroSigns(flows []float64) []int {
	signs := make([]int, 0, len(flows))
	for _, f := range flows {
		switch {
		case f > 0:
			signs = append(signs, 1)
		case f < 0:
			signs = append(signs, -1)
		}
	}
	return signs
}

// flipRatio is the fraction of day-over-day transitions that change sign.
func flipRatio(signs []int) float64 {
	if len(signs) < 2 {
		return 0
	}
	flips := 0
	for i := 1; i < len(signs); i++ {
		if signs[i] != signs[i-1] {
			flips++
		}
	}
	return float64(flips) / float64(len(signs)-1)
}

// persistence is the fraction of active days whose sign matches the
// majority direction.
func persistence(signs []int) float64 {
	if len(signs) == 0 {
		return 0
	}
	pos := 0
	for _, s := range signs {
		if s > 0 {
			pos++
		}
	}
	neg := len(signs) - pos
	major := pos
	if neg > major {
		major = neg
	}
	return float64(major) / float64(len(signs))
}
