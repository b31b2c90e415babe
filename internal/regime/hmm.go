package regime

import (
	"fmt"
	"math"

	"go.uber.org/zap"
)

// HMMConfig parameterizes the Gaussian-emission HMM detector (C3).
type HMMConfig struct {
	NStates             int
	MinObservations     int
	LearningRate        float64
	TransitionSmoothing float64
	LookbackWindow      int
	MinConfidence       float64
}

func DefaultHMMConfig() HMMConfig {
	return HMMConfig{
		NStates:             3,
		MinObservations:     100,
		LearningRate:        0.01,
		TransitionSmoothing: 0.1,
		LookbackWindow:      252,
		MinConfidence:       0.6,
	}
}

func CryptoOptimizedHMMConfig() HMMConfig {
	return HMMConfig{
		NStates:             3,
		MinObservations:     50,
		LearningRate:        0.02,
		TransitionSmoothing: 0.05,
		LookbackWindow:      100,
		MinConfidence:       0.5,
	}
}

func ConservativeHMMConfig() HMMConfig {
	return HMMConfig{
		NStates:             2,
		MinObservations:     150,
		LearningRate:        0.005,
		TransitionSmoothing: 0.15,
		LookbackWindow:      500,
		MinConfidence:       0.7,
	}
}

func (c HMMConfig) Validate() error {
	if c.NStates < 2 {
		return fmt.Errorf("hmm config: n_states must be >= 2, got %d", c.NStates)
	}
	if c.MinObservations <= 0 {
		return fmt.Errorf("hmm config: min_observations must be positive")
	}
	if c.LookbackWindow <= 0 {
		return fmt.Errorf("hmm config: lookback_window must be positive")
	}
	if c.LearningRate < 0 || c.TransitionSmoothing < 0 {
		return fmt.Errorf("hmm config: learning_rate and transition_smoothing must be non-negative")
	}
	return nil
}

const varianceFloor = 1e-8

// gaussianState is one HMM emission state's running Gaussian parameters.
type gaussianState struct {
	mean     float64
	variance float64
}

func (g gaussianState) pdf(x float64) float64 {
	if g.variance <= 0 {
		return 0
	}
	d := x - g.mean
	return math.Exp(-d*d/(2*g.variance)) / math.Sqrt(2*math.Pi*g.variance)
}

func (g *gaussianState) update(x, weight, lr float64) {
	g.mean = (1-lr*weight)*g.mean + lr*weight*x
	d := x - g.mean
	v := (1-lr*weight)*g.variance + lr*weight*d*d
	if v < varianceFloor {
		v = varianceFloor
	}
	g.variance = v
}

// HMMDetector is a discrete-state, continuous-(Gaussian)-observation HMM
// over per-bar log-returns, with online EMA parameter updates and periodic
// Baum-Welch batch re-estimation.
type HMMDetector struct {
	config HMMConfig
	logger *zap.Logger

	states     []gaussianState
	transition [][]float64
	filtered   []float64

	returns   []float64
	prevClose float64
	hasPrev   bool
	nObserved int

	currentState      int
	currentConfidence float64
}

// NewHMMDetector builds a detector with a weakly informative prior over
// n_states Gaussian emitters and a diagonal-dominant transition matrix.
func NewHMMDetector(config HMMConfig, logger *zap.Logger) *HMMDetector {
	if logger == nil {
		logger = zap.NewNop()
	}
	n := config.NStates
	h := &HMMDetector{config: config, logger: logger}
	h.states = make([]gaussianState, n)

	switch n {
	case 2:
		h.states[0] = gaussianState{mean: 0.001, variance: 1e-4}
		h.states[1] = gaussianState{mean: -0.001, variance: 4e-4}
	case 3:
		h.states[0] = gaussianState{mean: 0.001, variance: 1e-4}
		h.states[1] = gaussianState{mean: -0.001, variance: 2e-4}
		h.states[2] = gaussianState{mean: 0, variance: 9e-4}
	default:
		for i := 0; i < n; i++ {
			h.states[i] = gaussianState{
				mean:     (float64(i) - float64(n)/2) * 0.001,
				variance: 1e-4 * float64(1+i),
			}
		}
	}

	h.transition = make([][]float64, n)
	for i := range h.transition {
		h.transition[i] = make([]float64, n)
		for j := range h.transition[i] {
			if i == j {
				h.transition[i][j] = 0.9
			} else {
				h.transition[i][j] = 0.1 / float64(n-1)
			}
		}
	}

	h.filtered = make([]float64, n)
	for i := range h.filtered {
		h.filtered[i] = 1.0 / float64(n)
	}
	return h
}

// IsReady reports whether enough observations have accumulated to trust the
// detector's output.
func (h *HMMDetector) IsReady() bool { return h.nObserved >= h.config.MinObservations }

// Update absorbs one bar's close price and returns the current regime
// confidence. Before IsReady, it returns Uncertain with confidence 0.
func (h *HMMDetector) Update(close float64) RegimeConfidence {
	if !h.hasPrev {
		h.prevClose = close
		h.hasPrev = true
		return RegimeConfidence{Regime: Uncertain, Confidence: 0}
	}
	r := math.Log(close / h.prevClose)
	h.prevClose = close
	h.processReturn(r)

	if !h.IsReady() {
		return RegimeConfidence{Regime: Uncertain, Confidence: 0}
	}

	regime := h.stateToRegime(h.currentState)
	return RegimeConfidence{Regime: regime, Confidence: h.currentConfidence}
}

func (h *HMMDetector) processReturn(r float64) {
	h.returns = append(h.returns, r)
	if len(h.returns) > h.config.LookbackWindow {
		h.returns = h.returns[len(h.returns)-h.config.LookbackWindow:]
	}
	h.nObserved++

	h.forwardStep(r)

	if h.nObserved > h.config.MinObservations && h.config.LearningRate > 0 {
		h.onlineParameterUpdate(r)
	}

	half := h.config.LookbackWindow / 2
	if half > 0 && h.nObserved%half == 0 && len(h.returns) >= h.config.MinObservations {
		h.baumWelchUpdate()
	}
}

func (h *HMMDetector) forwardStep(r float64) {
	n := len(h.states)
	predicted := make([]float64, n)
	for j := 0; j < n; j++ {
		sum := 0.0
		for i := 0; i < n; i++ {
			sum += h.transition[i][j] * h.filtered[i]
		}
		predicted[j] = sum
	}

	updated := make([]float64, n)
	total := 0.0
	for j := 0; j < n; j++ {
		e := h.states[j].pdf(r)
		updated[j] = e * predicted[j]
		total += updated[j]
	}

	if total < 1e-300 {
		for j := range updated {
			updated[j] = 1.0 / float64(n)
		}
	} else {
		for j := range updated {
			updated[j] /= total
		}
	}
	h.filtered = updated

	best, bestVal := 0, updated[0]
	for j := 1; j < n; j++ {
		if updated[j] > bestVal {
			best, bestVal = j, updated[j]
		}
	}
	h.currentState = best
	h.currentConfidence = bestVal
}

func (h *HMMDetector) onlineParameterUpdate(r float64) {
	n := len(h.states)
	lr := h.config.LearningRate
	for i := 0; i < n; i++ {
		h.states[i].update(r, h.filtered[i], lr)
	}

	s := h.config.TransitionSmoothing
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			target := 0.1 / float64(n-1)
			if i == j {
				target = 0.9
			}
			h.transition[i][j] = (1-s)*h.transition[i][j] + s*target
		}
	}
}

// baumWelchUpdate re-estimates emission parameters from the buffered return
// history via forward-backward smoothing, blending the result with the
// existing parameters. The transition matrix is deliberately left untouched
// here; online shrinkage toward the prior governs it instead.
func (h *HMMDetector) baumWelchUpdate() {
	n := len(h.states)
	T := len(h.returns)
	if T == 0 {
		return
	}

	alpha := make([][]float64, T)
	for t := range alpha {
		alpha[t] = make([]float64, n)
	}
	for j := 0; j < n; j++ {
		alpha[0][j] = (1.0 / float64(n)) * h.states[j].pdf(h.returns[0])
	}
	normalizeRow(alpha[0])
	for t := 1; t < T; t++ {
		for j := 0; j < n; j++ {
			sum := 0.0
			for i := 0; i < n; i++ {
				sum += alpha[t-1][i] * h.transition[i][j]
			}
			alpha[t][j] = h.states[j].pdf(h.returns[t]) * sum
		}
		normalizeRow(alpha[t])
	}

	beta := make([][]float64, T)
	for t := range beta {
		beta[t] = make([]float64, n)
	}
	for j := 0; j < n; j++ {
		beta[T-1][j] = 1.0
	}
	for t := T - 2; t >= 0; t-- {
		for i := 0; i < n; i++ {
			sum := 0.0
			for j := 0; j < n; j++ {
				sum += h.transition[i][j] * h.states[j].pdf(h.returns[t+1]) * beta[t+1][j]
			}
			beta[t][i] = sum
		}
		normalizeRow(beta[t])
	}

	gamma := make([][]float64, T)
	for t := 0; t < T; t++ {
		gamma[t] = make([]float64, n)
		total := 0.0
		for k := 0; k < n; k++ {
			gamma[t][k] = alpha[t][k] * beta[t][k]
			total += gamma[t][k]
		}
		if total > 0 {
			for k := 0; k < n; k++ {
				gamma[t][k] /= total
			}
		}
	}

	for j := 0; j < n; j++ {
		var numMean, denom float64
		for t := 0; t < T; t++ {
			numMean += gamma[t][j] * h.returns[t]
			denom += gamma[t][j]
		}
		if denom <= 0 {
			continue
		}
		newMean := numMean / denom

		var numVar float64
		for t := 0; t < T; t++ {
			d := h.returns[t] - newMean
			numVar += gamma[t][j] * d * d
		}
		newVar := numVar / denom
		if newVar < varianceFloor {
			newVar = varianceFloor
		}

		h.states[j].mean = 0.7*h.states[j].mean + 0.3*newMean
		h.states[j].variance = 0.7*h.states[j].variance + 0.3*newVar
	}
}

func normalizeRow(row []float64) {
	total := 0.0
	for _, v := range row {
		total += v
	}
	if total <= 0 {
		for i := range row {
			row[i] = 1.0 / float64(len(row))
		}
		return
	}
	for i := range row {
		row[i] /= total
	}
}

// stateToRegime maps a Gaussian state's learned (mean, variance) to a
// MarketRegime category.
func (h *HMMDetector) stateToRegime(state int) MarketRegime {
	g := h.states[state]
	sigma := math.Sqrt(g.variance)
	if sigma > 0.02 {
		return Volatile
	}
	if g.mean > 5e-4 {
		return Trending(Bullish)
	}
	if g.mean < -5e-4 {
		return Trending(Bearish)
	}
	return MeanReverting
}

// ExpectedRegimeDuration returns the expected number of bars the current
// state persists, 1/(1-self-transition-probability).
func (h *HMMDetector) ExpectedRegimeDuration() float64 {
	selfTrans := h.transition[h.currentState][h.currentState]
	if selfTrans >= 1 {
		return math.Inf(1)
	}
	return 1.0 / (1.0 - selfTrans)
}

// PredictNextStateDistribution returns the one-step-ahead predicted state
// distribution, exposed for observability only.
func (h *HMMDetector) PredictNextStateDistribution() []float64 {
	n := len(h.states)
	out := make([]float64, n)
	for j := 0; j < n; j++ {
		sum := 0.0
		for i := 0; i < n; i++ {
			sum += h.transition[i][j] * h.filtered[i]
		}
		out[j] = sum
	}
	return out
}

// FilteredDistribution exposes the current posterior state distribution.
func (h *HMMDetector) FilteredDistribution() []float64 {
	out := make([]float64, len(h.filtered))
	copy(out, h.filtered)
	return out
}

func (h *HMMDetector) CurrentState() int { return h.currentState }
