package montecarlo

import "github.com/nvandessel/mcsolve/internal/prng"

// TransitionModel is the sampling distribution for trajectories: P0 is the
// initial-state distribution and P the row-stochastic transition matrix.
// It only needs support wherever C and f are nonzero.
type TransitionModel struct {
	P  [][]float64
	P0 []float64
}

// UniformModel returns the model with every entry equal to 1/n.
func UniformModel(n int) TransitionModel {
	p := 1.0 / float64(n)
	m := TransitionModel{
		P:  make([][]float64, n),
		P0: make([]float64, n),
	}
	for i := 0; i < n; i++ {
		m.P0[i] = p
		m.P[i] = make([]float64, n)
		for j := range m.P[i] {
			m.P[i][j] = p
		}
	}
	return m
}

// GenerateTrajectories draws count trajectories of the given length over
// indices {0..n-1}. All draws come sequentially from gen, trajectory by
// trajectory, without resetting it in between.
func GenerateTrajectories(gen prng.Generator, count, length, n int) [][]int {
	trajectories := make([][]int, count)
	for i := range trajectories {
		traj := make([]int, length)
		for j := range traj {
			traj[j] = gen.NextInt(0, n-1)
		}
		trajectories[i] = traj
	}
	return trajectories
}

// PathSum evaluates the weighted path-sum estimator of h·x along traj.
// A zero-probability step zeroes the weight for the rest of the trajectory.
func PathSum(c [][]float64, f, h []float64, model TransitionModel, traj []int) float64 {
	if len(traj) == 0 {
		return 0
	}

	cur := traj[0]
	var q float64
	if model.P0[cur] > 0 {
		q = h[cur] / model.P0[cur]
	}
	sum := q * f[cur]

	for t := 1; t < len(traj); t++ {
		prev := cur
		cur = traj[t]
		if model.P[prev][cur] > 0 {
			q *= c[prev][cur] / model.P[prev][cur]
		} else {
			q = 0
		}
		sum += q * f[cur]
	}
	return sum
}
