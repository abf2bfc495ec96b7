// Package montecarlo estimates solutions of x = Cx + f by sampling Markov
// chains over the unknown indices.
//
// Each trajectory is a sequence of indices drawn from a uniform transition
// model. Along a trajectory the path weight accumulates the likelihood ratio
// C[prev][cur] / P[prev][cur], so the weighted sum
//
//	q0 f[i0] + q1 f[i1] + ... + q(L-1) f[i(L-1)]
//
// is an unbiased estimate of the first L terms of the Neumann series
// f + Cf + C²f + ... projected onto the probe vector h. Averaging over many
// trajectories gives the estimate; probing with each unit vector e_k yields
// the full solution vector from a single batch of trajectories.
//
// Usage:
//
//	est := montecarlo.New(montecarlo.Options{Logger: logger})
//	x, err := est.Solve(sys.C, sys.F, 20000, 50)
package montecarlo
