// Package gbdt implements a small gradient boosted tree learner for binary
// classification: depth-limited regression trees fit to the gradients of
// logistic loss, with Newton leaf values and optional early stopping on a
// validation set. Training is fully deterministic, with no row or column
// subsampling, so repeated runs on the same inputs produce identical
// models.
package gbdt

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// DataSet holds feature columns and labels, column-major.
type DataSet struct {
	Cols   [][]float64
	Labels []float64
}

func (d *DataSet) Rows() int {
	return len(d.Labels)
}

// Params configures a boosting run.
type Params struct {
	Rounds              int     // maximum boosting rounds
	LearningRate        float64 // shrinkage applied to every leaf
	MaxDepth            int
	MinChildWeight      float64 // minimum hessian sum per child
	Lambda              float64 // L2 regularization on leaf values
	PosWeight           float64 // sample weight for positive-class rows (class imbalance)
	EarlyStoppingRounds int     // patience; 0 disables early stopping
}

// Model is a trained boosted ensemble. Inference uses trees up to
// BestIteration: the round with the best validation loss when early
// stopping triggered, otherwise every round that was grown.
type Model struct {
	trees         []*node
	featureGain   []float64
	BestIteration int
	BestScore     float64
	StoppedEarly  bool
}

type node struct {
	isLeaf  bool
	leaf    float64 // shrunken leaf value
	feature int
	thresh  float64
	left    *node
	right   *node
}

// Train fits a boosted model on train, evaluating validation logloss on
// valid after every round. valid may be nil, in which case all rounds are
// kept.
func Train(train, valid *DataSet, p Params) (*Model, error) {
	if p.Rounds <= 0 {
		return nil, fmt.Errorf("rounds must be > 0, got %d", p.Rounds)
	}
	if train == nil || train.Rows() == 0 {
		return nil, errors.New("empty training set")
	}
	if p.LearningRate <= 0 {
		return nil, fmt.Errorf("learning rate must be > 0, got %f", p.LearningRate)
	}
	if p.PosWeight <= 0 {
		p.PosWeight = 1
	}

	n := train.Rows()
	weights := make([]float64, n)
	for i, y := range train.Labels {
		if y > 0.5 {
			weights[i] = p.PosWeight
		} else {
			weights[i] = 1
		}
	}

	m := &Model{
		featureGain:   make([]float64, len(train.Cols)),
		BestIteration: -1,
		BestScore:     math.Inf(1),
	}

	margins := make([]float64, n)
	grad := make([]float64, n)
	hess := make([]float64, n)

	var validMargins []float64
	if valid != nil && valid.Rows() > 0 {
		validMargins = make([]float64, valid.Rows())
	}

	roundsSinceBest := 0
	for round := 0; round < p.Rounds; round++ {
		for i := range margins {
			prob := sigmoid(margins[i])
			grad[i] = weights[i] * (prob - train.Labels[i])
			hess[i] = weights[i] * prob * (1 - prob)
		}

		rows := make([]int, n)
		for i := range rows {
			rows[i] = i
		}
		root := m.buildNode(train, rows, grad, hess, p, 0)
		m.trees = append(m.trees, root)

		for i := range margins {
			margins[i] += evalTree(root, train, i)
		}

		if validMargins == nil {
			m.BestIteration = round
			continue
		}

		for i := range validMargins {
			validMargins[i] += evalTree(root, valid, i)
		}
		loss := logLoss(validMargins, valid.Labels)
		if math.IsNaN(loss) {
			return nil, fmt.Errorf("validation loss became NaN at round %d", round)
		}

		if loss < m.BestScore {
			m.BestScore = loss
			m.BestIteration = round
			roundsSinceBest = 0
		} else {
			roundsSinceBest++
		}

		if p.EarlyStoppingRounds > 0 && roundsSinceBest >= p.EarlyStoppingRounds {
			m.StoppedEarly = true
			break
		}
	}

	// The best-validation round governs inference only when the patience
	// window actually expired; a run that completes all rounds keeps the
	// full ensemble.
	if !m.StoppedEarly {
		m.BestIteration = len(m.trees) - 1
	}
	return m, nil
}

// Predict returns the positive-class probability for every row of d, using
// trees up to and including BestIteration.
func (m *Model) Predict(d *DataSet) []float64 {
	out := make([]float64, d.Rows())
	for i := range out {
		margin := 0.0
		for t := 0; t <= m.BestIteration && t < len(m.trees); t++ {
			margin += evalTree(m.trees[t], d, i)
		}
		out[i] = sigmoid(margin)
	}
	return out
}

// FeatureGain returns the total split gain accumulated per feature across
// all trees (gain-based importance).
func (m *Model) FeatureGain() []float64 {
	out := make([]float64, len(m.featureGain))
	copy(out, m.featureGain)
	return out
}

// Trees returns the number of trees actually grown.
func (m *Model) Trees() int {
	return len(m.trees)
}

type splitCandidate struct {
	feature int
	thresh  float64
	gain    float64
}

func (m *Model) buildNode(d *DataSet, rows []int, grad, hess []float64, p Params, depth int) *node {
	var sumG, sumH float64
	for _, i := range rows {
		sumG += grad[i]
		sumH += hess[i]
	}

	leaf := func() *node {
		return &node{
			isLeaf: true,
			leaf:   -p.LearningRate * sumG / (sumH + p.Lambda),
		}
	}

	if depth >= p.MaxDepth || len(rows) < 2 || sumH < 2*p.MinChildWeight {
		return leaf()
	}

	best := splitCandidate{feature: -1}
	parentScore := sumG * sumG / (sumH + p.Lambda)

	for f := range d.Cols {
		col := d.Cols[f]
		ordered := make([]int, len(rows))
		copy(ordered, rows)
		sort.SliceStable(ordered, func(a, b int) bool {
			return col[ordered[a]] < col[ordered[b]]
		})

		var leftG, leftH float64
		for k := 0; k < len(ordered)-1; k++ {
			i := ordered[k]
			leftG += grad[i]
			leftH += hess[i]

			// Can only split between distinct values.
			if col[i] == col[ordered[k+1]] {
				continue
			}

			rightG := sumG - leftG
			rightH := sumH - leftH
			if leftH < p.MinChildWeight || rightH < p.MinChildWeight {
				continue
			}

			gain := 0.5 * (leftG*leftG/(leftH+p.Lambda) +
				rightG*rightG/(rightH+p.Lambda) -
				parentScore)
			if gain > best.gain {
				best = splitCandidate{
					feature: f,
					thresh:  (col[i] + col[ordered[k+1]]) / 2,
					gain:    gain,
				}
			}
		}
	}

	if best.feature < 0 || best.gain <= 0 {
		return leaf()
	}

	m.featureGain[best.feature] += best.gain

	var leftRows, rightRows []int
	for _, i := range rows {
		if d.Cols[best.feature][i] < best.thresh {
			leftRows = append(leftRows, i)
		} else {
			rightRows = append(rightRows, i)
		}
	}

	return &node{
		feature: best.feature,
		thresh:  best.thresh,
		left:    m.buildNode(d, leftRows, grad, hess, p, depth+1),
		right:   m.buildNode(d, rightRows, grad, hess, p, depth+1),
	}
}

func evalTree(n *node, d *DataSet, row int) float64 {
	for !n.isLeaf {
		if d.Cols[n.feature][row] < n.thresh {
			n = n.left
		} else {
			n = n.right
		}
	}
	return n.leaf
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

// logLoss computes the mean negative log likelihood with probability
// clamping to keep the score finite on confident mistakes.
func logLoss(margins, labels []float64) float64 {
	const eps = 1e-15
	total := 0.0
	for i, margin := range margins {
		prob := sigmoid(margin)
		if prob < eps {
			prob = eps
		}
		if prob > 1-eps {
			prob = 1 - eps
		}
		if labels[i] > 0.5 {
			total -= math.Log(prob)
		} else {
			total -= math.Log(1 - prob)
		}
	}
	return total / float64(len(margins))
}
