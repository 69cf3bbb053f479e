package tree

import "math"

// impurity は重み付きクラス分布または重み付き目的変数統計から不純度を計算する
type impurity func(s *nodeStats) float64

// nodeStats はノード内サンプルの重み付き集計
type nodeStats struct {
	weight float64   // Σw
	counts []float64 // 分類: クラスごとのΣw
	sumY   float64   // 回帰: Σw·y
	sumY2  float64   // 回帰: Σw·y²
	n      int       // 重み0を除いたサンプル数
}

func newNodeStats(nClasses int) nodeStats {
	if nClasses > 0 {
		return nodeStats{counts: make([]float64, nClasses)}
	}
	return nodeStats{}
}

func (s *nodeStats) add(w, y float64, class int) {
	s.weight += w
	s.n++
	if s.counts != nil {
		s.counts[class] += w
		return
	}
	s.sumY += w * y
	s.sumY2 += w * y * y
}

func (s *nodeStats) sub(o *nodeStats) nodeStats {
	out := nodeStats{
		weight: s.weight - o.weight,
		sumY:   s.sumY - o.sumY,
		sumY2:  s.sumY2 - o.sumY2,
		n:      s.n - o.n,
	}
	if s.counts != nil {
		out.counts = make([]float64, len(s.counts))
		for k := range s.counts {
			out.counts[k] = s.counts[k] - o.counts[k]
		}
	}
	return out
}

func gini(s *nodeStats) float64 {
	if s.weight <= 0 {
		return 0
	}
	g := 1.0
	for _, c := range s.counts {
		p := c / s.weight
		g -= p * p
	}
	return g
}

func entropy(s *nodeStats) float64 {
	if s.weight <= 0 {
		return 0
	}
	var h float64
	for _, c := range s.counts {
		if c > 0 {
			p := c / s.weight
			h -= p * math.Log2(p)
		}
	}
	return h
}

func squaredError(s *nodeStats) float64 {
	if s.weight <= 0 {
		return 0
	}
	mean := s.sumY / s.weight
	return math.Max(0, s.sumY2/s.weight-mean*mean)
}

var classificationCriteria = map[string]impurity{
	"gini":     gini,
	"entropy":  entropy,
	"log_loss": entropy,
}

var regressionCriteria = map[string]impurity{
	"squared_error": squaredError,
}
