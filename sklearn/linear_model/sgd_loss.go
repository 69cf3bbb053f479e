package linear_model

import "math"

// lossFunction は1サンプルの損失と予測値pに関する導関数を計算する。
// 分類ではyは{-1, +1}。
type lossFunction interface {
	loss(p, y float64) float64
	dloss(p, y float64) float64
}

type hinge struct{ threshold float64 }

func (h hinge) loss(p, y float64) float64 {
	return math.Max(0, h.threshold-p*y)
}

func (h hinge) dloss(p, y float64) float64 {
	if p*y <= h.threshold {
		return -y
	}
	return 0
}

type squaredHinge struct{ threshold float64 }

func (h squaredHinge) loss(p, y float64) float64 {
	z := h.threshold - p*y
	if z > 0 {
		return z * z
	}
	return 0
}

func (h squaredHinge) dloss(p, y float64) float64 {
	z := h.threshold - p*y
	if z > 0 {
		return -2 * y * z
	}
	return 0
}

type logLoss struct{}

func (logLoss) loss(p, y float64) float64 {
	z := p * y
	// log(1 + exp(-z)) をオーバーフローなしで計算
	if z > 18 {
		return math.Exp(-z)
	}
	if z < -18 {
		return -z
	}
	return math.Log1p(math.Exp(-z))
}

func (logLoss) dloss(p, y float64) float64 {
	z := p * y
	if z > 18 {
		return math.Exp(-z) * -y
	}
	if z < -18 {
		return -y
	}
	return -y / (math.Exp(z) + 1)
}

// modifiedHuber は二乗ヒンジを平滑化した損失で、確率推定をサポートする
type modifiedHuber struct{}

func (modifiedHuber) loss(p, y float64) float64 {
	z := p * y
	switch {
	case z >= 1:
		return 0
	case z >= -1:
		return (1 - z) * (1 - z)
	default:
		return -4 * z
	}
}

func (modifiedHuber) dloss(p, y float64) float64 {
	z := p * y
	switch {
	case z >= 1:
		return 0
	case z >= -1:
		return -2 * (1 - z) * y
	default:
		return -4 * y
	}
}

type squaredLoss struct{}

func (squaredLoss) loss(p, y float64) float64 {
	return 0.5 * (p - y) * (p - y)
}

func (squaredLoss) dloss(p, y float64) float64 {
	return p - y
}

type huber struct{ epsilon float64 }

func (h huber) loss(p, y float64) float64 {
	r := p - y
	if math.Abs(r) <= h.epsilon {
		return 0.5 * r * r
	}
	return h.epsilon*math.Abs(r) - 0.5*h.epsilon*h.epsilon
}

func (h huber) dloss(p, y float64) float64 {
	r := p - y
	switch {
	case math.Abs(r) <= h.epsilon:
		return r
	case r > h.epsilon:
		return h.epsilon
	default:
		return -h.epsilon
	}
}

type epsilonInsensitive struct{ epsilon float64 }

func (e epsilonInsensitive) loss(p, y float64) float64 {
	return math.Max(0, math.Abs(y-p)-e.epsilon)
}

func (e epsilonInsensitive) dloss(p, y float64) float64 {
	switch r := y - p; {
	case r > e.epsilon:
		return -1
	case r < -e.epsilon:
		return 1
	default:
		return 0
	}
}

var classificationLosses = map[string]func(epsilon float64) lossFunction{
	"hinge":          func(float64) lossFunction { return hinge{threshold: 1} },
	"log_loss":       func(float64) lossFunction { return logLoss{} },
	"modified_huber": func(float64) lossFunction { return modifiedHuber{} },
	"squared_hinge":  func(float64) lossFunction { return squaredHinge{threshold: 1} },
	"perceptron":     func(float64) lossFunction { return hinge{threshold: 0} },
}

var regressionLosses = map[string]func(epsilon float64) lossFunction{
	"squared_error":       func(float64) lossFunction { return squaredLoss{} },
	"huber":               func(e float64) lossFunction { return huber{epsilon: e} },
	"epsilon_insensitive": func(e float64) lossFunction { return epsilonInsensitive{epsilon: e} },
}
