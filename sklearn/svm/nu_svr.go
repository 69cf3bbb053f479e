// Package svm はカーネル法によるサポートベクター回帰を提供します。
package svm

import (
	"math"
	"slices"
	"sync"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/modelbench/core/model"
	"github.com/YuminosukeSato/modelbench/metrics"
	"github.com/YuminosukeSato/modelbench/pkg/errors"
	"github.com/YuminosukeSato/modelbench/pkg/log"
)

// tau は二次係数が非正のときに使う下限
const tau = 1e-12

// NuSVR はν-サポートベクター回帰。
// νはサポートベクターの割合の下限と、ε-チューブ外の誤差の割合の上限を与える。
// scikit-learn (libsvm) のNuSVRと同じ双対問題をSMOで解く。
type NuSVR struct {
	kernelParams
	c       float64
	nu      float64
	tol     float64
	maxIter int // -1 で上限なし

	state *model.StateManager
	mu    sync.RWMutex

	supportVectors *mat.Dense // nSV × nFeatures
	support        []int      // 学習データ中のインデックス
	dualCoef       []float64  // αᵢ − αᵢ*（サポートベクターのみ）
	intercept      float64    // −rho
	gammaValue     float64
	kf             kernelFunc
	nIter          int
}

// NuSVROption はNuSVRの設定オプション
type NuSVROption func(*NuSVR)

// WithKernel はカーネルを設定
func WithKernel(kernel string) NuSVROption {
	return func(m *NuSVR) { m.kernel = kernel }
}

// WithGamma はカーネル係数を設定（"scale"、"auto" または float64）
func WithGamma(gamma interface{}) NuSVROption {
	return func(m *NuSVR) { m.gamma = gamma }
}

// WithDegree は多項式カーネルの次数を設定
func WithDegree(degree int) NuSVROption {
	return func(m *NuSVR) { m.degree = degree }
}

// WithCoef0 はpoly/sigmoidカーネルの定数項を設定
func WithCoef0(coef0 float64) NuSVROption {
	return func(m *NuSVR) { m.coef0 = coef0 }
}

// WithC は誤差項のペナルティCを設定
func WithC(c float64) NuSVROption {
	return func(m *NuSVR) { m.c = c }
}

// WithNu はνを設定
func WithNu(nu float64) NuSVROption {
	return func(m *NuSVR) { m.nu = nu }
}

// WithSVRTol は停止条件の許容誤差を設定
func WithSVRTol(tol float64) NuSVROption {
	return func(m *NuSVR) { m.tol = tol }
}

// WithSVRMaxIter はSMOの最大反復回数を設定（-1で上限なし）
func WithSVRMaxIter(maxIter int) NuSVROption {
	return func(m *NuSVR) { m.maxIter = maxIter }
}

// NewNuSVR は新しいNuSVRを作成する。
// デフォルトは rbf カーネル、gamma="scale"、C=1、nu=0.5、tol=1e-3。
func NewNuSVR(options ...NuSVROption) *NuSVR {
	m := &NuSVR{
		kernelParams: kernelParams{
			kernel: "rbf",
			gamma:  "scale",
			degree: 3,
		},
		c:       1,
		nu:      0.5,
		tol:     1e-3,
		maxIter: -1,
		state:   model.NewStateManager(),
	}
	for _, opt := range options {
		opt(m)
	}
	return m
}

// Fit は双対問題を解いてサポートベクターを求める
func (m *NuSVR) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "NuSVR.Fit")

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.nu <= 0 || m.nu > 1 {
		return errors.NewValidationError("nu", "must be in (0, 1]", m.nu)
	}
	if m.c <= 0 {
		return errors.NewValidationError("C", "must be positive", m.c)
	}
	if m.tol <= 0 {
		return errors.NewValidationError("tol", "must be positive", m.tol)
	}

	n, d := X.Dims()
	if n == 0 || d == 0 {
		return errors.NewModelError("NuSVR.Fit", "empty data", errors.ErrEmptyData)
	}
	ny, cy := y.Dims()
	if ny != n {
		return errors.NewDimensionError("NuSVR.Fit", n, ny, 0)
	}
	if cy != 1 {
		return errors.NewDimensionError("NuSVR.Fit", 1, cy, 1)
	}

	Xd := mat.DenseCopyOf(X)
	gamma, err := m.resolveGamma(Xd)
	if err != nil {
		return err
	}
	kf, err := m.build(gamma)
	if err != nil {
		return err
	}

	sol := newNuSolver(gram(Xd, kf), mat.Col(nil, 0, y), m.c, m.nu, m.tol, m.maxIter)
	sol.solve()
	if !sol.converged {
		errors.Warn(errors.NewConvergenceWarning("NuSVR", sol.iter, "Solver terminated early (max_iter reached)"))
	}

	coef := sol.coef()
	m.support = m.support[:0]
	m.dualCoef = m.dualCoef[:0]
	for i, a := range coef {
		if a != 0 {
			m.support = append(m.support, i)
			m.dualCoef = append(m.dualCoef, a)
		}
	}
	if len(m.support) == 0 {
		m.supportVectors = nil
	} else {
		m.supportVectors = mat.NewDense(len(m.support), d, nil)
		for k, i := range m.support {
			m.supportVectors.SetRow(k, Xd.RawRowView(i))
		}
	}
	m.intercept = -sol.rho
	m.gammaValue = gamma
	m.kf = kf
	m.nIter = sol.iter

	m.state.SetDimensions(d, n)
	m.state.SetFitted()

	log.GetLoggerWithName("svm.nusvr").Debug("NuSVR fitted",
		log.ModelNameKey, "NuSVR",
		log.SamplesKey, n,
		log.FeaturesKey, d,
		log.IterationKey, sol.iter,
		"n_support", len(m.support),
	)
	return nil
}

// Predict は f(x) = Σ coefᵢ K(svᵢ, x) + intercept を返す（n × 1）
func (m *NuSVR) Predict(X mat.Matrix) (mat.Matrix, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n, d := X.Dims()
	if err := m.state.CheckPredictInput("NuSVR", "Predict", d); err != nil {
		return nil, err
	}

	Xd := mat.DenseCopyOf(X)
	pred := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		x := Xd.RawRowView(i)
		s := m.intercept
		for k, a := range m.dualCoef {
			s += a * m.kf(m.supportVectors.RawRowView(k), x)
		}
		pred.Set(i, 0, s)
	}
	return pred, nil
}

// Score は決定係数R²を返す
func (m *NuSVR) Score(X, y mat.Matrix) (float64, error) {
	pred, err := m.Predict(X)
	if err != nil {
		return 0, err
	}
	n, _ := y.Dims()
	return metrics.R2Score(mat.NewVecDense(n, mat.Col(nil, 0, y)), mat.NewVecDense(n, mat.Col(nil, 0, pred)))
}

// NSupport はサポートベクターの数を返す
func (m *NuSVR) NSupport() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.support)
}

// SupportIndices は学習データ中のサポートベクターのインデックスを返す
func (m *NuSVR) SupportIndices() []int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.support)
}

// SupportVectors はサポートベクターのコピーを返す
func (m *NuSVR) SupportVectors() *mat.Dense {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.supportVectors == nil {
		return nil
	}
	return mat.DenseCopyOf(m.supportVectors)
}

// DualCoef は決定関数の双対係数 αᵢ − αᵢ* を返す
func (m *NuSVR) DualCoef() []float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.dualCoef)
}

// Intercept は決定関数の定数項を返す
func (m *NuSVR) Intercept() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.intercept
}

// Gamma は学習時に解決したカーネル係数を返す
func (m *NuSVR) Gamma() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.gammaValue
}

// NIter はSMOの反復回数を返す
func (m *NuSVR) NIter() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.nIter
}

// IsFitted は学習済みかどうかを返す
func (m *NuSVR) IsFitted() bool {
	return m.state.IsFitted()
}

// GetParams はハイパーパラメータを返す
func (m *NuSVR) GetParams() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return map[string]interface{}{
		"kernel":   m.kernel,
		"gamma":    m.gamma,
		"degree":   m.degree,
		"coef0":    m.coef0,
		"C":        m.c,
		"nu":       m.nu,
		"tol":      m.tol,
		"max_iter": m.maxIter,
	}
}

// SetParams はハイパーパラメータを設定する。失敗時は何も変更しない。
func (m *NuSVR) SetParams(params map[string]interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	kp := m.kernelParams
	c, nu, tol, maxIter := m.c, m.nu, m.tol, m.maxIter
	for key, value := range params {
		var err error
		switch key {
		case "kernel":
			kp.kernel, err = model.ParamString(key, value)
		case "gamma":
			if s, ok := value.(string); ok {
				kp.gamma = s
			} else {
				kp.gamma, err = model.ParamFloat(key, value)
			}
		case "degree":
			kp.degree, err = model.ParamInt(key, value)
		case "coef0":
			kp.coef0, err = model.ParamFloat(key, value)
		case "C":
			c, err = model.ParamFloat(key, value)
		case "nu":
			nu, err = model.ParamFloat(key, value)
		case "tol":
			tol, err = model.ParamFloat(key, value)
		case "max_iter":
			maxIter, err = model.ParamInt(key, value)
		default:
			err = model.UnknownParam("NuSVR", key)
		}
		if err != nil {
			return err
		}
	}
	m.kernelParams = kp
	m.c, m.nu, m.tol, m.maxIter = c, nu, tol, maxIter
	return nil
}

// nuSolver は libsvm の Solver_NU 相当。変数は 2l 個で、
// 前半 l 個が αᵢ (符号 +1)、後半 l 個が αᵢ* (符号 −1)。
// 符号ごとに Σα = C·ν·l/2 の等式制約を持つため、作業集合は同符号の組から選ぶ。
type nuSolver struct {
	K       *mat.SymDense
	l       int
	sign    []float64
	p       []float64 // 線形項
	alpha   []float64
	grad    []float64
	qd      []float64
	c       float64
	eps     float64
	maxIter int

	iter      int
	converged bool
	rho       float64
}

func newNuSolver(K *mat.SymDense, y []float64, c, nu, eps float64, maxIter int) *nuSolver {
	l := len(y)
	s := &nuSolver{
		K:       K,
		l:       l,
		sign:    make([]float64, 2*l),
		p:       make([]float64, 2*l),
		alpha:   make([]float64, 2*l),
		grad:    make([]float64, 2*l),
		qd:      make([]float64, 2*l),
		c:       c,
		eps:     eps,
		maxIter: maxIter,
	}
	if s.maxIter < 0 {
		s.maxIter = max(10000000, 100*l)
	}

	sum := c * nu * float64(l) / 2
	for i := 0; i < l; i++ {
		a := math.Min(sum, c)
		s.alpha[i], s.alpha[i+l] = a, a
		sum -= a

		s.p[i], s.sign[i] = -y[i], 1
		s.p[i+l], s.sign[i+l] = y[i], -1
		kii := K.At(i, i)
		s.qd[i], s.qd[i+l] = kii, kii
	}
	return s
}

// q は Q_ij = sign_i · sign_j · K(i mod l, j mod l)
func (s *nuSolver) q(i, j int) float64 {
	return s.sign[i] * s.sign[j] * s.K.At(i%s.l, j%s.l)
}

func (s *nuSolver) upper(i int) bool { return s.alpha[i] >= s.c }
func (s *nuSolver) lower(i int) bool { return s.alpha[i] <= 0 }

func (s *nuSolver) solve() {
	n := 2 * s.l
	copy(s.grad, s.p)
	for i := 0; i < n; i++ {
		if s.lower(i) {
			continue
		}
		for j := 0; j < n; j++ {
			s.grad[j] += s.alpha[i] * s.q(i, j)
		}
	}

	for s.iter < s.maxIter {
		i, j, done := s.selectWorkingSet()
		if done {
			s.converged = true
			break
		}
		s.iter++
		s.update(i, j)
	}
	s.rho = s.calculateRho()
}

// selectWorkingSet は二次情報を使って違反の大きい同符号ペアを選ぶ
func (s *nuSolver) selectWorkingSet() (int, int, bool) {
	n := 2 * s.l
	gmaxp, gmaxp2 := math.Inf(-1), math.Inf(-1)
	gmaxn, gmaxn2 := math.Inf(-1), math.Inf(-1)
	ip, in := -1, -1
	for t := 0; t < n; t++ {
		if s.sign[t] > 0 {
			if !s.upper(t) && -s.grad[t] >= gmaxp {
				gmaxp, ip = -s.grad[t], t
			}
		} else if !s.lower(t) && s.grad[t] >= gmaxn {
			gmaxn, in = s.grad[t], t
		}
	}

	jmin := -1
	objMin := math.Inf(1)
	for j := 0; j < n; j++ {
		var gradDiff, quad float64
		if s.sign[j] > 0 {
			if s.lower(j) {
				continue
			}
			gmaxp2 = math.Max(gmaxp2, s.grad[j])
			if ip < 0 {
				continue
			}
			gradDiff = gmaxp + s.grad[j]
			quad = s.qd[ip] + s.qd[j] - 2*s.q(ip, j)
		} else {
			if s.upper(j) {
				continue
			}
			gmaxn2 = math.Max(gmaxn2, -s.grad[j])
			if in < 0 {
				continue
			}
			gradDiff = gmaxn - s.grad[j]
			quad = s.qd[in] + s.qd[j] - 2*s.q(in, j)
		}
		if gradDiff <= 0 {
			continue
		}
		if quad <= 0 {
			quad = tau
		}
		if obj := -(gradDiff * gradDiff) / quad; obj <= objMin {
			jmin, objMin = j, obj
		}
	}

	if math.Max(gmaxp+gmaxp2, gmaxn+gmaxn2) < s.eps || jmin < 0 {
		return 0, 0, true
	}
	if s.sign[jmin] > 0 {
		return ip, jmin, false
	}
	return in, jmin, false
}

// update は同符号ペア (i, j) の α を Σ を保ったまま更新する
func (s *nuSolver) update(i, j int) {
	oldI, oldJ := s.alpha[i], s.alpha[j]

	quad := s.qd[i] + s.qd[j] - 2*s.q(i, j)
	if quad <= 0 {
		quad = tau
	}
	delta := (s.grad[i] - s.grad[j]) / quad
	sum := s.alpha[i] + s.alpha[j]
	s.alpha[i] -= delta
	s.alpha[j] += delta

	if sum > s.c {
		if s.alpha[i] > s.c {
			s.alpha[i], s.alpha[j] = s.c, sum-s.c
		}
	} else if s.alpha[j] < 0 {
		s.alpha[j], s.alpha[i] = 0, sum
	}
	if sum > s.c {
		if s.alpha[j] > s.c {
			s.alpha[j], s.alpha[i] = s.c, sum-s.c
		}
	} else if s.alpha[i] < 0 {
		s.alpha[i], s.alpha[j] = 0, sum
	}

	dI, dJ := s.alpha[i]-oldI, s.alpha[j]-oldJ
	for k := 0; k < 2*s.l; k++ {
		s.grad[k] += s.q(i, k)*dI + s.q(j, k)*dJ
	}
}

func (s *nuSolver) calculateRho() float64 {
	var nFree1, nFree2 int
	var sumFree1, sumFree2 float64
	ub1, ub2 := math.Inf(1), math.Inf(1)
	lb1, lb2 := math.Inf(-1), math.Inf(-1)

	for i := 0; i < 2*s.l; i++ {
		g := s.grad[i]
		if s.sign[i] > 0 {
			switch {
			case s.upper(i):
				lb1 = math.Max(lb1, g)
			case s.lower(i):
				ub1 = math.Min(ub1, g)
			default:
				nFree1++
				sumFree1 += g
			}
		} else {
			switch {
			case s.upper(i):
				lb2 = math.Max(lb2, g)
			case s.lower(i):
				ub2 = math.Min(ub2, g)
			default:
				nFree2++
				sumFree2 += g
			}
		}
	}

	r1 := boundMidpoint(nFree1, sumFree1, ub1, lb1)
	r2 := boundMidpoint(nFree2, sumFree2, ub2, lb2)
	return (r1 - r2) / 2
}

// boundMidpoint は自由変数の勾配平均、なければ上下限の中点を返す
func boundMidpoint(nFree int, sumFree, ub, lb float64) float64 {
	switch {
	case nFree > 0:
		return sumFree / float64(nFree)
	case math.IsInf(ub, 1):
		return lb
	case math.IsInf(lb, -1):
		return ub
	default:
		return (ub + lb) / 2
	}
}

// coef は各学習サンプルの αᵢ − αᵢ* を返す
func (s *nuSolver) coef() []float64 {
	out := make([]float64, s.l)
	for i := range out {
		out[i] = s.alpha[i] - s.alpha[i+s.l]
	}
	return out
}
