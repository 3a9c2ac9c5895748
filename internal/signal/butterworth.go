package signal

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Default cut-off frequencies in Hz.
const (
	DefaultMarkerCutoff = 6.0
	DefaultSolverCutoff = 8.0
)

// Coefficients of a direct-form IIR filter, normalised so A[0] == 1.
type Coefficients struct {
	B []float64
	A []float64
}

// Butterworth designs a second-order low-pass Butterworth filter with the
// cut-off normalised to the Nyquist frequency of rate. The design uses the
// bilinear transform with frequency pre-warping.
func Butterworth(cutoff, rate float64) (Coefficients, error) {
	if rate <= 0 {
		return Coefficients{}, fmt.Errorf("sample rate must be positive, got %g", rate)
	}
	wn := cutoff / (rate / 2)
	if wn <= 0 || wn >= 1 {
		return Coefficients{}, fmt.Errorf("cut-off %g Hz must lie in (0, %g) Hz for rate %g Hz", cutoff, rate/2, rate)
	}
	k := math.Tan(math.Pi * wn / 2)
	k2 := k * k
	norm := 1 + math.Sqrt2*k + k2
	b0 := k2 / norm
	return Coefficients{
		B: []float64{b0, 2 * b0, b0},
		A: []float64{1, 2 * (k2 - 1) / norm, (1 - math.Sqrt2*k + k2) / norm},
	}, nil
}

// Order returns the filter order.
func (c Coefficients) Order() int { return len(c.A) - 1 }

// PadLen is the odd-extension length used by FiltFilt.
func (c Coefficients) PadLen() int {
	n := len(c.A)
	if len(c.B) > n {
		n = len(c.B)
	}
	return 3 * n
}

// LFilterZi returns the initial state of the transposed direct-form filter
// for a unit step input, so that filtering a constant produces no transient.
// It solves (I - Aᵀ_companion) zi = B[1:] - A[1:]·B[0].
func (c Coefficients) LFilterZi() ([]float64, error) {
	n := c.Order()
	if n == 0 {
		return nil, nil
	}
	m := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		m.Set(i, 0, c.A[i+1])
		if i > 0 {
			m.Set(i-1, i, m.At(i-1, i)-1)
		}
		m.Set(i, i, m.At(i, i)+1)
	}
	rhs := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		rhs.SetVec(i, c.B[i+1]-c.A[i+1]*c.B[0])
	}
	var zi mat.VecDense
	if err := zi.SolveVec(m, rhs); err != nil {
		return nil, fmt.Errorf("solve filter initial state: %w", err)
	}
	return append([]float64(nil), zi.RawVector().Data...), nil
}

// LFilter applies the filter to x in transposed direct form II starting
// from state zi (which may be nil for zero state).
func (c Coefficients) LFilter(x, zi []float64) []float64 {
	n := c.Order()
	z := make([]float64, n+1)
	copy(z, zi)
	y := make([]float64, len(x))
	for i, xi := range x {
		yi := c.B[0]*xi + z[0]
		for k := 1; k <= n; k++ {
			z[k-1] = c.B[k]*xi + z[k] - c.A[k]*yi
		}
		y[i] = yi
	}
	return y
}

// FiltFilt applies the filter forwards and backwards for zero phase
// distortion. The signal is extended at both ends by an odd reflection of
// PadLen samples and the filter state is initialised to its steady state
// for the first sample, which suppresses edge transients. Signals no longer
// than PadLen cannot be padded and are rejected.
func (c Coefficients) FiltFilt(x []float64) ([]float64, error) {
	pad := c.PadLen()
	if len(x) <= pad {
		return nil, fmt.Errorf("signal of %d samples is too short to filter (need > %d)", len(x), pad)
	}
	zi, err := c.LFilterZi()
	if err != nil {
		return nil, err
	}

	n := len(x)
	ext := make([]float64, 0, n+2*pad)
	for i := pad; i >= 1; i-- {
		ext = append(ext, 2*x[0]-x[i])
	}
	ext = append(ext, x...)
	for i := n - 2; i >= n-1-pad; i-- {
		ext = append(ext, 2*x[n-1]-x[i])
	}

	y := c.LFilter(ext, scaled(zi, ext[0]))
	reverse(y)
	y = c.LFilter(y, scaled(zi, y[0]))
	reverse(y)
	return y[pad : pad+n], nil
}

func scaled(v []float64, f float64) []float64 {
	out := make([]float64, len(v))
	for i := range v {
		out[i] = v[i] * f
	}
	return out
}

func reverse(v []float64) {
	for i, j := 0, len(v)-1; i < j; i, j = i+1, j-1 {
		v[i], v[j] = v[j], v[i]
	}
}
