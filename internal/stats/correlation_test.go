package stats

import (
	"math"
	"testing"
)

func TestPearsonCorrelation_HighlyCorrelatedDifferentScale(t *testing.T) {
	n := 100
	x := make([]float64, n)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		x[i] = float64(i) / 100
		y[i] = 0.01 + 0.5*x[i]
	}
	rho := PearsonCorrelation(x, y)
	if math.Abs(rho-1.0) > 1e-9 {
		t.Errorf("PearsonCorrelation = %v, want ~1.0", rho)
	}
}

func TestStdDev_Constant_IsZero(t *testing.T) {
	x := make([]float64, 1000)
	for i := range x {
		x[i] = 0.5
	}
	if got := StdDev(x); got != 0 {
		t.Errorf("StdDev(constant) = %v, want 0", got)
	}
}

func TestBinaryCrossEntropy_PerfectPredictions_NearZero(t *testing.T) {
	labels := []float64{1, 0, 1, 0}
	preds := []float64{1 - 1e-12, 1e-12, 1 - 1e-12, 1e-12}
	loss := BinaryCrossEntropy(labels, preds)
	if loss > 1e-6 {
		t.Errorf("BinaryCrossEntropy(perfect) = %v, want ~0", loss)
	}
}

func TestBinaryCrossEntropy_RandomPredictions_EqualsLn2(t *testing.T) {
	labels := []float64{1, 0, 1, 0}
	preds := []float64{0.5, 0.5, 0.5, 0.5}
	loss := BinaryCrossEntropy(labels, preds)
	if math.Abs(loss-Ln2) > 1e-9 {
		t.Errorf("BinaryCrossEntropy(p=0.5) = %v, want ln(2) = %v", loss, Ln2)
	}
}
