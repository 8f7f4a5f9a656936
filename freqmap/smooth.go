package freqmap

import "math"

// GaussianKernel returns the weights exp(-0.5*(d/sigma)^2) for
// d in [-ceil(3*sigma), ceil(3*sigma)]
func GaussianKernel(sigma float64) []float64 {
	if sigma <= 0 || !isFinite(sigma) {
		return []float64{1}
	}

	radius := int(math.Ceil(3 * sigma))
	kernel := make([]float64, 2*radius+1)
	for i := range kernel {
		d := float64(i - radius)
		kernel[i] = math.Exp(-0.5 * (d / sigma) * (d / sigma))
	}
	return kernel
}

// GaussianSmooth blurs data with a Gaussian kernel. Each output is divided
// by the sum of the weights that actually landed on the array, so the edges
// are not darkened. Non-finite samples contribute no weight.
func GaussianSmooth(data []float64, sigma float64) []float64 {
	kernel := GaussianKernel(sigma)
	radius := len(kernel) / 2

	out := make([]float64, len(data))
	for i := range data {
		var value, weightSum float64
		for j, w := range kernel {
			idx := i + j - radius
			if idx < 0 || idx >= len(data) || !isFinite(data[idx]) {
				continue
			}
			value += data[idx] * w
			weightSum += w
		}
		if weightSum == 0 {
			out[i] = math.NaN()
			continue
		}
		out[i] = value / weightSum
	}
	return out
}
