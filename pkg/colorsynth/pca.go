package colorsynth

import (
	"fmt"
	"image"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"hsicube/pkg/cube"
)

// DefaultPCASamples bounds the number of pixels used to fit the components.
const DefaultPCASamples = 1 << 16

// PCAOptions controls the PCA fit.
type PCAOptions struct {
	// MaxSamples bounds the pixels used as observations. Pixels are taken in
	// row-major spatial order at a fixed stride of ceil(pixels/MaxSamples),
	// starting with pixel (0, 0). Zero selects DefaultPCASamples.
	MaxSamples int `yaml:"maxSamples" json:"maxSamples"`
}

// Components is a fitted 3-component PCA basis.
type Components struct {
	// Mean is the per-channel mean of the observations.
	Mean []float64
	// Vectors holds one unit direction per component, highest variance first.
	Vectors [3][]float64
	// Variances are the component variances.
	Variances [3]float64
	// Stride is the pixel sampling stride used for the fit.
	Stride int
}

// FitPCA fits the top three principal components of the channel covariance,
// using channels as variables and sampled pixels as observations.
// Component signs are fixed so the largest-magnitude loading is positive.
func FitPCA(v *cube.View, opts PCAOptions) (*Components, error) {
	if v.Channels < 3 {
		return nil, fmt.Errorf("%w: PCA needs 3 channels, cube has %d", cube.ErrInsufficientChannels, v.Channels)
	}
	maxSamples := opts.MaxSamples
	if maxSamples <= 0 {
		maxSamples = DefaultPCASamples
	}
	pixels := v.Pixels()
	stride := (pixels + maxSamples - 1) / maxSamples
	if stride < 1 {
		stride = 1
	}
	n := (pixels + stride - 1) / stride
	if n < 3 {
		return nil, fmt.Errorf("PCA needs at least 3 pixels, cube has %d", pixels)
	}

	obs := mat.NewDense(n, v.Channels, nil)
	for row := 0; row < n; row++ {
		p := row * stride
		y, x := p/v.Width, p%v.Width
		for ch := 0; ch < v.Channels; ch++ {
			obs.Set(row, ch, finiteOrZero(v.Value(y, x, ch)))
		}
	}

	var pc stat.PC
	if ok := pc.PrincipalComponents(obs, nil); !ok {
		return nil, fmt.Errorf("PCA decomposition failed")
	}
	var vecs mat.Dense
	pc.VectorsTo(&vecs)
	vars := pc.VarsTo(nil)
	if _, cols := vecs.Dims(); cols < 3 {
		return nil, fmt.Errorf("%w: PCA produced %d components", cube.ErrInsufficientChannels, cols)
	}

	comp := &Components{Mean: make([]float64, v.Channels), Stride: stride}
	for ch := 0; ch < v.Channels; ch++ {
		comp.Mean[ch] = stat.Mean(mat.Col(nil, ch, obs), nil)
	}
	for k := 0; k < 3; k++ {
		vec := mat.Col(nil, k, &vecs)
		if vec[floats.MaxIdx(absAll(vec))] < 0 {
			floats.Scale(-1, vec)
		}
		comp.Vectors[k] = vec
		comp.Variances[k] = vars[k]
	}
	return comp, nil
}

// Project returns the three component scores of one spectrum.
func (p *Components) Project(spectrum []float64) [3]float64 {
	centered := make([]float64, len(spectrum))
	floats.SubTo(centered, spectrum, p.Mean)
	var out [3]float64
	for k := range out {
		out[k] = floats.Dot(centered, p.Vectors[k])
	}
	return out
}

// PCARGB renders the first three principal components as red, green and
// blue, each min-max scaled to [0, 255].
func PCARGB(c *cube.Cube, layout cube.Layout, opts PCAOptions) (*image.RGBA, error) {
	v, err := c.View(layout)
	if err != nil {
		return nil, err
	}
	comp, err := FitPCA(v, opts)
	if err != nil {
		return nil, err
	}

	var planes [3][]float64
	for k := range planes {
		planes[k] = make([]float64, v.Pixels())
	}
	spectrum := make([]float64, v.Channels)
	for y := 0; y < v.Height; y++ {
		for x := 0; x < v.Width; x++ {
			for ch := range spectrum {
				spectrum[ch] = finiteOrZero(v.Value(y, x, ch))
			}
			scores := comp.Project(spectrum)
			for k := range planes {
				planes[k][y*v.Width+x] = scores[k]
			}
		}
	}
	return toRGBA(v.Width, v.Height, planes), nil
}

func finiteOrZero(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func absAll(v []float64) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = math.Abs(x)
	}
	return out
}
