package speechtext

// SampleProblem is a canned problem used by demo mode.
type SampleProblem struct {
	Kind   string `json:"kind" yaml:"kind"`
	Latex  string `json:"latex" yaml:"latex"`
	Speech string `json:"speech" yaml:"speech"`
}

var samples = []SampleProblem{
	{
		Kind:   "quadratic",
		Latex:  "x^2 + 2x + 1 = 0",
		Speech: "The equation is x squared plus 2x plus 1 equals zero. This is a quadratic equation. To solve, we can factor it as (x plus 1) squared equals zero, which gives us x equals negative 1.",
	},
	{
		Kind:   "calculus",
		Latex:  `\int_0^\infty e^{-x} dx`,
		Speech: "The integral from zero to infinity of e to the negative x, dx. This is an improper integral. The antiderivative of e to the negative x is negative e to the negative x. Evaluating from zero to infinity gives us 1.",
	},
	{
		Kind:   "trigonometry",
		Latex:  `\sin^2(x) + \cos^2(x) = 1`,
		Speech: "Sine squared of x plus cosine squared of x equals 1. This is the fundamental trigonometric identity known as the Pythagorean identity.",
	},
	{
		Kind:   "statistics",
		Latex:  `\frac{\sum(x - \mu)^2}{n}`,
		Speech: "The sum of (x minus mu) squared, divided by n. This is the formula for variance in statistics, where mu is the mean and n is the sample size.",
	},
}

var fallbackSample = SampleProblem{
	Kind:   "default",
	Latex:  "x^2 + 1 = 0",
	Speech: "x squared plus 1 equals zero",
}

// Samples returns the built-in sample problems in a stable order.
func Samples() []SampleProblem {
	out := make([]SampleProblem, len(samples))
	copy(out, samples)
	return out
}

// LookupSample returns the sample of the given kind. Unknown kinds get a
// generic fallback problem.
func LookupSample(kind string) SampleProblem {
	for _, s := range samples {
		if s.Kind == kind {
			return s
		}
	}
	return fallbackSample
}
