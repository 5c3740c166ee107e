package speechtext

import (
	"regexp"
)

// Stage groups rules that rewrite the same family of notation. Stages run in
// ascending order and rules inside a stage run in table order.
type Stage int

const (
	StageExponents Stage = iota + 1
	StageSubscripts
	StageFractions
	StageIntegrals
	StageSummations
	StageGreek
	StageFunctions
	StageOperators
	StageRelations
	StageArrows
	StageSets
	StageLimits
	StageDelimiters
	StageWhitespace
)

var stageNames = map[Stage]string{
	StageExponents:  "exponents",
	StageSubscripts: "subscripts",
	StageFractions:  "fractions",
	StageIntegrals:  "integrals",
	StageSummations: "summations",
	StageGreek:      "greek",
	StageFunctions:  "functions",
	StageOperators:  "operators",
	StageRelations:  "relations",
	StageArrows:     "arrows",
	StageSets:       "sets",
	StageLimits:     "limits",
	StageDelimiters: "delimiters",
	StageWhitespace: "whitespace",
}

func (s Stage) String() string {
	if name, ok := stageNames[s]; ok {
		return name
	}
	return "unknown"
}

// Rule is a single pattern/replacement pair. Replacement is expanded with
// regexp template syntax, so captured groups are referenced as ${1}, ${2}.
type Rule struct {
	Name        string
	Stage       Stage
	Pattern     *regexp.Regexp
	Replacement string

	// Superseded marks a rule that can never match because an earlier rule
	// already rewrites every occurrence of its pattern.
	Superseded bool

	// Repeat reapplies the rule until s stops changing. Patterns that consume
	// the character after the match need it for back-to-back occurrences.
	Repeat bool
}

// Apply rewrites every match of the rule in s.
func (r Rule) Apply(s string) string {
	out := r.Pattern.ReplaceAllString(s, r.Replacement)
	for r.Repeat && out != s {
		s = out
		out = r.Pattern.ReplaceAllString(s, r.Replacement)
	}
	return out
}

// RuleSet is an ordered rule table. The output of rule i is the input of
// rule i+1.
type RuleSet []Rule

// Apply runs every rule in order over s.
func (rs RuleSet) Apply(s string) string {
	for _, r := range rs {
		s = r.Apply(s)
	}
	return s
}

// Stage returns the rules that belong to st, preserving their order.
func (rs RuleSet) Stage(st Stage) RuleSet {
	var out RuleSet
	for _, r := range rs {
		if r.Stage == st {
			out = append(out, r)
		}
	}
	return out
}

// Through returns the prefix of the table up to and including stage st.
func (rs RuleSet) Through(st Stage) RuleSet {
	var out RuleSet
	for _, r := range rs {
		if r.Stage > st {
			break
		}
		out = append(out, r)
	}
	return out
}

func rule(stage Stage, name, pattern, replacement string) Rule {
	return Rule{
		Name:        name,
		Stage:       stage,
		Pattern:     regexp.MustCompile(pattern),
		Replacement: replacement,
	}
}

// repeated marks r to run until it no longer matches.
func repeated(r Rule) Rule {
	r.Repeat = true
	return r
}

// command builds a literal rule for a backslash command such as \alpha.
func command(stage Stage, name, spoken string) Rule {
	return rule(stage, name, `\\`+regexp.QuoteMeta(name), spoken)
}

// whitespace is the set of characters collapsed by the final stage. It adds
// vertical tab and Unicode separators (no-break space and friends) to RE2's
// ASCII \s.
const whitespace = `[\s\v\p{Z}\x{FEFF}]`

// defaultRules is the fixed table used by ConvertLatexToSpeech. It is built
// once and never modified.
var defaultRules = RuleSet{
	rule(StageExponents, "digit exponent", `\^(\d+)`, " to the power of ${1}"),
	rule(StageExponents, "word exponent", `\^(\w+)`, " to the ${1}"),
	rule(StageExponents, "braced exponent", `\^\{([^}]+)\}`, " to the power of ${1}"),

	rule(StageSubscripts, "digit subscript", `_(\d+)`, " sub ${1}"),
	rule(StageSubscripts, "word subscript", `_(\w+)`, " sub ${1}"),
	rule(StageSubscripts, "braced subscript", `_\{([^}]+)\}`, " sub ${1}"),

	rule(StageFractions, "fraction", `\\frac\{([^}]+)\}\{([^}]+)\}`, "(${1}) divided by (${2})"),
	{
		Name:        "fraction over",
		Stage:       StageFractions,
		Pattern:     regexp.MustCompile(`\\frac\{([^}]+)\}\{([^}]+)\}`),
		Replacement: "${1} over ${2}",
		// "fraction" consumes every \frac first.
		Superseded: true,
	},

	rule(StageIntegrals, "bounded integral", `\\int_(\w+)\^(\w+)`, "integral from ${1} to ${2}"),
	command(StageIntegrals, "int", "integral"),

	rule(StageSummations, "bounded sum", `\\sum_(\w+)\^(\w+)`, "sum from ${1} to ${2}"),
	command(StageSummations, "sum", "sum"),

	command(StageGreek, "alpha", "alpha"),
	command(StageGreek, "beta", "beta"),
	command(StageGreek, "gamma", "gamma"),
	command(StageGreek, "delta", "delta"),
	command(StageGreek, "epsilon", "epsilon"),
	command(StageGreek, "theta", "theta"),
	command(StageGreek, "lambda", "lambda"),
	command(StageGreek, "mu", "mu"),
	command(StageGreek, "pi", "pi"),
	command(StageGreek, "sigma", "sigma"),
	command(StageGreek, "tau", "tau"),
	command(StageGreek, "phi", "phi"),
	command(StageGreek, "chi", "chi"),
	command(StageGreek, "psi", "psi"),
	command(StageGreek, "omega", "omega"),

	command(StageFunctions, "sin", "sine"),
	command(StageFunctions, "cos", "cosine"),
	command(StageFunctions, "tan", "tangent"),
	command(StageFunctions, "log", "log"),
	command(StageFunctions, "ln", "natural log"),
	command(StageFunctions, "exp", "exponential"),

	command(StageOperators, "cdot", "times"),
	command(StageOperators, "times", "times"),
	command(StageOperators, "div", "divided by"),
	command(StageOperators, "pm", "plus or minus"),
	command(StageOperators, "mp", "minus or plus"),

	command(StageRelations, "leq", "less than or equal to"),
	command(StageRelations, "geq", "greater than or equal to"),
	command(StageRelations, "neq", "not equal to"),
	command(StageRelations, "approx", "approximately equal to"),
	command(StageRelations, "equiv", "equivalent to"),

	command(StageArrows, "rightarrow", "implies"),
	command(StageArrows, "leftarrow", "implied by"),
	command(StageArrows, "leftrightarrow", "if and only if"),

	// \in must not eat the prefix of \infty, which is rewritten one stage later.
	// The character after \in is consumed, so \in\in takes a second pass.
	repeated(rule(StageSets, "in", `\\in([^A-Za-z]|$)`, "is an element of${1}")),
	command(StageSets, "notin", "is not an element of"),
	command(StageSets, "subset", "is a subset of"),
	command(StageSets, "supset", "is a superset of"),
	command(StageSets, "cup", "union"),
	command(StageSets, "cap", "intersection"),
	command(StageSets, "emptyset", "empty set"),

	command(StageLimits, "infty", "infinity"),
	command(StageLimits, "lim", "limit"),

	rule(StageDelimiters, "left paren", `\\left\(`, "open parenthesis"),
	rule(StageDelimiters, "right paren", `\\right\)`, "close parenthesis"),
	rule(StageDelimiters, "left bracket", `\\left\[`, "open bracket"),
	rule(StageDelimiters, "right bracket", `\\right\]`, "close bracket"),

	rule(StageWhitespace, "collapse", whitespace+`+`, " "),
	rule(StageWhitespace, "trim", `^`+whitespace+`+|`+whitespace+`+$`, ""),
}

// DefaultRules returns a copy of the built-in rule table. Compiled patterns
// are shared; they are safe for concurrent use.
func DefaultRules() RuleSet {
	out := make(RuleSet, len(defaultRules))
	copy(out, defaultRules)
	return out
}
