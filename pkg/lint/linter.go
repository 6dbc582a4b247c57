// Package lint checks a loaded skills corpus against the authoring
// conventions: frontmatter shape, name and description limits, body length,
// required sections, link integrity and cross-tree consistency.
package lint

import (
	"context"
	"time"

	"github.com/gobwas/glob"
	"github.com/jingkaihe/skillctl/pkg/logger"
	"github.com/jingkaihe/skillctl/pkg/skills"
	"github.com/jingkaihe/skillctl/pkg/telemetry"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// Limits are the numeric content limits
type Limits struct {
	NameMax        int
	DescriptionMax int
	BodyLines      int // the body must have fewer lines than this
}

// DefaultLimits returns the limits of the skill format
func DefaultLimits() Limits {
	return Limits{NameMax: 64, DescriptionMax: 1024, BodyLines: 500}
}

// Options configures a Linter
type Options struct {
	Limits           Limits
	RequiredSections []string
	Enable           []string          // glob patterns over rule IDs, empty enables all
	Disable          []string          // glob patterns over rule IDs
	Severity         map[string]string // rule ID to severity override
	Concurrency      int
	CheckAnchors     bool
}

// DefaultOptions returns options with the default limits, every rule enabled
// and anchor checking on
func DefaultOptions() Options {
	return Options{
		Limits:       DefaultLimits(),
		Concurrency:  8,
		CheckAnchors: true,
	}
}

// Result is the outcome of a lint run
type Result struct {
	Findings   []Finding
	SkillCount int
	Rules      []string
	StartedAt  time.Time
	Duration   time.Duration
}

// Counts tallies the findings of the result per severity
func (r *Result) Counts() Counts {
	return Count(r.Findings)
}

// Linter runs the active rules over a corpus
type Linter struct {
	opts        Options
	skillRules  []SkillRule
	corpusRules []CorpusRule
	active      []Rule
	severity    map[string]Severity
}

// New validates opts and selects the active rules
func New(opts Options) (*Linter, error) {
	if opts.Limits.NameMax <= 0 || opts.Limits.DescriptionMax <= 0 || opts.Limits.BodyLines <= 0 {
		return nil, errors.New("lint limits must be positive")
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}

	enable, err := compileGlobs(opts.Enable)
	if err != nil {
		return nil, errors.Wrap(err, "invalid enable pattern")
	}
	disable, err := compileGlobs(opts.Disable)
	if err != nil {
		return nil, errors.Wrap(err, "invalid disable pattern")
	}

	l := &Linter{opts: opts, severity: make(map[string]Severity)}

	for id, value := range opts.Severity {
		if _, ok := RuleByID(id); !ok {
			return nil, errors.Errorf("severity override for unknown rule %q", id)
		}
		sev, err := ParseSeverity(value)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid severity for rule %s", id)
		}
		l.severity[id] = sev
	}

	for _, r := range Rules() {
		if len(enable) > 0 && !matchAny(enable, r.ID()) {
			continue
		}
		if matchAny(disable, r.ID()) {
			continue
		}
		l.active = append(l.active, r)
		switch rr := r.(type) {
		case SkillRule:
			l.skillRules = append(l.skillRules, rr)
		case CorpusRule:
			l.corpusRules = append(l.corpusRules, rr)
		}
	}

	return l, nil
}

// Active returns the rules selected by the enable and disable patterns
func (l *Linter) Active() []Rule {
	return l.active
}

// SeverityOf returns the effective severity of a rule
func (l *Linter) SeverityOf(r Rule) Severity {
	if sev, ok := l.severity[r.ID()]; ok {
		return sev
	}
	return r.DefaultSeverity()
}

// Run checks every skill of the corpus concurrently, then runs the corpus
// rules once. Findings are sorted by path, line and rule.
func (l *Linter) Run(ctx context.Context, corpus *skills.Corpus) (*Result, error) {
	started := time.Now()
	result := &Result{StartedAt: started, SkillCount: len(corpus.Skills)}
	for _, r := range l.active {
		result.Rules = append(result.Rules, r.ID())
	}

	err := telemetry.WithSpan(ctx, "lint.run", func(ctx context.Context) error {
		lc := newContext(corpus, l.opts)
		perSkill := make([][]Finding, len(corpus.Skills))

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(l.opts.Concurrency)
		for i, skill := range corpus.Skills {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				perSkill[i] = l.checkSkill(gctx, lc, skill)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return errors.Wrap(err, "lint run aborted")
		}
		if err := ctx.Err(); err != nil {
			return errors.Wrap(err, "lint run aborted")
		}

		for _, findings := range perSkill {
			result.Findings = append(result.Findings, findings...)
		}
		for _, r := range l.corpusRules {
			result.Findings = append(result.Findings, l.stamp(r, r.CheckCorpus(ctx, lc, corpus))...)
		}

		counts := result.Counts()
		telemetry.RecordFindings(ctx, counts.Errors, counts.Warnings, counts.Infos)
		return nil
	}, telemetry.CorpusAttributes(corpus.Root, len(corpus.Skills))...)
	if err != nil {
		return nil, err
	}

	SortFindings(result.Findings)
	result.Duration = time.Since(started)

	counts := result.Counts()
	logger.G(ctx).WithFields(map[string]any{
		"skills":   result.SkillCount,
		"errors":   counts.Errors,
		"warnings": counts.Warnings,
		"infos":    counts.Infos,
		"duration": result.Duration,
	}).Debug("lint run complete")

	return result, nil
}

func (l *Linter) checkSkill(ctx context.Context, lc *Context, skill *skills.Skill) []Finding {
	var findings []Finding
	telemetry.WithSpanFunc(ctx, "lint.skill", func(ctx context.Context) {
		for _, r := range l.skillRules {
			findings = append(findings, l.stamp(r, r.CheckSkill(ctx, lc, skill))...)
		}
	}, telemetry.SkillAttributes(skill.Tree, skill.DirName())...)
	return findings
}

func (l *Linter) stamp(r Rule, findings []Finding) []Finding {
	sev := l.SeverityOf(r)
	for i := range findings {
		findings[i].Rule = r.ID()
		findings[i].Severity = sev
	}
	return findings
}

func compileGlobs(patterns []string) ([]glob.Glob, error) {
	globs := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(p)
		if err != nil {
			return nil, errors.Wrapf(err, "pattern %q", p)
		}
		globs = append(globs, g)
	}
	return globs, nil
}

func matchAny(globs []glob.Glob, id string) bool {
	for _, g := range globs {
		if g.Match(id) {
			return true
		}
	}
	return false
}
