package internal

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/sansecio/sigmatch/lsig"
	"github.com/sansecio/sigmatch/matcher"
	"github.com/sansecio/sigmatch/tracker"
)

// RulesFile is the YAML rules list the tools build a Matcher from.
type RulesFile struct {
	Signatures []SignatureRule `yaml:"signatures"`
	Logical    []LogicalRule   `yaml:"logical"`
}

type SignatureRule struct {
	Name     string   `yaml:"name"`
	Hex      string   `yaml:"hex"`
	Offset   string   `yaml:"offset"`
	Flags    []string `yaml:"flags"`
	Kind     string   `yaml:"kind"`
	FileType string   `yaml:"filetype"`
}

type LogicalRule struct {
	Name       string       `yaml:"name"`
	Expression string       `yaml:"expression"`
	Kind       string       `yaml:"kind"`
	FileType   string       `yaml:"filetype"`
	Subsigs    []SubsigRule `yaml:"subsigs"`
}

type SubsigRule struct {
	Hex    string     `yaml:"hex"`
	Offset string     `yaml:"offset"`
	Flags  []string   `yaml:"flags"`
	After  *AfterRule `yaml:"after"`
}

// AfterRule restricts a sub-signature to matches ending within [min, max]
// bytes after a match of another sub-signature.
type AfterRule struct {
	Subsig int    `yaml:"subsig"`
	Min    uint64 `yaml:"min"`
	Max    uint64 `yaml:"max"`
}

// ParseRules decodes a rules list.
func ParseRules(data []byte) (*RulesFile, error) {
	var rf RulesFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if len(rf.Signatures) == 0 && len(rf.Logical) == 0 {
		return nil, errors.New("no signatures found in YAML")
	}
	return &rf, nil
}

// LoadRules reads and decodes a rules file.
func LoadRules(path string) (*RulesFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", path, err)
	}
	return ParseRules(data)
}

// Logical is a compiled logical signature with its expression.
type Logical struct {
	ID       int
	Name     string
	Kind     matcher.Mode
	FileType string
	Expr     *lsig.Expression
}

// Eligible reports whether l applies to a scan in mode of a target of
// fileType.
func (l Logical) Eligible(mode matcher.Mode, fileType string) bool {
	return l.Kind&mode != 0 && (l.FileType == "" || l.FileType == fileType)
}

// Database is a built Matcher plus the expressions of its logical
// signatures.
type Database struct {
	Matcher *matcher.Matcher
	Logical []Logical
	// Skipped counts rules rejected with skipInvalid set.
	Skipped int
}

// Compile builds a Database from rf. Invalid rules fail the whole build
// unless skipInvalid is set, in which case they are logged and left out.
func Compile(rf *RulesFile, opts matcher.Options, skipInvalid bool) (*Database, error) {
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	db := &Database{Matcher: matcher.New(opts)}
	var errs []error
	reject := func(err error) {
		if skipInvalid {
			db.Skipped++
			log.Warn("skipping invalid rule", "error", err)
			return
		}
		errs = append(errs, err)
	}

	for _, r := range rf.Signatures {
		s, err := r.signature()
		if err == nil {
			err = db.Matcher.AddSignature(s)
		}
		if err != nil {
			reject(err)
		}
	}

	for _, r := range rf.Logical {
		l, err := db.addLogical(r)
		if err != nil {
			reject(err)
			continue
		}
		db.Logical = append(db.Logical, l)
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	if err := db.Matcher.Build(); err != nil {
		return nil, err
	}
	return db, nil
}

func (db *Database) addLogical(r LogicalRule) (Logical, error) {
	expr, err := lsig.Parse(r.Expression)
	if err != nil {
		return Logical{}, fmt.Errorf("logical %q: %w", r.Name, err)
	}
	if expr.Subsigs() > len(r.Subsigs) {
		return Logical{}, fmt.Errorf("logical %q: expression uses subsig %d of %d", r.Name, expr.Subsigs()-1, len(r.Subsigs))
	}
	kind, err := parseKind(r.Kind)
	if err != nil {
		return Logical{}, fmt.Errorf("logical %q: %w", r.Name, err)
	}
	ls := matcher.LogicalSignature{Name: r.Name, Kind: kind, FileType: r.FileType}
	for i, sr := range r.Subsigs {
		flags, err := matcher.ParseFlags(sr.Flags)
		if err != nil {
			return Logical{}, fmt.Errorf("logical %q subsig %d: %w", r.Name, i, err)
		}
		sub := matcher.SubSignature{Hex: sr.Hex, Offset: sr.Offset, Flags: flags}
		if sr.After != nil {
			sub.After = &tracker.Constraint{Subsig: sr.After.Subsig, Min: sr.After.Min, Max: sr.After.Max}
		}
		ls.Subsigs = append(ls.Subsigs, sub)
	}
	id, err := db.Matcher.AddLogical(ls)
	if err != nil {
		return Logical{}, err
	}
	return Logical{ID: id, Name: r.Name, Kind: kind, FileType: r.FileType, Expr: expr}, nil
}

func (r SignatureRule) signature() (matcher.Signature, error) {
	flags, err := matcher.ParseFlags(r.Flags)
	if err != nil {
		return matcher.Signature{}, fmt.Errorf("signature %q: %w", r.Name, err)
	}
	kind, err := parseKind(r.Kind)
	if err != nil {
		return matcher.Signature{}, fmt.Errorf("signature %q: %w", r.Name, err)
	}
	return matcher.Signature{
		Name:     r.Name,
		Hex:      r.Hex,
		Offset:   r.Offset,
		Flags:    flags,
		Kind:     kind,
		FileType: r.FileType,
	}, nil
}

// ParseMode maps "signature", "fingerprint" or "all" to a scan mode.
func ParseMode(s string) (matcher.Mode, error) {
	switch s {
	case "", "signature":
		return matcher.ModeSignature, nil
	case "fingerprint":
		return matcher.ModeFingerprint, nil
	case "all":
		return matcher.ModeSignature | matcher.ModeFingerprint, nil
	}
	return 0, fmt.Errorf("unknown mode %q", s)
}

func parseKind(s string) (matcher.Mode, error) {
	m, err := ParseMode(s)
	if err != nil || m == matcher.ModeSignature|matcher.ModeFingerprint {
		return 0, fmt.Errorf("unknown kind %q", s)
	}
	return m, nil
}
