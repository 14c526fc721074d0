// Package ignore resolves path visibility against layered gitignore-style rule files.
//
// Rule files may live in any directory of a walk. Each file compiles into a RuleSet
// whose patterns are relative to its directory; a Store caches one optional RuleSet per
// directory and answers whether a candidate path is excluded by consulting the nearest
// rule sets first, then .ignore files, then an independent version-control layer built
// from .gitignore files, the repository exclude file and the user's global excludes file.
package ignore

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/woozymasta/pathrules"

	"github.com/temirov/apc/internal/utils"
)

// Decision is the outcome of evaluating a path against one RuleSet.
type Decision int

const (
	// DecisionNone means no pattern in the set matched the path.
	DecisionNone Decision = iota
	// DecisionExclude means the last matching pattern excludes the path.
	DecisionExclude
	// DecisionInclude means the last matching pattern is a negation re-including the path.
	DecisionInclude
)

// ErrMalformedPattern reports a rule line that cannot be compiled.
var ErrMalformedPattern = errors.New("malformed ignore pattern")

var (
	errEmptyPattern       = errors.New("empty pattern")
	errTrailingEscape     = errors.New("trailing escape character")
	errUnterminatedClass  = errors.New("unterminated character class")
	lineParseOptions      = pathrules.ParseOptions{KeepTrailingSpaces: true}
	patternMatcherOptions = pathrules.MatcherOptions{EnableEscaping: true}
)

const (
	commentPrefix               = "#"
	escapeCharacter             = `\`
	escapedTrailingSpaceSuffix  = escapeCharacter + " "
	segmentSeparator            = "/"
	malformedPatternErrorFormat = "%w: %s:%d: %q: %v"
)

// rule is one compiled pattern. Name patterns are matched against the base name of a
// candidate, path patterns against its whole path relative to the rule file directory.
type rule struct {
	pattern       string
	negated       bool
	directoryOnly bool
	pathScoped    bool
	matcher       *pathrules.Matcher
}

// RuleSet is a compiled, ordered list of gitignore-style patterns from one source.
// A nil *RuleSet means the directory has no rule file.
type RuleSet struct {
	source string
	rules  []rule
}

// Source returns the file the patterns were read from.
func (ruleSet *RuleSet) Source() string {
	return ruleSet.source
}

// Patterns returns the source text of the compiled patterns in file order.
func (ruleSet *RuleSet) Patterns() []string {
	if ruleSet == nil {
		return nil
	}
	patterns := make([]string, 0, len(ruleSet.rules))
	for _, compiledRule := range ruleSet.rules {
		patterns = append(patterns, compiledRule.pattern)
	}
	return patterns
}

// Len returns the number of compiled patterns.
func (ruleSet *RuleSet) Len() int {
	if ruleSet == nil {
		return 0
	}
	return len(ruleSet.rules)
}

// LoadRuleFile compiles the rule file at filePath. A missing file yields a nil RuleSet
// and no error; an unreadable one yields an error wrapping os.ErrPermission.
func LoadRuleFile(filePath string) (*RuleSet, error) {
	return loadRuleFile(filePath, rejectMalformed)
}

// ParseRules compiles newline-separated patterns read from reader. Any malformed
// pattern aborts parsing with an error wrapping ErrMalformedPattern.
func ParseRules(source string, reader io.Reader) (*RuleSet, error) {
	return parseRules(source, reader, rejectMalformed)
}

// CompileRules compiles in-memory patterns, such as command-line exclusions.
func CompileRules(source string, patterns []string) (*RuleSet, error) {
	return ParseRules(source, strings.NewReader(strings.Join(patterns, "\n")))
}

func rejectMalformed(malformed error) error {
	return malformed
}

// #nosec G304
func loadRuleFile(filePath string, onMalformed func(error) error) (*RuleSet, error) {
	fileHandle, openError := os.Open(filePath)
	if openError != nil {
		if errors.Is(openError, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening %s: %w", filePath, openError)
	}
	defer fileHandle.Close()

	fileInfo, statError := fileHandle.Stat()
	if statError != nil {
		return nil, fmt.Errorf("stat %s: %w", filePath, statError)
	}
	if fileInfo.IsDir() {
		return nil, nil
	}
	return parseRules(filePath, fileHandle, onMalformed)
}

// parseRules compiles patterns, handing each malformed line to onMalformed. Returning
// nil from onMalformed skips the line; returning an error aborts.
func parseRules(source string, reader io.Reader, onMalformed func(error) error) (*RuleSet, error) {
	ruleSet := &RuleSet{source: source}
	scanner := bufio.NewScanner(reader)
	lineNumber := 0
	for scanner.Scan() {
		lineNumber++
		compiledRule, isRule, compileError := compileLine(scanner.Text())
		if compileError != nil {
			if handledError := onMalformed(fmt.Errorf(malformedPatternErrorFormat, ErrMalformedPattern, source, lineNumber, scanner.Text(), compileError)); handledError != nil {
				return nil, handledError
			}
			continue
		}
		if isRule {
			ruleSet.rules = append(ruleSet.rules, compiledRule)
		}
	}
	if scanError := scanner.Err(); scanError != nil {
		return nil, fmt.Errorf("reading %s: %w", source, scanError)
	}
	return ruleSet, nil
}

// extend returns a RuleSet holding the receiver's patterns followed by extra's.
// Later patterns take precedence, so extra overrides the receiver.
func (ruleSet *RuleSet) extend(extra *RuleSet) *RuleSet {
	if extra.Len() == 0 {
		return ruleSet
	}
	if ruleSet == nil {
		return extra
	}
	combined := &RuleSet{source: ruleSet.source}
	combined.rules = append(append(combined.rules, ruleSet.rules...), extra.rules...)
	return combined
}

// Decide evaluates relativePath, expressed relative to the rule file directory with
// forward slashes, against the patterns. The last matching pattern wins.
func (ruleSet *RuleSet) Decide(relativePath string, isDirectory bool) Decision {
	if ruleSet == nil {
		return DecisionNone
	}
	normalizedPath := utils.NormalizeRelativePath(relativePath)
	if normalizedPath == "" {
		return DecisionNone
	}
	baseName := normalizedPath[strings.LastIndex(normalizedPath, segmentSeparator)+1:]
	for ruleIndex := len(ruleSet.rules) - 1; ruleIndex >= 0; ruleIndex-- {
		candidate := ruleSet.rules[ruleIndex]
		if candidate.directoryOnly && !isDirectory {
			continue
		}
		subject := baseName
		if candidate.pathScoped {
			subject = normalizedPath
		}
		if !candidate.matcher.Decide(subject, isDirectory).Matched {
			continue
		}
		if candidate.negated {
			return DecisionInclude
		}
		return DecisionExclude
	}
	return DecisionNone
}

// compileLine turns one rule-file line into a rule. isRule is false for blank lines and comments.
//
// Directory-only and anchoring markers are resolved here rather than by the matcher:
// the matcher lets a directory pattern match everything beneath the directory and lets
// a pattern with an inner slash float to any depth, while a rule file only ever decides
// for the entry itself relative to its own directory.
func compileLine(rawLine string) (rule, bool, error) {
	line := trimUnescapedTrailingSpaces(strings.TrimRight(rawLine, "\r"))
	if line == "" || strings.HasPrefix(line, commentPrefix) {
		return rule{}, false, nil
	}

	parsedRules, parseError := pathrules.ParseRulesString(line, lineParseOptions)
	if parseError != nil {
		return rule{}, false, parseError
	}
	if len(parsedRules) == 0 {
		return rule{}, false, errEmptyPattern
	}
	parsed := parsedRules[0]

	compiled := rule{pattern: line, negated: parsed.Action == pathrules.ActionInclude}
	pattern := parsed.Pattern
	if strings.HasSuffix(pattern, escapedTrailingSpaceSuffix) {
		pattern = strings.TrimSuffix(pattern, escapedTrailingSpaceSuffix) + " "
	}
	if strings.HasSuffix(pattern, segmentSeparator) {
		compiled.directoryOnly = true
		pattern = strings.TrimRight(pattern, segmentSeparator)
	}
	anchored := strings.HasPrefix(pattern, segmentSeparator)
	pattern = strings.TrimLeft(pattern, segmentSeparator)
	if pattern == "" {
		return rule{}, false, errEmptyPattern
	}
	if validationError := validateGlob(pattern); validationError != nil {
		return rule{}, false, validationError
	}

	compiled.pathScoped = anchored || strings.Contains(pattern, segmentSeparator)
	if compiled.pathScoped {
		pattern = segmentSeparator + pattern
	}
	matcher, matcherError := pathrules.NewMatcher([]pathrules.Rule{{Pattern: pattern, Action: parsed.Action}}, patternMatcherOptions)
	if matcherError != nil {
		return rule{}, false, matcherError
	}
	compiled.matcher = matcher
	return compiled, true, nil
}

// trimUnescapedTrailingSpaces removes trailing spaces up to the first one preceded by
// an odd run of backslashes, which is an escaped space and is kept.
func trimUnescapedTrailingSpaces(line string) string {
	for strings.HasSuffix(line, " ") {
		body := line[:len(line)-1]
		if precedingBackslashes(body)%2 == 1 {
			return line
		}
		line = body
	}
	return line
}

func precedingBackslashes(text string) int {
	count := 0
	for index := len(text) - 1; index >= 0 && text[index] == '\\'; index-- {
		count++
	}
	return count
}

// validateGlob rejects the glob forms the matcher would silently read as literals:
// an unterminated bracket expression and a dangling escape.
func validateGlob(pattern string) error {
	for index := 0; index < len(pattern); index++ {
		switch pattern[index] {
		case '\\':
			if index+1 >= len(pattern) {
				return errTrailingEscape
			}
			index++
		case '[':
			classEnd := characterClassEnd(pattern, index)
			if classEnd < 0 {
				return errUnterminatedClass
			}
			index = classEnd
		}
	}
	return nil
}

// characterClassEnd returns the index of the bracket closing the class opened at start,
// or -1. A leading negation and a leading "]" belong to the class body.
func characterClassEnd(pattern string, start int) int {
	index := start + 1
	if index < len(pattern) && (pattern[index] == '!' || pattern[index] == '^') {
		index++
	}
	if index < len(pattern) && pattern[index] == ']' {
		index++
	}
	for ; index < len(pattern); index++ {
		if pattern[index] == ']' {
			return index
		}
	}
	return -1
}
