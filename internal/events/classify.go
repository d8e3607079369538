package events

import "strings"

// Kind is the semantic role of a trace event in the stack view.
type Kind int

const (
	KindIgnored Kind = iota
	KindNativeEntry
	KindNativeExit
	KindInterpretedEntry
	KindInterpretedExit
	KindSyscallEntry
	KindSyscallExit
	KindLogStatement
)

var kindNames = [...]string{
	KindIgnored:          "ignored",
	KindNativeEntry:      "native_entry",
	KindNativeExit:       "native_exit",
	KindInterpretedEntry: "interpreted_entry",
	KindInterpretedExit:  "interpreted_exit",
	KindSyscallEntry:     "syscall_entry",
	KindSyscallExit:      "syscall_exit",
	KindLogStatement:     "log_statement",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "unknown"
	}
	return kindNames[k]
}

// IsEntry reports whether the kind opens a scope. Log statements open and
// close theirs in the same step.
func (k Kind) IsEntry() bool {
	switch k {
	case KindNativeEntry, KindInterpretedEntry, KindSyscallEntry, KindLogStatement:
		return true
	}
	return false
}

// IsExit reports whether the kind closes a scope.
func (k Kind) IsExit() bool {
	switch k {
	case KindNativeExit, KindInterpretedExit, KindSyscallExit:
		return true
	}
	return false
}

// Event family names emitted by LTTng and its Python/UST agents.
const (
	FamilyLogStatement     = "lttng_python:event"
	FamilyInterpretedEntry = "python:function__entry"
	FamilyInterpretedExit  = "python:function__return"
	FamilyNativeEntry      = "lttng_ust_cyg_profile_fast:func_entry"
	FamilyNativeExit       = "lttng_ust_cyg_profile_fast:func_exit"

	// SyscallEntryPrefix is 14 bytes; the renderer strips exactly that many
	// to recover the syscall name.
	SyscallEntryPrefix = "syscall_entry_"
	SyscallExitPrefix  = "syscall_exit_"
)

// DefaultExcludedSyscalls lists syscall name suffixes dropped by default.
// The tracer's own instrumentation calls getpid at a high rate.
var DefaultExcludedSyscalls = []string{"getpid"}

// Classifier maps event family names to kinds.
type Classifier struct {
	excluded []string
}

// ClassifierOption configures a Classifier.
type ClassifierOption func(*Classifier)

// WithExcludedSyscalls replaces the list of suppressed syscall name
// suffixes. Both the entry and the exit of a matching syscall are ignored.
func WithExcludedSyscalls(suffixes ...string) ClassifierOption {
	return func(c *Classifier) {
		c.excluded = append([]string(nil), suffixes...)
	}
}

// NewClassifier creates a Classifier with DefaultExcludedSyscalls unless
// overridden.
func NewClassifier(opts ...ClassifierOption) *Classifier {
	c := &Classifier{excluded: append([]string(nil), DefaultExcludedSyscalls...)}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Classify returns the kind for a family name. Rules are evaluated in a
// fixed order and the first match wins; anything unrecognised is
// KindIgnored.
func (c *Classifier) Classify(name string) Kind {
	switch {
	case name == FamilyLogStatement:
		return KindLogStatement
	case strings.HasPrefix(name, SyscallEntryPrefix):
		if c.isExcluded(name) {
			return KindIgnored
		}
		return KindSyscallEntry
	case strings.HasPrefix(name, SyscallExitPrefix):
		if c.isExcluded(name) {
			return KindIgnored
		}
		return KindSyscallExit
	case name == FamilyInterpretedEntry:
		return KindInterpretedEntry
	case name == FamilyInterpretedExit:
		return KindInterpretedExit
	case name == FamilyNativeEntry:
		return KindNativeEntry
	case name == FamilyNativeExit:
		return KindNativeExit
	default:
		return KindIgnored
	}
}

func (c *Classifier) isExcluded(name string) bool {
	for _, suffix := range c.excluded {
		if suffix != "" && strings.HasSuffix(name, suffix) {
			return true
		}
	}
	return false
}
