package command

import "strings"

// Transition is Chromium's page-transition value: a core transition type in
// the low byte and qualifier flags in the high bytes.
type Transition int32

const (
	transitionCoreMask      = 0xFF
	transitionQualifierMask = -0x100 // 0xFFFFFF00 as int32
)

var transitionCores = map[int32]string{
	0:  "Link",
	1:  "Typed",
	2:  "AutoBookmark",
	3:  "AutoSubframe",
	4:  "ManualSubframe",
	5:  "Generated",
	6:  "AutoToplevel",
	7:  "FormSubmit",
	8:  "Reload",
	9:  "Keyword",
	10: "KeywordGenerated",
}

// Qualifier flags in ascending bit order so String output is deterministic.
var transitionQualifiers = []struct {
	flag int32
	name string
}{
	{0x00800000, "Blocked"},
	{0x01000000, "ForwardBack"},
	{0x02000000, "FromAddressBar"},
	{0x04000000, "HomePage"},
	{0x08000000, "FromAPI"},
	{0x10000000, "ChainStart"},
	{0x20000000, "ChainEnd"},
	{0x40000000, "ClientRedirect"},
	{-0x80000000, "ServerRedirect"},
}

// Core names the base transition type, or "Unknown" for values outside the
// documented range.
func (t Transition) Core() string {
	if name, ok := transitionCores[int32(t)&transitionCoreMask]; ok {
		return name
	}
	return "Unknown"
}

// Qualifiers lists the names of all set qualifier flags.
func (t Transition) Qualifiers() []string {
	var out []string
	masked := int32(t) & transitionQualifierMask
	for _, q := range transitionQualifiers {
		if masked&q.flag != 0 {
			out = append(out, q.name)
		}
	}
	return out
}

// String renders "Core; Qualifier; Qualifier" like the original forensic
// tooling, so reports stay diffable against prior casework.
func (t Transition) String() string {
	return strings.Join(append([]string{t.Core()}, t.Qualifiers()...), "; ")
}
