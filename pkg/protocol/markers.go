package protocol

import "strings"

// Region is a semantic category of content on the outbound stream.
type Region string

const (
	RegionOutput      Region = "output"
	RegionToolOutput  Region = "tool_output"
	RegionToolWarning Region = "tool_warning"
	RegionToolError   Region = "tool_error"
	RegionConfirm     Region = "confirm_ask"
	RegionPrompt      Region = "prompt_ask"
)

// EndTurnMarker ends the current turn. It has no closing counterpart.
const EndTurnMarker = "~END_REQUEST~"

// Legacy question tags written around the question payload in compat mode.
const (
	QuestionTagOpen  = "<question>"
	QuestionTagClose = "</question>"
)

var knownRegions = map[Region]bool{
	RegionOutput:      true,
	RegionToolOutput:  true,
	RegionToolWarning: true,
	RegionToolError:   true,
	RegionConfirm:     true,
	RegionPrompt:      true,
}

// Known reports whether r is part of the marker vocabulary.
func (r Region) Known() bool {
	return knownRegions[r]
}

// BeginMarker returns the literal start marker, e.g. "[~output~]".
func (r Region) BeginMarker() string {
	return "[~" + string(r) + "~]"
}

// EndMarker returns the literal end marker, e.g. "[~/output~]".
func (r Region) EndMarker() string {
	return "[~/" + string(r) + "~]"
}

// IsQuestion reports whether the region carries a question payload.
func (r Region) IsQuestion() bool {
	return r == RegionConfirm || r == RegionPrompt
}

// parseMarkerName maps the inside of a "[~...~]" marker to a region and whether it closes.
func parseMarkerName(name string) (Region, bool, bool) {
	closing := strings.HasPrefix(name, "/")
	r := Region(strings.TrimPrefix(name, "/"))
	if !r.Known() {
		return "", false, false
	}
	return r, closing, true
}
