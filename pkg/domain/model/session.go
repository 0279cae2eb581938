package model

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"

	"github.com/m-mizutani/goerr/v2"
	"github.com/pelletier/go-toml/v2"
)

// StateName identifies a cooking session state
type StateName string

const (
	StateStart               StateName = "START"
	StateIngredientScan      StateName = "INGREDIENT_SCAN"
	StateRecipeConfirmation  StateName = "RECIPE_CONFIRMATION"
	StateInstructionOverview StateName = "INSTRUCTION_OVERVIEW"
	StateCookingInstruction  StateName = "COOKING_INSTRUCTION"
	StateMonitoring          StateName = "MONITORING"
	StateErrorCorrection     StateName = "ERROR_CORRECTION"
	StateFinished            StateName = "FINISHED"
)

// Control markers the LLM emits in speech_output instead of spoken text
const (
	SpeechMonitorNormal = "MONITOR_NORMAL"
	SpeechStartTimer    = "START_TIMER"
)

// State is a single node of the session state machine. It carries
// configuration only, no logic; behavior is driven by the LLM against the
// state's goal description.
type State struct {
	Name          StateName   `toml:"name"`
	Description   string      `toml:"description"`
	Next          []StateName `toml:"next"`
	RequiresImage bool        `toml:"requires_image"`
}

// CanTransition reports whether to is a valid next state
func (s *State) CanTransition(to StateName) bool {
	for _, n := range s.Next {
		if n == to {
			return true
		}
	}
	return false
}

// StateTable is the full state machine definition keyed by state name
type StateTable map[StateName]State

// ParseStateTable decodes a TOML state machine definition and validates
// that transitions only reference defined states and that the mandatory
// START and FINISHED states exist.
func ParseStateTable(data []byte) (StateTable, error) {
	var doc struct {
		States []State `toml:"state"`
	}
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, goerr.Wrap(err, "failed to parse state table")
	}
	if len(doc.States) == 0 {
		return nil, goerr.New("state table defines no states")
	}

	table := make(StateTable, len(doc.States))
	for _, st := range doc.States {
		if st.Name == "" {
			return nil, goerr.New("state with empty name")
		}
		if _, ok := table[st.Name]; ok {
			return nil, goerr.New("duplicate state", goerr.V("state", st.Name))
		}
		table[st.Name] = st
	}

	for _, st := range table {
		for _, next := range st.Next {
			if _, ok := table[next]; !ok {
				return nil, goerr.New("transition to undefined state",
					goerr.V("state", st.Name), goerr.V("next", next))
			}
		}
	}

	for _, required := range []StateName{StateStart, StateFinished} {
		if _, ok := table[required]; !ok {
			return nil, goerr.New("state table missing required state",
				goerr.V("state", required))
		}
	}

	return table, nil
}

// Reply is the structured assistant response for one turn
type Reply struct {
	Speech string    `json:"speech_output"`
	Next   StateName `json:"next_state"`
}

// Entry is a single transcript record
type Entry struct {
	Role    string // "user" or "assistant"
	Content string // Raw text for users, JSON-encoded Reply for assistants
}

// Transcript is the running conversation history fed back to the LLM.
// Consecutive MONITOR_NORMAL assistant replies are compacted into a single
// entry with a repetition counter so that long monitoring phases do not
// flood the context window.
type Transcript struct {
	entries []Entry
}

var monitorNormalRe = regexp.MustCompile(`^MONITOR_NORMAL(?: \* (\d+))?$`)

// AppendUser records a user turn
func (t *Transcript) AppendUser(content string) {
	t.entries = append(t.entries, Entry{Role: "user", Content: content})
}

// AppendSystemNote records an out-of-band event (e.g. a started timer) as a
// user-role notification, matching how the session loop surfaces it to the LLM
func (t *Transcript) AppendSystemNote(note string) {
	t.entries = append(t.entries, Entry{Role: "user", Content: "[System Notification: " + note + "]"})
}

// AppendAssistant records an assistant reply, merging a MONITOR_NORMAL reply
// into the preceding one when the assistant is idling in the monitoring
// state. The superseded user/assistant pair is dropped and the counter on the
// surviving entry is incremented.
func (t *Transcript) AppendAssistant(reply Reply) {
	if reply.Speech == SpeechMonitorNormal && len(t.entries) >= 3 {
		prev := t.entries[len(t.entries)-2]
		if prev.Role == "assistant" {
			var prevReply Reply
			if err := json.Unmarshal([]byte(prev.Content), &prevReply); err == nil {
				if m := monitorNormalRe.FindStringSubmatch(prevReply.Speech); m != nil {
					count := 1
					if m[1] != "" {
						if n, err := strconv.Atoi(m[1]); err == nil {
							count = n
						}
					}
					reply.Speech = fmt.Sprintf("%s * %d", SpeechMonitorNormal, count+1)

					// Drop the superseded cycle, keep the current user turn
					t.entries = append(t.entries[:len(t.entries)-3], t.entries[len(t.entries)-1])
				}
			}
		}
	}

	content, err := json.Marshal(reply)
	if err != nil {
		content = []byte(reply.Speech)
	}
	t.entries = append(t.entries, Entry{Role: "assistant", Content: string(content)})
}

// Entries returns a copy of the transcript records
func (t *Transcript) Entries() []Entry {
	out := make([]Entry, len(t.entries))
	copy(out, t.entries)
	return out
}

// Len returns the number of transcript records
func (t *Transcript) Len() int {
	return len(t.entries)
}
