package prompt

import (
	"fmt"
	"strings"
	"time"
)

// DefaultHistoryWindow is how many prior conversation turns are folded
// into the instruction. One window policy for every send path.
const DefaultHistoryWindow = 30

// Categories is the fixed menu of event categories the assistant may
// assign. The completion endpoint must not invent new ones.
var Categories = []string{
	"school", "sports", "medical", "social",
	"birthday", "appointment", "chores", "other",
}

// Member identifies a family member the assistant can assign things to.
type Member struct {
	ID   string
	Name string
}

// Turn is one prior conversation turn, oldest first.
type Turn struct {
	Role    string // "user" or "assistant"
	Content string
}

// Context carries everything the builder folds into the instruction.
// Missing values are substituted with defaults; building never fails.
type Context struct {
	Now      time.Time
	Language string
	FamilyID string
	Self     *Member
	Roster   []Member
	History  []Turn
	Message  string
	Window   int // history turns to keep; <=0 means DefaultHistoryWindow
}

// Prompt is the assembled instruction for one completion call.
type Prompt struct {
	System string
	User   string
	Schema map[string]interface{}
}

// Builder deterministically serializes conversation context into an
// instruction string plus the response schema. Pure; no side effects.
type Builder struct{}

// New creates a prompt builder.
func New() *Builder {
	return &Builder{}
}

// Build assembles the prompt for a new user message.
func (b *Builder) Build(ctx Context) Prompt {
	window := ctx.Window
	if window <= 0 {
		window = DefaultHistoryWindow
	}
	history := ctx.History
	if len(history) > window {
		history = history[len(history)-window:]
	}

	lang := ctx.Language
	if lang == "" {
		lang = "en"
	}

	selfID, selfName := "unknown", "unknown"
	if ctx.Self != nil {
		selfID, selfName = ctx.Self.ID, ctx.Self.Name
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Current time: %s\n", ctx.Now.Format(time.RFC3339))
	fmt.Fprintf(&sb, "Reply language: %s\n", lang)
	fmt.Fprintf(&sb, "The user you are talking to is family member %q (id: %s).\n", selfName, selfID)
	if ctx.FamilyID != "" {
		fmt.Fprintf(&sb, "Family id: %s\n", ctx.FamilyID)
	}

	sb.WriteString("Family members:\n")
	for _, m := range ctx.Roster {
		fmt.Fprintf(&sb, "- %s (id: %s)\n", m.Name, m.ID)
	}

	fmt.Fprintf(&sb, "Event categories: %s\n", strings.Join(Categories, ", "))

	if len(history) > 0 {
		sb.WriteString("\nConversation so far:\n")
		for _, t := range history {
			fmt.Fprintf(&sb, "%s: %s\n", roleLabel(t.Role), t.Content)
		}
	}

	fmt.Fprintf(&sb, "\nNew message from %s: %s\n", selfName, ctx.Message)

	return Prompt{
		System: SystemPrompt,
		User:   sb.String(),
		Schema: ResponseSchema(),
	}
}

func roleLabel(role string) string {
	if role == "assistant" {
		return "Assistant"
	}
	return "User"
}
