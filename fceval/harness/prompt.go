package harness

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ZanzyTHEbar/fceval/fceval/catalog"
	"github.com/ZanzyTHEbar/fceval/fceval/dataset"
	ports "github.com/ZanzyTHEbar/fceval/fceval/harness/ports"
)

// SystemInstructions is the fixed preamble of every evaluation prompt. The
// function listing for the item is appended to it.
const SystemInstructions = `You are an expert in composing functions. You are given a question and a set of possible functions. Based on the question, you will need to make one or more function/tool calls to achieve the purpose.
If none of the functions can be used, point it out. If the given question lacks the parameters required by the function, also point it out.
You should only return the function calls in your response.

If you decide to invoke any of the function(s), you MUST put it in the format of [func_name1(params_name1=params_value1, params_name2=params_value2...), func_name2(params)]
You SHOULD NOT include any other text in the response. You SHOULD NOT change the function name or parameter names.

At each turn, you should try your best to complete the tasks requested by the user within the current turn. Continue to output functions to call until you have fulfilled the user's request to the best of your ability. Once you have no more functions to call, the system will consider the current turn complete and proceed to the next turn or task.`

// PromptBuilder assembles model-ready inputs from system text, messages, and tools.
type PromptBuilder struct {
	instructions string
}

// NewPromptBuilder creates a builder using SystemInstructions.
func NewPromptBuilder() *PromptBuilder { return &PromptBuilder{instructions: SystemInstructions} }

// NewPromptBuilderWithInstructions creates a builder with a custom preamble.
func NewPromptBuilderWithInstructions(instructions string) *PromptBuilder {
	return &PromptBuilder{instructions: instructions}
}

// Build flattens system + chat messages into a Provider PromptInput.
func (b *PromptBuilder) Build(system string, messages []ports.PromptMessage, toolSpecs []ports.ToolSpec, meta map[string]string) ports.PromptInput {
	// Normalize newlines and trim whitespace to reduce prompt diffs for caching
	norm := func(s string) string { return strings.TrimSpace(strings.ReplaceAll(s, "\r\n", "\n")) }

	for i := range messages {
		messages[i].Content = norm(messages[i].Content)
	}

	return ports.PromptInput{
		System:   norm(system),
		Messages: messages,
		Tools:    toolSpecs,
		Meta:     meta,
	}
}

// ForItem builds the prompt for one test item: the instructions followed by the
// item's function listing, and the first question turn as the user message.
func (b *PromptBuilder) ForItem(category string, item dataset.Item) (ports.PromptInput, error) {
	question, err := item.Prompt()
	if err != nil {
		return ports.PromptInput{}, err
	}

	system := b.instructions + DescribeFunctions(item.Functions)
	messages := []ports.PromptMessage{{Role: "user", Content: question}}

	return b.Build(system, messages, ToolSpecs(item.Functions, item.RawFunctions), map[string]string{
		"category": category,
		"item_id":  item.ID,
	}), nil
}

// DescribeFunctions renders the "Available functions" listing for a catalog.
func DescribeFunctions(cat catalog.Catalog) string {
	if len(cat) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("\n\nAvailable functions:\n")
	for _, fn := range cat {
		fmt.Fprintf(&sb, "- %s: %s\n", fn.Name, fn.Description)
		if fn.Parameters.Len() == 0 {
			continue
		}
		sb.WriteString("  Parameters:\n")
		for _, p := range fn.Parameters.All() {
			fmt.Fprintf(&sb, "    - %s (%s): %s\n", p.Name, p.RawType, p.Description)
		}
	}
	return sb.String()
}

// ToolSpecs converts a catalog into provider tool specs. raw holds the function
// documents as read from the samples file; when present their parameters object is
// passed through as is.
func ToolSpecs(cat catalog.Catalog, raw []json.RawMessage) []ports.ToolSpec {
	specs := make([]ports.ToolSpec, 0, len(cat))
	for i, fn := range cat {
		spec := ports.ToolSpec{Name: fn.Name, Description: fn.Description}
		if i < len(raw) {
			var doc struct {
				Parameters json.RawMessage `json:"parameters"`
			}
			if err := json.Unmarshal(raw[i], &doc); err == nil {
				spec.JSONSchema = doc.Parameters
			}
		}
		if spec.JSONSchema == nil {
			if b, err := json.Marshal(fn.Parameters); err == nil {
				spec.JSONSchema = b
			}
		}
		specs = append(specs, spec)
	}
	return specs
}
