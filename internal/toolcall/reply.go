package toolcall

// Result is one correlated tool result.
type Result struct {
	ToolCallID string `json:"toolCallId"`
	Result     string `json:"result"`
}

// ResultsReply is the reply for tool-call envelopes.
type ResultsReply struct {
	Results []Result `json:"results"`
}

// FlatReply is the reply for flat envelopes.
type FlatReply struct {
	Result string `json:"result"`
}

// Compose wraps text in the reply envelope the caller expects. A non-empty
// callID selects the correlated results envelope.
func Compose(text, callID string) any {
	if callID != "" {
		return ResultsReply{Results: []Result{{ToolCallID: callID, Result: text}}}
	}
	return FlatReply{Result: text}
}
