package backend

import "encoding/json"

// streamFrame is the loose shape of one stream-json line. Only the kinds
// this design cares about are decoded further; anything else is treated
// like a malformed line and forwarded to raw text instead of aborting
// the session.
type streamFrame struct {
	Type    string          `json:"type"`
	Content []contentItem   `json:"content"`
	IsError bool            `json:"is_error"`
	Result  json.RawMessage `json:"result"`
}

type contentItem struct {
	Type    string          `json:"type"`
	ID      string          `json:"id"`
	Name    string          `json:"name"`
	Input   json.RawMessage `json:"input"`
	Content string          `json:"content"`
	ToolID  string          `json:"tool_use_id"`
}

type resultFrame struct {
	IsError      bool    `json:"is_error"`
	DurationMs   int64   `json:"duration_ms"`
	TotalCostUSD float64 `json:"total_cost_usd"`
	NumTurns     int     `json:"num_turns"`
}

// parseStreamJSONLine decodes one stream-json line into zero or more
// ParsedEvents, dispatching to the handler as it goes. A line that isn't
// valid JSON, or doesn't match one of the known shapes, is returned as a
// single raw-text event so the caller can forward it via OnText; it does
// not abort the session.
func parseStreamJSONLine(line string, handler StreamHandler) []ParsedEvent {
	var frame streamFrame
	if err := json.Unmarshal([]byte(line), &frame); err != nil {
		handler.OnText(line)
		return []ParsedEvent{{Kind: ParsedKindUxEvent, Text: line}}
	}

	var events []ParsedEvent

	switch frame.Type {
	case "assistant":
		for _, c := range frame.Content {
			if c.Type != "tool_use" {
				continue
			}
			handler.OnToolCall(c.Name, c.ID, c.Input)
			events = append(events, ParsedEvent{
				Kind:      ParsedKindToolCall,
				ToolName:  c.Name,
				ToolID:    c.ID,
				ToolInput: c.Input,
			})
		}
	case "user":
		for _, c := range frame.Content {
			if c.Type != "tool_result" {
				continue
			}
			handler.OnToolResult(c.ToolID, c.Content)
			events = append(events, ParsedEvent{
				Kind:        ParsedKindToolResult,
				ToolID:      c.ToolID,
				ToolContent: c.Content,
			})
		}
	case "result":
		var r resultFrame
		if err := json.Unmarshal(frame.Result, &r); err != nil {
			// Some backends inline the result fields at the top level
			// rather than nesting them under "result".
			_ = json.Unmarshal([]byte(line), &r)
		}
		info := CompleteInfo{
			IsError:      r.IsError || frame.IsError,
			DurationMs:   r.DurationMs,
			TotalCostUSD: r.TotalCostUSD,
			NumTurns:     r.NumTurns,
		}
		handler.OnComplete(info)
		events = append(events, ParsedEvent{Kind: ParsedKindComplete, Complete: &info})
		if info.IsError {
			errText := line
			handler.OnError(errText)
			events = append(events, ParsedEvent{Kind: ParsedKindError, ErrorText: errText})
		}
	default:
		handler.OnText(line)
		events = append(events, ParsedEvent{Kind: ParsedKindUxEvent, Text: line})
	}

	return events
}
